package jenkins

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rflorenc/jenkins-mcp-server/internal/models"
)

func jobsOf(t *testing.T, payload string) []any {
	t.Helper()
	var root map[string]any
	require.NoError(t, json.Unmarshal([]byte(payload), &root))
	jobs, _ := root["jobs"].([]any)
	return jobs
}

func depth(n int) *int { return &n }

func fullnames(items []models.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Base().Fullname
	}
	return out
}

const scenarioPayload = `{"jobs": [
	{"name": "a", "_class": "hudson.model.FreeStyleProject", "color": "blue"},
	{"name": "b", "_class": "com.cloudbees.hudson.plugins.folder.Folder", "jobs": [
		{"name": "c", "_class": "org.jenkinsci.plugins.workflow.job.WorkflowJob", "color": "red"}
	]}
]}`

func TestEnumerate_Scenario(t *testing.T) {
	items := NewEnumerator(nil).Enumerate(jobsOf(t, scenarioPayload), nil)
	require.Len(t, items, 3)

	a, ok := items[0].(*models.FreeStyleProject)
	require.True(t, ok, "a is %T", items[0])
	assert.Equal(t, "blue", a.Color)
	assert.Equal(t, "a", a.Fullname)

	b, ok := items[1].(*models.Folder)
	require.True(t, ok, "b is %T", items[1])
	assert.Equal(t, "b", b.Fullname)

	c, ok := items[2].(*models.Job)
	require.True(t, ok, "c is %T", items[2])
	assert.Equal(t, "b/c", c.Fullname)
	assert.Equal(t, "red", c.Color)

	require.Len(t, b.Jobs, 1)
	assert.Same(t, c, b.Jobs[0])
}

func TestEnumerate_ScenarioTopLevelOnly(t *testing.T) {
	items := NewEnumerator(nil).Enumerate(jobsOf(t, scenarioPayload), depth(0))
	assert.Equal(t, []string{"a", "b"}, fullnames(items))
	assert.Empty(t, items[1].(*models.Folder).Jobs)
}

func TestEnumerate_Empty(t *testing.T) {
	e := NewEnumerator(nil)
	assert.Empty(t, e.Enumerate(nil, nil))
	assert.Empty(t, e.Enumerate([]any{}, depth(3)))
}

const deepPayload = `{"jobs": [
	{"name": "l0", "_class": "Folder", "jobs": [
		{"name": "l1", "_class": "Folder", "jobs": [
			{"name": "l2", "_class": "Folder", "jobs": [
				{"name": "l3", "_class": "WorkflowJob"}
			]}
		]},
		{"name": "l1b", "_class": "WorkflowJob"}
	]},
	{"name": "top", "_class": "WorkflowJob"}
]}`

func TestEnumerate_PreOrder(t *testing.T) {
	items := NewEnumerator(nil).Enumerate(jobsOf(t, deepPayload), nil)
	assert.Equal(t, []string{
		"l0", "l0/l1", "l0/l1/l2", "l0/l1/l2/l3", "l0/l1b", "top",
	}, fullnames(items))
}

func TestEnumerate_MaxDepth(t *testing.T) {
	tests := []struct {
		name  string
		depth *int
		want  []string
	}{
		{"zero", depth(0), []string{"l0", "top"}},
		{"one", depth(1), []string{"l0", "l0/l1", "l0/l1b", "top"}},
		{"two", depth(2), []string{"l0", "l0/l1", "l0/l1/l2", "l0/l1b", "top"}},
		{"beyond tree", depth(10), []string{"l0", "l0/l1", "l0/l1/l2", "l0/l1/l2/l3", "l0/l1b", "top"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			items := NewEnumerator(nil).Enumerate(jobsOf(t, deepPayload), tc.depth)
			assert.Equal(t, tc.want, fullnames(items))
		})
	}
}

func TestEnumerate_PayloadFullnamePreserved(t *testing.T) {
	payload := `{"jobs": [
		{"name": "team", "_class": "Folder", "fullName": "org/team", "jobs": [
			{"name": "svc", "_class": "WorkflowJob"},
			{"name": "lib", "_class": "WorkflowJob", "fullname": "elsewhere/lib"}
		]}
	]}`
	items := NewEnumerator(nil).Enumerate(jobsOf(t, payload), nil)
	assert.Equal(t, []string{"org/team", "org/team/svc", "elsewhere/lib"}, fullnames(items))
}

func TestEnumerate_SkipsMalformed(t *testing.T) {
	payload := `{"jobs": [
		"not an object",
		42,
		null,
		{"_class": "Folder", "jobs": [{"name": "orphan", "_class": "WorkflowJob"}]},
		{"name": 7, "_class": "WorkflowJob"},
		{"name": "ok", "_class": "WorkflowJob"}
	]}`
	items := NewEnumerator(nil).Enumerate(jobsOf(t, payload), nil)
	assert.Equal(t, []string{"ok"}, fullnames(items))
}

func TestEnumerate_NamelessNodeNotAPrefix(t *testing.T) {
	payload := `{"jobs": [
		{"name": "f", "_class": "Folder", "jobs": [
			{"_class": "Folder", "jobs": [{"name": "hidden", "_class": "WorkflowJob"}]},
			{"name": "sibling", "_class": "WorkflowJob"}
		]}
	]}`
	items := NewEnumerator(nil).Enumerate(jobsOf(t, payload), nil)
	assert.Equal(t, []string{"f", "f/sibling"}, fullnames(items))
	assert.Len(t, items[0].(*models.Folder).Jobs, 1)
}

func TestEnumerate_Classification(t *testing.T) {
	payload := `{"jobs": [
		{"name": "f", "_class": "com.cloudbees.hudson.plugins.folder.Folder"},
		{"name": "m", "_class": "org.jenkinsci.plugins.workflow.multibranch.WorkflowMultiBranchProject",
		 "lastBuild": {"number": 4, "url": "http://ci/job/m/4/"}},
		{"name": "fs", "_class": "hudson.model.FreeStyleProject", "color": "disabled"},
		{"name": "p", "_class": "org.jenkinsci.plugins.workflow.job.WorkflowJob", "color": "blue_anime"},
		{"name": "x", "_class": "hudson.matrix.MatrixProject", "color": "grey", "extra": true},
		{"name": "noclass"}
	]}`
	items := NewEnumerator(nil).Enumerate(jobsOf(t, payload), nil)
	kinds := make([]models.ItemKind, len(items))
	for i, it := range items {
		kinds[i] = it.Kind()
	}
	assert.Equal(t, []models.ItemKind{
		models.KindFolder, models.KindMultiBranchProject, models.KindFreeStyleProject,
		models.KindJob, models.KindUnknown, models.KindUnknown,
	}, kinds)

	mb := items[1].(*models.MultiBranchProject)
	require.NotNil(t, mb.LastBuild)
	assert.EqualValues(t, 4, mb.LastBuild.Number)

	unknown := items[4].(*models.UnknownItem)
	assert.Equal(t, true, unknown.Fields["extra"])
	assert.Equal(t, "grey", unknown.Fields["color"])
}

func TestEnumerate_ChildrenOfNonContainerStillListed(t *testing.T) {
	payload := `{"jobs": [
		{"name": "org", "_class": "jenkins.branch.OrganizationFolderX", "jobs": [
			{"name": "repo", "_class": "WorkflowJob"}
		]}
	]}`
	items := NewEnumerator(nil).Enumerate(jobsOf(t, payload), nil)
	assert.Equal(t, []string{"org", "org/repo"}, fullnames(items))
	assert.Equal(t, models.KindUnknown, items[0].Kind())
}

func TestEnumerate_DoesNotMutateInput(t *testing.T) {
	jobs := jobsOf(t, scenarioPayload)
	before, err := json.Marshal(jobs)
	require.NoError(t, err)

	NewEnumerator(nil).Enumerate(jobs, nil)

	after, err := json.Marshal(jobs)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
}

func TestEnumerate_Concurrent(t *testing.T) {
	e := NewEnumerator(nil)
	jobs := jobsOf(t, deepPayload)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := len(e.Enumerate(jobs, nil)); got != 6 {
				t.Errorf("Enumerate returned %d items, want 6", got)
			}
		}()
	}
	wg.Wait()
}

func TestEnumerate_Wide(t *testing.T) {
	var children []any
	for i := 0; i < 1000; i++ {
		children = append(children, map[string]any{"name": "j", "_class": "WorkflowJob"})
	}
	deep := map[string]any{"name": "root", "_class": "Folder"}
	cur := deep
	for i := 0; i < 500; i++ {
		next := map[string]any{"name": "n", "_class": "Folder"}
		cur["jobs"] = []any{next}
		cur = next
	}
	items := NewEnumerator(nil).Enumerate(append(children, deep), nil)
	assert.Len(t, items, 1000+501)
}

func TestClassify(t *testing.T) {
	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{
		"_class": "com.cloudbees.hudson.plugins.folder.Folder",
		"name": "team", "url": "http://ci/job/team/", "fullName": "team",
		"jobs": [
			{"_class": "org.jenkinsci.plugins.workflow.job.WorkflowJob", "name": "svc", "color": "blue"},
			{"_class": "com.cloudbees.hudson.plugins.folder.Folder", "name": "sub",
			 "jobs": [{"_class": "hudson.model.FreeStyleProject", "name": "leaf"}]}
		]
	}`), &raw))

	item, err := NewEnumerator(nil).Classify(raw)
	require.NoError(t, err)
	folder, ok := item.(*models.Folder)
	require.True(t, ok)
	assert.Equal(t, "team", folder.Fullname)
	require.Len(t, folder.Jobs, 2)
	assert.Equal(t, "team/svc", folder.Jobs[0].Base().Fullname)
	sub := folder.Jobs[1].(*models.Folder)
	require.Len(t, sub.Jobs, 1)
	assert.Equal(t, "team/sub/leaf", sub.Jobs[0].Base().Fullname)

	_, err = NewEnumerator(nil).Classify(map[string]any{"_class": "Folder"})
	assert.ErrorIs(t, err, ErrInvalidItem)
}

func TestClassifier(t *testing.T) {
	c := DefaultClassifier()
	assert.Equal(t, models.KindMultiBranchProject, c.KindOf("x.WorkflowMultiBranchProject"))
	assert.Equal(t, models.KindJob, c.KindOf("x.WorkflowJob"))
	assert.Equal(t, models.KindUnknown, c.KindOf(""))

	custom, err := NewClassifier([]Rule{
		{Suffix: "OrganizationFolder", Kind: models.KindFolder},
		{Suffix: "Project", Kind: models.KindJob},
	})
	require.NoError(t, err)
	assert.Equal(t, models.KindFolder, custom.KindOf("jenkins.branch.OrganizationFolder"))
	assert.Equal(t, models.KindJob, custom.KindOf("hudson.matrix.MatrixProject"))
	assert.Equal(t, models.KindUnknown, custom.KindOf("x.WorkflowJob"))

	_, err = NewClassifier([]Rule{{Suffix: "", Kind: models.KindJob}})
	assert.Error(t, err)
	_, err = NewClassifier([]Rule{{Suffix: "X", Kind: "Pipeline"}})
	assert.Error(t, err)
}

func TestEnumerate_CustomClassifier(t *testing.T) {
	c, err := NewClassifier([]Rule{{Suffix: "OrganizationFolderX", Kind: models.KindFolder}})
	require.NoError(t, err)
	payload := `{"jobs": [
		{"name": "org", "_class": "jenkins.branch.OrganizationFolderX", "jobs": [
			{"name": "repo", "_class": "WorkflowJob"}
		]}
	]}`
	items := NewEnumerator(c).Enumerate(jobsOf(t, payload), nil)
	require.Len(t, items, 2)
	org, ok := items[0].(*models.Folder)
	require.True(t, ok)
	assert.Len(t, org.Jobs, 1)
}
