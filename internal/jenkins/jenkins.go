package jenkins

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/rflorenc/jenkins-mcp-server/internal/models"
)

// DefaultFolderDepthPerRequest is how many folder levels one tree query asks for.
const DefaultFolderDepthPerRequest = 10

const xmlContentType = "text/xml; charset=utf-8"

// Jenkins exposes the controller's REST operations.
type Jenkins struct {
	client     *Client
	enumerator *Enumerator
}

// New returns a Jenkins bound to conn. A nil enumerator uses the default
// classification rules.
func New(conn *models.Connection, enumerator *Enumerator) *Jenkins {
	return NewWithClient(NewClient(conn), enumerator)
}

// NewWithClient wraps an existing client.
func NewWithClient(c *Client, enumerator *Enumerator) *Jenkins {
	if enumerator == nil {
		enumerator = NewEnumerator(nil)
	}
	return &Jenkins{client: c, enumerator: enumerator}
}

// Client returns the underlying HTTP client.
func (j *Jenkins) Client() *Client { return j.client }

// ParseFullname splits "a/b/c" into the folder prefix "job/a/job/b/" and "c".
func ParseFullname(fullname string) (folder, name string) {
	parts := strings.Split(fullname, "/")
	name = parts[len(parts)-1]
	if len(parts) > 1 {
		folder = "job/" + strings.Join(parts[:len(parts)-1], "/job/") + "/"
	}
	return folder, name
}

func (j *Jenkins) get(ctx context.Context, ep *Endpoint, values map[string]any) (*Response, error) {
	path, err := ep.Resolve(values)
	if err != nil {
		return nil, err
	}
	return j.client.Get(ctx, path)
}

func (j *Jenkins) getObject(ctx context.Context, ep *Endpoint, values map[string]any) (map[string]any, error) {
	resp, err := j.get(ctx, ep, values)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := resp.JSON(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (j *Jenkins) post(ctx context.Context, ep *Endpoint, values map[string]any, opts RequestOptions) (*Response, error) {
	path, err := ep.Resolve(values)
	if err != nil {
		return nil, err
	}
	return j.client.Post(ctx, path, opts)
}

func buildValues(fullname string, number int64) map[string]any {
	folder, name := ParseFullname(fullname)
	return map[string]any{"folder": folder, "name": name, "number": number}
}

// GetQueue returns the build queue.
func (j *Jenkins) GetQueue(ctx context.Context, depth int) (*models.Queue, error) {
	raw, err := j.getObject(ctx, Queue, map[string]any{"depth": depth})
	if err != nil {
		return nil, err
	}
	return models.ParseQueue(raw)
}

// GetQueueItem returns one queue entry.
func (j *Jenkins) GetQueueItem(ctx context.Context, id int64, depth int) (*models.QueueItem, error) {
	raw, err := j.getObject(ctx, QueueItem, map[string]any{"id": id, "depth": depth})
	if err != nil {
		return nil, err
	}
	return models.ParseQueueItem(raw)
}

// CancelQueueItem removes an entry from the queue.
func (j *Jenkins) CancelQueueItem(ctx context.Context, id int64) error {
	_, err := j.post(ctx, QueueCancelItem, map[string]any{"id": id}, RequestOptions{})
	return err
}

// nodeName maps the built-in node's display names to its URL name.
func nodeName(name string) string {
	if name == "master" || name == "Built-In Node" {
		return "(master)"
	}
	return name
}

// GetNode returns one node.
func (j *Jenkins) GetNode(ctx context.Context, name string, depth int) (*models.Node, error) {
	raw, err := j.getObject(ctx, Node, map[string]any{"name": nodeName(name), "depth": depth})
	if err != nil {
		return nil, err
	}
	return models.ParseNode(raw)
}

// GetNodes returns every node known to the controller.
func (j *Jenkins) GetNodes(ctx context.Context, depth int) ([]*models.Node, error) {
	raw, err := j.getObject(ctx, Nodes, map[string]any{"depth": depth})
	if err != nil {
		return nil, err
	}
	computers, _ := raw["computer"].([]any)
	nodes := make([]*models.Node, 0, len(computers))
	for _, c := range computers {
		rec, _ := c.(map[string]any)
		n, err := models.ParseNode(rec)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// GetNodeConfig returns a node's config.xml.
func (j *Jenkins) GetNodeConfig(ctx context.Context, name string) (string, error) {
	resp, err := j.get(ctx, NodeConfig, map[string]any{"name": nodeName(name)})
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// SetNodeConfig replaces a node's config.xml.
func (j *Jenkins) SetNodeConfig(ctx context.Context, name, configXML string) error {
	_, err := j.post(ctx, NodeConfig, map[string]any{"name": nodeName(name)},
		RequestOptions{Body: configXML, ContentType: xmlContentType})
	return err
}

// GetBuild returns one build of an item.
func (j *Jenkins) GetBuild(ctx context.Context, fullname string, number int64, depth int) (*models.Build, error) {
	values := buildValues(fullname, number)
	values["depth"] = depth
	raw, err := j.getObject(ctx, Build, values)
	if err != nil {
		return nil, err
	}
	return models.ParseBuild(raw)
}

// GetBuildConsoleOutput returns a build's full console log.
func (j *Jenkins) GetBuildConsoleOutput(ctx context.Context, fullname string, number int64) (string, error) {
	resp, err := j.get(ctx, BuildConsoleOutput, buildValues(fullname, number))
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// ConsoleChunk is one slice of a build log.
type ConsoleChunk struct {
	Text      string
	NextStart int64
	MoreData  bool
}

// GetBuildConsoleProgressive returns the console log from byte offset start.
// MoreData stays true while the build is still writing output.
func (j *Jenkins) GetBuildConsoleProgressive(ctx context.Context, fullname string, number, start int64) (*ConsoleChunk, error) {
	values := buildValues(fullname, number)
	values["start"] = start
	resp, err := j.get(ctx, BuildProgressiveText, values)
	if err != nil {
		return nil, err
	}
	chunk := &ConsoleChunk{
		Text:      resp.Text(),
		NextStart: start + int64(len(resp.Body)),
		MoreData:  resp.Header.Get("X-More-Data") == "true",
	}
	if size := resp.Header.Get("X-Text-Size"); size != "" {
		if n, err := strconv.ParseInt(size, 10, 64); err == nil {
			chunk.NextStart = n
		}
	}
	return chunk, nil
}

// StopBuild aborts a running build.
func (j *Jenkins) StopBuild(ctx context.Context, fullname string, number int64) error {
	_, err := j.post(ctx, BuildStop, buildValues(fullname, number), RequestOptions{})
	return err
}

// GetBuildReplay returns the pipeline scripts a build ran with.
func (j *Jenkins) GetBuildReplay(ctx context.Context, fullname string, number int64) (*models.BuildReplay, error) {
	resp, err := j.get(ctx, BuildReplay, buildValues(fullname, number))
	if err != nil {
		return nil, err
	}
	return ParseReplayHTML(resp.Text()), nil
}

// GetBuildTestReport returns the raw test report of a build.
func (j *Jenkins) GetBuildTestReport(ctx context.Context, fullname string, number int64, depth int) (map[string]any, error) {
	values := buildValues(fullname, number)
	values["depth"] = depth
	return j.getObject(ctx, BuildTestReport, values)
}

// GetRunningBuilds returns the builds currently occupying an executor.
func (j *Jenkins) GetRunningBuilds(ctx context.Context) ([]*models.Build, error) {
	nodes, err := j.GetNodes(ctx, 2)
	if err != nil {
		return nil, err
	}
	builds := []*models.Build{}
	for _, n := range nodes {
		for _, ex := range n.Executors {
			cur := ex.CurrentExecutable
			if cur == nil || cur.Number == nil || *cur.Number == 0 || cur.URL == "" {
				continue
			}
			builds = append(builds, &models.Build{
				Number:    *cur.Number,
				URL:       cur.URL,
				Timestamp: cur.Timestamp,
			})
		}
	}
	return builds, nil
}

// itemsQuery nests the jobs tree selector levels times.
func itemsQuery(levels int) string {
	q := "jobs"
	for i := 0; i < levels; i++ {
		q = "jobs[url,color,name," + q + "]"
	}
	return q
}

// GetItems fetches the job tree and flattens it depth-first. folderDepth
// limits how deep the walk goes; nil walks everything the response holds.
func (j *Jenkins) GetItems(ctx context.Context, folderDepth *int, perRequest int) ([]models.Item, error) {
	if perRequest <= 0 {
		perRequest = DefaultFolderDepthPerRequest
	}
	raw, err := j.getObject(ctx, Items, map[string]any{"folder": "", "query": itemsQuery(perRequest)})
	if err != nil {
		return nil, err
	}
	jobs, _ := raw["jobs"].([]any)
	return j.enumerator.Enumerate(jobs, folderDepth), nil
}

// GetItem returns one item with its direct children when it is a container.
func (j *Jenkins) GetItem(ctx context.Context, fullname string, depth int) (models.Item, error) {
	folder, name := ParseFullname(fullname)
	raw, err := j.getObject(ctx, Item, map[string]any{"folder": folder, "name": name, "depth": depth})
	if err != nil {
		return nil, err
	}
	return j.enumerator.Classify(raw)
}

// GetItemConfig returns an item's config.xml.
func (j *Jenkins) GetItemConfig(ctx context.Context, fullname string) (string, error) {
	folder, name := ParseFullname(fullname)
	resp, err := j.get(ctx, ItemConfig, map[string]any{"folder": folder, "name": name})
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// SetItemConfig replaces an item's config.xml.
func (j *Jenkins) SetItemConfig(ctx context.Context, fullname, configXML string) error {
	folder, name := ParseFullname(fullname)
	_, err := j.post(ctx, ItemConfig, map[string]any{"folder": folder, "name": name},
		RequestOptions{Body: configXML, ContentType: xmlContentType})
	return err
}

// ItemQuery filters GetItems results. Empty patterns match everything.
type ItemQuery struct {
	FolderDepth           *int
	FolderDepthPerRequest int
	ClassPattern          string
	FullnamePattern       string
	ColorPattern          string
}

// QueryItems returns the items whose class, fullname and color match the
// query's regular expressions. A color pattern excludes items without a color.
func (j *Jenkins) QueryItems(ctx context.Context, q ItemQuery) ([]models.Item, error) {
	classRe, err := compileOptional("class_pattern", q.ClassPattern)
	if err != nil {
		return nil, err
	}
	fullnameRe, err := compileOptional("fullname_pattern", q.FullnamePattern)
	if err != nil {
		return nil, err
	}
	colorRe, err := compileOptional("color_pattern", q.ColorPattern)
	if err != nil {
		return nil, err
	}

	items, err := j.GetItems(ctx, q.FolderDepth, q.FolderDepthPerRequest)
	if err != nil {
		return nil, err
	}
	result := []models.Item{}
	for _, it := range items {
		base := it.Base()
		if classRe != nil && !classRe.MatchString(base.Class) {
			continue
		}
		if base.Fullname == "" || (fullnameRe != nil && !fullnameRe.MatchString(base.Fullname)) {
			continue
		}
		if colorRe != nil {
			c, ok := it.(models.Colored)
			if !ok || !colorRe.MatchString(c.ItemColor()) {
				continue
			}
		}
		result = append(result, it)
	}
	return result, nil
}

func compileOptional(field, pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", field, err)
	}
	return re, nil
}

// Build types accepted by BuildItem.
const (
	BuildTypeBuild          = "build"
	BuildTypeWithParameters = "buildWithParameters"
)

// ErrMissingQueueLocation is returned when Jenkins accepts a build without
// telling where it was queued.
var ErrMissingQueueLocation = errors.New("missing queue location in Jenkins response")

// BuildItem triggers a build and returns its queue id.
func (j *Jenkins) BuildItem(ctx context.Context, fullname, buildType string, params map[string]any) (int64, error) {
	if buildType != BuildTypeBuild && buildType != BuildTypeWithParameters {
		return 0, fmt.Errorf("invalid build_type %q: must be %q or %q", buildType, BuildTypeBuild, BuildTypeWithParameters)
	}
	folder, name := ParseFullname(fullname)
	opts := RequestOptions{}
	if len(params) > 0 {
		opts.Params = url.Values{}
		for k, v := range params {
			opts.Params.Set(k, fmt.Sprint(v))
		}
	}
	resp, err := j.post(ctx, ItemBuild, map[string]any{"folder": folder, "name": name, "build_type": buildType}, opts)
	if err != nil {
		return 0, err
	}
	return queueIDFromLocation(resp.Header)
}

func queueIDFromLocation(h http.Header) (int64, error) {
	location := strings.TrimSpace(h.Get("Location"))
	if location == "" {
		return 0, ErrMissingQueueLocation
	}
	trimmed := strings.TrimRight(location, "/")
	last := trimmed[strings.LastIndex(trimmed, "/")+1:]
	id, err := strconv.ParseInt(last, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid queue location: %s", location)
	}
	return id, nil
}
