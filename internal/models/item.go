package models

import (
	"encoding/json"
	"maps"
)

// ItemKind is the classification assigned to a Jenkins item.
type ItemKind string

const (
	KindFolder             ItemKind = "Folder"
	KindMultiBranchProject ItemKind = "MultiBranchProject"
	KindFreeStyleProject   ItemKind = "FreeStyleProject"
	KindJob                ItemKind = "Job"
	KindUnknown            ItemKind = "UnknownItem"
)

// Item is any node of the Jenkins job tree.
type Item interface {
	Kind() ItemKind
	Base() *ItemBase
}

// Container is an item that owns child items.
type Container interface {
	Item
	Children() []Item
	AddChild(child Item)
}

// Colored is an item that reports a build-status color.
type Colored interface {
	Item
	ItemColor() string
}

// Buildable is an item that may carry a last-build summary.
type Buildable interface {
	Item
	LastBuildSummary() *Build
}

// ItemBase holds the fields shared by every kind.
type ItemBase struct {
	Class    string `json:"class_"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	Fullname string `json:"fullname,omitempty"`
}

func (b *ItemBase) Base() *ItemBase { return b }

// Folder groups other items.
type Folder struct {
	ItemBase
	Jobs []Item `json:"jobs"`
}

func (*Folder) Kind() ItemKind { return KindFolder }
func (f *Folder) Children() []Item { return f.Jobs }
func (f *Folder) AddChild(child Item) { f.Jobs = append(f.Jobs, child) }

// MultiBranchProject is a container of per-branch jobs.
type MultiBranchProject struct {
	ItemBase
	Jobs      []Item `json:"jobs"`
	LastBuild *Build `json:"lastBuild,omitempty"`
}

func (*MultiBranchProject) Kind() ItemKind { return KindMultiBranchProject }
func (m *MultiBranchProject) Children() []Item { return m.Jobs }
func (m *MultiBranchProject) AddChild(child Item) { m.Jobs = append(m.Jobs, child) }
func (m *MultiBranchProject) LastBuildSummary() *Build { return m.LastBuild }

// FreeStyleProject is a classic freestyle job.
type FreeStyleProject struct {
	ItemBase
	Color     string `json:"color"`
	LastBuild *Build `json:"lastBuild,omitempty"`
}

func (*FreeStyleProject) Kind() ItemKind { return KindFreeStyleProject }
func (p *FreeStyleProject) ItemColor() string { return p.Color }
func (p *FreeStyleProject) LastBuildSummary() *Build { return p.LastBuild }

// Job is any other buildable leaf, pipelines included.
type Job struct {
	ItemBase
	Color     string `json:"color"`
	LastBuild *Build `json:"lastBuild,omitempty"`
}

func (*Job) Kind() ItemKind { return KindJob }
func (j *Job) ItemColor() string { return j.Color }
func (j *Job) LastBuildSummary() *Build { return j.LastBuild }

// UnknownItem keeps every field of a payload whose class matched no rule.
type UnknownItem struct {
	ItemBase
	Fields map[string]any `json:"-"`
}

func (*UnknownItem) Kind() ItemKind { return KindUnknown }

// MarshalJSON emits the original fields with the common base fields on top.
func (u *UnknownItem) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(u.Fields)+4)
	maps.Copy(out, u.Fields)
	delete(out, "_class")
	delete(out, "fullName")
	for k, v := range out {
		if v == nil {
			delete(out, k)
		}
	}
	out["class_"] = u.Class
	out["name"] = u.Name
	out["url"] = u.URL
	if u.Fullname != "" {
		out["fullname"] = u.Fullname
	}
	return json.Marshal(out)
}

// NewItem builds an item of the given kind from a raw payload. Container
// kinds start with no children; the caller links them.
func NewItem(kind ItemKind, base ItemBase, raw map[string]any) Item {
	switch kind {
	case KindFolder:
		return &Folder{ItemBase: base, Jobs: []Item{}}
	case KindMultiBranchProject:
		return &MultiBranchProject{
			ItemBase:  base,
			Jobs:      []Item{},
			LastBuild: parseBuildSummary(objectField(raw, "lastBuild")),
		}
	case KindFreeStyleProject:
		return &FreeStyleProject{
			ItemBase:  base,
			Color:     stringField(raw, "color"),
			LastBuild: parseBuildSummary(objectField(raw, "lastBuild")),
		}
	case KindJob:
		return &Job{
			ItemBase:  base,
			Color:     stringField(raw, "color"),
			LastBuild: parseBuildSummary(objectField(raw, "lastBuild")),
		}
	}
	return &UnknownItem{ItemBase: base, Fields: maps.Clone(raw)}
}
