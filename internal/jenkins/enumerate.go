package jenkins

import (
	"errors"

	"github.com/rflorenc/jenkins-mcp-server/internal/models"
)

// ErrInvalidItem is returned by Classify for payloads without a string name.
var ErrInvalidItem = errors.New("invalid item payload")

// Enumerator flattens nested Jenkins job trees into classified items.
// It holds no mutable state and is safe for concurrent use.
type Enumerator struct {
	classifier *Classifier
}

// NewEnumerator returns an enumerator using c, or the default rules if c is nil.
func NewEnumerator(c *Classifier) *Enumerator {
	if c == nil {
		c = DefaultClassifier()
	}
	return &Enumerator{classifier: c}
}

// frame is one pending child list on the walk stack.
type frame struct {
	depth  int
	path   string           // fullname of the owning node, "" at the top
	parent models.Container // nil at the top or under non-container kinds
	nodes  []any
	next   int
}

// Enumerate walks children depth-first in pre-order and returns every
// visited item. Entries that are not objects or lack a string name are
// skipped along with their subtrees. A nil maxDepth walks whatever the
// payload contains; 0 returns only the top level.
func (e *Enumerator) Enumerate(children []any, maxDepth *int) []models.Item {
	return e.walk(children, maxDepth, nil, "")
}

func (e *Enumerator) walk(children []any, maxDepth *int, root models.Container, rootPath string) []models.Item {
	items := []models.Item{}
	stack := []*frame{{path: rootPath, parent: root, nodes: children}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top.next >= len(top.nodes) {
			stack = stack[:len(stack)-1]
			continue
		}
		raw := top.nodes[top.next]
		top.next++

		node, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		item, ok := e.item(node, top.path)
		if !ok {
			continue
		}
		items = append(items, item)
		if top.parent != nil {
			top.parent.AddChild(item)
		}

		jobs, ok := node["jobs"].([]any)
		if !ok || (maxDepth != nil && top.depth >= *maxDepth) {
			continue
		}
		parent, _ := item.(models.Container)
		stack = append(stack, &frame{
			depth:  top.depth + 1,
			path:   item.Base().Fullname,
			parent: parent,
			nodes:  jobs,
		})
	}
	return items
}

// Classify builds a single item from a payload such as the one returned by
// the item endpoint. Nested jobs are attached without a depth limit.
func (e *Enumerator) Classify(raw map[string]any) (models.Item, error) {
	item, ok := e.item(raw, "")
	if !ok {
		return nil, ErrInvalidItem
	}
	if c, ok := item.(models.Container); ok {
		jobs, _ := raw["jobs"].([]any)
		e.walk(jobs, nil, c, item.Base().Fullname)
	}
	return item, nil
}

func (e *Enumerator) item(node map[string]any, parentPath string) (models.Item, bool) {
	name, ok := node["name"].(string)
	if !ok {
		return nil, false
	}
	class, _ := node["_class"].(string)
	url, _ := node["url"].(string)
	return models.NewItem(e.classifier.KindOf(class), models.ItemBase{
		Class:    class,
		Name:     name,
		URL:      url,
		Fullname: fullname(node, parentPath, name),
	}, node), true
}

// fullname prefers a payload-supplied fullname over the derived one.
func fullname(node map[string]any, parentPath, name string) string {
	for _, key := range []string{"fullname", "fullName"} {
		if v, ok := node[key].(string); ok {
			return v
		}
	}
	if parentPath == "" {
		return name
	}
	return parentPath + "/" + name
}
