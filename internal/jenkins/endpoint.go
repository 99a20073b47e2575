package jenkins

import (
	"fmt"
	"regexp"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)

// Endpoint is a Jenkins REST path pattern with {name} placeholders.
type Endpoint struct {
	Template string
	fields   []string
}

// NewEndpoint parses pattern and records its distinct placeholder names in
// order of first appearance.
func NewEndpoint(pattern string) *Endpoint {
	e := &Endpoint{Template: pattern}
	seen := make(map[string]bool)
	for _, m := range placeholderRe.FindAllStringSubmatch(pattern, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			e.fields = append(e.fields, m[1])
		}
	}
	return e
}

// Fields returns the placeholder names the endpoint requires.
func (e *Endpoint) Fields() []string {
	return append([]string(nil), e.fields...)
}

// MissingFieldsError lists every placeholder a Resolve call lacked a value for.
type MissingFieldsError struct {
	Endpoint string
	Fields   []string
}

func (e *MissingFieldsError) Error() string {
	quoted := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		quoted[i] = "'" + f + "'"
	}
	return "Missing: {" + strings.Join(quoted, ", ") + "}"
}

// Resolve substitutes every placeholder with its value. It fails without
// substituting anything when any required name is absent from values.
func (e *Endpoint) Resolve(values map[string]any) (string, error) {
	var missing []string
	for _, f := range e.fields {
		if _, ok := values[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return "", &MissingFieldsError{Endpoint: e.Template, Fields: missing}
	}
	if len(e.fields) == 0 {
		return e.Template, nil
	}
	return placeholderRe.ReplaceAllStringFunc(e.Template, func(m string) string {
		return fmt.Sprint(values[m[1:len(m)-1]])
	}), nil
}

func (e *Endpoint) String() string { return e.Template }

// Jenkins REST endpoints. {folder} is the "job/a/job/b/" prefix produced by
// ParseFullname and is empty for top-level items.
var (
	Root                 = NewEndpoint("api/json?tree={tree}")
	Crumb                = NewEndpoint("crumbIssuer/api/json")
	Item                 = NewEndpoint("{folder}job/{name}/api/json?depth={depth}")
	Items                = NewEndpoint("{folder}/api/json?tree={query}")
	ItemConfig           = NewEndpoint("{folder}job/{name}/config.xml")
	ItemBuild            = NewEndpoint("{folder}job/{name}/{build_type}")
	Queue                = NewEndpoint("queue/api/json?depth={depth}")
	QueueItem            = NewEndpoint("queue/item/{id}/api/json?depth={depth}")
	QueueCancelItem      = NewEndpoint("queue/cancelItem?id={id}")
	Node                 = NewEndpoint("computer/{name}/api/json?depth={depth}")
	Nodes                = NewEndpoint("computer/api/json?depth={depth}")
	NodeConfig           = NewEndpoint("computer/{name}/config.xml")
	Build                = NewEndpoint("{folder}job/{name}/{number}/api/json?depth={depth}")
	BuildConsoleOutput   = NewEndpoint("{folder}job/{name}/{number}/consoleText")
	BuildProgressiveText = NewEndpoint("{folder}job/{name}/{number}/logText/progressiveText?start={start}")
	BuildStop            = NewEndpoint("{folder}job/{name}/{number}/stop")
	BuildReplay          = NewEndpoint("{folder}job/{name}/{number}/replay")
	BuildTestReport      = NewEndpoint("{folder}job/{name}/{number}/testReport/api/json?depth={depth}")
)
