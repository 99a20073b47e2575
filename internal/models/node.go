package models

import "errors"

// ErrInvalidNode is returned when a node payload lacks displayName or offline.
var ErrInvalidNode = errors.New("invalid node payload")

// Executable is the build an executor is currently running.
type Executable struct {
	URL             string `json:"url,omitempty"`
	Timestamp       *int64 `json:"timestamp,omitempty"`
	Number          *int64 `json:"number,omitempty"`
	FullDisplayName string `json:"fullDisplayName,omitempty"`
}

// Executor is a single build slot on a node.
type Executor struct {
	CurrentExecutable *Executable `json:"currentExecutable,omitempty"`
}

// Node is a Jenkins agent or the built-in controller node.
type Node struct {
	DisplayName string     `json:"displayName"`
	Offline     bool       `json:"offline"`
	Executors   []Executor `json:"executors,omitempty"`
}

// ParseNode validates a decoded node payload.
func ParseNode(raw map[string]any) (*Node, error) {
	name, ok := raw["displayName"].(string)
	if !ok {
		return nil, ErrInvalidNode
	}
	offline, ok := raw["offline"].(bool)
	if !ok {
		return nil, ErrInvalidNode
	}
	n := &Node{DisplayName: name, Offline: offline, Executors: []Executor{}}
	for _, e := range arrayField(raw, "executors") {
		var ex Executor
		if rec, ok := e.(map[string]any); ok {
			if cur := objectField(rec, "currentExecutable"); cur != nil {
				ex.CurrentExecutable = &Executable{
					URL:             stringField(cur, "url"),
					Timestamp:       optInt64(cur, "timestamp"),
					Number:          optInt64(cur, "number"),
					FullDisplayName: stringField(cur, "fullDisplayName"),
				}
			}
		}
		n.Executors = append(n.Executors, ex)
	}
	return n, nil
}

// Summary returns the node without its executor list.
func (n *Node) Summary() *Node {
	return &Node{DisplayName: n.DisplayName, Offline: n.Offline}
}
