package models

import "errors"

// ErrInvalidQueueItem is returned when a queue entry lacks id, inQueueSince or url.
var ErrInvalidQueueItem = errors.New("invalid queue item payload")

// QueueTask identifies the item a queue entry will build.
type QueueTask struct {
	FullDisplayName string `json:"fullDisplayName,omitempty"`
	Name            string `json:"name,omitempty"`
	URL             string `json:"url,omitempty"`
}

// QueueItem is a pending build waiting for an executor.
type QueueItem struct {
	ID           int64      `json:"id"`
	InQueueSince int64      `json:"inQueueSince"`
	URL          string     `json:"url"`
	Why          *string    `json:"why,omitempty"`
	Task         *QueueTask `json:"task,omitempty"`
}

// Queue is the build queue snapshot.
type Queue struct {
	DiscoverableItems []any        `json:"discoverableItems"`
	Items             []*QueueItem `json:"items"`
}

// ParseQueueItem validates a decoded queue entry.
func ParseQueueItem(raw map[string]any) (*QueueItem, error) {
	if raw == nil || !isNumber(raw["id"]) || !isNumber(raw["inQueueSince"]) {
		return nil, ErrInvalidQueueItem
	}
	url, ok := raw["url"].(string)
	if !ok {
		return nil, ErrInvalidQueueItem
	}
	task := objectField(raw, "task")
	return &QueueItem{
		ID:           toInt64(raw["id"]),
		InQueueSince: toInt64(raw["inQueueSince"]),
		URL:          url,
		Why:          optString(raw, "why"),
		Task: &QueueTask{
			FullDisplayName: stringField(task, "fullDisplayName"),
			Name:            stringField(task, "name"),
			URL:             stringField(task, "url"),
		},
	}, nil
}

// ParseQueue validates every entry of a decoded queue payload.
func ParseQueue(raw map[string]any) (*Queue, error) {
	q := &Queue{DiscoverableItems: arrayField(raw, "discoverableItems"), Items: []*QueueItem{}}
	if q.DiscoverableItems == nil {
		q.DiscoverableItems = []any{}
	}
	for _, it := range arrayField(raw, "items") {
		rec, _ := it.(map[string]any)
		qi, err := ParseQueueItem(rec)
		if err != nil {
			return nil, err
		}
		q.Items = append(q.Items, qi)
	}
	return q, nil
}

// Summary returns the queue entry without its task.
func (q *QueueItem) Summary() *QueueItem {
	return &QueueItem{ID: q.ID, InQueueSince: q.InQueueSince, URL: q.URL, Why: q.Why}
}
