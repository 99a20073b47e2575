package models

import "errors"

// ErrInvalidBuild is returned when a build payload lacks a number or url.
var ErrInvalidBuild = errors.New("invalid build payload")

// Build is a single run of a Jenkins item. Optional fields are nil when
// Jenkins did not report them and are omitted from JSON output.
type Build struct {
	Number            int64   `json:"number"`
	URL               string  `json:"url"`
	Timestamp         *int64  `json:"timestamp,omitempty"`
	Duration          *int64  `json:"duration,omitempty"`
	EstimatedDuration *int64  `json:"estimatedDuration,omitempty"`
	Building          *bool   `json:"building,omitempty"`
	Result            *string `json:"result,omitempty"`
	NextBuild         *Build  `json:"nextBuild,omitempty"`
	PreviousBuild     *Build  `json:"previousBuild,omitempty"`
}

// ParseBuild validates a decoded build payload. Neighbouring builds are
// parsed the same way when present.
func ParseBuild(raw map[string]any) (*Build, error) {
	if raw == nil || !isNumber(raw["number"]) {
		return nil, ErrInvalidBuild
	}
	url, ok := raw["url"].(string)
	if !ok {
		return nil, ErrInvalidBuild
	}
	b := &Build{
		Number:            toInt64(raw["number"]),
		URL:               url,
		Timestamp:         optInt64(raw, "timestamp"),
		Duration:          optInt64(raw, "duration"),
		EstimatedDuration: optInt64(raw, "estimatedDuration"),
		Building:          optBool(raw, "building"),
		Result:            optString(raw, "result"),
	}
	var err error
	if next := objectField(raw, "nextBuild"); next != nil {
		if b.NextBuild, err = ParseBuild(next); err != nil {
			return nil, err
		}
	}
	if prev := objectField(raw, "previousBuild"); prev != nil {
		if b.PreviousBuild, err = ParseBuild(prev); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// parseBuildSummary reads the lastBuild block embedded in an item payload.
// Malformed summaries are dropped rather than failing the whole item.
func parseBuildSummary(raw map[string]any) *Build {
	if raw == nil || !isNumber(raw["number"]) {
		return nil
	}
	url, ok := raw["url"].(string)
	if !ok {
		return nil
	}
	return &Build{
		Number:    toInt64(raw["number"]),
		URL:       url,
		Result:    optString(raw, "result"),
		Timestamp: optInt64(raw, "timestamp"),
		Duration:  optInt64(raw, "duration"),
	}
}

// BuildReplay holds the pipeline scripts shown on a build's replay page.
type BuildReplay struct {
	Scripts []string `json:"scripts"`
}
