package jenkins

import (
	"context"
	"fmt"
)

// ServerInfo describes the controller answering at the configured URL.
type ServerInfo struct {
	Version         string `json:"version"`
	Mode            string `json:"mode,omitempty"`
	NodeDescription string `json:"nodeDescription,omitempty"`
	UseCrumbs       bool   `json:"useCrumbs"`
	UseSecurity     bool   `json:"useSecurity"`
}

// Ping checks connectivity and credentials by fetching the API root.
// The version comes from the X-Jenkins response header.
func (j *Jenkins) Ping(ctx context.Context) (*ServerInfo, error) {
	resp, err := j.get(ctx, Root, map[string]any{"tree": "mode,nodeDescription,useCrumbs,useSecurity"})
	if err != nil {
		return nil, err
	}
	var info ServerInfo
	if err := resp.JSON(&info); err != nil {
		return nil, err
	}
	info.Version = resp.Header.Get("X-Jenkins")
	if info.Version == "" {
		return nil, fmt.Errorf("%s does not look like Jenkins: no X-Jenkins header", j.client.baseURL)
	}
	return &info, nil
}
