package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rflorenc/jenkins-mcp-server/internal/jenkins"
	"github.com/rflorenc/jenkins-mcp-server/internal/models"
	"github.com/rflorenc/jenkins-mcp-server/internal/observe"
)

// ErrNoLastBuild is returned when a build number was omitted and the item
// has never been built.
var ErrNoLastBuild = errors.New("Last build number is unavailable for this item.")

// Tool names.
const (
	ToolGetAllItems           = "get_all_items"
	ToolGetItem               = "get_item"
	ToolGetItemConfig         = "get_item_config"
	ToolSetItemConfig         = "set_item_config"
	ToolQueryItems            = "query_items"
	ToolBuildItem             = "build_item"
	ToolGetAllNodes           = "get_all_nodes"
	ToolGetNode               = "get_node"
	ToolGetNodeConfig         = "get_node_config"
	ToolSetNodeConfig         = "set_node_config"
	ToolGetAllQueueItems      = "get_all_queue_items"
	ToolGetQueueItem          = "get_queue_item"
	ToolCancelQueueItem       = "cancel_queue_item"
	ToolGetRunningBuilds      = "get_running_builds"
	ToolGetBuild              = "get_build"
	ToolGetBuildScripts       = "get_build_scripts"
	ToolGetBuildConsoleOutput = "get_build_console_output"
	ToolGetBuildTestReport    = "get_build_test_report"
	ToolStopBuild             = "stop_build"
)

type noInput struct{}

type itemInput struct {
	Fullname string `json:"fullname" jsonschema:"full path of the item, folders separated by /"`
}

type itemConfigInput struct {
	Fullname  string `json:"fullname" jsonschema:"full path of the item, folders separated by /"`
	ConfigXML string `json:"config_xml" jsonschema:"the complete config.xml document"`
}

type queryItemsInput struct {
	ClassPattern    string `json:"class_pattern,omitempty" jsonschema:"regular expression matched against the item class"`
	FullnamePattern string `json:"fullname_pattern,omitempty" jsonschema:"regular expression matched against the item fullname"`
	ColorPattern    string `json:"color_pattern,omitempty" jsonschema:"regular expression matched against the item color"`
}

type buildItemInput struct {
	Fullname  string         `json:"fullname" jsonschema:"full path of the item, folders separated by /"`
	BuildType string         `json:"build_type" jsonschema:"either build or buildWithParameters"`
	Params    map[string]any `json:"params,omitempty" jsonschema:"build parameters as string, number or boolean values"`
}

type nodeInput struct {
	Name string `json:"name" jsonschema:"node name; master and Built-In Node address the controller"`
}

type nodeConfigInput struct {
	Name      string `json:"name" jsonschema:"node name"`
	ConfigXML string `json:"config_xml" jsonschema:"the complete config.xml document"`
}

type queueItemInput struct {
	ID int64 `json:"id" jsonschema:"queue item id"`
}

type buildInput struct {
	Fullname string `json:"fullname" jsonschema:"full path of the item, folders separated by /"`
	Number   *int64 `json:"number,omitempty" jsonschema:"build number; defaults to the last build"`
}

type stopBuildInput struct {
	Fullname string `json:"fullname" jsonschema:"full path of the item, folders separated by /"`
	Number   int64  `json:"number" jsonschema:"build number"`
}

type toolFunc[In any] func(ctx context.Context, j Jenkins, in In) (any, error)

func readTool(name, description string) *mcp.Tool {
	return &mcp.Tool{
		Name:        name,
		Description: description,
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}
}

func writeTool(name, description string) *mcp.Tool {
	return &mcp.Tool{
		Name:        name,
		Description: description,
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: false},
	}
}

func addTool[In any](server *mcp.Server, s *session, tool *mcp.Tool, fn toolFunc[In]) {
	mcp.AddTool(server, tool, func(ctx context.Context, req *mcp.CallToolRequest, in In) (*mcp.CallToolResult, any, error) {
		var header http.Header
		if req != nil && req.Extra != nil {
			header = req.Extra.Header
		}
		return s.call(ctx, tool.Name, header, func(ctx context.Context, j Jenkins) (any, error) {
			return fn(ctx, j, in)
		}), nil, nil
	})
}

// call runs one tool invocation and converts its outcome to a result.
// Failures never surface as protocol errors.
func (s *session) call(ctx context.Context, tool string, header http.Header, fn func(context.Context, Jenkins) (any, error)) *mcp.CallToolResult {
	ctx, span := observe.StartSpan(ctx, "mcp.tool "+tool,
		trace.WithAttributes(attribute.String("mcp.tool", tool), attribute.String("mcp.transport", s.transport)))
	defer span.End()

	start := time.Now()
	s.runtime.SetHeaders(header)
	if rec := s.current(); rec != nil {
		rec.RecordCall(tool)
	}

	out, err := func() (any, error) {
		j, err := s.runtime.Jenkins()
		if err != nil {
			return nil, err
		}
		return fn(ctx, j)
	}()
	elapsed := time.Since(start)
	s.srv.opts.Metrics.RecordToolCall(ctx, tool, elapsed, err)

	log := observe.Logger(ctx).With("tool", tool, "transport", s.transport, "duration", elapsed)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn("tool call failed", "error", err)
		return errorResult(err)
	}
	res, err := toResult(out)
	if err != nil {
		log.Error("encoding tool result", "error", err)
		return errorResult(err)
	}
	log.Debug("tool call completed")
	return res
}

func toResult(v any) (*mcp.CallToolResult, error) {
	if s, ok := v.(string); ok {
		return textResult(s), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	return textResult(string(data)), nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

func errorResult(err error) *mcp.CallToolResult {
	res := textResult(err.Error())
	res.IsError = true
	return res
}

// resolveBuildNumber returns number, or the item's last build when nil.
func resolveBuildNumber(ctx context.Context, j Jenkins, fullname string, number *int64) (int64, error) {
	if number != nil {
		return *number, nil
	}
	it, err := j.GetItem(ctx, fullname, 1)
	if err != nil {
		return 0, err
	}
	if b, ok := it.(models.Buildable); ok {
		if last := b.LastBuildSummary(); last != nil && last.Number != 0 {
			return last.Number, nil
		}
	}
	return 0, ErrNoLastBuild
}

// registerTools adds every tool to server. Tools that change Jenkins state
// are left out in read-only mode.
func (s *session) registerTools(server *mcp.Server) {
	readOnly := s.srv.opts.ReadOnly
	perRequest := s.srv.opts.FolderDepthPerRequest

	// Items
	addTool(server, s, readTool(ToolGetAllItems, "Get all items from Jenkins."),
		func(ctx context.Context, j Jenkins, _ noInput) (any, error) {
			return j.GetItems(ctx, nil, perRequest)
		})
	addTool(server, s, readTool(ToolGetItem, "Get specific item from Jenkins."),
		func(ctx context.Context, j Jenkins, in itemInput) (any, error) {
			return j.GetItem(ctx, in.Fullname, 0)
		})
	addTool(server, s, readTool(ToolGetItemConfig, "Get specific item config from Jenkins."),
		func(ctx context.Context, j Jenkins, in itemInput) (any, error) {
			return j.GetItemConfig(ctx, in.Fullname)
		})
	if !readOnly {
		addTool(server, s, writeTool(ToolSetItemConfig, "Set specific item config in Jenkins."),
			func(ctx context.Context, j Jenkins, in itemConfigInput) (any, error) {
				return nil, j.SetItemConfig(ctx, in.Fullname, in.ConfigXML)
			})
	}
	addTool(server, s, readTool(ToolQueryItems, "Query items from Jenkins."),
		func(ctx context.Context, j Jenkins, in queryItemsInput) (any, error) {
			return j.QueryItems(ctx, jenkins.ItemQuery{
				FolderDepthPerRequest: perRequest,
				ClassPattern:          in.ClassPattern,
				FullnamePattern:       in.FullnamePattern,
				ColorPattern:          in.ColorPattern,
			})
		})
	if !readOnly {
		addTool(server, s, writeTool(ToolBuildItem, "Build an item in Jenkins."),
			func(ctx context.Context, j Jenkins, in buildItemInput) (any, error) {
				return j.BuildItem(ctx, in.Fullname, in.BuildType, in.Params)
			})
	}

	// Nodes
	addTool(server, s, readTool(ToolGetAllNodes, "Get all nodes from Jenkins."),
		func(ctx context.Context, j Jenkins, _ noInput) (any, error) {
			nodes, err := j.GetNodes(ctx, 0)
			if err != nil {
				return nil, err
			}
			out := make([]*models.Node, 0, len(nodes))
			for _, n := range nodes {
				out = append(out, n.Summary())
			}
			return out, nil
		})
	addTool(server, s, readTool(ToolGetNode, "Get a specific node from Jenkins."),
		func(ctx context.Context, j Jenkins, in nodeInput) (any, error) {
			return j.GetNode(ctx, in.Name, 2)
		})
	addTool(server, s, readTool(ToolGetNodeConfig, "Get node config from Jenkins."),
		func(ctx context.Context, j Jenkins, in nodeInput) (any, error) {
			return j.GetNodeConfig(ctx, in.Name)
		})
	if !readOnly {
		addTool(server, s, writeTool(ToolSetNodeConfig, "Set specific node config in Jenkins."),
			func(ctx context.Context, j Jenkins, in nodeConfigInput) (any, error) {
				return nil, j.SetNodeConfig(ctx, in.Name, in.ConfigXML)
			})
	}

	// Queue
	addTool(server, s, readTool(ToolGetAllQueueItems, "Get all items in Jenkins queue."),
		func(ctx context.Context, j Jenkins, _ noInput) (any, error) {
			q, err := j.GetQueue(ctx, 1)
			if err != nil {
				return nil, err
			}
			out := make([]*models.QueueItem, 0, len(q.Items))
			for _, it := range q.Items {
				out = append(out, it.Summary())
			}
			return out, nil
		})
	addTool(server, s, readTool(ToolGetQueueItem, "Get a specific item in Jenkins queue by id."),
		func(ctx context.Context, j Jenkins, in queueItemInput) (any, error) {
			return j.GetQueueItem(ctx, in.ID, 1)
		})
	if !readOnly {
		addTool(server, s, writeTool(ToolCancelQueueItem, "Cancel a specific item in Jenkins queue by id."),
			func(ctx context.Context, j Jenkins, in queueItemInput) (any, error) {
				return nil, j.CancelQueueItem(ctx, in.ID)
			})
	}

	// Builds
	addTool(server, s, readTool(ToolGetRunningBuilds, "Get all running builds from Jenkins."),
		func(ctx context.Context, j Jenkins, _ noInput) (any, error) {
			return j.GetRunningBuilds(ctx)
		})
	addTool(server, s, readTool(ToolGetBuild, "Get specific build info from Jenkins."),
		func(ctx context.Context, j Jenkins, in buildInput) (any, error) {
			n, err := resolveBuildNumber(ctx, j, in.Fullname, in.Number)
			if err != nil {
				return nil, err
			}
			return j.GetBuild(ctx, in.Fullname, n, 0)
		})
	addTool(server, s, readTool(ToolGetBuildScripts, "Get scripts used in a specific build."),
		func(ctx context.Context, j Jenkins, in buildInput) (any, error) {
			n, err := resolveBuildNumber(ctx, j, in.Fullname, in.Number)
			if err != nil {
				return nil, err
			}
			replay, err := j.GetBuildReplay(ctx, in.Fullname, n)
			if err != nil {
				return nil, err
			}
			return replay.Scripts, nil
		})
	addTool(server, s, readTool(ToolGetBuildConsoleOutput, "Get console output of a specific build."),
		func(ctx context.Context, j Jenkins, in buildInput) (any, error) {
			n, err := resolveBuildNumber(ctx, j, in.Fullname, in.Number)
			if err != nil {
				return nil, err
			}
			return j.GetBuildConsoleOutput(ctx, in.Fullname, n)
		})
	addTool(server, s, readTool(ToolGetBuildTestReport, "Get test report of a specific build."),
		func(ctx context.Context, j Jenkins, in buildInput) (any, error) {
			n, err := resolveBuildNumber(ctx, j, in.Fullname, in.Number)
			if err != nil {
				return nil, err
			}
			return j.GetBuildTestReport(ctx, in.Fullname, n, 0)
		})
	if !readOnly {
		addTool(server, s, writeTool(ToolStopBuild, "Stop a specific build."),
			func(ctx context.Context, j Jenkins, in stopBuildInput) (any, error) {
				return nil, j.StopBuild(ctx, in.Fullname, in.Number)
			})
	}
}
