package mcpserver

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/rflorenc/jenkins-mcp-server/internal/jenkins"
	"github.com/rflorenc/jenkins-mcp-server/internal/models"
	"github.com/rflorenc/jenkins-mcp-server/internal/observe"
)

// ErrMissingCredentials is returned when neither headers nor configuration
// supply a complete Jenkins connection.
var ErrMissingCredentials = errors.New("Jenkins authentication details are missing. " +
	"Please provide them via x-jenkins-* headers or CLI arguments " +
	"(--jenkins-url, --jenkins-username, --jenkins-password).")

// Jenkins is the set of controller operations the tools call.
type Jenkins interface {
	GetItems(ctx context.Context, folderDepth *int, perRequest int) ([]models.Item, error)
	GetItem(ctx context.Context, fullname string, depth int) (models.Item, error)
	GetItemConfig(ctx context.Context, fullname string) (string, error)
	SetItemConfig(ctx context.Context, fullname, configXML string) error
	QueryItems(ctx context.Context, q jenkins.ItemQuery) ([]models.Item, error)
	BuildItem(ctx context.Context, fullname, buildType string, params map[string]any) (int64, error)

	GetNodes(ctx context.Context, depth int) ([]*models.Node, error)
	GetNode(ctx context.Context, name string, depth int) (*models.Node, error)
	GetNodeConfig(ctx context.Context, name string) (string, error)
	SetNodeConfig(ctx context.Context, name, configXML string) error

	GetQueue(ctx context.Context, depth int) (*models.Queue, error)
	GetQueueItem(ctx context.Context, id int64, depth int) (*models.QueueItem, error)
	CancelQueueItem(ctx context.Context, id int64) error

	GetRunningBuilds(ctx context.Context) ([]*models.Build, error)
	GetBuild(ctx context.Context, fullname string, number int64, depth int) (*models.Build, error)
	GetBuildReplay(ctx context.Context, fullname string, number int64) (*models.BuildReplay, error)
	GetBuildConsoleOutput(ctx context.Context, fullname string, number int64) (string, error)
	GetBuildTestReport(ctx context.Context, fullname string, number int64, depth int) (map[string]any, error)
	StopBuild(ctx context.Context, fullname string, number int64) error
}

var _ Jenkins = (*jenkins.Jenkins)(nil)

// Factory builds a Jenkins for a resolved connection.
type Factory func(conn models.Connection) Jenkins

// NewFactory returns a Factory producing REST clients that classify items
// with enumerator and report each request to m.
func NewFactory(enumerator *jenkins.Enumerator, m *observe.Metrics) Factory {
	return func(conn models.Connection) Jenkins {
		c := jenkins.NewClient(&conn)
		if m != nil {
			c.SetObserver(func(ctx context.Context, method string, status int, _ error) {
				m.RecordJenkinsRequest(ctx, method, status)
			})
		}
		return jenkins.NewWithClient(c, enumerator)
	}
}

// Runtime resolves the Jenkins client for one MCP session.
type Runtime struct {
	base      models.Connection
	singleton bool
	factory   Factory

	mu     sync.Mutex
	header http.Header
	cached Jenkins
}

// NewRuntime returns a Runtime falling back to base when the session carries
// no x-jenkins-* headers. With singleton set, the first client built is
// reused for the rest of the session.
func NewRuntime(base models.Connection, singleton bool, factory Factory) *Runtime {
	return &Runtime{base: base, singleton: singleton, factory: factory}
}

// SetHeaders records the headers of the latest HTTP request in the session.
func (r *Runtime) SetHeaders(h http.Header) {
	if h == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.header = h.Clone()
}

// Connection returns the connection a new client would use right now.
func (r *Runtime) Connection() models.Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.base.WithHeaders(r.header)
}

// Jenkins returns the client for the current call.
func (r *Runtime) Jenkins() (Jenkins, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.singleton && r.cached != nil {
		return r.cached, nil
	}
	conn := r.base.WithHeaders(r.header)
	if !conn.Complete() {
		return nil, ErrMissingCredentials
	}
	j := r.factory(conn)
	if r.singleton {
		r.cached = j
	}
	return j, nil
}
