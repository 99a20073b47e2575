package jenkins

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/rflorenc/jenkins-mcp-server/internal/models"
)

// HTTPError is a non-2xx Jenkins response, or a timeout reported as 408.
type HTTPError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.Status, truncate(e.Body, 200))
}

// IsNotFound reports whether err is a Jenkins 404.
func IsNotFound(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.Status == http.StatusNotFound
}

// RequestOptions tweaks a single request.
type RequestOptions struct {
	Params      url.Values // appended to the query string
	Form        url.Values // sent as application/x-www-form-urlencoded
	Body        string
	ContentType string
	Headers     map[string]string
	NoCrumb     bool
}

// Response is a fully read Jenkins response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Text returns the body as a string.
func (r *Response) Text() string { return string(r.Body) }

// JSON unmarshals the body into dest.
func (r *Response) JSON(dest any) error {
	if err := json.Unmarshal(r.Body, dest); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

// RequestObserver is notified after every Jenkins request.
type RequestObserver func(ctx context.Context, method string, status int, err error)

// Client is an authenticated HTTP client for one Jenkins controller.
type Client struct {
	baseURL    string
	username   string
	password   string
	timeout    int
	httpClient *http.Client
	observe    RequestObserver

	crumbMu sync.Mutex
	crumb   *crumb
}

type crumb struct {
	field string
	value string
}

// NewClient creates a Client from a Connection.
func NewClient(conn *models.Connection) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !conn.VerifySSL {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &Client{
		baseURL:  conn.BaseURL(),
		username: conn.Username,
		password: conn.Password,
		timeout:  int(conn.TimeoutDuration().Seconds()),
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   conn.TimeoutDuration(),
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Re-apply basic auth on redirects
				if len(via) > 0 {
					req.SetBasicAuth(conn.Username, conn.Password)
				}
				return nil
			},
		},
	}
}

// SetObserver installs fn to be called after each request.
func (c *Client) SetObserver(fn RequestObserver) { c.observe = fn }

// EndpointURL joins the controller URL and a resolved endpoint path.
func (c *Client) EndpointURL(endpoint string) string {
	return strings.TrimRight(c.baseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
}

// Get performs an authenticated GET.
func (c *Client) Get(ctx context.Context, endpoint string) (*Response, error) {
	return c.Do(ctx, http.MethodGet, endpoint, RequestOptions{})
}

// GetJSON performs an authenticated GET and unmarshals the response into dest.
func (c *Client) GetJSON(ctx context.Context, endpoint string, dest any) error {
	resp, err := c.Get(ctx, endpoint)
	if err != nil {
		return err
	}
	return resp.JSON(dest)
}

// Post performs an authenticated POST carrying the CSRF crumb.
func (c *Client) Post(ctx context.Context, endpoint string, opts RequestOptions) (*Response, error) {
	return c.Do(ctx, http.MethodPost, endpoint, opts)
}

// Do sends one request. Non-2xx answers become *HTTPError; a client-side
// timeout becomes an *HTTPError with status 408.
func (c *Client) Do(ctx context.Context, method, endpoint string, opts RequestOptions) (*Response, error) {
	resp, err := c.do(ctx, method, endpoint, opts)
	if c.observe != nil {
		status := 0
		if resp != nil {
			status = resp.Status
		}
		var he *HTTPError
		if errors.As(err, &he) {
			status = he.Status
		}
		c.observe(ctx, method, status, err)
	}
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, opts RequestOptions) (*Response, error) {
	var body io.Reader
	contentType := opts.ContentType
	switch {
	case opts.Form != nil:
		body = strings.NewReader(opts.Form.Encode())
		if contentType == "" {
			contentType = "application/x-www-form-urlencoded"
		}
	case opts.Body != "":
		body = strings.NewReader(opts.Body)
	}

	target := c.EndpointURL(endpoint)
	if len(opts.Params) > 0 {
		u, err := url.Parse(target)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", target, err)
		}
		q := u.Query()
		for k, vs := range opts.Params {
			q[k] = vs
		}
		u.RawQuery = q.Encode()
		target = u.String()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}
	if method != http.MethodGet && !opts.NoCrumb {
		cr, err := c.getCrumb(ctx)
		if err != nil {
			return nil, err
		}
		if cr.field != "" {
			req.Header.Set(cr.field, cr.value)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, &HTTPError{
				Method: method,
				Path:   endpoint,
				Status: http.StatusRequestTimeout,
				Body:   fmt.Sprintf("Jenkins request timed out after %d seconds", c.timeout),
			}
		}
		return nil, fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{Method: method, Path: endpoint, Status: resp.StatusCode, Body: string(data)}
	}
	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// getCrumb fetches the CSRF crumb once per client. Controllers with CSRF
// protection disabled answer 404, which yields an empty crumb.
func (c *Client) getCrumb(ctx context.Context) (crumb, error) {
	c.crumbMu.Lock()
	defer c.crumbMu.Unlock()
	if c.crumb != nil {
		return *c.crumb, nil
	}

	resp, err := c.do(ctx, http.MethodGet, Crumb.Template, RequestOptions{})
	if err != nil {
		if IsNotFound(err) {
			c.crumb = &crumb{}
			return *c.crumb, nil
		}
		return crumb{}, fmt.Errorf("fetching crumb: %w", err)
	}
	var payload struct {
		CrumbRequestField string `json:"crumbRequestField"`
		Crumb             string `json:"crumb"`
	}
	if err := resp.JSON(&payload); err != nil {
		return crumb{}, fmt.Errorf("fetching crumb: %w", err)
	}
	c.crumb = &crumb{field: payload.CrumbRequestField, value: payload.Crumb}
	return *c.crumb, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne interface{ Timeout() bool }
	return errors.As(err, &ne) && ne.Timeout()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
