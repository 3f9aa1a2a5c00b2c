package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ErrUnavailable matches every transport, status and decode failure. The
// dashboard does not distinguish between them: a widget either has data or
// falls back.
var ErrUnavailable = errors.New("backend unavailable")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Detail)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Code)
}

// Is makes StatusError match ErrUnavailable.
func (e *StatusError) Is(target error) bool {
	return target == ErrUnavailable
}

// BackendError is an {"error": "..."} body returned with a 2xx status.
type BackendError struct {
	Path    string
	Message string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Client talks to the AIOps backend REST API.
type Client struct {
	base    *url.URL
	http    *http.Client
	token   string
	limiter *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithToken sends a bearer token on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithRateLimit caps outgoing requests per second. A zero limit disables it.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// New creates a client for the backend at baseURL (e.g. http://localhost:8000).
// Paths are resolved relative to it, so a base with a path prefix works too.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing backend url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("backend url %q must use http or https", baseURL)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")

	c := &Client{
		base: u,
		http: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the backend origin the client talks to.
func (c *Client) BaseURL() *url.URL {
	u := *c.base
	return &u
}

// endpoint joins an already-escaped path onto the base URL.
func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	ref, err := url.Parse(c.base.EscapedPath() + path)
	if err != nil {
		u.Path = c.base.Path + path
		u.RawPath = ""
	} else {
		u.Path = ref.Path
		u.RawPath = ref.RawPath
	}
	u.RawQuery = query.Encode()
	return u.String()
}

// do performs one request. A nil out discards the body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %s %s: %w", ErrUnavailable, method, path, err)
		}
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort cleanup

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("%w: reading %s %s: %w", ErrUnavailable, method, path, err)
	}

	if resp.StatusCode >= 300 {
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Detail: errorDetail(data)}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decoding %s %s: %w", ErrUnavailable, method, path, err)
	}
	return nil
}

// errorDetail extracts a FastAPI "detail" or an "error" message from a body.
func errorDetail(data []byte) string {
	var body struct {
		Detail any    `json:"detail"`
		Error  string `json:"error"`
	}
	if json.Unmarshal(data, &body) != nil {
		return ""
	}
	if body.Error != "" {
		return body.Error
	}
	if s, ok := body.Detail.(string); ok {
		return s
	}
	return ""
}

// mutate performs a write and reports an {"error": ...} body as BackendError.
func (c *Client) mutate(ctx context.Context, method, path string, query url.Values, in any) (map[string]any, error) {
	var out map[string]any
	if err := c.do(ctx, method, path, query, in, &out); err != nil {
		return nil, err
	}
	if msg, ok := out["error"].(string); ok && msg != "" {
		return out, &BackendError{Path: path, Message: msg}
	}
	return out, nil
}

func seg(s string) string {
	return url.PathEscape(s)
}
