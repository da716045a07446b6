package reelclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/MrEthical07/reelclient/middleware"
	"github.com/MrEthical07/reelclient/session"
)

const (
	contentTypeJSON = "application/json"
	contentTypeForm = "application/x-www-form-urlencoded"

	maxResponseBytes = 8 << 20
)

// Navigator moves the user agent to another surface. The client only ever
// asks for the login path, after a 401.
type Navigator interface {
	Navigate(ctx context.Context, path string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, path string)

func (f NavigatorFunc) Navigate(ctx context.Context, path string) { f(ctx, path) }

type logNavigator struct {
	logger *slog.Logger
}

func (n logNavigator) Navigate(ctx context.Context, path string) {
	n.logger.InfoContext(ctx, "login required", "path", path)
}

// Client is the single outbound HTTP surface for the API. It is safe for
// concurrent use.
type Client struct {
	config      Config
	baseURL     *url.URL
	http        *http.Client
	session     *session.Store
	ownsSession bool
	navigator   Navigator
	events      *eventDispatcher
	metrics     *Metrics
	logger      *slog.Logger
	unsubscribe func()
}

func (c *Client) newHTTPClient(base *http.Client) *http.Client {
	hc := &http.Client{}
	if base != nil {
		*hc = *base
	}
	if hc.Timeout == 0 {
		hc.Timeout = c.config.HTTPTimeout
	}

	decorators := []middleware.Decorator{
		middleware.Unauthorized(c.handleUnauthorized),
		middleware.Bearer(c.session.Token),
		middleware.DefaultContentType(contentTypeJSON),
	}
	if c.config.RequestIDs {
		decorators = append(decorators, middleware.RequestID())
	}
	hc.Transport = middleware.Chain(hc.Transport, decorators...)
	return hc
}

// Close stops event dispatch, flushing queued events, and detaches from the
// session. A session created by Build is closed too.
func (c *Client) Close() {
	if c == nil {
		return
	}
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
	c.events.Close()
	if c.ownsSession {
		c.session.Close()
	}
}

// Session returns the session store backing the client.
func (c *Client) Session() *session.Store {
	return c.session
}

// IsAuthenticated reports whether the session holds a token.
func (c *Client) IsAuthenticated() bool {
	return c.session.IsAuthenticated()
}

// Identity returns the decoded identity, or nil when logged out.
func (c *Client) Identity() *session.Identity {
	return c.session.Identity()
}

// BaseURL returns the resolved API root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// MetricsSnapshot copies the client counters, including dropped events.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	if c == nil || c.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	s := c.metrics.Snapshot()
	s.EventsDropped = c.events.Dropped()
	return s
}

// EventsDropped reports events discarded because the buffer was full.
func (c *Client) EventsDropped() uint64 {
	if c == nil {
		return 0
	}
	return c.events.Dropped()
}

func (c *Client) emit(ctx context.Context, event Event) {
	c.events.Emit(ctx, event)
}

// handleUnauthorized runs for every 401 before the response reaches the
// caller. It must not consume the body.
func (c *Client) handleUnauthorized(req *http.Request, resp *http.Response) {
	ctx := context.WithoutCancel(req.Context())
	username := ""
	if id := c.session.Identity(); id != nil {
		username = id.Username
	}

	c.metrics.Inc(MetricUnauthorized)
	c.emit(ctx, Event{
		Type:       EventRequestUnauthorized,
		Username:   username,
		Method:     req.Method,
		Path:       c.relativePath(req.URL),
		StatusCode: resp.StatusCode,
	})

	if err := c.session.Logout(ctx); err != nil {
		c.logger.WarnContext(ctx, "logout after 401 failed", "error", err)
	}

	c.navigator.Navigate(ctx, c.config.LoginPath)
	c.metrics.Inc(MetricLoginNavigation)
	c.emit(ctx, Event{
		Type:     EventNavigateLogin,
		Username: username,
		Metadata: map[string]string{"path": c.config.LoginPath},
	})
}

func (c *Client) onSessionChange(ch session.Change) {
	ctx := context.Background()
	event := Event{}
	if ch.State.Identity != nil {
		event.Username = ch.State.Identity.Username
	}

	switch ch.Reason {
	case session.ReasonSet, session.ReasonRestored:
		c.metrics.Inc(MetricSessionSet)
		event.Type = EventSessionSet
		event.Metadata = map[string]string{"reason": string(ch.Reason)}
	case session.ReasonCleared:
		c.metrics.Inc(MetricSessionCleared)
		event.Type = EventSessionCleared
	case session.ReasonMalformed:
		c.metrics.Inc(MetricTokenMalformed)
		c.metrics.Inc(MetricSessionCleared)
		event.Type = EventTokenMalformed
		if ch.Err != nil {
			event.Error = ch.Err.Error()
		}
	default:
		return
	}
	c.emit(ctx, event)
}

func (c *Client) relativePath(u *url.URL) string {
	if u == nil {
		return ""
	}
	p := u.Path
	if prefix := c.baseURL.Path; prefix != "" && len(p) >= len(prefix) && p[:len(prefix)] == prefix {
		p = p[len(prefix):]
	}
	return p
}

// request describes one API call. path is relative to the base URL.
type request struct {
	method      string
	path        string
	body        io.Reader
	contentType string
}

func jsonRequest(method, path string, in any) (request, error) {
	r := request{method: method, path: path}
	if in == nil {
		return r, nil
	}
	data, err := json.Marshal(in)
	if err != nil {
		return r, fmt.Errorf("encode request: %w", err)
	}
	r.body = bytes.NewReader(data)
	r.contentType = contentTypeJSON
	return r, nil
}

// do sends r and decodes a 2xx JSON body into out. Non-2xx responses come
// back as *APIError; transport errors are returned as the HTTP client
// reported them.
func (c *Client) do(ctx context.Context, r request, out any) error {
	if c == nil || c.http == nil {
		return ErrClientNotReady
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL.String()+r.path, r.body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", contentTypeJSON)
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	if id := requestIDFromContext(ctx); id != "" {
		req.Header.Set(middleware.RequestIDHeader, id)
	}

	c.metrics.Inc(MetricRequestTotal)
	start := time.Now()
	resp, err := c.http.Do(req)
	if c.metrics.LatencyEnabled() {
		c.metrics.Observe(MetricRequestLatency, time.Since(start))
	}
	if err != nil {
		c.metrics.Inc(MetricNetworkError)
		c.metrics.Inc(MetricRequestFailure)
		c.logger.DebugContext(ctx, "request failed", "method", r.method, "path", r.path, "error", err)
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.metrics.Inc(MetricNetworkError)
		c.metrics.Inc(MetricRequestFailure)
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.Inc(MetricRequestFailure)
		requestID := resp.Header.Get(middleware.RequestIDHeader)
		if requestID == "" {
			requestID = req.Header.Get(middleware.RequestIDHeader)
		}
		apiErr := newAPIError(r.method, r.path, resp.StatusCode, requestID, body)
		c.logger.DebugContext(ctx, "request rejected",
			"method", r.method, "path", r.path, "status", resp.StatusCode, "detail", apiErr.Detail)
		return apiErr
	}

	c.metrics.Inc(MetricRequestSuccess)
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", ErrDecodeResponse, err)
	}
	return nil
}
