package reelclient

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Mode selects how the API base URL is derived when BaseURL is empty.
type Mode string

const (
	// ModeDevelopment talks to a backend on localhost:8000.
	ModeDevelopment Mode = "development"
	// ModeProduction talks to Origin + "/api".
	ModeProduction Mode = "production"
)

const (
	// DevelopmentBaseURL is the API root used in development mode.
	DevelopmentBaseURL = "http://localhost:8000/api"
	// APIPrefix is appended to Origin in production mode.
	APIPrefix = "/api"
	// DefaultLoginPath is where the user agent is sent after a 401.
	DefaultLoginPath = "/login"
	// DefaultStorageKey is the durable key holding the raw token.
	DefaultStorageKey = "token"
)

// Config configures a Client. Build clones it; later mutation by the caller
// has no effect on a built Client.
type Config struct {
	Mode Mode
	// BaseURL overrides the mode-derived API root when set.
	BaseURL string
	// Origin is the scheme://host the frontend is served from. Required in
	// production mode unless BaseURL is set.
	Origin string

	LoginPath  string
	StorageKey string

	// HTTPTimeout bounds a whole request. Zero means no client-side timeout;
	// callers cancel through the context instead.
	HTTPTimeout time.Duration
	// RequestIDs stamps every outgoing request with an X-Request-ID header.
	RequestIDs bool
	UserAgent  string

	Events  EventsConfig
	Metrics MetricsConfig
}

/*
====================================
EVENTS / METRICS CONFIG
====================================
*/

// EventsConfig controls asynchronous session event dispatch.
type EventsConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters and latency histograms.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns a development configuration.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Mode:       ModeDevelopment,
		LoginPath:  DefaultLoginPath,
		StorageKey: DefaultStorageKey,
		UserAgent:  "reelclient",
		Events: EventsConfig{
			Enabled:    true,
			BufferSize: 64,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

// ProductionConfig returns a production configuration for the given origin.
func ProductionConfig(origin string) Config {
	cfg := defaultConfig()
	cfg.Mode = ModeProduction
	cfg.Origin = origin
	return cfg
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration error, wrapped with ErrInvalidConfig.
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func (c *Config) validate() error {
	switch c.Mode {
	case ModeDevelopment, ModeProduction:
	default:
		return fmt.Errorf("unsupported mode %q", c.Mode)
	}

	if _, err := c.ResolveBaseURL(); err != nil {
		return err
	}

	if !strings.HasPrefix(c.LoginPath, "/") {
		return errors.New("LoginPath must be an absolute path")
	}
	if strings.TrimSpace(c.StorageKey) == "" {
		return errors.New("StorageKey must not be empty")
	}
	if c.HTTPTimeout < 0 {
		return errors.New("HTTPTimeout must be >= 0")
	}
	if c.Events.Enabled && c.Events.BufferSize < 0 {
		return errors.New("Events BufferSize must be >= 0")
	}
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}
	return nil
}

// ResolveBaseURL returns the API root selected by BaseURL or Mode.
func (c Config) ResolveBaseURL() (*url.URL, error) {
	raw := strings.TrimSpace(c.BaseURL)
	if raw == "" {
		switch c.Mode {
		case ModeProduction:
			origin := strings.TrimRight(strings.TrimSpace(c.Origin), "/")
			if origin == "" {
				return nil, errors.New("production mode requires Origin or BaseURL")
			}
			raw = origin + APIPrefix
		default:
			raw = DevelopmentBaseURL
		}
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base URL %q must be http or https", raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base URL %q has no host", raw)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	return u, nil
}

/*
====================================
LINT
====================================
*/

// LintSeverity ranks lint warnings.
type LintSeverity int

const (
	LintInfo LintSeverity = iota
	LintWarn
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "INFO"
	case LintWarn:
		return "WARN"
	case LintHigh:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// LintWarning is a configuration that is valid but probably not intended.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintResult is the list of warnings produced by Lint.
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	out := make([]string, 0, len(r))
	for _, w := range r {
		out = append(out, w.Code)
	}
	return out
}

// BySeverity returns warnings at or above min.
func (r LintResult) BySeverity(min LintSeverity) LintResult {
	var out LintResult
	for _, w := range r {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError joins warnings at or above min into one error, or returns nil.
func (r LintResult) AsError(min LintSeverity) error {
	hits := r.BySeverity(min)
	if len(hits) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(hits))
	for _, w := range hits {
		msgs = append(msgs, fmt.Sprintf("[%s] %s: %s", w.Severity, w.Code, w.Message))
	}
	return errors.New("config lint: " + strings.Join(msgs, "; "))
}

// Lint reports suspicious but valid settings.
func (c Config) Lint() LintResult {
	var ws LintResult

	if u, err := c.ResolveBaseURL(); err == nil && c.Mode == ModeProduction && u.Scheme == "http" && !isLoopback(u.Hostname()) {
		ws = append(ws, LintWarning{
			Code:     "production_plain_http",
			Severity: LintHigh,
			Message:  "bearer tokens would be sent over plain HTTP",
		})
	}
	if c.BaseURL != "" && c.Origin != "" {
		ws = append(ws, LintWarning{
			Code:     "base_url_overrides_origin",
			Severity: LintWarn,
			Message:  "Origin is ignored because BaseURL is set",
		})
	}
	if c.HTTPTimeout == 0 {
		ws = append(ws, LintWarning{
			Code:     "no_http_timeout",
			Severity: LintInfo,
			Message:  "requests without a context deadline may hang indefinitely",
		})
	}
	if !c.Events.Enabled {
		ws = append(ws, LintWarning{
			Code:     "events_disabled",
			Severity: LintInfo,
			Message:  "session events are not dispatched",
		})
	}
	if c.Events.Enabled && !c.Events.DropIfFull {
		ws = append(ws, LintWarning{
			Code:     "events_blocking",
			Severity: LintWarn,
			Message:  "a slow event sink will block requests",
		})
	}
	return ws
}

func isLoopback(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}
