package reelclient

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/MrEthical07/reelclient/session"
	"github.com/MrEthical07/reelclient/storage"
)

// Builder assembles a Client. A Builder can be used once.
type Builder struct {
	config     Config
	storage    storage.Storage
	session    *session.Store
	navigator  Navigator
	eventSink  EventSink
	httpClient *http.Client
	logger     *slog.Logger

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithStorage sets the durable backend the session store persists the token
// in. Ignored when WithSession is also used. Defaults to storage.Memory.
func (b *Builder) WithStorage(st storage.Storage) *Builder {
	b.storage = st
	return b
}

// WithSession shares an existing session store. The Client does not close it.
func (b *Builder) WithSession(s *session.Store) *Builder {
	b.session = s
	return b
}

// WithNavigator sets where the client sends the user after a 401.
func (b *Builder) WithNavigator(n Navigator) *Builder {
	b.navigator = n
	return b
}

// WithEventSink sets the destination of session events.
func (b *Builder) WithEventSink(sink EventSink) *Builder {
	b.eventSink = sink
	return b
}

// WithHTTPClient sets the underlying client. Its Transport is wrapped, not replaced.
func (b *Builder) WithHTTPClient(c *http.Client) *Builder {
	b.httpClient = c
	return b
}

// WithLogger sets the structured logger. Output is discarded by default.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the request latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, restores the session from storage and
// returns a ready Client.
func (b *Builder) Build(ctx context.Context) (*Client, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	baseURL, err := cfg.ResolveBaseURL()
	if err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	store := b.session
	ownsSession := false
	if store == nil {
		st := b.storage
		if st == nil {
			st = storage.NewMemory()
		}
		store, err = session.New(ctx, st,
			session.WithKey(cfg.StorageKey),
			session.WithLogger(logger),
		)
		if err != nil {
			return nil, err
		}
		ownsSession = true
	}

	navigator := b.navigator
	if navigator == nil {
		navigator = logNavigator{logger: logger}
	}

	c := &Client{
		config:      cfg,
		baseURL:     baseURL,
		session:     store,
		ownsSession: ownsSession,
		navigator:   navigator,
		events:      newEventDispatcher(cfg.Events, b.eventSink),
		metrics:     NewMetrics(cfg.Metrics),
		logger:      logger,
	}
	c.http = c.newHTTPClient(b.httpClient)
	c.unsubscribe = store.Subscribe(c.onSessionChange)
	if ownsSession {
		// The store restored before the subscription existed.
		if state := store.State(); state.Authenticated() {
			c.onSessionChange(session.Change{Reason: session.ReasonRestored, State: state})
		}
	}

	b.built = true

	return c, nil
}

// NewClient is shorthand for New().WithConfig(cfg).WithSession(s).Build(ctx).
func NewClient(ctx context.Context, cfg Config, s *session.Store) (*Client, error) {
	if s == nil {
		return nil, ErrClientNotReady
	}
	return New().WithConfig(cfg).WithSession(s).Build(ctx)
}
