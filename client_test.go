package reelclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/reelclient/jwt"
	"github.com/MrEthical07/reelclient/middleware"
	"github.com/MrEthical07/reelclient/session"
	"github.com/MrEthical07/reelclient/storage"
)

type navRecorder struct {
	mu    sync.Mutex
	paths []string
}

func (n *navRecorder) Navigate(_ context.Context, path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
}

func (n *navRecorder) Paths() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.paths...)
}

type testEnv struct {
	client *Client
	store  *storage.Memory
	nav    *navRecorder
	sink   *ChannelSink
	server *httptest.Server
}

func newTestEnv(t *testing.T, handler http.HandlerFunc, mutate func(*Config)) *testEnv {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL + "/api"
	if mutate != nil {
		mutate(&cfg)
	}

	env := &testEnv{
		store:  storage.NewMemory(),
		nav:    &navRecorder{},
		sink:   NewChannelSink(64),
		server: srv,
	}
	c, err := New().
		WithConfig(cfg).
		WithStorage(env.store).
		WithNavigator(env.nav).
		WithEventSink(env.sink).
		Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(c.Close)
	env.client = c
	return env
}

func issueToken(t *testing.T, subject string) string {
	t.Helper()
	m, err := jwt.NewManager(jwt.Config{
		TTL:           time.Hour,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte("client-test-secret"),
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	tok, err := m.Issue(subject)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return tok
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func drainEvents(sink *ChannelSink) []EventType {
	var out []EventType
	for {
		select {
		case ev := <-sink.Events():
			out = append(out, ev.Type)
		default:
			return out
		}
	}
}

func TestCreateTaskReturnsServerTask(t *testing.T) {
	token := issueToken(t, "ana")
	var seen *http.Request
	var body map[string]string

	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		seen = r.Clone(context.Background())
		_ = json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, http.StatusCreated, `{"id":7,"url":"https://example.com/r","status":"pending",
			"transcript":null,"error_message":null,"language":null,"topics":null,
			"created_at":"2024-01-01T00:00:00","updated_at":"2024-01-01T00:00:00"}`)
	}, nil)
	if err := env.client.SetToken(context.Background(), token); err != nil {
		t.Fatalf("SetToken: %v", err)
	}

	task, err := env.client.CreateTask(context.Background(), TaskCreate{URL: " https://example.com/r "})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if task.ID != 7 || task.Status != StatusPending {
		t.Fatalf("task = %+v", task)
	}
	if seen.Method != http.MethodPost || seen.URL.Path != "/api/tasks" {
		t.Fatalf("request = %s %s", seen.Method, seen.URL.Path)
	}
	if got := seen.Header.Get("Authorization"); got != "Bearer "+token {
		t.Fatalf("Authorization = %q", got)
	}
	if got := seen.Header.Get("Content-Type"); got != "application/json" {
		t.Fatalf("Content-Type = %q", got)
	}
	if body["url"] != "https://example.com/r" {
		t.Fatalf("body = %v", body)
	}
}

func TestRequestsWithoutTokenCarryNoBearer(t *testing.T) {
	var auth, ct string
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		ct = r.Header.Get("Content-Type")
		writeJSON(w, http.StatusOK, `[]`)
	}, nil)

	tasks, err := env.client.ListTasks(context.Background())
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(tasks) != 0 || tasks == nil {
		t.Fatalf("tasks = %#v, want empty non-nil", tasks)
	}
	if auth != "" {
		t.Fatalf("Authorization = %q, want none", auth)
	}
	if ct != "application/json" {
		t.Fatalf("Content-Type = %q", ct)
	}
}

func TestUnauthorizedInvalidatesSessionAndNavigates(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeJSON(w, http.StatusUnauthorized, `{"detail":"Could not validate credentials"}`)
	}, nil)
	ctx := context.Background()
	if err := env.client.SetToken(ctx, issueToken(t, "ana")); err != nil {
		t.Fatalf("SetToken: %v", err)
	}

	_, err := env.client.GetTask(ctx, 3)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Detail != "Could not validate credentials" || apiErr.Path != "/tasks/3" {
		t.Fatalf("api error = %+v", apiErr)
	}

	if _, err := env.store.Get(ctx, DefaultStorageKey); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("persisted token still present: %v", err)
	}
	if env.client.IsAuthenticated() || env.client.Identity() != nil {
		t.Fatal("in-memory session not cleared")
	}
	if paths := env.nav.Paths(); len(paths) != 1 || paths[0] != "/login" {
		t.Fatalf("navigations = %v", paths)
	}

	snap := env.client.MetricsSnapshot()
	if snap.Counters[MetricUnauthorized] != 1 || snap.Counters[MetricLoginNavigation] != 1 {
		t.Fatalf("counters = %v", snap.Counters)
	}

	env.client.Close()
	got := drainEvents(env.sink)
	want := []EventType{EventSessionSet, EventRequestUnauthorized, EventSessionCleared, EventNavigateLogin}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
}

func TestUnauthorizedWithoutSessionStillNavigates(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, `{"detail":"Not authenticated"}`)
	}, func(c *Config) { c.LoginPath = "/signin" })

	_, err := env.client.ListTasks(context.Background())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v", err)
	}
	if paths := env.nav.Paths(); len(paths) != 1 || paths[0] != "/signin" {
		t.Fatalf("navigations = %v", paths)
	}
}

func TestConcurrentUnauthorizedClearsOnce(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, `{"detail":"expired"}`)
	}, nil)
	ctx := context.Background()
	if err := env.client.SetToken(ctx, issueToken(t, "ana")); err != nil {
		t.Fatalf("SetToken: %v", err)
	}

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.client.ListTasks(ctx)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("err = %v", err)
		}
	}
	snap := env.client.MetricsSnapshot()
	if snap.Counters[MetricSessionCleared] != 1 {
		t.Fatalf("session cleared %d times, want 1", snap.Counters[MetricSessionCleared])
	}
	if len(env.nav.Paths()) != n {
		t.Fatalf("navigations = %d, want %d", len(env.nav.Paths()), n)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   error
		detail string
	}{
		{http.StatusBadRequest, `{"detail":"Cannot cancel task with status: completed"}`, ErrBadRequest, "Cannot cancel task with status: completed"},
		{http.StatusNotFound, `{"detail":"Task not found"}`, ErrNotFound, "Task not found"},
		{http.StatusUnprocessableEntity, `{"detail":[{"loc":["body","url"],"msg":"field required"}]}`, ErrValidation, `[{"loc":["body","url"],"msg":"field required"}]`},
		{http.StatusInternalServerError, `oops`, ErrServer, "oops"},
		{http.StatusTeapot, ``, ErrUnexpectedStatus, ""},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			}, nil)
			_, err := env.client.CancelTask(context.Background(), 1)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("err %T is not *APIError", err)
			}
			if apiErr.StatusCode != tt.status || apiErr.Detail != tt.detail || apiErr.Method != http.MethodPatch {
				t.Fatalf("api error = %+v", apiErr)
			}
			if len(env.nav.Paths()) != 0 {
				t.Fatal("non-401 must not navigate")
			}
		})
	}
}

func TestNetworkErrorReturnedUnchanged(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {}, nil)
	ctx := context.Background()
	if err := env.client.SetToken(ctx, issueToken(t, "ana")); err != nil {
		t.Fatalf("SetToken: %v", err)
	}
	env.server.Close()

	_, err := env.client.ListTasks(ctx)
	if err == nil {
		t.Fatal("expected transport error")
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		t.Fatalf("transport error wrapped as APIError: %v", err)
	}
	if !env.client.IsAuthenticated() {
		t.Fatal("network failure must not clear the session")
	}
	if got := env.client.MetricsSnapshot().Counters[MetricNetworkError]; got != 1 {
		t.Fatalf("network errors = %d", got)
	}
}

func TestInputValidationSkipsNetwork(t *testing.T) {
	calls := 0
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) { calls++ }, nil)
	ctx := context.Background()

	if _, err := env.client.CreateTask(ctx, TaskCreate{URL: "  "}); !errors.Is(err, ErrEmptyURL) {
		t.Fatalf("CreateTask = %v", err)
	}
	if _, err := env.client.GetTask(ctx, 0); !errors.Is(err, ErrInvalidTaskID) {
		t.Fatalf("GetTask = %v", err)
	}
	if _, err := env.client.CancelTask(ctx, -1); !errors.Is(err, ErrInvalidTaskID) {
		t.Fatalf("CancelTask = %v", err)
	}
	if _, err := env.client.GetTranscript(ctx, 0); !errors.Is(err, ErrInvalidTaskID) {
		t.Fatalf("GetTranscript = %v", err)
	}
	if _, err := env.client.Login(ctx, "", "pw"); !errors.Is(err, ErrEmptyCredentials) {
		t.Fatalf("Login = %v", err)
	}
	if _, err := env.client.Register(ctx, "ana", ""); !errors.Is(err, ErrEmptyCredentials) {
		t.Fatalf("Register = %v", err)
	}
	if calls != 0 {
		t.Fatalf("server called %d times", calls)
	}
}

func TestLoginPostsFormAndSetsSession(t *testing.T) {
	token := issueToken(t, "ana")
	var ct, username, password string
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		ct = r.Header.Get("Content-Type")
		_ = r.ParseForm()
		username, password = r.PostForm.Get("username"), r.PostForm.Get("password")
		writeJSON(w, http.StatusOK, `{"access_token":"`+token+`","token_type":"bearer"}`)
	}, nil)
	ctx := context.Background()

	id, err := env.client.Login(ctx, "ana", "s3cret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if id == nil || id.Username != "ana" {
		t.Fatalf("identity = %+v", id)
	}
	if ct != "application/x-www-form-urlencoded" || username != "ana" || password != "s3cret" {
		t.Fatalf("form = %q %q %q", ct, username, password)
	}
	if got, _ := env.store.Get(ctx, DefaultStorageKey); got != token {
		t.Fatal("token not persisted")
	}
	if got := env.client.MetricsSnapshot().Counters[MetricLoginSuccess]; got != 1 {
		t.Fatalf("login success = %d", got)
	}
}

func TestLoginMalformedTokenFailsClosed(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"access_token":"not-a-jwt","token_type":"bearer"}`)
	}, nil)
	ctx := context.Background()

	_, err := env.client.Login(ctx, "ana", "pw")
	if !errors.Is(err, session.ErrTokenMalformed) {
		t.Fatalf("err = %v, want ErrTokenMalformed", err)
	}
	if env.client.IsAuthenticated() || env.store.Len() != 0 {
		t.Fatal("malformed token left state behind")
	}
	snap := env.client.MetricsSnapshot()
	if snap.Counters[MetricLoginFailure] != 1 || snap.Counters[MetricTokenMalformed] != 1 {
		t.Fatalf("counters = %v", snap.Counters)
	}
}

func TestRequestIDs(t *testing.T) {
	var ids []string
	var mu sync.Mutex
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		ids = append(ids, r.Header.Get(middleware.RequestIDHeader))
		mu.Unlock()
		writeJSON(w, http.StatusNotFound, `{"detail":"Task not found"}`)
	}, func(c *Config) { c.RequestIDs = true })

	_, _ = env.client.ListTasks(context.Background())
	_, err := env.client.GetTask(WithRequestID(context.Background(), "rid-42"), 9)

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.RequestID != "rid-42" {
		t.Fatalf("api error = %+v", apiErr)
	}
	if len(ids) != 2 || ids[0] == "" || ids[1] != "rid-42" {
		t.Fatalf("request ids = %v", ids)
	}
}

func TestRequestIDsOffByDefault(t *testing.T) {
	var id string
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		id = r.Header.Get(middleware.RequestIDHeader)
		writeJSON(w, http.StatusOK, `[]`)
	}, nil)
	if _, err := env.client.ListTasks(context.Background()); err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if id != "" {
		t.Fatalf("unexpected request id %q", id)
	}
}

func TestBuildRestoresPersistedSession(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemory()
	if err := st.Set(ctx, DefaultStorageKey, issueToken(t, "bo")); err != nil {
		t.Fatalf("Set: %v", err)
	}

	sink := NewChannelSink(8)
	c, err := New().WithStorage(st).WithEventSink(sink).Build(ctx)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if !c.IsAuthenticated() || c.Identity().Username != "bo" {
		t.Fatalf("identity = %+v", c.Identity())
	}
	if c.BaseURL() != DevelopmentBaseURL {
		t.Fatalf("base = %q", c.BaseURL())
	}
	if got := c.MetricsSnapshot().Counters[MetricSessionSet]; got != 1 {
		t.Fatalf("session set counter = %d, want 1", got)
	}

	c.Close()
	select {
	case ev := <-sink.Events():
		if ev.Type != EventSessionSet || ev.Username != "bo" || ev.Metadata["reason"] != "restored" {
			t.Fatalf("event = %+v", ev)
		}
	default:
		t.Fatal("no event for the restored session")
	}
}

func TestBuildWithoutPersistedTokenEmitsNothing(t *testing.T) {
	sink := NewChannelSink(8)
	c, err := New().WithEventSink(sink).Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	c.Close()
	if got := drainEvents(sink); len(got) != 0 {
		t.Fatalf("events = %v, want none", got)
	}
}

func TestBuilderRejectsReuseAndBadConfig(t *testing.T) {
	ctx := context.Background()
	b := New()
	c, err := b.Build(ctx)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	c.Close()
	if _, err := b.Build(ctx); err == nil {
		t.Fatal("second Build should fail")
	}

	cfg := DefaultConfig()
	cfg.Mode = ModeProduction
	if _, err := New().WithConfig(cfg).Build(ctx); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestNewClientSharesSession(t *testing.T) {
	ctx := context.Background()
	s, err := session.New(ctx, storage.NewMemory())
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}

	var changes []session.Reason
	s.Subscribe(func(ch session.Change) { changes = append(changes, ch.Reason) })

	c, err := NewClient(ctx, DefaultConfig(), s)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := c.SetToken(ctx, issueToken(t, "ana")); err != nil {
		t.Fatalf("SetToken: %v", err)
	}
	c.Close()

	if !s.IsAuthenticated() {
		t.Fatal("shared session lost its token")
	}
	if err := s.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if len(changes) != 2 || changes[1] != session.ReasonCleared {
		t.Fatalf("changes = %v", changes)
	}

	if _, err := NewClient(ctx, DefaultConfig(), nil); !errors.Is(err, ErrClientNotReady) {
		t.Fatalf("nil session err = %v", err)
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {}, nil)
	ctx := context.Background()
	if err := env.client.SetToken(ctx, issueToken(t, "ana")); err != nil {
		t.Fatalf("SetToken: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := env.client.Logout(ctx); err != nil {
			t.Fatalf("Logout #%d: %v", i+1, err)
		}
	}
	if env.client.IsAuthenticated() || env.store.Len() != 0 {
		t.Fatal("logout left state")
	}
	if got := env.client.MetricsSnapshot().Counters[MetricSessionCleared]; got != 1 {
		t.Fatalf("cleared = %d, want 1", got)
	}
}

func TestAPIErrorMessage(t *testing.T) {
	err := newAPIError("GET", "/tasks/1", 404, "", []byte(`{"detail":"Task not found"}`))
	if got := err.Error(); got != "GET /tasks/1: 404 Not Found: Task not found" {
		t.Fatalf("Error() = %q", got)
	}
	long := strings.Repeat("x", 300)
	if d := parseDetail([]byte(long)); len(d) != maxDetailLen+3 {
		t.Fatalf("detail length = %d", len(d))
	}
}

func TestSetTokenWithTrailingNewlineSendsCleanBearer(t *testing.T) {
	token := issueToken(t, "ana")
	var auth string
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		writeJSON(w, http.StatusOK, `{"id":1,"url":"u","status":"pending"}`)
	}, nil)
	ctx := context.Background()

	if err := env.client.SetToken(ctx, token+"\n"); err != nil {
		t.Fatalf("SetToken: %v", err)
	}
	if _, err := env.client.GetTask(ctx, 1); err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if auth != "Bearer "+token {
		t.Fatalf("Authorization = %q", auth)
	}
}

// A 401 is acted on whatever token the rejected request carried, so a late
// rejection of an old token also ends a session installed after it was sent.
func TestLate401ClearsNewerSession(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		writeJSON(w, http.StatusUnauthorized, `{"detail":"Could not validate credentials"}`)
	}, nil)
	ctx := context.Background()
	if err := env.client.SetToken(ctx, issueToken(t, "alice")); err != nil {
		t.Fatalf("SetToken alice: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := env.client.GetTask(ctx, 1)
		done <- err
	}()
	<-entered

	if err := env.client.SetToken(ctx, issueToken(t, "bob")); err != nil {
		t.Fatalf("SetToken bob: %v", err)
	}
	close(release)

	if err := <-done; !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
	if env.client.IsAuthenticated() {
		t.Fatal("expected the 401 to clear the session")
	}
	if paths := env.nav.Paths(); len(paths) != 1 {
		t.Fatalf("navigations = %v", paths)
	}
}
