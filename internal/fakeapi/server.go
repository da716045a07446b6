package fakeapi

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MrEthical07/reelclient/jwt"
)

// Task statuses as the backend spells them.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
)

// naiveLayout is how the backend renders datetimes: UTC without a zone.
const naiveLayout = "2006-01-02T15:04:05.999999"

var ErrTaskNotFound = errors.New("fakeapi: task not found")

// Options configures a Server.
type Options struct {
	// Secret signs tokens. A fixed development secret is used when empty.
	Secret   []byte
	TokenTTL time.Duration
	// Prefix is the route group, "/api" by default.
	Prefix string
}

type user struct {
	id        int64
	username  string
	hash      string
	createdAt time.Time
}

type task struct {
	id           int64
	url          string
	status       string
	transcript   *string
	errorMessage *string
	language     *string
	topics       *string
	userID       int64
	createdAt    time.Time
	updatedAt    time.Time
}

// Server holds users and tasks in memory. It is safe for concurrent use.
type Server struct {
	router  *gin.Engine
	tokens  *jwt.Manager
	hashing hashParams
	now     func() time.Time

	mu         sync.Mutex
	users      map[string]*user
	tasks      map[int64]*task
	nextUserID int64
	nextTaskID int64
	requests   []RecordedRequest
}

// RecordedRequest is what the server saw for one request.
type RecordedRequest struct {
	Method        string
	Path          string
	Authorization string
	ContentType   string
	RequestID     string
}

func New(opts Options) (*Server, error) {
	if len(opts.Secret) == 0 {
		opts.Secret = []byte("fakeapi-development-secret")
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 30 * time.Minute
	}
	if opts.Prefix == "" {
		opts.Prefix = "/api"
	}

	tokens, err := jwt.NewManager(jwt.Config{
		TTL:           opts.TokenTTL,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    opts.Secret,
	})
	if err != nil {
		return nil, fmt.Errorf("fakeapi: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		router:  router,
		tokens:  tokens,
		hashing: defaultHashParams,
		now:     time.Now,
		users:   make(map[string]*user),
		tasks:   make(map[int64]*task),
	}
	router.Use(s.record)

	api := router.Group(opts.Prefix)
	{
		auth := api.Group("/auth")
		auth.POST("/register", s.handleRegister)
		auth.POST("/token", s.handleToken)

		tasks := api.Group("/tasks", s.requireUser)
		tasks.POST("", s.handleCreateTask)
		tasks.GET("", s.handleListTasks)
		tasks.GET("/:id", s.handleGetTask)
		tasks.PATCH("/:id/cancel", s.handleCancelTask)
		tasks.GET("/:id/transcript", s.handleTranscript)
	}

	return s, nil
}

// Handler exposes the router for httptest or http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until the listener fails.
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

// IssueToken signs a token for username without checking that the user exists.
func (s *Server) IssueToken(username string) (string, error) {
	return s.tokens.Issue(username)
}

// AddUser registers a user directly. An existing user keeps its password.
func (s *Server) AddUser(username, password string) int64 {
	hash, err := hashPassword(s.hashing, password)
	if err != nil {
		panic(fmt.Sprintf("fakeapi: hash password: %v", err))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[username]; ok {
		return u.id
	}
	return s.addUserLocked(username, hash).id
}

func (s *Server) addUserLocked(username, hash string) *user {
	s.nextUserID++
	u := &user{
		id:        s.nextUserID,
		username:  username,
		hash:      hash,
		createdAt: s.now().UTC(),
	}
	s.users[username] = u
	return u
}

// Advance moves a task to processing, mimicking the worker picking it up.
func (s *Server) Advance(id int64) error {
	return s.update(id, func(t *task) {
		t.status = StatusProcessing
	})
}

// Complete finishes a task with a transcript.
func (s *Server) Complete(id int64, transcript, language, topics string) error {
	return s.update(id, func(t *task) {
		t.status = StatusCompleted
		t.transcript = &transcript
		t.language = &language
		t.topics = &topics
	})
}

// Fail marks a task failed with msg.
func (s *Server) Fail(id int64, msg string) error {
	return s.update(id, func(t *task) {
		t.status = StatusFailed
		t.errorMessage = &msg
	})
}

// Active returns the ids of pending and processing tasks in ascending order.
func (s *Server) Active() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0)
	for id, t := range s.tasks {
		if t.status == StatusPending || t.status == StatusProcessing {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Status reports the current status of a task.
func (s *Server) Status(id int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return "", ErrTaskNotFound
	}
	return t.status, nil
}

// Requests returns a copy of every request seen so far.
func (s *Server) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RecordedRequest(nil), s.requests...)
}

func (s *Server) update(id int64, fn func(*task)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return ErrTaskNotFound
	}
	fn(t)
	t.updatedAt = s.now().UTC()
	return nil
}

func (s *Server) record(c *gin.Context) {
	rec := RecordedRequest{
		Method:        c.Request.Method,
		Path:          c.Request.URL.Path,
		Authorization: c.GetHeader("Authorization"),
		ContentType:   c.GetHeader("Content-Type"),
		RequestID:     c.GetHeader("X-Request-ID"),
	}
	s.mu.Lock()
	s.requests = append(s.requests, rec)
	s.mu.Unlock()

	if rec.RequestID != "" {
		c.Header("X-Request-ID", rec.RequestID)
	}
	c.Next()
}

// userTasksLocked returns the user's tasks newest first.
func (s *Server) userTasksLocked(userID int64) []*task {
	out := make([]*task, 0)
	for _, t := range s.tasks {
		if t.userID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].createdAt.Equal(out[j].createdAt) {
			return out[i].id > out[j].id
		}
		return out[i].createdAt.After(out[j].createdAt)
	})
	return out
}

func naive(t time.Time) string {
	return t.UTC().Format(naiveLayout)
}
