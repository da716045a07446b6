package fakeapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MrEthical07/reelclient/middleware"
)

const userKey = "fakeapi.user"

type credentials struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type createTaskBody struct {
	URL string `json:"url" binding:"required"`
}

type userResponse struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	CreatedAt string `json:"created_at"`
}

type taskResponse struct {
	ID           int64   `json:"id"`
	URL          string  `json:"url"`
	Status       string  `json:"status"`
	Transcript   *string `json:"transcript"`
	ErrorMessage *string `json:"error_message"`
	Language     *string `json:"language"`
	Topics       *string `json:"topics"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

func toTaskResponse(t *task) taskResponse {
	return taskResponse{
		ID:           t.id,
		URL:          t.url,
		Status:       t.status,
		Transcript:   t.transcript,
		ErrorMessage: t.errorMessage,
		Language:     t.language,
		Topics:       t.topics,
		CreatedAt:    naive(t.createdAt),
		UpdatedAt:    naive(t.updatedAt),
	}
}

func detail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": msg})
}

func unauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", "Bearer")
	detail(c, http.StatusUnauthorized, msg)
}

func (s *Server) requireUser(c *gin.Context) {
	raw, ok := middleware.BearerToken(c.GetHeader("Authorization"))
	if !ok {
		unauthorized(c, "Not authenticated")
		return
	}
	claims, err := s.tokens.Verify(raw)
	if err != nil {
		unauthorized(c, "Could not validate credentials")
		return
	}

	s.mu.Lock()
	u, exists := s.users[claims.Subject]
	s.mu.Unlock()
	if !exists {
		unauthorized(c, "Could not validate credentials")
		return
	}

	c.Set(userKey, u)
	c.Next()
}

func currentUser(c *gin.Context) *user {
	v, _ := c.Get(userKey)
	u, _ := v.(*user)
	return u
}

func (s *Server) handleRegister(c *gin.Context) {
	var body credentials
	if err := c.ShouldBindJSON(&body); err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}

	hash, err := hashPassword(s.hashing, body.Password)
	if err != nil {
		detail(c, http.StatusInternalServerError, err.Error())
		return
	}

	s.mu.Lock()
	if _, exists := s.users[body.Username]; exists {
		s.mu.Unlock()
		detail(c, http.StatusBadRequest, "Username already registered")
		return
	}
	u := s.addUserLocked(body.Username, hash)
	s.mu.Unlock()

	c.JSON(http.StatusCreated, userResponse{
		ID:        u.id,
		Username:  u.username,
		CreatedAt: naive(u.createdAt),
	})
}

func (s *Server) handleToken(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")
	if username == "" || password == "" {
		detail(c, http.StatusUnprocessableEntity, "username and password form fields are required")
		return
	}

	s.mu.Lock()
	u, ok := s.users[username]
	s.mu.Unlock()
	if !ok {
		unauthorized(c, "Incorrect username or password")
		return
	}
	if match, err := verifyPassword(password, u.hash); err != nil || !match {
		unauthorized(c, "Incorrect username or password")
		return
	}

	token, err := s.tokens.Issue(u.username)
	if err != nil {
		detail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer"})
}

func (s *Server) handleCreateTask(c *gin.Context) {
	var body createTaskBody
	if err := c.ShouldBindJSON(&body); err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	body.URL = strings.TrimSpace(body.URL)
	if body.URL == "" {
		detail(c, http.StatusUnprocessableEntity, "url must not be empty")
		return
	}

	u := currentUser(c)
	s.mu.Lock()
	s.nextTaskID++
	now := s.now().UTC()
	t := &task{
		id:        s.nextTaskID,
		url:       body.URL,
		status:    StatusPending,
		userID:    u.id,
		createdAt: now,
		updatedAt: now,
	}
	s.tasks[t.id] = t
	resp := toTaskResponse(t)
	s.mu.Unlock()

	c.JSON(http.StatusCreated, resp)
}

func (s *Server) handleListTasks(c *gin.Context) {
	u := currentUser(c)
	s.mu.Lock()
	tasks := s.userTasksLocked(u.id)
	out := make([]taskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, toTaskResponse(t))
	}
	s.mu.Unlock()

	c.JSON(http.StatusOK, out)
}

// ownedTaskLocked resolves :id for the current user. Tasks of other users are
// reported as missing. The caller must hold s.mu.
func (s *Server) ownedTaskLocked(c *gin.Context) (*task, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		detail(c, http.StatusUnprocessableEntity, "task id must be an integer")
		return nil, false
	}
	t, ok := s.tasks[id]
	if !ok || t.userID != currentUser(c).id {
		detail(c, http.StatusNotFound, "Task not found")
		return nil, false
	}
	return t, true
}

func (s *Server) handleGetTask(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.ownedTaskLocked(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toTaskResponse(t))
}

func (s *Server) handleCancelTask(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.ownedTaskLocked(c)
	if !ok {
		return
	}
	switch t.status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		detail(c, http.StatusBadRequest, "Cannot cancel task with status: "+t.status)
		return
	}
	t.status = StatusCancelled
	t.updatedAt = s.now().UTC()
	c.JSON(http.StatusOK, toTaskResponse(t))
}

func (s *Server) handleTranscript(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.ownedTaskLocked(c)
	if !ok {
		return
	}
	if t.status != StatusCompleted {
		detail(c, http.StatusBadRequest, "Transcript not available. Task status: "+t.status)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":         t.id,
		"transcript": t.transcript,
		"language":   t.language,
		"topics":     t.topics,
	})
}
