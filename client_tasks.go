package reelclient

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// CreateTask submits a reel URL for processing.
func (c *Client) CreateTask(ctx context.Context, in TaskCreate) (*Task, error) {
	in.URL = strings.TrimSpace(in.URL)
	if in.URL == "" {
		return nil, ErrEmptyURL
	}

	r, err := jsonRequest(http.MethodPost, "/tasks", in)
	if err != nil {
		return nil, err
	}
	var task Task
	if err := c.do(ctx, r, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// ListTasks returns the caller's tasks, newest first as the server orders them.
func (c *Client) ListTasks(ctx context.Context) ([]Task, error) {
	tasks := []Task{}
	if err := c.do(ctx, request{method: http.MethodGet, path: "/tasks"}, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// GetTask fetches one of the caller's tasks.
func (c *Client) GetTask(ctx context.Context, id int64) (*Task, error) {
	if id <= 0 {
		return nil, ErrInvalidTaskID
	}
	var task Task
	if err := c.do(ctx, request{method: http.MethodGet, path: taskPath(id)}, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// CancelTask cancels a pending or processing task. Finished tasks are
// rejected by the server with ErrBadRequest.
func (c *Client) CancelTask(ctx context.Context, id int64) (*Task, error) {
	if id <= 0 {
		return nil, ErrInvalidTaskID
	}
	var task Task
	if err := c.do(ctx, request{method: http.MethodPatch, path: taskPath(id) + "/cancel"}, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// GetTranscript fetches the transcript of a completed task. Any other status
// yields ErrBadRequest.
func (c *Client) GetTranscript(ctx context.Context, id int64) (*Transcript, error) {
	if id <= 0 {
		return nil, ErrInvalidTaskID
	}
	var tr Transcript
	if err := c.do(ctx, request{method: http.MethodGet, path: taskPath(id) + "/transcript"}, &tr); err != nil {
		return nil, err
	}
	return &tr, nil
}

func taskPath(id int64) string {
	return fmt.Sprintf("/tasks/%d", id)
}
