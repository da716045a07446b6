package reelclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TaskStatus is the lifecycle state of a processing task. The backend owns
// the set; the client only interprets the values below.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusProcessing TaskStatus = "processing"
	StatusCompleted  TaskStatus = "completed"
	StatusFailed     TaskStatus = "failed"
	StatusCancelled  TaskStatus = "cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether the task can no longer change state.
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Cancellable mirrors the backend rule: only non-terminal tasks can be cancelled.
func (s TaskStatus) Cancellable() bool {
	return s == StatusPending || s == StatusProcessing
}

// Task is the read-only view of a processing task.
type Task struct {
	ID           int64      `json:"id" yaml:"id"`
	URL          string     `json:"url" yaml:"url"`
	Status       TaskStatus `json:"status" yaml:"status"`
	Transcript   *string    `json:"transcript" yaml:"transcript"`
	ErrorMessage *string    `json:"error_message" yaml:"error_message"`
	Language     *string    `json:"language" yaml:"language"`
	Topics       *string    `json:"topics" yaml:"topics"`
	CreatedAt    Timestamp  `json:"created_at" yaml:"created_at"`
	UpdatedAt    Timestamp  `json:"updated_at" yaml:"updated_at"`
	UserID       *int64     `json:"user_id,omitempty" yaml:"user_id,omitempty"`
}

// TopicList splits the comma separated Topics field.
func (t Task) TopicList() []string {
	if t.Topics == nil {
		return nil
	}
	return splitTopics(*t.Topics)
}

// TaskCreate is the body of POST /tasks.
type TaskCreate struct {
	URL string `json:"url" yaml:"url"`
}

// Transcript is the payload of GET /tasks/{id}/transcript.
type Transcript struct {
	ID         int64   `json:"id" yaml:"id"`
	Transcript *string `json:"transcript" yaml:"transcript"`
	Language   *string `json:"language" yaml:"language"`
	Topics     *string `json:"topics" yaml:"topics"`
}

// Text returns the transcript text or "".
func (t Transcript) Text() string {
	if t.Transcript == nil {
		return ""
	}
	return *t.Transcript
}

// TopicList splits the comma separated Topics field.
func (t Transcript) TopicList() []string {
	if t.Topics == nil {
		return nil
	}
	return splitTopics(*t.Topics)
}

// User is returned by registration.
type User struct {
	ID        int64     `json:"id" yaml:"id"`
	Username  string    `json:"username" yaml:"username"`
	CreatedAt Timestamp `json:"created_at" yaml:"created_at"`
}

// TokenResponse is the body of POST /auth/token.
type TokenResponse struct {
	AccessToken string `json:"access_token" yaml:"access_token"`
	TokenType   string `json:"token_type" yaml:"token_type"`
}

func splitTopics(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Timestamp accepts RFC 3339 timestamps as well as the zone-less ISO 8601
// form the backend emits for naive UTC datetimes.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("timestamp: unrecognized format %q", raw)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// MarshalYAML mirrors MarshalJSON for YAML encoders.
func (t Timestamp) MarshalYAML() (any, error) {
	if t.IsZero() {
		return nil, nil
	}
	return t.UTC().Format(time.RFC3339Nano), nil
}
