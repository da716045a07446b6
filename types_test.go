package reelclient

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTaskDecodesNaiveTimestamps(t *testing.T) {
	raw := `{"id":7,"url":"u","status":"pending","transcript":null,"error_message":null,
		"language":null,"topics":null,"created_at":"2024-01-01T00:00:00","updated_at":"2024-01-01T10:30:15.123456"}`

	var task Task
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if task.ID != 7 || task.Status != StatusPending || task.Transcript != nil {
		t.Fatalf("task = %+v", task)
	}
	want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if !task.CreatedAt.Equal(want) || task.CreatedAt.Location() != time.UTC {
		t.Fatalf("created_at = %v", task.CreatedAt)
	}
	if task.UpdatedAt.Nanosecond() != 123456000 {
		t.Fatalf("updated_at = %v", task.UpdatedAt)
	}
}

func TestTimestampFormats(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
		zero    bool
	}{
		{`"2024-05-06T07:08:09Z"`, false, false},
		{`"2024-05-06T09:08:09+02:00"`, false, false},
		{`"2024-05-06 07:08:09"`, false, false},
		{`null`, false, true},
		{`""`, false, true},
		{`"yesterday"`, true, false},
		{`12`, true, false},
	}
	for _, tt := range tests {
		var ts Timestamp
		err := json.Unmarshal([]byte(tt.in), &ts)
		if (err != nil) != tt.wantErr {
			t.Fatalf("%s: err = %v", tt.in, err)
		}
		if err == nil && ts.IsZero() != tt.zero {
			t.Fatalf("%s: zero = %v", tt.in, ts.IsZero())
		}
		if err == nil && !tt.zero && ts.Hour() != 7 {
			t.Fatalf("%s: hour = %d, want 7 UTC", tt.in, ts.Hour())
		}
	}
}

func TestStatusPredicates(t *testing.T) {
	if !StatusPending.Cancellable() || !StatusProcessing.Cancellable() || StatusCompleted.Cancellable() {
		t.Fatal("cancellable mismatch")
	}
	if !StatusFailed.Terminal() || StatusPending.Terminal() {
		t.Fatal("terminal mismatch")
	}
	if TaskStatus("queued").Valid() || !StatusCancelled.Valid() {
		t.Fatal("valid mismatch")
	}
}

func TestTranscriptHelpers(t *testing.T) {
	var tr Transcript
	if tr.Text() != "" || tr.TopicList() != nil {
		t.Fatal("empty transcript helpers")
	}
	text, topics := "hi", "a,b"
	tr = Transcript{Transcript: &text, Topics: &topics}
	if tr.Text() != "hi" || len(tr.TopicList()) != 2 {
		t.Fatalf("helpers = %q %v", tr.Text(), tr.TopicList())
	}
}

func TestTimestampMarshalYAML(t *testing.T) {
	v, err := Timestamp{}.MarshalYAML()
	if err != nil || v != nil {
		t.Fatalf("zero = %v, %v", v, err)
	}
	ts := Timestamp{time.Date(2025, 3, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))}
	v, err = ts.MarshalYAML()
	if err != nil || v != "2025-03-01T11:00:00Z" {
		t.Fatalf("value = %v, %v", v, err)
	}
}
