package reelclient

import (
	"fmt"
	"strings"
)

// CardAction is an action a task card offers.
type CardAction string

const (
	ActionViewTranscript CardAction = "view-transcript"
	ActionCancel         CardAction = "cancel"
)

// EventName is the name a rendered card emits when the action is taken.
// The payload is always the task ID.
func (a CardAction) EventName() string {
	switch a {
	case ActionViewTranscript:
		return "viewTranscript"
	case ActionCancel:
		return "cancel"
	default:
		return ""
	}
}

// Label is the button text.
func (a CardAction) Label() string {
	switch a {
	case ActionViewTranscript:
		return "View Transcript"
	case ActionCancel:
		return "Cancel"
	default:
		return ""
	}
}

// Card is the presentation contract for one task.
type Card struct {
	TaskID       int64
	Title        string
	StatusLabel  string
	Status       TaskStatus
	URL          string
	Language     string
	Topics       []string
	ErrorMessage string
	Actions      []CardAction
}

// CardFor derives the card for t. Completed tasks offer the transcript,
// pending and processing tasks offer cancellation, anything else offers
// nothing.
func CardFor(t Task) Card {
	c := Card{
		TaskID:      t.ID,
		Title:       fmt.Sprintf("#%d", t.ID),
		StatusLabel: strings.ToUpper(string(t.Status)),
		Status:      t.Status,
		URL:         t.URL,
		Topics:      t.TopicList(),
	}
	if t.Language != nil {
		c.Language = *t.Language
	}
	if t.ErrorMessage != nil && t.Status == StatusFailed {
		c.ErrorMessage = *t.ErrorMessage
	}

	switch {
	case t.Status == StatusCompleted:
		c.Actions = []CardAction{ActionViewTranscript}
	case t.Status.Cancellable():
		c.Actions = []CardAction{ActionCancel}
	}
	return c
}

// Has reports whether the card offers a.
func (c Card) Has(a CardAction) bool {
	for _, got := range c.Actions {
		if got == a {
			return true
		}
	}
	return false
}
