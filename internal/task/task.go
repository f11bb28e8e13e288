package task

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind discriminates the unit of work a Task carries.
type Kind string

const (
	KindMessage Kind = "message"
	KindPoll    Kind = "poll"
	KindDelete  Kind = "delete_message"
)

func (k Kind) Valid() bool {
	switch k {
	case KindMessage, KindPoll, KindDelete:
		return true
	}
	return false
}

// AttachmentPhoto is the only file_type with dedicated transport handling;
// every other non-empty value is sent as a generic document.
const AttachmentPhoto = "photo"

// Quiz is the payload of a poll task.
type Quiz struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	// Correct is the zero-based index of the right answer.
	Correct int `json:"correct"`
}

// Task is one unit of scheduled outbound work.
//
// The ID doubles as the storage key in the queue directory and as the
// correlation key for delivery receipts. It is assigned by the producer
// (or by DeriveDeletion for follow-up tasks) and never changes.
type Task struct {
	ID         string
	Kind       Kind
	Recipients []string

	// Message payload.
	Text     string
	FilePath string
	FileType string

	// Poll payload.
	Quiz *Quiz

	// Delete payload: exactly one (recipient, message) pair.
	ChatID    string
	MessageID int

	// NotBefore gates execution; zero means eligible immediately.
	NotBefore time.Time

	// ExpiresAfter, when positive on a message task, causes a delete_message
	// task to be derived per successfully delivered recipient.
	ExpiresAfter time.Duration

	// Label is a human-readable name kept for audit history only.
	Label string
}

// Ready reports whether the task is eligible to run at the given time.
func (t Task) Ready(now time.Time) bool {
	return t.NotBefore.IsZero() || !now.Before(t.NotBefore)
}

// Validate checks the kind-specific payload shape.
func (t Task) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return errors.New("task id is empty")
	}
	switch t.Kind {
	case KindMessage:
		if len(t.Recipients) == 0 {
			return errors.New("message task has no recipients")
		}
		if t.Text == "" && t.FilePath == "" {
			return errors.New("message task has neither text nor attachment")
		}
	case KindPoll:
		if len(t.Recipients) == 0 {
			return errors.New("poll task has no recipients")
		}
		if t.Quiz == nil {
			return errors.New("poll task has no quiz payload")
		}
		if strings.TrimSpace(t.Quiz.Question) == "" {
			return errors.New("poll question is empty")
		}
		if len(t.Quiz.Options) < 2 {
			return errors.New("poll needs at least two options")
		}
		if t.Quiz.Correct < 0 || t.Quiz.Correct >= len(t.Quiz.Options) {
			return fmt.Errorf("poll correct index %d out of range", t.Quiz.Correct)
		}
	case KindDelete:
		if strings.TrimSpace(t.ChatID) == "" {
			return errors.New("delete task has no chat_id")
		}
		if t.MessageID == 0 {
			return errors.New("delete task has no message_id")
		}
	default:
		return fmt.Errorf("unknown task type %q", string(t.Kind))
	}
	return nil
}
