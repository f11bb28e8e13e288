package receipt

import (
	"context"
	"time"
)

// Status of one delivery receipt. Receipts exist only for successful
// dispatches; failed sends surface through the task_history counters.
type Status string

const (
	StatusSent    Status = "sent"
	StatusDeleted Status = "deleted"
)

// Config configures the receipt database.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// Receipt is the outcome of one (task, recipient) dispatch.
type Receipt struct {
	ID          int64
	TaskID      string
	ChatID      string
	MessageID   int
	SentAt      time.Time
	Status      Status
	Views       int
	Forwards    int
	Reactions   int
	Replies     int
	LastUpdated time.Time
}

// Engagement is the analytics payload written back by the external refresher.
type Engagement struct {
	Views     int
	Forwards  int
	Reactions int
	Replies   int
}

// HistoryEntry records one pass of the dispatch loop over a task.
// Keep it compact and schema-stable.
type HistoryEntry struct {
	TaskID     string
	Kind       string
	Label      string
	Recipients int
	OK         int
	Failed     int
	Took       time.Duration
	Error      string
	At         time.Time
}

// Store is the persistence API used by the dispatch loop and by the
// analytics refresher's write-back contract.
type Store interface {
	Create(ctx context.Context, r Receipt) error
	// MarkDeleted transitions the matching 'sent' receipt to 'deleted'.
	// It reports whether a row was updated.
	MarkDeleted(ctx context.Context, chatID string, messageID int) (bool, error)
	// ListTrackable returns receipts still in 'sent' status, i.e. the set the
	// analytics refresher should poll the transport about.
	ListTrackable(ctx context.Context) ([]Receipt, error)
	UpdateEngagement(ctx context.Context, chatID string, messageID int, eg Engagement, at time.Time) error
	AppendHistory(ctx context.Context, e HistoryEntry) error
	Close() error
}
