package queue

import (
	"context"
	"errors"
	"fmt"

	"tgcourier/internal/task"
)

// ErrNotFound means the task disappeared between List and Read. This is an
// expected producer/consumer race (e.g. the operator cancelled the task) and
// callers skip it silently.
var ErrNotFound = errors.New("task not found")

// MalformedError wraps a parse failure for a task document that does exist.
// The consumer quarantines these rather than retrying them forever.
type MalformedError struct {
	ID  string
	Err error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed task %s: %v", e.ID, e.Err)
}

func (e *MalformedError) Unwrap() error { return e.Err }

// IsMalformed reports whether err is a task parse failure.
func IsMalformed(err error) bool {
	var me *MalformedError
	return errors.As(err, &me)
}

// Store is the task queue contract used by the dispatch loop and (for derived
// deletion tasks) by the dispatch-success path.
type Store interface {
	// List returns the identifiers of all currently stored tasks, unordered.
	List(ctx context.Context) ([]string, error)
	// Read loads one task. Returns ErrNotFound if it vanished, or a
	// *MalformedError if the document exists but cannot be parsed.
	Read(ctx context.Context, id string) (task.Task, error)
	// Write creates or overwrites a task document atomically.
	Write(ctx context.Context, t task.Task) error
	// Remove deletes a task; removing an absent id is not an error.
	Remove(ctx context.Context, id string) error
	// Quarantine moves a task document out of the queue so it is never
	// picked up again; quarantining an absent id is not an error.
	Quarantine(ctx context.Context, id string) error
}
