package gateway

import (
	"context"
	"errors"
	"time"
)

// ErrBadPayload marks a permanent payload failure (e.g. a missing or empty
// attachment file). These are detected before any network call and are never
// worth retrying.
var ErrBadPayload = errors.New("bad payload")

// Config configures the Telegram adapter.
type Config struct {
	Token string
	// APIURL overrides the Bot API endpoint (tests, local bot API servers).
	APIURL string
	// CallTimeout bounds each outbound HTTP call so a stuck dispatch cannot
	// block the loop indefinitely.
	CallTimeout time.Duration
}

// Gateway is the only component allowed to perform outbound transport calls.
// Each method performs exactly one network operation and returns the
// transport-assigned message identifier (where the transport yields one) or
// an error. No internal retries; retry policy belongs to the caller.
type Gateway interface {
	SendText(ctx context.Context, recipient, text string) (int, error)
	SendPhoto(ctx context.Context, recipient, path, caption string) (int, error)
	SendDocument(ctx context.Context, recipient, path, caption string) (int, error)
	SendPoll(ctx context.Context, recipient, question string, options []string, correct int) (int, error)
	DeleteMessage(ctx context.Context, recipient string, messageID int) error
}
