package task

import (
	"time"

	"github.com/google/uuid"
)

// NewID returns a fresh task identifier. Producer-side enqueue and derived
// follow-up tasks use the same scheme so queue file names stay uniform.
func NewID() string { return uuid.NewString() }

// DeriveDeletion synthesizes the follow-up delete_message task for one
// successfully delivered recipient of a self-expiring message. The deletion
// is just another queued task gated by NotBefore; expiration needs no timer
// subsystem of its own.
func DeriveDeletion(parent Task, recipient string, messageID int, deleteAt time.Time) Task {
	label := parent.Label
	if label != "" {
		label = "expire: " + label
	}
	return Task{
		ID:        NewID(),
		Kind:      KindDelete,
		ChatID:    recipient,
		MessageID: messageID,
		NotBefore: deleteAt,
		Label:     label,
	}
}
