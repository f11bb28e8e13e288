// Package dispatch runs the delivery daemon: a single cooperative loop that
// drains the task queue at a fixed interval.
//
// Per cycle it enumerates pending tasks, skips the ones whose send_at hasn't
// arrived (the poll loop itself is the timer), routes ready tasks to the
// gateway one recipient at a time under a global send-rate limiter, records
// delivery receipts, derives delete_message follow-ups for self-expiring
// messages, and removes each processed task exactly once regardless of
// per-recipient outcome. Failures are terminal for that (task, recipient)
// pair; there is no re-queue.
package dispatch
