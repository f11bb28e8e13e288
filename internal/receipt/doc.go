// Package receipt persists delivery outcomes.
//
// It owns two tables:
//   - sent_messages: one row per (task, recipient) successful dispatch. The
//     daemon creates rows with status 'sent' and later transitions them to
//     'deleted'; the analytics columns (views/forwards/reactions/replies)
//     are filled in by the external analytics refresher via UpdateEngagement.
//   - task_history: one audit row per processed task, success or not.
//
// Rows are never removed.
package receipt
