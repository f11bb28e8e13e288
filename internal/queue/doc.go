// Package queue implements the durable holding area for pending tasks.
//
// One JSON document per task, named <id>.json, in a single directory that is
// shared with the admin front-end (the producer). Writes are atomic
// (tmp + rename) so the consumer never observes a partial document, and reads
// tolerate files vanishing between enumeration and open.
package queue
