package queue

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "tgcourier/pkg/logx"
)

// settleDelay is how long the watcher waits after the last event on a task
// file before nudging the loop. The producer writes documents non-atomically,
// so reacting to the first event would scan mid-write.
const settleDelay = 250 * time.Millisecond

// Watch signals on nudge whenever a task document lands in the queue
// directory, so the dispatch loop can scan ahead of its next tick. The poll
// ticker remains the correctness mechanism; this only trims latency for
// immediate sends. Signals are best-effort (dropped if one is pending) and
// debounced by settleDelay so a document being written in several chunks
// yields one nudge after the writes quiet down.
//
// When the watcher breaks it is recreated with a small backoff; losing events
// is harmless because the next poll tick covers them.
func (s *DirStore) Watch(ctx context.Context, nudge chan<- struct{}) {
	const (
		backoffBase = 250 * time.Millisecond
		backoffMax  = 5 * time.Second
	)
	backoff := backoffBase

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	signal := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(settleDelay, func() {
			select {
			case nudge <- struct{}{}:
			default:
			}
		})
	}

	for {
		if ctx.Err() != nil {
			return
		}

		w, err := fsnotify.NewWatcher()
		if err == nil {
			err = w.Add(s.dir)
			if err != nil {
				_ = w.Close()
			}
		}
		if err != nil {
			s.log.Warn("queue watch init failed", logx.Err(err), logx.String("dir", s.dir))
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < backoffMax {
				backoff *= 2
			}
			continue
		}

		backoff = backoffBase
		s.log.Debug("queue watcher started", logx.String("dir", s.dir))

		broken := false
		for !broken {
			select {
			case <-ctx.Done():
				_ = w.Close()
				return
			case ev, ok := <-w.Events:
				if !ok {
					broken = true
					break
				}
				if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
					continue
				}
				if !strings.HasSuffix(ev.Name, taskExt) {
					continue
				}
				signal()
			case err, ok := <-w.Errors:
				if !ok {
					broken = true
					break
				}
				if err != nil {
					s.log.Warn("queue watch error", logx.Err(err), logx.String("dir", s.dir))
				}
			}
		}

		_ = w.Close()
		if ctx.Err() != nil {
			return
		}
		s.log.Warn("queue watcher stopped; restarting", logx.Duration("backoff", backoff))
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < backoffMax {
			backoff *= 2
		}
	}
}
