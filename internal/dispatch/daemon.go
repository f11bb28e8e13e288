package dispatch

import (
	"context"
	"errors"
	"time"

	"tgcourier/internal/queue"
	logx "tgcourier/pkg/logx"
)

// Run drives poll cycles until ctx is cancelled. It never returns because of
// task failures; those are contained inside the cycle.
func (d *Daemon) Run(ctx context.Context) error {
	d.mu.Lock()
	interval := d.cfg.PollInterval
	sendEvery := d.cfg.SendInterval
	d.mu.Unlock()

	d.log.Info("dispatch loop started",
		logx.Duration("poll_interval", interval),
		logx.Duration("send_interval", sendEvery))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Scan once right away; tasks enqueued while the daemon was down must
	// not wait out a full poll interval after restart.
	d.RunCycle(ctx, d.now())

	for {
		select {
		case <-ctx.Done():
			d.log.Info("dispatch loop stopped")
			return ctx.Err()
		case <-ticker.C:
		case <-d.nudge:
		}
		d.RunCycle(ctx, d.now())
	}
}

// RunCycle performs one full pass over the queue and returns how many tasks
// were consumed. Exposed for tests; Run calls it on every tick.
func (d *Daemon) RunCycle(ctx context.Context, now time.Time) int {
	ids, err := d.queue.List(ctx)
	if err != nil {
		d.log.Error("queue enumeration failed", logx.Err(err))
		return 0
	}

	processed := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return processed
		}

		t, err := d.queue.Read(ctx, id)
		if err != nil {
			switch {
			case errors.Is(err, queue.ErrNotFound):
				// Consumed or cancelled by a concurrent actor.
				delete(d.suspects, id)
			case queue.IsMalformed(err):
				if !d.suspects[id] {
					// First sighting: the producer may still be writing
					// this file. Leave it for one more cycle.
					d.suspects[id] = true
					d.log.Warn("unparseable task document; rechecking next cycle",
						logx.String("task", id), logx.Err(err))
					continue
				}
				delete(d.suspects, id)
				d.log.Warn("unparseable task document", logx.String("task", id), logx.Err(err))
				if qerr := d.queue.Quarantine(ctx, id); qerr != nil {
					d.log.Error("quarantine failed", logx.String("task", id), logx.Err(qerr))
				}
			default:
				d.log.Error("task read failed", logx.String("task", id), logx.Err(err))
			}
			continue
		}
		delete(d.suspects, id)

		// Not ready yet: leave the document untouched for a later cycle.
		if !t.Ready(now) {
			continue
		}

		if !d.process(ctx, t) {
			// Shutdown hit mid-task; keep the record so a restart
			// finishes the remaining recipients.
			return processed
		}

		// The whole record is consumed after one pass, regardless of
		// per-recipient outcome.
		if err := d.queue.Remove(ctx, t.ID); err != nil {
			d.log.Error("task remove failed", logx.String("task", t.ID), logx.Err(err))
		}
		processed++
	}
	return processed
}
