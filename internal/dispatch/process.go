package dispatch

import (
	"context"
	"time"

	"tgcourier/internal/receipt"
	"tgcourier/internal/task"
	logx "tgcourier/pkg/logx"
)

// process dispatches one ready task and reports whether it was fully
// attempted. Per-recipient errors are contained here and the caller removes
// the task afterwards; the one exception is shutdown mid-task, where process
// returns false so the record survives for the next run.
func (d *Daemon) process(ctx context.Context, t task.Task) bool {
	start := time.Now()
	log := d.log.With(logx.String("task", t.ID), logx.String("kind", string(t.Kind)))
	log.Info("task started", logx.Int("recipients", len(t.Recipients)))

	var ok, failed int
	var firstErr error

	switch t.Kind {
	case task.KindMessage:
		for _, rcpt := range t.Recipients {
			if err := d.sendMessage(ctx, t, rcpt); err != nil {
				failed++
				if firstErr == nil {
					firstErr = err
				}
				log.Warn("send failed", logx.String("recipient", rcpt), logx.Err(err))
				continue
			}
			ok++
		}
	case task.KindPoll:
		for _, rcpt := range t.Recipients {
			if err := d.sendPoll(ctx, t, rcpt); err != nil {
				failed++
				if firstErr == nil {
					firstErr = err
				}
				log.Warn("poll send failed", logx.String("recipient", rcpt), logx.Err(err))
				continue
			}
			ok++
		}
	case task.KindDelete:
		if err := d.deleteMessage(ctx, t); err != nil {
			failed++
			firstErr = err
			log.Warn("delete failed", logx.String("recipient", t.ChatID),
				logx.Int("message_id", t.MessageID), logx.Err(err))
		} else {
			ok++
		}
	}

	// Cancellation fails every recipient it reaches; consuming the task now
	// would silently drop the unsent tail.
	if ctx.Err() != nil && failed > 0 {
		log.Info("dispatch interrupted; task retained",
			logx.Int("ok", ok), logx.Int("failed", failed))
		return false
	}

	entry := receipt.HistoryEntry{
		TaskID:     t.ID,
		Kind:       string(t.Kind),
		Label:      t.Label,
		Recipients: len(t.Recipients),
		OK:         ok,
		Failed:     failed,
		Took:       time.Since(start),
		At:         d.now(),
	}
	if t.Kind == task.KindDelete {
		entry.Recipients = 1
	}
	if firstErr != nil {
		entry.Error = firstErr.Error()
	}
	if err := d.receipts.AppendHistory(ctx, entry); err != nil {
		log.Error("history append failed", logx.Err(err))
	}

	fields := []logx.Field{
		logx.Int("ok", ok), logx.Int("failed", failed),
		logx.Duration("took", time.Since(start)),
	}
	if failed > 0 {
		log.Warn("task finished with failures", fields...)
	} else {
		log.Info("task finished", fields...)
	}
	return true
}

// sendMessage delivers to one recipient: attachment-aware send, receipt
// creation, and (for self-expiring messages) deletion derivation.
func (d *Daemon) sendMessage(ctx context.Context, t task.Task, rcpt string) error {
	if err := d.pace(ctx); err != nil {
		return err
	}

	var (
		msgID int
		err   error
	)
	switch {
	case t.FilePath == "":
		msgID, err = d.gw.SendText(ctx, rcpt, t.Text)
	case t.FileType == task.AttachmentPhoto:
		msgID, err = d.gw.SendPhoto(ctx, rcpt, t.FilePath, t.Text)
	default:
		msgID, err = d.gw.SendDocument(ctx, rcpt, t.FilePath, t.Text)
	}
	if err != nil {
		return err
	}

	sentAt := d.now()
	if err := d.receipts.Create(ctx, receipt.Receipt{
		TaskID:    t.ID,
		ChatID:    rcpt,
		MessageID: msgID,
		SentAt:    sentAt,
		Status:    receipt.StatusSent,
	}); err != nil {
		d.log.Error("receipt create failed", logx.String("task", t.ID),
			logx.String("recipient", rcpt), logx.Err(err))
	}

	if t.ExpiresAfter > 0 {
		del := task.DeriveDeletion(t, rcpt, msgID, sentAt.Add(t.ExpiresAfter))
		if err := d.queue.Write(ctx, del); err != nil {
			d.log.Error("deletion enqueue failed", logx.String("task", t.ID),
				logx.String("recipient", rcpt), logx.Err(err))
		} else {
			d.log.Debug("deletion scheduled", logx.String("task", t.ID),
				logx.String("derived", del.ID), logx.Time("delete_at", del.NotBefore))
		}
	}
	return nil
}

// sendPoll delivers one quiz. The transport returns the created message, so
// polls get receipts like messages do.
func (d *Daemon) sendPoll(ctx context.Context, t task.Task, rcpt string) error {
	if err := d.pace(ctx); err != nil {
		return err
	}
	msgID, err := d.gw.SendPoll(ctx, rcpt, t.Quiz.Question, t.Quiz.Options, t.Quiz.Correct)
	if err != nil {
		return err
	}
	if err := d.receipts.Create(ctx, receipt.Receipt{
		TaskID:    t.ID,
		ChatID:    rcpt,
		MessageID: msgID,
		SentAt:    d.now(),
		Status:    receipt.StatusSent,
	}); err != nil {
		d.log.Error("receipt create failed", logx.String("task", t.ID),
			logx.String("recipient", rcpt), logx.Err(err))
	}
	return nil
}

func (d *Daemon) deleteMessage(ctx context.Context, t task.Task) error {
	if err := d.pace(ctx); err != nil {
		return err
	}
	if err := d.gw.DeleteMessage(ctx, t.ChatID, t.MessageID); err != nil {
		return err
	}
	updated, err := d.receipts.MarkDeleted(ctx, t.ChatID, t.MessageID)
	if err != nil {
		d.log.Error("receipt transition failed", logx.String("task", t.ID), logx.Err(err))
		return nil
	}
	if !updated {
		// Deletes for polls sent before receipt tracking, or manual enqueues.
		d.log.Debug("no receipt matched deletion", logx.String("recipient", t.ChatID),
			logx.Int("message_id", t.MessageID))
	}
	return nil
}

// pace enforces the global send spacing. Context errors surface so shutdown
// isn't held hostage by the limiter.
func (d *Daemon) pace(ctx context.Context) error {
	return d.currentLimiter().Wait(ctx)
}
