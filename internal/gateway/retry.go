package gateway

import (
	"context"
	"errors"
	"time"

	logx "tgcourier/pkg/logx"
)

// RetryConfig configures the bounded-retry decorator. Max is the number of
// retries after the first attempt; 0 keeps the attempt-once policy.
type RetryConfig struct {
	Max  int
	Base time.Duration
}

// WithRetry wraps a Gateway with bounded retries for transient transport
// failures. Permanent payload failures (ErrBadPayload) and context
// cancellation are returned immediately. The decorator keeps the core loop
// unaware of retry policy.
func WithRetry(inner Gateway, cfg RetryConfig, log logx.Logger) Gateway {
	if cfg.Max <= 0 {
		return inner
	}
	if cfg.Base <= 0 {
		cfg.Base = 200 * time.Millisecond
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &retryGateway{inner: inner, cfg: cfg, log: log}
}

type retryGateway struct {
	inner Gateway
	cfg   RetryConfig
	log   logx.Logger
}

func (g *retryGateway) do(ctx context.Context, op string, fn func() (int, error)) (int, error) {
	var last error
	for i := 0; i <= g.cfg.Max; i++ {
		id, err := fn()
		if err == nil {
			return id, nil
		}
		if errors.Is(err, ErrBadPayload) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return 0, err
		}
		last = err
		if i == g.cfg.Max {
			break
		}
		delay := g.cfg.Base + time.Duration(i)*g.cfg.Base/2
		g.log.Debug("transport retry scheduled",
			logx.String("op", op), logx.Int("attempt", i+2), logx.Duration("delay", delay), logx.Err(err))
		tmr := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			if !tmr.Stop() {
				<-tmr.C
			}
			return 0, ctx.Err()
		case <-tmr.C:
		}
	}
	return 0, last
}

func (g *retryGateway) SendText(ctx context.Context, recipient, text string) (int, error) {
	return g.do(ctx, "send_text", func() (int, error) {
		return g.inner.SendText(ctx, recipient, text)
	})
}

func (g *retryGateway) SendPhoto(ctx context.Context, recipient, path, caption string) (int, error) {
	return g.do(ctx, "send_photo", func() (int, error) {
		return g.inner.SendPhoto(ctx, recipient, path, caption)
	})
}

func (g *retryGateway) SendDocument(ctx context.Context, recipient, path, caption string) (int, error) {
	return g.do(ctx, "send_document", func() (int, error) {
		return g.inner.SendDocument(ctx, recipient, path, caption)
	})
}

func (g *retryGateway) SendPoll(ctx context.Context, recipient, question string, options []string, correct int) (int, error) {
	return g.do(ctx, "send_poll", func() (int, error) {
		return g.inner.SendPoll(ctx, recipient, question, options, correct)
	})
}

func (g *retryGateway) DeleteMessage(ctx context.Context, recipient string, messageID int) error {
	_, err := g.do(ctx, "delete_message", func() (int, error) {
		return 0, g.inner.DeleteMessage(ctx, recipient, messageID)
	})
	return err
}
