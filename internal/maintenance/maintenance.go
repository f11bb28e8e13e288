// Package maintenance runs periodic housekeeping: pruning old quarantined
// documents and reporting queue health.
package maintenance

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"tgcourier/internal/queue"
	"tgcourier/internal/receipt"
	logx "tgcourier/pkg/logx"
)

const defaultSpec = "0 3 * * *"

type Config struct {
	Enabled bool
	// Cron is a 5-field cron expression; seconds are optional.
	Cron string
	// QuarantineMaxAge is how long quarantined documents are kept before
	// the sweep removes them. Zero disables pruning.
	QuarantineMaxAge time.Duration
}

type Service struct {
	cfg      Config
	store    *queue.DirStore
	receipts receipt.Store
	log      logx.Logger

	parser cron.Parser

	mu sync.Mutex
	c  *cron.Cron
}

func New(cfg Config, store *queue.DirStore, receipts receipt.Store, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:      cfg,
		store:    store,
		receipts: receipts,
		log:      log,
		parser:   cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

func (s *Service) Enabled() bool { return s.cfg.Enabled }

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}

	spec := strings.TrimSpace(s.cfg.Cron)
	if spec == "" {
		spec = defaultSpec
	}
	sched, err := s.parser.Parse(spec)
	if err != nil {
		return err
	}

	c := cron.New(cron.WithParser(s.parser))
	c.Schedule(sched, cron.FuncJob(func() { s.Sweep(ctx) }))
	c.Start()
	s.c = c
	s.log.Info("maintenance scheduled", logx.String("cron", spec),
		logx.Duration("quarantine_max_age", s.cfg.QuarantineMaxAge))
	return nil
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
}

// Sweep runs one housekeeping pass. Exposed so it can be triggered outside
// the cron schedule.
func (s *Service) Sweep(ctx context.Context) {
	start := time.Now()

	if s.cfg.QuarantineMaxAge > 0 {
		removed, err := s.store.SweepQuarantine(ctx, s.cfg.QuarantineMaxAge)
		if err != nil {
			s.log.Warn("quarantine sweep failed", logx.Err(err))
		} else if removed > 0 {
			s.log.Info("quarantine pruned", logx.Int("removed", removed))
		}
	}

	ids, err := s.store.List(ctx)
	if err != nil {
		s.log.Warn("queue depth check failed", logx.Err(err))
		return
	}

	tracked := -1
	if s.receipts != nil {
		rows, err := s.receipts.ListTrackable(ctx)
		if err != nil {
			s.log.Warn("receipt listing failed", logx.Err(err))
		} else {
			tracked = len(rows)
		}
	}

	s.log.Info("maintenance sweep done",
		logx.Int("queue_depth", len(ids)),
		logx.Int("tracked_messages", tracked),
		logx.Duration("took", time.Since(start)))
}
