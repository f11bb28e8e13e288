package dispatch

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"tgcourier/internal/gateway"
	"tgcourier/internal/queue"
	"tgcourier/internal/receipt"
	logx "tgcourier/pkg/logx"
)

// Config controls loop timing and backpressure.
//
// SendInterval is the minimum spacing between outbound transport calls; it
// exists to stay under Telegram's rate limits, not for fairness.
type Config struct {
	PollInterval time.Duration
	SendInterval time.Duration
}

const (
	defaultPollInterval = 2 * time.Second
	defaultSendInterval = 3 * time.Second
)

// Daemon is the scheduler loop. One instance, one logical worker; recipients
// of a ready task are dispatched sequentially within that task's turn.
type Daemon struct {
	queue    queue.Store
	receipts receipt.Store
	gw       gateway.Gateway
	log      logx.Logger
	now      func() time.Time

	// nudge wakes the loop ahead of the next tick when the queue watcher
	// sees a new document. Best-effort, capacity 1.
	nudge chan struct{}

	// suspects holds ids whose document failed to parse once. The producer
	// writes files non-atomically, so a parse failure may just be a write in
	// progress; quarantine only after a second consecutive failure.
	// Touched only from RunCycle (single consumer).
	suspects map[string]bool

	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter
}

// Option customizes a Daemon.
type Option func(*Daemon)

// WithClock overrides the wall clock (tests).
func WithClock(now func() time.Time) Option {
	return func(d *Daemon) { d.now = now }
}

func New(cfg Config, q queue.Store, rs receipt.Store, gw gateway.Gateway, log logx.Logger, opts ...Option) *Daemon {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.SendInterval <= 0 {
		cfg.SendInterval = defaultSendInterval
	}
	d := &Daemon{
		queue:    q,
		receipts: rs,
		gw:       gw,
		log:      log,
		now:      time.Now,
		nudge:    make(chan struct{}, 1),
		suspects: map[string]bool{},
		cfg:      cfg,
		limiter:  rate.NewLimiter(rate.Every(cfg.SendInterval), 1),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Nudge is the channel the queue watcher signals on.
func (d *Daemon) Nudge() chan<- struct{} { return d.nudge }

// Apply updates the send-rate ceiling at runtime. The poll ticker keeps the
// interval the loop was started with; restart to change it.
func (d *Daemon) Apply(cfg Config) {
	if cfg.SendInterval <= 0 {
		cfg.SendInterval = defaultSendInterval
	}
	d.mu.Lock()
	d.cfg.SendInterval = cfg.SendInterval
	d.limiter = rate.NewLimiter(rate.Every(cfg.SendInterval), 1)
	d.mu.Unlock()
}

func (d *Daemon) currentLimiter() *rate.Limiter {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.limiter
}
