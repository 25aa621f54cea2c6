package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"smart-task-manager/backend/internal/monitoring"

	"github.com/mudler/xlog"
	"github.com/robfig/cron/v3"
)

const (
	DefaultInterval = 60 * time.Second
	DefaultTimeout  = 30 * time.Second
)

var ErrAlreadyStarted = errors.New("scheduler already started")

// Sweeper is the unit of work run on every tick.
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (int, error)
}

type Config struct {
	Interval time.Duration
	// Timeout bounds a single sweep.
	Timeout time.Duration
}

// Scheduler runs a Sweeper on a fixed interval. Ticks never overlap, and a
// failing or panicking sweep does not stop later ticks.
type Scheduler struct {
	sweeper  Sweeper
	interval time.Duration
	timeout  time.Duration
	cron     *cron.Cron
	now      func() time.Time

	// serializes ticks with RunNow
	runMu sync.Mutex

	mu      sync.Mutex
	started bool
}

func NewScheduler(sweeper Sweeper, cfg Config) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Scheduler{
		sweeper:  sweeper,
		interval: cfg.Interval,
		timeout:  cfg.Timeout,
		now:      time.Now,
	}
}

func newCron() *cron.Cron {
	logger := cronLogger{}
	return cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.DelayIfStillRunning(logger)),
	)
}

// Start schedules the sweep. A stopped scheduler can be started again; each
// start gets a fresh cron with a single entry.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}
	c := newCron()
	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := c.AddFunc(spec, s.tick); err != nil {
		return fmt.Errorf("failed to schedule reminder sweep %q: %w", spec, err)
	}
	c.Start()
	s.cron = c
	s.started = true

	xlog.Info("Reminder scheduler started", "interval", s.interval, "timeout", s.timeout)
	return nil
}

// Stop halts the schedule and waits for any in-flight sweep, scheduled or
// started through RunNow, or until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	wasStarted := s.started
	s.started = false
	s.cron = nil
	s.mu.Unlock()

	if wasStarted && c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
			return fmt.Errorf("waiting for reminder sweep to finish: %w", ctx.Err())
		}
	}

	idle := make(chan struct{})
	go func() {
		s.runMu.Lock()
		s.runMu.Unlock()
		close(idle)
	}()
	select {
	case <-idle:
	case <-ctx.Done():
		return fmt.Errorf("waiting for reminder sweep to finish: %w", ctx.Err())
	}

	if wasStarted {
		xlog.Info("Reminder scheduler stopped")
	}
	return nil
}

// entries reports how many cron entries are scheduled.
func (s *Scheduler) entries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron == nil {
		return 0
	}
	return len(s.cron.Entries())
}

// RunNow performs one sweep immediately, e.g. to catch up at startup.
func (s *Scheduler) RunNow(ctx context.Context) (int, error) {
	return s.run(ctx)
}

func (s *Scheduler) tick() {
	if _, err := s.run(context.Background()); err != nil {
		xlog.Error("Reminder sweep failed", "error", err)
	}
}

func (s *Scheduler) run(parent context.Context) (int, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	start := s.now()
	triggered, err := s.sweeper.Sweep(ctx, start)
	monitoring.RecordSweep(triggered, time.Since(start), err)
	if err != nil {
		return triggered, err
	}

	if triggered > 0 {
		xlog.Info("Reminder sweep complete", "triggered", triggered, "duration", time.Since(start))
	} else {
		xlog.Debug("Reminder sweep complete", "triggered", 0)
	}
	return triggered, nil
}

// cronLogger routes cron's own logging through xlog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	xlog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	xlog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
