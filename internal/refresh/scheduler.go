package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jonesrussell/north-cloud/feeds/internal/events"
	"github.com/jonesrussell/north-cloud/feeds/internal/logger"
)

// DefaultSchedule runs a tick every two minutes.
const DefaultSchedule = "*/2 * * * *"

// Ticker is the part of the refresher the scheduler drives.
type Ticker interface {
	Tick(ctx context.Context) (*TickReport, error)
}

// SchedulerConfig controls when ticks run.
type SchedulerConfig struct {
	Schedule   string `mapstructure:"schedule"`
	RunOnStart bool   `mapstructure:"run_on_start"`
}

// Scheduler triggers ticks on a cron schedule.
type Scheduler struct {
	ticker Ticker
	bus    events.Dispatcher
	cfg    SchedulerConfig
	logger logger.Logger
	cron   *cron.Cron

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      *sync.WaitGroup // replaced on every Start
	started bool
}

// NewScheduler validates the schedule and builds a stopped scheduler.
func NewScheduler(t Ticker, bus events.Dispatcher, cfg SchedulerConfig, log logger.Logger) (*Scheduler, error) {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}

	s := &Scheduler{
		ticker: t,
		bus:    bus,
		cfg:    cfg,
		logger: log.With(logger.Component("scheduler")),
	}

	cl := cronLogger{log: s.logger}
	s.cron = cron.New(
		cron.WithParser(cron.NewParser(
			cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor,
		)),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		cron.WithLogger(cl),
	)
	if _, err := s.cron.AddFunc(cfg.Schedule, s.runTick); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", cfg.Schedule, err)
	}
	return s, nil
}

// Start begins scheduling and announces the monitor.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	wg := &sync.WaitGroup{}
	s.wg = wg
	s.started = true
	s.mu.Unlock()

	s.cron.Start()
	s.bus.Dispatch(ctx, events.FeedMonitorInitialized, map[string]any{
		"schedule":   s.cfg.Schedule,
		"runOnStart": s.cfg.RunOnStart,
	}, nil)
	s.logger.Info("Feed monitor started", logger.String("schedule", s.cfg.Schedule))

	if s.cfg.RunOnStart {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.runTick()
		}()
	}
}

// Stop halts scheduling and waits for the running tick, or for ctx to end.
// A stopped scheduler may be started again.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	wg, cancel := s.wg, s.cancel
	s.mu.Unlock()

	cronDone := s.cron.Stop()
	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		cancel()
		s.logger.Info("Feed monitor stopped")
		return nil
	case <-ctx.Done():
		cancel()
		return fmt.Errorf("stop scheduler: %w", ctx.Err())
	}
}

// Next reports when the next scheduled tick fires.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *Scheduler) runTick() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	report, err := s.ticker.Tick(ctx)
	switch {
	case errors.Is(err, ErrTickInProgress), errors.Is(err, ErrLockNotAcquired):
		s.logger.Debug("Tick skipped", logger.Error(err))
	case err != nil:
		s.logger.Error("Tick failed", logger.Error(err))
	default:
		s.logger.Debug("Scheduled tick finished",
			logger.TickID(report.ID),
			logger.Int("updated", len(report.Updated)),
		)
	}
}

// cronLogger adapts the service logger to cron.Logger.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, logger.Any("cron", keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, logger.Error(err), logger.Any("cron", keysAndValues))
}
