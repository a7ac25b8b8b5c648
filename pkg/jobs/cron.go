package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Task is a periodic unit of work.
type Task func(ctx context.Context) error

// SchedulerConfig configures the periodic scheduler.
type SchedulerConfig struct {
	Location *time.Location
	// Timeout bounds a single run. Zero means five minutes.
	Timeout time.Duration
	Logger  *zap.Logger
	// OnDone is invoked after every run with the task result.
	OnDone func(name string, err error)
}

// Scheduler runs named tasks on cron specs. A run that is still going when
// its next tick fires is skipped.
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
	logger  *zap.Logger
	onDone  func(string, error)
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewScheduler constructs a scheduler. Specs use the standard five-field format.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := cron.New(
		cron.WithLocation(cfg.Location),
		cron.WithChain(cron.Recover(cronLogger{cfg.Logger}), cron.SkipIfStillRunning(cronLogger{cfg.Logger})),
	)
	return &Scheduler{cron: c, timeout: cfg.Timeout, logger: cfg.Logger, onDone: cfg.OnDone, ctx: ctx, cancel: cancel}
}

// Register adds task under name. An empty spec disables the task.
func (s *Scheduler) Register(name, spec string, task Task) error {
	if spec == "" {
		s.logger.Info("cron task disabled", zap.String("task", name))
		return nil
	}
	if _, err := s.cron.AddFunc(spec, func() { s.Run(name, task) }); err != nil {
		return fmt.Errorf("register %s (%q): %w", name, spec, err)
	}
	s.logger.Info("cron task registered", zap.String("task", name), zap.String("spec", spec))
	return nil
}

// Run executes task once with the scheduler's timeout.
func (s *Scheduler) Run(name string, task Task) {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := task(ctx)
	if s.onDone != nil {
		s.onDone(name, err)
	}
	if err != nil {
		s.logger.Error("cron task failed", zap.String("task", name), zap.Duration("took", time.Since(start)), zap.Error(err))
		return
	}
	s.logger.Debug("cron task finished", zap.String("task", name), zap.Duration("took", time.Since(start)))
}

// Start begins firing registered tasks.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling, cancels running tasks and waits for them to return
// or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("cron tasks still running at shutdown")
	}
}

type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
