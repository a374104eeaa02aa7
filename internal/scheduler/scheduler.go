package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"FactorLens/internal/usecase"
	applogger "FactorLens/pkg/logger"
)

// Job is a unit of scheduled work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// ErrStopped is returned by RunNow and Go once Stop has been called.
var ErrStopped = errors.New("scheduler: stopped")

// Scheduler runs jobs on cron schedules. Overlapping runs of the same job are
// skipped. Stop waits for scheduled and ad-hoc runs alike.
type Scheduler struct {
	cron    *cron.Cron
	l       *applogger.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration

	mu      sync.Mutex
	stopped bool
	running sync.WaitGroup
}

// New creates a scheduler. timeout bounds a single job run; zero means no bound.
func New(l *applogger.Logger, timeout time.Duration) *Scheduler {
	if l == nil {
		l = applogger.Nop()
	}
	l = l.With(applogger.String("component", "scheduler"))
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)),
			cron.WithChain(cron.Recover(cronLogger{l}), cron.SkipIfStillRunning(cronLogger{l})),
			cron.WithLogger(cronLogger{l}),
		),
		l:       l,
		ctx:     ctx,
		cancel:  cancel,
		timeout: timeout,
	}
}

// AddJob registers job under a standard five-field spec or a descriptor such
// as "@hourly" or "@every 30m".
func (s *Scheduler) AddJob(spec string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() {
		if err := s.RunNow(job); err != nil && !errors.Is(err, ErrStopped) {
			s.l.Error("job failed", applogger.String("job", job.Name()), applogger.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %s %q: %w", job.Name(), spec, err)
	}
	s.l.Info("job registered", applogger.String("job", job.Name()), applogger.String("schedule", spec))
	return nil
}

// RunNow executes job immediately on the scheduler context.
func (s *Scheduler) RunNow(job Job) error {
	if !s.track() {
		return ErrStopped
	}
	defer s.running.Done()
	return s.runNow(job)
}

func (s *Scheduler) runNow(job Job) error {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	start := time.Now()
	err := job.Run(ctx)
	s.l.Debug("job finished", applogger.String("job", job.Name()), applogger.Duration("took_ms", time.Since(start)))
	return err
}

// Go runs job once in the background. Stop waits for it to return.
func (s *Scheduler) Go(job Job) {
	if !s.track() {
		return
	}
	go func() {
		defer s.running.Done()
		if err := s.runNow(job); err != nil {
			s.l.Error("job failed", applogger.String("job", job.Name()), applogger.Error(err))
		}
	}()
}

func (s *Scheduler) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.running.Add(1)
	return true
}

// Start starts the scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.l.Info("scheduler started", applogger.Int("jobs", len(s.cron.Entries())))
}

// Stop cancels running jobs and waits for scheduled and background runs to
// return or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	cronDone := s.cron.Stop()
	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.running.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.l.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

// RefreshJob refits the latest run with a fixed window.
type RefreshJob struct {
	Service *usecase.RiskService
	Window  int
}

func (RefreshJob) Name() string { return "refresh_betas" }

func (j RefreshJob) Run(ctx context.Context) error {
	_, err := j.Service.Refresh(ctx, j.Window)
	if errors.Is(err, usecase.ErrRefreshInProgress) {
		return nil
	}
	return err
}

// cronLogger adapts the application logger to cron.Logger.
type cronLogger struct{ l *applogger.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append(kvFields(keysAndValues), applogger.Error(err))...)
}

func kvFields(kv []interface{}) []applogger.Field {
	fields := make([]applogger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields = append(fields, applogger.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return fields
}
