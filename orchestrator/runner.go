package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

const (
	DefaultTickInterval = 5 * time.Millisecond
	inboxSize           = 32
)

var ErrRunnerStopped = errors.New("orchestrator loop is not running")

// Job is run on the loop goroutine with exclusive access to the service.
type Job func(ctx context.Context, svc Service) error

// Executor runs jobs with exclusive access to the service. Runner is the
// production implementation.
type Executor interface {
	Exec(ctx context.Context, job Job) error
}

var _ Executor = (*Runner)(nil)

type request struct {
	job  Job
	done chan error
}

// Runner owns a Service and is the only goroutine that touches it. Other
// goroutines submit Jobs through Exec.
type Runner struct {
	svc      Service
	interval time.Duration
	logger   *slog.Logger
	inbox    chan request
	stopped  chan struct{}
	observe  func(TickReport)
}

type RunnerOption func(*Runner)

// WithObserver is called after every tick on the loop goroutine.
func WithObserver(fn func(TickReport)) RunnerOption {
	return func(r *Runner) {
		r.observe = fn
	}
}

func NewRunner(svc Service, interval time.Duration, logger *slog.Logger, opts ...RunnerOption) *Runner {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	r := &Runner{
		svc:      svc,
		interval: interval,
		logger:   logger,
		inbox:    make(chan request, inboxSize),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Exec queues job and waits for its result.
func (r *Runner) Exec(ctx context.Context, job Job) error {
	req := request{job: job, done: make(chan error, 1)}

	select {
	case r.inbox <- req:
	case <-r.stopped:
		return ErrRunnerStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.done:
		return err
	case <-r.stopped:
		return ErrRunnerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drives the scheduler until ctx is done. Queued jobs run between
// ticks.
func (r *Runner) Run(ctx context.Context) error {
	defer close(r.stopped)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("orchestrator loop started", slog.Duration("tick_interval", r.interval))

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("orchestrator loop stopping")

			return ctx.Err()
		case req := <-r.inbox:
			req.done <- req.job(ctx, r.svc)
		case <-ticker.C:
			rep, err := r.svc.Tick(ctx)
			if err != nil {
				r.logger.Error("scheduler tick failed", slog.Any("error", err))

				continue
			}
			if r.observe != nil {
				r.observe(rep)
			}
		}
	}
}
