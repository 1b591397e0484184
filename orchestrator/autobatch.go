package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/absmach/sampler/pkg/cron"
)

const defaultAutoBatchCheckInterval = time.Second

// AutoBatch arms a batch every time its cron schedule fires. A slot that
// comes due while another batch is still running is skipped.
type AutoBatch struct {
	schedule      *cron.Schedule
	exec          Executor
	count         int
	stride        int
	burnIn        int
	logger        *slog.Logger
	checkInterval time.Duration
	now           func() time.Time
	next          time.Time
}

type AutoBatchOption func(*AutoBatch)

func WithCheckInterval(d time.Duration) AutoBatchOption {
	return func(a *AutoBatch) {
		if d > 0 {
			a.checkInterval = d
		}
	}
}

func WithAutoBatchClock(now func() time.Time) AutoBatchOption {
	return func(a *AutoBatch) {
		a.now = now
	}
}

func NewAutoBatch(schedule *cron.Schedule, exec Executor, count, stride, burnIn int, logger *slog.Logger, opts ...AutoBatchOption) *AutoBatch {
	a := &AutoBatch{
		schedule:      schedule,
		exec:          exec,
		count:         count,
		stride:        stride,
		burnIn:        burnIn,
		logger:        logger,
		checkInterval: defaultAutoBatchCheckInterval,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.next = schedule.Next(a.now())

	return a
}

// Next is the next activation time.
func (a *AutoBatch) Next() time.Time {
	return a.next
}

func (a *AutoBatch) Start(ctx context.Context) error {
	ticker := time.NewTicker(a.checkInterval)
	defer ticker.Stop()

	a.logger.Info("auto batch scheduler started",
		slog.String("schedule", a.schedule.String()),
		slog.Time("next_run", a.next),
	)

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("auto batch scheduler stopping")

			return ctx.Err()
		case <-ticker.C:
			if _, err := a.Poll(ctx); err != nil {
				a.logger.Error("error arming scheduled batch", slog.String("error", err.Error()))
			}
		}
	}
}

// Poll arms a batch if the schedule is due. It reports whether a batch was
// armed. The next activation advances even when arming fails or is skipped.
func (a *AutoBatch) Poll(ctx context.Context) (bool, error) {
	now := a.now()
	if a.next.IsZero() || now.Before(a.next) {
		return false, nil
	}
	a.next = a.schedule.Next(now)

	var (
		armed bool
		info  BatchInfo
	)
	err := a.exec.Exec(ctx, func(ctx context.Context, svc Service) error {
		st, err := svc.Status(ctx)
		if err != nil {
			return err
		}
		if st.Batch.Active {
			return nil
		}
		info, err = svc.GetSamples(ctx, a.count, a.stride, a.burnIn)
		if err != nil {
			return err
		}
		armed = true

		return nil
	})
	if err != nil {
		return false, err
	}

	if !armed {
		a.logger.Warn("skipping scheduled batch, a batch is already running", slog.Time("next_run", a.next))

		return false, nil
	}
	a.logger.Info("scheduled batch armed",
		slog.Uint64("run", uint64(info.Run)),
		slog.Uint64("tick0", uint64(info.Tick0)),
		slog.Time("next_run", a.next),
	)

	return true, nil
}
