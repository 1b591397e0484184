package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/absmach/sampler/orchestrator"
	"github.com/absmach/sampler/pkg/protocol"
)

var _ orchestrator.Service = (*loggingMiddleware)(nil)

type loggingMiddleware struct {
	logger *slog.Logger
	svc    orchestrator.Service
}

func Logging(logger *slog.Logger, svc orchestrator.Service) orchestrator.Service {
	return &loggingMiddleware{
		logger: logger,
		svc:    svc,
	}
}

func (lm *loggingMiddleware) Hello(ctx context.Context) (resp orchestrator.Hello, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("version", resp.Version),
			slog.Int("nodes", resp.Nodes),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Hello failed", args...)

			return
		}
		lm.logger.Info("Hello completed successfully", args...)
	}(time.Now())

	return lm.svc.Hello(ctx)
}

func (lm *loggingMiddleware) SetNoise(ctx context.Context, noise float64, mode int) (p protocol.Params, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("request",
				slog.Float64("noise", noise),
				slog.Int("mode", mode),
			),
			paramsGroup(p),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Set noise failed", args...)

			return
		}
		lm.logger.Info("Set noise completed successfully", args...)
	}(time.Now())

	return lm.svc.SetNoise(ctx, noise, mode)
}

func (lm *loggingMiddleware) SetParams(ctx context.Context, noise float64, bias, coupling, mode int) (p protocol.Params, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("request",
				slog.Float64("noise", noise),
				slog.Int("bias", bias),
				slog.Int("coupling", coupling),
				slog.Int("mode", mode),
			),
			paramsGroup(p),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Set params failed", args...)

			return
		}
		lm.logger.Info("Set params completed successfully", args...)
	}(time.Now())

	return lm.svc.SetParams(ctx, noise, bias, coupling, mode)
}

func (lm *loggingMiddleware) GetSamples(ctx context.Context, count, stride, burnIn int) (info orchestrator.BatchInfo, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("batch",
				slog.Uint64("run", uint64(info.Run)),
				slog.Uint64("tick0", uint64(info.Tick0)),
				slog.Int("count", int(info.Count)),
				slog.Int("stride", int(info.Stride)),
				slog.Int("burn_in", int(info.BurnIn)),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get samples failed", args...)

			return
		}
		lm.logger.Info("Get samples completed successfully", args...)
	}(time.Now())

	return lm.svc.GetSamples(ctx, count, stride, burnIn)
}

func (lm *loggingMiddleware) Stop(ctx context.Context) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Stop batch failed", args...)

			return
		}
		lm.logger.Info("Stop batch completed successfully", args...)
	}(time.Now())

	return lm.svc.Stop(ctx)
}

// Tick only logs failures and closed rounds.
func (lm *loggingMiddleware) Tick(ctx context.Context) (rep orchestrator.TickReport, err error) {
	defer func(begin time.Time) {
		if err != nil {
			lm.logger.Warn("Tick failed",
				slog.String("duration", time.Since(begin).String()),
				slog.Any("error", err),
			)

			return
		}
		if !rep.Closed {
			return
		}
		lm.logger.Debug("Round closed",
			slog.String("duration", time.Since(begin).String()),
			slog.Group("round",
				slog.Uint64("number", uint64(rep.Round)),
				slog.String("boundary", hex8(rep.Result.Boundary)),
				slog.String("derived", hex8(rep.Result.Derived)),
				slog.Float64("ratio", float64(rep.Result.Ratio)),
			),
		)
	}(time.Now())

	return lm.svc.Tick(ctx)
}

func (lm *loggingMiddleware) Status(ctx context.Context) (st orchestrator.Status, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("round", uint64(st.Round.Number)),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get status failed", args...)

			return
		}
		lm.logger.Debug("Get status completed successfully", args...)
	}(time.Now())

	return lm.svc.Status(ctx)
}

func (lm *loggingMiddleware) History(ctx context.Context) (page orchestrator.HistoryPage, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Int("entries", len(page.Ratios)),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get history failed", args...)

			return
		}
		lm.logger.Debug("Get history completed successfully", args...)
	}(time.Now())

	return lm.svc.History(ctx)
}

func (lm *loggingMiddleware) Nodes(ctx context.Context) (nodes []orchestrator.Node, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Int("nodes", len(nodes)),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List nodes failed", args...)

			return
		}
		lm.logger.Debug("List nodes completed successfully", args...)
	}(time.Now())

	return lm.svc.Nodes(ctx)
}

func paramsGroup(p protocol.Params) slog.Attr {
	return slog.Group("params",
		slog.Float64("noise", float64(p.Noise)),
		slog.Int("bias", int(p.Bias)),
		slog.Int("coupling", int(p.Coupling)),
		slog.Int("mode", int(p.Mode)),
	)
}

func hex8(v uint8) string {
	const digits = "0123456789ABCDEF"

	return string([]byte{digits[v>>4], digits[v&0x0F]})
}
