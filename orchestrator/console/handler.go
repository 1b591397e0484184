// Package console serves the line-oriented controller protocol over TCP.
// Every command is executed on the orchestrator loop; sample lines and
// batch completion markers are fanned out to all connected controllers.
package console

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/absmach/sampler/orchestrator"
	pkgerrors "github.com/absmach/sampler/pkg/errors"
)

const (
	DefaultCount  = 100
	DefaultStride = 1
	DefaultBurnIn = 0
)

type Handler struct {
	exec   orchestrator.Executor
	logger *slog.Logger
}

func NewHandler(exec orchestrator.Executor, logger *slog.Logger) *Handler {
	return &Handler{
		exec:   exec,
		logger: logger,
	}
}

// Handle returns the single reply line for a controller line, without the
// trailing newline.
func (h *Handler) Handle(ctx context.Context, line string) string {
	line = strings.TrimSpace(line)
	cmd, err := Parse(line)
	switch {
	case errors.Is(err, pkgerrors.ErrUnknownCommand):
		return fmt.Sprintf("@ERR UNKNOWN '%s'", line)
	case err != nil:
		return fmt.Sprintf("@ERR BADARG '%s'", line)
	}

	var reply string
	err = h.exec.Exec(ctx, func(ctx context.Context, svc orchestrator.Service) error {
		var err error
		reply, err = execute(ctx, svc, cmd)

		return err
	})
	if err != nil {
		h.logger.Warn("console command failed", slog.String("line", cmd.Line), slog.Any("error", err))

		return fmt.Sprintf("@ERR FAILED '%s'", line)
	}

	return reply
}

func execute(ctx context.Context, svc orchestrator.Service, cmd Command) (string, error) {
	switch cmd.Kind {
	case Hello:
		hello, err := svc.Hello(ctx)
		if err != nil {
			return "", err
		}

		return fmt.Sprintf("@HELLO SAMPLER v%s NODES=%d PROTO=%d", hello.Version, hello.Nodes, hello.Protocol), nil
	case Set:
		st, err := svc.Status(ctx)
		if err != nil {
			return "", err
		}
		p, err := svc.SetNoise(ctx,
			valueOr(cmd.Noise, float64(st.Params.Noise)),
			valueOr(cmd.Mode, int(st.Params.Mode)),
		)
		if err != nil {
			return "", err
		}

		return fmt.Sprintf("@ACK SET N=%.2f M=%d", p.Noise, p.Mode), nil
	case Param:
		st, err := svc.Status(ctx)
		if err != nil {
			return "", err
		}
		p, err := svc.SetParams(ctx,
			valueOr(cmd.Noise, float64(st.Params.Noise)),
			valueOr(cmd.Bias, int(st.Params.Bias)),
			valueOr(cmd.Coupling, int(st.Params.Coupling)),
			valueOr(cmd.Mode, int(st.Params.Mode)),
		)
		if err != nil {
			return "", err
		}

		return fmt.Sprintf("@ACK PARAM N=%.2f B=%d K=%d M=%d", p.Noise, p.Bias, p.Coupling, p.Mode), nil
	case Get:
		info, err := svc.GetSamples(ctx,
			valueOr(cmd.Count, DefaultCount),
			valueOr(cmd.Stride, DefaultStride),
			valueOr(cmd.BurnIn, DefaultBurnIn),
		)
		if err != nil {
			return "", err
		}

		return fmt.Sprintf("@BATCH RUN=%d TICK0=%d K=%d STRIDE=%d BURN=%d",
			info.Run, info.Tick0, info.Count, info.Stride, info.BurnIn), nil
	case Stop:
		if err := svc.Stop(ctx); err != nil {
			return "", err
		}

		return "@ACK STOP", nil
	case Status:
		st, err := svc.Status(ctx)
		if err != nil {
			return "", err
		}

		return fmt.Sprintf("@STATUS TICK=%d ACTIVE=%d RATIO=%.1f REMAINING=%d",
			st.Round.Number, st.Active, st.Last.Ratio, st.Batch.Remaining), nil
	default:
		return "", pkgerrors.ErrUnknownCommand
	}
}
