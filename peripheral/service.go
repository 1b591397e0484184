// Package peripheral implements a passive sampling node: it reacts to bus
// commands by updating a small local register and answers read requests
// with a compact observation frame.
package peripheral

import (
	"context"
	"log/slog"

	"github.com/absmach/sampler/pkg/bus"
	"github.com/absmach/sampler/pkg/protocol"
)

type Service struct {
	addr   uint8
	name   string
	state  *State
	logger *slog.Logger

	decodeErrors uint64
}

func NewService(addr uint8, name string, state *State, logger *slog.Logger) *Service {
	return &Service{
		addr:   addr,
		name:   name,
		state:  state,
		logger: logger.With(slog.String("node", name), slog.Int("address", int(addr))),
	}
}

func (s *Service) Address() uint8 {
	return s.addr
}

func (s *Service) Name() string {
	return s.name
}

// Run consumes bus events until ctx is done or events is closed. Each event
// is handled inline; none of the handlers block.
func (s *Service) Run(ctx context.Context, events <-chan bus.Event) error {
	s.logger.Info("peripheral node is running")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				s.logger.Info("bus detached, stopping peripheral node")

				return nil
			}
			s.Handle(ev)
		}
	}
}

func (s *Service) Handle(ev bus.Event) {
	switch ev.Kind {
	case bus.KindWrite:
		s.handleCommand(ev.Frame)
	case bus.KindRequest:
		s.handleRequest(ev.Reply)
	default:
		s.logger.Warn("ignoring unknown bus event", slog.Int("kind", int(ev.Kind)))
	}
}

func (s *Service) handleCommand(frame []byte) {
	cmd, err := protocol.DecodeCommand(frame)
	if err != nil {
		s.decodeErrors++
		s.logger.Warn("failed to decode bus command", slog.Any("error", err))

		return
	}

	switch cmd.Kind {
	case protocol.CommandTrigger:
		s.state.Trigger(cmd.Round, cmd.Params.Mode, cmd.Params.Noise)
	case protocol.CommandParams:
		s.state.SetParams(cmd.Params)
		s.logger.Debug("parameters updated",
			slog.Group("params",
				slog.Float64("noise", float64(cmd.Params.Noise)),
				slog.Int("bias", int(cmd.Params.Bias)),
				slog.Int("coupling", int(cmd.Params.Coupling)),
				slog.Int("mode", int(cmd.Params.Mode)),
			),
		)
	}
}

func (s *Service) handleRequest(reply chan<- []byte) {
	if reply == nil {
		return
	}
	fallbacks := s.state.Fallbacks()
	frame, err := s.state.Response()
	if err != nil {
		s.logger.Error("failed to encode observation", slog.Any("error", err))
		frame = nil
	}
	if s.state.Fallbacks() != fallbacks {
		s.logger.Debug("legacy frame too long, answered in compact form", slog.Uint64("round", uint64(s.state.Round())))
	}

	select {
	case reply <- frame:
	default:
	}
}

func (s *Service) DecodeErrors() uint64 {
	return s.decodeErrors
}
