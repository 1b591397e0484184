package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"math/bits"

	"github.com/absmach/sampler/pkg/datalog"
	"github.com/absmach/sampler/pkg/devices"
	"github.com/absmach/sampler/pkg/protocol"
	"github.com/absmach/sampler/pkg/reconstruct"
	"github.com/absmach/sampler/pkg/supervisor"
)

// Tick advances the scheduler by one bounded step:
//
//	Idle         start a round when one is due
//	RoundActive  poll at most PollPerTick nodes, close once all were tried
//	RoundClosing reconstruct, account the batch, run side effects
func (s *service) Tick(ctx context.Context) (TickReport, error) {
	switch s.phase {
	case Idle:
		s.supervisor.Maintain(ctx)
		if !s.due() {
			return TickReport{Phase: Idle, Round: s.round.Number}, nil
		}
		s.startRound(ctx)

		return TickReport{Phase: RoundActive, Round: s.round.Number, Started: true}, nil
	case RoundActive:
		polled := s.poll(ctx)
		if int(s.round.Cursor) < len(s.cfg.Addresses) {
			return TickReport{Phase: RoundActive, Round: s.round.Number, Polled: polled}, nil
		}
		s.phase = RoundClosing
		res := s.closeRound(ctx)

		return TickReport{Phase: RoundClosing, Round: s.round.Number, Polled: polled, Closed: true, Result: res}, nil
	default:
		res := s.closeRound(ctx)

		return TickReport{Phase: RoundClosing, Round: s.round.Number, Closed: true, Result: res}, nil
	}
}

func (s *service) due() bool {
	period := s.cfg.RoundPeriod
	if s.batch.Active {
		period = s.cfg.BatchSpacing
	} else if period <= 0 {
		return false
	}
	if s.lastStart.IsZero() {
		return true
	}

	return s.now().Sub(s.lastStart) >= period
}

func (s *service) startRound(ctx context.Context) {
	s.round.Number++
	s.round.Cursor = 0
	s.round.Polled = 0
	s.round.InProgress = true
	s.phase = RoundActive
	s.lastStart = s.now()
	for i := range s.obs {
		s.obs[i].Valid = false
	}

	frame, err := protocol.EncodeTrigger(s.round.Number, s.params.Mode, s.params.Noise)
	if err == nil {
		err = s.bus.Broadcast(ctx, frame)
	}
	if err != nil {
		s.counters.Broadcasts++
		s.logger.Warn("failed to broadcast round trigger",
			slog.Uint64("round", uint64(s.round.Number)),
			slog.Any("error", err),
		)
	}

	if s.devices.LED != nil {
		s.use(s.devices.LED, func() error { return s.devices.LED.Set(devices.Reading) })
	}
}

func (s *service) poll(ctx context.Context) int {
	polled := 0
	for range s.cfg.PollPerTick {
		idx := int(s.round.Cursor)
		if idx >= len(s.cfg.Addresses) {
			break
		}
		s.round.Cursor++
		s.round.Polled++
		polled++
		s.pollNode(ctx, idx)
	}

	return polled
}

// pollNode issues one bounded read. Any failure leaves the node invalid for
// the rest of the round.
func (s *service) pollNode(ctx context.Context, idx int) {
	addr := s.cfg.Addresses[idx]
	args := []any{
		slog.Uint64("round", uint64(s.round.Number)),
		slog.Int("node", idx),
		slog.Int("address", int(addr)),
	}

	frame, err := s.bus.Request(ctx, addr)
	if err != nil {
		s.counters.BusErrors++
		s.logger.Warn("bus request failed", append(args, slog.Any("error", err))...)

		return
	}

	o, err := protocol.DecodeObservation(frame)
	switch {
	case errors.Is(err, protocol.ErrEmptyFrame):
		s.counters.EmptyReads++
		s.logger.Debug("node returned an empty frame", args...)

		return
	case err != nil:
		s.counters.DecodeErrors++
		s.logger.Warn("failed to decode node response", append(args, slog.Any("error", err))...)

		return
	}
	if o.Round != s.round.Number {
		s.counters.StaleReads++
		s.logger.Warn("node answered for another round", append(args, slog.Uint64("node_round", uint64(o.Round)))...)

		return
	}

	s.obs[idx] = Observation{
		Round:      o.Round,
		Bitmask:    o.Bitmask,
		Loss:       o.Loss,
		NoiseByte:  o.Noise,
		Source:     uint8(idx),
		Seed:       o.Seed,
		Valid:      true,
		ReceivedAt: s.now(),
		Format:     o.Format,
	}
}

func (s *service) closeRound(ctx context.Context) reconstruct.Result {
	valid := make([]bool, len(s.obs))
	for i, o := range s.obs {
		valid[i] = o.Valid
	}
	res := reconstruct.Reconstruct(reconstruct.Boundary(valid), s.cfg.Table)
	s.history.Push(res.Ratio)
	s.last = res
	s.counters.Rounds++

	s.accountBatch()
	s.sideEffects(ctx, res)

	s.round.InProgress = false
	s.phase = Idle

	return res
}

func (s *service) sideEffects(ctx context.Context, res reconstruct.Result) {
	active := bits.OnesCount8(res.Boundary)
	var loss uint32
	var noise float32
	for _, o := range s.obs {
		if o.Valid {
			loss += uint32(o.Loss)
			noise += protocol.ByteToNoise(o.NoiseByte)
		}
	}
	if active > 0 {
		noise /= float32(active)
	}

	var env devices.Environment
	if s.devices.Sensor != nil {
		s.use(s.devices.Sensor, func() error {
			var err error
			env, err = s.devices.Sensor.Read()

			return err
		})
	}

	ts := s.now()
	if s.devices.Clock != nil && s.supervisor.Ready(s.devices.Clock.Name()) {
		ts = s.devices.Clock.Now()
	}

	if s.devices.Display != nil {
		s.use(s.devices.Display, func() error {
			return s.devices.Display.Show(devices.Summary{
				Round:    s.round.Number,
				Active:   active,
				Total:    len(s.obs),
				Boundary: res.Boundary,
				Derived:  res.Derived,
				Ratio:    res.Ratio,
				Loss:     loss,
				Noise:    noise,
				Env:      env,
				Batch:    s.batch.Active,
			})
		})
	}

	if s.devices.LED != nil {
		s.use(s.devices.LED, func() error {
			return s.devices.LED.Set(devices.ColorFor(active, len(s.obs)))
		})
	}

	if s.devices.Recorder != nil {
		s.use(s.devices.Recorder, func() error {
			return s.devices.Recorder.Record(ctx, datalog.Row{
				Timestamp:   ts,
				Round:       s.round.Number,
				Active:      active,
				Boundary:    res.Boundary,
				Derived:     res.Derived,
				Ratio:       res.Ratio,
				Loss:        loss,
				AvgNoise:    noise,
				Temperature: env.Temperature,
				Humidity:    env.Humidity,
				Pressure:    env.Pressure,
				Noise:       s.params.Noise,
				Bias:        s.params.Bias,
				Coupling:    s.params.Coupling,
				Mode:        s.params.Mode,
			})
		})
	}
}

// use runs fn only while sub is ready and hands runtime failures to the
// supervisor.
func (s *service) use(sub supervisor.Subsystem, fn func() error) {
	if !s.supervisor.Ready(sub.Name()) {
		return
	}
	if err := fn(); err != nil {
		s.supervisor.MarkFailed(sub.Name(), err)
	}
}
