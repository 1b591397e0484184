// Package orchestrator implements the bus owner: it paces rounds, polls the
// peripheral nodes, reconstructs the round state and drives batches for
// the external controller.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/bits"
	"time"

	"github.com/absmach/sampler/pkg/bus"
	"github.com/absmach/sampler/pkg/datalog"
	"github.com/absmach/sampler/pkg/devices"
	"github.com/absmach/sampler/pkg/protocol"
	"github.com/absmach/sampler/pkg/reconstruct"
	"github.com/absmach/sampler/pkg/supervisor"
)

var errNilBus = errors.New("orchestrator requires a bus")

// Devices are the optional side-effect collaborators. Nil members are
// skipped.
type Devices struct {
	Display  devices.Display
	LED      devices.StatusLED
	Sensor   devices.EnvSensor
	Clock    devices.Clock
	Recorder datalog.Recorder
}

type service struct {
	cfg        Config
	bus        bus.Bus
	emitter    Emitter
	devices    Devices
	supervisor *supervisor.Supervisor
	logger     *slog.Logger
	now        func() time.Time

	params    protocol.Params
	phase     Phase
	round     RoundState
	obs       []Observation
	history   *reconstruct.History
	last      reconstruct.Result
	batch     BatchRequest
	run       uint32
	emitted   uint32
	stopping  bool
	lastStart time.Time
	counters  Counters
}

type Option func(*service)

// WithClock replaces time.Now for round pacing.
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

func NewService(cfg Config, b bus.Bus, emitter Emitter, devs Devices, sup *supervisor.Supervisor, logger *slog.Logger, opts ...Option) (Service, error) {
	if b == nil {
		return nil, errNilBus
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid orchestrator configuration: %w", err)
	}
	if emitter == nil {
		emitter = discard{}
	}
	if sup == nil {
		sup = supervisor.New(10*time.Second, logger)
	}

	s := &service{
		cfg:        cfg,
		bus:        b,
		emitter:    emitter,
		devices:    devs,
		supervisor: sup,
		logger:     logger,
		now:        time.Now,
		params:     cfg.Params,
		obs:        make([]Observation, len(cfg.Addresses)),
		history:    reconstruct.NewHistory(cfg.HistorySize),
	}
	for _, opt := range opts {
		opt(s)
	}
	for i := range s.obs {
		s.obs[i].Source = uint8(i)
	}

	for _, sub := range []supervisor.Subsystem{devs.Display, devs.LED, devs.Sensor, devs.Clock, devs.Recorder} {
		if sub != nil {
			sup.Register(sub)
		}
	}

	return s, nil
}

func (s *service) Hello(context.Context) (Hello, error) {
	return Hello{
		Version:  s.cfg.Version,
		Nodes:    len(s.cfg.Addresses),
		Protocol: Protocol,
	}, nil
}

func (s *service) SetNoise(_ context.Context, noise float64, mode int) (protocol.Params, error) {
	p := protocol.ClampParams(noise, int(s.params.Bias), int(s.params.Coupling), mode)
	s.params = p

	return p, nil
}

func (s *service) SetParams(ctx context.Context, noise float64, bias, coupling, mode int) (protocol.Params, error) {
	p := protocol.ClampParams(noise, bias, coupling, mode)
	s.params = p

	if !s.cfg.BroadcastParams {
		return p, nil
	}
	frame, err := protocol.EncodeParams(p)
	if err == nil {
		err = s.bus.Broadcast(ctx, frame)
	}
	if err != nil {
		s.counters.Broadcasts++
		s.logger.Warn("failed to broadcast parameters", slog.Any("error", err))
	}

	return p, nil
}

func (s *service) GetSamples(_ context.Context, count, stride, burnIn int) (BatchInfo, error) {
	s.batch = NewBatch(count, stride, burnIn)
	s.run++
	s.emitted = 0
	s.stopping = false

	return BatchInfo{
		Run:    s.run,
		Tick0:  s.round.Number,
		Count:  s.batch.Remaining,
		Stride: s.batch.Stride,
		BurnIn: s.batch.BurnIn,
	}, nil
}

// Stop takes effect at the next round close when a round is in flight and
// immediately otherwise.
func (s *service) Stop(context.Context) error {
	if !s.batch.Active {
		return nil
	}
	if s.round.InProgress {
		s.stopping = true

		return nil
	}
	s.finishBatch()

	return nil
}

func (s *service) Status(context.Context) (Status, error) {
	return Status{
		Round:     s.round,
		Params:    s.params,
		Last:      s.last,
		Active:    bits.OnesCount8(s.last.Boundary),
		Total:     len(s.cfg.Addresses),
		MeanRatio: s.history.Mean(),
		Batch: BatchStatus{
			Active:    s.batch.Active,
			Run:       s.run,
			Remaining: s.batch.Remaining,
			Stride:    s.batch.Stride,
			BurnIn:    s.batch.BurnIn,
			Emitted:   s.emitted,
			Stopping:  s.stopping,
		},
		Counters:   s.counters,
		Subsystems: s.supervisor.Snapshot(),
	}, nil
}

func (s *service) History(context.Context) (HistoryPage, error) {
	return HistoryPage{
		Capacity: s.history.Cap(),
		Ratios:   s.history.Values(),
		Mean:     s.history.Mean(),
	}, nil
}

func (s *service) Nodes(context.Context) ([]Node, error) {
	nodes := make([]Node, 0, len(s.obs))
	for i, o := range s.obs {
		nodes = append(nodes, Node{
			Index:       i,
			Address:     s.cfg.Addresses[i],
			Observation: o,
		})
	}

	return nodes, nil
}

func (s *service) accountBatch() {
	if !s.batch.Active {
		return
	}
	if s.stopping {
		s.finishBatch()

		return
	}
	if s.batch.Advance() {
		for i, o := range s.obs {
			if o.Valid {
				s.emitter.Emit(SampleLine(s.round.Number, i, o))
			}
		}
		s.emitted++
	}
	if s.batch.Done() {
		s.finishBatch()
	}
}

func (s *service) finishBatch() {
	s.emitter.Emit(DoneLine(s.round.Number))
	s.logger.Info("batch finished",
		slog.Uint64("run", uint64(s.run)),
		slog.Uint64("emitted", uint64(s.emitted)),
		slog.Uint64("last_tick", uint64(s.round.Number)),
	)
	s.batch = BatchRequest{}
	s.stopping = false
}

type discard struct{}

func (discard) Emit(string) {}
