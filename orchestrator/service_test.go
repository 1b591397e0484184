package orchestrator_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/absmach/sampler/orchestrator"
	"github.com/absmach/sampler/pkg/bus"
	"github.com/absmach/sampler/pkg/bus/mocks"
	"github.com/absmach/sampler/pkg/datalog"
	"github.com/absmach/sampler/pkg/devices"
	"github.com/absmach/sampler/pkg/protocol"
	"github.com/absmach/sampler/pkg/reconstruct"
	"github.com/absmach/sampler/pkg/supervisor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	lines []string
}

func (r *recorder) Emit(line string) {
	r.lines = append(r.lines, line)
}

func (r *recorder) samples() []string {
	var out []string
	for _, l := range r.lines {
		if strings.HasPrefix(l, "O,") {
			out = append(out, l)
		}
	}

	return out
}

// clock advances by step on every reading.
type clock struct {
	now  time.Time
	step time.Duration
}

func (c *clock) Now() time.Time {
	c.now = c.now.Add(c.step)

	return c.now
}

func frameFor(round uint32, addr uint8) []byte {
	return fmt.Appendf(nil, "O,%08X,%04X,0001,80\n", round, addr&0x0F)
}

// newBus answers every request with a frame for the last triggered round.
func newBus(t *testing.T) *mocks.Bus {
	var round uint32
	b := mocks.NewBus(t)
	b.On("Broadcast", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			cmd, err := protocol.DecodeCommand(args.Get(1).([]byte))
			if err == nil && cmd.Kind == protocol.CommandTrigger {
				round = cmd.Round
			}
		}).
		Return(nil).Maybe()
	b.On("Request", mock.Anything, mock.Anything).
		Return(func(_ context.Context, addr uint8) []byte { return frameFor(round, addr) }, nil).Maybe()

	return b
}

func testConfig() orchestrator.Config {
	cfg := orchestrator.DefaultConfig()
	cfg.RoundPeriod = 0
	cfg.BatchSpacing = 0

	return cfg
}

func newService(t *testing.T, cfg orchestrator.Config, b bus.Bus, em orchestrator.Emitter, devs orchestrator.Devices) orchestrator.Service {
	c := &clock{now: time.Unix(1000, 0), step: time.Millisecond}
	sup := supervisor.New(time.Hour, slog.Default(), supervisor.WithClock(c.Now))
	svc, err := orchestrator.NewService(cfg, b, em, devs, sup, slog.Default(), orchestrator.WithClock(c.Now))
	require.NoError(t, err)

	return svc
}

// closeRounds ticks until n rounds have closed.
func closeRounds(t *testing.T, svc orchestrator.Service, n int) []orchestrator.TickReport {
	t.Helper()

	var closed []orchestrator.TickReport
	for range n * 20 {
		rep, err := svc.Tick(context.Background())
		require.NoError(t, err)
		if rep.Closed {
			closed = append(closed, rep)
			if len(closed) == n {
				return closed
			}
		}
	}
	require.Len(t, closed, n, "rounds did not close")

	return closed
}

func TestBatchEmitsExactlyK(t *testing.T) {
	t.Parallel()

	em := &recorder{}
	svc := newService(t, testConfig(), newBus(t), em, orchestrator.Devices{})

	info, err := svc.GetSamples(context.Background(), 5, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, orchestrator.BatchInfo{Run: 1, Tick0: 0, Count: 5, Stride: 1, BurnIn: 0}, info)

	closeRounds(t, svc, 5)
	require.Len(t, em.samples(), 5*4)
	require.Len(t, em.lines, 5*4+1)
	assert.Equal(t, "@DONE LASTTICK=5", em.lines[len(em.lines)-1])
	assert.Equal(t, "O,1,0,0,1,0.502,0,C", em.lines[0])
	assert.Equal(t, "O,5,3,3,1,0.502,0,C", em.lines[19])

	// The batch is over: no further rounds are due and none are emitted.
	for range 50 {
		rep, err := svc.Tick(context.Background())
		require.NoError(t, err)
		assert.False(t, rep.Started)
	}
	assert.Len(t, em.lines, 5*4+1)
}

func TestBatchNoSamplesAfterDone(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.RoundPeriod = time.Nanosecond
	em := &recorder{}
	svc := newService(t, cfg, newBus(t), em, orchestrator.Devices{})

	_, err := svc.GetSamples(context.Background(), 2, 1, 0)
	require.NoError(t, err)
	closeRounds(t, svc, 6)

	require.Len(t, em.samples(), 8)
	assert.Equal(t, "@DONE LASTTICK=2", em.lines[len(em.lines)-1])
}

func TestBatchBurnIn(t *testing.T) {
	t.Parallel()

	em := &recorder{}
	svc := newService(t, testConfig(), newBus(t), em, orchestrator.Devices{})

	_, err := svc.GetSamples(context.Background(), 2, 1, 3)
	require.NoError(t, err)

	closeRounds(t, svc, 3)
	assert.Empty(t, em.lines)

	closeRounds(t, svc, 1)
	samples := em.samples()
	require.Len(t, samples, 4)
	assert.True(t, strings.HasPrefix(samples[0], "O,4,0,"))
}

func TestBatchStride(t *testing.T) {
	t.Parallel()

	em := &recorder{}
	svc := newService(t, testConfig(), newBus(t), em, orchestrator.Devices{})

	_, err := svc.GetSamples(context.Background(), 2, 3, 0)
	require.NoError(t, err)
	closeRounds(t, svc, 6)

	var rounds []string
	for _, l := range em.samples() {
		rounds = append(rounds, strings.Split(l, ",")[1])
	}
	assert.Equal(t, []string{"3", "3", "3", "3", "6", "6", "6", "6"}, rounds)
	assert.Equal(t, "@DONE LASTTICK=6", em.lines[len(em.lines)-1])
}

func TestGetSamplesClamps(t *testing.T) {
	t.Parallel()

	svc := newService(t, testConfig(), newBus(t), nil, orchestrator.Devices{})

	cases := []struct {
		desc                string
		count, stride, burn int
		want                orchestrator.BatchInfo
	}{
		{desc: "below bounds", count: 0, stride: 0, burn: -5, want: orchestrator.BatchInfo{Count: 1, Stride: 1, BurnIn: 0}},
		{desc: "above bounds", count: 9999, stride: 5000, burn: 99999, want: orchestrator.BatchInfo{Count: 2000, Stride: 1000, BurnIn: 5000}},
		{desc: "in bounds", count: 100, stride: 2, burn: 20, want: orchestrator.BatchInfo{Count: 100, Stride: 2, BurnIn: 20}},
	}
	for _, tc := range cases {
		info, err := svc.GetSamples(context.Background(), tc.count, tc.stride, tc.burn)
		require.NoError(t, err, tc.desc)
		assert.Equal(t, tc.want.Count, info.Count, tc.desc)
		assert.Equal(t, tc.want.Stride, info.Stride, tc.desc)
		assert.Equal(t, tc.want.BurnIn, info.BurnIn, tc.desc)
	}
}

func TestStop(t *testing.T) {
	t.Parallel()

	t.Run("while idle", func(t *testing.T) {
		em := &recorder{}
		svc := newService(t, testConfig(), newBus(t), em, orchestrator.Devices{})

		_, err := svc.GetSamples(context.Background(), 10, 1, 0)
		require.NoError(t, err)
		closeRounds(t, svc, 1)

		require.NoError(t, svc.Stop(context.Background()))
		assert.Equal(t, "@DONE LASTTICK=1", em.lines[len(em.lines)-1])

		st, err := svc.Status(context.Background())
		require.NoError(t, err)
		assert.False(t, st.Batch.Active)
	})

	t.Run("during a round", func(t *testing.T) {
		em := &recorder{}
		svc := newService(t, testConfig(), newBus(t), em, orchestrator.Devices{})

		_, err := svc.GetSamples(context.Background(), 10, 1, 0)
		require.NoError(t, err)

		rep, err := svc.Tick(context.Background())
		require.NoError(t, err)
		require.True(t, rep.Started)

		require.NoError(t, svc.Stop(context.Background()))
		assert.Empty(t, em.lines)

		closeRounds(t, svc, 1)
		assert.Equal(t, []string{"@DONE LASTTICK=1"}, em.lines)
	})

	t.Run("without a batch", func(t *testing.T) {
		em := &recorder{}
		svc := newService(t, testConfig(), newBus(t), em, orchestrator.Devices{})
		require.NoError(t, svc.Stop(context.Background()))
		assert.Empty(t, em.lines)
	})
}

func TestPartialResponse(t *testing.T) {
	t.Parallel()

	b := mocks.NewBus(t)
	b.On("Broadcast", mock.Anything, mock.Anything).Return(nil)
	b.On("Request", mock.Anything, uint8(0x10)).Return([]byte("O,00000001,000F,0000,80\n"), nil)
	b.On("Request", mock.Anything, uint8(0x11)).Return([]byte("O,1,9,3,0.50,1234\n\x00\x00"), nil)
	b.On("Request", mock.Anything, uint8(0x12)).Return(nil, bus.ErrTimeout)
	b.On("Request", mock.Anything, uint8(0x13)).Return([]byte("garbage"), nil)

	em := &recorder{}
	svc := newService(t, testConfig(), b, em, orchestrator.Devices{})
	_, err := svc.GetSamples(context.Background(), 1, 1, 0)
	require.NoError(t, err)

	reps := closeRounds(t, svc, 1)
	assert.Equal(t, reconstruct.Result{Boundary: 0x03, Derived: 0x13, Ratio: 37.5}, reps[0].Result)
	assert.Equal(t, []string{
		"O,1,0,15,0,0.502,0,C",
		"O,1,1,9,3,0.502,1234,L",
		"@DONE LASTTICK=1",
	}, em.lines)

	st, err := svc.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), st.Counters.BusErrors)
	assert.Equal(t, uint64(1), st.Counters.DecodeErrors)
	assert.Equal(t, 2, st.Active)

	nodes, err := svc.Nodes(context.Background())
	require.NoError(t, err)
	require.Len(t, nodes, 4)
	assert.True(t, nodes[0].Valid)
	assert.False(t, nodes[2].Valid)
	assert.Equal(t, uint8(0x13), nodes[3].Address)
}

func TestNoResponders(t *testing.T) {
	t.Parallel()

	b := mocks.NewBus(t)
	b.On("Broadcast", mock.Anything, mock.Anything).Return(errors.New("bus stuck"))
	b.On("Request", mock.Anything, mock.Anything).Return([]byte{0, 0, 0}, nil)

	svc := newService(t, testConfig(), b, nil, orchestrator.Devices{})
	_, err := svc.GetSamples(context.Background(), 1, 1, 0)
	require.NoError(t, err)

	reps := closeRounds(t, svc, 1)
	assert.Equal(t, reconstruct.Result{}, reps[0].Result)

	st, err := svc.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(4), st.Counters.EmptyReads)
	assert.Equal(t, uint64(1), st.Counters.Broadcasts)
}

func TestStaleRoundIsRejected(t *testing.T) {
	t.Parallel()

	b := mocks.NewBus(t)
	b.On("Broadcast", mock.Anything, mock.Anything).Return(nil)
	b.On("Request", mock.Anything, mock.Anything).Return([]byte("O,00000063,000F,0000,80\n"), nil)

	em := &recorder{}
	svc := newService(t, testConfig(), b, em, orchestrator.Devices{})
	_, err := svc.GetSamples(context.Background(), 1, 1, 0)
	require.NoError(t, err)

	reps := closeRounds(t, svc, 1)
	assert.Equal(t, reconstruct.Result{}, reps[0].Result)
	assert.Empty(t, em.samples())

	st, err := svc.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(4), st.Counters.StaleReads)
	assert.Equal(t, uint64(0), st.Counters.DecodeErrors)
	assert.Equal(t, 0, st.Active)

	nodes, err := svc.Nodes(context.Background())
	require.NoError(t, err)
	for _, n := range nodes {
		assert.False(t, n.Valid)
	}
}

func TestPollIsSlicedAcrossTicks(t *testing.T) {
	t.Parallel()

	b := newBus(t)
	svc := newService(t, testConfig(), b, nil, orchestrator.Devices{})
	_, err := svc.GetSamples(context.Background(), 1, 1, 0)
	require.NoError(t, err)

	rep, err := svc.Tick(context.Background())
	require.NoError(t, err)
	assert.True(t, rep.Started)
	assert.Equal(t, uint32(1), rep.Round)
	b.AssertNumberOfCalls(t, "Request", 0)

	for i := 1; i <= 4; i++ {
		rep, err = svc.Tick(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, rep.Polled)
		b.AssertNumberOfCalls(t, "Request", i)

		st, err := svc.Status(context.Background())
		require.NoError(t, err)
		assert.LessOrEqual(t, int(st.Round.Polled), st.Total)
		assert.Equal(t, i < 4, st.Round.InProgress)
	}
	assert.True(t, rep.Closed)
}

func TestFreeRunningRounds(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.RoundPeriod = time.Hour
	svc := newService(t, cfg, newBus(t), nil, orchestrator.Devices{})

	rep, err := svc.Tick(context.Background())
	require.NoError(t, err)
	assert.True(t, rep.Started, "first round starts immediately")
	closeRounds(t, svc, 1)

	for range 20 {
		rep, err := svc.Tick(context.Background())
		require.NoError(t, err)
		assert.False(t, rep.Started)
	}

	hist, err := svc.History(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []float32{100}, hist.Ratios)
	assert.Equal(t, orchestrator.DefaultHistorySize, hist.Capacity)
}

func TestSetParams(t *testing.T) {
	t.Parallel()

	b := mocks.NewBus(t)
	b.On("Broadcast", mock.Anything, []byte("P,1.00,127,255,1\n")).Return(nil).Once()

	svc := newService(t, testConfig(), b, nil, orchestrator.Devices{})
	p, err := svc.SetParams(context.Background(), 5, 999, 9999, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, p.Noise, 1e-6)
	assert.Equal(t, int8(127), p.Bias)
	assert.Equal(t, uint8(255), p.Coupling)
	assert.Equal(t, uint8(1), p.Mode)

	p, err = svc.SetNoise(context.Background(), 0.25, 300)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, p.Noise, 1e-6)
	assert.Equal(t, uint8(255), p.Mode)
	assert.Equal(t, int8(127), p.Bias)

	st, err := svc.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, p, st.Params)
}

func TestSetParamsBroadcastFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	b := mocks.NewBus(t)
	b.On("Broadcast", mock.Anything, mock.Anything).Return(bus.ErrBusy)

	svc := newService(t, testConfig(), b, nil, orchestrator.Devices{})
	_, err := svc.SetParams(context.Background(), 0.5, 0, 0, 1)
	require.NoError(t, err)

	st, err := svc.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), st.Counters.Broadcasts)
}

func TestHello(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Version = "1.2.3"
	svc := newService(t, cfg, newBus(t), nil, orchestrator.Devices{})

	h, err := svc.Hello(context.Background())
	require.NoError(t, err)
	assert.Equal(t, orchestrator.Hello{Version: "1.2.3", Nodes: 4, Protocol: 1}, h)
}

type memRecorder struct {
	rows []datalog.Row
	err  error
}

func (m *memRecorder) Name() string { return datalog.Name }

func (m *memRecorder) Init(context.Context) error { return nil }

func (m *memRecorder) Close() error { return nil }

func (m *memRecorder) Record(_ context.Context, r datalog.Row) error {
	if m.err != nil {
		return m.err
	}
	m.rows = append(m.rows, r)

	return nil
}

type brokenDisplay struct{ shows int }

func (d *brokenDisplay) Name() string { return devices.DisplayName }

func (d *brokenDisplay) Init(context.Context) error { return nil }

func (d *brokenDisplay) Show(devices.Summary) error {
	d.shows++

	return errors.New("i2c nack")
}

func TestSideEffects(t *testing.T) {
	t.Parallel()

	rec := &memRecorder{}
	display := &brokenDisplay{}
	svc := newService(t, testConfig(), newBus(t), nil, orchestrator.Devices{
		Display:  display,
		Sensor:   devices.NewSimSensor(3),
		Recorder: rec,
	})

	_, err := svc.GetSamples(context.Background(), 3, 1, 0)
	require.NoError(t, err)
	closeRounds(t, svc, 3)

	require.Len(t, rec.rows, 3)
	row := rec.rows[2]
	assert.Equal(t, uint32(3), row.Round)
	assert.Equal(t, 4, row.Active)
	assert.Equal(t, uint8(0x0F), row.Boundary)
	assert.Equal(t, uint8(0xFF), row.Derived)
	assert.InDelta(t, 100, row.Ratio, 1e-6)
	assert.Equal(t, uint32(4), row.Loss)
	assert.InDelta(t, 0.502, row.AvgNoise, 1e-3)
	assert.InDelta(t, 1013, row.Pressure, 5)

	assert.Equal(t, 1, display.shows, "failed display is not used until retried")

	st, err := svc.Status(context.Background())
	require.NoError(t, err)
	reports := map[string]supervisor.Status{}
	for _, r := range st.Subsystems {
		reports[r.Name] = r.Status
	}
	assert.Equal(t, supervisor.Failed, reports[devices.DisplayName])
	assert.Equal(t, supervisor.Ready, reports[datalog.Name])
	assert.Equal(t, supervisor.Ready, reports[devices.SensorName])
}

func TestNewServiceValidation(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Addresses = []uint8{0x10, 0x10}
	_, err := orchestrator.NewService(cfg, newBus(t), nil, orchestrator.Devices{}, nil, slog.Default())
	assert.Error(t, err)

	cfg = testConfig()
	cfg.Addresses = []uint8{0x10, 0x11}
	_, err = orchestrator.NewService(cfg, newBus(t), nil, orchestrator.Devices{}, nil, slog.Default())
	assert.ErrorIs(t, err, reconstruct.ErrUnknownNode)

	_, err = orchestrator.NewService(testConfig(), nil, nil, orchestrator.Devices{}, nil, slog.Default())
	assert.Error(t, err)
}
