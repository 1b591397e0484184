package orchestrator_test

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/absmach/sampler/orchestrator"
	"github.com/absmach/sampler/peripheral"
	"github.com/absmach/sampler/pkg/bus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type syncEmitter struct {
	mu    sync.Mutex
	lines []string
	done  chan struct{}
}

func (e *syncEmitter) Emit(line string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.lines = append(e.lines, line)
	if strings.HasPrefix(line, "@DONE") {
		close(e.done)
	}
}

func (e *syncEmitter) snapshot() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]string(nil), e.lines...)
}

func TestRunnerWithPeripherals(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := bus.NewMemory(100 * time.Millisecond)
	g, gctx := errgroup.WithContext(ctx)
	for _, addr := range bus.DefaultAddresses {
		events, err := b.Attach(addr)
		require.NoError(t, err)
		cfg := peripheral.Config{Address: addr, Name: "node"}
		state, err := cfg.NewState()
		require.NoError(t, err)
		svc := peripheral.NewService(addr, cfg.Name, state, slog.Default())
		g.Go(func() error { return svc.Run(gctx, events) })
	}

	em := &syncEmitter{done: make(chan struct{})}
	cfg := orchestrator.DefaultConfig()
	cfg.RoundPeriod = 0
	cfg.BatchSpacing = time.Millisecond
	svc, err := orchestrator.NewService(cfg, b, em, orchestrator.Devices{}, nil, slog.Default())
	require.NoError(t, err)

	runner := orchestrator.NewRunner(svc, time.Millisecond, slog.Default())
	g.Go(func() error { return runner.Run(gctx) })

	var info orchestrator.BatchInfo
	err = runner.Exec(ctx, func(ctx context.Context, svc orchestrator.Service) error {
		if _, err := svc.SetParams(ctx, 0.3, 10, 64, 1); err != nil {
			return err
		}
		info, err = svc.GetSamples(ctx, 5, 1, 2)

		return err
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(1), info.Run)

	select {
	case <-em.done:
	case <-time.After(10 * time.Second):
		t.Fatal("batch did not finish")
	}

	lines := em.snapshot()
	require.Len(t, lines, 5*4+1)
	assert.Equal(t, "@DONE LASTTICK=7", lines[len(lines)-1])
	for _, l := range lines[:20] {
		f := strings.Split(l, ",")
		require.Len(t, f, 8)
		assert.Equal(t, "C", f[7])
	}

	var st orchestrator.Status
	require.NoError(t, runner.Exec(ctx, func(ctx context.Context, svc orchestrator.Service) (err error) {
		st, err = svc.Status(ctx)

		return err
	}))
	assert.Equal(t, 4, st.Active)
	assert.InDelta(t, 100, st.MeanRatio, 1e-6)

	cancel()
	_ = g.Wait()
	require.NoError(t, b.Close())

	err = runner.Exec(context.Background(), func(context.Context, orchestrator.Service) error { return nil })
	assert.ErrorIs(t, err, orchestrator.ErrRunnerStopped)
}

func TestRunnerExecCancelled(t *testing.T) {
	svc, err := orchestrator.NewService(orchestrator.DefaultConfig(), bus.NewMemory(time.Millisecond), nil, orchestrator.Devices{}, nil, slog.Default())
	require.NoError(t, err)
	runner := orchestrator.NewRunner(svc, 0, slog.Default())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	// Nothing drains the inbox, so the job never completes.
	err = runner.Exec(ctx, func(context.Context, orchestrator.Service) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
