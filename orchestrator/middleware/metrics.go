package middleware

import (
	"context"
	"time"

	"github.com/absmach/sampler/orchestrator"
	"github.com/absmach/sampler/pkg/protocol"
	"github.com/go-kit/kit/metrics"
)

var _ orchestrator.Service = (*metricsMiddleware)(nil)

type metricsMiddleware struct {
	counter metrics.Counter
	latency metrics.Histogram
	svc     orchestrator.Service
}

func Metrics(counter metrics.Counter, latency metrics.Histogram, svc orchestrator.Service) orchestrator.Service {
	return &metricsMiddleware{
		counter: counter,
		latency: latency,
		svc:     svc,
	}
}

func (mm *metricsMiddleware) observe(method string, begin time.Time) {
	mm.counter.With("method", method).Add(1)
	mm.latency.With("method", method).Observe(time.Since(begin).Seconds())
}

func (mm *metricsMiddleware) Hello(ctx context.Context) (orchestrator.Hello, error) {
	defer mm.observe("hello", time.Now())

	return mm.svc.Hello(ctx)
}

func (mm *metricsMiddleware) SetNoise(ctx context.Context, noise float64, mode int) (protocol.Params, error) {
	defer mm.observe("set-noise", time.Now())

	return mm.svc.SetNoise(ctx, noise, mode)
}

func (mm *metricsMiddleware) SetParams(ctx context.Context, noise float64, bias, coupling, mode int) (protocol.Params, error) {
	defer mm.observe("set-params", time.Now())

	return mm.svc.SetParams(ctx, noise, bias, coupling, mode)
}

func (mm *metricsMiddleware) GetSamples(ctx context.Context, count, stride, burnIn int) (orchestrator.BatchInfo, error) {
	defer mm.observe("get-samples", time.Now())

	return mm.svc.GetSamples(ctx, count, stride, burnIn)
}

func (mm *metricsMiddleware) Stop(ctx context.Context) error {
	defer mm.observe("stop", time.Now())

	return mm.svc.Stop(ctx)
}

func (mm *metricsMiddleware) Tick(ctx context.Context) (orchestrator.TickReport, error) {
	defer mm.observe("tick", time.Now())

	return mm.svc.Tick(ctx)
}

func (mm *metricsMiddleware) Status(ctx context.Context) (orchestrator.Status, error) {
	defer mm.observe("status", time.Now())

	return mm.svc.Status(ctx)
}

func (mm *metricsMiddleware) History(ctx context.Context) (orchestrator.HistoryPage, error) {
	defer mm.observe("history", time.Now())

	return mm.svc.History(ctx)
}

func (mm *metricsMiddleware) Nodes(ctx context.Context) ([]orchestrator.Node, error) {
	defer mm.observe("nodes", time.Now())

	return mm.svc.Nodes(ctx)
}
