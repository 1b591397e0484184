package middleware

import (
	"context"

	"github.com/absmach/sampler/orchestrator"
	"github.com/absmach/sampler/pkg/protocol"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var _ orchestrator.Service = (*tracing)(nil)

type tracing struct {
	tracer trace.Tracer
	svc    orchestrator.Service
}

func Tracing(tracer trace.Tracer, svc orchestrator.Service) orchestrator.Service {
	return &tracing{tracer, svc}
}

func (tm *tracing) Hello(ctx context.Context) (orchestrator.Hello, error) {
	ctx, span := tm.tracer.Start(ctx, "hello")
	defer span.End()

	return tm.svc.Hello(ctx)
}

func (tm *tracing) SetNoise(ctx context.Context, noise float64, mode int) (protocol.Params, error) {
	ctx, span := tm.tracer.Start(ctx, "set-noise", trace.WithAttributes(
		attribute.Float64("noise", noise),
		attribute.Int("mode", mode),
	))
	defer span.End()

	return tm.svc.SetNoise(ctx, noise, mode)
}

func (tm *tracing) SetParams(ctx context.Context, noise float64, bias, coupling, mode int) (protocol.Params, error) {
	ctx, span := tm.tracer.Start(ctx, "set-params", trace.WithAttributes(
		attribute.Float64("noise", noise),
		attribute.Int("bias", bias),
		attribute.Int("coupling", coupling),
		attribute.Int("mode", mode),
	))
	defer span.End()

	return tm.svc.SetParams(ctx, noise, bias, coupling, mode)
}

func (tm *tracing) GetSamples(ctx context.Context, count, stride, burnIn int) (orchestrator.BatchInfo, error) {
	ctx, span := tm.tracer.Start(ctx, "get-samples", trace.WithAttributes(
		attribute.Int("count", count),
		attribute.Int("stride", stride),
		attribute.Int("burn_in", burnIn),
	))
	defer span.End()

	return tm.svc.GetSamples(ctx, count, stride, burnIn)
}

func (tm *tracing) Stop(ctx context.Context) error {
	ctx, span := tm.tracer.Start(ctx, "stop")
	defer span.End()

	return tm.svc.Stop(ctx)
}

// Tick is not traced.
func (tm *tracing) Tick(ctx context.Context) (orchestrator.TickReport, error) {
	return tm.svc.Tick(ctx)
}

func (tm *tracing) Status(ctx context.Context) (orchestrator.Status, error) {
	ctx, span := tm.tracer.Start(ctx, "status")
	defer span.End()

	return tm.svc.Status(ctx)
}

func (tm *tracing) History(ctx context.Context) (orchestrator.HistoryPage, error) {
	ctx, span := tm.tracer.Start(ctx, "history")
	defer span.End()

	return tm.svc.History(ctx)
}

func (tm *tracing) Nodes(ctx context.Context) ([]orchestrator.Node, error) {
	ctx, span := tm.tracer.Start(ctx, "nodes")
	defer span.End()

	return tm.svc.Nodes(ctx)
}
