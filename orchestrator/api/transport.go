package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/absmach/sampler/orchestrator"
	"github.com/absmach/sampler/pkg/api"
	"github.com/absmach/sampler/pkg/datalog"
	"github.com/go-chi/chi/v5"
	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// MakeHandler returns the orchestrator HTTP API. Every service call is
// executed on the orchestrator loop through exec. lister may be nil when
// the round log cannot be read back.
func MakeHandler(exec orchestrator.Executor, lister datalog.Lister, logger *slog.Logger, version, instanceID string) http.Handler {
	mux := chi.NewRouter()

	opts := []kithttp.ServerOption{
		kithttp.ServerErrorEncoder(api.LoggingErrorEncoder(logger, api.EncodeError)),
	}

	mux.Get("/status", otelhttp.NewHandler(kithttp.NewServer(
		statusEndpoint(exec),
		decodeEmptyReq,
		api.EncodeResponse,
		opts...,
	), "get-status").ServeHTTP)
	mux.Get("/history", otelhttp.NewHandler(kithttp.NewServer(
		historyEndpoint(exec),
		decodeEmptyReq,
		api.EncodeResponse,
		opts...,
	), "get-history").ServeHTTP)
	mux.Get("/nodes", otelhttp.NewHandler(kithttp.NewServer(
		nodesEndpoint(exec),
		decodeEmptyReq,
		api.EncodeResponse,
		opts...,
	), "list-nodes").ServeHTTP)
	mux.Get("/rounds", otelhttp.NewHandler(kithttp.NewServer(
		listRoundsEndpoint(lister),
		decodeListRoundsReq,
		api.EncodeResponse,
		opts...,
	), "list-rounds").ServeHTTP)
	mux.Put("/params", otelhttp.NewHandler(kithttp.NewServer(
		setParamsEndpoint(exec),
		decodeParamsReq,
		api.EncodeResponse,
		opts...,
	), "set-params").ServeHTTP)

	mux.Route("/batch", func(r chi.Router) {
		r.Post("/", otelhttp.NewHandler(kithttp.NewServer(
			startBatchEndpoint(exec),
			decodeBatchReq,
			api.EncodeResponse,
			opts...,
		), "start-batch").ServeHTTP)
		r.Post("/stop", otelhttp.NewHandler(kithttp.NewServer(
			stopBatchEndpoint(exec),
			decodeEmptyReq,
			api.EncodeResponse,
			opts...,
		), "stop-batch").ServeHTTP)
	})

	mux.Get("/health", api.Health("orchestrator", version, instanceID))
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

func decodeEmptyReq(_ context.Context, _ *http.Request) (any, error) {
	return emptyReq{}, nil
}

func decodeParamsReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), api.ContentType) {
		return nil, errors.Join(api.ErrValidation, api.ErrUnsupportedContentType)
	}

	var req paramsReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.Join(err, api.ErrValidation)
	}

	return req, nil
}

func decodeBatchReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), api.ContentType) {
		return nil, errors.Join(api.ErrValidation, api.ErrUnsupportedContentType)
	}

	var req batchReq
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, errors.Join(err, api.ErrValidation)
		}
	}

	return req, nil
}

func decodeListRoundsReq(_ context.Context, r *http.Request) (any, error) {
	o, err := api.ReadNumQuery(r, api.OffsetKey, api.DefOffset)
	if err != nil {
		return nil, errors.Join(api.ErrValidation, err)
	}

	l, err := api.ReadNumQuery(r, api.LimitKey, api.DefLimit)
	if err != nil {
		return nil, errors.Join(api.ErrValidation, err)
	}

	return listRoundsReq{
		offset: o,
		limit:  l,
	}, nil
}
