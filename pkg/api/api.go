// Package api holds the HTTP encoding helpers shared by the HTTP services.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	pkgerrors "github.com/absmach/sampler/pkg/errors"
	kithttp "github.com/go-kit/kit/transport/http"
)

const (
	OffsetKey = "offset"
	LimitKey  = "limit"
	DefOffset = 0
	DefLimit  = 100

	ContentType = "application/json"

	MaxLimitSize = 100
)

var (
	ErrValidation             = errors.New("failed to perform validation on the request")
	ErrUnsupportedContentType = errors.New("unsupported content type")
	ErrInvalidQueryParams     = errors.New("invalid query parameters")
	ErrLimitSize              = errors.New("invalid limit size")
	ErrUnavailable            = errors.New("service is not running")
)

// Response is implemented by every endpoint response so the encoder can
// pick the status code and headers.
type Response interface {
	Code() int
	Headers() map[string]string
	Empty() bool
}

func EncodeResponse(_ context.Context, w http.ResponseWriter, response any) error {
	if ar, ok := response.(Response); ok {
		for k, v := range ar.Headers() {
			w.Header().Set(k, v)
		}
		w.Header().Set("Content-Type", ContentType)
		w.WriteHeader(ar.Code())

		if ar.Empty() {
			return nil
		}
	}

	return json.NewEncoder(w).Encode(response)
}

type errorRes struct {
	Err string `json:"error"`
}

func EncodeError(_ context.Context, err error, w http.ResponseWriter) {
	w.Header().Set("Content-Type", ContentType)
	switch {
	case errors.Is(err, ErrValidation),
		errors.Is(err, pkgerrors.ErrMalformedEntity),
		errors.Is(err, ErrInvalidQueryParams):
		w.WriteHeader(http.StatusBadRequest)
	case errors.Is(err, ErrUnsupportedContentType):
		w.WriteHeader(http.StatusUnsupportedMediaType)
	case errors.Is(err, pkgerrors.ErrNotFound):
		w.WriteHeader(http.StatusNotFound)
	case errors.Is(err, ErrUnavailable):
		w.WriteHeader(http.StatusServiceUnavailable)
	default:
		w.WriteHeader(http.StatusInternalServerError)
	}

	if err := json.NewEncoder(w).Encode(errorRes{Err: err.Error()}); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// LoggingErrorEncoder logs every error before handing it to enc.
func LoggingErrorEncoder(logger *slog.Logger, enc kithttp.ErrorEncoder) kithttp.ErrorEncoder {
	return func(ctx context.Context, err error, w http.ResponseWriter) {
		logger.Warn("request failed", slog.Any("error", err))
		enc(ctx, err, w)
	}
}

// ReadNumQuery reads an unsigned query parameter, returning def when it is
// absent.
func ReadNumQuery(r *http.Request, key string, def uint64) (uint64, error) {
	vals := r.URL.Query()[key]
	if len(vals) > 1 {
		return 0, ErrInvalidQueryParams
	}
	if len(vals) == 0 || vals[0] == "" {
		return def, nil
	}
	v, err := strconv.ParseUint(vals[0], 10, 64)
	if err != nil {
		return 0, errors.Join(ErrInvalidQueryParams, err)
	}

	return v, nil
}

type health struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	Service    string `json:"service"`
	InstanceID string `json:"instance_id"`
}

// Health serves the liveness document of a service.
func Health(service, version, instanceID string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", ContentType)
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(health{
			Status:     "pass",
			Version:    version,
			Service:    service,
			InstanceID: instanceID,
		})
	}
}
