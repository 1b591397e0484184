package server_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/absmach/sampler/pkg/server"
	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestStartStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := server.NewHTTPServer(ctx, cancel, "test", server.Config{Host: "127.0.0.1", Port: "0"}, http.NotFoundHandler(), logger)

	done := make(chan error, 1)
	go func() {
		done <- s.Start()
	}()

	cancel()
	assert.NoError(t, <-done)
}

func TestStopSignalHandlerReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := server.StopSignalHandler(ctx, cancel, slog.New(slog.NewTextHandler(io.Discard, nil)), "test")
	assert.NoError(t, err)
}
