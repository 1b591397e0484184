// Package server runs the HTTP surfaces of the sampler services and stops
// them on SIGINT or SIGTERM.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const (
	stopWaitTime = 5 * time.Second
	readTimeout  = 10 * time.Second
)

type Config struct {
	Host     string `env:"HOST"      envDefault:"localhost"`
	Port     string `env:"PORT"      envDefault:""`
	CertFile string `env:"CERT_FILE" envDefault:""`
	KeyFile  string `env:"KEY_FILE"  envDefault:""`
}

type Server interface {
	Start() error
	Stop() error
}

type httpServer struct {
	ctx     context.Context
	cancel  context.CancelFunc
	name    string
	address string
	config  Config
	server  *http.Server
	logger  *slog.Logger
}

var _ Server = (*httpServer)(nil)

func NewHTTPServer(ctx context.Context, cancel context.CancelFunc, name string, config Config, handler http.Handler, logger *slog.Logger) Server {
	address := fmt.Sprintf("%s:%s", config.Host, config.Port)

	return &httpServer{
		ctx:     ctx,
		cancel:  cancel,
		name:    name,
		address: address,
		config:  config,
		server: &http.Server{
			Addr:              address,
			Handler:           handler,
			ReadHeaderTimeout: readTimeout,
		},
		logger: logger,
	}
}

func (s *httpServer) Start() error {
	errCh := make(chan error, 1)

	go func() {
		switch {
		case s.config.CertFile != "" || s.config.KeyFile != "":
			s.logger.Info(fmt.Sprintf("%s service HTTPS server listening at %s with TLS cert %s and key %s", s.name, s.address, s.config.CertFile, s.config.KeyFile))
			errCh <- s.server.ListenAndServeTLS(s.config.CertFile, s.config.KeyFile)
		default:
			s.logger.Info(fmt.Sprintf("%s service HTTP server listening at %s without TLS", s.name, s.address))
			errCh <- s.server.ListenAndServe()
		}
	}()

	select {
	case <-s.ctx.Done():
		return s.Stop()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return err
	}
}

func (s *httpServer) Stop() error {
	defer s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), stopWaitTime)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error(fmt.Sprintf("%s service error occurred during shutdown at %s: %s", s.name, s.address, err))

		return fmt.Errorf("%s service occurred during shutdown at %s: %w", s.name, s.address, err)
	}
	s.logger.Info(fmt.Sprintf("%s HTTP service shutdown of http at %s", s.name, s.address))

	return nil
}

// StopSignalHandler blocks until ctx is done or a stop signal arrives,
// then stops every server and cancels ctx.
func StopSignalHandler(ctx context.Context, cancel context.CancelFunc, logger *slog.Logger, svcName string, servers ...Server) error {
	var err error
	c := make(chan os.Signal, 2)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(c)

	select {
	case sig := <-c:
		defer cancel()
		for _, s := range servers {
			err = errors.Join(err, s.Stop())
		}
		logger.Info(fmt.Sprintf("%s service shutdown by signal: %s", svcName, sig))

		return err
	case <-ctx.Done():
		return nil
	}
}
