package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
)

const maxLine = 256

type Server struct {
	handler *Handler
	bcast   *Broadcaster
	logger  *slog.Logger
	wg      sync.WaitGroup
}

func NewServer(handler *Handler, bcast *Broadcaster, logger *slog.Logger) *Server {
	return &Server{
		handler: handler,
		bcast:   bcast,
		logger:  logger,
	}
}

// Serve accepts controllers on ln until ctx is done. It closes ln and
// waits for every connection to finish before returning.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	s.logger.Info("console listening", slog.String("address", ln.Addr().String()))

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.wg.Wait()
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			s.logger.Error("failed to accept connection", slog.Any("error", err))

			return err
		}
		s.logger.Debug("accepted connection", slog.String("from", conn.RemoteAddr().String()))

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(ctx, conn)
		}()
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	id, lines := s.bcast.Subscribe()
	defer s.bcast.Unsubscribe(id)

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	busy := make(chan struct{})
	replies := make(chan string, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer cancel()
		s.write(ctx, conn, busy, replies, lines)
	}()

	r := bufio.NewReaderSize(conn, maxLine)
	for {
		line, err := readLine(r)
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				s.logger.Warn("console connection read failed", slog.Any("error", err))
			}
			break
		}
		if line.text == "" {
			continue
		}
		// Lines emitted while the command runs stay queued until its reply is written.
		select {
		case busy <- struct{}{}:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
		reply := fmt.Sprintf("@ERR UNKNOWN '%s'", line.text)
		if !line.truncated {
			reply = s.handler.Handle(ctx, line.text)
		}
		select {
		case replies <- reply:
		case <-ctx.Done():
		}
	}

	cancel()
	<-done
	s.logger.Debug("connection closed", slog.String("from", conn.RemoteAddr().String()))
}

type inputLine struct {
	text      string
	truncated bool
}

// readLine returns the next trimmed line from r. A line longer than the
// reader's buffer is cut to the buffered prefix and the rest of it is
// discarded up to the next newline.
func readLine(r *bufio.Reader) (inputLine, error) {
	b, err := r.ReadSlice('\n')
	switch {
	case err == nil:
		return inputLine{text: strings.TrimSpace(string(b))}, nil
	case errors.Is(err, bufio.ErrBufferFull):
		line := inputLine{text: strings.TrimSpace(string(b)), truncated: true}
		for errors.Is(err, bufio.ErrBufferFull) {
			_, err = r.ReadSlice('\n')
		}
		if err != nil {
			return inputLine{}, err
		}

		return line, nil
	case errors.Is(err, io.EOF) && len(b) > 0:
		return inputLine{text: strings.TrimSpace(string(b))}, nil
	default:
		return inputLine{}, err
	}
}

// write is the only writer of conn, so replies and emitted lines never
// interleave mid-line. After a signal on busy it writes nothing but the
// pending reply.
func (s *Server) write(ctx context.Context, conn net.Conn, busy <-chan struct{}, replies, lines <-chan string) {
	w := bufio.NewWriter(conn)
	for {
		var line string
		select {
		case <-ctx.Done():
			return
		case <-busy:
			select {
			case <-ctx.Done():
				return
			case line = <-replies:
			}
		case l, ok := <-lines:
			if !ok {
				return
			}
			line = l
		}
		if _, err := w.WriteString(line + "\n"); err != nil {
			return
		}
		if err := w.Flush(); err != nil {
			return
		}
	}
}
