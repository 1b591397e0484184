// Package controller runs an annealing session against the orchestrator
// console: it configures the nodes, requests a batch, assembles the sample
// lines into bit strings and scores them against a max-cut instance.
package controller

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/absmach/sampler/pkg/anneal"
	"github.com/absmach/sampler/pkg/protocol"
)

const (
	DefaultReadTimeout = 25 * time.Second
	writeTimeout       = time.Second
)

var (
	ErrClosed        = errors.New("console connection closed before the batch finished")
	ErrGraphMismatch = errors.New("graph size does not match nodes x bits per node")
)

type Config struct {
	Nodes       int
	BitsPerNode int
	Params      protocol.Params
	Count       int
	Stride      int
	BurnIn      int
	// Schedule, when set, drives the noise over the batch instead of
	// Params.Noise.
	Schedule    *anneal.Schedule
	Threshold   float64
	ReadTimeout time.Duration
}

type Client struct {
	conn   io.ReadWriteCloser
	cfg    Config
	graph  anneal.Graph
	logger *slog.Logger
}

// NewClient wraps an established console connection. Run consumes it.
func NewClient(conn io.ReadWriteCloser, cfg Config, graph anneal.Graph, logger *slog.Logger) (*Client, error) {
	if cfg.Nodes*cfg.BitsPerNode != graph.Nodes {
		return nil, fmt.Errorf("%w: %d x %d != %d", ErrGraphMismatch, cfg.Nodes, cfg.BitsPerNode, graph.Nodes)
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}

	return &Client{
		conn:   conn,
		cfg:    cfg,
		graph:  graph,
		logger: logger,
	}, nil
}

func Dial(ctx context.Context, address string, cfg Config, graph anneal.Graph, logger *slog.Logger) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to orchestrator console: %w", err)
	}

	c, err := NewClient(conn, cfg, graph, logger)
	if err != nil {
		conn.Close()

		return nil, err
	}

	return c, nil
}

type session struct {
	asm       *Assembler
	tracker   *anneal.Tracker
	pacer     *anneal.Pacer
	collected int
	report    Report
}

// Run performs the session until the batch is done, the console stays
// silent for ReadTimeout or ctx is cancelled. The report is filled in every
// case.
func (c *Client) Run(ctx context.Context) (Report, error) {
	s := &session{
		asm:     NewAssembler(c.cfg.Nodes, c.cfg.BitsPerNode),
		tracker: anneal.NewTracker(),
	}
	if c.cfg.Schedule != nil {
		s.pacer = anneal.NewPacer(*c.cfg.Schedule, c.cfg.Threshold)
	}

	lines := make(chan string)
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(lines)
		scanner := bufio.NewScanner(c.conn)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-done:
				return
			}
		}
	}()
	defer func() {
		close(done)
		c.conn.Close()
		wg.Wait()
	}()

	if err := c.start(s); err != nil {
		return c.finish(s), err
	}

	timer := time.NewTimer(c.cfg.ReadTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := c.send("@STOP"); err != nil {
				c.logger.Debug("failed to stop batch", slog.Any("error", err))
			}

			return c.finish(s), ctx.Err()
		case <-timer.C:
			c.logger.Warn("no data from orchestrator", slog.Duration("timeout", c.cfg.ReadTimeout))
			s.report.TimedOut = true

			return c.finish(s), nil
		case line, ok := <-lines:
			if !ok {
				return c.finish(s), ErrClosed
			}
			timer.Reset(c.cfg.ReadTimeout)
			finished, err := c.handle(s, line)
			if err != nil {
				return c.finish(s), err
			}
			if finished {
				return c.finish(s), nil
			}
		}
	}
}

func (c *Client) start(s *session) error {
	noise := float64(c.cfg.Params.Noise)
	if s.pacer != nil {
		noise, _ = s.pacer.Next(0, c.cfg.Count)
	}

	cmds := []string{
		"@HELLO",
		fmt.Sprintf("@PARAM N=%.2f B=%d K=%d M=%d", noise, c.cfg.Params.Bias, c.cfg.Params.Coupling, c.cfg.Params.Mode),
		fmt.Sprintf("@GET K=%d STRIDE=%d BURN=%d", c.cfg.Count, c.cfg.Stride, c.cfg.BurnIn),
	}
	for _, cmd := range cmds {
		if err := c.send(cmd); err != nil {
			return err
		}
	}

	return nil
}

func (c *Client) handle(s *session, line string) (bool, error) {
	switch {
	case line == "":
		return false, nil
	case strings.HasPrefix(line, "O,"):
		return false, c.sample(s, line)
	case strings.HasPrefix(line, "@DONE"):
		s.report.Done = true
		if v, ok := parseKV(line, "@DONE")["LASTTICK"]; ok {
			tick, _ := strconv.ParseUint(v, 10, 32)
			s.report.LastTick = uint32(tick)
		}
		c.logger.Info("batch finished", slog.Uint64("last_tick", uint64(s.report.LastTick)))

		return true, nil
	case strings.HasPrefix(line, "@BATCH"):
		s.report.Batch = parseKV(line, "@BATCH")
		c.logger.Info("batch armed", slog.Any("batch", s.report.Batch))
	case strings.HasPrefix(line, "@HELLO"):
		s.report.Hello = line
		c.logger.Info("orchestrator connected", slog.String("hello", line))
	case strings.HasPrefix(line, "@ERR"):
		c.logger.Warn("orchestrator rejected command", slog.String("reply", line))
	default:
		c.logger.Debug("console message", slog.String("line", line))
	}

	return false, nil
}

func (c *Client) sample(s *session, line string) error {
	smp, err := ParseSample(line)
	if err != nil {
		s.report.Rejected++
		c.logger.Debug("rejected sample line", slog.Any("error", err))

		return nil
	}

	bits, ok := s.asm.Add(smp)
	if !ok {
		return nil
	}
	score, err := c.graph.Cut(bits)
	if err != nil {
		return err
	}
	if s.tracker.Add(smp.Round, bits, score) {
		c.logger.Info("new best sample",
			slog.Uint64("tick", uint64(smp.Round)),
			slog.Float64("score", score),
			slog.String("bits", anneal.BitString(bits)),
		)
	}
	s.collected++

	if s.pacer == nil {
		return nil
	}
	if noise, ok := s.pacer.Next(s.collected, c.total(s)); ok {
		return c.send(fmt.Sprintf("@PARAM N=%.2f", noise))
	}

	return nil
}

// total prefers the batch size acknowledged by the orchestrator, which may
// have been clamped.
func (c *Client) total(s *session) int {
	if v, ok := s.report.Batch["K"]; ok {
		if k, err := strconv.Atoi(v); err == nil {
			return k
		}
	}

	return c.cfg.Count
}

func (c *Client) send(cmd string) error {
	if dc, ok := c.conn.(interface{ SetWriteDeadline(time.Time) error }); ok {
		_ = dc.SetWriteDeadline(time.Now().Add(writeTimeout))
	}
	if _, err := io.WriteString(c.conn, cmd+"\n"); err != nil {
		return fmt.Errorf("failed to send %q: %w", cmd, err)
	}

	return nil
}

func (c *Client) finish(s *session) Report {
	rep := s.report
	rep.Samples = s.tracker.Samples()
	rep.Evolution = s.tracker.Evolution()
	rep.Best, rep.HasBest = s.tracker.Best()
	rep.MaxCut = c.graph.MaxCut()
	rep.Efficiency = efficiency(rep.Best, rep.HasBest, rep.MaxCut)

	return rep
}

func parseKV(line, prefix string) map[string]string {
	out := make(map[string]string)
	for _, tok := range strings.Fields(strings.TrimPrefix(line, prefix)) {
		if k, v, ok := strings.Cut(tok, "="); ok {
			out[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}

	return out
}
