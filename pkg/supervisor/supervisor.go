// Package supervisor tracks the health of optional collaborators (display,
// clock, storage, sensor). A collaborator that fails to initialise never
// stops the caller; it is retried at most once per retry interval.
package supervisor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"
)

type Status uint8

const (
	Uninitialized Status = iota
	Ready
	Failed
)

func (s Status) String() string {
	switch s {
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "uninitialized"
	}
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	switch str {
	case "ready":
		*s = Ready
	case "failed":
		*s = Failed
	default:
		*s = Uninitialized
	}

	return nil
}

// Subsystem is an optional collaborator with a fallible initialisation.
type Subsystem interface {
	Name() string
	Init(ctx context.Context) error
}

type Report struct {
	Name        string    `json:"name"`
	Status      Status    `json:"status"`
	Error       string    `json:"error,omitempty"`
	Attempts    int       `json:"attempts"`
	LastAttempt time.Time `json:"last_attempt,omitzero"`
}

type entry struct {
	subsystem Subsystem
	status    Status
	err       error
	attempts  int
	last      time.Time
}

// Supervisor is owned by the orchestrator loop and is not safe for
// concurrent use.
type Supervisor struct {
	retry   time.Duration
	now     func() time.Time
	logger  *slog.Logger
	entries []*entry
	byName  map[string]*entry
}

type Option func(*Supervisor)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Supervisor) {
		s.now = now
	}
}

func New(retry time.Duration, logger *slog.Logger, opts ...Option) *Supervisor {
	s := &Supervisor{
		retry:  retry,
		now:    time.Now,
		logger: logger,
		byName: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Register adds subsystems in the Uninitialized state. Registering a name
// twice keeps the first registration.
func (s *Supervisor) Register(subsystems ...Subsystem) {
	for _, sub := range subsystems {
		if _, ok := s.byName[sub.Name()]; ok {
			continue
		}
		e := &entry{subsystem: sub}
		s.entries = append(s.entries, e)
		s.byName[sub.Name()] = e
	}
}

// Start attempts every registered subsystem once and returns the joined
// failures. Callers log the error and carry on.
func (s *Supervisor) Start(ctx context.Context) error {
	var errs []error
	for _, e := range s.entries {
		if err := s.attempt(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Maintain retries subsystems that are not ready and whose last attempt is
// older than the retry interval. It is cheap enough to call every tick.
func (s *Supervisor) Maintain(ctx context.Context) {
	now := s.now()
	for _, e := range s.entries {
		if e.status == Ready {
			continue
		}
		if !e.last.IsZero() && now.Sub(e.last) < s.retry {
			continue
		}
		if err := s.attempt(ctx, e); err == nil {
			s.logger.Info("subsystem recovered", slog.String("subsystem", e.subsystem.Name()), slog.Int("attempts", e.attempts))
		}
	}
}

// MarkFailed records a runtime failure so the subsystem is retried later.
func (s *Supervisor) MarkFailed(name string, err error) {
	e, ok := s.byName[name]
	if !ok {
		return
	}
	if e.status != Failed {
		s.logger.Warn("subsystem failed", slog.String("subsystem", name), slog.Any("error", err))
	}
	e.status = Failed
	e.err = err
	e.last = s.now()
}

func (s *Supervisor) Status(name string) Status {
	if e, ok := s.byName[name]; ok {
		return e.status
	}

	return Uninitialized
}

func (s *Supervisor) Ready(name string) bool {
	return s.Status(name) == Ready
}

func (s *Supervisor) Snapshot() []Report {
	reports := make([]Report, 0, len(s.entries))
	for _, e := range s.entries {
		r := Report{
			Name:        e.subsystem.Name(),
			Status:      e.status,
			Attempts:    e.attempts,
			LastAttempt: e.last,
		}
		if e.err != nil {
			r.Error = e.err.Error()
		}
		reports = append(reports, r)
	}

	return reports
}

func (s *Supervisor) attempt(ctx context.Context, e *entry) error {
	e.attempts++
	e.last = s.now()

	if err := e.subsystem.Init(ctx); err != nil {
		e.status = Failed
		e.err = err
		s.logger.Warn("subsystem initialisation failed",
			slog.String("subsystem", e.subsystem.Name()),
			slog.Int("attempts", e.attempts),
			slog.Any("error", err),
		)

		return err
	}
	e.status = Ready
	e.err = nil

	return nil
}
