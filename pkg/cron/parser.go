// Package cron parses the schedules of recurring batches.
package cron

import (
	"errors"
	"time"

	"github.com/robfig/cron/v3"
)

var ErrInvalidCronExpression = errors.New("invalid cron expression")

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Schedule is a parsed five-field cron expression or descriptor such as
// "@hourly" or "@every 10m", evaluated in a fixed location.
type Schedule struct {
	expr string
	spec cron.Schedule
	loc  *time.Location
}

// Parse parses expr. An unknown timezone falls back to UTC.
func Parse(expr, timezone string) (*Schedule, error) {
	if expr == "" {
		return nil, ErrInvalidCronExpression
	}

	spec, err := parser.Parse(expr)
	if err != nil {
		return nil, errors.Join(ErrInvalidCronExpression, err)
	}

	loc := time.UTC
	if timezone != "" {
		if l, err := time.LoadLocation(timezone); err == nil {
			loc = l
		}
	}

	return &Schedule{
		expr: expr,
		spec: spec,
		loc:  loc,
	}, nil
}

func Validate(expr string) error {
	_, err := Parse(expr, "")

	return err
}

// Next returns the first activation strictly after from.
func (s *Schedule) Next(from time.Time) time.Time {
	if s == nil || s.spec == nil {
		return time.Time{}
	}

	return s.spec.Next(from.In(s.loc))
}

func (s *Schedule) String() string {
	return s.expr
}
