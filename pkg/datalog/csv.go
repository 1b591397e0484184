package datalog

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
)

const filePermissions = 0o644

var _ Recorder = (*CSVRecorder)(nil)

type CSVRecorder struct {
	path string
	file *os.File
	w    *csv.Writer
}

func NewCSV(path string) *CSVRecorder {
	return &CSVRecorder{path: path}
}

func (c *CSVRecorder) Name() string {
	return Name
}

// Init opens the file for appending and writes the header if the file is
// new or empty.
func (c *CSVRecorder) Init(context.Context) error {
	if c.file != nil {
		_ = c.file.Close()
		c.file, c.w = nil, nil
	}

	f, err := os.OpenFile(c.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, filePermissions)
	if err != nil {
		return fmt.Errorf("unable to open round log '%s': %w", c.path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()

		return fmt.Errorf("unable to stat round log '%s': %w", c.path, err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(Header); err != nil {
			_ = f.Close()

			return fmt.Errorf("%w: %w", ErrWrite, err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			_ = f.Close()

			return fmt.Errorf("%w: %w", ErrWrite, err)
		}
	}
	c.file, c.w = f, w

	return nil
}

func (c *CSVRecorder) Record(_ context.Context, r Row) error {
	if c.w == nil {
		return ErrNotOpen
	}
	if err := c.w.Write(r.Strings()); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}

	return nil
}

func (c *CSVRecorder) Close() error {
	if c.file == nil {
		return nil
	}
	err := c.file.Close()
	c.file, c.w = nil, nil

	return err
}
