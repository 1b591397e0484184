package devices

import (
	"context"
	"errors"
	"io"

	"github.com/fatih/color"
)

var _ StatusLED = (*TerminalLED)(nil)

var errNoWriter = errors.New("status LED has no output")

// TerminalLED prints colour changes to a terminal. Repeated colours are not
// printed again.
type TerminalLED struct {
	out  io.Writer
	last Color
}

func NewTerminalLED(out io.Writer) *TerminalLED {
	return &TerminalLED{out: out}
}

func (l *TerminalLED) Name() string {
	return LEDName
}

func (l *TerminalLED) Init(context.Context) error {
	if l.out == nil {
		return errNoWriter
	}
	l.last = Color{}

	return l.Set(Off)
}

func (l *TerminalLED) Set(c Color) error {
	if l.out == nil {
		return errNoWriter
	}
	if c == l.last {
		return nil
	}
	l.last = c

	_, err := color.RGB(int(c.R), int(c.G), int(c.B)).Fprintf(l.out, "● %s\n", c.Name)

	return err
}

func (l *TerminalLED) Current() Color {
	return l.last
}
