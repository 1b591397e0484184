package console

import (
	"fmt"
	"strconv"
	"strings"

	pkgerrors "github.com/absmach/sampler/pkg/errors"
)

type Kind uint8

const (
	Hello Kind = iota + 1
	Set
	Param
	Get
	Stop
	Status
)

var kinds = map[string]Kind{
	"@HELLO":  Hello,
	"@SET":    Set,
	"@PARAM":  Param,
	"@GET":    Get,
	"@STOP":   Stop,
	"@STATUS": Status,
}

// Command is a parsed controller line. Nil arguments were not supplied.
type Command struct {
	Kind     Kind
	Line     string
	Noise    *float64
	Bias     *int
	Coupling *int
	Mode     *int
	Count    *int
	Stride   *int
	BurnIn   *int
}

// Parse reads a single controller line. Keys not meaningful for the
// command are ignored; a key with a malformed value fails the whole line.
func Parse(line string) (Command, error) {
	line = strings.TrimSpace(line)
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, pkgerrors.ErrUnknownCommand
	}

	kind, ok := kinds[strings.ToUpper(fields[0])]
	if !ok {
		return Command{}, pkgerrors.ErrUnknownCommand
	}
	cmd := Command{Kind: kind, Line: line}

	for _, tok := range fields[1:] {
		key, val, ok := strings.Cut(tok, "=")
		if !ok || val == "" {
			return Command{}, fmt.Errorf("%w: %q", pkgerrors.ErrMalformedEntity, tok)
		}
		if err := cmd.assign(strings.ToUpper(key), val); err != nil {
			return Command{}, fmt.Errorf("%w: %q", pkgerrors.ErrMalformedEntity, tok)
		}
	}

	return cmd, nil
}

func (c *Command) assign(key, val string) error {
	switch {
	case key == "N" && (c.Kind == Set || c.Kind == Param):
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return err
		}
		c.Noise = &f
	case key == "M" && (c.Kind == Set || c.Kind == Param):
		return setInt(&c.Mode, val)
	case key == "B" && c.Kind == Param:
		return setInt(&c.Bias, val)
	case key == "K" && c.Kind == Param:
		return setInt(&c.Coupling, val)
	case key == "K" && c.Kind == Get:
		return setInt(&c.Count, val)
	case key == "STRIDE" && c.Kind == Get:
		return setInt(&c.Stride, val)
	case key == "BURN" && c.Kind == Get:
		return setInt(&c.BurnIn, val)
	}

	return nil
}

func setInt(dst **int, val string) error {
	v, err := strconv.Atoi(val)
	if err != nil {
		return err
	}
	*dst = &v

	return nil
}

func valueOr[T any](p *T, def T) T {
	if p == nil {
		return def
	}

	return *p
}
