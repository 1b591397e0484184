package orchestrator

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/absmach/sampler/pkg/bus"
	"github.com/absmach/sampler/pkg/protocol"
	"github.com/absmach/sampler/pkg/reconstruct"
)

const (
	DefaultRoundPeriod  = 1500 * time.Millisecond
	DefaultBatchSpacing = 20 * time.Millisecond
	DefaultPollPerTick  = 1
	DefaultHistorySize  = 64
)

var (
	errNoNodes       = errors.New("at least one node address is required")
	errTooManyNodes  = errors.New("at most 8 nodes fit in a boundary mask")
	errDuplicateNode = errors.New("duplicate node address")
)

type Config struct {
	Version   string
	Addresses []uint8
	Table     reconstruct.Table
	// RoundPeriod paces free-running rounds. A non-positive period disables
	// rounds outside of a batch.
	RoundPeriod time.Duration
	// BatchSpacing is the minimum time between round starts while a batch
	// is active.
	BatchSpacing    time.Duration
	PollPerTick     int
	HistorySize     int
	BroadcastParams bool
	Params          protocol.Params
}

func DefaultConfig() Config {
	return Config{
		Version:         "0.0.0",
		Addresses:       slices.Clone(bus.DefaultAddresses),
		Table:           slices.Clone(reconstruct.DefaultTable),
		RoundPeriod:     DefaultRoundPeriod,
		BatchSpacing:    DefaultBatchSpacing,
		PollPerTick:     DefaultPollPerTick,
		HistorySize:     DefaultHistorySize,
		BroadcastParams: true,
		Params:          protocol.Params{Noise: 0.2, Bias: 0, Coupling: 32, Mode: 1},
	}
}

func (c Config) Validate() error {
	switch {
	case len(c.Addresses) == 0:
		return errNoNodes
	case len(c.Addresses) > 8:
		return errTooManyNodes
	}
	seen := make(map[uint8]struct{}, len(c.Addresses))
	for _, addr := range c.Addresses {
		if _, ok := seen[addr]; ok {
			return fmt.Errorf("%w: %#02x", errDuplicateNode, addr)
		}
		seen[addr] = struct{}{}
	}
	if err := c.Table.Validate(len(c.Addresses)); err != nil {
		return err
	}
	if c.PollPerTick < 1 {
		return errors.New("poll per tick must be at least 1")
	}
	if c.HistorySize < 1 {
		return errors.New("history size must be at least 1")
	}

	return nil
}
