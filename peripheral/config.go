package peripheral

import (
	"errors"
	"fmt"

	"github.com/absmach/sampler/pkg/protocol"
)

type Config struct {
	Address uint8
	Name    string
	Format  string
	// Zero seeds are derived from Address.
	LFSRSeed uint16
	RNGSeed  uint32
}

func (c Config) Validate() error {
	if c.Address < 0x08 || c.Address > 0x77 {
		return fmt.Errorf("address %#02x is outside the 7-bit bus range", c.Address)
	}
	if c.Name == "" {
		return errors.New("name is required")
	}
	if c.Format != "" {
		if _, err := protocol.ParseFormat(c.Format); err != nil {
			return err
		}
	}

	return nil
}

// NewState builds the node register described by c.
func (c Config) NewState() (*State, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	format := protocol.Compact
	if c.Format != "" {
		format, _ = protocol.ParseFormat(c.Format)
	}

	lfsr, rng := SeedsFor(c.Address)
	if c.LFSRSeed != 0 {
		lfsr = c.LFSRSeed
	}
	if c.RNGSeed != 0 {
		rng = c.RNGSeed
	}

	return NewState(lfsr, rng, format), nil
}
