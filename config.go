package sampler

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/absmach/sampler/pkg/anneal"
	"github.com/absmach/sampler/pkg/bus"
	"github.com/absmach/sampler/pkg/reconstruct"
	"github.com/pelletier/go-toml"
)

var errCoverageNode = errors.New("coverage names a node index outside the node list")

type Config struct {
	Orchestrator OrchestratorConfig `toml:"orchestrator"`
	Peripheral   PeripheralConfig   `toml:"peripheral"`
	Controller   ControllerConfig   `toml:"controller"`
}

type OrchestratorConfig struct {
	ClientID  string `toml:"client_id"`
	ClientKey string `toml:"client_key"`
	ChannelID string `toml:"channel_id"`
	// Nodes are bus addresses, e.g. "0x10".
	Nodes []string `toml:"nodes"`
	// Coverage lists, per derived bit, the node indices that must all
	// answer for the bit to be set.
	Coverage [][]int `toml:"coverage,omitempty"`
}

type PeripheralConfig struct {
	ClientID  string `toml:"client_id"`
	ClientKey string `toml:"client_key"`
	ChannelID string `toml:"channel_id"`
}

type ControllerConfig struct {
	Address     string  `toml:"address"`
	BitsPerNode int     `toml:"bits_per_node"`
	Graph       string  `toml:"graph"`
	TempStart   float64 `toml:"temp_start"`
	TempEnd     float64 `toml:"temp_end"`
	Threshold   float64 `toml:"threshold"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	tree, err := toml.Load(string(data))
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	var cfg Config
	if err := tree.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Addresses parses the node list, falling back to the default bus layout.
func (c OrchestratorConfig) Addresses() ([]uint8, error) {
	if len(c.Nodes) == 0 {
		return append([]uint8(nil), bus.DefaultAddresses...), nil
	}

	addrs := make([]uint8, 0, len(c.Nodes))
	for _, n := range c.Nodes {
		v, err := strconv.ParseUint(strings.TrimSpace(n), 0, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid node address %q: %w", n, err)
		}
		addrs = append(addrs, uint8(v))
	}

	return addrs, nil
}

// Table converts the coverage lists into a reconstruction table, falling
// back to the default table.
func (c OrchestratorConfig) Table() (reconstruct.Table, error) {
	if len(c.Coverage) == 0 {
		return append(reconstruct.Table(nil), reconstruct.DefaultTable...), nil
	}

	nodes := len(c.Nodes)
	if nodes == 0 {
		nodes = len(bus.DefaultAddresses)
	}

	t := make(reconstruct.Table, 0, len(c.Coverage))
	for i, req := range c.Coverage {
		var mask uint8
		for _, idx := range req {
			if idx < 0 || idx >= nodes || idx >= 8 {
				return nil, fmt.Errorf("coverage %d: %w: %d", i, errCoverageNode, idx)
			}
			mask |= 1 << idx
		}
		t = append(t, mask)
	}
	if err := t.Validate(nodes); err != nil {
		return nil, err
	}

	return t, nil
}

// LoadGraph returns the configured graph, or a unit-weight ring over every
// bit when no graph file is set.
func (c ControllerConfig) LoadGraph(nodes int) (anneal.Graph, error) {
	if c.Graph == "" {
		return anneal.Ring(nodes*c.BitsPerNode, 1), nil
	}

	return anneal.LoadGraph(c.Graph)
}

func (c ControllerConfig) Schedule() anneal.Schedule {
	return anneal.Schedule{TempStart: c.TempStart, TempEnd: c.TempEnd}
}
