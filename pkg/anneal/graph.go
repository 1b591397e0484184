package anneal

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	KindRing   = "ring"
	KindCustom = "custom"
)

var (
	ErrEmptyGraph   = errors.New("graph has no nodes")
	ErrEdgeRange    = errors.New("edge endpoint outside the graph")
	ErrSelfLoop     = errors.New("edge joins a node to itself")
	ErrBitsMismatch = errors.New("bit string length does not match the graph")
	ErrUnknownKind  = errors.New("unknown graph kind")
)

type Edge struct {
	From   int     `json:"from"   yaml:"from"`
	To     int     `json:"to"     yaml:"to"`
	Weight float64 `json:"weight" yaml:"weight"`
}

// Graph is a weighted max-cut instance over Nodes bits.
type Graph struct {
	Kind   string  `json:"kind"   yaml:"kind"`
	Nodes  int     `json:"nodes"  yaml:"nodes"`
	Weight float64 `json:"weight" yaml:"weight"`
	Edges  []Edge  `json:"edges"  yaml:"edges"`
}

// Ring connects node i to node (i+1) mod n with weight w.
func Ring(n int, w float64) Graph {
	g := Graph{Kind: KindRing, Nodes: n, Weight: w}
	for i := range n {
		g.Edges = append(g.Edges, Edge{From: i, To: (i + 1) % n, Weight: w})
	}

	return g
}

// LoadGraph reads a YAML graph. A ring without explicit edges is expanded.
func LoadGraph(path string) (Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Graph{}, fmt.Errorf("error reading graph file: %w", err)
	}

	return ParseGraph(data)
}

func ParseGraph(data []byte) (Graph, error) {
	var g Graph
	if err := yaml.Unmarshal(data, &g); err != nil {
		return Graph{}, fmt.Errorf("error parsing graph file: %w", err)
	}

	switch g.Kind {
	case KindRing, "":
		if len(g.Edges) == 0 {
			w := g.Weight
			if w == 0 {
				w = 1
			}
			g = Ring(g.Nodes, w)
		}
	case KindCustom:
	default:
		return Graph{}, fmt.Errorf("%w: %s", ErrUnknownKind, g.Kind)
	}

	if err := g.Validate(); err != nil {
		return Graph{}, err
	}

	return g, nil
}

func (g Graph) Validate() error {
	if g.Nodes <= 0 {
		return ErrEmptyGraph
	}
	for i, e := range g.Edges {
		if e.From < 0 || e.From >= g.Nodes || e.To < 0 || e.To >= g.Nodes {
			return fmt.Errorf("edge %d (%d-%d): %w", i, e.From, e.To, ErrEdgeRange)
		}
		if e.From == e.To {
			return fmt.Errorf("edge %d: %w", i, ErrSelfLoop)
		}
	}

	return nil
}

// Cut sums the weight of edges whose endpoints fall on different sides.
func (g Graph) Cut(bits []uint8) (float64, error) {
	if len(bits) != g.Nodes {
		return 0, fmt.Errorf("%w: got %d bits, graph has %d nodes", ErrBitsMismatch, len(bits), g.Nodes)
	}

	score := 0.0
	for _, e := range g.Edges {
		if bits[e.From] != bits[e.To] {
			score += e.Weight
		}
	}

	return score, nil
}

// MaxCut is the sum of positive edge weights, an upper bound of Cut.
func (g Graph) MaxCut() float64 {
	total := 0.0
	for _, e := range g.Edges {
		if e.Weight > 0 {
			total += e.Weight
		}
	}

	return total
}
