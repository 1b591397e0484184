package controller

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

const (
	maxPending  = 50
	keepPending = 20
)

var ErrSampleLine = errors.New("malformed sample line")

// Sample is one decoded O line: the observation of one node in one round.
type Sample struct {
	Round   uint32
	Node    int
	Bitmask uint16
	Loss    uint16
	Noise   float64
	Seed    uint32
	Format  string
}

// ParseSample decodes O,<round>,<node>,<bitmask>,<loss>,<noise>,<seed>[,<format>].
func ParseSample(line string) (Sample, error) {
	f := strings.Split(strings.TrimSpace(line), ",")
	if len(f) < 7 || f[0] != "O" {
		return Sample{}, fmt.Errorf("%w: %q", ErrSampleLine, line)
	}

	round, err1 := strconv.ParseUint(f[1], 10, 32)
	node, err2 := strconv.Atoi(f[2])
	bitmask, err3 := strconv.ParseUint(f[3], 10, 16)
	loss, err4 := strconv.ParseUint(f[4], 10, 16)
	noise, err5 := strconv.ParseFloat(f[5], 64)
	seed, err6 := strconv.ParseUint(f[6], 10, 32)
	if err := errors.Join(err1, err2, err3, err4, err5, err6); err != nil || node < 0 {
		return Sample{}, fmt.Errorf("%w: %q", ErrSampleLine, line)
	}

	s := Sample{
		Round:   uint32(round),
		Node:    node,
		Bitmask: uint16(bitmask),
		Loss:    uint16(loss),
		Noise:   noise,
		Seed:    uint32(seed),
	}
	if len(f) > 7 {
		s.Format = f[7]
	}

	return s, nil
}

// Assembler groups sample lines by round until every node reported.
type Assembler struct {
	nodes       int
	bitsPerNode int
	pending     map[uint32]map[int]uint16
}

func NewAssembler(nodes, bitsPerNode int) *Assembler {
	return &Assembler{
		nodes:       nodes,
		bitsPerNode: bitsPerNode,
		pending:     make(map[uint32]map[int]uint16),
	}
}

// Add buffers s and returns the round's bit vector once complete: nodes in
// index order, each contributing bitsPerNode bits LSB first.
func (a *Assembler) Add(s Sample) ([]uint8, bool) {
	if s.Node >= a.nodes {
		return nil, false
	}

	round, ok := a.pending[s.Round]
	if !ok {
		round = make(map[int]uint16, a.nodes)
		a.pending[s.Round] = round
	}
	round[s.Node] = s.Bitmask

	if len(round) < a.nodes {
		a.trim()

		return nil, false
	}
	delete(a.pending, s.Round)

	bits := make([]uint8, 0, a.nodes*a.bitsPerNode)
	for n := range a.nodes {
		mask := round[n]
		for i := range a.bitsPerNode {
			bits = append(bits, uint8(mask>>i)&1)
		}
	}

	return bits, true
}

// Pending is the number of incomplete rounds held.
func (a *Assembler) Pending() int {
	return len(a.pending)
}

func (a *Assembler) trim() {
	if len(a.pending) <= maxPending {
		return
	}

	rounds := make([]uint32, 0, len(a.pending))
	for r := range a.pending {
		rounds = append(rounds, r)
	}
	slices.Sort(rounds)
	for _, r := range rounds[:len(rounds)-keepPending] {
		delete(a.pending, r)
	}
}
