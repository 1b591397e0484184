package peripheral

import (
	"math"

	"github.com/absmach/sampler/pkg/protocol"
)

const (
	lfsrTaps     uint16 = 0xB400
	lfsrFallback uint16 = 0xACE1
	rngFallback  uint32 = 0x2545F491

	registerBits = 16
	groupBits    = 4
	// ModeHold keeps the register untouched on a trigger.
	ModeHold uint8 = 0
)

// State is the local register of one peripheral node. It is not safe for
// concurrent use; Service serialises access to it.
type State struct {
	lfsr      uint16
	rng       uint32
	round     uint32
	params    protocol.Params
	bitmask   uint16
	loss      uint16
	format    protocol.Format
	sampled   bool
	triggers  uint64
	fallbacks uint64
}

func NewState(lfsrSeed uint16, rngSeed uint32, format protocol.Format) *State {
	if lfsrSeed == 0 {
		lfsrSeed = lfsrFallback
	}
	if rngSeed == 0 {
		rngSeed = rngFallback
	}
	if format == protocol.Invalid {
		format = protocol.Compact
	}

	return &State{
		lfsr:   lfsrSeed,
		rng:    rngSeed,
		format: format,
		params: protocol.Params{Mode: 1},
	}
}

// SeedsFor derives distinct, non-zero generator seeds from a bus address.
func SeedsFor(addr uint8) (uint16, uint32) {
	lfsr := lfsrFallback ^ uint16(addr)<<8 ^ uint16(addr)
	rng := rngFallback ^ uint32(addr)*0x9E3779B9
	if lfsr == 0 {
		lfsr = lfsrFallback
	}
	if rng == 0 {
		rng = rngFallback
	}

	return lfsr, rng
}

// SetParams replaces the sampling parameters. It does not advance the round.
func (s *State) SetParams(p protocol.Params) {
	s.params = p
}

func (s *State) Params() protocol.Params {
	return s.params
}

// Trigger starts a new round with the noise and mode carried by the
// trigger command and updates the register.
func (s *State) Trigger(round uint32, mode uint8, noise float32) {
	s.round = round
	s.params.Mode = mode
	s.params.Noise = noise
	s.triggers++

	if mode == ModeHold {
		return
	}
	s.update()
}

func (s *State) update() {
	s.stepLFSR()

	for range flipsFor(s.params.Noise) {
		s.lfsr ^= 1 << (s.next() % registerBits)
	}

	for range s.params.Coupling / 32 {
		src := s.next() % registerBits
		dst := (src + 1) % registerBits
		bit := (s.lfsr >> src) & 1
		s.lfsr = s.lfsr&^(1<<dst) | bit<<dst
	}
	if s.lfsr == 0 {
		s.lfsr = lfsrFallback
	}

	fresh := groupParity(s.lfsr)
	if !s.sampled || !s.freeze() {
		s.bitmask = fresh
	}
	s.sampled = true

	if s.params.Noise > 0.5 && s.next()%8 == 0 {
		s.loss++
	}
}

// freeze decides whether the previous bitmask is kept this round. The
// probability grows with |bias| and shrinks with noise.
func (s *State) freeze() bool {
	bias := math.Abs(float64(s.params.Bias))
	p := bias / 127 * (1 - float64(s.params.Noise))

	return s.uniform() < p
}

func (s *State) stepLFSR() {
	lsb := s.lfsr & 1
	s.lfsr >>= 1
	if lsb == 1 {
		s.lfsr ^= lfsrTaps
	}
	if s.lfsr == 0 {
		s.lfsr = lfsrFallback
	}
}

// next steps the xorshift32 generator.
func (s *State) next() uint32 {
	x := s.rng
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	s.rng = x

	return x
}

func (s *State) uniform() float64 {
	return float64(s.next()) / (math.MaxUint32 + 1.0)
}

// Observation reports the current register in the node's wire format.
func (s *State) Observation() protocol.Observation {
	return protocol.Observation{
		Round:   s.round,
		Bitmask: s.bitmask,
		Loss:    s.loss,
		Noise:   protocol.NoiseToByte(s.params.Noise),
		Seed:    s.rng,
		Format:  s.format,
	}
}

// Response encodes the current observation. A legacy frame that would not
// fit in one bus transaction, which happens once the round, loss and seed
// are all large, is sent in the compact form instead. The orchestrator then
// reports that node with the C format tag and without a seed. Fallbacks
// counts how often that happened.
func (s *State) Response() ([]byte, error) {
	o := s.Observation()
	frame, err := protocol.Encode(o)
	if err == nil || o.Format != protocol.Legacy {
		return frame, err
	}
	s.fallbacks++

	return protocol.EncodeCompact(o)
}

func (s *State) Fallbacks() uint64 {
	return s.fallbacks
}

func (s *State) Round() uint32 {
	return s.round
}

func (s *State) Register() uint16 {
	return s.lfsr
}

func (s *State) Triggers() uint64 {
	return s.triggers
}

func flipsFor(noise float32) int {
	switch {
	case noise > 0.70:
		return 3
	case noise > 0.35:
		return 2
	case noise > 0.10:
		return 1
	default:
		return 0
	}
}

// groupParity folds each 4-bit window of the register into one bit.
func groupParity(reg uint16) uint16 {
	var out uint16
	for g := range registerBits / groupBits {
		nibble := (reg >> (g * groupBits)) & 0xF
		nibble ^= nibble >> 2
		nibble ^= nibble >> 1
		out |= (nibble & 1) << g
	}

	return out
}
