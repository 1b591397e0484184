// Package reconstruct derives the round-level state from the set of nodes
// that answered, using a fixed table of coverage requirements.
package reconstruct

import (
	"errors"
	"fmt"
	"math/bits"
)

// MaxRequirements is the width of the derived mask.
const MaxRequirements = 8

var (
	ErrTableTooLarge    = errors.New("coverage table has more than 8 requirements")
	ErrEmptyRequirement = errors.New("coverage requirement names no node")
	ErrUnknownNode      = errors.New("coverage requirement names a node outside the bus")
)

// Table maps derived bit i to the set of source nodes (bit j = node j)
// whose joint valid response is required to set it.
type Table []uint8

// DefaultTable covers the four-node layout: each node alone, both halves,
// the full set and the even pair.
var DefaultTable = Table{0x01, 0x02, 0x04, 0x08, 0x03, 0x0C, 0x0F, 0x05}

func (t Table) Validate(nodes int) error {
	if len(t) > MaxRequirements {
		return ErrTableTooLarge
	}
	valid := uint8(0xFF)
	if nodes < 8 {
		valid = uint8(1<<nodes) - 1
	}
	for i, req := range t {
		if req == 0 {
			return fmt.Errorf("requirement %d: %w", i, ErrEmptyRequirement)
		}
		if req&^valid != 0 {
			return fmt.Errorf("requirement %d (%#02x): %w", i, req, ErrUnknownNode)
		}
	}

	return nil
}

type Result struct {
	Boundary uint8   `json:"boundary"`
	Derived  uint8   `json:"derived"`
	Ratio    float32 `json:"ratio"`
}

// Reconstruct sets derived bit i iff every node of t[i] is present in
// boundary. Ratio is the percentage of satisfied requirements.
func Reconstruct(boundary uint8, t Table) Result {
	res := Result{Boundary: boundary}
	for i, req := range t {
		if i >= MaxRequirements {
			break
		}
		if boundary&req == req {
			res.Derived |= 1 << i
		}
	}
	n := min(len(t), MaxRequirements)
	if n > 0 {
		res.Ratio = 100 * float32(bits.OnesCount8(res.Derived)) / float32(n)
	}

	return res
}

// Boundary builds the responder mask from per-node validity, node i
// mapping to bit i.
func Boundary(valid []bool) uint8 {
	var mask uint8
	for i, ok := range valid {
		if ok && i < 8 {
			mask |= 1 << i
		}
	}

	return mask
}
