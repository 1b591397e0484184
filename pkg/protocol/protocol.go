// Package protocol implements the ASCII frames exchanged between the
// orchestrator and the peripheral nodes over the shared bus.
//
// Commands flow from the orchestrator to the nodes:
//
//	T,<round>,<mode>,<noise>              round trigger
//	P,<noise>,<bias>,<coupling>,<mode>    parameter broadcast
//
// Observations flow back, in one of two encodings:
//
//	O,<round:8hex>,<bitmask:4hex>,<loss:4hex>,<noise:2hex>   compact
//	O,<round>,<bitmask>,<loss>,<noise float>,<seed>           legacy
//
// Every frame, including its trailing newline, fits in MaxFrame bytes.
package protocol

import (
	"errors"
	"math"
)

// MaxFrame is the payload limit of a single bus transaction.
const MaxFrame = 32

var (
	ErrFrameTooLong = errors.New("frame exceeds bus transaction size")
	ErrDecode       = errors.New("failed to decode frame")
	ErrEmptyFrame   = errors.New("empty frame")
)

type Format uint8

const (
	Invalid Format = iota
	Legacy
	Compact
)

func (f Format) String() string {
	switch f {
	case Legacy:
		return "legacy"
	case Compact:
		return "compact"
	default:
		return "invalid"
	}
}

// Tag is the single-letter form used in sample lines.
func (f Format) Tag() string {
	switch f {
	case Legacy:
		return "L"
	case Compact:
		return "C"
	default:
		return "X"
	}
}

func ParseFormat(s string) (Format, error) {
	switch s {
	case "compact", "C", "c":
		return Compact, nil
	case "legacy", "L", "l":
		return Legacy, nil
	default:
		return Invalid, errors.New("unknown observation format: " + s)
	}
}

// Params are the sampling parameters shared by every node.
type Params struct {
	Noise    float32 `json:"noise"`
	Bias     int8    `json:"bias"`
	Coupling uint8   `json:"coupling"`
	Mode     uint8   `json:"mode"`
}

// ClampParams folds arbitrary user input into the documented ranges:
// noise [0,1], bias [-127,127], coupling [0,255], mode [0,255].
func ClampParams(noise float64, bias, coupling, mode int) Params {
	return Params{
		Noise:    ClampNoise(noise),
		Bias:     int8(clampInt(bias, -127, 127)),
		Coupling: uint8(clampInt(coupling, 0, 255)),
		Mode:     uint8(clampInt(mode, 0, 255)),
	}
}

func ClampNoise(noise float64) float32 {
	if math.IsNaN(noise) || noise < 0 {
		return 0
	}
	if noise > 1 {
		return 1
	}

	return float32(noise)
}

// NoiseToByte maps a noise fraction onto 0..255.
func NoiseToByte(noise float32) uint8 {
	return uint8(math.Round(float64(ClampNoise(float64(noise))) * 255))
}

func ByteToNoise(b uint8) float32 {
	return float32(b) / 255
}

// Observation is a decoded node response.
type Observation struct {
	Round   uint32 `json:"round"`
	Bitmask uint16 `json:"bitmask"`
	Loss    uint16 `json:"loss"`
	Noise   uint8  `json:"noise"`
	Seed    uint32 `json:"seed"`
	Format  Format `json:"format"`
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}

	return v
}
