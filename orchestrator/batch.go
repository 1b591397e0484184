package orchestrator

import (
	"fmt"

	"github.com/absmach/sampler/pkg/protocol"
)

// BatchRequest paces the sample stream of one GET request. It is advanced
// once per closed round.
type BatchRequest struct {
	Remaining     uint16
	Stride        uint16
	BurnIn        uint16
	StrideCounter uint16
	Active        bool
}

// NewBatch clamps its arguments to the documented bounds and returns an
// armed batch.
func NewBatch(count, stride, burnIn int) BatchRequest {
	return BatchRequest{
		Remaining: uint16(clamp(count, MinSamples, MaxSamples)),
		Stride:    uint16(clamp(stride, MinStride, MaxStride)),
		BurnIn:    uint16(clamp(burnIn, MinBurnIn, MaxBurnIn)),
		Active:    true,
	}
}

// Advance accounts one closed round and reports whether its samples are
// emitted. Burn-in rounds are discarded first, then one round in every
// Stride is emitted.
func (b *BatchRequest) Advance() bool {
	if !b.Active || b.Remaining == 0 {
		return false
	}
	if b.BurnIn > 0 {
		b.BurnIn--

		return false
	}
	b.StrideCounter++
	if b.StrideCounter < b.Stride {
		return false
	}
	b.StrideCounter = 0
	b.Remaining--

	return true
}

func (b BatchRequest) Done() bool {
	return b.Active && b.Remaining == 0
}

// SampleLine formats one emitted node observation:
// O,<round>,<node>,<bitmask>,<loss>,<noise>,<seed>,<format>.
func SampleLine(round uint32, node int, o Observation) string {
	return fmt.Sprintf("O,%d,%d,%d,%d,%.3f,%d,%s",
		round, node, o.Bitmask, o.Loss, protocol.ByteToNoise(o.NoiseByte), o.Seed, o.Format.Tag())
}

func DoneLine(round uint32) string {
	return fmt.Sprintf("@DONE LASTTICK=%d", round)
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
