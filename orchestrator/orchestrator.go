package orchestrator

import (
	"context"
	"time"

	"github.com/absmach/sampler/pkg/protocol"
	"github.com/absmach/sampler/pkg/reconstruct"
	"github.com/absmach/sampler/pkg/supervisor"
)

const (
	// Protocol is the version of the controller text protocol.
	Protocol = 1

	MinSamples = 1
	MaxSamples = 2000
	MinStride  = 1
	MaxStride  = 1000
	MinBurnIn  = 0
	MaxBurnIn  = 5000
)

// Service is the orchestrator core. Implementations are driven from a
// single goroutine (see Runner) and are not safe for concurrent use.
type Service interface {
	Hello(ctx context.Context) (Hello, error)
	// SetNoise updates noise and mode only. Nodes pick them up with the next
	// round trigger.
	SetNoise(ctx context.Context, noise float64, mode int) (protocol.Params, error)
	// SetParams clamps and stores the full parameter set and broadcasts it
	// to every node.
	SetParams(ctx context.Context, noise float64, bias, coupling, mode int) (protocol.Params, error)
	// GetSamples arms a batch. Out-of-range arguments are clamped.
	GetSamples(ctx context.Context, count, stride, burnIn int) (BatchInfo, error)
	// Stop disarms the active batch.
	Stop(ctx context.Context) error
	// Tick performs a bounded slice of scheduler work and never blocks
	// longer than one bus request per polled node.
	Tick(ctx context.Context) (TickReport, error)
	Status(ctx context.Context) (Status, error)
	History(ctx context.Context) (HistoryPage, error)
	Nodes(ctx context.Context) ([]Node, error)
}

// Emitter receives the externally visible controller lines: samples and
// batch completion markers.
type Emitter interface {
	Emit(line string)
}

type Hello struct {
	Version  string `json:"version"`
	Nodes    int    `json:"nodes"`
	Protocol int    `json:"protocol"`
}

// Observation is one row of the per-node observation table. Valid is false
// until the node has been polled successfully in the current round.
type Observation struct {
	Round      uint32          `json:"round"`
	Bitmask    uint16          `json:"bitmask"`
	Loss       uint16          `json:"loss"`
	NoiseByte  uint8           `json:"noise"`
	Source     uint8           `json:"source"`
	Seed       uint32          `json:"seed"`
	Valid      bool            `json:"valid"`
	ReceivedAt time.Time       `json:"received_at,omitzero"`
	Format     protocol.Format `json:"format"`
}

// RoundState is owned by the scheduler. Polled never exceeds the node count
// and InProgress is true exactly between round start and round close.
type RoundState struct {
	Number     uint32 `json:"number"`
	Cursor     uint8  `json:"cursor"`
	Polled     uint8  `json:"polled"`
	InProgress bool   `json:"in_progress"`
}

type BatchInfo struct {
	Run    uint32 `json:"run"`
	Tick0  uint32 `json:"tick0"`
	Count  uint16 `json:"count"`
	Stride uint16 `json:"stride"`
	BurnIn uint16 `json:"burn_in"`
}

type BatchStatus struct {
	Active    bool   `json:"active"`
	Run       uint32 `json:"run"`
	Remaining uint16 `json:"remaining"`
	Stride    uint16 `json:"stride"`
	BurnIn    uint16 `json:"burn_in"`
	Emitted   uint32 `json:"emitted"`
	Stopping  bool   `json:"stopping"`
}

type Counters struct {
	Rounds       uint64 `json:"rounds"`
	BusErrors    uint64 `json:"bus_errors"`
	DecodeErrors uint64 `json:"decode_errors"`
	EmptyReads   uint64 `json:"empty_reads"`
	StaleReads   uint64 `json:"stale_reads"`
	Broadcasts   uint64 `json:"broadcast_errors"`
}

type Status struct {
	Round      RoundState          `json:"round"`
	Params     protocol.Params     `json:"params"`
	Last       reconstruct.Result  `json:"last"`
	Active     int                 `json:"active"`
	Total      int                 `json:"total"`
	MeanRatio  float32             `json:"mean_ratio"`
	Batch      BatchStatus         `json:"batch"`
	Counters   Counters            `json:"counters"`
	Subsystems []supervisor.Report `json:"subsystems"`
}

type HistoryPage struct {
	Capacity int       `json:"capacity"`
	Ratios   []float32 `json:"ratios"`
	Mean     float32   `json:"mean"`
}

type Node struct {
	Index       int    `json:"index"`
	Address     uint8  `json:"address"`
	Observation `json:"observation"`
}

type Phase uint8

const (
	Idle Phase = iota
	RoundActive
	RoundClosing
)

func (p Phase) String() string {
	switch p {
	case RoundActive:
		return "round-active"
	case RoundClosing:
		return "round-closing"
	default:
		return "idle"
	}
}

// TickReport describes what a single Tick did.
type TickReport struct {
	Phase   Phase              `json:"phase"`
	Round   uint32             `json:"round"`
	Started bool               `json:"started"`
	Polled  int                `json:"polled"`
	Closed  bool               `json:"closed"`
	Result  reconstruct.Result `json:"result"`
}
