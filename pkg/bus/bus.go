// Package bus models the shared, low-bandwidth bus between the orchestrator
// and the peripheral nodes. The orchestrator is the only bus owner; nodes
// are passive and only see Events delivered through a bounded channel.
package bus

import (
	"context"
	"errors"
	"fmt"

	"github.com/absmach/sampler/pkg/protocol"
)

// EventBuffer is the capacity of each node's event channel.
const EventBuffer = 16

var (
	ErrUnknownNode  = errors.New("no node attached at address")
	ErrBusy         = errors.New("node event queue is full")
	ErrTimeout      = errors.New("bus request timed out")
	ErrClosed       = errors.New("bus is closed")
	ErrNodeAttached = errors.New("node already attached at address")
)

type Kind uint8

const (
	// KindWrite carries a command frame written by the bus owner.
	KindWrite Kind = iota + 1
	// KindRequest asks the node for its response frame. The node answers
	// on Reply, which is buffered and must never be waited on.
	KindRequest
)

type Event struct {
	Kind  Kind
	Frame []byte
	Reply chan<- []byte
}

// Bus is the orchestrator's view of the shared bus.
type Bus interface {
	// Broadcast writes frame to every attached node.
	Broadcast(ctx context.Context, frame []byte) error
	// Write sends frame to the node at addr.
	Write(ctx context.Context, addr uint8, frame []byte) error
	// Request reads the current response frame of the node at addr, waiting
	// at most the bus request timeout.
	Request(ctx context.Context, addr uint8) ([]byte, error)
	Close() error
}

// DefaultAddresses are the node addresses of the reference four-node layout.
var DefaultAddresses = []uint8{0x10, 0x11, 0x12, 0x13}

func checkFrame(frame []byte) error {
	if len(frame) > protocol.MaxFrame {
		return fmt.Errorf("%w: %d bytes", protocol.ErrFrameTooLong, len(frame))
	}

	return nil
}
