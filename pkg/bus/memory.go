package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var _ Bus = (*Memory)(nil)

// Memory is an in-process bus. Each attached node owns a bounded event
// channel; the owner never blocks on a full channel.
type Memory struct {
	sync.RWMutex
	nodes   map[uint8]chan Event
	timeout time.Duration
	closed  bool
}

func NewMemory(timeout time.Duration) *Memory {
	return &Memory{
		nodes:   make(map[uint8]chan Event),
		timeout: timeout,
	}
}

// Attach registers a node and returns the channel its state machine reads.
func (m *Memory) Attach(addr uint8) (<-chan Event, error) {
	m.Lock()
	defer m.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	if _, ok := m.nodes[addr]; ok {
		return nil, fmt.Errorf("%w: %#02x", ErrNodeAttached, addr)
	}
	ch := make(chan Event, EventBuffer)
	m.nodes[addr] = ch

	return ch, nil
}

// Detach removes a node and closes its channel.
func (m *Memory) Detach(addr uint8) {
	m.Lock()
	defer m.Unlock()

	if ch, ok := m.nodes[addr]; ok {
		close(ch)
		delete(m.nodes, addr)
	}
}

func (m *Memory) Broadcast(ctx context.Context, frame []byte) error {
	if err := checkFrame(frame); err != nil {
		return err
	}

	m.RLock()
	defer m.RUnlock()

	if m.closed {
		return ErrClosed
	}

	var errs []error
	for addr, ch := range m.nodes {
		if err := offer(ch, Event{Kind: KindWrite, Frame: frame}); err != nil {
			errs = append(errs, fmt.Errorf("node %#02x: %w", addr, err))
		}
	}

	return errors.Join(errs...)
}

func (m *Memory) Write(ctx context.Context, addr uint8, frame []byte) error {
	if err := checkFrame(frame); err != nil {
		return err
	}

	m.RLock()
	defer m.RUnlock()

	ch, err := m.node(addr)
	if err != nil {
		return err
	}

	return offer(ch, Event{Kind: KindWrite, Frame: frame})
}

func (m *Memory) Request(ctx context.Context, addr uint8) ([]byte, error) {
	reply := make(chan []byte, 1)

	m.RLock()
	ch, err := m.node(addr)
	if err == nil {
		err = offer(ch, Event{Kind: KindRequest, Reply: reply})
	}
	m.RUnlock()
	if err != nil {
		return nil, err
	}

	timer := time.NewTimer(m.timeout)
	defer timer.Stop()

	select {
	case frame := <-reply:
		return frame, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: node %#02x", ErrTimeout, addr)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Memory) Close() error {
	m.Lock()
	defer m.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	for addr, ch := range m.nodes {
		close(ch)
		delete(m.nodes, addr)
	}

	return nil
}

func (m *Memory) node(addr uint8) (chan Event, error) {
	if m.closed {
		return nil, ErrClosed
	}
	ch, ok := m.nodes[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %#02x", ErrUnknownNode, addr)
	}

	return ch, nil
}

func offer(ch chan Event, ev Event) error {
	select {
	case ch <- ev:
		return nil
	default:
		return ErrBusy
	}
}
