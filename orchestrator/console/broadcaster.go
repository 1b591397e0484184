package console

import (
	"sync"
	"sync/atomic"

	"github.com/absmach/sampler/orchestrator"
)

const DefaultClientBuffer = 256

var _ orchestrator.Emitter = (*Broadcaster)(nil)

// Broadcaster fans emitted lines out to subscribed clients. Emit never
// blocks: a client whose buffer is full loses the line.
type Broadcaster struct {
	mu      sync.Mutex
	next    uint64
	clients map[uint64]chan string
	size    int
	dropped atomic.Uint64
}

func NewBroadcaster(size int) *Broadcaster {
	if size <= 0 {
		size = DefaultClientBuffer
	}

	return &Broadcaster{
		clients: make(map[uint64]chan string),
		size:    size,
	}
}

func (b *Broadcaster) Emit(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.clients {
		select {
		case ch <- line:
		default:
			b.dropped.Add(1)
		}
	}
}

// Subscribe registers a client. The channel is closed by Unsubscribe.
func (b *Broadcaster) Subscribe() (uint64, <-chan string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.next++
	ch := make(chan string, b.size)
	b.clients[b.next] = ch

	return b.next, ch
}

func (b *Broadcaster) Unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.clients[id]; ok {
		delete(b.clients, id)
		close(ch)
	}
}

func (b *Broadcaster) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.clients)
}

// Dropped is the number of lines lost to slow clients.
func (b *Broadcaster) Dropped() uint64 {
	return b.dropped.Load()
}
