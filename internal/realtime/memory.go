package realtime

import (
	"context"
	"sync"
)

// MemoryBus is an in-process Bus for single-node deployments and tests.
// Semantics match RedisBus: self-delivery included, at-most-once, ordered
// per publisher. A subscriber that stops draining loses messages rather
// than blocking the publisher.
type MemoryBus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]chan Envelope
}

// NewMemoryBus returns an empty in-process bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: map[string]map[int]chan Envelope{}}
}

// Publish delivers env to every current subscriber of topic, including any
// subscription held by the caller.
func (b *MemoryBus) Publish(_ context.Context, topic string, env Envelope) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[topic] {
		select {
		case ch <- env:
		default:
			// Slow subscriber; drop rather than block the publisher.
		}
	}
	return nil
}

// Subscribe registers a new subscription on topic. The returned channel
// closes when ctx is cancelled.
func (b *MemoryBus) Subscribe(ctx context.Context, topic string) (<-chan Envelope, error) {
	ch := make(chan Envelope, 128)

	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = map[int]chan Envelope{}
	}
	id := b.nextID
	b.nextID++
	b.subs[topic][id] = ch
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs[topic], id)
		if len(b.subs[topic]) == 0 {
			delete(b.subs, topic)
		}
		b.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}

var _ Bus = (*MemoryBus)(nil)
