package pubsub

import (
	"context"
	"sync"
)

// MemoryBroker is an in-process broker for single-node deployments and tests.
type MemoryBroker struct {
	mu   sync.RWMutex
	subs map[string]map[int]Handler
	seq  int
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: make(map[string]map[int]Handler)}
}

// Publish delivers the event to every current subscriber of the topic.
// Handlers run on the caller's goroutine; they must not block.
func (b *MemoryBroker) Publish(_ context.Context, topic string, ev Event) error {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[topic]))
	for _, h := range b.subs[topic] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
	return nil
}

func (b *MemoryBroker) Subscribe(topic string, h Handler) func() {
	b.mu.Lock()
	b.seq++
	id := b.seq
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]Handler)
	}
	b.subs[topic][id] = h
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[topic], id)
			if len(b.subs[topic]) == 0 {
				delete(b.subs, topic)
			}
			b.mu.Unlock()
		})
	}
}
