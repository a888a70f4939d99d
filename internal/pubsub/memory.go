package pubsub

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned when using a closed broker.
var ErrClosed = errors.New("broker closed")

// MemoryBroker is an in-process Broker for single-instance deployments.
type MemoryBroker struct {
	mu     sync.RWMutex
	topics map[string]map[*memorySubscription]struct{}
	closed bool
}

// NewMemoryBroker creates an empty broker.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{topics: make(map[string]map[*memorySubscription]struct{})}
}

// Publish delivers payload to every current subscriber of topic without
// blocking. A subscriber whose queue is full keeps its pending messages.
func (b *MemoryBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}
	for sub := range b.topics[topic] {
		sub.deliver(payload)
	}
	return nil
}

// Subscribe registers a new subscriber on topic.
func (b *MemoryBroker) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}
	sub := &memorySubscription{
		broker: b,
		topic:  topic,
		ch:     make(chan []byte, subscriptionBuffer),
	}
	if b.topics[topic] == nil {
		b.topics[topic] = make(map[*memorySubscription]struct{})
	}
	b.topics[topic][sub] = struct{}{}
	return sub, nil
}

// Subscribers returns the number of live subscribers on topic.
func (b *MemoryBroker) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

// Close ends every subscription.
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	var subs []*memorySubscription
	for _, set := range b.topics {
		for sub := range set {
			subs = append(subs, sub)
		}
	}
	b.topics = make(map[string]map[*memorySubscription]struct{})
	b.mu.Unlock()

	for _, sub := range subs {
		sub.closeChannel()
	}
	return nil
}

func (b *MemoryBroker) remove(sub *memorySubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if set, ok := b.topics[sub.topic]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(b.topics, sub.topic)
		}
	}
}

type memorySubscription struct {
	broker *MemoryBroker
	topic  string

	mu     sync.Mutex
	ch     chan []byte
	closed bool
}

func (s *memorySubscription) C() <-chan []byte { return s.ch }

func (s *memorySubscription) deliver(payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	select {
	case s.ch <- payload:
	default:
	}
}

func (s *memorySubscription) closeChannel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

func (s *memorySubscription) Close() error {
	s.broker.remove(s)
	s.closeChannel()
	return nil
}

var _ Broker = (*MemoryBroker)(nil)
