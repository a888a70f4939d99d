package pubsub

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisBroker fans change signals out across instances through Redis
// pub/sub. Topics are namespaced under prefix.
type RedisBroker struct {
	client *redis.Client
	prefix string
}

// NewRedisBroker wraps client. An empty prefix defaults to "fruition:topic".
func NewRedisBroker(client *redis.Client, prefix string) *RedisBroker {
	if prefix == "" {
		prefix = "fruition:topic"
	}
	log.Printf("[RedisBroker] Using channel prefix %s", prefix)
	return &RedisBroker{client: client, prefix: prefix}
}

func (b *RedisBroker) channel(topic string) string {
	return b.prefix + ":" + topic
}

// Publish sends payload to every subscriber of topic on any instance.
func (b *RedisBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := b.client.Publish(ctx, b.channel(topic), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish on %s: %w", topic, err)
	}
	return nil
}

// Subscribe returns once Redis has confirmed the subscription, so a
// publish that happens after Subscribe returns is always delivered.
func (b *RedisBroker) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	ps := b.client.Subscribe(ctx, b.channel(topic))
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	sub := &redisSubscription{
		ps: ps,
		ch: make(chan []byte, subscriptionBuffer),
	}
	go sub.forward()
	return sub, nil
}

// Close is a no-op; the Redis client is owned by the caller.
func (b *RedisBroker) Close() error {
	return nil
}

type redisSubscription struct {
	ps       *redis.PubSub
	ch       chan []byte
	stopOnce sync.Once
}

func (s *redisSubscription) forward() {
	defer close(s.ch)
	for msg := range s.ps.Channel() {
		select {
		case s.ch <- []byte(msg.Payload):
		default:
		}
	}
}

func (s *redisSubscription) C() <-chan []byte { return s.ch }

func (s *redisSubscription) Close() error {
	var err error
	s.stopOnce.Do(func() { err = s.ps.Close() })
	return err
}

var _ Broker = (*RedisBroker)(nil)
