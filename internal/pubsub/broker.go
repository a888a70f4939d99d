// Package pubsub carries change signals between writers and live
// inventory subscriptions. Payloads are opaque; a signal only tells the
// subscriber that the topic changed and should be re-read.
package pubsub

import "context"

// Subscription delivers messages published on one topic.
type Subscription interface {
	// C returns the message channel. It is closed when the subscription ends.
	C() <-chan []byte

	// Close ends the subscription. Safe to call more than once.
	Close() error
}

// Broker publishes and subscribes to topics.
type Broker interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topic string) (Subscription, error)
	Close() error
}

// subscriptionBuffer is the per-subscriber queue depth. Signals beyond it
// are coalesced: a pending signal already forces a full re-read.
const subscriptionBuffer = 16
