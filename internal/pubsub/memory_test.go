package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub Subscription) []byte {
	t.Helper()
	select {
	case msg, ok := <-sub.C():
		require.True(t, ok, "subscription closed")
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestMemoryBrokerDeliversPerTopic(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBroker()
	defer b.Close()

	a, err := b.Subscribe(ctx, "users/a/inventory")
	require.NoError(t, err)
	other, err := b.Subscribe(ctx, "users/b/inventory")
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, "users/a/inventory", []byte("changed")))
	assert.Equal(t, "changed", string(receive(t, a)))

	select {
	case <-other.C():
		t.Fatal("unexpected message on other topic")
	default:
	}
}

func TestMemoryBrokerCoalescesWhenFull(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBroker()
	defer b.Close()

	sub, err := b.Subscribe(ctx, "t")
	require.NoError(t, err)
	for i := 0; i < subscriptionBuffer*3; i++ {
		require.NoError(t, b.Publish(ctx, "t", []byte("x")))
	}
	assert.Len(t, sub.C(), subscriptionBuffer)
}

func TestMemoryBrokerSubscriptionClose(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBroker()

	sub, err := b.Subscribe(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, 1, b.Subscribers("t"))

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	assert.Equal(t, 0, b.Subscribers("t"))
	_, ok := <-sub.C()
	assert.False(t, ok)

	require.NoError(t, b.Publish(ctx, "t", []byte("x")))

	live, err := b.Subscribe(ctx, "t")
	require.NoError(t, err)
	require.NoError(t, b.Close())
	_, ok = <-live.C()
	assert.False(t, ok)

	assert.ErrorIs(t, b.Publish(ctx, "t", nil), ErrClosed)
	_, err = b.Subscribe(ctx, "t")
	assert.ErrorIs(t, err, ErrClosed)
}
