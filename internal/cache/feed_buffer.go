package cache

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"fruition-api/internal/model"

	"github.com/redis/go-redis/v9"
)

// Feed buffer configuration
const (
	MaxBatchSize     = 50
	FlushTimeout     = 30 * time.Second
	MaxPending       = 5000
	RecentFeedLength = 100
	CleanupInterval  = 5 * time.Minute
)

// FlushFunc persists a batch of buffered feed events.
type FlushFunc func(ctx context.Context, events []model.FeedEvent) error

// RedisFeedBuffer is a write-behind buffer for public feed events. Events
// are appended to a Redis list and flushed in batches to the feed store;
// a capped "recent" list serves reads without touching the store.
type RedisFeedBuffer struct {
	client        *redis.Client
	flushFunc     FlushFunc
	flushTicker   *time.Ticker
	cleanupTicker *time.Ticker
	stop          chan struct{}
	done          chan struct{}
	stopOnce      sync.Once
	flushMu       sync.Mutex
	keyPrefix     string
	maxPending    int64
}

// FeedBufferConfig configures a RedisFeedBuffer.
type FeedBufferConfig struct {
	FlushInterval time.Duration
	KeyPrefix     string
	MaxPending    int64 // defaults to MaxPending
}

// NewRedisFeedBuffer starts a feed buffer on client.
func NewRedisFeedBuffer(client *redis.Client, cfg FeedBufferConfig, flushFunc FlushFunc) *RedisFeedBuffer {
	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "fruition:feed"
	}
	interval := cfg.FlushInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	maxPending := cfg.MaxPending
	if maxPending <= 0 {
		maxPending = MaxPending
	}

	b := &RedisFeedBuffer{
		client:        client,
		flushFunc:     flushFunc,
		flushTicker:   time.NewTicker(interval),
		cleanupTicker: time.NewTicker(CleanupInterval),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
		keyPrefix:     keyPrefix,
		maxPending:    maxPending,
	}

	go b.backgroundFlush()
	go b.backgroundCleanup()

	log.Printf("[RedisFeedBuffer] Started - prefix:%s, flush:%v, batch:%d", keyPrefix, interval, MaxBatchSize)
	return b
}

func (b *RedisFeedBuffer) pendingKey() string {
	return b.keyPrefix + ":pending"
}

func (b *RedisFeedBuffer) recentKey() string {
	return b.keyPrefix + ":recent"
}

// Add buffers one feed event.
func (b *RedisFeedBuffer) Add(ctx context.Context, event model.FeedEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	pipe := b.client.TxPipeline()
	pipe.RPush(ctx, b.pendingKey(), data)
	pipe.LPush(ctx, b.recentKey(), data)
	pipe.LTrim(ctx, b.recentKey(), 0, RecentFeedLength-1)
	_, err = pipe.Exec(ctx)
	return err
}

// Recent returns up to limit of the latest buffered events, newest first.
func (b *RedisFeedBuffer) Recent(ctx context.Context, limit int) ([]model.FeedEvent, error) {
	if limit <= 0 || limit > RecentFeedLength {
		limit = RecentFeedLength
	}
	raw, err := b.client.LRange(ctx, b.recentKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	events := make([]model.FeedEvent, 0, len(raw))
	for _, r := range raw {
		var e model.FeedEvent
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			continue
		}
		events = append(events, e)
	}
	return events, nil
}

// Count returns the number of events waiting to be flushed.
func (b *RedisFeedBuffer) Count(ctx context.Context) (int64, error) {
	return b.client.LLen(ctx, b.pendingKey()).Result()
}

// FlushBatch writes up to MaxBatchSize pending events through the flush
// func and removes them from the pending list on success.
func (b *RedisFeedBuffer) FlushBatch(ctx context.Context) (int, error) {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	raw, err := b.client.LRange(ctx, b.pendingKey(), 0, MaxBatchSize-1).Result()
	if err != nil {
		return 0, err
	}
	if len(raw) == 0 {
		return 0, nil
	}

	events := make([]model.FeedEvent, 0, len(raw))
	for _, r := range raw {
		var e model.FeedEvent
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			log.Printf("[RedisFeedBuffer] Dropping malformed event: %v", err)
			continue
		}
		events = append(events, e)
	}

	if len(events) > 0 {
		if err := b.flushFunc(ctx, events); err != nil {
			log.Printf("[RedisFeedBuffer] Flush error: %v", err)
			return 0, err
		}
	}

	// Producers only append and overflow cleanup holds flushMu, so the first
	// len(raw) entries are still the ones read.
	if err := b.client.LTrim(ctx, b.pendingKey(), int64(len(raw)), -1).Err(); err != nil {
		log.Printf("[RedisFeedBuffer] Error trimming pending list: %v", err)
	}

	log.Printf("[RedisFeedBuffer] Flushed %d events", len(events))
	return len(events), nil
}

// Flush writes one batch of buffered events.
func (b *RedisFeedBuffer) Flush(ctx context.Context) error {
	_, err := b.FlushBatch(ctx)
	return err
}

// CleanupOverflow drops the oldest pending events beyond the pending cap so
// an unreachable feed store cannot grow Redis without bound. It must not
// run while a batch is in flight.
func (b *RedisFeedBuffer) CleanupOverflow(ctx context.Context) (int64, error) {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	n, err := b.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n <= b.maxPending {
		return 0, nil
	}
	dropped := n - b.maxPending
	if err := b.client.LTrim(ctx, b.pendingKey(), dropped, -1).Err(); err != nil {
		return 0, err
	}
	log.Printf("[RedisFeedBuffer] Dropped %d overflow events", dropped)
	return dropped, nil
}

func (b *RedisFeedBuffer) backgroundFlush() {
	defer close(b.done)
	for {
		select {
		case <-b.flushTicker.C:
			ctx, cancel := context.WithTimeout(context.Background(), FlushTimeout)
			if _, err := b.FlushBatch(ctx); err != nil {
				log.Printf("[RedisFeedBuffer] Background flush error: %v", err)
			}
			cancel()
		case <-b.stop:
			log.Printf("[RedisFeedBuffer] Shutdown: flushing remaining events...")
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			for {
				flushed, err := b.FlushBatch(ctx)
				if err != nil || flushed == 0 {
					break
				}
			}
			cancel()
			log.Printf("[RedisFeedBuffer] Shutdown flush complete")
			return
		}
	}
}

func (b *RedisFeedBuffer) backgroundCleanup() {
	for {
		select {
		case <-b.cleanupTicker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if _, err := b.CleanupOverflow(ctx); err != nil {
				log.Printf("[RedisFeedBuffer] Cleanup error: %v", err)
			}
			cancel()
		case <-b.stop:
			return
		}
	}
}

// Close stops the background loops and blocks until the remaining events
// are flushed. The Redis client is owned by the caller.
func (b *RedisFeedBuffer) Close() error {
	b.stopOnce.Do(func() {
		b.flushTicker.Stop()
		b.cleanupTicker.Stop()
		close(b.stop)
	})
	<-b.done
	return nil
}
