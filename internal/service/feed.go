package service

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"

	"fruition-api/internal/cache"
	"fruition-api/internal/model"
	"fruition-api/internal/repository"
	"fruition-api/pkg/clock"
	"fruition-api/pkg/uid"
)

// Feed icons. Consumption gets a random reaction, waste always the bin.
var reactions = []string{"🍎", "🍌", "🍇", "🍊", "🥝", "🍉", "🍓", "🍒", "🍑", "🍍"}

const wasteIcon = "🗑️"

// FeedSink accepts public feed events.
type FeedSink interface {
	Add(ctx context.Context, event model.FeedEvent) error
}

// FeedReader serves the latest public feed events.
type FeedReader interface {
	Recent(ctx context.Context, limit int) ([]model.FeedEvent, error)
}

// DirectFeed writes and reads feed events straight through the feed store.
type DirectFeed struct {
	repo repository.FeedRepository
}

// NewDirectFeed wraps repo.
func NewDirectFeed(repo repository.FeedRepository) *DirectFeed {
	return &DirectFeed{repo: repo}
}

// Add stores one event.
func (d *DirectFeed) Add(ctx context.Context, event model.FeedEvent) error {
	return d.repo.InsertFeedEvents(ctx, []model.FeedEvent{event})
}

// Recent returns the latest stored events.
func (d *DirectFeed) Recent(ctx context.Context, limit int) ([]model.FeedEvent, error) {
	return d.repo.RecentFeedEvents(ctx, limit)
}

var (
	_ FeedSink   = (*DirectFeed)(nil)
	_ FeedReader = (*DirectFeed)(nil)
	_ FeedSink   = (*cache.RedisFeedBuffer)(nil)
	_ FeedReader = (*cache.RedisFeedBuffer)(nil)
)

// CreateFeedFlushFunc creates the flush function of the Redis feed buffer.
func CreateFeedFlushFunc(repo repository.FeedRepository) cache.FlushFunc {
	return func(ctx context.Context, events []model.FeedEvent) error {
		return repo.InsertFeedEvents(ctx, events)
	}
}

// FeedBroadcaster publishes anonymized consumption and waste events. It
// never carries names, emails or user ids: the member is reduced to its
// sequence label and the location to its coarse label.
type FeedBroadcaster struct {
	sink  FeedSink
	clock clock.Clock

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewFeedBroadcaster creates a broadcaster writing to sink.
func NewFeedBroadcaster(sink FeedSink, clk clock.Clock, seed int64) *FeedBroadcaster {
	return &FeedBroadcaster{sink: sink, clock: clk, rnd: rand.New(rand.NewSource(seed))}
}

// MemberLabel is the public pseudonym of a profile.
func MemberLabel(p *model.UserProfile) string {
	if p == nil || p.MemberID == 0 {
		return "Anonymous Member"
	}
	return fmt.Sprintf("Member #%d", p.MemberID)
}

// BroadcastConsumption emits a consumed event. Failures are logged only.
func (b *FeedBroadcaster) BroadcastConsumption(ctx context.Context, actor *model.UserProfile, fruitName string, amount int) {
	if b == nil {
		return
	}
	b.mu.Lock()
	icon := reactions[b.rnd.Intn(len(reactions))]
	b.mu.Unlock()
	b.broadcast(ctx, actor, model.FeedConsumed, fruitName, amount, icon)
}

// BroadcastWaste emits a waste event. Failures are logged only.
func (b *FeedBroadcaster) BroadcastWaste(ctx context.Context, actor *model.UserProfile, fruitName string, amount int) {
	b.broadcast(ctx, actor, model.FeedWaste, fruitName, amount, wasteIcon)
}

func (b *FeedBroadcaster) broadcast(ctx context.Context, actor *model.UserProfile, kind, fruitName string, amount int, icon string) {
	if b == nil || b.sink == nil || actor == nil {
		return
	}
	event := model.FeedEvent{
		ID:          uid.New(),
		Type:        kind,
		FruitName:   fruitName,
		Amount:      amount,
		MemberLabel: MemberLabel(actor),
		Icon:        icon,
		Timestamp:   b.clock.Now(),
	}
	if actor.Location != nil {
		event.Location = actor.Location.Label
	}
	if err := b.sink.Add(ctx, event); err != nil {
		log.Printf("[FeedBroadcaster] Failed to broadcast %s event (ignored): %v", kind, err)
	}
}
