package invalidation

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/logger"
)

type recordingSubscriber struct {
	mu     sync.Mutex
	events []domain.InvalidationEvent
}

func (r *recordingSubscriber) OnInvalidation(ev domain.InvalidationEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingSubscriber) Events() []domain.InvalidationEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.InvalidationEvent(nil), r.events...)
}

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func wishlistEvent(userID string, at time.Time) domain.InvalidationEvent {
	return domain.InvalidationEvent{UserID: userID, Timestamp: at, Kind: domain.InvalidationWishlistAdded}
}

func TestBus_PublishDeliversToUserSubscribersOnly(t *testing.T) {
	bus := NewBus(logger.Discard())
	alice := &recordingSubscriber{}
	bob := &recordingSubscriber{}
	bus.Subscribe("alice", alice)
	bus.Subscribe("bob", bob)

	bus.Publish(wishlistEvent("alice", t0))

	require.Len(t, alice.Events(), 1)
	assert.Empty(t, bob.Events())
}

func TestBus_LatestWins(t *testing.T) {
	bus := NewBus(logger.Discard())

	bus.Publish(wishlistEvent("u1", t0))
	bus.Publish(wishlistEvent("u1", t0.Add(time.Second)))

	ev, ok := bus.Latest("u1")
	require.True(t, ok)
	assert.Equal(t, t0.Add(time.Second), ev.Timestamp)
}

func TestBus_LateSubscriberSeesSlot(t *testing.T) {
	bus := NewBus(logger.Discard())
	bus.Publish(wishlistEvent("u1", t0))

	late := &recordingSubscriber{}
	bus.Subscribe("u1", late)

	events := late.Events()
	require.Len(t, events, 1)
	assert.Equal(t, t0, events[0].Timestamp)
}

func TestBus_NonMonotonicTimestampIsBumped(t *testing.T) {
	bus := NewBus(logger.Discard())
	bus.Publish(wishlistEvent("u1", t0))

	got := bus.Publish(wishlistEvent("u1", t0))
	assert.Equal(t, t0.Add(time.Nanosecond), got.Timestamp)

	got = bus.Publish(wishlistEvent("u1", t0.Add(-time.Hour)))
	assert.Equal(t, t0.Add(2*time.Nanosecond), got.Timestamp)
}

func TestBus_CancelStopsDelivery(t *testing.T) {
	bus := NewBus(logger.Discard())
	sub := &recordingSubscriber{}
	s := bus.Subscribe("u1", sub)
	assert.Equal(t, 1, bus.SubscriberCount("u1"))

	s.Cancel()
	s.Cancel()
	bus.Publish(wishlistEvent("u1", t0))

	assert.Empty(t, sub.Events())
	assert.Zero(t, bus.SubscriberCount("u1"))
}

func TestBus_Forget(t *testing.T) {
	bus := NewBus(logger.Discard())
	bus.Publish(wishlistEvent("u1", t0))

	bus.Forget("u1")

	_, ok := bus.Latest("u1")
	assert.False(t, ok)
}

func TestBus_PruneDropsExpiredSlots(t *testing.T) {
	bus := NewBus(logger.Discard())
	bus.Publish(wishlistEvent("old", t0))
	bus.Publish(wishlistEvent("fresh", t0.Add(4*time.Second)))

	dropped := bus.Prune(t0.Add(6*time.Second), 5*time.Second)

	assert.Equal(t, 1, dropped)
	_, ok := bus.Latest("old")
	assert.False(t, ok)
	_, ok = bus.Latest("fresh")
	assert.True(t, ok)
}

func TestBus_ConcurrentPublishKeepsTimestampsIncreasing(t *testing.T) {
	bus := NewBus(logger.Discard())
	sub := &recordingSubscriber{}
	bus.Subscribe("u1", sub)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(wishlistEvent("u1", t0))
		}()
	}
	wg.Wait()

	ev, ok := bus.Latest("u1")
	require.True(t, ok)
	assert.Equal(t, t0.Add(49*time.Nanosecond), ev.Timestamp)
	assert.Len(t, sub.Events(), 50)
}
