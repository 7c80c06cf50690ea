package invalidation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/logger"
)

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) Fetch(ctx context.Context, userID string, kind domain.RecommendationKind, limit int) ([]domain.Product, error) {
	args := m.Called(ctx, userID, kind, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Product), args.Error(1)
}

func newTestFeed(fetcher *mockFetcher, clock Clock) *Feed {
	return NewFeed(FeedConfig{
		UserID: "u1",
		Kind:   domain.RecommendationForYou,
		Limit:  10,
		Policy: DefaultPolicy(),
	}, fetcher, clock, logger.Discard())
}

func TestPolicy_Delay(t *testing.T) {
	p := DefaultPolicy()

	d, ok := p.Delay(0)
	assert.True(t, ok)
	assert.Equal(t, 2*time.Second, d)

	d, ok = p.Delay(time.Second)
	assert.True(t, ok)
	assert.Equal(t, time.Second, d)

	d, ok = p.Delay(3 * time.Second)
	assert.True(t, ok)
	assert.Zero(t, d)

	_, ok = p.Delay(5 * time.Second)
	assert.True(t, ok)

	_, ok = p.Delay(6 * time.Second)
	assert.False(t, ok)
}

func TestFeed_ItemsLoadsOnce(t *testing.T) {
	clock := newManualClock(t0)
	fetcher := &mockFetcher{}
	fetcher.On("Fetch", mock.Anything, "u1", domain.RecommendationForYou, 10).
		Return([]domain.Product{{ID: "p1"}}, nil).Once()

	feed := newTestFeed(fetcher, clock)

	items, err := feed.Items(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.Product{{ID: "p1"}}, items)

	items, err = feed.Items(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 1)
	fetcher.AssertNumberOfCalls(t, "Fetch", 1)
}

func TestFeed_ItemsPropagatesError(t *testing.T) {
	fetcher := &mockFetcher{}
	fetcher.On("Fetch", mock.Anything, "u1", domain.RecommendationForYou, 10).
		Return(nil, errors.New("down"))

	feed := newTestFeed(fetcher, newManualClock(t0))

	_, err := feed.Items(context.Background())
	assert.Error(t, err)
}

func TestFeed_SettledRefetchAndStaleMount(t *testing.T) {
	clock := newManualClock(t0)
	bus := NewBus(logger.Discard())
	bus.Publish(wishlistEvent("u1", t0))

	fetcher := &mockFetcher{}
	fetcher.On("Fetch", mock.Anything, "u1", domain.RecommendationForYou, 10).
		Return([]domain.Product{{ID: "fresh"}}, nil)

	// Mounted one second after the event: refetch lands at T+2s.
	clock.Advance(time.Second)
	feed := newTestFeed(fetcher, clock)
	feed.Subscribe(bus)
	assert.True(t, feed.HasPendingRefetch())

	clock.Advance(999 * time.Millisecond)
	fetcher.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	clock.Advance(time.Millisecond)
	fetcher.AssertNumberOfCalls(t, "Fetch", 1)
	assert.Equal(t, t0.Add(2*time.Second), feed.FetchedAt())
	assert.Equal(t, []domain.Product{{ID: "fresh"}}, feed.Snapshot())

	// Mounted six seconds after the event: ignored.
	clock.Advance(4 * time.Second)
	late := NewFeed(FeedConfig{UserID: "u1", Kind: domain.RecommendationSimilar, Limit: 10, Policy: DefaultPolicy()},
		fetcher, clock, logger.Discard())
	late.Subscribe(bus)
	assert.False(t, late.HasPendingRefetch())
	assert.Zero(t, clock.Pending())
}

func TestFeed_NewerEventCancelsPending(t *testing.T) {
	clock := newManualClock(t0)
	bus := NewBus(logger.Discard())
	fetcher := &mockFetcher{}
	fetcher.On("Fetch", mock.Anything, "u1", domain.RecommendationForYou, 10).
		Return([]domain.Product{{ID: "p"}}, nil)

	feed := newTestFeed(fetcher, clock)
	feed.Subscribe(bus)

	bus.Publish(wishlistEvent("u1", clock.Now()))
	clock.Advance(time.Second)
	bus.Publish(wishlistEvent("u1", clock.Now()))
	assert.Equal(t, 1, clock.Pending())

	clock.Advance(time.Second)
	fetcher.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	clock.Advance(time.Second)
	fetcher.AssertNumberOfCalls(t, "Fetch", 1)
}

func TestFeed_HandlesEachEventOnce(t *testing.T) {
	clock := newManualClock(t0)
	fetcher := &mockFetcher{}
	fetcher.On("Fetch", mock.Anything, "u1", domain.RecommendationForYou, 10).
		Return([]domain.Product{}, nil)

	feed := newTestFeed(fetcher, clock)
	ev := wishlistEvent("u1", t0)

	feed.OnInvalidation(ev)
	clock.Advance(2 * time.Second)
	feed.OnInvalidation(ev)
	feed.OnInvalidation(wishlistEvent("u1", t0.Add(-time.Second)))
	clock.Advance(10 * time.Second)

	fetcher.AssertNumberOfCalls(t, "Fetch", 1)
}

func TestFeed_OldEventRefetchesImmediately(t *testing.T) {
	clock := newManualClock(t0.Add(4 * time.Second))
	fetcher := &mockFetcher{}
	fetcher.On("Fetch", mock.Anything, "u1", domain.RecommendationForYou, 10).
		Return([]domain.Product{}, nil)

	feed := newTestFeed(fetcher, clock)
	feed.OnInvalidation(wishlistEvent("u1", t0))

	clock.Advance(0)
	fetcher.AssertNumberOfCalls(t, "Fetch", 1)
}

func TestFeed_CloseCancelsPendingAndUnsubscribes(t *testing.T) {
	clock := newManualClock(t0)
	bus := NewBus(logger.Discard())
	fetcher := &mockFetcher{}

	feed := newTestFeed(fetcher, clock)
	feed.Subscribe(bus)
	bus.Publish(wishlistEvent("u1", t0))
	require.True(t, feed.HasPendingRefetch())

	feed.Close()
	clock.Advance(5 * time.Second)

	fetcher.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Zero(t, bus.SubscriberCount("u1"))
}

func TestFeed_IndependentConsumers(t *testing.T) {
	clock := newManualClock(t0)
	bus := NewBus(logger.Discard())
	fetcher := &mockFetcher{}
	fetcher.On("Fetch", mock.Anything, "u1", mock.Anything, 10).Return([]domain.Product{}, nil)

	forYou := newTestFeed(fetcher, clock)
	similar := NewFeed(FeedConfig{UserID: "u1", Kind: domain.RecommendationSimilar, Limit: 10, Policy: DefaultPolicy()},
		fetcher, clock, logger.Discard())
	forYou.Subscribe(bus)
	similar.Subscribe(bus)

	bus.Publish(wishlistEvent("u1", t0))
	clock.Advance(2 * time.Second)

	fetcher.AssertCalled(t, "Fetch", mock.Anything, "u1", domain.RecommendationForYou, 10)
	fetcher.AssertCalled(t, "Fetch", mock.Anything, "u1", domain.RecommendationSimilar, 10)
}
