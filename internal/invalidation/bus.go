// Package invalidation carries recommendation-staleness signals from the wishlist to
// the views that render recommendations.
package invalidation

import (
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/utafrali/storefront/internal/domain"
)

var busEventsPublished = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "storefront_invalidation_events_published_total",
		Help: "Invalidation events published by kind",
	},
	[]string{"kind"},
)

// Subscriber observes invalidation events. OnInvalidation is called outside the bus
// lock and must not block.
type Subscriber interface {
	OnInvalidation(ev domain.InvalidationEvent)
}

// Subscription detaches a subscriber.
type Subscription struct {
	bus    *Bus
	userID string
	id     uint64
	once   sync.Once
}

// Cancel stops delivery. It is safe to call more than once.
func (s *Subscription) Cancel() {
	s.once.Do(func() { s.bus.unsubscribe(s.userID, s.id) })
}

// Bus is a per-user single-slot publish/subscribe channel. A publish overwrites the
// slot; nothing is queued. Timestamps in a user's slot strictly increase.
type Bus struct {
	mu     sync.Mutex
	slots  map[string]domain.InvalidationEvent
	subs   map[string]map[uint64]Subscriber
	nextID uint64
	logger *slog.Logger
}

// NewBus creates an empty bus.
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		slots:  make(map[string]domain.InvalidationEvent),
		subs:   make(map[string]map[uint64]Subscriber),
		logger: logger,
	}
}

// Publish stores ev as the user's latest event and delivers it to the user's current
// subscribers. A timestamp not after the previous one is bumped to previous+1ns.
func (b *Bus) Publish(ev domain.InvalidationEvent) domain.InvalidationEvent {
	b.mu.Lock()
	if prev, ok := b.slots[ev.UserID]; ok && !ev.Timestamp.After(prev.Timestamp) {
		ev.Timestamp = prev.Timestamp.Add(time.Nanosecond)
	}
	b.slots[ev.UserID] = ev
	targets := b.subscribersLocked(ev.UserID)
	b.mu.Unlock()

	busEventsPublished.WithLabelValues(string(ev.Kind)).Inc()
	b.logger.Debug("invalidation published",
		slog.String("user_id", ev.UserID),
		slog.String("kind", string(ev.Kind)),
		slog.Time("timestamp", ev.Timestamp),
		slog.Int("subscribers", len(targets)),
	)

	for _, s := range targets {
		s.OnInvalidation(ev)
	}
	return ev
}

// Subscribe registers s for userID's events. If the slot already holds an event, s
// observes it before Subscribe returns.
func (b *Bus) Subscribe(userID string, s Subscriber) *Subscription {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	if b.subs[userID] == nil {
		b.subs[userID] = make(map[uint64]Subscriber)
	}
	b.subs[userID][id] = s
	ev, pending := b.slots[userID]
	b.mu.Unlock()

	if pending {
		s.OnInvalidation(ev)
	}
	return &Subscription{bus: b, userID: userID, id: id}
}

// Latest returns the event currently in userID's slot.
func (b *Bus) Latest(userID string) (domain.InvalidationEvent, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ev, ok := b.slots[userID]
	return ev, ok
}

// Forget empties userID's slot, e.g. on logout.
func (b *Bus) Forget(userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.slots, userID)
}

// Prune drops slots whose event is older than maxAge at now. Subscribers ignore such
// events anyway. It returns the number of slots dropped.
func (b *Bus) Prune(now time.Time, maxAge time.Duration) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for userID, ev := range b.slots {
		if ev.Age(now) > maxAge {
			delete(b.slots, userID)
			n++
		}
	}
	return n
}

// SubscriberCount returns how many subscribers userID has.
func (b *Bus) SubscriberCount(userID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[userID])
}

func (b *Bus) unsubscribe(userID string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs[userID], id)
	if len(b.subs[userID]) == 0 {
		delete(b.subs, userID)
	}
}

func (b *Bus) subscribersLocked(userID string) []Subscriber {
	out := make([]Subscriber, 0, len(b.subs[userID]))
	for _, s := range b.subs[userID] {
		out = append(out, s)
	}
	return out
}
