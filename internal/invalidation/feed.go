package invalidation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/gateway"
)

var feedDecisions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "storefront_feed_invalidation_decisions_total",
		Help: "How recommendation feeds handled invalidation events",
	},
	[]string{"kind", "decision"},
)

// Policy decides whether and when a subscriber acts on an event.
type Policy struct {
	// StalenessWindow is the maximum event age that still triggers a refetch.
	StalenessWindow time.Duration
	// SettleDelay is how long after the event's timestamp the refetch runs, giving the
	// backend time to recompute.
	SettleDelay time.Duration
}

// DefaultPolicy is a 5s staleness window with a 2s settle delay.
func DefaultPolicy() Policy {
	return Policy{StalenessWindow: 5 * time.Second, SettleDelay: 2 * time.Second}
}

// Delay returns how long to wait before refetching for an event of the given age, and
// false when the event is too old to act on.
func (p Policy) Delay(age time.Duration) (time.Duration, bool) {
	if age > p.StalenessWindow {
		return 0, false
	}
	d := p.SettleDelay - age
	if d < 0 {
		d = 0
	}
	return d, true
}

// FeedConfig describes one recommendation list.
type FeedConfig struct {
	UserID       string
	Kind         domain.RecommendationKind
	Limit        int
	Policy       Policy
	FetchTimeout time.Duration
}

// Feed is a locally held recommendation list that refetches itself when its user's
// recommendations are invalidated. Each feed decides independently; a newer event
// cancels a refetch still waiting for an older one.
type Feed struct {
	cfg     FeedConfig
	fetcher gateway.RecommendationFetcher
	clock   Clock
	logger  *slog.Logger

	mu         sync.Mutex
	products   []domain.Product
	loaded     bool
	fetchedAt  time.Time
	lastSeen   time.Time
	pending    Timer
	generation uint64
	appliedGen uint64
	closed     bool
	sub        *Subscription
}

// NewFeed creates an unsubscribed feed.
func NewFeed(cfg FeedConfig, fetcher gateway.RecommendationFetcher, clock Clock, logger *slog.Logger) *Feed {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	return &Feed{
		cfg:     cfg,
		fetcher: fetcher,
		clock:   clock,
		logger: logger.With(
			slog.String("user_id", cfg.UserID),
			slog.String("feed", string(cfg.Kind)),
		),
	}
}

// Kind returns the list this feed renders.
func (f *Feed) Kind() domain.RecommendationKind {
	return f.cfg.Kind
}

// Subscribe attaches the feed to bus. An event already in the slot is evaluated now.
func (f *Feed) Subscribe(bus *Bus) {
	sub := bus.Subscribe(f.cfg.UserID, f)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		sub.Cancel()
		return
	}
	f.sub = sub
}

// OnInvalidation applies the staleness/settle policy to ev. A given event is handled
// once; older or repeated events are ignored.
func (f *Feed) OnInvalidation(ev domain.InvalidationEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed || !ev.Timestamp.After(f.lastSeen) {
		return
	}
	f.lastSeen = ev.Timestamp

	age := ev.Age(f.clock.Now())
	delay, fresh := f.cfg.Policy.Delay(age)
	if !fresh {
		feedDecisions.WithLabelValues(string(f.cfg.Kind), "stale").Inc()
		f.logger.Debug("ignoring stale invalidation", slog.Duration("age", age))
		return
	}

	decision := "scheduled"
	if f.pending != nil && f.pending.Stop() {
		decision = "rescheduled"
	}
	f.generation++
	gen := f.generation
	f.pending = f.clock.AfterFunc(delay, func() { f.refetch(gen) })
	feedDecisions.WithLabelValues(string(f.cfg.Kind), decision).Inc()

	f.logger.Debug("recommendation refetch scheduled",
		slog.Duration("age", age),
		slog.Duration("delay", delay),
	)
}

func (f *Feed) refetch(gen uint64) {
	f.mu.Lock()
	if f.closed || gen != f.generation {
		f.mu.Unlock()
		return
	}
	f.pending = nil
	f.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), f.cfg.FetchTimeout)
	defer cancel()
	if err := f.load(ctx, gen); err != nil {
		f.logger.Warn("recommendation refetch failed", slog.String("error", err.Error()))
	}
}

func (f *Feed) load(ctx context.Context, gen uint64) error {
	products, err := f.fetcher.Fetch(ctx, f.cfg.UserID, f.cfg.Kind, f.cfg.Limit)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || gen < f.appliedGen {
		return nil
	}
	f.appliedGen = gen
	f.products = append([]domain.Product(nil), products...)
	f.loaded = true
	f.fetchedAt = f.clock.Now()
	return nil
}

// Items returns the list, fetching it on first use.
func (f *Feed) Items(ctx context.Context) ([]domain.Product, error) {
	f.mu.Lock()
	if f.loaded {
		out := append([]domain.Product(nil), f.products...)
		f.mu.Unlock()
		return out, nil
	}
	gen := f.generation
	f.mu.Unlock()

	if err := f.load(ctx, gen); err != nil {
		return nil, err
	}
	return f.Snapshot(), nil
}

// Snapshot returns the current list without fetching.
func (f *Feed) Snapshot() []domain.Product {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Product(nil), f.products...)
}

// FetchedAt is when the list was last replaced.
func (f *Feed) FetchedAt() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchedAt
}

// HasPendingRefetch reports whether a refetch is scheduled.
func (f *Feed) HasPendingRefetch() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending != nil
}

// Close cancels any pending refetch and detaches from the bus.
func (f *Feed) Close() {
	f.mu.Lock()
	f.closed = true
	if f.pending != nil {
		f.pending.Stop()
		f.pending = nil
	}
	sub := f.sub
	f.sub = nil
	f.mu.Unlock()

	if sub != nil {
		sub.Cancel()
	}
}
