package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/gateway"
	"github.com/utafrali/storefront/internal/notify"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// taskRecommendationRefresh names the best-effort refresh in logs and metrics.
const taskRecommendationRefresh = "recommendation_refresh"

// InvalidationPublisher is the write side of the invalidation bus.
type InvalidationPublisher interface {
	Publish(ev domain.InvalidationEvent) domain.InvalidationEvent
}

// Notifier runs detached best-effort tasks.
type Notifier interface {
	Go(ctx context.Context, name string, task notify.Task) error
}

// WishlistStore owns a user's wishlist membership. Toggles apply locally at once and
// are reconciled with, or reverted by, the gateway's answer.
type WishlistStore struct {
	gw        gateway.WishlistGateway
	refresher gateway.RefreshRequester
	bus       InvalidationPublisher
	notifier  Notifier
	userID    string
	logger    *slog.Logger
	now       func() time.Time

	mu       sync.Mutex
	items    map[string]struct{}
	inFlight int
	last     *domain.Mutation
	closed   bool
}

// NewWishlistStore creates an empty store.
func NewWishlistStore(
	userID string,
	gw gateway.WishlistGateway,
	refresher gateway.RefreshRequester,
	bus InvalidationPublisher,
	notifier Notifier,
	logger *slog.Logger,
) *WishlistStore {
	return &WishlistStore{
		gw:        gw,
		refresher: refresher,
		bus:       bus,
		notifier:  notifier,
		userID:    userID,
		logger:    logger.With(slog.String("store", "wishlist"), slog.String("user_id", userID)),
		now:       time.Now,
		items:     make(map[string]struct{}),
	}
}

// Fetch replaces membership with the gateway's set.
func (s *WishlistStore) Fetch(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	s.inFlight++
	s.mu.Unlock()

	ids, err := s.gw.Fetch(ctx, s.userID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight--
	if err != nil {
		return nil, fmt.Errorf("fetch wishlist: %w", err)
	}
	s.items = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		s.items[id] = struct{}{}
	}
	return s.sortedLocked(), nil
}

// Toggle flips productID's membership. The result is the gateway's verdict. A confirmed
// addition asks the recommendation service to recompute in the background; the toggle
// never waits for, or fails because of, that request.
func (s *WishlistStore) Toggle(ctx context.Context, productID string) (domain.ToggleResult, error) {
	if productID == "" {
		return domain.ToggleResult{}, apperrors.InvalidInput("product id is required")
	}

	m := domain.NewMutation("toggle", s.now())
	s.mu.Lock()
	_, wasMember := s.items[productID]
	s.setLocked(productID, !wasMember)
	s.inFlight++
	s.last = m
	s.mu.Unlock()

	res, err := s.gw.Toggle(ctx, s.userID, productID)

	s.mu.Lock()
	s.inFlight--
	if err != nil {
		s.setLocked(productID, wasMember)
		m.Rollback(err, s.now())
		s.mu.Unlock()

		recordMutation("wishlist", m)
		s.logger.WarnContext(ctx, "wishlist toggle rolled back",
			slog.String("product_id", productID),
			slog.String("mutation_id", m.ID),
			slog.String("error", err.Error()),
		)
		return domain.ToggleResult{}, fmt.Errorf("toggle wishlist: %w", err)
	}
	if res.ProductID == "" {
		res.ProductID = productID
	}
	s.setLocked(productID, res.Added)
	m.Commit(s.now())
	s.mu.Unlock()

	recordMutation("wishlist", m)
	s.logger.InfoContext(ctx, "wishlist toggle committed",
		slog.String("product_id", productID),
		slog.Bool("added", res.Added),
	)

	if res.Added {
		s.requestRefresh(ctx)
	}
	return res, nil
}

// requestRefresh hands the refresh call to the notifier. The invalidation event is
// published only once the recommendation service has accepted the request.
func (s *WishlistStore) requestRefresh(ctx context.Context) {
	err := s.notifier.Go(ctx, taskRecommendationRefresh, func(ctx context.Context) error {
		accepted, err := s.refresher.RequestRefresh(ctx, s.userID)
		if err != nil {
			return fmt.Errorf("request recommendation refresh: %w", err)
		}
		if !accepted {
			s.logger.InfoContext(ctx, "recommendation refresh not accepted")
			return nil
		}

		// Publish under the lock so a closed store never re-arms the user's slot.
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			s.logger.DebugContext(ctx, "store closed, invalidation dropped")
			return nil
		}
		ev := s.bus.Publish(domain.InvalidationEvent{
			UserID:    s.userID,
			Timestamp: s.now(),
			Kind:      domain.InvalidationWishlistAdded,
		})
		s.logger.DebugContext(ctx, "recommendations invalidated", slog.Time("timestamp", ev.Timestamp))
		return nil
	})
	if err != nil {
		s.logger.WarnContext(ctx, "recommendation refresh not scheduled", slog.String("error", err.Error()))
	}
}

// Contains reports whether productID is in the wishlist.
func (s *WishlistStore) Contains(productID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.items[productID]
	return ok
}

// Items returns the product ids, sorted.
func (s *WishlistStore) Items() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked()
}

// IsLoading reports whether a command is waiting on the gateway.
func (s *WishlistStore) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight > 0
}

// LastMutation returns a copy of the most recent toggle, or nil.
func (s *WishlistStore) LastMutation() *domain.Mutation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	m := *s.last
	return &m
}

// Close empties local membership for good. A refresh still in flight completes but no
// longer publishes an invalidation.
func (s *WishlistStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.items = make(map[string]struct{})
	s.last = nil
}

func (s *WishlistStore) setLocked(productID string, member bool) {
	if member {
		s.items[productID] = struct{}{}
		return
	}
	delete(s.items, productID)
}

func (s *WishlistStore) sortedLocked() []string {
	out := make([]string, 0, len(s.items))
	for id := range s.items {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
