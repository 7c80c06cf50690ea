// Package session bundles the per-user stores and hands them to the HTTP surface.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/gateway"
	"github.com/utafrali/storefront/internal/invalidation"
	"github.com/utafrali/storefront/internal/repository"
	"github.com/utafrali/storefront/internal/service"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

var activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "storefront_active_sessions",
	Help: "Number of users with a live storefront session",
})

// Session is one user's storefront state.
type Session struct {
	UserID    string
	Cart      *service.CartStore
	Selection *service.SelectionTracker
	Vouchers  *service.VoucherEngine
	Wishlist  *service.WishlistStore

	feeds map[domain.RecommendationKind]*invalidation.Feed
}

// Feed returns the recommendation list of the given kind.
func (s *Session) Feed(kind domain.RecommendationKind) (*invalidation.Feed, error) {
	f, ok := s.feeds[kind]
	if !ok {
		return nil, apperrors.NotFound("recommendation list", string(kind))
	}
	return f, nil
}

// Kinds returns the recommendation lists this session renders.
func (s *Session) Kinds() []domain.RecommendationKind {
	out := make([]domain.RecommendationKind, 0, len(s.feeds))
	for k := range s.feeds {
		out = append(out, k)
	}
	return out
}

func (s *Session) close() {
	s.Wishlist.Close()
	s.Cart.Reset()
	s.Selection.DeselectAll()
	s.Vouchers.Reset()
	for _, f := range s.feeds {
		f.Close()
	}
}

// Dependencies are the collaborators shared by every session.
type Dependencies struct {
	Cart            gateway.CartGateway
	Wishlist        gateway.WishlistGateway
	Recommendations gateway.RecommendationGateway
	Vouchers        repository.VoucherRepository
	Bus             *invalidation.Bus
	Notifier        service.Notifier
	Clock           invalidation.Clock
	Shipping        domain.ShippingPolicy
	Feeds           []domain.RecommendationKind
	FeedLimit       int
	Policy          invalidation.Policy

	// IdleTTL evicts sessions not used for that long. 0 keeps them until logout.
	IdleTTL time.Duration
	Logger  *slog.Logger
}

type entry struct {
	session  *Session
	lastSeen time.Time
}

// Manager creates sessions on first use and tears them down on logout or when idle.
type Manager struct {
	deps Dependencies

	mu       sync.Mutex
	sessions map[string]*entry

	done chan struct{}
	once sync.Once
}

// NewManager creates a manager with no sessions. With a positive IdleTTL a background
// loop, stopped by Close, evicts idle sessions and expired bus slots.
func NewManager(deps Dependencies) *Manager {
	if deps.Clock == nil {
		deps.Clock = invalidation.SystemClock
	}
	m := &Manager{
		deps:     deps,
		sessions: make(map[string]*entry),
		done:     make(chan struct{}),
	}
	if deps.IdleTTL > 0 {
		go m.cleanupLoop()
	}
	return m
}

// Get returns userID's session, creating it if needed.
func (m *Manager) Get(userID string) (*Session, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}

	now := m.deps.Clock.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.sessions[userID]; ok {
		e.lastSeen = now
		return e.session, nil
	}

	s := m.newSession(userID)
	m.sessions[userID] = &entry{session: s, lastSeen: now}
	activeSessions.Inc()
	m.deps.Logger.Debug("session created", slog.String("user_id", userID))
	return s, nil
}

// Logout drops userID's local state: the cart snapshot goes back to empty, the selection,
// voucher and wishlist are cleared and pending recommendation refetches are cancelled.
// It reports whether a session existed.
func (m *Manager) Logout(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[userID]
	if ok {
		m.evictLocked(userID, e)
		m.deps.Logger.Info("session closed", slog.String("user_id", userID))
	}
	m.deps.Bus.Forget(userID)
	return ok
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close stops the eviction loop and tears down every session.
func (m *Manager) Close() {
	m.once.Do(func() { close(m.done) })

	m.mu.Lock()
	defer m.mu.Unlock()
	for userID, e := range m.sessions {
		m.evictLocked(userID, e)
	}
}

func (m *Manager) cleanupLoop() {
	ticker := time.NewTicker(m.deps.IdleTTL)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.cleanup()
		case <-m.done:
			return
		}
	}
}

// cleanup evicts sessions idle for longer than IdleTTL and drops bus slots too old to
// act on.
func (m *Manager) cleanup() {
	now := m.deps.Clock.Now()

	m.mu.Lock()
	evicted := 0
	for userID, e := range m.sessions {
		if m.deps.IdleTTL > 0 && now.Sub(e.lastSeen) > m.deps.IdleTTL {
			m.evictLocked(userID, e)
			m.deps.Bus.Forget(userID)
			evicted++
		}
	}
	m.mu.Unlock()

	pruned := m.deps.Bus.Prune(now, m.deps.Policy.StalenessWindow)
	if evicted > 0 || pruned > 0 {
		m.deps.Logger.Debug("idle sessions evicted",
			slog.Int("sessions", evicted),
			slog.Int("slots", pruned),
		)
	}
}

// evictLocked closes e. The wishlist is closed before the caller forgets the bus slot so
// an in-flight refresh cannot publish afterwards.
func (m *Manager) evictLocked(userID string, e *entry) {
	delete(m.sessions, userID)
	e.session.close()
	activeSessions.Dec()
}

func (m *Manager) newSession(userID string) *Session {
	d := m.deps
	selection := service.NewSelectionTracker()
	cart := service.NewCartStore(userID, d.Cart, selection, d.Logger)

	s := &Session{
		UserID:    userID,
		Cart:      cart,
		Selection: selection,
		Vouchers:  service.NewVoucherEngine(d.Vouchers, cart, d.Shipping, d.Logger),
		Wishlist:  service.NewWishlistStore(userID, d.Wishlist, d.Recommendations, d.Bus, d.Notifier, d.Logger),
		feeds:     make(map[domain.RecommendationKind]*invalidation.Feed, len(d.Feeds)),
	}

	for _, kind := range d.Feeds {
		feed := invalidation.NewFeed(invalidation.FeedConfig{
			UserID: userID,
			Kind:   kind,
			Limit:  d.FeedLimit,
			Policy: d.Policy,
		}, d.Recommendations, d.Clock, d.Logger)
		feed.Subscribe(d.Bus)
		s.feeds[kind] = feed
	}
	return s
}
