package service

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/notify"
)

// --- Mock Gateways ---

type mockCartGateway struct {
	mock.Mock
}

func (m *mockCartGateway) cart(args mock.Arguments) (*domain.CartSession, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CartSession), args.Error(1)
}

func (m *mockCartGateway) Fetch(ctx context.Context, userID string) (*domain.CartSession, error) {
	return m.cart(m.Called(ctx, userID))
}

func (m *mockCartGateway) AddLine(ctx context.Context, userID, variantID string, qty int) (*domain.CartSession, error) {
	return m.cart(m.Called(ctx, userID, variantID, qty))
}

func (m *mockCartGateway) SetQuantity(ctx context.Context, userID, lineID string, qty int) (*domain.CartSession, error) {
	return m.cart(m.Called(ctx, userID, lineID, qty))
}

func (m *mockCartGateway) RemoveLine(ctx context.Context, userID, lineID string) (*domain.CartSession, error) {
	return m.cart(m.Called(ctx, userID, lineID))
}

func (m *mockCartGateway) Clear(ctx context.Context, userID string) (*domain.CartSession, error) {
	return m.cart(m.Called(ctx, userID))
}

type mockWishlistGateway struct {
	mock.Mock
}

func (m *mockWishlistGateway) Fetch(ctx context.Context, userID string) ([]string, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockWishlistGateway) Toggle(ctx context.Context, userID, productID string) (domain.ToggleResult, error) {
	args := m.Called(ctx, userID, productID)
	return args.Get(0).(domain.ToggleResult), args.Error(1)
}

type mockRefresher struct {
	mock.Mock
}

func (m *mockRefresher) RequestRefresh(ctx context.Context, userID string) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

type mockVoucherRepository struct {
	mock.Mock
}

func (m *mockVoucherRepository) Lookup(ctx context.Context, code string) (*domain.Voucher, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Voucher), args.Error(1)
}

// --- Fakes ---

// inlineNotifier runs tasks synchronously so tests observe their effects directly.
type inlineNotifier struct {
	errs []error
}

func (n *inlineNotifier) Go(ctx context.Context, _ string, task notify.Task) error {
	n.errs = append(n.errs, task(ctx))
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.InvalidationEvent
}

func (p *recordingPublisher) Publish(ev domain.InvalidationEvent) domain.InvalidationEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return ev
}

func (p *recordingPublisher) Events() []domain.InvalidationEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.InvalidationEvent(nil), p.events...)
}

// --- Helpers ---

func intPtr(v int) *int { return &v }

func line(id string, qty int, unitPrice int64, stock *int) domain.CartLine {
	return domain.CartLine{
		ID:                  id,
		VariantID:           "var-" + id,
		ProductID:           "prod-" + id,
		Quantity:            qty,
		UnitPrice:           unitPrice,
		DiscountedUnitPrice: unitPrice,
		LineTotal:           unitPrice * int64(qty),
		Stock:               stock,
	}
}

func cartOf(lines ...domain.CartLine) *domain.CartSession {
	c := &domain.CartSession{ID: "cart-1", UserID: "user-1", Lines: lines, Currency: domain.DefaultCurrency}
	for _, l := range lines {
		c.TotalAmount += l.LineTotal
	}
	return c
}
