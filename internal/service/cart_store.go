// Package service holds the per-user stores that own storefront state: the cart and its
// selection, the applied voucher and the wishlist.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/gateway"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/validator"
)

// AddLineInput holds the parameters for adding a variant to the cart.
type AddLineInput struct {
	VariantID string `json:"variant_id" validate:"required,max=128"`
	Quantity  int    `json:"quantity" validate:"gte=1,lte=999"`
}

// CartStore owns the canonical cart snapshot for one user. Every successful gateway
// response replaces the snapshot wholesale; a failed command leaves it untouched.
type CartStore struct {
	gw        gateway.CartGateway
	selection *SelectionTracker
	userID    string
	logger    *slog.Logger
	now       func() time.Time

	mu       sync.Mutex
	cart     *domain.CartSession
	inFlight int
	last     *domain.Mutation
}

// NewCartStore creates a store holding an empty cart until the first Fetch.
func NewCartStore(userID string, gw gateway.CartGateway, selection *SelectionTracker, logger *slog.Logger) *CartStore {
	return &CartStore{
		gw:        gw,
		selection: selection,
		userID:    userID,
		logger:    logger.With(slog.String("store", "cart"), slog.String("user_id", userID)),
		now:       time.Now,
		cart:      domain.EmptyCart(userID),
	}
}

// Selection returns the tracker this store keeps consistent.
func (s *CartStore) Selection() *SelectionTracker {
	return s.selection
}

// Fetch loads the cart from the gateway.
func (s *CartStore) Fetch(ctx context.Context) (*domain.CartSession, error) {
	s.begin(nil)
	cart, err := s.gw.Fetch(ctx, s.userID)
	if err == nil && cart == nil {
		err = apperrors.Internal(errors.New("cart gateway returned no cart"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight--
	if err != nil {
		return nil, fmt.Errorf("fetch cart: %w", err)
	}
	s.replaceLocked(cart)
	return s.cart.Clone(), nil
}

// AddLine adds qty units of variantID. The gateway decides stock; a STOCK_EXCEEDED
// answer leaves the cart as it was.
func (s *CartStore) AddLine(ctx context.Context, input AddLineInput) (*domain.CartSession, error) {
	if err := validator.Validate(input); err != nil {
		return nil, validationError(err)
	}

	return s.mutate(ctx, "add_line", func(ctx context.Context) (*domain.CartSession, error) {
		return s.gw.AddLine(ctx, s.userID, input.VariantID, input.Quantity)
	})
}

// SetQuantity changes a line's quantity. A quantity below 1 removes the line. An
// increase beyond the stock left for this line is rejected before calling the gateway
// when the stock is known.
func (s *CartStore) SetQuantity(ctx context.Context, lineID string, qty int) (*domain.CartSession, error) {
	if qty < 1 {
		return s.RemoveLine(ctx, lineID)
	}

	line, err := s.line(lineID)
	if err != nil {
		return nil, err
	}
	if increase := qty - line.Quantity; increase > 0 {
		if remaining, known := line.RemainingStock(); known && increase > remaining {
			return nil, apperrors.Conflict(apperrors.CodeStockExceeded,
				fmt.Sprintf("you can add at most %d more — %d already in cart", remaining, line.Quantity)).
				WithDetail("remaining", remaining).
				WithDetail("in_cart", line.Quantity)
		}
	}

	return s.mutate(ctx, "set_quantity", func(ctx context.Context) (*domain.CartSession, error) {
		return s.gw.SetQuantity(ctx, s.userID, lineID, qty)
	})
}

// RemoveLine deletes a line.
func (s *CartStore) RemoveLine(ctx context.Context, lineID string) (*domain.CartSession, error) {
	if _, err := s.line(lineID); err != nil {
		return nil, err
	}

	return s.mutate(ctx, "remove_line", func(ctx context.Context) (*domain.CartSession, error) {
		return s.gw.RemoveLine(ctx, s.userID, lineID)
	})
}

// Clear empties the cart.
func (s *CartStore) Clear(ctx context.Context) (*domain.CartSession, error) {
	return s.mutate(ctx, "clear", func(ctx context.Context) (*domain.CartSession, error) {
		return s.gw.Clear(ctx, s.userID)
	})
}

// Reset drops local state back to an empty cart, as on logout. The server cart is kept.
func (s *CartStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart = domain.EmptyCart(s.userID)
	s.last = nil
	s.selection.Reconcile(nil)
}

// Snapshot returns a copy of the current cart.
func (s *CartStore) Snapshot() *domain.CartSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Clone()
}

// SelectedLines returns the selected lines in cart order.
func (s *CartStore) SelectedLines() []domain.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := make([]domain.CartLine, 0, len(s.cart.Lines))
	for _, l := range s.cart.Clone().Lines {
		if s.selection.IsSelected(l.ID) {
			lines = append(lines, l)
		}
	}
	return lines
}

// TotalAmount is the sum of line totals over the selected lines.
func (s *CartStore) TotalAmount() int64 {
	var total int64
	for _, l := range s.SelectedLines() {
		total += l.LineTotal
	}
	return total
}

// IsLoading reports whether a command is waiting on the gateway. Callers guard
// double-submit; the store does not.
func (s *CartStore) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight > 0
}

// LastMutation returns a copy of the most recently started command, or nil.
func (s *CartStore) LastMutation() *domain.Mutation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	m := *s.last
	return &m
}

func (s *CartStore) line(lineID string) (domain.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	line, ok := s.cart.FindLine(lineID)
	if !ok {
		return domain.CartLine{}, apperrors.NotFound("cart line", lineID)
	}
	return line, nil
}

func (s *CartStore) begin(m *domain.Mutation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight++
	if m != nil {
		s.last = m
	}
}

// mutate runs call as a tracked command. The lock is never held across the gateway call.
func (s *CartStore) mutate(ctx context.Context, op string, call func(context.Context) (*domain.CartSession, error)) (*domain.CartSession, error) {
	m := domain.NewMutation(op, s.now())
	s.begin(m)

	cart, err := call(ctx)
	if err == nil && cart == nil {
		err = apperrors.Internal(fmt.Errorf("cart gateway returned no cart for %s", op))
	}

	s.mu.Lock()
	s.inFlight--
	if err != nil {
		m.Rollback(err, s.now())
		s.mu.Unlock()

		recordMutation("cart", m)
		s.logger.WarnContext(ctx, "cart mutation rolled back",
			slog.String("op", op),
			slog.String("mutation_id", m.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.replaceLocked(cart)
	m.Commit(s.now())
	out := s.cart.Clone()
	s.mu.Unlock()

	recordMutation("cart", m)
	s.logger.InfoContext(ctx, "cart mutation committed",
		slog.String("op", op),
		slog.String("mutation_id", m.ID),
		slog.Int("lines", len(out.Lines)),
	)
	return out, nil
}

func (s *CartStore) replaceLocked(cart *domain.CartSession) {
	s.cart = cart.Clone()
	if s.cart.UserID == "" {
		s.cart.UserID = s.userID
	}
	if s.cart.Lines == nil {
		s.cart.Lines = []domain.CartLine{}
	}
	s.selection.Reconcile(s.cart.LineIDs())
}

func validationError(err error) error {
	var verr *validator.ValidationError
	if errors.As(err, &verr) {
		return apperrors.InvalidInput(verr.Error()).WithDetail("fields", verr.Fields())
	}
	return apperrors.InvalidInput(err.Error())
}
