package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// SubtotalSource reports the subtotal of the lines selected for checkout.
type SubtotalSource interface {
	TotalAmount() int64
}

// VoucherEngine holds the single active voucher for a user and derives checkout quotes.
type VoucherEngine struct {
	repo     repository.VoucherRepository
	subtotal SubtotalSource
	shipping domain.ShippingPolicy
	logger   *slog.Logger
	now      func() time.Time

	mu     sync.Mutex
	active *domain.Voucher
	last   *domain.Mutation
}

// NewVoucherEngine creates an engine with no active voucher.
func NewVoucherEngine(repo repository.VoucherRepository, subtotal SubtotalSource, shipping domain.ShippingPolicy, logger *slog.Logger) *VoucherEngine {
	return &VoucherEngine{
		repo:     repo,
		subtotal: subtotal,
		shipping: shipping,
		logger:   logger.With(slog.String("store", "voucher")),
		now:      time.Now,
	}
}

// ApplyVoucher activates code against the current selection. Only one voucher may be
// active; the caller must remove it first. A rejected code leaves the engine unchanged,
// including LastMutation; the rollback is only logged and counted.
func (e *VoucherEngine) ApplyVoucher(ctx context.Context, code string) (domain.Quote, error) {
	code = domain.NormalizeCode(code)
	if code == "" {
		return domain.Quote{}, apperrors.InvalidInput("voucher code is required")
	}
	if err := e.ensureNoneActive(); err != nil {
		return domain.Quote{}, err
	}

	m := domain.NewMutation("apply_voucher", e.now())
	v, err := e.lookup(ctx, code)
	if err == nil {
		subtotal := e.subtotal.TotalAmount()
		if short := v.Shortfall(subtotal); short > 0 {
			err = apperrors.Validation(apperrors.CodeVoucherMinOrderNotMet,
				fmt.Sprintf("add %d more to use voucher %s", short, v.Code)).
				WithDetail("shortfall", short).
				WithDetail("min_order", v.MinOrder)
		}
	}

	e.mu.Lock()
	if err == nil && e.active != nil {
		err = alreadyApplied()
	}
	if err != nil {
		m.Rollback(err, e.now())
		e.mu.Unlock()
		recordMutation("voucher", m)
		e.logger.WarnContext(ctx, "voucher rejected",
			slog.String("code", code),
			slog.String("reason", apperrors.Code(err)),
		)
		return domain.Quote{}, err
	}
	e.active = v
	m.Commit(e.now())
	e.last = m
	e.mu.Unlock()

	recordMutation("voucher", m)
	e.logger.InfoContext(ctx, "voucher applied",
		slog.String("code", v.Code),
		slog.String("kind", string(v.Kind)),
	)
	return e.Quote(), nil
}

// RemoveVoucher clears the active voucher, if any, and returns the recomputed quote.
func (e *VoucherEngine) RemoveVoucher(ctx context.Context) domain.Quote {
	e.mu.Lock()
	removed := e.active
	e.active = nil
	if removed != nil {
		m := domain.NewMutation("remove_voucher", e.now())
		m.Commit(e.now())
		e.last = m
		recordMutation("voucher", m)
	}
	e.mu.Unlock()

	if removed != nil {
		e.logger.InfoContext(ctx, "voucher removed", slog.String("code", removed.Code))
	}
	return e.Quote()
}

// Quote derives totals from the current selection and active voucher.
func (e *VoucherEngine) Quote() domain.Quote {
	subtotal := e.subtotal.TotalAmount()
	e.mu.Lock()
	defer e.mu.Unlock()
	return domain.ComputeQuote(subtotal, e.active, e.shipping)
}

// Active returns a copy of the active voucher, or nil.
func (e *VoucherEngine) Active() *domain.Voucher {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return nil
	}
	v := *e.active
	return &v
}

// LastMutation returns a copy of the most recent voucher command, or nil.
func (e *VoucherEngine) LastMutation() *domain.Mutation {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.last == nil {
		return nil
	}
	m := *e.last
	return &m
}

// Reset drops the active voucher.
func (e *VoucherEngine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active = nil
	e.last = nil
}

func (e *VoucherEngine) ensureNoneActive() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active != nil {
		return alreadyApplied()
	}
	return nil
}

func (e *VoucherEngine) lookup(ctx context.Context, code string) (*domain.Voucher, error) {
	v, err := e.repo.Lookup(ctx, code)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFoundCode(apperrors.CodeVoucherInvalid,
				fmt.Sprintf("voucher %s is not valid", code))
		}
		return nil, fmt.Errorf("lookup voucher: %w", err)
	}
	return v, nil
}

func alreadyApplied() error {
	return apperrors.Conflict(apperrors.CodeVoucherAlreadyApplied,
		"a voucher is already applied; remove it first")
}
