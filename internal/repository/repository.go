package repository

import (
	"context"

	"github.com/utafrali/storefront/internal/domain"
)

// VoucherRepository looks up voucher definitions by normalized code. A missing or
// inactive code is reported as an error wrapping apperrors.ErrNotFound.
type VoucherRepository interface {
	Lookup(ctx context.Context, code string) (*domain.Voucher, error)
}
