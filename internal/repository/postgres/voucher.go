package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

const lookupVoucherQuery = `
	SELECT code, kind, min_order, max_discount, amount
	FROM vouchers
	WHERE code = $1
	  AND active
	  AND (starts_at IS NULL OR starts_at <= NOW())
	  AND (ends_at IS NULL OR ends_at > NOW())`

// VoucherRepository implements repository.VoucherRepository on the vouchers table.
type VoucherRepository struct {
	db database.DBTX
}

// NewVoucherRepository creates a PostgreSQL-backed voucher table.
func NewVoucherRepository(db database.DBTX) *VoucherRepository {
	return &VoucherRepository{db: db}
}

// Lookup returns the active voucher stored under code.
func (r *VoucherRepository) Lookup(ctx context.Context, code string) (v *domain.Voucher, err error) {
	ctx, end := database.TraceQuery(ctx, "postgresql", "LookupVoucher", lookupVoucherQuery)
	defer func() { end(err) }()

	var (
		kind        string
		maxDiscount *int64
		out         domain.Voucher
	)
	err = r.db.QueryRow(ctx, lookupVoucherQuery, code).Scan(
		&out.Code,
		&kind,
		&out.MinOrder,
		&maxDiscount,
		&out.Amount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("voucher", code)
		}
		return nil, fmt.Errorf("lookup voucher %s: %w", code, err)
	}

	out.Kind = domain.VoucherKind(kind)
	if !out.Kind.IsValid() {
		return nil, fmt.Errorf("voucher %s has unknown kind %q", code, kind)
	}
	out.MaxDiscount = maxDiscount
	return &out, nil
}
