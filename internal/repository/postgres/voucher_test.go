package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

func setupRepo(t *testing.T) (*VoucherRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewVoucherRepository(mock), mock
}

var voucherColumns = []string{"code", "kind", "min_order", "max_discount", "amount"}

func TestLookup_Percent(t *testing.T) {
	repo, mock := setupRepo(t)
	maxDiscount := int64(40000)

	mock.ExpectQuery("SELECT (.+) FROM vouchers").
		WithArgs("SALE20").
		WillReturnRows(pgxmock.NewRows(voucherColumns).AddRow("SALE20", "PERCENT", int64(100000), &maxDiscount, int64(20)))

	v, err := repo.Lookup(context.Background(), "SALE20")
	require.NoError(t, err)

	assert.Equal(t, domain.VoucherKindPercent, v.Kind)
	assert.Equal(t, int64(100000), v.MinOrder)
	require.NotNil(t, v.MaxDiscount)
	assert.Equal(t, int64(40000), *v.MaxDiscount)
	assert.Equal(t, int64(20), v.Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLookup_FixedWithoutCap(t *testing.T) {
	repo, mock := setupRepo(t)

	mock.ExpectQuery("FROM vouchers").
		WithArgs("GIAM50K").
		WillReturnRows(pgxmock.NewRows(voucherColumns).AddRow("GIAM50K", "FIXED", int64(60000), (*int64)(nil), int64(50000)))

	v, err := repo.Lookup(context.Background(), "GIAM50K")
	require.NoError(t, err)

	assert.Equal(t, domain.VoucherKindFixed, v.Kind)
	assert.Nil(t, v.MaxDiscount)
}

func TestLookup_NotFound(t *testing.T) {
	repo, mock := setupRepo(t)

	mock.ExpectQuery("FROM vouchers").WithArgs("NOPE").WillReturnError(pgx.ErrNoRows)

	_, err := repo.Lookup(context.Background(), "NOPE")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestLookup_UnknownKind(t *testing.T) {
	repo, mock := setupRepo(t)

	mock.ExpectQuery("FROM vouchers").
		WithArgs("ODD").
		WillReturnRows(pgxmock.NewRows(voucherColumns).AddRow("ODD", "BOGO", int64(0), (*int64)(nil), int64(1)))

	_, err := repo.Lookup(context.Background(), "ODD")
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrNotFound)
}

func TestLookup_DatabaseError(t *testing.T) {
	repo, mock := setupRepo(t)

	mock.ExpectQuery("FROM vouchers").WithArgs("X").WillReturnError(errors.New("connection reset"))

	_, err := repo.Lookup(context.Background(), "X")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}
