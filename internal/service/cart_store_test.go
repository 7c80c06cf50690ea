package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/logger"
)

func newTestCartStore(gw *mockCartGateway) *CartStore {
	return NewCartStore("user-1", gw, NewSelectionTracker(), logger.Discard())
}

// loadedStore returns a store whose snapshot is cart.
func loadedStore(t *testing.T, gw *mockCartGateway, cart *domain.CartSession) *CartStore {
	t.Helper()
	gw.On("Fetch", mock.Anything, "user-1").Return(cart, nil).Once()
	s := newTestCartStore(gw)
	_, err := s.Fetch(context.Background())
	require.NoError(t, err)
	return s
}

func TestCartStore_StartsEmpty(t *testing.T) {
	s := newTestCartStore(new(mockCartGateway))

	snap := s.Snapshot()
	assert.Equal(t, "user-1", snap.UserID)
	assert.Empty(t, snap.Lines)
	assert.Zero(t, s.TotalAmount())
	assert.Nil(t, s.LastMutation())
}

func TestCartStore_FetchReplacesSnapshot(t *testing.T) {
	gw := new(mockCartGateway)
	s := loadedStore(t, gw, cartOf(line("1", 2, 100000, nil)))

	snap := s.Snapshot()
	require.Len(t, snap.Lines, 1)
	assert.Equal(t, "1", snap.Lines[0].ID)
}

func TestCartStore_FetchErrorKeepsSnapshot(t *testing.T) {
	gw := new(mockCartGateway)
	s := loadedStore(t, gw, cartOf(line("1", 1, 1000, nil)))
	gw.On("Fetch", mock.Anything, "user-1").Return(nil, apperrors.Transient(errors.New("timeout")))

	_, err := s.Fetch(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperrors.KindTransient, apperrors.Kind(err))
	assert.Len(t, s.Snapshot().Lines, 1)
}

func TestCartStore_AddLineReplacesWholesale(t *testing.T) {
	gw := new(mockCartGateway)
	s := newTestCartStore(gw)
	server := cartOf(line("1", 2, 100000, nil))
	gw.On("AddLine", mock.Anything, "user-1", "var-1", 2).Return(server, nil)

	got, err := s.AddLine(context.Background(), AddLineInput{VariantID: "var-1", Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, server.Lines, got.Lines)
	assert.Equal(t, int64(200000), got.TotalAmount)

	m := s.LastMutation()
	require.NotNil(t, m)
	assert.Equal(t, "add_line", m.Op)
	assert.Equal(t, domain.MutationCommitted, m.State)
}

func TestCartStore_AddLineValidation(t *testing.T) {
	tests := []struct {
		name  string
		input AddLineInput
	}{
		{"zero quantity", AddLineInput{VariantID: "v", Quantity: 0}},
		{"negative quantity", AddLineInput{VariantID: "v", Quantity: -1}},
		{"missing variant", AddLineInput{Quantity: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := new(mockCartGateway)
			s := newTestCartStore(gw)

			_, err := s.AddLine(context.Background(), tt.input)
			require.Error(t, err)
			assert.Equal(t, apperrors.KindValidation, apperrors.Kind(err))
			gw.AssertNotCalled(t, "AddLine", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

// The gateway rejects on stock and the store is unchanged.
func TestCartStore_AddLineStockExceededLeavesStateUnchanged(t *testing.T) {
	gw := new(mockCartGateway)
	s := loadedStore(t, gw, cartOf(line("9", 1, 5000, nil)))
	_, err := s.Selection().Toggle("9")
	require.NoError(t, err)

	before := s.Snapshot()
	beforeSelected := s.Selection().Selected()

	gw.On("AddLine", mock.Anything, "user-1", "v", 5).
		Return(nil, apperrors.Conflict(apperrors.CodeStockExceeded, "only 3 left"))

	_, err = s.AddLine(context.Background(), AddLineInput{VariantID: "v", Quantity: 5})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStockExceeded))

	assert.Equal(t, before, s.Snapshot())
	assert.Equal(t, beforeSelected, s.Selection().Selected())
	assert.Equal(t, domain.MutationRolledBack, s.LastMutation().State)
	assert.False(t, s.IsLoading())
}

func TestCartStore_NilGatewayCartIsInternal(t *testing.T) {
	gw := new(mockCartGateway)
	s := newTestCartStore(gw)
	gw.On("Clear", mock.Anything, "user-1").Return(nil, nil)

	_, err := s.Clear(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperrors.KindInternal, apperrors.Kind(err))
}

func TestCartStore_SetQuantityPreflight(t *testing.T) {
	gw := new(mockCartGateway)
	s := loadedStore(t, gw, cartOf(line("1", 2, 1000, intPtr(5))))

	_, err := s.SetQuantity(context.Background(), "1", 8)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStockExceeded))
	assert.Equal(t, "you can add at most 3 more — 2 already in cart", apperrors.UserMessage(err))
	gw.AssertNotCalled(t, "SetQuantity", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCartStore_SetQuantityWithinStock(t *testing.T) {
	gw := new(mockCartGateway)
	s := loadedStore(t, gw, cartOf(line("1", 2, 1000, intPtr(5))))
	gw.On("SetQuantity", mock.Anything, "user-1", "1", 5).Return(cartOf(line("1", 5, 1000, intPtr(5))), nil)

	got, err := s.SetQuantity(context.Background(), "1", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Lines[0].Quantity)
}

func TestCartStore_SetQuantityUnknownStockDefersToGateway(t *testing.T) {
	gw := new(mockCartGateway)
	s := loadedStore(t, gw, cartOf(line("1", 1, 1000, nil)))
	gw.On("SetQuantity", mock.Anything, "user-1", "1", 50).
		Return(nil, apperrors.Conflict(apperrors.CodeStockExceeded, "not enough stock"))

	_, err := s.SetQuantity(context.Background(), "1", 50)
	require.Error(t, err)
	gw.AssertCalled(t, "SetQuantity", mock.Anything, "user-1", "1", 50)
	assert.Equal(t, 1, s.Snapshot().Lines[0].Quantity)
}

func TestCartStore_SetQuantityDecreaseSkipsPreflight(t *testing.T) {
	gw := new(mockCartGateway)
	s := loadedStore(t, gw, cartOf(line("1", 4, 1000, intPtr(2))))
	gw.On("SetQuantity", mock.Anything, "user-1", "1", 3).Return(cartOf(line("1", 3, 1000, intPtr(2))), nil)

	_, err := s.SetQuantity(context.Background(), "1", 3)
	require.NoError(t, err)
}

func TestCartStore_SetQuantityUnknownLine(t *testing.T) {
	gw := new(mockCartGateway)
	s := loadedStore(t, gw, cartOf(line("1", 1, 1000, nil)))

	_, err := s.SetQuantity(context.Background(), "nope", 2)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindNotFound, apperrors.Kind(err))
}

func TestCartStore_SetQuantityZeroEqualsRemoveLine(t *testing.T) {
	initial := cartOf(line("1", 1, 1000, nil), line("2", 1, 2000, nil))
	after := cartOf(line("2", 1, 2000, nil))

	run := func(op func(s *CartStore) (*domain.CartSession, error)) (*domain.CartSession, []string, *mockCartGateway) {
		gw := new(mockCartGateway)
		s := loadedStore(t, gw, initial)
		s.Selection().SelectAll()
		gw.On("RemoveLine", mock.Anything, "user-1", "1").Return(after, nil)
		got, err := op(s)
		require.NoError(t, err)
		return got, s.Selection().Selected(), gw
	}

	viaZero, selZero, gwZero := run(func(s *CartStore) (*domain.CartSession, error) {
		return s.SetQuantity(context.Background(), "1", 0)
	})
	viaRemove, selRemove, _ := run(func(s *CartStore) (*domain.CartSession, error) {
		return s.RemoveLine(context.Background(), "1")
	})

	assert.Equal(t, viaRemove, viaZero)
	assert.Equal(t, selRemove, selZero)
	assert.Equal(t, []string{"2"}, selZero)
	gwZero.AssertNotCalled(t, "SetQuantity", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCartStore_RemoveLineUnknown(t *testing.T) {
	gw := new(mockCartGateway)
	s := loadedStore(t, gw, cartOf(line("1", 1, 1000, nil)))

	_, err := s.RemoveLine(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestCartStore_SelectionStaysSubsetAndTotalMatches(t *testing.T) {
	gw := new(mockCartGateway)
	s := loadedStore(t, gw, cartOf(line("1", 2, 100000, nil), line("2", 1, 50000, nil), line("3", 3, 1000, nil)))
	s.Selection().SelectAll()
	assert.Equal(t, int64(253000), s.TotalAmount())

	gw.On("RemoveLine", mock.Anything, "user-1", "2").Return(cartOf(line("1", 2, 100000, nil), line("3", 3, 1000, nil)), nil)
	_, err := s.RemoveLine(context.Background(), "2")
	require.NoError(t, err)

	assertSelectionSubset(t, s)
	assert.Equal(t, int64(203000), s.TotalAmount())

	_, err = s.Selection().Toggle("3")
	require.NoError(t, err)
	assert.Equal(t, int64(200000), s.TotalAmount())

	gw.On("AddLine", mock.Anything, "user-1", "var-4", 1).
		Return(cartOf(line("1", 2, 100000, nil), line("3", 3, 1000, nil), line("4", 1, 7000, nil)), nil)
	_, err = s.AddLine(context.Background(), AddLineInput{VariantID: "var-4", Quantity: 1})
	require.NoError(t, err)

	assertSelectionSubset(t, s)
	assert.Equal(t, []string{"1"}, s.Selection().Selected())
	assert.Equal(t, int64(200000), s.TotalAmount())

	gw.On("Clear", mock.Anything, "user-1").Return(cartOf(), nil)
	_, err = s.Clear(context.Background())
	require.NoError(t, err)
	assert.Empty(t, s.Selection().Selected())
	assert.Zero(t, s.TotalAmount())
}

func assertSelectionSubset(t *testing.T, s *CartStore) {
	t.Helper()
	ids := map[string]bool{}
	for _, id := range s.Snapshot().LineIDs() {
		ids[id] = true
	}
	var sum int64
	for _, l := range s.SelectedLines() {
		sum += l.LineTotal
	}
	for _, id := range s.Selection().Selected() {
		assert.True(t, ids[id], "selected id %s not in cart", id)
	}
	assert.Equal(t, sum, s.TotalAmount())
}

func TestCartStore_IsLoadingDuringGatewayCall(t *testing.T) {
	gw := new(mockCartGateway)
	s := newTestCartStore(gw)

	var loading bool
	var state domain.MutationState
	gw.On("Clear", mock.Anything, "user-1").Run(func(mock.Arguments) {
		loading = s.IsLoading()
		state = s.LastMutation().State
	}).Return(cartOf(), nil)

	_, err := s.Clear(context.Background())
	require.NoError(t, err)
	assert.True(t, loading)
	assert.Equal(t, domain.MutationPending, state)
	assert.False(t, s.IsLoading())
}

func TestCartStore_SnapshotIsACopy(t *testing.T) {
	gw := new(mockCartGateway)
	s := loadedStore(t, gw, cartOf(line("1", 1, 1000, intPtr(3))))

	snap := s.Snapshot()
	snap.Lines[0].Quantity = 99
	*snap.Lines[0].Stock = 0

	again := s.Snapshot()
	assert.Equal(t, 1, again.Lines[0].Quantity)
	assert.Equal(t, 3, *again.Lines[0].Stock)
}

func TestCartStore_Reset(t *testing.T) {
	gw := new(mockCartGateway)
	s := loadedStore(t, gw, cartOf(line("1", 1, 1000, nil)))
	s.Selection().SelectAll()

	s.Reset()

	assert.Empty(t, s.Snapshot().Lines)
	assert.Empty(t, s.Selection().Selected())
	assert.Nil(t, s.LastMutation())
}
