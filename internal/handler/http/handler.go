package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/session"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/middleware"
)

// StorefrontHandler forwards UI commands to the caller's session.
type StorefrontHandler struct {
	sessions *session.Manager
	logger   *slog.Logger
}

// NewStorefrontHandler creates a new storefront HTTP handler.
func NewStorefrontHandler(sessions *session.Manager, logger *slog.Logger) *StorefrontHandler {
	return &StorefrontHandler{
		sessions: sessions,
		logger:   logger,
	}
}

// --- Request DTOs ---

// AddLineRequest is the JSON request body for adding a variant to the cart.
type AddLineRequest struct {
	VariantID string `json:"variant_id" validate:"required,max=128"`
	Quantity  int    `json:"quantity" validate:"gte=1,lte=999"`
}

// SetQuantityRequest is the JSON request body for changing a line's quantity. Zero
// removes the line.
type SetQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required,gte=0,lte=999"`
}

// ApplyVoucherRequest is the JSON request body for applying a voucher code.
type ApplyVoucherRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

// --- Response DTOs ---

// CartResponse is the cart together with the checkout selection.
type CartResponse struct {
	Cart            *domain.CartSession `json:"cart"`
	ItemCount       int                 `json:"item_count"`
	SelectedLineIDs []string            `json:"selected_line_ids"`
	SelectedTotal   int64               `json:"selected_total"`
	LastMutation    *domain.Mutation    `json:"last_mutation,omitempty"`
}

// SelectionResponse is the checkout selection.
type SelectionResponse struct {
	SelectedLineIDs []string `json:"selected_line_ids"`
	SelectedTotal   int64    `json:"selected_total"`
}

// WishlistResponse lists wishlisted product ids.
type WishlistResponse struct {
	ProductIDs []string `json:"product_ids"`
}

// RecommendationsResponse is one recommendation list.
type RecommendationsResponse struct {
	Type      domain.RecommendationKind `json:"type"`
	Products  []domain.Product          `json:"products"`
	FetchedAt time.Time                 `json:"fetched_at"`
}

// session resolves the caller's session, writing the error response on failure.
func (h *StorefrontHandler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := h.sessions.Get(middleware.UserIDFromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return nil, false
	}
	return s, true
}

func (h *StorefrontHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	httputil.WriteError(w, r, err, h.logger)
}

func cartResponse(s *session.Session, cart *domain.CartSession) CartResponse {
	return CartResponse{
		Cart:            cart,
		ItemCount:       cart.ItemCount(),
		SelectedLineIDs: s.Selection.Selected(),
		SelectedTotal:   s.Cart.TotalAmount(),
		LastMutation:    s.Cart.LastMutation(),
	}
}

func selectionResponse(s *session.Session) SelectionResponse {
	return SelectionResponse{
		SelectedLineIDs: s.Selection.Selected(),
		SelectedTotal:   s.Cart.TotalAmount(),
	}
}
