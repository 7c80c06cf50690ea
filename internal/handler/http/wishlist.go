package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/middleware"
)

// GetWishlist handles GET /api/v1/storefront/wishlist
func (h *StorefrontHandler) GetWishlist(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	ids, err := s.Wishlist.Fetch(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	httputil.WriteData(w, http.StatusOK, WishlistResponse{ProductIDs: ids})
}

// ToggleWishlist handles POST /api/v1/storefront/wishlist/{productId}/toggle
func (h *StorefrontHandler) ToggleWishlist(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	res, err := s.Wishlist.Toggle(r.Context(), chi.URLParam(r, "productId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	httputil.WriteData(w, http.StatusOK, res)
}

// GetRecommendations handles GET /api/v1/storefront/recommendations/{type}
func (h *StorefrontHandler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	feed, err := s.Feed(domain.RecommendationKind(chi.URLParam(r, "type")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	products, err := feed.Items(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	httputil.WriteData(w, http.StatusOK, RecommendationsResponse{
		Type:      feed.Kind(),
		Products:  products,
		FetchedAt: feed.FetchedAt(),
	})
}

// Logout handles POST /api/v1/storefront/session/logout
func (h *StorefrontHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout(middleware.UserIDFromContext(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}
