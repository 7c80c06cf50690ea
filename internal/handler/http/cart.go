package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/httputil"
)

// GetCart handles GET /api/v1/storefront/cart
func (h *StorefrontHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	cart, err := s.Cart.Fetch(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	httputil.WriteData(w, http.StatusOK, cartResponse(s, cart))
}

// ClearCart handles DELETE /api/v1/storefront/cart
func (h *StorefrontHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	cart, err := s.Cart.Clear(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	httputil.WriteData(w, http.StatusOK, cartResponse(s, cart))
}

// AddLine handles POST /api/v1/storefront/cart/lines
func (h *StorefrontHandler) AddLine(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req AddLineRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	cart, err := s.Cart.AddLine(r.Context(), service.AddLineInput{
		VariantID: req.VariantID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	httputil.WriteData(w, http.StatusOK, cartResponse(s, cart))
}

// SetQuantity handles PUT /api/v1/storefront/cart/lines/{lineId}
func (h *StorefrontHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req SetQuantityRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	cart, err := s.Cart.SetQuantity(r.Context(), chi.URLParam(r, "lineId"), *req.Quantity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	httputil.WriteData(w, http.StatusOK, cartResponse(s, cart))
}

// RemoveLine handles DELETE /api/v1/storefront/cart/lines/{lineId}
func (h *StorefrontHandler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	cart, err := s.Cart.RemoveLine(r.Context(), chi.URLParam(r, "lineId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	httputil.WriteData(w, http.StatusOK, cartResponse(s, cart))
}

// ToggleSelection handles POST /api/v1/storefront/cart/selection/{lineId}/toggle
func (h *StorefrontHandler) ToggleSelection(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	if _, err := s.Selection.Toggle(chi.URLParam(r, "lineId")); err != nil {
		h.writeError(w, r, err)
		return
	}

	httputil.WriteData(w, http.StatusOK, selectionResponse(s))
}

// SelectAll handles POST /api/v1/storefront/cart/selection/all
func (h *StorefrontHandler) SelectAll(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	s.Selection.SelectAll()
	httputil.WriteData(w, http.StatusOK, selectionResponse(s))
}

// DeselectAll handles DELETE /api/v1/storefront/cart/selection
func (h *StorefrontHandler) DeselectAll(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	s.Selection.DeselectAll()
	httputil.WriteData(w, http.StatusOK, selectionResponse(s))
}
