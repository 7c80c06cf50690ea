package http

import (
	"net/http"

	"github.com/utafrali/storefront/pkg/httputil"
)

// GetQuote handles GET /api/v1/storefront/checkout/quote
func (h *StorefrontHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	httputil.WriteData(w, http.StatusOK, s.Vouchers.Quote())
}

// ApplyVoucher handles POST /api/v1/storefront/checkout/voucher
func (h *StorefrontHandler) ApplyVoucher(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req ApplyVoucherRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	quote, err := s.Vouchers.ApplyVoucher(r.Context(), req.Code)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	httputil.WriteData(w, http.StatusOK, quote)
}

// RemoveVoucher handles DELETE /api/v1/storefront/checkout/voucher
func (h *StorefrontHandler) RemoveVoucher(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	httputil.WriteData(w, http.StatusOK, s.Vouchers.RemoveVoucher(r.Context()))
}
