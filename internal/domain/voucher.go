package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// VoucherKind selects how a voucher discounts an order.
type VoucherKind string

const (
	VoucherKindFixed    VoucherKind = "FIXED"
	VoucherKindPercent  VoucherKind = "PERCENT"
	VoucherKindFreeShip VoucherKind = "FREESHIP"
)

// IsValid reports whether k is a known kind.
func (k VoucherKind) IsValid() bool {
	switch k {
	case VoucherKindFixed, VoucherKindPercent, VoucherKindFreeShip:
		return true
	}
	return false
}

// Voucher is a discount code definition. For PERCENT vouchers Amount is a whole
// percentage; for FIXED it is minor units.
type Voucher struct {
	Code        string      `json:"code"`
	Kind        VoucherKind `json:"kind"`
	MinOrder    int64       `json:"min_order"`
	MaxDiscount *int64      `json:"max_discount,omitempty"`
	Amount      int64       `json:"amount"`
}

// NormalizeCode trims and upper-cases a code typed by a shopper.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Shortfall is how much more subtotal is needed to use v; 0 when eligible.
func (v *Voucher) Shortfall(subtotal int64) int64 {
	if subtotal >= v.MinOrder {
		return 0
	}
	return v.MinOrder - subtotal
}

// Discount returns the line discount v grants on subtotal. It never exceeds subtotal.
func (v *Voucher) Discount(subtotal int64) int64 {
	if subtotal <= 0 {
		return 0
	}

	var d int64
	switch v.Kind {
	case VoucherKindFixed:
		d = v.Amount
	case VoucherKindPercent:
		d = decimal.NewFromInt(subtotal).
			Mul(decimal.NewFromInt(v.Amount)).
			Div(decimal.NewFromInt(100)).
			Floor().
			IntPart()
		if v.MaxDiscount != nil && d > *v.MaxDiscount {
			d = *v.MaxDiscount
		}
	default:
		return 0
	}

	if d < 0 {
		return 0
	}
	if d > subtotal {
		return subtotal
	}
	return d
}

// FreeShipping reports whether v waives the shipping fee.
func (v *Voucher) FreeShipping() bool {
	return v.Kind == VoucherKindFreeShip
}

// ShippingPolicy prices delivery for a subtotal.
type ShippingPolicy struct {
	FlatFee       int64
	FreeThreshold int64
}

// Fee returns the flat fee, or 0 once subtotal reaches the free threshold.
func (p ShippingPolicy) Fee(subtotal int64) int64 {
	if subtotal >= p.FreeThreshold {
		return 0
	}
	return p.FlatFee
}

// Quote is the derived checkout total for the selected lines.
type Quote struct {
	Subtotal    int64    `json:"subtotal"`
	Discount    int64    `json:"discount"`
	ShippingFee int64    `json:"shipping_fee"`
	Total       int64    `json:"total"`
	Voucher     *Voucher `json:"voucher,omitempty"`
	// Eligible is false when the active voucher's minimum order is no longer met.
	Eligible  bool  `json:"eligible"`
	Shortfall int64 `json:"shortfall,omitempty"`
}

// ComputeQuote derives totals for subtotal under an optional active voucher. An active
// voucher whose minimum order is not met contributes neither discount nor free shipping.
func ComputeQuote(subtotal int64, active *Voucher, shipping ShippingPolicy) Quote {
	q := Quote{
		Subtotal:    subtotal,
		ShippingFee: shipping.Fee(subtotal),
		Eligible:    true,
	}

	if active != nil {
		v := *active
		q.Voucher = &v
		if short := v.Shortfall(subtotal); short > 0 {
			q.Eligible = false
			q.Shortfall = short
		} else {
			q.Discount = v.Discount(subtotal)
			if v.FreeShipping() {
				q.ShippingFee = 0
			}
		}
	}

	q.Total = q.Subtotal - q.Discount + q.ShippingFee
	return q
}
