package domain

import "time"

// DefaultCurrency is the currency the cart service prices in. Amounts are minor units.
const DefaultCurrency = "VND"

// CartSession is the server-confirmed snapshot of a user's basket. It is only ever
// replaced wholesale by a gateway response, never patched locally.
type CartSession struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Lines       []CartLine `json:"lines"`
	TotalAmount int64      `json:"total_amount"`
	Currency    string     `json:"currency"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// CartLine is one variant and quantity inside a CartSession.
type CartLine struct {
	ID                  string `json:"id"`
	VariantID           string `json:"variant_id"`
	ProductID           string `json:"product_id"`
	Name                string `json:"name,omitempty"`
	ImageURL            string `json:"image_url,omitempty"`
	Quantity            int    `json:"quantity"`
	UnitPrice           int64  `json:"unit_price"`
	DiscountedUnitPrice int64  `json:"discounted_unit_price"`
	LineTotal           int64  `json:"line_total"`
	// Stock is the variant stock reported by the cart service; nil when unknown.
	Stock *int `json:"stock,omitempty"`
}

// EmptyCart returns the snapshot used before the first fetch and after logout.
func EmptyCart(userID string) *CartSession {
	return &CartSession{
		UserID:   userID,
		Lines:    []CartLine{},
		Currency: DefaultCurrency,
	}
}

// FindLine returns the line with the given id.
func (c *CartSession) FindLine(lineID string) (CartLine, bool) {
	for _, l := range c.Lines {
		if l.ID == lineID {
			return l, true
		}
	}
	return CartLine{}, false
}

// LineIDs returns line ids in display order.
func (c *CartSession) LineIDs() []string {
	ids := make([]string, len(c.Lines))
	for i, l := range c.Lines {
		ids[i] = l.ID
	}
	return ids
}

// ItemCount returns the total quantity across lines.
func (c *CartSession) ItemCount() int {
	var n int
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

// Clone returns a deep copy so callers can't alias store state.
func (c *CartSession) Clone() *CartSession {
	out := *c
	out.Lines = make([]CartLine, len(c.Lines))
	for i, l := range c.Lines {
		if l.Stock != nil {
			s := *l.Stock
			l.Stock = &s
		}
		out.Lines[i] = l
	}
	return &out
}

// RemainingStock is how many more units of this line's variant may be added, judged by
// this line alone. ok is false when stock is unknown.
func (l CartLine) RemainingStock() (remaining int, ok bool) {
	if l.Stock == nil {
		return 0, false
	}
	remaining = *l.Stock - l.Quantity
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}
