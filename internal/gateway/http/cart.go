package http

import (
	"context"
	"net/http"
	"net/url"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/httpclient"
)

// CartClient talks to the cart service.
type CartClient struct {
	client
}

// NewCartClient creates a cart gateway rooted at baseURL.
func NewCartClient(doer httpclient.Doer, baseURL string) *CartClient {
	return &CartClient{client: newClient(doer, baseURL, "cart")}
}

type addLineRequest struct {
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

type setQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// Fetch returns the user's cart.
func (c *CartClient) Fetch(ctx context.Context, userID string) (*domain.CartSession, error) {
	return c.cart(ctx, http.MethodGet, "/api/v1/cart", userID, nil)
}

// AddLine adds qty units of variantID.
func (c *CartClient) AddLine(ctx context.Context, userID, variantID string, qty int) (*domain.CartSession, error) {
	return c.cart(ctx, http.MethodPost, "/api/v1/cart/lines", userID, addLineRequest{VariantID: variantID, Quantity: qty})
}

// SetQuantity sets a line's quantity.
func (c *CartClient) SetQuantity(ctx context.Context, userID, lineID string, qty int) (*domain.CartSession, error) {
	return c.cart(ctx, http.MethodPut, "/api/v1/cart/lines/"+url.PathEscape(lineID), userID, setQuantityRequest{Quantity: qty})
}

// RemoveLine deletes a line.
func (c *CartClient) RemoveLine(ctx context.Context, userID, lineID string) (*domain.CartSession, error) {
	return c.cart(ctx, http.MethodDelete, "/api/v1/cart/lines/"+url.PathEscape(lineID), userID, nil)
}

// Clear empties the cart.
func (c *CartClient) Clear(ctx context.Context, userID string) (*domain.CartSession, error) {
	return c.cart(ctx, http.MethodDelete, "/api/v1/cart", userID, nil)
}

func (c *CartClient) cart(ctx context.Context, method, path, userID string, body any) (*domain.CartSession, error) {
	var cart domain.CartSession
	if err := c.call(ctx, method, path, userID, body, &cart); err != nil {
		return nil, err
	}
	if cart.Currency == "" {
		cart.Currency = domain.DefaultCurrency
	}
	return &cart, nil
}
