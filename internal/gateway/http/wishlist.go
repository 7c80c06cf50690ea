package http

import (
	"context"
	"net/http"
	"net/url"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/httpclient"
)

// WishlistClient talks to the user service's wishlist endpoints.
type WishlistClient struct {
	client
}

// NewWishlistClient creates a wishlist gateway rooted at baseURL.
func NewWishlistClient(doer httpclient.Doer, baseURL string) *WishlistClient {
	return &WishlistClient{client: newClient(doer, baseURL, "user")}
}

type wishlistResponse struct {
	ProductIDs []string `json:"product_ids"`
}

// Fetch returns the wishlisted product ids.
func (c *WishlistClient) Fetch(ctx context.Context, userID string) ([]string, error) {
	var out wishlistResponse
	if err := c.call(ctx, http.MethodGet, "/api/v1/users/wishlist", userID, nil, &out); err != nil {
		return nil, err
	}
	if out.ProductIDs == nil {
		out.ProductIDs = []string{}
	}
	return out.ProductIDs, nil
}

// Toggle flips productID's membership and reports the resulting state.
func (c *WishlistClient) Toggle(ctx context.Context, userID, productID string) (domain.ToggleResult, error) {
	var out domain.ToggleResult
	path := "/api/v1/users/wishlist/" + url.PathEscape(productID) + "/toggle"
	if err := c.call(ctx, http.MethodPost, path, userID, nil, &out); err != nil {
		return domain.ToggleResult{}, err
	}
	if out.ProductID == "" {
		out.ProductID = productID
	}
	return out, nil
}
