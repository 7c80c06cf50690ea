package http

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/httpclient"
)

// RecommendationClient talks to the recommendation service.
type RecommendationClient struct {
	client
}

// NewRecommendationClient creates a recommendation gateway rooted at baseURL.
func NewRecommendationClient(doer httpclient.Doer, baseURL string) *RecommendationClient {
	return &RecommendationClient{client: newClient(doer, baseURL, "recommendation")}
}

type refreshResponse struct {
	Accepted bool `json:"accepted"`
}

// RequestRefresh asks the service to recompute userID's lists.
func (c *RecommendationClient) RequestRefresh(ctx context.Context, userID string) (bool, error) {
	var out refreshResponse
	path := "/api/v1/recommendations/" + url.PathEscape(userID) + "/refresh"
	if err := c.call(ctx, http.MethodPost, path, userID, nil, &out); err != nil {
		return false, err
	}
	return out.Accepted, nil
}

// Fetch returns up to limit products of the given list, in ranking order.
func (c *RecommendationClient) Fetch(ctx context.Context, userID string, kind domain.RecommendationKind, limit int) ([]domain.Product, error) {
	q := url.Values{}
	q.Set("type", string(kind))
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/v1/recommendations/" + url.PathEscape(userID) + "?" + q.Encode()

	var products []domain.Product
	if err := c.call(ctx, http.MethodGet, path, userID, nil, &products); err != nil {
		return nil, err
	}
	if products == nil {
		products = []domain.Product{}
	}
	return products, nil
}
