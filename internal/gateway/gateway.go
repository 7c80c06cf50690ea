// Package gateway declares the downstream services the storefront state layer talks to.
package gateway

import (
	"context"

	"github.com/utafrali/storefront/internal/domain"
)

// CartGateway is the authoritative cart service. Every successful call returns the
// complete cart the service now holds.
type CartGateway interface {
	Fetch(ctx context.Context, userID string) (*domain.CartSession, error)
	AddLine(ctx context.Context, userID, variantID string, qty int) (*domain.CartSession, error)
	SetQuantity(ctx context.Context, userID, lineID string, qty int) (*domain.CartSession, error)
	RemoveLine(ctx context.Context, userID, lineID string) (*domain.CartSession, error)
	Clear(ctx context.Context, userID string) (*domain.CartSession, error)
}

// WishlistGateway stores wishlist membership.
type WishlistGateway interface {
	Fetch(ctx context.Context, userID string) ([]string, error)
	Toggle(ctx context.Context, userID, productID string) (domain.ToggleResult, error)
}

// RefreshRequester asks the recommendation service to recompute a user's lists.
// accepted means the request was enqueued, not that recomputation finished.
type RefreshRequester interface {
	RequestRefresh(ctx context.Context, userID string) (accepted bool, err error)
}

// RecommendationFetcher reads a computed recommendation list.
type RecommendationFetcher interface {
	Fetch(ctx context.Context, userID string, kind domain.RecommendationKind, limit int) ([]domain.Product, error)
}

// RecommendationGateway is the full recommendation service contract.
type RecommendationGateway interface {
	RefreshRequester
	RecommendationFetcher
}

type recommendations struct {
	RefreshRequester
	RecommendationFetcher
}

// CombineRecommendations pairs a refresh transport with a list reader, e.g. a Kafka
// refresh publisher with the HTTP list endpoint.
func CombineRecommendations(r RefreshRequester, f RecommendationFetcher) RecommendationGateway {
	return recommendations{RefreshRequester: r, RecommendationFetcher: f}
}
