package domain

// ToggleResult is the wishlist service's acknowledgment of a toggle.
type ToggleResult struct {
	ProductID string `json:"product_id"`
	Added     bool   `json:"added"`
}

// RecommendationKind names a recommendation list, e.g. "for_you".
type RecommendationKind string

const (
	RecommendationForYou  RecommendationKind = "for_you"
	RecommendationSimilar RecommendationKind = "similar"
)

// Product is one entry of a recommendation list.
type Product struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	ImageURL string `json:"image_url,omitempty"`
}
