package domain

import "time"

// InvalidationKind says what changed a user's recommendation inputs.
type InvalidationKind string

// InvalidationWishlistAdded is published after a product is added to the wishlist.
const InvalidationWishlistAdded InvalidationKind = "wishlist_added"

// InvalidationEvent signals that a user's recommendations may be stale. Only the most
// recent one per user is kept, in memory.
type InvalidationEvent struct {
	UserID    string           `json:"user_id"`
	Timestamp time.Time        `json:"timestamp"`
	Kind      InvalidationKind `json:"kind"`
}

// Age is how old e is at now.
func (e InvalidationEvent) Age(now time.Time) time.Duration {
	return now.Sub(e.Timestamp)
}
