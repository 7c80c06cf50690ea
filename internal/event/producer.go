// Package event publishes storefront events to Kafka.
package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/logger"
)

// TopicRefreshRequested carries recommendation refresh requests.
var TopicRefreshRequested = pkgkafka.Topic("recommendation", "refresh_requested")

// Event type, aggregate and source identifiers.
const (
	EventTypeRefreshRequested = "recommendation.refresh_requested"
	AggregateTypeUser         = "user"
	SourceStorefront          = "storefront-bff"
)

// RefreshReasonWishlistAdded is the only reason the storefront asks for a refresh.
const RefreshReasonWishlistAdded = "wishlist_added"

// RefreshRequestedData is the payload for a recommendation.refresh_requested event.
type RefreshRequestedData struct {
	UserID      string    `json:"user_id"`
	Reason      string    `json:"reason"`
	RequestedAt time.Time `json:"requested_at"`
}

// Publisher is satisfied by *pkgkafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes storefront events.
type Producer struct {
	kafka  Publisher
	logger *slog.Logger
	now    func() time.Time
}

// NewProducer creates a new event producer for the storefront.
func NewProducer(kafka Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
		now:    time.Now,
	}
}

// RequestRefresh enqueues a recommendation refresh for userID. A broker acknowledgment
// counts as accepted. It satisfies gateway.RefreshRequester.
func (p *Producer) RequestRefresh(ctx context.Context, userID string) (bool, error) {
	now := p.now()
	data := RefreshRequestedData{
		UserID:      userID,
		Reason:      RefreshReasonWishlistAdded,
		RequestedAt: now.UTC(),
	}

	event, err := pkgkafka.NewEvent(EventTypeRefreshRequested, userID, AggregateTypeUser, SourceStorefront, now, data)
	if err != nil {
		return false, fmt.Errorf("create recommendation.refresh_requested event: %w", err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, TopicRefreshRequested, event); err != nil {
		return false, apperrors.Transient(fmt.Errorf("publish recommendation.refresh_requested event: %w", err))
	}

	p.logger.DebugContext(ctx, "published recommendation.refresh_requested event",
		slog.String("user_id", userID),
		slog.String("event_id", event.EventID),
	)
	return true, nil
}
