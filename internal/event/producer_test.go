package event

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/logger"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, topic string, event *pkgkafka.Event) error {
	args := m.Called(ctx, topic, event)
	return args.Error(0)
}

func TestTopicRefreshRequested(t *testing.T) {
	assert.Equal(t, "ecommerce.recommendation.refresh_requested", TopicRefreshRequested)
}

func TestRequestRefresh_Accepted(t *testing.T) {
	pub := new(mockPublisher)
	p := NewProducer(pub, logger.Discard())
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return at }

	var published *pkgkafka.Event
	pub.On("Publish", mock.Anything, TopicRefreshRequested, mock.AnythingOfType("*kafka.Event")).
		Run(func(args mock.Arguments) { published = args.Get(2).(*pkgkafka.Event) }).
		Return(nil)

	ctx := logger.WithCorrelationID(context.Background(), "corr-1")
	accepted, err := p.RequestRefresh(ctx, "user-42")
	require.NoError(t, err)
	assert.True(t, accepted)

	require.NotNil(t, published)
	assert.Equal(t, EventTypeRefreshRequested, published.EventType)
	assert.Equal(t, "user-42", published.AggregateID)
	assert.Equal(t, "corr-1", published.CorrelationID)
	assert.Equal(t, at, published.Timestamp)

	var data RefreshRequestedData
	require.NoError(t, json.Unmarshal(published.Data, &data))
	assert.Equal(t, "user-42", data.UserID)
	assert.Equal(t, RefreshReasonWishlistAdded, data.Reason)
}

func TestRequestRefresh_BrokerErrorIsTransient(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, TopicRefreshRequested, mock.Anything).Return(errors.New("leader not available"))
	p := NewProducer(pub, logger.Discard())

	accepted, err := p.RequestRefresh(context.Background(), "user-42")
	require.Error(t, err)
	assert.False(t, accepted)
	assert.Equal(t, apperrors.KindTransient, apperrors.Kind(err))
}
