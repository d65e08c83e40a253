package event

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Noobiez16/SubliGraphic/internal/checkout"
	"github.com/Noobiez16/SubliGraphic/internal/domain"
	"github.com/Noobiez16/SubliGraphic/internal/payment"
	pkgkafka "github.com/Noobiez16/SubliGraphic/pkg/kafka"
	"github.com/Noobiez16/SubliGraphic/pkg/logger"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, topic string, event *pkgkafka.Event) error {
	return m.Called(ctx, topic, event).Error(0)
}

func newTestProducer(pub EventPublisher) *Producer {
	return NewProducer(pub, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func entries() []domain.CartEntry {
	return []domain.CartEntry{
		{Identity: "1", ProductID: 1, Name: "Classic Ceramic Mug", Price: 1499, Quantity: 2},
		{
			Identity: "0190c1d2-0000-7000-8000-000000000001", ProductID: 2,
			Name: "Stainless Steel Tumbler (Custom Design)", Price: 2499, Quantity: 1,
			CustomDesignRef: "data:image/png;base64,AAAA", ImageURL: "data:image/png;base64,AAAA",
		},
	}
}

func TestPublishCartUpdated(t *testing.T) {
	pub := new(mockPublisher)
	var got *pkgkafka.Event
	pub.On("Publish", mock.Anything, TopicCartUpdated, mock.AnythingOfType("*kafka.Event")).
		Run(func(args mock.Arguments) { got = args.Get(2).(*pkgkafka.Event) }).
		Return(nil)

	ctx := logger.WithCorrelationID(context.Background(), "corr-1")
	err := newTestProducer(pub).PublishCartUpdated(ctx, "shopper-1", entries(), 5497, 3, "USD")
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, "shopper-1", got.AggregateID)
	assert.Equal(t, AggregateTypeCart, got.AggregateType)
	assert.Equal(t, "corr-1", got.CorrelationID)
	assert.Empty(t, got.Metadata, "no checkout in context")

	var data CartUpdatedData
	require.NoError(t, json.Unmarshal(got.Data, &data))
	assert.Equal(t, 3, data.ItemCount)
	assert.Equal(t, int64(5497), data.TotalAmount)
	require.Len(t, data.Items, 2)
	assert.False(t, data.Items[0].Custom)
	assert.True(t, data.Items[1].Custom)
	assert.NotContains(t, string(got.Data), "base64", "inline payloads stay out of events")
}

func TestPublishCheckoutSucceeded_CarriesVerification(t *testing.T) {
	pub := new(mockPublisher)
	var got *pkgkafka.Event
	pub.On("Publish", mock.Anything, TopicCheckoutSucceeded, mock.Anything).
		Run(func(args mock.Arguments) { got = args.Get(2).(*pkgkafka.Event) }).
		Return(nil)

	s := &checkout.Session{
		ID: "sess-1", Status: checkout.StatusSucceeded, Items: entries(),
		Total: 5497, Currency: "USD", Method: payment.MethodBankReference,
		ReferenceNumber: "SG-0000000001", Verified: false,
	}
	ctx := logger.WithCheckoutID(context.Background(), "sess-1")
	require.NoError(t, newTestProducer(pub).PublishCheckoutSucceeded(ctx, "shopper-1", s))

	var data CheckoutSucceededData
	require.NoError(t, json.Unmarshal(got.Data, &data))
	assert.Equal(t, "bank_reference", data.Method)
	assert.Equal(t, "SG-0000000001", data.ReferenceNumber)
	assert.False(t, data.Verified)
	assert.Contains(t, string(got.Data), `"verified":false`)
	assert.Equal(t, "sess-1", got.AggregateID)
	assert.Equal(t, "sess-1", got.Metadata["checkout_id"])
}

func TestPublishCheckoutFailed(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, TopicCheckoutFailed, mock.Anything).Return(nil)

	s := &checkout.Session{ID: "sess-1", Status: checkout.StatusFailed, Method: payment.MethodPayPal, Attempts: 2, FailureReason: "capture declined"}
	require.NoError(t, newTestProducer(pub).PublishCheckoutFailed(context.Background(), "shopper-1", s))
	pub.AssertNumberOfCalls(t, "Publish", 1)
}

func TestPublish_WrapsError(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, TopicCartCleared, mock.Anything).Return(errors.New("broker down"))

	err := newTestProducer(pub).PublishCartCleared(context.Background(), "shopper-1", ClearedByShopper)
	assert.ErrorContains(t, err, "publish storefront.cart.cleared event")
	assert.ErrorContains(t, err, "broker down")
}

func TestDiscard(t *testing.T) {
	p := newTestProducer(Discard{})
	assert.NoError(t, p.PublishCartCleared(context.Background(), "shopper-1", ClearedByCheckout))
}
