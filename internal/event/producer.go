package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Noobiez16/SubliGraphic/internal/checkout"
	"github.com/Noobiez16/SubliGraphic/internal/domain"
	pkgkafka "github.com/Noobiez16/SubliGraphic/pkg/kafka"
	"github.com/Noobiez16/SubliGraphic/pkg/logger"
)

// Kafka topics for storefront events.
const (
	TopicCartUpdated       = "storefront.cart.updated"
	TopicCartCleared       = "storefront.cart.cleared"
	TopicCheckoutInitiated = "storefront.checkout.initiated"
	TopicCheckoutSucceeded = "storefront.checkout.succeeded"
	TopicCheckoutFailed    = "storefront.checkout.failed"
)

const (
	AggregateTypeCart     = "cart"
	AggregateTypeCheckout = "checkout"
	SourceStorefront      = "storefront-service"
)

// Reasons a cart was cleared.
const (
	ClearedByShopper  = "shopper"
	ClearedByCheckout = "checkout"
)

// ItemData is a cart line in event payloads. Inline design payloads are
// never published; Custom marks entries that carry one.
type ItemData struct {
	Identity  string `json:"identity"`
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
	Custom    bool   `json:"custom"`
}

// CartUpdatedData is the payload for a cart.updated event.
type CartUpdatedData struct {
	UserID      string     `json:"user_id"`
	Items       []ItemData `json:"items"`
	ItemCount   int        `json:"item_count"`
	TotalAmount int64      `json:"total_amount"`
	Currency    string     `json:"currency"`
}

// CartClearedData is the payload for a cart.cleared event.
type CartClearedData struct {
	UserID string `json:"user_id"`
	Reason string `json:"reason"`
}

// CheckoutInitiatedData is the payload for a checkout.initiated event.
type CheckoutInitiatedData struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Items       []ItemData `json:"items"`
	TotalAmount int64      `json:"total_amount"`
	Currency    string     `json:"currency"`
}

// CheckoutSucceededData is the payload for a checkout.succeeded event.
// Verified=false asks downstream reconciliation to confirm an offline payment.
type CheckoutSucceededData struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	Method          string     `json:"method"`
	TransactionID   string     `json:"transaction_id,omitempty"`
	ReferenceNumber string     `json:"reference_number,omitempty"`
	Verified        bool       `json:"verified"`
	Items           []ItemData `json:"items"`
	TotalAmount     int64      `json:"total_amount"`
	Currency        string     `json:"currency"`
}

// CheckoutFailedData is the payload for a checkout.failed event.
type CheckoutFailedData struct {
	ID            string `json:"id"`
	UserID        string `json:"user_id"`
	Method        string `json:"method"`
	Status        string `json:"status"`
	Attempts      int    `json:"attempts"`
	FailureReason string `json:"failure_reason"`
}

// EventPublisher is the part of the kafka producer used here.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes storefront domain events to Kafka.
type Producer struct {
	kafka  EventPublisher
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka EventPublisher, logger *slog.Logger) *Producer {
	return &Producer{kafka: kafka, logger: logger}
}

func items(entries []domain.CartEntry) []ItemData {
	out := make([]ItemData, len(entries))
	for i, e := range entries {
		out[i] = ItemData{
			Identity:  e.Identity,
			ProductID: e.ProductID,
			Name:      e.Name,
			Price:     e.Price,
			Quantity:  e.Quantity,
			Custom:    e.IsCustom(),
		}
	}
	return out
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	event, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, SourceStorefront, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}
	event.WithMetadata("checkout_id", logger.CheckoutIDFromContext(ctx))
	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}
	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
	)
	return nil
}

// PublishCartUpdated publishes a cart.updated event.
func (p *Producer) PublishCartUpdated(ctx context.Context, userID string, entries []domain.CartEntry, total int64, count int, currency string) error {
	return p.publish(ctx, TopicCartUpdated, userID, AggregateTypeCart, CartUpdatedData{
		UserID:      userID,
		Items:       items(entries),
		ItemCount:   count,
		TotalAmount: total,
		Currency:    currency,
	})
}

// PublishCartCleared publishes a cart.cleared event.
func (p *Producer) PublishCartCleared(ctx context.Context, userID, reason string) error {
	return p.publish(ctx, TopicCartCleared, userID, AggregateTypeCart, CartClearedData{
		UserID: userID,
		Reason: reason,
	})
}

// PublishCheckoutInitiated publishes a checkout.initiated event.
func (p *Producer) PublishCheckoutInitiated(ctx context.Context, userID string, s *checkout.Session) error {
	return p.publish(ctx, TopicCheckoutInitiated, s.ID, AggregateTypeCheckout, CheckoutInitiatedData{
		ID:          s.ID,
		UserID:      userID,
		Items:       items(s.Items),
		TotalAmount: s.Total,
		Currency:    s.Currency,
	})
}

// PublishCheckoutSucceeded publishes a checkout.succeeded event.
func (p *Producer) PublishCheckoutSucceeded(ctx context.Context, userID string, s *checkout.Session) error {
	return p.publish(ctx, TopicCheckoutSucceeded, s.ID, AggregateTypeCheckout, CheckoutSucceededData{
		ID:              s.ID,
		UserID:          userID,
		Method:          string(s.Method),
		TransactionID:   s.TransactionID,
		ReferenceNumber: s.ReferenceNumber,
		Verified:        s.Verified,
		Items:           items(s.Items),
		TotalAmount:     s.Total,
		Currency:        s.Currency,
	})
}

// PublishCheckoutFailed publishes a checkout.failed event.
func (p *Producer) PublishCheckoutFailed(ctx context.Context, userID string, s *checkout.Session) error {
	return p.publish(ctx, TopicCheckoutFailed, s.ID, AggregateTypeCheckout, CheckoutFailedData{
		ID:            s.ID,
		UserID:        userID,
		Method:        string(s.Method),
		Status:        string(s.Status),
		Attempts:      s.Attempts,
		FailureReason: s.FailureReason,
	})
}
