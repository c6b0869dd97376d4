// Package events publishes order lifecycle notifications to the message
// broker so downstream consumers (notifications, reporting) learn about
// automatically generated orders.
package events

import (
	"context"

	"github.com/compraflow/compraflow-backend/internal/replenish/service"
	"github.com/compraflow/compraflow-backend/pkg/logger"
	"github.com/compraflow/compraflow-backend/pkg/messaging"
)

// OrderEventPublisher publishes replenishment order events to the order
// events exchange. It implements service.OrderEvents.
type OrderEventPublisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewOrderEventPublisher creates a publisher bound to the order events
// exchange.
func NewOrderEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*OrderEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeOrderEvents, "replenish-worker", log)
	if err != nil {
		return nil, err
	}

	return &OrderEventPublisher{
		publisher: publisher,
		logger:    log,
	}, nil
}

// AutoOrderCreated publishes an order.auto_created event.
func (p *OrderEventPublisher) AutoOrderCreated(ctx context.Context, notice service.OrderCreatedNotice) error {
	return p.publisher.Publish(ctx, messaging.EventOrderAutoCreated, messaging.AutoOrderCreatedEvent{
		OrderID:        notice.OrderID,
		Code:           notice.Code,
		OrganizationID: notice.OrganizationID,
		SupplierID:     notice.SupplierID,
		SupplierName:   notice.SupplierName,
		ItemCount:      notice.ItemCount,
		TotalCents:     notice.TotalCents,
		NeedsQuote:     notice.NeedsQuote,
		DedupeKey:      notice.DedupeKey,
		JobID:          notice.JobID,
	})
}

// AutoOrderUpdated publishes an order.auto_updated event.
func (p *OrderEventPublisher) AutoOrderUpdated(ctx context.Context, notice service.OrderUpdatedNotice) error {
	return p.publisher.Publish(ctx, messaging.EventOrderAutoUpdated, messaging.AutoOrderUpdatedEvent{
		OrderID:        notice.OrderID,
		Code:           notice.Code,
		OrganizationID: notice.OrganizationID,
		SupplierID:     notice.SupplierID,
		ItemCount:      notice.ItemCount,
		TotalCents:     notice.TotalCents,
		NeedsQuote:     notice.NeedsQuote,
		AddedSKUs:      notice.AddedSKUs,
		RaisedSKUs:     notice.RaisedSKUs,
		JobID:          notice.JobID,
	})
}
