package service

import (
	"context"
	"time"

	"Kaupa/internal/event"
	"Kaupa/internal/hub"
	"Kaupa/internal/model"
	"Kaupa/internal/repo"

	"go.uber.org/zap"
)

// OrderRelay turns order lifecycle facts into room broadcasts. Events arrive
// either off the Redis ingress stream or from staff sockets via the hub; the
// relay itself is stateless and never persists anything about orders.
type OrderRelay struct {
	publisher RoomPublisher
	stream    *repo.OrderStream
	logger    *zap.Logger
}

func NewOrderRelay(publisher RoomPublisher, stream *repo.OrderStream, logger *zap.Logger) *OrderRelay {
	return &OrderRelay{
		publisher: publisher,
		stream:    stream,
		logger:    logger,
	}
}

// RunIngress starts consuming the order status channel until ctx is
// cancelled.
func (r *OrderRelay) RunIngress(ctx context.Context) {
	r.stream.Subscribe(ctx, r.RelayOrderStatus)
}

// RelayOrderStatus fans one status transition out to everyone with a stake
// in the order: the customer's room always, the assigned delivery person's
// room when one exists, and the back office always. An event with no one
// connected is dropped; order state lives with the order collaborator, not
// here.
func (r *OrderRelay) RelayOrderStatus(ev model.OrderStatusEvent) {
	if !model.ValidOrderStatus(ev.Status) {
		r.logger.Warn("dropping order event with unknown status",
			zap.String("order_id", ev.OrderID),
			zap.String("status", ev.Status),
		)
		return
	}
	if ev.CustomerID == "" {
		r.logger.Warn("dropping order event without customer",
			zap.String("order_id", ev.OrderID),
		)
		return
	}

	occurredAt := ev.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	out := event.MustNew(event.EventOrderStatusUpdate, event.OrderStatusUpdatePayload{
		OrderID:   ev.OrderID,
		Status:    ev.Status,
		Timestamp: occurredAt,
	})

	r.publisher.Publish(hub.UserRoom(ev.CustomerID), out)
	if ev.DeliveryPersonID != "" {
		r.publisher.Publish(hub.DeliveryRoom(ev.DeliveryPersonID), out)
	}
	r.publisher.Publish(hub.AdminRoom, out)

	r.logger.Debug("order status relayed",
		zap.String("order_id", ev.OrderID),
		zap.String("status", ev.Status),
		zap.String("customer_id", ev.CustomerID),
	)
}
