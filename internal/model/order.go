package model

import "time"

// Order lifecycle statuses owned by the order collaborator. This core only
// relays them.
const (
	OrderPending        = "PENDING"
	OrderConfirmed      = "CONFIRMED"
	OrderPreparing      = "PREPARING"
	OrderOutForDelivery = "OUT_FOR_DELIVERY"
	OrderPickedUp       = "PICKED_UP"
	OrderDelivered      = "DELIVERED"
	OrderCancelled      = "CANCELLED"
)

// OrderStatusEvent is a read-only fact emitted by the order collaborator on
// every status transition. DeliveryPersonID is empty until a delivery person
// is assigned.
type OrderStatusEvent struct {
	OrderID          string    `json:"orderId"`
	CustomerID       string    `json:"customerId"`
	DeliveryPersonID string    `json:"deliveryPersonId,omitempty"`
	Status           string    `json:"status"`
	OccurredAt       time.Time `json:"occurredAt"`
}

// ValidOrderStatus reports whether s is a known order status.
func ValidOrderStatus(s string) bool {
	switch s {
	case OrderPending, OrderConfirmed, OrderPreparing, OrderOutForDelivery,
		OrderPickedUp, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}
