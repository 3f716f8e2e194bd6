package event

import "time"

// OrderStatusChangePayload is the inbound form of a status change pushed by
// a staff client over the socket. The Redis ingress delivers the same fact
// as model.OrderStatusEvent.
type OrderStatusChangePayload struct {
	OrderID          string `json:"orderId" validate:"required"`
	CustomerID       string `json:"customerId" validate:"required"`
	DeliveryPersonID string `json:"deliveryPersonId"`
	Status           string `json:"status" validate:"required"`
}

// OrderStatusUpdatePayload is the outbound broadcast. Every audience room
// receives the same payload; presentation differences are a client concern.
type OrderStatusUpdatePayload struct {
	OrderID   string    `json:"orderId"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// LocationUpdatePayload is the inbound position report from a delivery
// person. Never written to the durable store by this core.
type LocationUpdatePayload struct {
	Latitude  float64 `json:"lat" validate:"required"`
	Longitude float64 `json:"lng" validate:"required"`
}

// DeliveryLocationUpdatePayload is the outbound broadcast of a position
// report.
type DeliveryLocationUpdatePayload struct {
	DeliveryPersonID string    `json:"deliveryPersonId"`
	Latitude         float64   `json:"lat"`
	Longitude        float64   `json:"lng"`
	Timestamp        time.Time `json:"timestamp"`
}
