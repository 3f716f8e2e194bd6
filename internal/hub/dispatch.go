package hub

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"Kaupa/internal/errs"
	"Kaupa/internal/event"
	"Kaupa/internal/model"

	"go.uber.org/zap"
)

const routeTimeout = 5 * time.Second

// route handles one inbound socket event. Unknown event names and payloads
// that fail validation produce an error event back to the sender, never a
// dropped connection.
func (h *Hub) route(c *Client, ev event.WsEvent) {
	ctx, cancel := context.WithTimeout(h.ctx, routeTimeout)
	defer cancel()

	var err error

	switch ev.Event {
	case event.EventJoinUserRoom:
		err = h.handleJoinUserRoom(ctx, c, ev.Payload)
	case event.EventJoinAdminRoom:
		err = h.JoinRoom(ctx, c, AdminRoom)
	case event.EventJoinDeliveryRoom:
		err = h.handleJoinDeliveryRoom(ctx, c, ev.Payload)
	case event.EventJoinConversation:
		err = h.handleJoinConversation(ctx, c, ev.Payload)
	case event.EventLeaveConversation:
		err = h.handleLeaveConversation(c, ev.Payload)
	case event.EventTypingStart:
		err = h.handleTyping(c, ev.Payload, true)
	case event.EventTypingStop:
		err = h.handleTyping(c, ev.Payload, false)
	case event.EventLocationUpdate:
		err = h.handleLocationUpdate(c, ev.Payload)
	case event.EventOrderStatusUpdate:
		err = h.handleOrderStatusUpdate(c, ev.Payload)
	default:
		h.logger.Debug("unknown event",
			zap.String("event", ev.Event),
			zap.String("connection_id", c.ID),
		)
		err = errs.ErrValidation
	}

	if err != nil {
		h.sendError(c, err)
	}
}

func (h *Hub) handleJoinUserRoom(ctx context.Context, c *Client, raw json.RawMessage) error {
	var p event.JoinUserRoomPayload
	if err := h.decode(raw, &p); err != nil {
		return err
	}
	return h.JoinRoom(ctx, c, UserRoom(p.UserID))
}

func (h *Hub) handleJoinDeliveryRoom(ctx context.Context, c *Client, raw json.RawMessage) error {
	var p event.JoinDeliveryRoomPayload
	if err := h.decode(raw, &p); err != nil {
		return err
	}
	return h.JoinRoom(ctx, c, DeliveryRoom(p.DeliveryPersonID))
}

func (h *Hub) handleJoinConversation(ctx context.Context, c *Client, raw json.RawMessage) error {
	var p event.ConversationRoomPayload
	if err := h.decode(raw, &p); err != nil {
		return err
	}
	return h.JoinRoom(ctx, c, ConversationRoom(p.ConversationID))
}

func (h *Hub) handleLeaveConversation(c *Client, raw json.RawMessage) error {
	var p event.ConversationRoomPayload
	if err := h.decode(raw, &p); err != nil {
		return err
	}
	h.LeaveRoom(c, ConversationRoom(p.ConversationID))
	return nil
}

// handleTyping starts or stops a typing indicator. The typer is always the
// authenticated identity; a user_id in the payload is ignored so a client
// cannot impersonate another typer.
func (h *Hub) handleTyping(c *Client, raw json.RawMessage, isTyping bool) error {
	var p event.TypingPayload
	if err := h.decode(raw, &p); err != nil {
		return err
	}

	key := ConversationRoom(p.ConversationID)

	h.mu.RLock()
	_, joined := c.rooms[key]
	h.mu.RUnlock()
	if !joined {
		return errs.ErrForbidden
	}

	h.typing.SetTyping(key, c.identity.UserID, isTyping)
	return nil
}

// handleLocationUpdate relays a courier position to the courier's own room
// and to the admin room. Positions are ephemeral; nothing is persisted.
func (h *Hub) handleLocationUpdate(c *Client, raw json.RawMessage) error {
	if c.identity.Role != model.RoleDelivery {
		return errs.ErrForbidden
	}

	var p event.LocationUpdatePayload
	if err := h.decode(raw, &p); err != nil {
		return err
	}

	out, err := event.New(event.EventDeliveryLocationUpdate, event.DeliveryLocationUpdatePayload{
		DeliveryPersonID: c.identity.UserID,
		Latitude:         p.Latitude,
		Longitude:        p.Longitude,
		Timestamp:        time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	h.Publish(DeliveryRoom(c.identity.UserID), out)
	h.Publish(AdminRoom, out)
	return nil
}

// handleOrderStatusUpdate accepts a staff-originated status transition off
// the socket and hands it to the relay sink.
func (h *Hub) handleOrderStatusUpdate(c *Client, raw json.RawMessage) error {
	if !c.identity.IsStaff() {
		return errs.ErrForbidden
	}
	if h.orderSink == nil {
		return errs.ErrStoreUnavailable
	}

	var p event.OrderStatusChangePayload
	if err := h.decode(raw, &p); err != nil {
		return err
	}
	if !model.ValidOrderStatus(p.Status) {
		return errs.ErrValidation
	}

	h.orderSink.RelayOrderStatus(model.OrderStatusEvent{
		OrderID:          p.OrderID,
		CustomerID:       p.CustomerID,
		DeliveryPersonID: p.DeliveryPersonID,
		Status:           p.Status,
		OccurredAt:       time.Now().UTC(),
	})
	return nil
}

func (h *Hub) decode(raw json.RawMessage, out any) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return errs.ErrValidation
	}
	if err := h.validate.Struct(out); err != nil {
		return errs.ErrValidation
	}
	return nil
}

// sendError reports a failed operation back to the offending connection only.
func (h *Hub) sendError(c *Client, err error) {
	code := errs.Code(err)

	msg := "request failed"
	switch {
	case errors.Is(err, errs.ErrUnauthorizedRoomJoin):
		msg = "not authorized to join this room"
	case errors.Is(err, errs.ErrForbidden):
		msg = "operation not permitted"
	case errors.Is(err, errs.ErrValidation):
		msg = "invalid payload"
	case errors.Is(err, errs.ErrNotFound):
		msg = "resource not found"
	case errors.Is(err, errs.ErrStoreUnavailable):
		msg = "temporarily unavailable"
	}

	out, mErr := event.New(event.EventError, event.ErrorPayload{Code: code, Message: msg})
	if mErr != nil {
		return
	}

	if !c.SafeSend(out, sendTimeout) {
		h.logger.Debug("error event undeliverable", zapConnection(c)...)
	}
}
