package event

import "encoding/json"

// Inbound events (client -> server)
const (
	EventJoinUserRoom      = "join-user-room"
	EventJoinAdminRoom     = "join-admin-room"
	EventJoinDeliveryRoom  = "join-delivery-room"
	EventJoinConversation  = "join-conversation"
	EventLeaveConversation = "leave-conversation"
	EventTypingStart       = "typing-start"
	EventTypingStop        = "typing-stop"
	EventLocationUpdate    = "location-update"
)

// EventOrderStatusUpdate is both an inbound event (staff pushing a status
// change over the socket) and the outbound broadcast name.
const EventOrderStatusUpdate = "order-status-update"

// Outbound events (server -> client)
const (
	EventNewMessage             = "new-message"
	EventMessageRead            = "message-read"
	EventConversationUpdated    = "conversation-updated"
	EventUserTyping             = "user-typing"
	EventDeliveryLocationUpdate = "delivery-location-update"
	EventChatNotification       = "chat-notification"
	EventNewCustomerMessage     = "new-customer-message"
	EventError                  = "error"
)

// WsEvent is the wire envelope for every WebSocket frame in both directions.
type WsEvent struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// New builds a WsEvent by marshalling payload into the envelope.
func New(name string, payload any) (WsEvent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return WsEvent{}, err
	}
	return WsEvent{Event: name, Payload: raw}, nil
}

// MustNew is New for payloads that cannot fail to marshal (our own structs).
func MustNew(name string, payload any) WsEvent {
	ev, err := New(name, payload)
	if err != nil {
		panic(err)
	}
	return ev
}

// ErrorPayload is the error ack sent back to the originating connection. It
// is never broadcast to other room members.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
