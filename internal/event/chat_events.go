package event

import (
	"time"

	"Kaupa/internal/model"
)

// Inbound payloads for room membership and typing events. Validation tags
// are enforced by the hub dispatcher before any state is touched.

type JoinUserRoomPayload struct {
	UserID string `json:"userId" validate:"required"`
}

type JoinDeliveryRoomPayload struct {
	DeliveryPersonID string `json:"deliveryPersonId" validate:"required"`
}

type ConversationRoomPayload struct {
	ConversationID string `json:"conversationId" validate:"required"`
}

type TypingPayload struct {
	ConversationID string `json:"conversationId" validate:"required"`
	UserID         string `json:"userId" validate:"required"`
}

// Outbound payloads.

// NewMessagePayload carries the canonical persisted message into
// conversation:{id}.
type NewMessagePayload struct {
	ConversationID string        `json:"conversationId"`
	Message        model.Message `json:"message"`
}

// ChatNotificationPayload is the lightweight copy sent to each participant's
// own room for badge updates when they are not subscribed to the
// conversation room.
type ChatNotificationPayload struct {
	ConversationID string        `json:"conversationId"`
	Message        model.Message `json:"message"`
	UnreadCount    int64         `json:"unreadCount"`
}

// MessagesReadPayload lets sender clients flip their delivery ticks.
type MessagesReadPayload struct {
	ConversationID string    `json:"conversationId"`
	MessageIDs     []string  `json:"messageIds"`
	ReaderID       string    `json:"readerId"`
	ReadAt         time.Time `json:"readAt"`
}

// ConversationUpdatedPayload carries the canonical conversation after a
// status or membership change.
type ConversationUpdatedPayload struct {
	Conversation model.Conversation `json:"conversation"`
}

// UserTypingPayload is the ephemeral presence broadcast.
type UserTypingPayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	IsTyping       bool   `json:"isTyping"`
}
