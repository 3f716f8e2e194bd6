package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message types
const (
	MessageTypeText   = "TEXT"
	MessageTypeSystem = "SYSTEM"
)

// Message represents a chat message in MongoDB. Immutable once created
// except for the read flags. Seq is assigned by the store per conversation
// and defines the canonical transcript order; CreatedAt alone cannot break
// ties between concurrent appends.
type Message struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	MessageID      string             `json:"messageId" bson:"message_id"`
	ConversationID primitive.ObjectID `json:"conversationId" bson:"conversation_id"`
	Seq            int64              `json:"seq" bson:"seq"`
	SenderID       string             `json:"senderId" bson:"sender_id"`
	SenderRole     Role               `json:"senderRole" bson:"sender_role"`
	Content        string             `json:"content" bson:"content"`
	MessageType    string             `json:"messageType" bson:"message_type"`
	CreatedAt      time.Time          `json:"createdAt" bson:"created_at"`
	IsRead         bool               `json:"isRead" bson:"is_read"`
	ReadAt         *time.Time         `json:"readAt" bson:"read_at,omitempty"`
}
