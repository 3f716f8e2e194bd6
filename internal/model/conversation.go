package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Conversation lifecycle statuses. RESOLVED and ARCHIVED are not terminal;
// staff can reopen by transitioning back to ACTIVE. Conversations are never
// hard-deleted.
const (
	ConversationActive   = "ACTIVE"
	ConversationResolved = "RESOLVED"
	ConversationArchived = "ARCHIVED"
)

// Conversation represents a durable support thread in MongoDB
type Conversation struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Title          string             `json:"title" bson:"title,omitempty"`
	Status         string             `json:"status" bson:"status"`
	Participants   []Participant      `json:"participants" bson:"participants"`
	ParticipantIDs []string           `json:"participantIds" bson:"participant_ids"`
	CreatedBy      string             `json:"createdBy" bson:"created_by"`
	CreatedAt      time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt      time.Time          `json:"updatedAt" bson:"updated_at"`
	LastMessageAt  time.Time          `json:"lastMessageAt" bson:"last_message_at"`
}

// Participant represents a user in a conversation
type Participant struct {
	UserID   string    `json:"userId" bson:"user_id"`
	Role     Role      `json:"role" bson:"role"`
	JoinedAt time.Time `json:"joinedAt" bson:"joined_at"`
	IsActive bool      `json:"isActive" bson:"is_active"`
}

// HasParticipant reports whether userID is an active participant.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p.UserID == userID && p.IsActive {
			return true
		}
	}
	return false
}

// ValidStatus reports whether s is a known conversation status.
func ValidStatus(s string) bool {
	switch s {
	case ConversationActive, ConversationResolved, ConversationArchived:
		return true
	}
	return false
}

// ValidTransition reports whether a conversation may move from one status to
// another. ACTIVE exchanges with both RESOLVED and ARCHIVED in either
// direction; RESOLVED and ARCHIVED never exchange directly.
func ValidTransition(from, to string) bool {
	if from == to {
		return false
	}
	return from == ConversationActive || to == ConversationActive
}
