package hub

import "strings"

// RoomKey names a multicast group of live connections. Four shapes exist:
// user:{id}, admin, delivery:{id}, conversation:{id}. Rooms carry no state
// beyond live membership and are rebuilt from active connections at any time.
type RoomKey string

// AdminRoom is the shared back-office pool.
const AdminRoom RoomKey = "admin"

func UserRoom(userID string) RoomKey {
	return RoomKey("user:" + userID)
}

func DeliveryRoom(deliveryPersonID string) RoomKey {
	return RoomKey("delivery:" + deliveryPersonID)
}

func ConversationRoom(conversationID string) RoomKey {
	return RoomKey("conversation:" + conversationID)
}

// ConversationID returns the id for a conversation room key, or "" when the
// key has another shape.
func (k RoomKey) ConversationID() string {
	if id, ok := strings.CutPrefix(string(k), "conversation:"); ok {
		return id
	}
	return ""
}
