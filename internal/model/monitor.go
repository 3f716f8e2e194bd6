package model

// -----------------------------------------------------------------
// Monitor API Response Models
// -----------------------------------------------------------------

// MonitorResponse is the main response for the monitor API
type MonitorResponse struct {
	Status      string          `json:"status"` // "healthy" or "idle"
	Connections ConnectionStats `json:"connections"`
	Rooms       RoomStats       `json:"rooms"`
	Typing      TypingStats     `json:"typing"`
	Clients     []ClientInfo    `json:"clients"`
}

// ConnectionStats holds connection-related statistics
type ConnectionStats struct {
	TotalConnected int            `json:"totalConnected"`
	ByRole         map[string]int `json:"byRole"`
}

// RoomStats holds room membership statistics
type RoomStats struct {
	TotalRooms  int        `json:"totalRooms"`
	RoomDetails []RoomInfo `json:"roomDetails"`
}

// RoomInfo contains information about a single room
type RoomInfo struct {
	Room        string   `json:"room"`
	MemberCount int      `json:"memberCount"`
	UserIDs     []string `json:"userIds"`
}

// TypingStats holds live typing-indicator statistics
type TypingStats struct {
	ActiveTypers int `json:"activeTypers"`
}

// ClientInfo contains information about a connected client
type ClientInfo struct {
	ConnectionID string   `json:"connectionId"`
	UserID       string   `json:"userId"`
	Role         string   `json:"role"`
	Rooms        []string `json:"rooms"`
}
