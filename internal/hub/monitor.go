package hub

import (
	"sort"

	"Kaupa/internal/model"
)

// Stats snapshots the hub for the monitoring endpoint: connection counts by
// role, per-room membership, active typing indicators, and the connection
// list. Read-only; taken under the read lock.
func (h *Hub) Stats() model.MonitorResponse {
	h.mu.RLock()
	defer h.mu.RUnlock()

	byRole := make(map[string]int)
	clients := make([]model.ClientInfo, 0, len(h.conns))
	for _, c := range h.conns {
		byRole[string(c.identity.Role)]++

		roomNames := make([]string, 0, len(c.rooms))
		for key := range c.rooms {
			roomNames = append(roomNames, string(key))
		}
		sort.Strings(roomNames)

		clients = append(clients, model.ClientInfo{
			ConnectionID: c.ID,
			UserID:       c.identity.UserID,
			Role:         string(c.identity.Role),
			Rooms:        roomNames,
		})
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].ConnectionID < clients[j].ConnectionID })

	details := make([]model.RoomInfo, 0, len(h.rooms))
	for key, r := range h.rooms {
		seen := make(map[string]struct{}, len(r.members))
		userIDs := make([]string, 0, len(r.members))
		for _, c := range r.members {
			if _, dup := seen[c.identity.UserID]; dup {
				continue
			}
			seen[c.identity.UserID] = struct{}{}
			userIDs = append(userIDs, c.identity.UserID)
		}
		sort.Strings(userIDs)

		details = append(details, model.RoomInfo{
			Room:        string(key),
			MemberCount: len(r.members),
			UserIDs:     userIDs,
		})
	}
	sort.Slice(details, func(i, j int) bool { return details[i].Room < details[j].Room })

	status := "idle"
	if len(h.conns) > 0 {
		status = "healthy"
	}

	return model.MonitorResponse{
		Status: status,
		Connections: model.ConnectionStats{
			TotalConnected: len(h.conns),
			ByRole:         byRole,
		},
		Rooms: model.RoomStats{
			TotalRooms:  len(h.rooms),
			RoomDetails: details,
		},
		Typing: model.TypingStats{
			ActiveTypers: h.typing.ActiveCount(),
		},
		Clients: clients,
	}
}
