package hub

import (
	"sort"

	"Livestream/internal/event"
	"Livestream/internal/model"
)

// MonitorService provides methods to gather gateway statistics
type MonitorService struct {
	gateway *Gateway
}

// NewMonitorService creates a new monitor service
func NewMonitorService(gateway *Gateway) *MonitorService {
	return &MonitorService{gateway: gateway}
}

// GetStats gathers and returns all gateway statistics
func (ms *MonitorService) GetStats() model.MonitorResponse {
	clients := ms.getClientList()
	connectionStats := model.ConnectionStats{
		TotalConnections: len(clients),
		TotalOnlineUsers: len(ms.gateway.presence.Online()),
	}

	// Determine overall health status
	status := "healthy"
	if connectionStats.TotalConnections == 0 {
		status = "idle"
	}

	return model.MonitorResponse{
		Status:      status,
		Connections: connectionStats,
		Rooms:       ms.getRoomStats(),
		Clients:     clients,
	}
}

// getRoomStats returns room statistics
func (ms *MonitorService) getRoomStats() model.RoomStats {
	stats := model.RoomStats{
		RoomDetails: make([]model.RoomInfo, 0),
	}

	for _, room := range ms.gateway.registry.Snapshot() {
		seen := make(map[string]struct{}, len(room.Subscribers))
		userIDs := make([]string, 0, len(room.Subscribers))
		for _, s := range room.Subscribers {
			if _, dup := seen[s.UserID()]; dup {
				continue
			}
			seen[s.UserID()] = struct{}{}
			userIDs = append(userIDs, s.UserID())
		}
		sort.Strings(userIDs)

		stats.RoomDetails = append(stats.RoomDetails, model.RoomInfo{
			RoomID:      room.RoomID,
			Connections: len(room.Subscribers),
			UserIDs:     userIDs,
		})
		stats.TotalRooms++

		switch {
		case event.IsConversationRoom(room.RoomID):
			stats.ConversationRooms++
		case event.IsUserRoom(room.RoomID):
			stats.UserRooms++
		}
	}

	sort.Slice(stats.RoomDetails, func(i, j int) bool {
		return stats.RoomDetails[i].RoomID < stats.RoomDetails[j].RoomID
	})
	return stats
}

// getClientList returns list of all connected clients
func (ms *MonitorService) getClientList() []model.ClientInfo {
	connected := ms.gateway.Clients()
	clients := make([]model.ClientInfo, 0, len(connected))

	for _, client := range connected {
		clients = append(clients, model.ClientInfo{
			ClientID:    client.ID(),
			UserID:      client.UserID(),
			JoinedRooms: len(ms.gateway.registry.RoomsOf(client.ID())),
		})
	}

	sort.Slice(clients, func(i, j int) bool { return clients[i].ClientID < clients[j].ClientID })
	return clients
}
