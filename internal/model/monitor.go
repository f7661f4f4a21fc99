package model

// -----------------------------------------------------------------
// Monitor API Response Models
// -----------------------------------------------------------------

// MonitorResponse is the main response for the monitor API
type MonitorResponse struct {
	Status      string          `json:"status"`      // "healthy" or "idle"
	Connections ConnectionStats `json:"connections"` // Client connection stats
	Rooms       RoomStats       `json:"rooms"`       // Room stats
	Clients     []ClientInfo    `json:"clients"`     // List of connected clients
}

// ConnectionStats holds connection-related statistics
type ConnectionStats struct {
	TotalConnections int `json:"totalConnections"` // Sockets currently attached
	TotalOnlineUsers int `json:"totalOnlineUsers"` // Users the presence tracker reports online
}

// RoomStats holds room statistics
type RoomStats struct {
	TotalRooms        int        `json:"totalRooms"`        // Rooms with at least one joined connection
	ConversationRooms int        `json:"conversationRooms"` // conversation:<id> rooms
	UserRooms         int        `json:"userRooms"`         // user:<id> rooms
	RoomDetails       []RoomInfo `json:"roomDetails"`
}

// RoomInfo contains information about a single room
type RoomInfo struct {
	RoomID      string   `json:"roomId"`
	Connections int      `json:"connections"`
	UserIDs     []string `json:"userIds"`
}

// ClientInfo contains information about a connected client
type ClientInfo struct {
	ClientID    string `json:"clientId"`
	UserID      string `json:"userId"`
	JoinedRooms int    `json:"joinedRooms"`
}
