package http

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/reimii/meetup-server/internal/relay"
)

// PresenceHandlers exposes a read-only view of live room membership.
type PresenceHandlers struct {
	registry *relay.Registry
	gateway  *WSHandler
}

// NewPresenceHandlers creates a new presence handlers instance.
func NewPresenceHandlers(registry *relay.Registry, gateway *WSHandler) *PresenceHandlers {
	return &PresenceHandlers{registry: registry, gateway: gateway}
}

// UserPresence is one user's live session count in a room.
type UserPresence struct {
	UserID   int64 `json:"userId"`
	Sessions int   `json:"sessions"`
}

// RoomPresence is the membership snapshot of one room.
type RoomPresence struct {
	RoomID string         `json:"roomId"`
	Users  []UserPresence `json:"users"`
}

// PresenceResponse is the full registry snapshot.
type PresenceResponse struct {
	Connections int            `json:"connections"`
	Rooms       []RoomPresence `json:"rooms"`
}

// Presence returns a snapshot of all live rooms and their members.
// GET /api/presence
func (h *PresenceHandlers) Presence(c *gin.Context) {
	ids := h.registry.Rooms()
	sort.Strings(ids)

	rooms := make([]RoomPresence, 0, len(ids))
	for _, id := range ids {
		snap := h.registry.Snapshot(id)
		if snap == nil {
			continue
		}
		users := make([]UserPresence, 0, len(snap))
		for userID, count := range snap {
			users = append(users, UserPresence{UserID: userID, Sessions: count})
		}
		sort.Slice(users, func(i, j int) bool { return users[i].UserID < users[j].UserID })
		rooms = append(rooms, RoomPresence{RoomID: id, Users: users})
	}

	c.JSON(http.StatusOK, PresenceResponse{
		Connections: h.gateway.SessionCount(),
		Rooms:       rooms,
	})
}
