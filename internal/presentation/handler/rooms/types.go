package rooms

import (
	"github.com/hilthontt/murmur/internal/application/engine"
	"github.com/hilthontt/murmur/internal/domain"
)

// roomsResponse lists the visible rooms
type roomsResponse struct {
	Rooms []domain.RoomSummary `json:"rooms"`
}

type tagsResponse struct {
	Tags []string `json:"tags"`
}

type quickMatchResponse struct {
	RoomID string `json:"roomId"`
}

// roomResponse is the detailed room view; isOwner is always false over REST
type roomResponse struct {
	Room *engine.RoomState `json:"room"`
}

type messagesResponse struct {
	RoomID   string           `json:"roomId"`
	Messages []domain.Message `json:"messages"`
}
