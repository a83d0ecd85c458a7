package rooms

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hilthontt/murmur/internal/application/engine"
	"github.com/hilthontt/murmur/internal/domain"
	"github.com/hilthontt/murmur/internal/infrastructure/json"
)

// RoomReader is the read side of the engine exposed over REST.
type RoomReader interface {
	ListRooms(ctx context.Context, filter engine.RoomFilter) []domain.RoomSummary
	ListTags(ctx context.Context) []string
	QuickMatch(ctx context.Context, preferredTags []string) (string, error)
	GetRoomState(ctx context.Context, roomID, viewer string) (*engine.RoomState, error)
	Messages(ctx context.Context, roomID, viewer string) ([]domain.Message, error)
}

type Handler struct {
	rooms RoomReader
}

func NewHandler(rooms RoomReader) *Handler {
	return &Handler{rooms: rooms}
}

// ListRoomsHandler godoc
// @Summary      List rooms
// @Description  Lists the live rooms, optionally filtered by a name search and a comma separated tag list
// @Tags         rooms
// @Produce      json
// @Param        search query string false "Case-insensitive name substring"
// @Param        tags   query string false "Comma separated tags, any must match"
// @Success      200 {object} roomsResponse
// @Router       /rooms [get]
func (h *Handler) ListRoomsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rooms := h.rooms.ListRooms(r.Context(), engine.RoomFilter{
		Search: q.Get("search"),
		Tags:   splitTags(q.Get("tags")),
	})

	json.Write(w, http.StatusOK, roomsResponse{Rooms: rooms})
}

// ListTagsHandler godoc
// @Summary      List tags
// @Tags         rooms
// @Produce      json
// @Success      200 {object} tagsResponse
// @Router       /rooms/tags [get]
func (h *Handler) ListTagsHandler(w http.ResponseWriter, r *http.Request) {
	json.Write(w, http.StatusOK, tagsResponse{Tags: h.rooms.ListTags(r.Context())})
}

// QuickMatchHandler godoc
// @Summary      Pick an open room
// @Description  Returns the first unlocked room sharing a preferred tag, else the first unlocked room
// @Tags         rooms
// @Produce      json
// @Param        tags query string false "Comma separated preferred tags"
// @Success      200 {object} quickMatchResponse
// @Failure      404 {object} json.ErrorResponse "No open rooms"
// @Router       /rooms/quick-match [get]
func (h *Handler) QuickMatchHandler(w http.ResponseWriter, r *http.Request) {
	roomID, err := h.rooms.QuickMatch(r.Context(), splitTags(r.URL.Query().Get("tags")))
	if err != nil {
		json.WriteDomainError(w, err)
		return
	}

	json.Write(w, http.StatusOK, quickMatchResponse{RoomID: roomID})
}

// GetRoomHandler godoc
// @Summary      Get room state
// @Tags         rooms
// @Produce      json
// @Param        roomId path string true "Room ID"
// @Success      200 {object} roomResponse
// @Failure      404 {object} json.ErrorResponse "Room not found"
// @Router       /rooms/{roomId} [get]
func (h *Handler) GetRoomHandler(w http.ResponseWriter, r *http.Request) {
	state, err := h.rooms.GetRoomState(r.Context(), chi.URLParam(r, "roomId"), "")
	if err != nil {
		json.WriteDomainError(w, err)
		return
	}

	json.Write(w, http.StatusOK, roomResponse{Room: state})
}

// GetMessagesHandler godoc
// @Summary      Get room history
// @Description  Returns the retained chat messages of an unlocked room, oldest first
// @Tags         rooms
// @Produce      json
// @Param        roomId path string true "Room ID"
// @Success      200 {object} messagesResponse
// @Failure      403 {object} json.ErrorResponse "Room is locked"
// @Failure      404 {object} json.ErrorResponse "Room not found"
// @Router       /rooms/{roomId}/messages [get]
func (h *Handler) GetMessagesHandler(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")

	// REST callers are never members, locked history stays behind join
	msgs, err := h.rooms.Messages(r.Context(), roomID, "")
	if err != nil {
		json.WriteDomainError(w, err)
		return
	}

	json.Write(w, http.StatusOK, messagesResponse{RoomID: roomID, Messages: msgs})
}

func splitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return strings.Split(raw, ",")
}
