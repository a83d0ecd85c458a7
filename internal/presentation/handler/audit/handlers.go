package audit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hilthontt/murmur/internal/domain"
	"github.com/hilthontt/murmur/internal/infrastructure/json"
)

const (
	defaultLimit  = 50
	maxLimit      = 500
	defaultWindow = 24 * time.Hour
)

type Handler struct {
	repo domain.RoomAuditRepository
}

func NewHandler(repo domain.RoomAuditRepository) *Handler {
	return &Handler{repo: repo}
}

// GetRoomEventsHandler godoc
// @Summary      Room lifecycle events
// @Description  Returns the most recent stored lifecycle events of one room, newest first
// @Tags         audit
// @Produce      json
// @Param        roomId path  string true  "Room ID"
// @Param        limit  query int    false "Maximum events (default 50, max 500)"
// @Success      200 {object} auditResponse
// @Failure      400 {object} json.ErrorResponse
// @Failure      500 {object} json.ErrorResponse
// @Router       /rooms/{roomId}/audit [get]
func (h *Handler) GetRoomEventsHandler(w http.ResponseWriter, r *http.Request) {
	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			json.WriteBadRequestError(w, "limit must be a positive integer")
			return
		}
		limit = min(n, maxLimit)
	}

	events, err := h.repo.GetByRoomID(r.Context(), chi.URLParam(r, "roomId"), limit)
	if err != nil {
		json.WriteInternalError(w, err)
		return
	}

	json.Write(w, http.StatusOK, auditResponse{Events: events})
}

// GetEventsByTypeHandler godoc
// @Summary      Lifecycle events by type
// @Description  Returns stored events of one type within [from, to], RFC3339; defaults to the last 24h
// @Tags         audit
// @Produce      json
// @Param        eventType path  string true  "Event type, e.g. room_created"
// @Param        from      query string false "RFC3339 lower bound"
// @Param        to        query string false "RFC3339 upper bound"
// @Success      200 {object} auditResponse
// @Failure      400 {object} json.ErrorResponse
// @Failure      500 {object} json.ErrorResponse
// @Router       /audit/{eventType} [get]
func (h *Handler) GetEventsByTypeHandler(w http.ResponseWriter, r *http.Request) {
	eventType := domain.RoomEventType(chi.URLParam(r, "eventType"))
	if !knownEventType(eventType) {
		json.WriteBadRequestError(w, "unknown event type")
		return
	}

	to := time.Now().UTC()
	from := to.Add(-defaultWindow)

	q := r.URL.Query()
	var err error
	if raw := q.Get("to"); raw != "" {
		if to, err = time.Parse(time.RFC3339, raw); err != nil {
			json.WriteBadRequestError(w, "to must be RFC3339")
			return
		}
		from = to.Add(-defaultWindow)
	}
	if raw := q.Get("from"); raw != "" {
		if from, err = time.Parse(time.RFC3339, raw); err != nil {
			json.WriteBadRequestError(w, "from must be RFC3339")
			return
		}
	}
	if from.After(to) {
		json.WriteBadRequestError(w, "from must not be after to")
		return
	}

	events, err := h.repo.GetByEventType(r.Context(), eventType, from, to)
	if err != nil {
		json.WriteInternalError(w, err)
		return
	}

	json.Write(w, http.StatusOK, auditResponse{Events: events})
}

func knownEventType(t domain.RoomEventType) bool {
	switch t {
	case domain.EventRoomCreated, domain.EventRoomDeleted,
		domain.EventMemberJoined, domain.EventMemberLeft,
		domain.EventMemberKicked, domain.EventMemberBanned:
		return true
	}
	return false
}
