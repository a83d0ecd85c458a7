package health

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/hilthontt/murmur/internal/infrastructure/json"
)

// ConnectionCounter reports the number of open realtime connections.
type ConnectionCounter interface {
	ClientCount() int
}

type Handler struct {
	connections ConnectionCounter
	startTime   time.Time
	healthy     atomic.Bool
}

func NewHandler(connections ConnectionCounter) *Handler {
	h := &Handler{
		connections: connections,
		startTime:   time.Now(),
	}
	h.healthy.Store(true)
	return h
}

// SetHealthy flips the reported status; the server marks itself unhealthy
// as soon as shutdown begins so load balancers stop routing to it.
func (h *Handler) SetHealthy(ok bool) {
	h.healthy.Store(ok)
}

// GetHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the service, including uptime and open connections
// @Tags         health
// @Produce      json
// @Success      200 {object} healthResponse "Service is healthy"
// @Failure      503 {object} healthResponse "Service is unhealthy"
// @Router       /health [get]
// @Router       /healthz [get]
// @Router       /ready [get]
// @Router       /live [get]
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	}
	if h.connections != nil {
		resp.Connections = h.connections.ClientCount()
	}

	if !h.healthy.Load() {
		resp.Status = "unhealthy"
		json.Write(w, http.StatusServiceUnavailable, resp)
		return
	}

	json.Write(w, http.StatusOK, resp)
}
