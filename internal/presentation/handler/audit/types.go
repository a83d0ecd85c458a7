package audit

import "github.com/hilthontt/murmur/internal/domain"

type auditResponse struct {
	Events []domain.RoomAuditLog `json:"events"`
}
