package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type RoomEventType string

const (
	EventRoomCreated  RoomEventType = "room_created"
	EventRoomDeleted  RoomEventType = "room_deleted"
	EventMemberJoined RoomEventType = "member_joined"
	EventMemberLeft   RoomEventType = "member_left"
	EventMemberKicked RoomEventType = "member_kicked"
	EventMemberBanned RoomEventType = "member_banned"
)

// RoomAuditLog is a lifecycle event emitted by the engine and stored by the audit consumer.
type RoomAuditLog struct {
	ID        string         `bson:"_id" json:"id"`
	RoomID    string         `bson:"room_id" json:"roomId"`
	EventType RoomEventType  `bson:"event_type" json:"eventType"`
	Timestamp time.Time      `bson:"timestamp" json:"timestamp"`
	Metadata  map[string]any `bson:"metadata,omitempty" json:"metadata,omitempty"`
}

type RoomAuditRepository interface {
	Log(ctx context.Context, log *RoomAuditLog) error
	GetByRoomID(ctx context.Context, roomID string, limit int) ([]RoomAuditLog, error)
	GetByEventType(ctx context.Context, eventType RoomEventType, from, to time.Time) ([]RoomAuditLog, error)
	EnsureIndexes(ctx context.Context) error
}

func newAuditLog(roomID string, eventType RoomEventType, at time.Time, metadata map[string]any) *RoomAuditLog {
	return &RoomAuditLog{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		EventType: eventType,
		Timestamp: at,
		Metadata:  metadata,
	}
}

func NewRoomCreatedLog(room RoomSummary) *RoomAuditLog {
	return newAuditLog(room.ID, EventRoomCreated, room.CreatedAt, map[string]any{
		"name":   room.Name,
		"tags":   room.Tags,
		"locked": room.Locked,
	})
}

func NewRoomDeletedLog(roomID, reason string, at time.Time) *RoomAuditLog {
	return newAuditLog(roomID, EventRoomDeleted, at, map[string]any{
		"reason": reason, // "grace_expired"
	})
}

func NewMemberJoinedLog(roomID string, memberCount int, at time.Time) *RoomAuditLog {
	return newAuditLog(roomID, EventMemberJoined, at, map[string]any{
		"member_count": memberCount,
	})
}

func NewMemberLeftLog(roomID string, memberCount int, reason string, at time.Time) *RoomAuditLog {
	return newAuditLog(roomID, EventMemberLeft, at, map[string]any{
		"member_count": memberCount,
		"reason":       reason, // "left", "switched", "disconnected"
	})
}

func NewMemberKickedLog(roomID string, memberCount int, at time.Time) *RoomAuditLog {
	return newAuditLog(roomID, EventMemberKicked, at, map[string]any{
		"member_count": memberCount,
	})
}

func NewMemberBannedLog(roomID string, memberCount int, at time.Time) *RoomAuditLog {
	return newAuditLog(roomID, EventMemberBanned, at, map[string]any{
		"member_count": memberCount,
	})
}
