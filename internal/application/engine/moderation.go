package engine

import (
	"context"

	"github.com/hilthontt/murmur/internal/domain"
	"github.com/hilthontt/murmur/internal/infrastructure/logging"
	"go.opentelemetry.io/otel/attribute"
)

const (
	kickedReason = "You have been kicked from the room"
	bannedReason = "You have been banned from this room"
)

type ModerationInput struct {
	RoomID             string
	RequesterID        string
	TargetConnectionID string
}

// Kick evicts a member and bars them from the room until the kick expires.
// It returns the target's anonymous name.
func (e *Engine) Kick(ctx context.Context, input ModerationInput) (anonName string, notes []Notification, err error) {
	ctx, finish := e.start(ctx, "kick_user", attribute.String("murmur.room_id", input.RoomID))
	defer func() { finish(err) }()

	return e.moderate(ctx, input, false)
}

// Ban evicts a member and bars them from the room permanently.
// It returns the target's anonymous name.
func (e *Engine) Ban(ctx context.Context, input ModerationInput) (anonName string, notes []Notification, err error) {
	ctx, finish := e.start(ctx, "ban_user", attribute.String("murmur.room_id", input.RoomID))
	defer func() { finish(err) }()

	return e.moderate(ctx, input, true)
}

func (e *Engine) moderate(ctx context.Context, input ModerationInput, ban bool) (string, []Notification, error) {
	e.mu.Lock()
	now := e.now()

	room, err := e.store.GetByID(input.RoomID, now)
	if err != nil {
		e.mu.Unlock()
		return "", nil, err
	}

	target, err := room.AuthorizeModeration(input.RequesterID, input.TargetConnectionID)
	if err != nil {
		e.mu.Unlock()
		return "", nil, err
	}

	var (
		directEvent, roomEvent, reason string
		event                          *domain.RoomAuditLog
	)
	if ban {
		room.Ban(target.ConnectionID, now)
		directEvent, roomEvent, reason = EventBanned, EventUserBanned, bannedReason
		event = domain.NewMemberBannedLog(room.ID, room.MemberCount(), now)
	} else {
		room.RemoveMember(target.ConnectionID, now)
		e.store.RecordKick(target.ConnectionID, room.ID, now)
		directEvent, roomEvent, reason = EventKicked, EventUserKicked, kickedReason
		event = domain.NewMemberKickedLog(room.ID, room.MemberCount(), now)
	}

	if session, ok := e.store.Session(target.ConnectionID); ok && session.CurrentRoomID == room.ID {
		session.CurrentRoomID = ""
	}

	notes := []Notification{toConnection(target.ConnectionID, directEvent, room.ID, RemovedPayload{
		RoomID: room.ID,
		Reason: reason,
	})}
	notes = appendToRoom(notes, room, input.RequesterID, roomEvent, ModerationPayload{
		RoomID: room.ID,
		User:   target.AnonName,
	})
	e.mu.Unlock()

	e.logger.Info(logging.Room, logging.Moderation, "member removed by owner", map[logging.ExtraKey]any{
		logging.RoomID:       room.ID,
		logging.ConnectionID: target.ConnectionID,
		logging.EventType:    event.EventType,
	})
	e.publish(ctx, []*domain.RoomAuditLog{event})

	return target.AnonName, notes, nil
}
