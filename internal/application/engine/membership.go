package engine

import (
	"context"
	"strings"

	"github.com/hilthontt/murmur/internal/domain"
	"github.com/hilthontt/murmur/internal/infrastructure/logging"
	"go.opentelemetry.io/otel/attribute"
)

const (
	leftReasonLeft         = "left"
	leftReasonSwitched     = "switched"
	leftReasonDisconnected = "disconnected"
)

type JoinInput struct {
	RoomID       string
	ConnectionID string
	Password     string
}

type JoinResult struct {
	Room         domain.RoomSummary `json:"room"`
	AssignedName string             `json:"assignedName"`
	Users        []domain.Member    `json:"users"`
	Messages     []domain.Message   `json:"-"`
}

// Join admits a connection to a room. Entry is verified before the connection
// leaves its previous room, so a refused join changes nothing. Joining the
// room the connection is already in is a no-op that returns the same result.
func (e *Engine) Join(ctx context.Context, input JoinInput) (res *JoinResult, notes []Notification, err error) {
	ctx, finish := e.start(ctx, "join_room", attribute.String("murmur.room_id", input.RoomID))
	defer func() { finish(err) }()

	if strings.TrimSpace(input.RoomID) == "" {
		return nil, nil, domain.ErrRoomNotFound
	}

	hasher, err := e.precheckPassword(input)
	if err != nil {
		return nil, nil, err
	}

	e.mu.Lock()
	now := e.now()

	room, err := e.store.GetByID(input.RoomID, now)
	if err != nil {
		e.mu.Unlock()
		return nil, nil, err
	}

	session, hasSession := e.store.Session(input.ConnectionID)

	if hasSession && session.CurrentRoomID == room.ID && room.IsMember(input.ConnectionID) {
		res = joinResult(room, session.AnonName)
		notes = []Notification{toConnection(input.ConnectionID, EventRoomMessages, room.ID,
			RoomMessagesPayload{RoomID: room.ID, Messages: res.Messages})}
		e.mu.Unlock()
		return res, notes, nil
	}

	if err := room.VerifyEntry(domain.EntryCheck{
		ConnectionID: input.ConnectionID,
		Password:     input.Password,
		Kick:         e.store.Kick(input.ConnectionID, now),
		Now:          now,
		KickTimeout:  e.store.KickTimeout(),
	}, hasher); err != nil {
		e.mu.Unlock()
		return nil, nil, err
	}

	var events []*domain.RoomAuditLog
	if hasSession && session.InRoom() {
		notes, events = e.leaveLocked(input.ConnectionID, session, leftReasonSwitched)
	}

	if !hasSession {
		session = &domain.Session{AnonName: e.names.Next()}
		e.store.PutSession(input.ConnectionID, session)
	}

	member := domain.NewMember(input.ConnectionID, session.AnonName, now)
	room.AddMember(member)
	session.CurrentRoomID = room.ID

	res = joinResult(room, session.AnonName)
	notes = appendToRoom(notes, room, input.ConnectionID, EventUserJoined, PresencePayload{
		RoomID: room.ID,
		User:   UserRef{AnonName: member.AnonName, ConnectionID: member.ConnectionID},
	})
	notes = append(notes, toConnection(input.ConnectionID, EventRoomMessages, room.ID,
		RoomMessagesPayload{RoomID: room.ID, Messages: res.Messages}))
	events = append(events, domain.NewMemberJoinedLog(room.ID, room.MemberCount(), now))
	e.observeStore()
	e.mu.Unlock()

	e.logger.Debug(logging.Room, logging.Membership, "member joined", map[logging.ExtraKey]any{
		logging.RoomID:       room.ID,
		logging.ConnectionID: input.ConnectionID,
		logging.AnonName:     member.AnonName,
	})
	e.publish(ctx, events)

	return res, notes, nil
}

// precheckPassword verifies a supplied password against a locked room without
// holding the engine lock. The result is re-applied under the lock by VerifyEntry.
func (e *Engine) precheckPassword(input JoinInput) (domain.PasswordHasher, error) {
	if input.Password == "" {
		return e.hasher, nil
	}

	e.mu.RLock()
	room, err := e.store.GetByID(input.RoomID, e.now())
	var hash string
	if err == nil && room.Locked {
		hash = room.PasswordHash
	}
	e.mu.RUnlock()

	if err != nil {
		return nil, err
	}
	if hash == "" {
		return e.hasher, nil
	}

	return precheckedHasher{
		PasswordHasher: e.hasher,
		hash:           hash,
		ok:             e.hasher.Verify(hash, input.Password),
	}, nil
}

func joinResult(room *domain.Room, anonName string) *JoinResult {
	return &JoinResult{
		Room:         room.Summary(),
		AssignedName: anonName,
		Users:        room.Members(),
		Messages:     room.Messages(),
	}
}

// Leave removes the connection from its current room. Its anonymous name is kept.
func (e *Engine) Leave(ctx context.Context, connectionID string) (notes []Notification, err error) {
	ctx, finish := e.start(ctx, "leave_room")
	defer func() { finish(err) }()

	e.mu.Lock()
	session, ok := e.store.Session(connectionID)
	if !ok || !session.InRoom() {
		e.mu.Unlock()
		return nil, domain.ErrNotInAnyRoom
	}

	roomID := session.CurrentRoomID
	notes, events := e.leaveLocked(connectionID, session, leftReasonLeft)
	e.observeStore()
	e.mu.Unlock()

	e.logger.Debug(logging.Room, logging.Membership, "member left", map[logging.ExtraKey]any{
		logging.RoomID:       roomID,
		logging.ConnectionID: connectionID,
	})
	e.publish(ctx, events)

	return notes, nil
}

// CleanupConnection tears down everything held for a connection. It is
// idempotent and safe for connections that never joined anything.
func (e *Engine) CleanupConnection(ctx context.Context, connectionID string) []Notification {
	ctx, finish := e.start(ctx, "cleanup")
	defer finish(nil)

	e.mu.Lock()
	var (
		notes  []Notification
		events []*domain.RoomAuditLog
	)
	if session, ok := e.store.Session(connectionID); ok && session.InRoom() {
		notes, events = e.leaveLocked(connectionID, session, leftReasonDisconnected)
	}
	e.store.DeleteSession(connectionID)
	e.store.DeleteKick(connectionID)
	e.observeStore()
	e.mu.Unlock()

	e.limiter.Forget(connectionID)
	e.publish(ctx, events)

	return notes
}

// leaveLocked removes the connection from its current room and clears the
// session pointer. Caller holds mu.
func (e *Engine) leaveLocked(connectionID string, session *domain.Session, reason string) ([]Notification, []*domain.RoomAuditLog) {
	roomID := session.CurrentRoomID
	session.CurrentRoomID = ""

	room, err := e.store.GetByID(roomID, e.now())
	if err != nil {
		return nil, nil
	}

	member, ok := room.RemoveMember(connectionID, e.now())
	if !ok {
		return nil, nil
	}

	notes := appendToRoom(nil, room, connectionID, EventUserLeft, PresencePayload{
		RoomID: room.ID,
		User:   UserRef{AnonName: member.AnonName, ConnectionID: connectionID},
	})
	events := []*domain.RoomAuditLog{domain.NewMemberLeftLog(room.ID, room.MemberCount(), reason, e.now())}
	return notes, events
}
