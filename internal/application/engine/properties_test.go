package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hilthontt/murmur/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBanKeepsBannedOutOfMembers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	room := h.createRoom(t, CreateRoomInput{Name: "Lounge", ConnectionID: "owner"})
	h.join(t, room.ID, "owner")
	h.join(t, room.ID, "c2")
	h.join(t, room.ID, "c3")

	name, notes, err := h.engine.Ban(ctx, ModerationInput{RoomID: room.ID, RequesterID: "owner", TargetConnectionID: "c2"})
	require.NoError(t, err)
	assert.Equal(t, "anonymous2", name)

	banned, ok := findNote(notes, EventBanned)
	require.True(t, ok)
	assert.Equal(t, []string{"c2"}, banned.Recipients)
	userBanned, ok := findNote(notes, EventUserBanned)
	require.True(t, ok)
	assert.Equal(t, []string{"c3"}, userBanned.Recipients)
	assert.Equal(t, ModerationPayload{RoomID: room.ID, User: "anonymous2"}, userBanned.Payload)

	assert.NotContains(t, h.memberIDs(t, room.ID), "c2")

	h.clock.Advance(24 * time.Hour)
	_, _, err = h.engine.Join(ctx, JoinInput{RoomID: room.ID, ConnectionID: "c2"})
	assert.ErrorIs(t, err, domain.ErrBanned)
	assert.NotContains(t, h.memberIDs(t, room.ID), "c2")
}

func TestModerationRequiresOwnerAndMember(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	room := h.createRoom(t, CreateRoomInput{Name: "Lounge", ConnectionID: "owner"})
	h.join(t, room.ID, "owner")
	h.join(t, room.ID, "c2")

	_, _, err := h.engine.Kick(ctx, ModerationInput{RoomID: room.ID, RequesterID: "c2", TargetConnectionID: "owner"})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, _, err = h.engine.Ban(ctx, ModerationInput{RoomID: room.ID, RequesterID: "owner", TargetConnectionID: "ghost"})
	assert.ErrorIs(t, err, domain.ErrNotAMember)

	_, _, err = h.engine.Kick(ctx, ModerationInput{RoomID: "missing", RequesterID: "owner", TargetConnectionID: "c2"})
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	assert.ElementsMatch(t, []string{"owner", "c2"}, h.memberIDs(t, room.ID))
}

func TestOwnerCanKickThemselves(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	room := h.createRoom(t, CreateRoomInput{Name: "Lounge", ConnectionID: "owner"})
	h.join(t, room.ID, "owner")
	h.join(t, room.ID, "c2")

	name, notes, err := h.engine.Kick(ctx, ModerationInput{RoomID: room.ID, RequesterID: "owner", TargetConnectionID: "owner"})
	require.NoError(t, err)
	assert.Equal(t, "anonymous1", name)
	assert.Equal(t, []string{"c2"}, h.memberIDs(t, room.ID))
	require.NotEmpty(t, notes)
	assert.Equal(t, EventKicked, notes[0].Event)

	// still owner, but the kick window applies to the owner as well
	_, _, err = h.engine.Join(ctx, JoinInput{RoomID: room.ID, ConnectionID: "owner"})
	assert.ErrorIs(t, err, domain.ErrTemporarilyKicked)

	state, err := h.engine.GetRoomState(ctx, room.ID, "owner")
	require.NoError(t, err)
	assert.True(t, state.IsOwner)
}

func TestOwnerIsNotReassignedAfterDisconnect(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	room := h.createRoom(t, CreateRoomInput{Name: "Lounge", ConnectionID: "owner"})
	h.join(t, room.ID, "owner")
	h.join(t, room.ID, "c2")
	h.join(t, room.ID, "c3")

	h.engine.CleanupConnection(ctx, "owner")

	_, _, err := h.engine.Kick(ctx, ModerationInput{RoomID: room.ID, RequesterID: "c2", TargetConnectionID: "c3"})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestMessageRoundTripInOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	room := h.createRoom(t, CreateRoomInput{Name: "Lounge"})
	h.join(t, room.ID, "c1")
	h.join(t, room.ID, "c2")

	msg, notes, err := h.engine.SendMessage(ctx, SendMessageInput{
		RoomID: room.ID, ConnectionID: "c1", Text: "&lt;b&gt;hi", ClientTempID: "tmp-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "anonymous1", msg.From)
	assert.Equal(t, "tmp-1", msg.ClientTempID)

	broadcast, ok := findNote(notes, EventMessage)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"c1", "c2"}, broadcast.Recipients)

	_, _, err = h.engine.SendMessage(ctx, SendMessageInput{RoomID: room.ID, ConnectionID: "c2", Text: "second"})
	require.NoError(t, err)

	history, err := h.engine.Messages(ctx, room.ID, "c1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "&lt;b&gt;hi", history[0].Text)
	assert.Equal(t, "second", history[1].Text)

	joined := h.join(t, room.ID, "c3")
	assert.Equal(t, history, joined.Messages)
}

func TestSendMessageFailures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	room := h.createRoom(t, CreateRoomInput{Name: "Lounge"})
	h.join(t, room.ID, "c1")

	_, _, err := h.engine.SendMessage(ctx, SendMessageInput{RoomID: "missing", ConnectionID: "c1", Text: "hi"})
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	_, _, err = h.engine.SendMessage(ctx, SendMessageInput{RoomID: room.ID, ConnectionID: "outsider", Text: "hi"})
	assert.ErrorIs(t, err, domain.ErrNotAMember)

	_, _, err = h.engine.SendMessage(ctx, SendMessageInput{RoomID: room.ID, ConnectionID: "c1", Text: "   "})
	assert.ErrorIs(t, err, domain.ErrValidation)

	history, err := h.engine.Messages(ctx, room.ID, "c1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestRetentionBoundaries(t *testing.T) {
	h := newHarness(t, withRelaxedLimit())
	ctx := context.Background()
	room := h.createRoom(t, CreateRoomInput{Name: "Lounge"})
	h.join(t, room.ID, "c1")

	for i := 1; i <= 101; i++ {
		_, _, err := h.engine.SendMessage(ctx, SendMessageInput{RoomID: room.ID, ConnectionID: "c1", Text: fmt.Sprintf("m%d", i)})
		require.NoError(t, err)
	}
	history, err := h.engine.Messages(ctx, room.ID, "c1")
	require.NoError(t, err)
	require.Len(t, history, 100)
	assert.Equal(t, "m2", history[0].Text)
	assert.Equal(t, "m101", history[99].Text)

	var last TranscriptBroadcast
	for i := 1; i <= 201; i++ {
		last, _, err = h.engine.SendTranscript(ctx, SendTranscriptInput{RoomID: room.ID, ConnectionID: "c1", Transcript: fmt.Sprintf("t%d", i)})
		require.NoError(t, err)
	}
	assert.Equal(t, "t201", last.Transcript)

	h.engine.mu.RLock()
	stored, err := h.engine.store.GetByID(room.ID, h.clock.Now())
	require.NoError(t, err)
	transcripts := stored.Transcripts()
	h.engine.mu.RUnlock()

	require.Len(t, transcripts, 200)
	assert.Equal(t, "t2", transcripts[0].Transcript)
	assert.Equal(t, "t201", transcripts[199].Transcript)
}

func TestJoinRefusalKeepsPriorRoom(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	open := h.createRoom(t, CreateRoomInput{Name: "Open"})
	vault := h.createRoom(t, CreateRoomInput{Name: "Vault", Locked: true, Password: "x"})
	h.join(t, open.ID, "c1")

	_, notes, err := h.engine.Join(ctx, JoinInput{RoomID: vault.ID, ConnectionID: "c1", Password: "nope"})
	assert.ErrorIs(t, err, domain.ErrLockedIncorrectPassword)
	assert.Empty(t, notes)
	assert.Equal(t, []string{"c1"}, h.memberIDs(t, open.ID))

	_, _, err = h.engine.Join(ctx, JoinInput{RoomID: "missing", ConnectionID: "c1"})
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
	assert.Equal(t, []string{"c1"}, h.memberIDs(t, open.ID))
}

func TestJoinSwitchesRooms(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.createRoom(t, CreateRoomInput{Name: "A"})
	b := h.createRoom(t, CreateRoomInput{Name: "B"})
	h.join(t, a.ID, "c1")
	h.join(t, a.ID, "c2")

	res, notes, err := h.engine.Join(ctx, JoinInput{RoomID: b.ID, ConnectionID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, "anonymous1", res.AssignedName)

	left, ok := findNote(notes, EventUserLeft)
	require.True(t, ok)
	assert.Equal(t, a.ID, left.RoomID)
	assert.Equal(t, []string{"c2"}, left.Recipients)

	history, ok := findNote(notes, EventRoomMessages)
	require.True(t, ok)
	assert.Equal(t, []string{"c1"}, history.Recipients)

	assert.Equal(t, []string{"c2"}, h.memberIDs(t, a.ID))
	assert.Equal(t, []string{"c1"}, h.memberIDs(t, b.ID))
}

func TestRejoinSameRoomIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	room := h.createRoom(t, CreateRoomInput{Name: "Lounge"})
	h.join(t, room.ID, "c1")
	h.join(t, room.ID, "c2")

	res, notes, err := h.engine.Join(ctx, JoinInput{RoomID: room.ID, ConnectionID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, "anonymous1", res.AssignedName)
	assert.Equal(t, 2, res.Room.MemberCount)
	_, ok := findNote(notes, EventUserJoined)
	assert.False(t, ok)
}

func TestLeave(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.engine.Leave(ctx, "c1")
	assert.ErrorIs(t, err, domain.ErrNotInAnyRoom)

	room := h.createRoom(t, CreateRoomInput{Name: "Lounge"})
	h.join(t, room.ID, "c1")
	h.join(t, room.ID, "c2")

	notes, err := h.engine.Leave(ctx, "c1")
	require.NoError(t, err)
	left, ok := findNote(notes, EventUserLeft)
	require.True(t, ok)
	assert.Equal(t, PresencePayload{RoomID: room.ID, User: UserRef{AnonName: "anonymous1", ConnectionID: "c1"}}, left.Payload)

	_, err = h.engine.Leave(ctx, "c1")
	assert.ErrorIs(t, err, domain.ErrNotInAnyRoom)

	res := h.join(t, room.ID, "c1")
	assert.Equal(t, "anonymous1", res.AssignedName, "name survives leave")
}

func TestCleanupConnectionIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	room := h.createRoom(t, CreateRoomInput{Name: "Lounge", ConnectionID: "owner"})
	h.join(t, room.ID, "owner")
	h.join(t, room.ID, "c1")
	h.join(t, room.ID, "c2")
	_, _, err := h.engine.Kick(ctx, ModerationInput{RoomID: room.ID, RequesterID: "owner", TargetConnectionID: "c2"})
	require.NoError(t, err)

	notes := h.engine.CleanupConnection(ctx, "c1")
	left, ok := findNote(notes, EventUserLeft)
	require.True(t, ok)
	assert.Equal(t, []string{"owner"}, left.Recipients)

	snapshot := func() ([]string, []domain.RoomSummary, int) {
		h.engine.mu.RLock()
		defer h.engine.mu.RUnlock()
		return h.memberIDsLocked(room.ID), h.engine.listLocked(RoomFilter{}), h.engine.store.SessionCount()
	}

	members1, rooms1, sessions1 := snapshot()
	assert.Empty(t, h.engine.CleanupConnection(ctx, "c1"))
	members2, rooms2, sessions2 := snapshot()

	assert.Equal(t, members1, members2)
	assert.Equal(t, rooms1, rooms2)
	assert.Equal(t, sessions1, sessions2)

	// never joined, never kicked
	assert.Empty(t, h.engine.CleanupConnection(ctx, "stranger"))

	// the kicked connection's cooldown is dropped with it
	h.engine.CleanupConnection(ctx, "c2")
	h.join(t, room.ID, "c2")
}

func (h *harness) memberIDsLocked(roomID string) []string {
	room, err := h.engine.store.GetByID(roomID, h.clock.Now())
	if err != nil {
		return nil
	}
	ids := []string{}
	for _, m := range room.Members() {
		ids = append(ids, m.ConnectionID)
	}
	return ids
}

func TestCreateRoomValidationAndBroadcast(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, _, err := h.engine.CreateRoom(ctx, CreateRoomInput{Name: "", ConnectionID: "c1"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, _, err = h.engine.CreateRoom(ctx, CreateRoomInput{Name: "Vault", Locked: true, ConnectionID: "c1"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	room, notes, err := h.engine.CreateRoom(ctx, CreateRoomInput{Name: " Lounge ", Tags: []string{"Music", "music"}, ConnectionID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, "Lounge", room.Name)
	assert.Equal(t, []string{"music"}, room.Tags)
	assert.Zero(t, room.MemberCount)

	list, ok := findNote(notes, EventRoomList)
	require.True(t, ok)
	assert.Equal(t, ScopeAll, list.Scope)
	assert.Len(t, list.Payload.(RoomListPayload).Rooms, 1)

	assert.Equal(t, []domain.RoomEventType{domain.EventRoomCreated}, h.publisher.types())
}

func TestCreateRoomRetriesIDCollision(t *testing.T) {
	ids := []string{"dup", "dup", "fresh"}
	gen := func() (string, error) {
		id := ids[0]
		ids = ids[1:]
		return id, nil
	}
	h := newHarness(t, withRoomIDs(gen))

	first := h.createRoom(t, CreateRoomInput{Name: "one"})
	second := h.createRoom(t, CreateRoomInput{Name: "two"})

	assert.Equal(t, "dup", first.ID)
	assert.Equal(t, "fresh", second.ID)
}

func TestCreateRoomIDGeneratorFailure(t *testing.T) {
	boom := errors.New("entropy exhausted")
	h := newHarness(t, withRoomIDs(func() (string, error) { return "", boom }))

	_, _, err := h.engine.CreateRoom(context.Background(), CreateRoomInput{Name: "one", ConnectionID: "c1"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, domain.CodeInternal, domain.ErrorCode(err))
}

func TestHistoryRespectsRoomAccess(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	room := h.createRoom(t, CreateRoomInput{Name: "Vault", Locked: true, Password: "x", ConnectionID: "owner"})

	_, _, err := h.engine.Join(ctx, JoinInput{RoomID: room.ID, ConnectionID: "owner", Password: "x"})
	require.NoError(t, err)
	_, _, err = h.engine.Join(ctx, JoinInput{RoomID: room.ID, ConnectionID: "c2", Password: "x"})
	require.NoError(t, err)
	_, _, err = h.engine.SendMessage(ctx, SendMessageInput{RoomID: room.ID, ConnectionID: "owner", Text: "secret plans"})
	require.NoError(t, err)

	history, err := h.engine.Messages(ctx, room.ID, "c2")
	require.NoError(t, err)
	require.Len(t, history, 1)

	_, err = h.engine.Messages(ctx, room.ID, "")
	assert.ErrorIs(t, err, domain.ErrLockedPasswordRequired)
	_, err = h.engine.Messages(ctx, room.ID, "stranger")
	assert.ErrorIs(t, err, domain.ErrLockedPasswordRequired)

	_, _, err = h.engine.Ban(ctx, ModerationInput{RoomID: room.ID, RequesterID: "owner", TargetConnectionID: "c2"})
	require.NoError(t, err)
	_, err = h.engine.Messages(ctx, room.ID, "c2")
	assert.ErrorIs(t, err, domain.ErrBanned)

	open := h.createRoom(t, CreateRoomInput{Name: "Lobby", ConnectionID: "c3"})
	history, err = h.engine.Messages(ctx, open.ID, "")
	require.NoError(t, err)
	assert.Empty(t, history)
}
