package engine

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hilthontt/murmur/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type translatorFunc func(ctx context.Context, text string) (*domain.Translation, error)

func (f translatorFunc) Translate(ctx context.Context, text string) (*domain.Translation, error) {
	return f(ctx, text)
}

func TestTranscriptTranslationOverridesLanguage(t *testing.T) {
	tr := translatorFunc(func(_ context.Context, text string) (*domain.Translation, error) {
		return &domain.Translation{Translated: "hello", DetectedLang: "fr"}, nil
	})
	h := newHarness(t, withTranslator(tr, time.Second))
	room := h.createRoom(t, CreateRoomInput{Name: "Lounge"})
	h.join(t, room.ID, "c1")
	h.join(t, room.ID, "c2")

	out, notes, err := h.engine.SendTranscript(context.Background(), SendTranscriptInput{
		RoomID: room.ID, ConnectionID: "c1", Transcript: "bonjour", DetectedLang: "en",
	})
	require.NoError(t, err)
	require.NotNil(t, out.Translated)
	assert.Equal(t, "hello", *out.Translated)
	require.NotNil(t, out.DetectedLang)
	assert.Equal(t, "fr", *out.DetectedLang)

	broadcast, ok := findNote(notes, EventSpeechTranscriptBroadcast)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"c1", "c2"}, broadcast.Recipients)
}

func TestTranscriptDetectedLanguageOnly(t *testing.T) {
	tr := translatorFunc(func(context.Context, string) (*domain.Translation, error) {
		return &domain.Translation{DetectedLang: "fr"}, nil
	})
	h := newHarness(t, withTranslator(tr, time.Second))
	room := h.createRoom(t, CreateRoomInput{Name: "Lounge"})
	h.join(t, room.ID, "c1")

	out, _, err := h.engine.SendTranscript(context.Background(), SendTranscriptInput{
		RoomID: room.ID, ConnectionID: "c1", Transcript: "bonjour", DetectedLang: "en",
	})
	require.NoError(t, err)
	assert.Nil(t, out.Translated)
	require.NotNil(t, out.DetectedLang)
	assert.Equal(t, "fr", *out.DetectedLang)
}

func TestTranscriptTranslationTimeoutFallsBack(t *testing.T) {
	tr := translatorFunc(func(ctx context.Context, _ string) (*domain.Translation, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	h := newHarness(t, withTranslator(tr, 20*time.Millisecond))
	room := h.createRoom(t, CreateRoomInput{Name: "Lounge"})
	h.join(t, room.ID, "c1")

	out, notes, err := h.engine.SendTranscript(context.Background(), SendTranscriptInput{
		RoomID: room.ID, ConnectionID: "c1", Transcript: "hola", DetectedLang: "es",
	})
	require.NoError(t, err)
	assert.Nil(t, out.Translated)
	require.NotNil(t, out.DetectedLang)
	assert.Equal(t, "es", *out.DetectedLang)
	_, ok := findNote(notes, EventSpeechTranscriptBroadcast)
	assert.True(t, ok)
}

func TestTranscriptTranslationErrorFallsBack(t *testing.T) {
	tr := translatorFunc(func(context.Context, string) (*domain.Translation, error) {
		return nil, errors.New("upstream 502")
	})
	h := newHarness(t, withTranslator(tr, time.Second))
	room := h.createRoom(t, CreateRoomInput{Name: "Lounge"})
	h.join(t, room.ID, "c1")

	out, _, err := h.engine.SendTranscript(context.Background(), SendTranscriptInput{
		RoomID: room.ID, ConnectionID: "c1", Transcript: "hi",
	})
	require.NoError(t, err)
	assert.Nil(t, out.Translated)
	assert.Nil(t, out.DetectedLang)
}

func TestTranscriptRequiresMembership(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	room := h.createRoom(t, CreateRoomInput{Name: "Lounge"})

	_, _, err := h.engine.SendTranscript(ctx, SendTranscriptInput{RoomID: room.ID, ConnectionID: "c1", Transcript: "hi"})
	assert.ErrorIs(t, err, domain.ErrNotAMember)

	h.join(t, room.ID, "c1")
	_, _, err = h.engine.SendTranscript(ctx, SendTranscriptInput{RoomID: room.ID, ConnectionID: "c1", Transcript: " "})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, _, err = h.engine.SendTranscript(ctx, SendTranscriptInput{RoomID: "missing", ConnectionID: "c1", Transcript: "hi"})
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestJoinHistoryExcludesTranscripts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	room := h.createRoom(t, CreateRoomInput{Name: "Lounge"})
	h.join(t, room.ID, "c1")

	_, _, err := h.engine.SendTranscript(ctx, SendTranscriptInput{RoomID: room.ID, ConnectionID: "c1", Transcript: "spoken"})
	require.NoError(t, err)
	_, _, err = h.engine.SendMessage(ctx, SendMessageInput{RoomID: room.ID, ConnectionID: "c1", Text: "typed"})
	require.NoError(t, err)

	res := h.join(t, room.ID, "c2")
	require.Len(t, res.Messages, 1)
	assert.Equal(t, "typed", res.Messages[0].Text)
}

func TestRelaySignal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.createRoom(t, CreateRoomInput{Name: "A"})
	b := h.createRoom(t, CreateRoomInput{Name: "B"})
	h.join(t, a.ID, "c1")
	h.join(t, a.ID, "c2")
	signal := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)

	notes := h.engine.RelaySignal(ctx, SignalInput{RoomID: a.ID, FromConnectionID: "c1", TargetConnectionID: "c2", Signal: signal})
	require.Len(t, notes, 1)
	assert.Equal(t, []string{"c2"}, notes[0].Recipients)
	assert.Equal(t, EventWebRTCSignal, notes[0].Event)
	assert.Equal(t, SignalPayload{Signal: signal, FromConnectionID: "c1"}, notes[0].Payload)

	// sender claims a room it is not in
	assert.Empty(t, h.engine.RelaySignal(ctx, SignalInput{RoomID: b.ID, FromConnectionID: "c1", TargetConnectionID: "c2", Signal: signal}))
	// unknown sender
	assert.Empty(t, h.engine.RelaySignal(ctx, SignalInput{RoomID: a.ID, FromConnectionID: "ghost", TargetConnectionID: "c2", Signal: signal}))

	_, err := h.engine.Leave(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, h.engine.RelaySignal(ctx, SignalInput{RoomID: a.ID, FromConnectionID: "c1", TargetConnectionID: "c2", Signal: signal}))
}

func TestListRoomsFilters(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.createRoom(t, CreateRoomInput{Name: "Jazz Night", Tags: []string{"music", "jazz"}})
	h.createRoom(t, CreateRoomInput{Name: "Go Study", Tags: []string{"code"}})
	h.createRoom(t, CreateRoomInput{Name: "Late night", Tags: []string{"chill"}})

	names := func(rooms []domain.RoomSummary) []string {
		out := make([]string, 0, len(rooms))
		for _, r := range rooms {
			out = append(out, r.Name)
		}
		return out
	}

	assert.Equal(t, []string{"Jazz Night", "Go Study", "Late night"}, names(h.engine.ListRooms(ctx, RoomFilter{})))
	assert.Equal(t, []string{"Jazz Night", "Late night"}, names(h.engine.ListRooms(ctx, RoomFilter{Search: "NIGHT"})))
	assert.Equal(t, []string{"Go Study", "Late night"}, names(h.engine.ListRooms(ctx, RoomFilter{Tags: []string{"Code", "chill"}})))
	assert.Equal(t, []string{"Late night"}, names(h.engine.ListRooms(ctx, RoomFilter{Search: "night", Tags: []string{"chill"}})))
	assert.Empty(t, h.engine.ListRooms(ctx, RoomFilter{Search: "nothing"}))
}

func TestQuickMatch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.engine.QuickMatch(ctx, nil)
	assert.ErrorIs(t, err, domain.ErrNoMatch)

	h.createRoom(t, CreateRoomInput{Name: "Vault", Tags: []string{"music"}, Locked: true, Password: "pw"})
	_, err = h.engine.QuickMatch(ctx, []string{"music"})
	assert.ErrorIs(t, err, domain.ErrNoMatch, "locked rooms never match")

	general := h.createRoom(t, CreateRoomInput{Name: "General", Tags: []string{"chat"}})
	music := h.createRoom(t, CreateRoomInput{Name: "Music", Tags: []string{"music"}})

	id, err := h.engine.QuickMatch(ctx, []string{"music"})
	require.NoError(t, err)
	assert.Equal(t, music.ID, id)

	id, err = h.engine.QuickMatch(ctx, []string{"sports"})
	require.NoError(t, err)
	assert.Equal(t, general.ID, id)

	id, err = h.engine.QuickMatch(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, general.ID, id)
}

func TestListTags(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	assert.Empty(t, h.engine.ListTags(ctx))

	h.createRoom(t, CreateRoomInput{Name: "A", Tags: []string{"music", "jazz"}})
	h.createRoom(t, CreateRoomInput{Name: "B", Tags: []string{"jazz", "code"}})

	assert.Equal(t, []string{"music", "jazz", "code"}, h.engine.ListTags(ctx))
}

func TestGetRoomState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	room := h.createRoom(t, CreateRoomInput{Name: "Lounge", ConnectionID: "owner"})
	h.join(t, room.ID, "owner")
	h.join(t, room.ID, "c2")

	state, err := h.engine.GetRoomState(ctx, room.ID, "owner")
	require.NoError(t, err)
	assert.True(t, state.IsOwner)
	assert.Equal(t, 2, state.MemberCount)
	require.Len(t, state.Users, 2)
	assert.Equal(t, "anonymous1", state.Users[0].AnonName)
	assert.Equal(t, "c2", state.Users[1].ConnectionID)

	state, err = h.engine.GetRoomState(ctx, room.ID, "c2")
	require.NoError(t, err)
	assert.False(t, state.IsOwner)

	_, err = h.engine.GetRoomState(ctx, "missing", "c2")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestPublishesLifecycleEvents(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	room := h.createRoom(t, CreateRoomInput{Name: "Lounge", ConnectionID: "owner"})
	h.join(t, room.ID, "owner")
	h.join(t, room.ID, "c2")
	h.join(t, room.ID, "c3")
	_, _, err := h.engine.Kick(ctx, ModerationInput{RoomID: room.ID, RequesterID: "owner", TargetConnectionID: "c2"})
	require.NoError(t, err)
	_, _, err = h.engine.Ban(ctx, ModerationInput{RoomID: room.ID, RequesterID: "owner", TargetConnectionID: "c3"})
	require.NoError(t, err)
	h.engine.CleanupConnection(ctx, "owner")

	h.clock.Advance(5 * time.Minute)
	assert.Equal(t, []string{room.ID}, h.engine.Sweep(ctx))
	assert.Empty(t, h.engine.Sweep(ctx))

	assert.Equal(t, []domain.RoomEventType{
		domain.EventRoomCreated,
		domain.EventMemberJoined,
		domain.EventMemberJoined,
		domain.EventMemberJoined,
		domain.EventMemberKicked,
		domain.EventMemberBanned,
		domain.EventMemberLeft,
		domain.EventRoomDeleted,
	}, h.publisher.types())
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, *domain.RoomAuditLog) error {
	return errors.New("broker unavailable")
}

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	h := newHarness(t, func(_ *Config, o *Options) { o.Publisher = failingPublisher{} })

	room := h.createRoom(t, CreateRoomInput{Name: "Lounge"})
	res := h.join(t, room.ID, "c1")
	assert.Equal(t, "anonymous1", res.AssignedName)
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Config{}, nil, Options{})
	assert.Error(t, err)
}
