package repository

import (
	"testing"
	"time"

	"github.com/hilthontt/murmur/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var t0 = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func newRoom(t *testing.T, id string, at time.Time) *domain.Room {
	t.Helper()
	room, err := domain.NewRoom(id, domain.NewRoomInput{Name: "room " + id, Owner: "owner"}, at,
		domain.NewBcryptHasher(bcrypt.MinCost), domain.DefaultRetention())
	require.NoError(t, err)
	return room
}

func TestCreateRejectsDuplicateID(t *testing.T) {
	s := NewRoomStore(time.Minute, time.Minute)

	require.NoError(t, s.Create(newRoom(t, "a", t0)))
	assert.ErrorIs(t, s.Create(newRoom(t, "a", t0)), domain.ErrRoomAlreadyExists)
	assert.ErrorIs(t, s.Create(nil), domain.ErrValidation)
}

func TestListKeepsInsertionOrder(t *testing.T) {
	s := NewRoomStore(time.Hour, time.Minute)
	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, s.Create(newRoom(t, id, t0)))
	}

	s.Delete("a")

	var ids []string
	for _, r := range s.List(t0) {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"c", "b"}, ids)
}

func TestExpiredRoomIsHiddenThenSwept(t *testing.T) {
	grace := 5 * time.Minute
	s := NewRoomStore(grace, time.Minute)

	empty := newRoom(t, "empty", t0)
	busy := newRoom(t, "busy", t0)
	busy.AddMember(domain.NewMember("c1", "anonymous1", t0))
	require.NoError(t, s.Create(empty))
	require.NoError(t, s.Create(busy))

	_, err := s.GetByID("empty", t0.Add(grace-time.Second))
	require.NoError(t, err)

	later := t0.Add(grace)
	_, err = s.GetByID("empty", later)
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
	assert.Len(t, s.List(later), 1)
	assert.Equal(t, 2, s.Count())

	deleted := s.Sweep(later)
	assert.Equal(t, []string{"empty"}, deleted)
	assert.Equal(t, 1, s.Count())

	_, err = s.GetByID("busy", later)
	assert.NoError(t, err)
}

func TestRoomRejoinedBeforeGraceSurvives(t *testing.T) {
	grace := 5 * time.Minute
	s := NewRoomStore(grace, time.Minute)
	room := newRoom(t, "r", t0)
	require.NoError(t, s.Create(room))

	room.AddMember(domain.NewMember("c1", "anonymous1", t0.Add(time.Minute)))

	assert.Empty(t, s.Sweep(t0.Add(time.Hour)))
}

func TestKickRecords(t *testing.T) {
	s := NewRoomStore(time.Minute, 60*time.Second)

	s.RecordKick("c1", "r1", t0)
	k := s.Kick("c1", t0.Add(59*time.Second))
	require.NotNil(t, k)
	assert.Equal(t, "r1", k.RoomID)

	s.RecordKick("c1", "r2", t0.Add(10*time.Second))
	assert.Equal(t, "r2", s.Kick("c1", t0.Add(20*time.Second)).RoomID)

	assert.Nil(t, s.Kick("c1", t0.Add(70*time.Second)))
	assert.Nil(t, s.Kick("unknown", t0))
}

func TestSweepDropsStaleKicks(t *testing.T) {
	s := NewRoomStore(time.Minute, 60*time.Second)
	s.RecordKick("old", "r1", t0)
	s.RecordKick("new", "r1", t0.Add(30*time.Second))

	s.Sweep(t0.Add(60 * time.Second))

	assert.NotContains(t, s.kicks, "old")
	assert.Contains(t, s.kicks, "new")
}

func TestSessions(t *testing.T) {
	s := NewRoomStore(0, 0)
	assert.Equal(t, DefaultKickTimeout, s.KickTimeout())

	s.PutSession("c1", &domain.Session{AnonName: "anonymous1"})
	got, ok := s.Session("c1")
	require.True(t, ok)
	assert.Equal(t, "anonymous1", got.AnonName)
	assert.Equal(t, 1, s.SessionCount())

	s.DeleteSession("c1")
	s.DeleteSession("c1")
	_, ok = s.Session("c1")
	assert.False(t, ok)
}
