package repository

import (
	"time"

	"github.com/hilthontt/murmur/internal/domain"
)

const (
	DefaultEmptyRoomGrace = 5 * time.Minute
	DefaultKickTimeout    = 60 * time.Second
)

// RoomStore holds every room, session and kick record of the process.
//
// It performs no locking of its own: the engine owns the store and serialises
// all access under its mutex. Expiry is lazy; expired rooms and kicks are
// hidden from reads and physically removed by Sweep.
type RoomStore struct {
	rooms    map[string]*domain.Room // ID -> Room
	order    []string                // insertion order of room IDs
	sessions map[string]*domain.Session
	kicks    map[string]domain.KickRecord // connection ID -> last kick

	emptyRoomGrace time.Duration
	kickTimeout    time.Duration
}

func NewRoomStore(emptyRoomGrace, kickTimeout time.Duration) *RoomStore {
	if emptyRoomGrace <= 0 {
		emptyRoomGrace = DefaultEmptyRoomGrace
	}
	if kickTimeout <= 0 {
		kickTimeout = DefaultKickTimeout
	}

	return &RoomStore{
		rooms:          make(map[string]*domain.Room),
		order:          make([]string, 0),
		sessions:       make(map[string]*domain.Session),
		kicks:          make(map[string]domain.KickRecord),
		emptyRoomGrace: emptyRoomGrace,
		kickTimeout:    kickTimeout,
	}
}

func (s *RoomStore) KickTimeout() time.Duration {
	return s.kickTimeout
}

// Create adds a room. The ID must be unused, including by an expired room not yet swept.
func (s *RoomStore) Create(room *domain.Room) error {
	if room == nil || room.ID == "" {
		return domain.ErrValidation
	}
	if _, exists := s.rooms[room.ID]; exists {
		return domain.ErrRoomAlreadyExists
	}

	s.rooms[room.ID] = room
	s.order = append(s.order, room.ID)
	return nil
}

// GetByID returns a live room.
func (s *RoomStore) GetByID(id string, now time.Time) (*domain.Room, error) {
	room, exists := s.rooms[id]
	if !exists || room.Expired(now, s.emptyRoomGrace) {
		return nil, domain.ErrRoomNotFound
	}
	return room, nil
}

// List returns live rooms in creation order.
func (s *RoomStore) List(now time.Time) []*domain.Room {
	out := make([]*domain.Room, 0, len(s.order))
	for _, id := range s.order {
		if room := s.rooms[id]; !room.Expired(now, s.emptyRoomGrace) {
			out = append(out, room)
		}
	}
	return out
}

func (s *RoomStore) Delete(id string) {
	if _, exists := s.rooms[id]; !exists {
		return
	}
	delete(s.rooms, id)
	for i, rid := range s.order {
		if rid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Count reports stored rooms, expired-but-unswept included.
func (s *RoomStore) Count() int {
	return len(s.rooms)
}

// Sweep deletes rooms that stayed empty past the grace period and drops
// stale kick records. It returns the IDs of the deleted rooms.
func (s *RoomStore) Sweep(now time.Time) []string {
	var deleted []string

	kept := s.order[:0]
	for _, id := range s.order {
		if s.rooms[id].Expired(now, s.emptyRoomGrace) {
			delete(s.rooms, id)
			deleted = append(deleted, id)
			continue
		}
		kept = append(kept, id)
	}
	// clear the tail so removed IDs are not retained by the backing array
	clear(s.order[len(kept):])
	s.order = kept

	for connID, k := range s.kicks {
		if k.Expired(now, s.kickTimeout) {
			delete(s.kicks, connID)
		}
	}

	return deleted
}
