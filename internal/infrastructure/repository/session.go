package repository

import (
	"time"

	"github.com/hilthontt/murmur/internal/domain"
)

func (s *RoomStore) Session(connectionID string) (*domain.Session, bool) {
	session, ok := s.sessions[connectionID]
	return session, ok
}

func (s *RoomStore) PutSession(connectionID string, session *domain.Session) {
	s.sessions[connectionID] = session
}

func (s *RoomStore) DeleteSession(connectionID string) {
	delete(s.sessions, connectionID)
}

func (s *RoomStore) SessionCount() int {
	return len(s.sessions)
}

// RecordKick stores the kick, replacing any earlier kick of the same connection.
func (s *RoomStore) RecordKick(connectionID, roomID string, at time.Time) {
	s.kicks[connectionID] = domain.KickRecord{RoomID: roomID, KickedAt: at}
}

// Kick returns the still active kick record for a connection, or nil.
func (s *RoomStore) Kick(connectionID string, now time.Time) *domain.KickRecord {
	k, ok := s.kicks[connectionID]
	if !ok {
		return nil
	}
	if k.Expired(now, s.kickTimeout) {
		delete(s.kicks, connectionID)
		return nil
	}
	return &k
}

func (s *RoomStore) DeleteKick(connectionID string) {
	delete(s.kicks, connectionID)
}
