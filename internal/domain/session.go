package domain

import "time"

// Session is the per-connection identity record. AnonName is stable for the
// lifetime of the connection; CurrentRoomID is empty when outside any room.
type Session struct {
	AnonName      string
	CurrentRoomID string
}

func (s *Session) InRoom() bool {
	return s != nil && s.CurrentRoomID != ""
}

// KickRecord marks a temporary suspension from a single room.
type KickRecord struct {
	RoomID   string
	KickedAt time.Time
}

// ActiveFor reports whether the suspension still applies to roomID at now.
func (k *KickRecord) ActiveFor(roomID string, now time.Time, timeout time.Duration) bool {
	if k == nil || k.RoomID != roomID {
		return false
	}
	return now.Sub(k.KickedAt) < timeout
}

// Expired reports whether the suspension has run its course.
func (k *KickRecord) Expired(now time.Time, timeout time.Duration) bool {
	return k == nil || now.Sub(k.KickedAt) >= timeout
}
