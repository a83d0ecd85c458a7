package domain

import "time"

// Member is one connection's presence inside a room.
type Member struct {
	ConnectionID string    `json:"socketId"`
	AnonName     string    `json:"anonName"`
	JoinedAt     time.Time `json:"joinedAt"`
}

func NewMember(connectionID, anonName string, joinedAt time.Time) Member {
	return Member{
		ConnectionID: connectionID,
		AnonName:     anonName,
		JoinedAt:     joinedAt,
	}
}
