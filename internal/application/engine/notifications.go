package engine

import (
	"encoding/json"
	"time"

	"github.com/hilthontt/murmur/internal/domain"
)

// Event names pushed to clients.
const (
	EventRoomList                  = "room_list"
	EventUserJoined                = "user_joined"
	EventUserLeft                  = "user_left"
	EventRoomMessages              = "room_messages"
	EventMessage                   = "message"
	EventSpeechTranscriptBroadcast = "speech_transcript_broadcast"
	EventKicked                    = "kicked"
	EventUserKicked                = "user_kicked"
	EventBanned                    = "banned"
	EventUserBanned                = "user_banned"
	EventWebRTCSignal              = "webrtc_signal"
)

type Scope int

const (
	// ScopeConnections targets the listed connections only.
	ScopeConnections Scope = iota
	// ScopeAll targets every open connection.
	ScopeAll
)

// Notification is a side effect the transport must deliver. Room-wide
// notifications are resolved to the member list at the moment they were produced.
type Notification struct {
	Scope      Scope
	Recipients []string
	Event      string
	RoomID     string
	Payload    any
}

type UserRef struct {
	AnonName     string `json:"anonName"`
	ConnectionID string `json:"socketId"`
}

type RoomListPayload struct {
	Rooms []domain.RoomSummary `json:"rooms"`
}

type PresencePayload struct {
	RoomID string  `json:"roomId"`
	User   UserRef `json:"user"`
}

type RoomMessagesPayload struct {
	RoomID   string           `json:"roomId"`
	Messages []domain.Message `json:"messages"`
}

type MessagePayload struct {
	RoomID  string         `json:"roomId"`
	Message domain.Message `json:"message"`
}

// TranscriptBroadcast is a stored transcript plus its optional translation.
type TranscriptBroadcast struct {
	ID           string    `json:"id"`
	From         string    `json:"from"`
	ConnectionID string    `json:"socketId"`
	Transcript   string    `json:"transcript"`
	DetectedLang *string   `json:"detectedLang"`
	Translated   *string   `json:"translated"`
	Timestamp    time.Time `json:"timestamp"`
}

type TranscriptPayload struct {
	RoomID     string              `json:"roomId"`
	Transcript TranscriptBroadcast `json:"transcript"`
}

type RemovedPayload struct {
	RoomID string `json:"roomId"`
	Reason string `json:"reason"`
}

type ModerationPayload struct {
	RoomID string `json:"roomId"`
	User   string `json:"user"`
}

type SignalPayload struct {
	Signal           json.RawMessage `json:"signal"`
	FromConnectionID string          `json:"fromSocketId"`
}

func toConnection(connectionID, event, roomID string, payload any) Notification {
	return Notification{
		Scope:      ScopeConnections,
		Recipients: []string{connectionID},
		Event:      event,
		RoomID:     roomID,
		Payload:    payload,
	}
}

func toEveryone(event string, payload any) Notification {
	return Notification{Scope: ScopeAll, Event: event, Payload: payload}
}

// toRoom addresses the current members of room, minus exclude. Caller holds mu.
func toRoom(room *domain.Room, exclude, event string, payload any) (Notification, bool) {
	members := room.Members()
	recipients := make([]string, 0, len(members))
	for _, m := range members {
		if m.ConnectionID != exclude {
			recipients = append(recipients, m.ConnectionID)
		}
	}
	n := Notification{
		Scope:      ScopeConnections,
		Recipients: recipients,
		Event:      event,
		RoomID:     room.ID,
		Payload:    payload,
	}
	return n, len(recipients) > 0
}

func appendToRoom(out []Notification, room *domain.Room, exclude, event string, payload any) []Notification {
	if n, ok := toRoom(room, exclude, event, payload); ok {
		out = append(out, n)
	}
	return out
}
