package ws

import (
	"encoding/json"

	"github.com/hilthontt/murmur/internal/application/engine"
	"github.com/hilthontt/murmur/internal/domain"
)

// Envelope is an inbound client event.
type Envelope struct {
	Type      string          `json:"type"`
	RequestID string          `json:"requestId,omitempty"`
	RoomID    string          `json:"roomId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// WSMessage is everything written to a client.
type WSMessage struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId,omitempty"`
	RoomID    string `json:"roomId,omitempty"`
	Data      any    `json:"data"`
}

// AckPayload answers exactly one request, correlated by requestId.
type AckPayload struct {
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
	Code       string `json:"code,omitempty"`
	RetryAfter int    `json:"retryAfter,omitempty"`
	Data       any    `json:"data,omitempty"`
}

type ConnectedPayload struct {
	ConnectionID string `json:"socketId"`
}

// Request payloads
type createRoomRequest struct {
	Name     string   `json:"name"`
	Tags     []string `json:"tags"`
	Locked   bool     `json:"locked"`
	Password string   `json:"password"`
}

type getRoomsRequest struct {
	Search string   `json:"search"`
	Tags   []string `json:"tags"`
}

type quickJoinRequest struct {
	Tags []string `json:"tags"`
}

type joinRoomRequest struct {
	RoomID   string `json:"roomId"`
	Password string `json:"password"`
}

type sendMessageRequest struct {
	RoomID       string `json:"roomId"`
	Text         string `json:"text"`
	ClientTempID string `json:"clientTempId"`
}

type transcriptRequest struct {
	RoomID       string `json:"roomId"`
	Transcript   string `json:"transcript"`
	DetectedLang string `json:"detectedLang"`
}

type moderationRequest struct {
	RoomID         string `json:"roomId"`
	TargetSocketID string `json:"targetSocketId"`
}

type roomStateRequest struct {
	RoomID string `json:"roomId"`
}

type signalRequest struct {
	RoomID         string          `json:"roomId"`
	TargetSocketID string          `json:"targetSocketId"`
	Signal         json.RawMessage `json:"signal"`
}

// Response payloads
type roomResponse struct {
	Room domain.RoomSummary `json:"room"`
}

type roomsResponse struct {
	Rooms []domain.RoomSummary `json:"rooms"`
}

type quickJoinResponse struct {
	RoomID string `json:"roomId"`
}

type messageResponse struct {
	Message domain.Message `json:"message"`
}

type transcriptResponse struct {
	TranscriptID string `json:"transcriptId"`
}

type kickResponse struct {
	KickedUser string `json:"kickedUser"`
}

type banResponse struct {
	BannedUser string `json:"bannedUser"`
}

type roomStateResponse struct {
	Room *engine.RoomState `json:"room"`
}

type tagsResponse struct {
	Tags []string `json:"tags"`
}

func newAck(requestID string, ack AckPayload) *WSMessage {
	return &WSMessage{
		Type:      Ack,
		RequestID: requestID,
		Data:      ack,
	}
}

func newConnected(connectionID string) *WSMessage {
	return &WSMessage{
		Type: Connected,
		Data: ConnectedPayload{ConnectionID: connectionID},
	}
}

func fromNotification(n engine.Notification) *WSMessage {
	return &WSMessage{
		Type:   n.Event,
		RoomID: n.RoomID,
		Data:   n.Payload,
	}
}
