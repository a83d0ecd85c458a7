package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/hilthontt/murmur/internal/application/engine"
	"github.com/hilthontt/murmur/internal/domain"
	"github.com/hilthontt/murmur/internal/infrastructure/logging"
	"github.com/hilthontt/murmur/internal/infrastructure/validate"
)

// RoomEngine is the set of engine operations reachable over the socket.
type RoomEngine interface {
	CreateRoom(ctx context.Context, input engine.CreateRoomInput) (domain.RoomSummary, []engine.Notification, error)
	ListRooms(ctx context.Context, filter engine.RoomFilter) []domain.RoomSummary
	QuickMatch(ctx context.Context, preferredTags []string) (string, error)
	Join(ctx context.Context, input engine.JoinInput) (*engine.JoinResult, []engine.Notification, error)
	Leave(ctx context.Context, connectionID string) ([]engine.Notification, error)
	SendMessage(ctx context.Context, input engine.SendMessageInput) (domain.Message, []engine.Notification, error)
	SendTranscript(ctx context.Context, input engine.SendTranscriptInput) (engine.TranscriptBroadcast, []engine.Notification, error)
	Kick(ctx context.Context, input engine.ModerationInput) (string, []engine.Notification, error)
	Ban(ctx context.Context, input engine.ModerationInput) (string, []engine.Notification, error)
	GetRoomState(ctx context.Context, roomID, viewer string) (*engine.RoomState, error)
	ListTags(ctx context.Context) []string
	RelaySignal(ctx context.Context, input engine.SignalInput) []engine.Notification
	CleanupConnection(ctx context.Context, connectionID string) []engine.Notification
}

type handlerFunc func(ctx context.Context, connID string, env Envelope) (any, []engine.Notification, error)

// Dispatcher maps inbound events onto engine operations.
type Dispatcher struct {
	engine   RoomEngine
	logger   logging.Logger
	handlers map[string]handlerFunc
}

func NewDispatcher(e RoomEngine, logger logging.Logger) *Dispatcher {
	d := &Dispatcher{engine: e, logger: logger}
	d.handlers = map[string]handlerFunc{
		CreateRoom:       d.createRoom,
		GetRooms:         d.getRooms,
		QuickJoin:        d.quickJoin,
		JoinRoom:         d.joinRoom,
		LeaveRoom:        d.leaveRoom,
		SendMessage:      d.sendMessage,
		SpeechTranscript: d.speechTranscript,
		KickUser:         d.kickUser,
		BanUser:          d.banUser,
		GetRoomState:     d.getRoomState,
		GetTags:          d.getTags,
		WebRTCSignal:     d.webrtcSignal,
	}
	return d
}

// Dispatch runs one inbound event and returns its acknowledgement together
// with the notifications the hub must deliver. It never panics on bad input.
func (d *Dispatcher) Dispatch(ctx context.Context, connID string, env Envelope) (AckPayload, []engine.Notification) {
	handler, ok := d.handlers[env.Type]
	if !ok {
		return AckPayload{Success: false, Error: "unknown event " + env.Type, Code: domain.CodeValidation}, nil
	}

	data, notes, err := handler(ctx, connID, env)
	if err != nil {
		return d.errorAck(connID, env.Type, err), nil
	}
	return AckPayload{Success: true, Data: data}, notes
}

// Cleanup tears down a closed connection.
func (d *Dispatcher) Cleanup(ctx context.Context, connID string) []engine.Notification {
	return d.engine.CleanupConnection(ctx, connID)
}

func (d *Dispatcher) errorAck(connID, event string, err error) AckPayload {
	code := domain.ErrorCode(err)
	ack := AckPayload{Success: false, Error: err.Error(), Code: code}

	var rl *domain.RateLimitedError
	if errors.As(err, &rl) {
		ack.RetryAfter = int(math.Ceil(rl.RetryAfter.Seconds()))
	}

	if code == domain.CodeInternal {
		d.logger.Error(logging.WebSocket, logging.Dispatch, "event failed", map[logging.ExtraKey]any{
			logging.ConnectionID: connID,
			logging.EventType:    event,
			logging.ErrorMessage: err.Error(),
		})
		ack.Error = "internal error"
	}
	return ack
}

func decode(env Envelope, v any) error {
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("%w: malformed %s payload: %v", domain.ErrValidation, env.Type, err)
	}
	return nil
}

func roomIDOr(id string, env Envelope) string {
	if id != "" {
		return id
	}
	return env.RoomID
}

func (d *Dispatcher) createRoom(ctx context.Context, connID string, env Envelope) (any, []engine.Notification, error) {
	var req createRoomRequest
	if err := decode(env, &req); err != nil {
		return nil, nil, err
	}

	room, notes, err := d.engine.CreateRoom(ctx, engine.CreateRoomInput{
		Name:         req.Name,
		Tags:         req.Tags,
		Locked:       req.Locked,
		Password:     req.Password,
		ConnectionID: connID,
	})
	if err != nil {
		return nil, nil, err
	}
	return roomResponse{Room: room}, notes, nil
}

func (d *Dispatcher) getRooms(ctx context.Context, _ string, env Envelope) (any, []engine.Notification, error) {
	var req getRoomsRequest
	if err := decode(env, &req); err != nil {
		return nil, nil, err
	}
	return roomsResponse{Rooms: d.engine.ListRooms(ctx, engine.RoomFilter{Search: req.Search, Tags: req.Tags})}, nil, nil
}

func (d *Dispatcher) quickJoin(ctx context.Context, _ string, env Envelope) (any, []engine.Notification, error) {
	var req quickJoinRequest
	if err := decode(env, &req); err != nil {
		return nil, nil, err
	}
	roomID, err := d.engine.QuickMatch(ctx, req.Tags)
	if err != nil {
		return nil, nil, err
	}
	return quickJoinResponse{RoomID: roomID}, nil, nil
}

func (d *Dispatcher) joinRoom(ctx context.Context, connID string, env Envelope) (any, []engine.Notification, error) {
	var req joinRoomRequest
	if err := decode(env, &req); err != nil {
		return nil, nil, err
	}
	res, notes, err := d.engine.Join(ctx, engine.JoinInput{
		RoomID:       roomIDOr(req.RoomID, env),
		ConnectionID: connID,
		Password:     req.Password,
	})
	if err != nil {
		return nil, nil, err
	}
	return res, notes, nil
}

func (d *Dispatcher) leaveRoom(ctx context.Context, connID string, _ Envelope) (any, []engine.Notification, error) {
	notes, err := d.engine.Leave(ctx, connID)
	return nil, notes, err
}

func (d *Dispatcher) sendMessage(ctx context.Context, connID string, env Envelope) (any, []engine.Notification, error) {
	var req sendMessageRequest
	if err := decode(env, &req); err != nil {
		return nil, nil, err
	}

	text := strings.TrimSpace(req.Text)
	if err := domain.ValidateMessageText(text); err != nil {
		return nil, nil, err
	}

	msg, notes, err := d.engine.SendMessage(ctx, engine.SendMessageInput{
		RoomID:       roomIDOr(req.RoomID, env),
		ConnectionID: connID,
		Text:         validate.EscapeHTML(text),
		ClientTempID: req.ClientTempID,
	})
	if err != nil {
		return nil, nil, err
	}
	return messageResponse{Message: msg}, notes, nil
}

func (d *Dispatcher) speechTranscript(ctx context.Context, connID string, env Envelope) (any, []engine.Notification, error) {
	var req transcriptRequest
	if err := decode(env, &req); err != nil {
		return nil, nil, err
	}

	out, notes, err := d.engine.SendTranscript(ctx, engine.SendTranscriptInput{
		RoomID:       roomIDOr(req.RoomID, env),
		ConnectionID: connID,
		Transcript:   req.Transcript,
		DetectedLang: req.DetectedLang,
	})
	if err != nil {
		return nil, nil, err
	}
	return transcriptResponse{TranscriptID: out.ID}, notes, nil
}

func (d *Dispatcher) kickUser(ctx context.Context, connID string, env Envelope) (any, []engine.Notification, error) {
	var req moderationRequest
	if err := decode(env, &req); err != nil {
		return nil, nil, err
	}
	name, notes, err := d.engine.Kick(ctx, engine.ModerationInput{
		RoomID:             roomIDOr(req.RoomID, env),
		RequesterID:        connID,
		TargetConnectionID: req.TargetSocketID,
	})
	if err != nil {
		return nil, nil, err
	}
	return kickResponse{KickedUser: name}, notes, nil
}

func (d *Dispatcher) banUser(ctx context.Context, connID string, env Envelope) (any, []engine.Notification, error) {
	var req moderationRequest
	if err := decode(env, &req); err != nil {
		return nil, nil, err
	}
	name, notes, err := d.engine.Ban(ctx, engine.ModerationInput{
		RoomID:             roomIDOr(req.RoomID, env),
		RequesterID:        connID,
		TargetConnectionID: req.TargetSocketID,
	})
	if err != nil {
		return nil, nil, err
	}
	return banResponse{BannedUser: name}, notes, nil
}

func (d *Dispatcher) getRoomState(ctx context.Context, connID string, env Envelope) (any, []engine.Notification, error) {
	var req roomStateRequest
	if err := decode(env, &req); err != nil {
		return nil, nil, err
	}
	state, err := d.engine.GetRoomState(ctx, roomIDOr(req.RoomID, env), connID)
	if err != nil {
		return nil, nil, err
	}
	return roomStateResponse{Room: state}, nil, nil
}

func (d *Dispatcher) getTags(ctx context.Context, _ string, _ Envelope) (any, []engine.Notification, error) {
	return tagsResponse{Tags: d.engine.ListTags(ctx)}, nil, nil
}

func (d *Dispatcher) webrtcSignal(ctx context.Context, connID string, env Envelope) (any, []engine.Notification, error) {
	var req signalRequest
	if err := decode(env, &req); err != nil {
		return nil, nil, err
	}
	notes := d.engine.RelaySignal(ctx, engine.SignalInput{
		RoomID:             roomIDOr(req.RoomID, env),
		FromConnectionID:   connID,
		TargetConnectionID: req.TargetSocketID,
		Signal:             req.Signal,
	})
	return nil, notes, nil
}
