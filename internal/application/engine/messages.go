package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hilthontt/murmur/internal/domain"
	"github.com/hilthontt/murmur/internal/infrastructure/logging"
	"go.opentelemetry.io/otel/attribute"
)

type SendMessageInput struct {
	RoomID       string
	ConnectionID string
	// Text must already be length checked and HTML escaped.
	Text         string
	ClientTempID string
}

type SendTranscriptInput struct {
	RoomID       string
	ConnectionID string
	Transcript   string
	DetectedLang string
}

type SignalInput struct {
	RoomID             string
	FromConnectionID   string
	TargetConnectionID string
	Signal             json.RawMessage
}

// SendMessage stores a chat line and broadcasts it to the whole room,
// sender included. The per-connection rate limit is checked first.
func (e *Engine) SendMessage(ctx context.Context, input SendMessageInput) (msg domain.Message, notes []Notification, err error) {
	_, finish := e.start(ctx, "send_message", attribute.String("murmur.room_id", input.RoomID))
	defer func() { finish(err) }()

	if ok, retryAfter := e.limiter.Allow(input.ConnectionID); !ok {
		e.metrics.RateLimited()
		e.logger.Warn(logging.General, logging.RateLimiting, "message rate limit exceeded", map[logging.ExtraKey]any{
			logging.ConnectionID: input.ConnectionID,
			logging.RetryAfter:   retryAfter.String(),
		})
		return domain.Message{}, nil, &domain.RateLimitedError{RetryAfter: retryAfter}
	}

	id, err := e.itemIDs()
	if err != nil {
		return domain.Message{}, nil, fmt.Errorf("failed to generate message id: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	room, err := e.store.GetByID(input.RoomID, now)
	if err != nil {
		return domain.Message{}, nil, err
	}

	author, ok := room.FindMember(input.ConnectionID)
	if !ok {
		return domain.Message{}, nil, domain.ErrNotAMember
	}

	msg, err = domain.NewMessage(id, author, input.Text, input.ClientTempID, now)
	if err != nil {
		return domain.Message{}, nil, err
	}
	room.AppendMessage(msg)
	e.metrics.ItemStored("message")

	notes = appendToRoom(nil, room, "", EventMessage, MessagePayload{RoomID: room.ID, Message: msg})
	return msg, notes, nil
}

// SendTranscript stores a speech caption and broadcasts it to the room. When
// a translator is configured it is consulted outside the lock with a bounded
// timeout; any failure leaves the broadcast untranslated.
func (e *Engine) SendTranscript(ctx context.Context, input SendTranscriptInput) (out TranscriptBroadcast, notes []Notification, err error) {
	ctx, finish := e.start(ctx, "speech_transcript", attribute.String("murmur.room_id", input.RoomID))
	defer func() { finish(err) }()

	id, err := e.itemIDs()
	if err != nil {
		return TranscriptBroadcast{}, nil, fmt.Errorf("failed to generate transcript id: %w", err)
	}

	e.mu.Lock()
	now := e.now()
	room, err := e.store.GetByID(input.RoomID, now)
	if err != nil {
		e.mu.Unlock()
		return TranscriptBroadcast{}, nil, err
	}

	author, ok := room.FindMember(input.ConnectionID)
	if !ok {
		e.mu.Unlock()
		return TranscriptBroadcast{}, nil, domain.ErrNotAMember
	}

	item, err := domain.NewTranscriptItem(id, author, input.Transcript, input.DetectedLang, now)
	if err != nil {
		e.mu.Unlock()
		return TranscriptBroadcast{}, nil, err
	}
	room.AppendTranscript(item)
	e.metrics.ItemStored("transcript")
	e.mu.Unlock()

	out = TranscriptBroadcast{
		ID:           item.ID,
		From:         item.From,
		ConnectionID: item.ConnectionID,
		Transcript:   item.Transcript,
		DetectedLang: item.DetectedLang,
		Timestamp:    item.Timestamp,
	}
	if tr := e.translate(ctx, item.Transcript); tr != nil {
		if tr.Translated != "" {
			translated := tr.Translated
			out.Translated = &translated
		}
		if tr.DetectedLang != "" {
			lang := tr.DetectedLang
			out.DetectedLang = &lang
		}
	}

	// membership may have changed while translating
	e.mu.RLock()
	if room, err := e.store.GetByID(input.RoomID, e.now()); err == nil {
		notes = appendToRoom(nil, room, "", EventSpeechTranscriptBroadcast, TranscriptPayload{
			RoomID:     input.RoomID,
			Transcript: out,
		})
	}
	e.mu.RUnlock()

	return out, notes, nil
}

func (e *Engine) translate(ctx context.Context, text string) *domain.Translation {
	if e.translator == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.TranslationTimeout)
	defer cancel()

	start := time.Now()
	tr, err := e.translator.Translate(ctx, text)
	e.metrics.Translation(time.Since(start), err == nil)
	if err != nil {
		e.logger.Warn(logging.General, logging.ExternalService, "translation failed, sending untranslated", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
		return nil
	}
	return tr
}

// RelaySignal forwards an opaque WebRTC payload to one connection. It is
// dropped unless the sender currently sits in roomID.
func (e *Engine) RelaySignal(ctx context.Context, input SignalInput) []Notification {
	_, finish := e.start(ctx, "webrtc_signal", attribute.String("murmur.room_id", input.RoomID))
	defer finish(nil)

	e.mu.RLock()
	session, ok := e.store.Session(input.FromConnectionID)
	inRoom := ok && session.InRoom() && session.CurrentRoomID == input.RoomID
	e.mu.RUnlock()

	if !inRoom || input.TargetConnectionID == "" {
		return nil
	}

	return []Notification{toConnection(input.TargetConnectionID, EventWebRTCSignal, input.RoomID, SignalPayload{
		Signal:           input.Signal,
		FromConnectionID: input.FromConnectionID,
	})}
}
