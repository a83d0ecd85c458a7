package domain

import (
	"strings"
	"time"

	"github.com/hilthontt/murmur/internal/infrastructure/validate"
)

const MaxMessageLength = 1000

var validateMessageText = validate.Field("text",
	validate.Required(),
	validate.MaxLength(MaxMessageLength),
)

// Message is an immutable chat line. Text is stored already sanitized.
type Message struct {
	ID           string    `json:"id"`
	From         string    `json:"from"`
	Text         string    `json:"text"`
	Timestamp    time.Time `json:"timestamp"`
	ConnectionID string    `json:"socketId"`
	ClientTempID string    `json:"clientTempId,omitempty"`
}

// TranscriptItem is an immutable speech caption.
type TranscriptItem struct {
	ID           string    `json:"id"`
	From         string    `json:"from"`
	ConnectionID string    `json:"socketId"`
	Transcript   string    `json:"transcript"`
	DetectedLang *string   `json:"detectedLang"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewMessage expects text that already passed ValidateMessageText and sanitization,
// which may have grown it past MaxMessageLength, so only emptiness is checked here.
func NewMessage(id string, author Member, text, clientTempID string, now time.Time) (Message, error) {
	if strings.TrimSpace(text) == "" {
		return Message{}, validationError("message text is required")
	}
	return Message{
		ID:           id,
		From:         author.AnonName,
		Text:         text,
		Timestamp:    now,
		ConnectionID: author.ConnectionID,
		ClientTempID: clientTempID,
	}, nil
}

func NewTranscriptItem(id string, author Member, transcript, detectedLang string, now time.Time) (TranscriptItem, error) {
	if strings.TrimSpace(transcript) == "" {
		return TranscriptItem{}, validationError("missing transcript")
	}

	var lang *string
	if detectedLang != "" {
		lang = &detectedLang
	}

	return TranscriptItem{
		ID:           id,
		From:         author.AnonName,
		ConnectionID: author.ConnectionID,
		Transcript:   transcript,
		DetectedLang: lang,
		Timestamp:    now,
	}, nil
}

// ValidateMessageText enforces the non-empty and length rules for chat text.
func ValidateMessageText(text string) error {
	if err := validateMessageText(text); err != nil {
		return validationError("%v", err)
	}
	return nil
}

// Translation is the optional enrichment attached to a transcript broadcast.
type Translation struct {
	Translated   string `json:"translated"`
	DetectedLang string `json:"detectedLang"`
}
