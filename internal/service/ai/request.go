package ai

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	ErrEmotionRequired = errors.New("Emotion is required")
	ErrMessageRequired = errors.New("Message is required")
)

// Request carries one relay exchange as sent by the client.
type Request struct {
	Emotion        string `json:"emotion"`
	Personality    string `json:"personality"`
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
}

// Normalize trims the identifying fields and fills the optional ones; Message
// is kept verbatim. A missing conversation id falls back to the current time
// in seconds, so two clients starting in the same microsecond share a history.
func (r Request) Normalize(defaultPersonality string, now time.Time) Request {
	r.Emotion = strings.TrimSpace(r.Emotion)
	r.Personality = strings.TrimSpace(r.Personality)
	r.ConversationID = strings.TrimSpace(r.ConversationID)

	if r.Personality == "" {
		r.Personality = defaultPersonality
	}
	if r.ConversationID == "" {
		r.ConversationID = TimestampID(now)
	}
	return r
}

// Validate checks the required fields, emotion first.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Emotion) == "" {
		return ErrEmotionRequired
	}
	if strings.TrimSpace(r.Message) == "" {
		return ErrMessageRequired
	}
	return nil
}

// TimestampID renders t as fractional unix seconds, e.g. "1718000000.123456".
func TimestampID(t time.Time) string {
	return strconv.FormatFloat(float64(t.UnixMicro())/1e6, 'f', -1, 64)
}
