package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zhouzirui/emotalk/backend/internal/model/chat"
)

var (
	ErrConversationIDRequired = errors.New("conversation id is required")
	ErrConversationNotFound   = errors.New("conversation not found")
)

// Store keeps conversation histories keyed by conversation id.
type Store interface {
	// History returns the stored turns in append order, or nil when the id is unknown.
	History(ctx context.Context, conversationID string) ([]chat.Turn, error)
	// Append adds turns to the conversation, creating it when absent.
	Append(ctx context.Context, conversationID string, turns ...chat.Turn) error
	// Delete removes the whole conversation. Unknown ids yield ErrConversationNotFound.
	Delete(ctx context.Context, conversationID string) error
}

// Service is the in-memory Store. Histories grow without bound and live until
// deleted or the process exits.
type Service struct {
	mu    sync.RWMutex
	turns map[string][]chat.Turn
}

var _ Store = (*Service)(nil)

// NewService bootstraps an empty in-memory history store.
func NewService() *Service {
	return &Service{
		turns: make(map[string][]chat.Turn),
	}
}

// History returns a copy of the stored turns for conversationID.
func (s *Service) History(_ context.Context, conversationID string) ([]chat.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns, ok := s.turns[conversationID]
	if !ok {
		return nil, nil
	}

	copied := make([]chat.Turn, len(turns))
	copy(copied, turns)
	return copied, nil
}

// Append stamps and appends turns atomically with respect to other Append calls.
func (s *Service) Append(_ context.Context, conversationID string, turns ...chat.Turn) error {
	if conversationID == "" {
		return ErrConversationIDRequired
	}

	now := time.Now().UTC()
	stamped := make([]chat.Turn, 0, len(turns))
	for _, turn := range turns {
		if turn.ID == "" {
			turn.ID = uuid.NewString()
		}
		if turn.CreatedAt.IsZero() {
			turn.CreatedAt = now
		}
		stamped = append(stamped, turn)
	}

	s.mu.Lock()
	s.turns[conversationID] = append(s.turns[conversationID], stamped...)
	s.mu.Unlock()
	return nil
}

// Delete drops the conversation history.
func (s *Service) Delete(_ context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.turns[conversationID]; !ok {
		return ErrConversationNotFound
	}
	delete(s.turns, conversationID)
	return nil
}

// Len reports how many conversations are stored.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}
