package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/zhouzirui/emotalk/backend/internal/model/chat"
	"github.com/zhouzirui/emotalk/backend/internal/model/persona"
	chatService "github.com/zhouzirui/emotalk/backend/internal/service/chat"
)

// Config tunes the relay.
type Config struct {
	// HistoryLimit is how many stored turns are sent along with the new message.
	HistoryLimit int
	// MaxTokens caps the model reply.
	MaxTokens int
	// TokenDelay paces consecutive message events.
	TokenDelay         time.Duration
	DefaultPersonality string
}

// Service relays user messages to the chat model and streams the reply back.
type Service struct {
	personas persona.Store
	history  chatService.Store
	locks    *chatService.Locker
	cfg      Config
	chain    compose.Runnable[map[string]any, *schema.Message]
	now      func() time.Time
}

// NewService compiles the relay chain around chatModel.
func NewService(ctx context.Context, chatModel model.BaseChatModel, history chatService.Store, personas persona.Store, cfg Config) (*Service, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}
	if history == nil {
		return nil, errors.New("history store is required")
	}
	if cfg.DefaultPersonality == "" {
		cfg.DefaultPersonality = persona.DefaultID
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile relay chain: %w", err)
	}

	return &Service{
		personas: personas,
		history:  history,
		locks:    chatService.NewLocker(),
		cfg:      cfg,
		chain:    runnable,
		now:      time.Now,
	}, nil
}

// Prepare normalizes and validates req.
func (s *Service) Prepare(req Request) (Request, error) {
	req = req.Normalize(s.cfg.DefaultPersonality, s.now())
	if err := req.Validate(); err != nil {
		return Request{}, err
	}
	return req, nil
}

// Respond starts one exchange and returns its event stream. The stream ends
// with exactly one complete or error event. History is appended only after a
// complete reply; closing the reader or cancelling ctx abandons the exchange.
func (s *Service) Respond(ctx context.Context, req Request) (*schema.StreamReader[chat.Event], error) {
	req, err := s.Prepare(req)
	if err != nil {
		return nil, err
	}

	reader, writer := schema.Pipe[chat.Event](1)
	go s.relay(ctx, req, writer)
	return reader, nil
}

// History exposes the stored turns of a conversation.
func (s *Service) History(ctx context.Context, conversationID string) ([]chat.Turn, error) {
	return s.history.History(ctx, conversationID)
}

// ClearConversation removes the stored history of conversationID.
func (s *Service) ClearConversation(ctx context.Context, conversationID string) error {
	release, err := s.locks.Acquire(ctx, conversationID)
	if err != nil {
		return err
	}
	defer release()

	if err := s.history.Delete(ctx, conversationID); err != nil {
		return err
	}
	log.Printf("[history] cleared conversation=%s", conversationID)
	return nil
}

func (s *Service) relay(ctx context.Context, req Request, w *schema.StreamWriter[chat.Event]) {
	defer w.Close()

	release, err := s.locks.Acquire(ctx, req.ConversationID)
	if err != nil {
		log.Printf("[relay] abandoned before start, conversation=%s: %v", req.ConversationID, err)
		return
	}
	defer release()

	turns, err := s.history.History(ctx, req.ConversationID)
	if err != nil {
		sendError(w, fmt.Errorf("failed to load conversation: %w", err))
		return
	}

	stream, err := s.chain.Stream(ctx, s.buildChainInput(req, turns),
		compose.WithChatModelOption(model.WithMaxTokens(s.cfg.MaxTokens)))
	if err != nil {
		log.Printf("[relay] stream failed, conversation=%s: %v", req.ConversationID, err)
		sendError(w, err)
		return
	}
	defer stream.Close()

	var full strings.Builder
	fragments := 0
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			log.Printf("[relay] stream interrupted, conversation=%s fragments=%d: %v", req.ConversationID, fragments, recvErr)
			sendError(w, recvErr)
			return
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}

		full.WriteString(chunk.Content)
		fragments++
		if closed := w.Send(chat.Event{Kind: chat.EventMessage, Text: chunk.Content}, nil); closed {
			log.Printf("[relay] client went away, conversation=%s fragments=%d", req.ConversationID, fragments)
			return
		}
		if !s.pause(ctx) {
			log.Printf("[relay] cancelled, conversation=%s fragments=%d", req.ConversationID, fragments)
			return
		}
	}

	if err := ctx.Err(); err != nil {
		log.Printf("[relay] cancelled before commit, conversation=%s: %v", req.ConversationID, err)
		return
	}

	if err := s.history.Append(ctx, req.ConversationID, chat.UserTurn(req.Message), chat.AssistantTurn(full.String())); err != nil {
		sendError(w, fmt.Errorf("failed to save conversation: %w", err))
		return
	}

	w.Send(chat.Event{Kind: chat.EventComplete, Text: chat.CompleteText}, nil)
	log.Printf("[relay] completed conversation=%s fragments=%d length=%d", req.ConversationID, fragments, full.Len())
}

func (s *Service) pause(ctx context.Context) bool {
	if s.cfg.TokenDelay <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(s.cfg.TokenDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func sendError(w *schema.StreamWriter[chat.Event], err error) {
	w.Send(chat.Event{Kind: chat.EventError, Text: fmt.Sprintf("Error generating response: %v", err)}, nil)
}

func (s *Service) buildChainInput(req Request, turns []chat.Turn) map[string]any {
	var preset *persona.Persona
	if s.personas != nil {
		if p, ok := s.personas.FindByID(req.Personality); ok {
			preset = &p
		}
	}

	return map[string]any{
		"system":  BuildSystemPrompt(req.Emotion, req.Personality, preset),
		"history": s.buildHistoryMessages(turns),
		"query":   req.Message,
	}
}

func (s *Service) buildHistoryMessages(turns []chat.Turn) []*schema.Message {
	limit := s.cfg.HistoryLimit
	if len(turns) == 0 || limit <= 0 {
		return nil
	}

	startIdx := 0
	if len(turns) > limit {
		startIdx = len(turns) - limit
	}

	history := make([]*schema.Message, 0, len(turns)-startIdx)
	for _, turn := range turns[startIdx:] {
		switch turn.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(turn.Content))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(turn.Content, nil))
		}
	}

	return history
}
