package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/emotalk/backend/internal/model/chat"
	"github.com/zhouzirui/emotalk/backend/internal/service/ai"
	chatService "github.com/zhouzirui/emotalk/backend/internal/service/chat"
	"github.com/zhouzirui/emotalk/backend/pkg/utils"
)

// Relayer 抽象对话转发服务，便于测试与替换实现
type Relayer interface {
	Prepare(req ai.Request) (ai.Request, error)
	Respond(ctx context.Context, req ai.Request) (*schema.StreamReader[chat.Event], error)
	History(ctx context.Context, conversationID string) ([]chat.Turn, error)
	ClearConversation(ctx context.Context, conversationID string) error
}

// Handler 对话转发的HTTP处理器
type Handler struct {
	relay    Relayer
	upgrader websocket.Upgrader
}

// New 创建对话转发处理器
func New(relay Relayer) *Handler {
	return &Handler{
		relay: relay,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册对话相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/get_response", h.handleGetResponse)
	r.Post("/get_response", h.handleGetResponse)
	r.Get("/ws/get_response", h.handleWebSocket)
	r.Get("/conversation/{conversationID}", h.handleGetConversation)
	r.Delete("/clear_conversation/{conversationID}", h.handleClearConversation)
}

var errInvalidBody = errors.New("Invalid JSON body")

// decodeRequest reads query parameters on GET and the JSON body on POST. A
// POST without a body falls back to the query string.
func decodeRequest(r *http.Request) (ai.Request, error) {
	if r.Method != http.MethodPost || r.Body == nil || r.ContentLength == 0 {
		return requestFromQuery(r.URL.Query()), nil
	}

	var req ai.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return requestFromQuery(r.URL.Query()), nil
		}
		return ai.Request{}, errInvalidBody
	}
	return req, nil
}

func requestFromQuery(q url.Values) ai.Request {
	return ai.Request{
		Emotion:        q.Get("emotion"),
		Personality:    q.Get("personality"),
		Message:        q.Get("message"),
		ConversationID: q.Get("conversation_id"),
	}
}

// handleGetResponse 以 SSE 的形式转发大模型回复
func (h *Handler) handleGetResponse(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "Internal server error: streaming unsupported")
		return
	}

	stream, err := h.relay.Respond(r.Context(), req)
	if err != nil {
		respondRelayError(w, err)
		return
	}
	defer stream.Close()

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		ev, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			return
		}
		if recvErr != nil {
			log.Printf("[relay] unexpected stream error: %v", recvErr)
			return
		}

		if err := utils.SendSSEEvent(w, flusher, string(ev.Kind), ev.Text); err != nil {
			log.Printf("[relay] client write failed: %v", err)
			return
		}
		if ev.Terminal() {
			return
		}
	}
}

// handleGetConversation 返回已保存的对话历史
func (h *Handler) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")

	turns, err := h.relay.History(r.Context(), conversationID)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, fmt.Sprintf("Internal server error: %v", err))
		return
	}
	if turns == nil {
		utils.RespondError(w, http.StatusNotFound, "Conversation not found")
		return
	}

	utils.RespondJSON(w, http.StatusOK, chat.Conversation{ID: conversationID, Turns: turns})
}

// handleClearConversation 删除指定对话的历史
func (h *Handler) handleClearConversation(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")

	if err := h.relay.ClearConversation(r.Context(), conversationID); err != nil {
		if errors.Is(err, chatService.ErrConversationNotFound) {
			utils.RespondError(w, http.StatusNotFound, "Conversation not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, fmt.Sprintf("Internal server error: %v", err))
		return
	}

	utils.RespondMessage(w, http.StatusOK, fmt.Sprintf("Conversation %s cleared", conversationID))
}

func respondRelayError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ai.ErrEmotionRequired), errors.Is(err, ai.ErrMessageRequired):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("[relay] request failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, fmt.Sprintf("Internal server error: %v", err))
	}
}
