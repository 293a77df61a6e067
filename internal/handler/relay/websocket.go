package relay

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zhouzirui/emotalk/backend/internal/model/chat"
)

const wsWriteTimeout = 10 * time.Second

// handleWebSocket streams the same events as /get_response as JSON text frames
// {"event": ..., "data": ...} and closes after the terminal event.
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	req, err := h.relay.Prepare(requestFromQuery(r.URL.Query()))
	if err != nil {
		respondRelayError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// 读循环只用于感知客户端断开
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	stream, err := h.relay.Respond(ctx, req)
	if err != nil {
		_ = writeEvent(conn, chat.Event{Kind: chat.EventError, Text: err.Error()})
		return
	}
	defer stream.Close()

	for {
		ev, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			log.Printf("[ws] unexpected stream error, conversation=%s: %v", req.ConversationID, recvErr)
			return
		}

		if err := writeEvent(conn, ev); err != nil {
			log.Printf("[ws] write failed, conversation=%s: %v", req.ConversationID, err)
			return
		}
		if ev.Terminal() {
			break
		}
	}

	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(time.Second))
}

func writeEvent(conn *websocket.Conn, ev chat.Event) error {
	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(ev)
}
