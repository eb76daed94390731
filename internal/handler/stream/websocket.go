package stream

import (
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"github.com/simplegpt/backend/internal/apperr"
	"github.com/simplegpt/backend/internal/model/chat"
	"github.com/simplegpt/backend/internal/stream"
	"github.com/simplegpt/backend/pkg/logx"
)

const (
	wsReadTimeout  = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
)

// WebSocketHandler streams replies over a WebSocket: one request message in,
// one text message per fragment out, then a normal close.
type WebSocketHandler struct {
	svc      StreamService
	upgrader websocket.Upgrader
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(svc StreamService) *WebSocketHandler {
	return &WebSocketHandler{
		svc: svc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  4096,
			WriteBufferSize: 1024,
		},
	}
}

func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logx.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		logx.Warn().Err(err).Msg("websocket read failed")
		return
	}

	var req chat.ChatRequest
	if err := sonic.Unmarshal(data, &req); err != nil {
		h.sendEnvelope(conn, chat.ChatResponse{Error: apperr.BadRequest.ServerError()})
		return
	}

	body, err := h.svc.Stream(r.Context(), req)
	if err != nil {
		h.sendEnvelope(conn, errorResponse(err))
		return
	}
	defer body.Close()

	for fragment, err := range stream.Fragments(body) {
		if err != nil {
			logx.Error().Err(err).Msg("provider stream failed")
			h.close(conn, websocket.CloseInternalServerErr, "Server error")
			return
		}
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, []byte(fragment)); err != nil {
			logx.Warn().Err(err).Msg("websocket write failed")
			return
		}
	}

	h.close(conn, websocket.CloseNormalClosure, "")
}

// sendEnvelope 发送错误信封并关闭连接
func (h *WebSocketHandler) sendEnvelope(conn *websocket.Conn, resp chat.ChatResponse) {
	data, err := sonic.Marshal(resp)
	if err != nil {
		logx.Error().Err(err).Msg("failed to marshal websocket envelope")
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return
	}
	h.close(conn, websocket.CloseNormalClosure, "")
}

func (h *WebSocketHandler) close(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteTimeout))
}
