package stream

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/simplegpt/backend/internal/apperr"
	"github.com/simplegpt/backend/internal/model/chat"
	chatService "github.com/simplegpt/backend/internal/service/chat"
	"github.com/simplegpt/backend/internal/stream"
	"github.com/simplegpt/backend/pkg/logx"
	"github.com/simplegpt/backend/pkg/utils"
)

// StreamService 打开一次流式对话
type StreamService interface {
	Stream(ctx context.Context, req chat.ChatRequest) (stream.ReadCloser, error)
}

// Handler relays provider fragments to the client as they arrive.
type Handler struct {
	svc    StreamService
	format stream.Format
	ws     *WebSocketHandler
}

// New creates a new stream handler writing fragments in format.
func New(svc StreamService, format stream.Format) *Handler {
	return &Handler{svc: svc, format: format, ws: NewWebSocketHandler(svc)}
}

// RegisterRoutes 注册流式路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat-stream", h.handleChatStream)
	r.Get("/chat-ws", h.ws.handleWebSocket)
}

// handleChatStream streams the reply. Failures before the first byte are
// answered with a JSON envelope; failures after that abort the connection
// so the client sees a broken transfer instead of a clean end.
func (h *Handler) handleChatStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondJSON(w, http.StatusInternalServerError, chat.ChatResponse{Error: apperr.APIError.ServerError()})
		return
	}

	var req chat.ChatRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondJSON(w, http.StatusOK, chat.ChatResponse{Error: apperr.BadRequest.ServerError()})
		return
	}

	body, err := h.svc.Stream(r.Context(), req)
	if err != nil {
		utils.RespondJSON(w, http.StatusOK, errorResponse(err))
		return
	}
	defer body.Close()

	utils.SetupStreamHeaders(w, h.format)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	out := utils.NewFragmentWriter(w, flusher, h.format)
	count := 0
	for fragment, err := range stream.Fragments(body) {
		if err != nil {
			logx.Error().Err(err).Int("fragments", count).Msg("provider stream failed")
			panic(http.ErrAbortHandler)
		}
		if err := out.Write(fragment); err != nil {
			logx.Warn().Err(err).Msg("client went away")
			return
		}
		count++
	}

	if err := out.Finish(); err != nil {
		logx.Warn().Err(err).Msg("failed to finish stream")
		return
	}
	logx.Debug().Int("fragments", count).Str("format", string(h.format)).Msg("stream completed")
}

// errorResponse 将错误映射为响应信封
func errorResponse(err error) chat.ChatResponse {
	var verr *chatService.ValidationError
	if errors.As(err, &verr) {
		return chat.ChatResponse{Error: apperr.BadRequest.ServerError(), ValidationErrors: verr.Errors}
	}
	logx.Error().Err(err).Msg("open stream failed")
	return chat.ChatResponse{Error: apperr.As(err, apperr.APIError).ServerError()}
}
