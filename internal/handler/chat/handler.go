package chat

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/simplegpt/backend/internal/apperr"
	"github.com/simplegpt/backend/internal/model/chat"
	"github.com/simplegpt/backend/internal/model/prompt"
	chatService "github.com/simplegpt/backend/internal/service/chat"
	"github.com/simplegpt/backend/pkg/logx"
	"github.com/simplegpt/backend/pkg/utils"
)

// ChatService 是处理器依赖的代理服务
type ChatService interface {
	Complete(ctx context.Context, req chat.ChatRequest) (*chat.ChatMessage, error)
	GenerateImage(ctx context.Context, req chat.ImageGenerationRequest) (*chat.Image, error)
}

// ModelService 提供模型列表
type ModelService interface {
	List(ctx context.Context) ([]string, error)
}

// Handler 聊天服务的HTTP处理器
type Handler struct {
	chatSvc ChatService
	models  ModelService
	prompts prompt.Store
}

// New 创建聊天处理器
func New(chatSvc ChatService, models ModelService, prompts prompt.Store) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		models:  models,
		prompts: prompts,
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/models", h.handleListModels)
	r.Get("/prompts", h.handleListPrompts)
	r.Post("/chat", h.handleChat)
	r.Post("/image", h.handleImage)
}

// handleListModels 列出可用模型；失败时返回空列表和错误
func (h *Handler) handleListModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.models.List(r.Context())
	if err != nil {
		appErr := apperr.As(err, apperr.APIError)
		logx.Error().Err(err).Msg("list models failed")
		utils.RespondJSON(w, http.StatusOK, chat.ModelsResponse{Models: []string{}, Error: appErr.ServerError()})
		return
	}
	utils.RespondJSON(w, http.StatusOK, chat.ModelsResponse{Models: models})
}

// handleListPrompts 列出系统提示词预设
func (h *Handler) handleListPrompts(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.prompts.List())
}

// handleChat 转发一次完整的对话请求
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chat.ChatRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondJSON(w, http.StatusOK, chat.ChatResponse{Error: apperr.BadRequest.ServerError()})
		return
	}

	msg, err := h.chatSvc.Complete(r.Context(), req)
	if err != nil {
		appErr, validation := classify(err, apperr.APIError)
		if validation == nil {
			logx.Error().Err(err).Msg("chat failed")
		}
		utils.RespondJSON(w, appErr.Status, chat.ChatResponse{Error: appErr.ServerError(), ValidationErrors: validation})
		return
	}

	utils.RespondJSON(w, http.StatusOK, chat.ChatResponse{Data: msg})
}

// handleImage 转发图片生成请求
func (h *Handler) handleImage(w http.ResponseWriter, r *http.Request) {
	var req chat.ImageGenerationRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondJSON(w, http.StatusOK, chat.ImageGenerationResponse{Error: apperr.BadRequest.ServerError()})
		return
	}

	img, err := h.chatSvc.GenerateImage(r.Context(), req)
	if err != nil {
		appErr, validation := classify(err, apperr.APIError)
		if validation == nil {
			logx.Error().Err(err).Msg("image generation failed")
		}
		utils.RespondJSON(w, appErr.Status, chat.ImageGenerationResponse{Error: appErr.ServerError(), ValidationErrors: validation})
		return
	}

	utils.RespondJSON(w, http.StatusOK, chat.ImageGenerationResponse{Data: img})
}

// classify 将服务错误映射为响应错误码；校验失败时附带字段错误
func classify(err error, fallback *apperr.Error) (*apperr.Error, []chat.ValidationError) {
	var verr *chatService.ValidationError
	if errors.As(err, &verr) {
		return apperr.BadRequest, verr.Errors
	}
	return apperr.As(err, fallback), nil
}
