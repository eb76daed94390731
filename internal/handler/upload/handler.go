package upload

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/simplegpt/backend/internal/apperr"
	"github.com/simplegpt/backend/internal/model/chat"
	"github.com/simplegpt/backend/pkg/logx"
	"github.com/simplegpt/backend/pkg/utils"
)

// formField 是上传表单中图片字段的名字
const formField = "image"

// UploadService 是处理器依赖的上传服务
type UploadService interface {
	Enabled() bool
	MaxBytes() int64
	Upload(ctx context.Context, filename, contentType string, body io.Reader) (*chat.ImageUpload, error)
}

// Handler 图片上传的HTTP处理器
type Handler struct {
	svc UploadService
}

// New 创建上传处理器
func New(svc UploadService) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes 注册上传相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/config/upload", h.handleConfig)
	r.Post("/upload", h.handleUpload)
}

func (h *Handler) handleConfig(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, chat.ImageUploadConfig{Enabled: h.svc.Enabled()})
}

// handleUpload 接收 multipart 表单中的图片并写入对象存储
func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if !h.svc.Enabled() {
		respondError(w, apperr.UploadNotConfigured)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.svc.MaxBytes())
	file, header, err := r.FormFile(formField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			logx.Warn().Int64("limit", tooLarge.Limit).Msg("upload exceeds size limit")
		}
		respondError(w, apperr.MissingFile)
		return
	}
	defer file.Close()

	upload, err := h.svc.Upload(r.Context(), header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		respondError(w, apperr.As(err, apperr.UploadFailed))
		return
	}

	utils.RespondJSON(w, http.StatusOK, chat.ImageUploadResponse{Data: upload})
}

func respondError(w http.ResponseWriter, err *apperr.Error) {
	utils.RespondJSON(w, err.Status, chat.ImageUploadResponse{Error: err.ServerError()})
}
