package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/simplegpt/backend/internal/handler/chat"
	"github.com/simplegpt/backend/internal/handler/stream"
	"github.com/simplegpt/backend/internal/handler/upload"
	middlewarePkg "github.com/simplegpt/backend/internal/middleware"
	"github.com/simplegpt/backend/internal/model/prompt"
	streamfmt "github.com/simplegpt/backend/internal/stream"
	"github.com/simplegpt/backend/pkg/logx"
)

// ChatAPI 同时满足一次性对话与流式对话两个处理器
type ChatAPI interface {
	chat.ChatService
	stream.StreamService
}

// Options 控制路由行为
type Options struct {
	CORSOrigins  []string
	StreamFormat streamfmt.Format
}

// NewRouter wires HTTP routes to core services.
func NewRouter(chatSvc ChatAPI, models chat.ModelService, prompts prompt.Store, uploads upload.UploadService, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.AccessLog(logx.Logger()))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(opts.CORSOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	chat.New(chatSvc, models, prompts).RegisterRoutes(r)
	stream.New(chatSvc, opts.StreamFormat).RegisterRoutes(r)
	upload.New(uploads).RegisterRoutes(r)

	return r
}
