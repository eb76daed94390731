package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/simplegpt/backend/internal/config"
	"github.com/simplegpt/backend/internal/handler"
	"github.com/simplegpt/backend/internal/model/prompt"
	"github.com/simplegpt/backend/internal/service/ai"
	"github.com/simplegpt/backend/internal/service/chat"
	"github.com/simplegpt/backend/internal/service/models"
	"github.com/simplegpt/backend/internal/service/openai"
	"github.com/simplegpt/backend/internal/service/upload"
	"github.com/simplegpt/backend/pkg/logx"
	redispkg "github.com/simplegpt/backend/pkg/redis"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to load configuration")
	}
	logx.Init(logx.Options{Production: cfg.Production(), Level: cfg.LogLevel})
	if envErr != nil {
		logx.Debug().Err(envErr).Msg("no .env file, continuing with system environment variables only")
	}

	provider, images, lister, err := newProvider(ctx, cfg)
	if err != nil {
		logx.Fatal().Err(err).Str("provider", cfg.AI.Provider).Msg("failed to initialize AI provider")
	}
	if !cfg.AI.Enabled() {
		logx.Warn().Str("provider", cfg.AI.Provider).Msg("AI 凭证未配置，请求将以 openai-api 错误返回")
	}

	prompts := prompt.NewMemoryStore(prompt.Seed())
	chatSvc, err := chat.NewService(provider, images, chat.Options{
		DefaultModel:         cfg.Chat.DefaultModel,
		DefaultImageModel:    cfg.Chat.DefaultImageModel,
		DefaultSystemMessage: prompt.Resolve(prompts, cfg.Chat.DefaultSystemPrompt),
		Temperature:          cfg.Chat.Temperature,
		TopP:                 cfg.Chat.TopP,
		MaxTokens:            cfg.Chat.MaxTokens,
		ImageSize:            cfg.Chat.ImageSize,
		VisionModels:         cfg.Chat.VisionModels,
		MaxContextTokens:     cfg.Chat.MaxContextTokens,
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to initialize chat service")
	}

	modelSvc := models.NewService(lister, newModelsCache(ctx, cfg.Redis))
	uploadSvc := newUploadService(cfg.Upload)

	router := handler.NewRouter(chatSvc, modelSvc, prompts, uploadSvc, handler.Options{
		CORSOrigins:  cfg.Server.CORSOrigins,
		StreamFormat: cfg.Chat.Format,
	})

	startServer(ctx, cfg.Server, router)
}

// newProvider 根据 AI_PROVIDER 选择对话、图片与模型列表的实现。
func newProvider(ctx context.Context, cfg *config.Config) (ai.ChatProvider, ai.ImageGenerator, ai.ModelLister, error) {
	var (
		chatModel model.BaseChatModel
		name      string
		err       error
	)

	switch cfg.AI.Provider {
	case config.ProviderArk:
		name = cfg.AI.ArkModel
		chatModel, err = ai.NewArkChatModel(ctx, cfg.AI, cfg.Chat)
	case config.ProviderGemini:
		name = cfg.AI.GeminiModel
		chatModel, err = ai.NewGeminiChatModel(ctx, cfg.AI, cfg.Chat)
	default:
		client := openai.New(openai.Config{
			APIKey:  cfg.AI.OpenAIKey,
			BaseURL: cfg.AI.OpenAIBaseURL,
			Timeout: cfg.AI.Timeout,
		})
		return client, client, client, nil
	}
	if err != nil {
		return nil, nil, nil, err
	}

	// Ark 与 Gemini 只暴露配置的单个模型，不支持图片生成。
	return ai.NewService(chatModel, name), ai.NoImages{}, ai.StaticModels{name}, nil
}

// newModelsCache 配置了 REDIS_URL 时使用 Redis，连接失败则退回进程内缓存。
func newModelsCache(ctx context.Context, cfg config.RedisConfig) models.Cache {
	if !cfg.Enabled() {
		return models.NewMemoryCache(cfg.CacheTTL)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rc := redispkg.Config{URL: cfg.URL}
	rdb, err := rc.New(pingCtx)
	if err != nil {
		logx.Warn().Err(err).Msg("redis unavailable, caching models in memory")
		return models.NewMemoryCache(cfg.CacheTTL)
	}

	logx.Info().Str("prefix", cfg.KeyPrefix).Dur("ttl", cfg.CacheTTL).Msg("caching models in redis")
	return models.NewRedisCache(rdb, cfg.KeyPrefix, cfg.CacheTTL)
}

func newUploadService(cfg config.UploadConfig) *upload.Service {
	if !cfg.Enabled() {
		logx.Info().Msg("S3 凭证未配置，图片上传已禁用")
		return upload.NewService(nil, cfg)
	}

	logx.Info().Str("bucket", cfg.Bucket).Str("endpoint", cfg.EndpointURL).Msg("image uploads enabled")
	return upload.NewService(upload.NewS3Uploader(cfg), cfg)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logx.Info().Str("addr", addr).Msg("SimpleGPT backend listening")
	if err := runServer(ctx, srv); err != nil {
		logx.Fatal().Err(err).Msg("server error")
	}
	logx.Info().Msg("server stopped")
}

// runServer serves until ctx is cancelled, then drains in-flight requests.
func runServer(ctx context.Context, srv *http.Server) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
