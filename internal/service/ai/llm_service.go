package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/simplegpt/backend/internal/config"
	"github.com/simplegpt/backend/internal/model/chat"
	"github.com/simplegpt/backend/internal/stream"
	"github.com/simplegpt/backend/pkg/logx"
)

// Service adapts an eino chat model to ChatProvider.
type Service struct {
	chatModel model.BaseChatModel
	name      string
}

// NewService wraps chatModel. name is the model identifier reported in logs.
func NewService(chatModel model.BaseChatModel, name string) *Service {
	return &Service{chatModel: chatModel, name: name}
}

// NewArkChatModel 使用配置创建一个 Ark 模型实例。
func NewArkChatModel(ctx context.Context, c config.AIConfig, defaults config.ChatConfig) (model.BaseChatModel, error) {
	if c.Provider != config.ProviderArk || !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + ARK_MODEL 或 AK/SK 组合")
	}

	temperature := defaults.Temperature
	topP := defaults.TopP
	maxTokens := defaults.MaxTokens

	return ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:     c.ArkBaseURL,
		Region:      c.ArkRegion,
		APIKey:      c.ArkAPIKey,
		AccessKey:   c.ArkAccessKey,
		SecretKey:   c.ArkSecretKey,
		Model:       c.ArkModel,
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
		TopP:        &topP,
	})
}

// NewGeminiChatModel creates a Gemini chat model through the genai client.
func NewGeminiChatModel(ctx context.Context, c config.AIConfig, defaults config.ChatConfig) (model.BaseChatModel, error) {
	if c.Provider != config.ProviderGemini || !c.Enabled() {
		return nil, errors.New("gemini requires GEMINI_API_KEY and GEMINI_MODEL")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  c.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if c.GeminiBaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = c.GeminiBaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	temperature := defaults.Temperature
	maxTokens := defaults.MaxTokens
	return gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       c.GeminiModel,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	})
}

// Complete runs a single generation.
func (s *Service) Complete(ctx context.Context, req Request) (string, error) {
	resp, err := s.chatModel.Generate(ctx, toSchemaMessages(req.Messages), callOptions(req)...)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	if resp == nil {
		return "", ErrNoResponse
	}

	logx.Debug().Str("model", s.modelName(req)).Int("length", len(resp.Content)).Msg("ai: generated response")
	return resp.Content, nil
}

// Stream streams the generation as text fragments.
func (s *Service) Stream(ctx context.Context, req Request) (stream.ReadCloser, error) {
	sr, err := s.chatModel.Stream(ctx, toSchemaMessages(req.Messages), callOptions(req)...)
	if err != nil {
		return nil, fmt.Errorf("stream: %w", err)
	}
	return &messageStream{sr: sr}, nil
}

func (s *Service) modelName(req Request) string {
	if req.Model != "" {
		return req.Model
	}
	return s.name
}

func callOptions(req Request) []model.Option {
	var opts []model.Option
	if req.Model != "" {
		opts = append(opts, model.WithModel(req.Model))
	}
	if req.Temperature > 0 {
		opts = append(opts, model.WithTemperature(req.Temperature))
	}
	if req.TopP > 0 {
		opts = append(opts, model.WithTopP(req.TopP))
	}
	if req.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(req.MaxTokens))
	}
	return opts
}

// toSchemaMessages converts provider messages. Images become MultiContent
// parts ahead of the text part.
func toSchemaMessages(messages []Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		m := &schema.Message{Role: schemaRole(msg.Role), Content: msg.Text}
		if len(msg.Images) > 0 {
			parts := make([]schema.ChatMessagePart, 0, len(msg.Images)+1)
			for _, img := range msg.Images {
				parts = append(parts, schema.ChatMessagePart{
					Type: schema.ChatMessagePartTypeImageURL,
					ImageURL: &schema.ChatMessageImageURL{
						URL:    img.URL,
						Detail: imageDetail(img.Detail),
					},
				})
			}
			parts = append(parts, schema.ChatMessagePart{Type: schema.ChatMessagePartTypeText, Text: msg.Text})
			m.Content = ""
			m.MultiContent = parts
		}
		out = append(out, m)
	}
	return out
}

func schemaRole(role chat.Role) schema.RoleType {
	switch role {
	case chat.RoleSystem:
		return schema.System
	case chat.RoleAssistant:
		return schema.Assistant
	default:
		return schema.User
	}
}

func imageDetail(d chat.ImageDetail) schema.ImageURLDetail {
	switch d {
	case chat.DetailLow:
		return schema.ImageURLDetailLow
	case chat.DetailHigh:
		return schema.ImageURLDetailHigh
	default:
		return schema.ImageURLDetailAuto
	}
}

// messageStream adapts an eino stream reader to stream.ReadCloser.
type messageStream struct {
	sr   *schema.StreamReader[*schema.Message]
	done bool
}

func (m *messageStream) Next() (string, error) {
	for !m.done {
		msg, err := m.sr.Recv()
		if errors.Is(err, io.EOF) {
			m.done = true
			break
		}
		if err != nil {
			return "", err
		}
		if msg == nil {
			continue
		}
		if msg.ResponseMeta != nil && strings.EqualFold(msg.ResponseMeta.FinishReason, "stop") {
			m.done = true
		}
		if msg.Content != "" {
			return msg.Content, nil
		}
	}
	return "", io.EOF
}

func (m *messageStream) Close() error {
	m.sr.Close()
	return nil
}
