// Package chat is the backend proxy: it validates chat and image requests,
// applies server defaults and forwards them to the configured provider.
package chat

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/simplegpt/backend/internal/apperr"
	"github.com/simplegpt/backend/internal/model/chat"
	"github.com/simplegpt/backend/internal/service/ai"
	"github.com/simplegpt/backend/internal/stream"
	"github.com/simplegpt/backend/pkg/logx"
)

const invalidValue = "Invalid value"

// Options are the server-side defaults applied to every request.
type Options struct {
	DefaultModel         string
	DefaultImageModel    string
	DefaultSystemMessage string
	Temperature          float32
	TopP                 float32
	MaxTokens            int
	ImageSize            string
	// VisionModels are model name prefixes that accept image input.
	VisionModels []string
	// MaxContextTokens caps system message plus history; 0 disables it.
	MaxContextTokens int
}

// ValidationError reports the request fields that failed validation.
type ValidationError struct {
	Errors []chat.ValidationError
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Errors))
	for _, v := range e.Errors {
		fields = append(fields, v.Field)
	}
	return "invalid request: " + strings.Join(fields, ", ")
}

// Service encapsulates the proxy logic.
type Service struct {
	chat    ai.ChatProvider
	images  ai.ImageGenerator
	opts    Options
	counter TokenCounter
}

// Option customises a Service.
type Option func(*Service)

// WithTokenCounter overrides the tokenizer used for the context budget.
func WithTokenCounter(c TokenCounter) Option {
	return func(s *Service) { s.counter = c }
}

// NewService wires the proxy to its providers. A tokenizer is only loaded
// when a context budget is configured.
func NewService(provider ai.ChatProvider, images ai.ImageGenerator, opts Options, options ...Option) (*Service, error) {
	if images == nil {
		images = ai.NoImages{}
	}
	s := &Service{chat: provider, images: images, opts: opts}
	for _, o := range options {
		o(s)
	}

	if opts.MaxContextTokens > 0 && s.counter == nil {
		counter, err := NewTokenCounter(opts.DefaultModel)
		if err != nil {
			return nil, err
		}
		s.counter = counter
	}
	return s, nil
}

// ValidateChat checks a chat request. The messages field must be present;
// an empty array is accepted.
func ValidateChat(req chat.ChatRequest) []chat.ValidationError {
	if req.Messages == nil {
		return []chat.ValidationError{{Field: "messages", Message: invalidValue}}
	}
	return nil
}

// ValidateImage checks an image generation request.
func ValidateImage(req chat.ImageGenerationRequest) []chat.ValidationError {
	if strings.TrimSpace(req.Prompt) == "" {
		return []chat.ValidationError{{Field: "prompt", Message: invalidValue}}
	}
	return nil
}

// Complete forwards req and returns the assistant reply.
func (s *Service) Complete(ctx context.Context, req chat.ChatRequest) (*chat.ChatMessage, error) {
	if errs := ValidateChat(req); errs != nil {
		return nil, &ValidationError{Errors: errs}
	}

	content, err := s.chat.Complete(ctx, s.BuildRequest(req))
	if err != nil {
		return nil, providerError(err)
	}
	return &chat.ChatMessage{Role: chat.RoleAssistant, Content: content, Images: []chat.MessageImage{}}, nil
}

// Stream forwards req and returns the reply as fragments.
func (s *Service) Stream(ctx context.Context, req chat.ChatRequest) (stream.ReadCloser, error) {
	if errs := ValidateChat(req); errs != nil {
		return nil, &ValidationError{Errors: errs}
	}

	rc, err := s.chat.Stream(ctx, s.BuildRequest(req))
	if err != nil {
		return nil, providerError(err)
	}
	return rc, nil
}

// GenerateImage forwards an image request and returns the first image.
func (s *Service) GenerateImage(ctx context.Context, req chat.ImageGenerationRequest) (*chat.Image, error) {
	if errs := ValidateImage(req); errs != nil {
		return nil, &ValidationError{Errors: errs}
	}

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = s.opts.DefaultImageModel
	}

	urls, err := s.images.GenerateImage(ctx, ai.ImageRequest{
		Prompt: req.Prompt,
		Model:  model,
		Size:   s.opts.ImageSize,
		N:      1,
	})
	if err != nil {
		return nil, providerError(err)
	}
	if len(urls) == 0 || urls[0] == "" {
		return nil, apperr.NoResponse.Wrap(ai.ErrNoResponse)
	}
	return &chat.Image{URL: urls[0]}, nil
}

// BuildRequest applies defaults and shapes the provider request: the system
// message first, then the user and assistant messages that carry content.
func (s *Service) BuildRequest(req chat.ChatRequest) ai.Request {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = s.opts.DefaultModel
	}
	system := strings.TrimSpace(req.SystemMessage)
	if system == "" {
		system = s.opts.DefaultSystemMessage
	}

	vision := s.SupportsVision(model)
	history := make([]ai.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		if !m.Role.Valid() || m.Content == "" {
			continue
		}
		msg := ai.Message{Role: m.Role, Text: m.Content}
		if len(m.Images) > 0 {
			if vision {
				msg.Images = slices.Clone(m.Images)
			} else {
				logx.Debug().Str("model", model).Int("images", len(m.Images)).Msg("dropping images for non-vision model")
			}
		}
		history = append(history, msg)
	}
	history = s.fitBudget(system, history)

	messages := make([]ai.Message, 0, len(history)+1)
	messages = append(messages, ai.Message{Role: chat.RoleSystem, Text: system})
	messages = append(messages, history...)

	return ai.Request{
		Model:       model,
		Messages:    messages,
		Temperature: s.opts.Temperature,
		TopP:        s.opts.TopP,
		N:           1,
		MaxTokens:   s.opts.MaxTokens,
	}
}

// SupportsVision reports whether model accepts image input.
func (s *Service) SupportsVision(model string) bool {
	model = strings.ToLower(model)
	for _, prefix := range s.opts.VisionModels {
		prefix = strings.ToLower(strings.TrimSpace(prefix))
		if prefix != "" && strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

// fitBudget drops the oldest messages until the system message and history
// fit MaxContextTokens. The newest message is always kept.
func (s *Service) fitBudget(system string, history []ai.Message) []ai.Message {
	if s.opts.MaxContextTokens <= 0 || s.counter == nil || len(history) == 0 {
		return history
	}

	costs := make([]int, len(history))
	total := s.counter.Count(system)
	for i, m := range history {
		costs[i] = s.counter.Count(m.Text)
		total += costs[i]
	}

	start := 0
	for total > s.opts.MaxContextTokens && start < len(history)-1 {
		total -= costs[start]
		start++
	}
	if start > 0 {
		logx.Debug().Int("dropped", start).Int("tokens", total).Msg("trimmed history to context budget")
	}
	return history[start:]
}

// providerError maps provider failures onto the response taxonomy.
func providerError(err error) error {
	switch {
	case errors.Is(err, ai.ErrNoResponse):
		return apperr.NoResponse.Wrap(err)
	default:
		return apperr.APIError.Wrap(fmt.Errorf("provider: %w", err))
	}
}
