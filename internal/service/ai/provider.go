// Package ai defines the provider-neutral chat, image and model-listing
// contracts the backend proxies to, plus an eino-backed chat provider.
package ai

import (
	"context"
	"errors"

	"github.com/simplegpt/backend/internal/model/chat"
	"github.com/simplegpt/backend/internal/stream"
)

var (
	// ErrNoResponse means the provider answered without any choice.
	ErrNoResponse = errors.New("provider returned no choices")
	// ErrUnsupported is returned by providers that lack a capability.
	ErrUnsupported = errors.New("operation not supported by provider")
)

// Message is one provider-bound message. Role may be system, user or assistant.
type Message struct {
	Role   chat.Role
	Text   string
	Images []chat.MessageImage
}

// Request is a chat completion request.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float32
	TopP        float32
	N           int
	MaxTokens   int
}

// ImageRequest asks for generated images.
type ImageRequest struct {
	Prompt string
	Model  string
	Size   string
	N      int
}

// ChatProvider produces assistant replies.
type ChatProvider interface {
	// Complete returns the first choice's text.
	Complete(ctx context.Context, req Request) (string, error)
	// Stream returns the reply as ordered fragments. The caller must close it.
	Stream(ctx context.Context, req Request) (stream.ReadCloser, error)
}

// ImageGenerator turns a prompt into image URLs.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req ImageRequest) ([]string, error)
}

// ModelLister reports the model identifiers a provider offers.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// StaticModels is a ModelLister over a fixed list.
type StaticModels []string

// ListModels returns a copy of the list.
func (m StaticModels) ListModels(context.Context) ([]string, error) {
	return append([]string{}, m...), nil
}

// NoImages rejects every image request.
type NoImages struct{}

func (NoImages) GenerateImage(context.Context, ImageRequest) ([]string, error) {
	return nil, ErrUnsupported
}
