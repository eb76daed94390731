package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simplegpt/backend/internal/apperr"
	"github.com/simplegpt/backend/internal/model/chat"
	"github.com/simplegpt/backend/internal/service/ai"
	"github.com/simplegpt/backend/internal/stream"
)

type fakeProvider struct {
	last    ai.Request
	reply   string
	err     error
	images  []string
	lastImg ai.ImageRequest
}

func (f *fakeProvider) Complete(_ context.Context, req ai.Request) (string, error) {
	f.last = req
	return f.reply, f.err
}

func (f *fakeProvider) Stream(_ context.Context, req ai.Request) (stream.ReadCloser, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return stream.WithCloser(stream.NewRawReader(strings.NewReader(f.reply)), io.NopCloser(nil)), nil
}

func (f *fakeProvider) GenerateImage(_ context.Context, req ai.ImageRequest) ([]string, error) {
	f.lastImg = req
	return f.images, f.err
}

// wordCounter counts whitespace separated words.
type wordCounter struct{}

func (wordCounter) Count(text string) int { return len(strings.Fields(text)) }

func testOptions() Options {
	return Options{
		DefaultModel:         "gpt-3.5-turbo",
		DefaultImageModel:    "dall-e-2",
		DefaultSystemMessage: "You are helpful.",
		Temperature:          0.9,
		TopP:                 1,
		MaxTokens:            1000,
		ImageSize:            "1024x1024",
		VisionModels:         []string{"gpt-4o", "gpt-4-vision"},
	}
}

func newTestService(t *testing.T, provider *fakeProvider, opts Options) *Service {
	t.Helper()
	svc, err := NewService(provider, provider, opts, WithTokenCounter(wordCounter{}))
	require.NoError(t, err)
	return svc
}

func TestValidateChat(t *testing.T) {
	errs := ValidateChat(chat.ChatRequest{})
	require.Len(t, errs, 1)
	assert.Equal(t, chat.ValidationError{Field: "messages", Message: "Invalid value"}, errs[0])

	assert.Empty(t, ValidateChat(chat.ChatRequest{Messages: []chat.ChatMessage{}}))
}

func TestValidateImage(t *testing.T) {
	assert.Len(t, ValidateImage(chat.ImageGenerationRequest{Prompt: "  "}), 1)
	assert.Empty(t, ValidateImage(chat.ImageGenerationRequest{Prompt: "a cat"}))
}

func TestBuildRequestDefaultsAndFiltering(t *testing.T) {
	svc := newTestService(t, &fakeProvider{}, testOptions())

	req := svc.BuildRequest(chat.ChatRequest{
		Model:         "  ",
		SystemMessage: "",
		Messages: []chat.ChatMessage{
			{Role: chat.RoleUser, Content: "one"},
			{Role: chat.RoleSystem, Content: "sneaky"},
			{Role: chat.RoleAssistant, Content: ""},
			{Role: "tool", Content: "nope"},
			{Role: chat.RoleAssistant, Content: "two"},
		},
	})

	assert.Equal(t, "gpt-3.5-turbo", req.Model)
	assert.Equal(t, 1, req.N)
	assert.Equal(t, 1000, req.MaxTokens)
	assert.InDelta(t, 0.9, req.Temperature, 1e-6)
	assert.Equal(t, []ai.Message{
		{Role: chat.RoleSystem, Text: "You are helpful."},
		{Role: chat.RoleUser, Text: "one"},
		{Role: chat.RoleAssistant, Text: "two"},
	}, req.Messages)
}

func TestBuildRequestOverrides(t *testing.T) {
	svc := newTestService(t, &fakeProvider{}, testOptions())

	req := svc.BuildRequest(chat.ChatRequest{
		Model:         " gpt-4o ",
		SystemMessage: " be brief ",
		Messages:      []chat.ChatMessage{{Role: chat.RoleUser, Content: "hi"}},
	})
	assert.Equal(t, "gpt-4o", req.Model)
	assert.Equal(t, "be brief", req.Messages[0].Text)
}

func TestBuildRequestVisionPolicy(t *testing.T) {
	svc := newTestService(t, &fakeProvider{}, testOptions())
	images := []chat.MessageImage{{URL: "https://example.com/a.png", Detail: chat.DetailLow}}
	messages := []chat.ChatMessage{{Role: chat.RoleUser, Content: "what is this?", Images: images}}

	req := svc.BuildRequest(chat.ChatRequest{Model: "gpt-4o-mini", Messages: messages})
	assert.Equal(t, images, req.Messages[1].Images)

	req = svc.BuildRequest(chat.ChatRequest{Model: "gpt-3.5-turbo", Messages: messages})
	assert.Empty(t, req.Messages[1].Images)
	assert.Equal(t, "what is this?", req.Messages[1].Text)
}

func TestBuildRequestContextBudget(t *testing.T) {
	opts := testOptions()
	opts.DefaultSystemMessage = "sys"
	opts.MaxContextTokens = 5
	svc := newTestService(t, &fakeProvider{}, opts)

	req := svc.BuildRequest(chat.ChatRequest{Messages: []chat.ChatMessage{
		{Role: chat.RoleUser, Content: "a b c"},
		{Role: chat.RoleAssistant, Content: "d e"},
		{Role: chat.RoleUser, Content: "f g"},
	}})
	require.Len(t, req.Messages, 3)
	assert.Equal(t, "d e", req.Messages[1].Text)
	assert.Equal(t, "f g", req.Messages[2].Text)

	req = svc.BuildRequest(chat.ChatRequest{Messages: []chat.ChatMessage{
		{Role: chat.RoleUser, Content: "one two three four five six"},
	}})
	require.Len(t, req.Messages, 2, "newest message is always kept")
}

func TestComplete(t *testing.T) {
	provider := &fakeProvider{reply: "Hi there"}
	svc := newTestService(t, provider, testOptions())

	msg, err := svc.Complete(context.Background(), chat.ChatRequest{
		Messages: []chat.ChatMessage{{Role: chat.RoleUser, Content: "Hello"}},
	})
	require.NoError(t, err)
	assert.Equal(t, &chat.ChatMessage{Role: chat.RoleAssistant, Content: "Hi there", Images: []chat.MessageImage{}}, msg)
	assert.Len(t, provider.last.Messages, 2)
}

func TestCompleteErrors(t *testing.T) {
	svc := newTestService(t, &fakeProvider{}, testOptions())
	_, err := svc.Complete(context.Background(), chat.ChatRequest{})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "messages", verr.Errors[0].Field)

	svc = newTestService(t, &fakeProvider{err: errors.New("boom")}, testOptions())
	_, err = svc.Complete(context.Background(), chat.ChatRequest{Messages: []chat.ChatMessage{}})
	assert.ErrorIs(t, err, apperr.APIError)

	svc = newTestService(t, &fakeProvider{err: ai.ErrNoResponse}, testOptions())
	_, err = svc.Complete(context.Background(), chat.ChatRequest{Messages: []chat.ChatMessage{}})
	assert.ErrorIs(t, err, apperr.NoResponse)
}

func TestStream(t *testing.T) {
	svc := newTestService(t, &fakeProvider{reply: "Hi there"}, testOptions())

	rc, err := svc.Stream(context.Background(), chat.ChatRequest{Messages: []chat.ChatMessage{{Role: chat.RoleUser, Content: "Hello"}}})
	require.NoError(t, err)
	text, err := stream.Collect(rc)
	require.NoError(t, err)
	assert.Equal(t, "Hi there", text)

	svc = newTestService(t, &fakeProvider{err: errors.New("boom")}, testOptions())
	_, err = svc.Stream(context.Background(), chat.ChatRequest{Messages: []chat.ChatMessage{}})
	assert.ErrorIs(t, err, apperr.APIError)
}

func TestGenerateImage(t *testing.T) {
	provider := &fakeProvider{images: []string{"https://img.example.com/1.png"}}
	svc := newTestService(t, provider, testOptions())

	img, err := svc.GenerateImage(context.Background(), chat.ImageGenerationRequest{Prompt: "a cat"})
	require.NoError(t, err)
	assert.Equal(t, "https://img.example.com/1.png", img.URL)
	assert.Equal(t, ai.ImageRequest{Prompt: "a cat", Model: "dall-e-2", Size: "1024x1024", N: 1}, provider.lastImg)

	provider.images = nil
	_, err = svc.GenerateImage(context.Background(), chat.ImageGenerationRequest{Prompt: "a cat"})
	assert.ErrorIs(t, err, apperr.NoResponse)

	_, err = svc.GenerateImage(context.Background(), chat.ImageGenerationRequest{})
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestGenerateImageUnsupported(t *testing.T) {
	svc, err := NewService(&fakeProvider{}, nil, testOptions())
	require.NoError(t, err)

	_, err = svc.GenerateImage(context.Background(), chat.ImageGenerationRequest{Prompt: "a cat"})
	assert.ErrorIs(t, err, apperr.APIError)
	assert.ErrorIs(t, err, ai.ErrUnsupported)
}
