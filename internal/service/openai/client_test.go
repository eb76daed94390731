package openai

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simplegpt/backend/internal/model/chat"
	"github.com/simplegpt/backend/internal/service/ai"
	"github.com/simplegpt/backend/internal/stream"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{APIKey: "sk-test", BaseURL: srv.URL + "/"})
}

func readBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	data, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, sonic.Unmarshal(data, &out))
	return out
}

func TestComplete(t *testing.T) {
	var body map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body = readBody(t, r)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"Hi there"}}]}`)
	})

	out, err := client.Complete(context.Background(), ai.Request{
		Model:       "gpt-3.5-turbo",
		Temperature: 0.9,
		TopP:        1,
		MaxTokens:   1000,
		Messages: []ai.Message{
			{Role: chat.RoleSystem, Text: "be brief"},
			{Role: chat.RoleUser, Text: "Hello"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi there", out)

	assert.Equal(t, "gpt-3.5-turbo", body["model"])
	assert.EqualValues(t, 1, body["n"])
	assert.EqualValues(t, 1000, body["max_tokens"])
	assert.NotContains(t, body, "stream")
	messages := body["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, map[string]any{"role": "system", "content": "be brief"}, messages[0])
}

func TestCompleteImageParts(t *testing.T) {
	var body map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body = readBody(t, r)
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"a cat"}}]}`)
	})

	_, err := client.Complete(context.Background(), ai.Request{Messages: []ai.Message{{
		Role:   chat.RoleUser,
		Text:   "what is this?",
		Images: []chat.MessageImage{{URL: "https://example.com/a.png", Detail: chat.DetailLow}},
	}}})
	require.NoError(t, err)

	msg := body["messages"].([]any)[0].(map[string]any)
	parts := msg["content"].([]any)
	require.Len(t, parts, 2)
	assert.Equal(t, map[string]any{
		"type":      "image_url",
		"image_url": map[string]any{"url": "https://example.com/a.png", "detail": "low"},
	}, parts[0])
	assert.Equal(t, map[string]any{"type": "text", "text": "what is this?"}, parts[1])
}

func TestCompleteErrors(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"choices":[]}`)
	})
	_, err := client.Complete(context.Background(), ai.Request{})
	assert.ErrorIs(t, err, ai.ErrNoResponse)

	client = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid key"}`, http.StatusUnauthorized)
	})
	_, err = client.Complete(context.Background(), ai.Request{})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Contains(t, apiErr.Body, "invalid key")
}

func TestStream(t *testing.T) {
	var body map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body = readBody(t, r)
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"role\":\"assistant\"}}]}\n\n")
		_, _ = io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hi\"}}]}\n\n")
		_, _ = io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\" there\"}}]}\n\n")
		_, _ = io.WriteString(w, "data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"stop\"}]}\n\n")
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	})

	rc, err := client.Stream(context.Background(), ai.Request{Messages: []ai.Message{{Role: chat.RoleUser, Text: "Hello"}}})
	require.NoError(t, err)
	defer rc.Close()

	text, err := stream.Collect(rc)
	require.NoError(t, err)
	assert.Equal(t, "Hi there", text)
	assert.Equal(t, true, body["stream"])
}

func TestStreamRejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	_, err := client.Stream(context.Background(), ai.Request{})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
}

func TestListModels(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/models", r.URL.Path)
		_, _ = io.WriteString(w, `{"data":[{"id":"gpt-4o"},{"id":"dall-e-2"},{"id":"gpt-3.5-turbo"}]}`)
	})

	models, err := client.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"dall-e-2", "gpt-3.5-turbo", "gpt-4o"}, models)
}

func TestGenerateImage(t *testing.T) {
	var body map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/images/generations", r.URL.Path)
		body = readBody(t, r)
		_, _ = io.WriteString(w, `{"data":[{"url":"https://img.example.com/1.png"}]}`)
	})

	urls, err := client.GenerateImage(context.Background(), ai.ImageRequest{Prompt: "a cat", Model: "dall-e-2", Size: "1024x1024"})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://img.example.com/1.png"}, urls)
	assert.Equal(t, "a cat", body["prompt"])
	assert.EqualValues(t, 1, body["n"])
	assert.Equal(t, "1024x1024", body["size"])

	client = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":[]}`)
	})
	_, err = client.GenerateImage(context.Background(), ai.ImageRequest{Prompt: "a cat"})
	assert.ErrorIs(t, err, ai.ErrNoResponse)
}
