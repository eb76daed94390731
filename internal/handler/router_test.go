package handler

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simplegpt/backend/internal/config"
	"github.com/simplegpt/backend/internal/model/prompt"
	"github.com/simplegpt/backend/internal/service/ai"
	chatservice "github.com/simplegpt/backend/internal/service/chat"
	"github.com/simplegpt/backend/internal/service/models"
	"github.com/simplegpt/backend/internal/service/upload"
	"github.com/simplegpt/backend/internal/stream"
)

type echoProvider struct{}

func (echoProvider) Complete(_ context.Context, req ai.Request) (string, error) {
	return "echo: " + req.Messages[len(req.Messages)-1].Text, nil
}

func (echoProvider) Stream(_ context.Context, req ai.Request) (stream.ReadCloser, error) {
	text := req.Messages[len(req.Messages)-1].Text
	return stream.WithCloser(stream.NewRawReader(strings.NewReader(text)), io.NopCloser(nil)), nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	chatSvc, err := chatservice.NewService(echoProvider{}, nil, chatservice.Options{DefaultModel: "gpt-3.5-turbo"})
	require.NoError(t, err)

	return NewRouter(
		chatSvc,
		models.NewService(ai.StaticModels{"gpt-4o"}, models.NewMemoryCache(0)),
		prompt.NewMemoryStore(prompt.Seed()),
		upload.NewService(nil, config.UploadConfig{MaxBytes: 1024}),
		Options{CORSOrigins: []string{"https://chat.example.com"}, StreamFormat: stream.FormatRaw},
	)
}

func TestRouterRoutes(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		want   string
	}{
		{"health", http.MethodGet, "/health", "", http.StatusOK, "OK"},
		{"models", http.MethodGet, "/models", "", http.StatusOK, `"gpt-4o"`},
		{"prompts", http.MethodGet, "/prompts", "", http.StatusOK, `"default"`},
		{"chat", http.MethodPost, "/chat", `{"messages":[{"role":"user","content":"hi"}]}`, http.StatusOK, `"echo: hi"`},
		{"image unsupported", http.MethodPost, "/image", `{"prompt":"cat"}`, http.StatusOK, `"error"`},
		{"chat stream", http.MethodPost, "/chat-stream", `{"messages":[{"role":"user","content":"hi"}]}`, http.StatusOK, "hi"},
		{"upload config", http.MethodGet, "/config/upload", "", http.StatusOK, `"enabled":false`},
		{"unknown", http.MethodGet, "/nope", "", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
		})
	}
}

func TestRouterCORSExposesStreamFormat(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/chat-stream", strings.NewReader(`{"messages":[{"role":"user","content":"hi"}]}`))
	req.Header.Set("Origin", "https://chat.example.com")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, "https://chat.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), stream.HeaderFormat)
	assert.Equal(t, "raw", rec.Header().Get(stream.HeaderFormat))
}
