package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simplegpt/backend/internal/model/chat"
	"github.com/simplegpt/backend/internal/stream"
)

type fakeBackend struct {
	requests []chat.ChatRequest
	reply    string
	err      error
	uploaded []string
}

func (f *fakeBackend) Chat(_ context.Context, req chat.ChatRequest) (*chat.ChatMessage, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &chat.ChatMessage{Role: chat.RoleAssistant, Content: f.reply}, nil
}

func (f *fakeBackend) Stream(_ context.Context, req chat.ChatRequest) (stream.ReadCloser, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return stream.WithCloser(stream.NewRawReader(strings.NewReader(f.reply)), io.NopCloser(nil)), nil
}

func (f *fakeBackend) Upload(_ context.Context, filename string, body io.Reader) (*chat.ImageUpload, error) {
	data, _ := io.ReadAll(body)
	f.uploaded = append(f.uploaded, string(data))
	return &chat.ImageUpload{Name: filename, URL: "https://bucket/" + filename}, nil
}

func TestSessionStreamsReply(t *testing.T) {
	var out bytes.Buffer
	b := &fakeBackend{reply: "Hello there"}
	s := newSession(b, &out, true)

	quit, err := s.handleLine(context.Background(), "hi")
	require.NoError(t, err)
	assert.False(t, quit)

	assert.Equal(t, "Bot: Hello there\n", out.String())
	conv, _ := s.app.Store().State().Find(s.app.Active())
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "Hello there", conv.Messages[1].Content)
}

func TestSessionSendsInputVerbatim(t *testing.T) {
	b := &fakeBackend{reply: "ok"}
	s := newSession(b, io.Discard, false)

	_, err := s.handleLine(context.Background(), "  indented\tline  ")
	require.NoError(t, err)

	require.Len(t, b.requests, 1)
	assert.Equal(t, "  indented\tline  ", b.requests[0].Messages[0].Content)
	conv, _ := s.app.Store().State().Find(s.app.Active())
	assert.Equal(t, "  indented\tline  ", conv.Messages[0].Content)
}

func TestSessionCompleteReply(t *testing.T) {
	var out bytes.Buffer
	s := newSession(&fakeBackend{reply: "whole"}, &out, false)

	_, err := s.handleLine(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "Bot: whole\n", out.String())
}

func TestSessionShowsServerError(t *testing.T) {
	var out bytes.Buffer
	s := newSession(&fakeBackend{err: errors.New("down")}, &out, true)

	_, err := s.handleLine(context.Background(), "hi")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "[Server error]")
}

func TestSessionCommands(t *testing.T) {
	var out bytes.Buffer
	b := &fakeBackend{reply: "ok"}
	s := newSession(b, &out, false)
	ctx := context.Background()
	first := s.app.Active()

	for _, line := range []string{"/model gpt-4o", "/system be brief", "/image https://example.com/cat.png low"} {
		_, err := s.handleLine(ctx, line)
		require.NoError(t, err, line)
	}
	_, err := s.handleLine(ctx, "look")
	require.NoError(t, err)

	require.Len(t, b.requests, 1)
	req := b.requests[0]
	assert.Equal(t, "gpt-4o", req.Model)
	assert.Equal(t, "be brief", req.SystemMessage)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, []chat.MessageImage{{URL: "https://example.com/cat.png", Detail: chat.DetailLow}}, req.Messages[0].Images)

	_, err = s.handleLine(ctx, "/new")
	require.NoError(t, err)
	assert.NotEqual(t, first, s.app.Active())

	_, err = s.handleLine(ctx, "/switch 1")
	require.NoError(t, err)
	assert.Equal(t, first, s.app.Active())

	_, err = s.handleLine(ctx, "/switch 9")
	assert.Error(t, err)

	out.Reset()
	_, err = s.handleLine(ctx, "/list")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "* 1. look [2 messages, 0 unread]")
	assert.Contains(t, out.String(), "  2. (empty)")

	_, err = s.handleLine(ctx, "/clear")
	require.NoError(t, err)
	assert.Len(t, s.app.Store().State().Conversations, 1)

	quit, err := s.handleLine(ctx, "/quit")
	require.NoError(t, err)
	assert.True(t, quit)
}

func TestSessionRejectsBadImage(t *testing.T) {
	s := newSession(&fakeBackend{}, io.Discard, true)

	_, err := s.handleLine(context.Background(), "/image https://example.com/a.png huge")
	assert.Error(t, err)

	_, err = s.handleLine(context.Background(), "/bogus")
	assert.Error(t, err)
}

func TestSessionUploadAttaches(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cat.png")
	require.NoError(t, os.WriteFile(path, []byte("png"), 0o600))

	var out bytes.Buffer
	b := &fakeBackend{}
	s := newSession(b, &out, true)

	_, err := s.handleLine(context.Background(), "/upload "+path)
	require.NoError(t, err)

	assert.Equal(t, []string{"png"}, b.uploaded)
	conv, _ := s.app.Store().State().Find(s.app.Active())
	assert.Equal(t, []chat.MessageImage{{URL: "https://bucket/cat.png"}}, conv.PendingImages)
}

func TestSessionRunQuits(t *testing.T) {
	var out bytes.Buffer
	s := newSession(&fakeBackend{reply: "pong"}, &out, true)

	err := s.run(context.Background(), strings.NewReader("ping\n/quit\nignored\n"))
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Bot: pong")
}
