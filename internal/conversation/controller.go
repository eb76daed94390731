package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/simplegpt/backend/internal/model/chat"
	"github.com/simplegpt/backend/internal/stream"
	"github.com/simplegpt/backend/pkg/logx"
)

// ServerErrorMessage is the only error text a failed send records.
const ServerErrorMessage = "Server error"

var (
	// ErrSendInFlight is returned when the conversation already has a send running.
	ErrSendInFlight = errors.New("send already in flight for conversation")
	// ErrConversationNotFound is returned by mutators addressing an unknown conversation.
	ErrConversationNotFound = errors.New("conversation not found")
	ErrInvalidImage         = errors.New("invalid image")
	errNoReply              = errors.New("backend returned no message")
)

// Backend is the part of the backend proxy the controller talks to.
type Backend interface {
	Chat(ctx context.Context, req chat.ChatRequest) (*chat.ChatMessage, error)
	Stream(ctx context.Context, req chat.ChatRequest) (stream.ReadCloser, error)
}

// Controller orchestrates sends for the conversations of an App.
type Controller struct {
	app     *App
	backend Backend

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewController binds app to backend.
func NewController(app *App, backend Backend) *Controller {
	return &Controller{
		app:      app,
		backend:  backend,
		inFlight: make(map[string]struct{}),
	}
}

// SetInput replaces the conversation's draft.
func (c *Controller) SetInput(conversationID, text string) {
	c.app.store.Dispatch(SetConversationInput{ConversationID: conversationID, Input: text})
}

// SetModel overrides the provider model; empty restores the server default.
func (c *Controller) SetModel(conversationID, model string) {
	c.app.store.Dispatch(SetConversationModel{ConversationID: conversationID, Model: optional(model)})
}

// SetSystemMessage overrides the system message; empty restores the server default.
func (c *Controller) SetSystemMessage(conversationID, content string) {
	c.app.store.Dispatch(SetConversationSystemMessage{ConversationID: conversationID, Content: optional(content)})
}

// AddPendingImage queues image for the next user message.
func (c *Controller) AddPendingImage(conversationID string, image chat.MessageImage) error {
	image.URL = strings.TrimSpace(image.URL)
	if image.URL == "" || !image.Detail.Valid() {
		return fmt.Errorf("%w: url=%q detail=%q", ErrInvalidImage, image.URL, image.Detail)
	}
	if _, ok := c.app.store.State().Find(conversationID); !ok {
		return ErrConversationNotFound
	}
	c.app.store.Dispatch(AddPendingImage{ConversationID: conversationID, Image: image})
	return nil
}

// RemovePendingImage drops the pending image with url.
func (c *Controller) RemovePendingImage(conversationID, url string) {
	c.app.store.Dispatch(RemovePendingImage{ConversationID: conversationID, URL: url})
}

// Send posts the conversation's draft to the streaming endpoint and appends
// the reply fragment by fragment. A draft that is empty after trimming is
// ignored. Failures are recorded on the conversation as ServerErrorMessage
// and also returned; any text already received is kept.
func (c *Controller) Send(ctx context.Context, conversationID string) error {
	return c.send(ctx, conversationID, c.streamReply)
}

// SendComplete is Send against the non-streaming endpoint: the reply is
// added as one whole message.
func (c *Controller) SendComplete(ctx context.Context, conversationID string) error {
	return c.send(ctx, conversationID, c.completeReply)
}

type replyFunc func(ctx context.Context, conversationID string, req chat.ChatRequest) error

func (c *Controller) send(ctx context.Context, conversationID string, reply replyFunc) error {
	conv, ok := c.app.store.State().Find(conversationID)
	if !ok || isBlank(conv.Input) {
		return nil
	}

	if !c.acquire(conversationID) {
		return ErrSendInFlight
	}
	defer c.release(conversationID)

	var (
		req     chat.ChatRequest
		started bool
	)
	c.app.store.DispatchFunc(func(s State) []Action {
		conv, ok := s.Find(conversationID)
		if !ok || isBlank(conv.Input) {
			return nil
		}
		started = true

		userMsg := c.app.newMessage(conversationID, chat.RoleUser, conv.Input, conv.PendingImages)
		req = buildRequest(conv, userMsg)

		actions := []Action{
			SetConversationError{ConversationID: conversationID},
			SetConversationLoading{ConversationID: conversationID, Loading: true},
			SetConversationInput{ConversationID: conversationID},
			ClearPendingImages{ConversationID: conversationID},
		}
		return append(actions, c.app.messageActions(userMsg)...)
	})
	if !started {
		return nil
	}
	defer c.app.store.Dispatch(SetConversationLoading{ConversationID: conversationID, Loading: false})

	if err := reply(ctx, conversationID, req); err != nil {
		logx.Error().Err(err).Str("conversationId", conversationID).Msg("send failed")
		msg := ServerErrorMessage
		c.app.store.Dispatch(SetConversationError{ConversationID: conversationID, Error: &msg})
		return err
	}
	return nil
}

func (c *Controller) streamReply(ctx context.Context, conversationID string, req chat.ChatRequest) error {
	body, err := c.backend.Stream(ctx, req)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	defer body.Close()

	placeholder := c.app.newMessage(conversationID, chat.RoleAssistant, "", nil)
	c.app.store.Dispatch(c.app.messageActions(placeholder)...)

	for fragment, err := range stream.Fragments(body) {
		if err != nil {
			return fmt.Errorf("read stream: %w", err)
		}
		c.app.store.Dispatch(AppendMessage{
			ConversationID: conversationID,
			MessageID:      placeholder.MessageID,
			Fragment:       fragment,
		})
	}
	return nil
}

func (c *Controller) completeReply(ctx context.Context, conversationID string, req chat.ChatRequest) error {
	msg, err := c.backend.Chat(ctx, req)
	if err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	if msg == nil {
		return errNoReply
	}

	reply := c.app.newMessage(conversationID, chat.RoleAssistant, msg.Content, nil)
	c.app.store.Dispatch(c.app.messageActions(reply)...)
	return nil
}

func (c *Controller) acquire(conversationID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inFlight[conversationID]; busy {
		return false
	}
	c.inFlight[conversationID] = struct{}{}
	return true
}

func (c *Controller) release(conversationID string) {
	c.mu.Lock()
	delete(c.inFlight, conversationID)
	c.mu.Unlock()
}

// buildRequest assembles the outbound request: prior history, the new user
// message, and the conversation's optional overrides.
func buildRequest(conv Conversation, userMsg AddMessage) chat.ChatRequest {
	messages := append(conv.RequestMessages(), chat.ChatMessage{
		Role:    userMsg.Role,
		Content: userMsg.Content,
		Images:  userMsg.Images,
	})

	req := chat.ChatRequest{Messages: messages}
	if conv.SystemMessage != nil {
		req.SystemMessage = *conv.SystemMessage
	}
	if conv.Model != nil {
		req.Model = *conv.Model
	}
	return req
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func optional(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
