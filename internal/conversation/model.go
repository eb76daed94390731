// Package conversation holds the client-side conversation state machine: a pure
// reducer over a closed set of actions, a Store that serialises dispatches,
// and the Controller that drives a send through the backend.
package conversation

import (
	"time"

	"github.com/google/uuid"

	"github.com/simplegpt/backend/internal/model/chat"
)

// Display handles derived from the message role.
const (
	HandleUser      = "You"
	HandleAssistant = "Bot"
)

// HandleFor returns the display handle for role.
func HandleFor(role chat.Role) string {
	if role == chat.RoleUser {
		return HandleUser
	}
	return HandleAssistant
}

// NewID returns a fresh client-side identifier.
func NewID() string {
	return uuid.NewString()
}

// Message is one entry of a conversation. Only an assistant message's
// Content changes after creation, and only while it is streaming.
type Message struct {
	ID      string              `json:"id"`
	Role    chat.Role           `json:"role"`
	Handle  string              `json:"handle"`
	Content string              `json:"content"`
	Images  []chat.MessageImage `json:"images"`
	Date    time.Time           `json:"date"`
}

// Conversation is one independent chat thread.
type Conversation struct {
	ID            string              `json:"id"`
	Title         string              `json:"title,omitempty"`
	SystemMessage *string             `json:"systemMessage,omitempty"`
	Model         *string             `json:"model,omitempty"`
	Messages      []Message           `json:"messages"`
	PendingImages []chat.MessageImage `json:"pendingImages"`
	Input         string              `json:"input"`
	Loading       bool                `json:"loading"`
	Error         *string             `json:"error,omitempty"`
	Unread        int                 `json:"unread"`
	Date          time.Time           `json:"date"`
}

// State is the whole collection owned by a Store.
type State struct {
	Conversations []Conversation `json:"conversations"`
}

// Find returns the conversation with id.
func (s State) Find(id string) (Conversation, bool) {
	for _, c := range s.Conversations {
		if c.ID == id {
			return c, true
		}
	}
	return Conversation{}, false
}

// FindMessage returns the message with id.
func (c Conversation) FindMessage(id string) (Message, bool) {
	for _, m := range c.Messages {
		if m.ID == id {
			return m, true
		}
	}
	return Message{}, false
}

// RequestMessages reduces the conversation history to its wire form.
func (c Conversation) RequestMessages() []chat.ChatMessage {
	out := make([]chat.ChatMessage, 0, len(c.Messages))
	for _, m := range c.Messages {
		out = append(out, chat.ChatMessage{
			Role:    m.Role,
			Content: m.Content,
			Images:  m.Images,
		})
	}
	return out
}
