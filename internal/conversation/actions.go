package conversation

import (
	"time"

	"github.com/simplegpt/backend/internal/model/chat"
)

// Action is the closed set of state transitions. Only types in this package
// implement it.
type Action interface {
	isAction()
}

type (
	// AddConversation appends an empty conversation.
	AddConversation struct {
		ConversationID string
		Date           time.Time
	}
	// SetConversationModel overrides the model; nil restores the server default.
	SetConversationModel struct {
		ConversationID string
		Model          *string
	}
	// SetConversationSystemMessage overrides the system message; nil restores the default.
	SetConversationSystemMessage struct {
		ConversationID string
		Content        *string
	}
	// SetConversationInput replaces the draft text.
	SetConversationInput struct {
		ConversationID string
		Input          string
	}
	// SetConversationLoading marks a send as running or finished.
	SetConversationLoading struct {
		ConversationID string
		Loading        bool
	}
	// SetConversationError with a nil Error clears it.
	SetConversationError struct {
		ConversationID string
		Error          *string
	}
	// AddPendingImage queues an image for the next user message. Duplicate URLs are ignored.
	AddPendingImage struct {
		ConversationID string
		Image          chat.MessageImage
	}
	// RemovePendingImage drops the pending image with URL.
	RemovePendingImage struct {
		ConversationID string
		URL            string
	}
	// ClearPendingImages empties the pending images.
	ClearPendingImages struct {
		ConversationID string
	}
	// ClearConversationUnread resets the unread counter.
	ClearConversationUnread struct {
		ConversationID string
	}
	// IncrementConversationUnread counts one more unseen message.
	IncrementConversationUnread struct {
		ConversationID string
	}
	// ClearConversations drops every conversation.
	ClearConversations struct{}
	// AddMessage appends a message. Roles other than user and assistant are ignored.
	AddMessage struct {
		ConversationID string
		MessageID      string
		Role           chat.Role
		Content        string
		Images         []chat.MessageImage
		Date           time.Time
	}
	// AppendMessage concatenates Fragment onto a message's content. Replaying
	// it duplicates text.
	AppendMessage struct {
		ConversationID string
		MessageID      string
		Fragment       string
	}
)

func (AddConversation) isAction()              {}
func (SetConversationModel) isAction()         {}
func (SetConversationSystemMessage) isAction() {}
func (SetConversationInput) isAction()         {}
func (SetConversationLoading) isAction()       {}
func (SetConversationError) isAction()         {}
func (AddPendingImage) isAction()              {}
func (RemovePendingImage) isAction()           {}
func (ClearPendingImages) isAction()           {}
func (ClearConversationUnread) isAction()      {}
func (IncrementConversationUnread) isAction()  {}
func (ClearConversations) isAction()           {}
func (AddMessage) isAction()                   {}
func (AppendMessage) isAction()                {}
