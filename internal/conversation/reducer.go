package conversation

import (
	"slices"

	"github.com/simplegpt/backend/internal/model/chat"
)

// Reduce applies action to state and returns the resulting state. The input
// is never modified: every changed conversation, message list and image list
// is copied. Actions that reference an unknown conversation or message return
// state unchanged.
func Reduce(state State, action Action) State {
	switch a := action.(type) {
	case AddConversation:
		return State{Conversations: appendCopy(state.Conversations, Conversation{
			ID:            a.ConversationID,
			Messages:      []Message{},
			PendingImages: []chat.MessageImage{},
			Date:          a.Date,
		})}

	case SetConversationModel:
		return update(state, a.ConversationID, func(c Conversation) (Conversation, bool) {
			c.Model = copyPtr(a.Model)
			return c, true
		})

	case SetConversationSystemMessage:
		return update(state, a.ConversationID, func(c Conversation) (Conversation, bool) {
			c.SystemMessage = copyPtr(a.Content)
			return c, true
		})

	case SetConversationInput:
		return update(state, a.ConversationID, func(c Conversation) (Conversation, bool) {
			c.Input = a.Input
			return c, true
		})

	case SetConversationLoading:
		return update(state, a.ConversationID, func(c Conversation) (Conversation, bool) {
			c.Loading = a.Loading
			return c, true
		})

	case SetConversationError:
		return update(state, a.ConversationID, func(c Conversation) (Conversation, bool) {
			c.Error = copyPtr(a.Error)
			return c, true
		})

	case AddPendingImage:
		return update(state, a.ConversationID, func(c Conversation) (Conversation, bool) {
			if slices.ContainsFunc(c.PendingImages, func(img chat.MessageImage) bool { return img.URL == a.Image.URL }) {
				return c, false
			}
			c.PendingImages = appendCopy(c.PendingImages, a.Image)
			return c, true
		})

	case RemovePendingImage:
		return update(state, a.ConversationID, func(c Conversation) (Conversation, bool) {
			idx := slices.IndexFunc(c.PendingImages, func(img chat.MessageImage) bool { return img.URL == a.URL })
			if idx < 0 {
				return c, false
			}
			c.PendingImages = slices.Delete(slices.Clone(c.PendingImages), idx, idx+1)
			return c, true
		})

	case ClearPendingImages:
		return update(state, a.ConversationID, func(c Conversation) (Conversation, bool) {
			c.PendingImages = []chat.MessageImage{}
			return c, true
		})

	case ClearConversationUnread:
		return update(state, a.ConversationID, func(c Conversation) (Conversation, bool) {
			c.Unread = 0
			return c, true
		})

	case IncrementConversationUnread:
		return update(state, a.ConversationID, func(c Conversation) (Conversation, bool) {
			c.Unread++
			return c, true
		})

	case ClearConversations:
		return State{Conversations: []Conversation{}}

	case AddMessage:
		return update(state, a.ConversationID, func(c Conversation) (Conversation, bool) {
			if !a.Role.Valid() {
				return c, false
			}
			images := slices.Clone(a.Images)
			if images == nil {
				images = []chat.MessageImage{}
			}
			c.Messages = appendCopy(c.Messages, Message{
				ID:      a.MessageID,
				Role:    a.Role,
				Handle:  HandleFor(a.Role),
				Content: a.Content,
				Images:  images,
				Date:    a.Date,
			})
			c.Date = a.Date
			return c, true
		})

	case AppendMessage:
		return update(state, a.ConversationID, func(c Conversation) (Conversation, bool) {
			idx := slices.IndexFunc(c.Messages, func(m Message) bool { return m.ID == a.MessageID })
			if idx < 0 {
				return c, false
			}
			messages := slices.Clone(c.Messages)
			messages[idx].Content += a.Fragment
			c.Messages = messages
			return c, true
		})
	}

	return state
}

// update rebuilds the conversation list with fn applied to the matching
// conversation. When nothing matches or fn reports no change, state is
// returned as is.
func update(state State, id string, fn func(Conversation) (Conversation, bool)) State {
	idx := slices.IndexFunc(state.Conversations, func(c Conversation) bool { return c.ID == id })
	if idx < 0 {
		return state
	}

	next, changed := fn(state.Conversations[idx])
	if !changed {
		return state
	}

	conversations := slices.Clone(state.Conversations)
	conversations[idx] = next
	return State{Conversations: conversations}
}

// appendCopy appends to a fresh backing array so the source slice stays untouched.
func appendCopy[T any](s []T, v T) []T {
	out := make([]T, len(s), len(s)+1)
	copy(out, s)
	return append(out, v)
}

func copyPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
