package conversation

import (
	"sync"
	"time"

	"github.com/simplegpt/backend/internal/model/chat"
)

// App tracks which conversation is active on top of a Store, the part of
// the state that belongs to the presentation layer rather than to any
// single conversation.
type App struct {
	store *Store
	now   func() time.Time
	newID func() string

	mu     sync.RWMutex
	active string
}

// AppOption customises an App.
type AppOption func(*App)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) AppOption {
	return func(a *App) { a.now = now }
}

// WithIDGenerator overrides identifier generation.
func WithIDGenerator(newID func() string) AppOption {
	return func(a *App) { a.newID = newID }
}

// NewApp wraps store. Call Bootstrap before use.
func NewApp(store *Store, opts ...AppOption) *App {
	a := &App{store: store, now: time.Now, newID: NewID}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Store returns the underlying store.
func (a *App) Store() *Store {
	return a.store
}

// Active returns the active conversation id.
func (a *App) Active() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.active
}

// Bootstrap guarantees at least one conversation exists and one is active.
func (a *App) Bootstrap() string {
	state := a.store.State()
	if _, ok := state.Find(a.Active()); ok {
		return a.Active()
	}
	if len(state.Conversations) == 0 {
		return a.NewConversation()
	}
	last := state.Conversations[len(state.Conversations)-1].ID
	a.SetActive(last)
	return last
}

// NewConversation creates an empty conversation and makes it active.
func (a *App) NewConversation() string {
	id := a.newID()
	a.store.Dispatch(AddConversation{ConversationID: id, Date: a.now()})
	a.SetActive(id)
	return id
}

// SetActive switches the active conversation and resets its unread counter.
func (a *App) SetActive(id string) bool {
	if _, ok := a.store.State().Find(id); !ok {
		return false
	}

	a.mu.Lock()
	a.active = id
	a.mu.Unlock()

	a.store.Dispatch(ClearConversationUnread{ConversationID: id})
	return true
}

// ClearAll drops every conversation and replaces them with one fresh,
// active conversation in a single dispatch.
func (a *App) ClearAll() string {
	id := a.newID()
	a.store.Dispatch(ClearConversations{}, AddConversation{ConversationID: id, Date: a.now()})
	a.SetActive(id)
	return id
}

// newMessage builds an add-message action stamped with a fresh id and time.
func (a *App) newMessage(conversationID string, role chat.Role, content string, images []chat.MessageImage) AddMessage {
	return AddMessage{
		ConversationID: conversationID,
		MessageID:      a.newID(),
		Role:           role,
		Content:        content,
		Images:         images,
		Date:           a.now(),
	}
}

// messageActions returns msg followed by an unread increment when msg lands
// in a conversation other than the active one.
func (a *App) messageActions(msg AddMessage) []Action {
	actions := []Action{msg}
	if msg.ConversationID != a.Active() {
		actions = append(actions, IncrementConversationUnread{ConversationID: msg.ConversationID})
	}
	return actions
}
