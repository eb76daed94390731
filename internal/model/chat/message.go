package chat

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r may appear in a client conversation.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// ImageDetail controls the provider's image analysis fidelity.
type ImageDetail string

const (
	DetailAuto ImageDetail = "auto"
	DetailLow  ImageDetail = "low"
	DetailHigh ImageDetail = "high"
)

// Valid reports whether d is empty or one of the known detail levels.
func (d ImageDetail) Valid() bool {
	switch d {
	case "", DetailAuto, DetailLow, DetailHigh:
		return true
	}
	return false
}

// MessageImage is an image attached to a message, remote or uploaded.
type MessageImage struct {
	URL    string      `json:"url"`
	Detail ImageDetail `json:"detail,omitempty"`
}

// ChatMessage is the wire form of a message exchanged with the backend.
type ChatMessage struct {
	Role    Role           `json:"role"`
	Content string         `json:"content"`
	Images  []MessageImage `json:"images,omitempty"`
}
