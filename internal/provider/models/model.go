package models

// Role is the author of a chat turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Message is one chat turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// GenerateRequest encapsulates all parameters for a generation request.
type GenerateRequest struct {
	// System is sent ahead of Messages as the system instruction. System
	// turns inside Messages are kept in order as well.
	System string

	// Messages is the ordered conversation, ending with the new user turn.
	Messages []Message

	// MaxTokens caps the completion length. Zero leaves the provider default.
	MaxTokens int
}

// Conversation returns the system instruction followed by the messages.
func (r *GenerateRequest) Conversation() []Message {
	msgs := make([]Message, 0, len(r.Messages)+1)
	if r.System != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: r.System})
	}
	return append(msgs, r.Messages...)
}
