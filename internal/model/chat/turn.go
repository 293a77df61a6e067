package chat

import "time"

// Role 标识一轮对话的发送方。
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one stored exchange half. Only Role and Content are sent to the model.
type Turn struct {
	ID        string    `json:"id,omitempty"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// UserTurn builds a user turn with the given content.
func UserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

// AssistantTurn builds an assistant turn with the given content.
func AssistantTurn(content string) Turn {
	return Turn{Role: RoleAssistant, Content: content}
}

// Conversation is the read view of a stored history.
type Conversation struct {
	ID    string `json:"conversationId"`
	Turns []Turn `json:"turns"`
}
