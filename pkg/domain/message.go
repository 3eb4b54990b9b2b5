package domain

// Role is the author of a completion prompt message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the prompt sent to a completion backend.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Chunk is one element of a completion stream. A chunk carries either text or a terminal error.
type Chunk struct {
	Text string
	Err  error
}
