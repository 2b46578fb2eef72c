package models

// Role identifies who spoke a transcript line.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one parsed transcript line. It has no identity beyond its position.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
