package models

import "time"

// ConversationMetadata is stored alongside the transcript.
type ConversationMetadata struct {
	SavedAt      time.Time `json:"savedAt"`
	MessageCount int       `json:"messageCount"`
}

// ConversationContent is the structured payload persisted for a saved transcript.
type ConversationContent struct {
	Text     string               `json:"text"`
	Messages []Message            `json:"messages"`
	Metadata ConversationMetadata `json:"metadata"`
}

// Conversation is a persisted record. ID and CreatedAt are assigned by storage.
type Conversation struct {
	ID        string              `json:"id"`
	OwnerID   string              `json:"owner_id"`
	Content   ConversationContent `json:"content"`
	CreatedAt time.Time           `json:"created_at"`
}
