package model

import "time"

// ChatMessage is one turn of a saved conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatHistory is a saved conversation with the AI assistant. Private to its owner.
type ChatHistory struct {
	ID        string        `json:"id"`
	UserID    string        `json:"userId"`
	Subject   *string       `json:"subject"`
	Model     string        `json:"model"`
	Messages  []ChatMessage `json:"messages"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}
