package domain

import "time"

// MaxChatMessageLen bounds the body of a single chat message.
const MaxChatMessageLen = 500

// ChatMessage is one message on the live chat wall
type ChatMessage struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Body        string    `json:"body"`
	CreatedAt   time.Time `json:"created_at"`
}

// PostMessageRequest is the payload for posting to the chat wall
type PostMessageRequest struct {
	Body string `json:"body"`
}
