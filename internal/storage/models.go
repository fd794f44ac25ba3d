package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// User is an account known to the service.
type User struct {
	ID                 string    `json:"user_id"`
	Email              string    `json:"email"`
	DisplayName        string    `json:"display_name"`
	PhotoURL           string    `json:"photo_url"`
	Plan               string    `json:"plan"`
	APIKeysConfigured  bool      `json:"api_keys_configured"`
	TotalConversations int       `json:"total_conversations"`
	TotalTokensUsed    int64     `json:"total_tokens_used"`
	CreatedAt          time.Time `json:"created_at"`
	LastLogin          time.Time `json:"last_login"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// APIKeys holds a user's model credentials as opaque (encrypted) strings.
type APIKeys struct {
	Groq   string
	Gemini string
}

// Configured reports whether at least one key is set.
func (k APIKeys) Configured() bool {
	return k.Groq != "" || k.Gemini != ""
}

// Conversation is one recorded exchange.
type Conversation struct {
	ID           string
	UserID       string
	Title        string
	Messages     string // JSON array stored as text
	MessageCount int
	CreatedAt    time.Time
}
