// Package chat provides a unified interface for chat frontends (WhatsApp, Telegram, etc.)
package chat

import (
	"context"
	"time"
)

// Message represents a normalized chat message from any frontend
type Message struct {
	ID         string
	ChatID     string
	SenderID   string
	SenderName string
	Text       string
	Mentions   []string // ids or usernames of mentioned users, one entry per mention
	Timestamp  time.Time
	IsGroup    bool
	Raw        any // underlying library message struct
}

// MentionCount returns the number of mentions in the message
func (m *Message) MentionCount() uint {
	return uint(len(m.Mentions))
}

// Frontend defines the unified interface for all chat integrations
type Frontend interface {
	// Start initializes the chat frontend and connects to the platform
	Start(ctx context.Context) error

	// Listen starts listening for messages and calls the handler for each message
	Listen(ctx context.Context, handler func(*Message)) error

	// SendText sends a text message to the specified chat, optionally as a reply
	SendText(ctx context.Context, chatID string, replyToID string, text string) (string, error)

	// DeleteMessage deletes a message sent by senderID
	DeleteMessage(ctx context.Context, chatID, senderID, msgID string) error

	// IsUserAdmin checks if a user is an administrator in the chat
	IsUserAdmin(ctx context.Context, chatID, userID string) (bool, error)

	// GetAdminUserIDs returns a list of admin user IDs as strings for the group
	GetAdminUserIDs(ctx context.Context, chatID string) ([]string, error)

	// SendDirectMessage sends a direct message to a user and returns the message ID
	SendDirectMessage(ctx context.Context, userID, text string) (string, error)
}

// UserResolver is implemented by frontends that can map a handle such as "@alice" to a sender id
type UserResolver interface {
	ResolveUser(handle string) (string, bool)
}
