// Package sender defines the message-delivery channel consumed by the
// engine and its Telegram Bot API implementation.
package sender

import "context"

// Update is one inbox item: a text message from a chat.
type Update struct {
	ID        int64
	ChatID    string
	Username  string
	FirstName string
	Text      string
}

// User identifies the bot account, used by doctor checks.
type User struct {
	ID       int64
	Username string
}

// Sender delivers text to a recipient handle.
type Sender interface {
	// SendSafe delivers text to recipient. It never returns an error;
	// failures are logged and reported as false.
	SendSafe(ctx context.Context, recipient, text string) bool
	// Updates fetches inbox messages with id >= offset.
	Updates(ctx context.Context, offset int64) ([]Update, error)
	// Me returns the authenticated bot account.
	Me(ctx context.Context) (*User, error)
}
