package domain

import (
	"context"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByShareID(ctx context.Context, shareID string) (*User, error)
}

// ChatRepository defines persistence operations for chats and their
// participant sets.
type ChatRepository interface {
	Create(ctx context.Context, c *Chat, participantIDs []int64) error
	GetByID(ctx context.Context, id int64) (*Chat, error)
	ListForUser(ctx context.Context, userID int64) ([]*Chat, error)
	// FindByParticipants returns the chat whose participant set exactly
	// matches ids, or nil.
	FindByParticipants(ctx context.Context, ids []int64) (*Chat, error)
	AddParticipant(ctx context.Context, chatID, userID int64) error
	RemoveParticipant(ctx context.Context, chatID, userID int64) error
	IsParticipant(ctx context.Context, chatID, userID int64) (bool, error)
	ParticipantIDs(ctx context.Context, chatID int64) ([]int64, error)
	// Delete removes the chat row only; callers cascade messages first.
	Delete(ctx context.Context, id int64) error
}

// MessageRepository defines persistence operations for messages.
type MessageRepository interface {
	Create(ctx context.Context, m *Message) error
	GetByID(ctx context.Context, id int64) (*Message, error)
	// ListForChat returns messages ordered by creation time ascending.
	ListForChat(ctx context.Context, chatID int64) ([]*Message, error)
	Update(ctx context.Context, m *Message) error
	// DeleteForChat hard-deletes all messages of a chat (chat deletion
	// cascade; the only bulk hard delete in the system).
	DeleteForChat(ctx context.Context, chatID int64) error
}
