package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no record matches the lookup.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("duplicate record")
)

// Role tags the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged utterance inside a thread.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// User represents a persisted account record.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	LastLogin    *time.Time
}

// Thread is a persisted conversation owned by (ThreadID, UserID).
type Thread struct {
	ThreadID  string
	UserID    string
	UserEmail string
	Title     string
	Messages  []Message
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserStore persists account records.
type UserStore interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error
}

// ThreadStore persists conversation documents. Every lookup is scoped by owner.
type ThreadStore interface {
	GetThread(ctx context.Context, threadID, userID string) (*Thread, error)
	// ThreadIDTaken reports whether any owner holds threadID.
	ThreadIDTaken(ctx context.Context, threadID string) (bool, error)
	// SaveThread inserts the thread or replaces the stored one with the same key.
	SaveThread(ctx context.Context, thread *Thread) error
	// ListThreads returns the owner's threads, most recently updated first.
	ListThreads(ctx context.Context, userID string) ([]Thread, error)
	DeleteThread(ctx context.Context, threadID, userID string) error

	ListAllThreads(ctx context.Context) ([]Thread, error)
	DeleteAllThreads(ctx context.Context) (int64, error)
}

// Store defines persistence operations used by the server.
type Store interface {
	Close() error
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error

	UserStore
	ThreadStore
}
