// Package protocol defines the JSON bodies exchanged over the HTTP API.
package protocol

import "time"

// RegisterRequest carries sign-up data.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest carries credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ChatRequest is one text turn.
type ChatRequest struct {
	ThreadID  string `json:"threadId"`
	Message   string `json:"message"`
	UserID    string `json:"userId"`
	UserEmail string `json:"userEmail"`
}

// Multipart field names accepted by the image endpoint.
const (
	FieldImage     = "image"
	FieldThreadID  = "threadId"
	FieldQuestion  = "question"
	FieldUserID    = "userId"
	FieldUserEmail = "userEmail"
)

// User is the public account view.
type User struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	CreatedAt time.Time  `json:"createdAt"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
}

// Guest is an unauthenticated identity minted by the server.
type Guest struct {
	GuestID string `json:"guestId"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	IsGuest bool   `json:"isGuest"`
}

// AuthResponse answers register and login.
type AuthResponse struct {
	Message   string `json:"message"`
	User      User   `json:"user"`
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expiresAt"`
}

// ProfileResponse wraps a profile lookup.
type ProfileResponse struct {
	User User `json:"user"`
}

// GuestResponse wraps a guest identity.
type GuestResponse struct {
	User Guest `json:"user"`
}

// ThreadSummary is one row of the thread list.
type ThreadSummary struct {
	ThreadID     string    `json:"threadId"`
	Title        string    `json:"title"`
	UserEmail    string    `json:"userEmail"`
	MessageCount int       `json:"messageCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Message is a transcript entry.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ReplyResponse answers chat and image turns.
type ReplyResponse struct {
	Reply string `json:"reply"`
}

// DeleteResponse acknowledges a delete.
type DeleteResponse struct {
	Success string `json:"success"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse is returned by the liveness routes.
type StatusResponse struct {
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
}
