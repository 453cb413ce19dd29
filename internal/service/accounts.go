// Package service holds the account and conversation operations behind the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/fenggwsx/NovaMind/internal/auth"
	"github.com/fenggwsx/NovaMind/internal/storage"
)

const (
	minPasswordLength = 6
	// bcrypt rejects longer inputs.
	maxPasswordBytes = 72
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// UserView is the public projection of a user; it never carries the password hash.
type UserView struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
	LastLogin *time.Time
}

// GuestView identifies an unauthenticated visitor.
type GuestView struct {
	GuestID string
	Name    string
	Email   string
}

// Accounts implements registration, login and profile lookup.
type Accounts struct {
	users  storage.UserStore
	hasher *auth.PasswordHasher
	logger *slog.Logger
	now    func() time.Time
}

// NewAccounts wires the account operations to a user store.
func NewAccounts(users storage.UserStore, hasher *auth.PasswordHasher, logger *slog.Logger) *Accounts {
	return &Accounts{
		users:  users,
		hasher: hasher,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Register creates an account after validating the input.
func (a *Accounts) Register(ctx context.Context, name, email, password string) (*UserView, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return nil, validationError("All fields are required")
	}
	if utf8.RuneCountInString(password) < minPasswordLength {
		return nil, validationError(fmt.Sprintf("Password must be at least %d characters", minPasswordLength))
	}
	if len(password) > maxPasswordBytes {
		return nil, validationError(fmt.Sprintf("Password must be at most %d bytes", maxPasswordBytes))
	}
	if !emailPattern.MatchString(email) {
		return nil, validationError("Please enter a valid email")
	}

	if _, err := a.users.GetUserByEmail(ctx, email); err == nil {
		return nil, conflictError("User with this email already exists")
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	hashed, err := a.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &storage.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hashed,
		CreatedAt:    a.now(),
	}
	if err := a.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, conflictError("User with this email already exists")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	a.logger.InfoContext(ctx, "user registered", "user_id", user.ID, "email", user.Email)
	return toUserView(user), nil
}

// Login verifies credentials and records the login time.
func (a *Accounts) Login(ctx context.Context, email, password string) (*UserView, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, validationError("Email and password are required")
	}

	user, err := a.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			a.logger.InfoContext(ctx, "login rejected", "email", email, "reason", "unknown email")
			return nil, authError("Invalid email or password")
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if err := a.hasher.Compare(user.PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			a.logger.WarnContext(ctx, "password compare failed", "user_id", user.ID, "error", err)
		}
		a.logger.InfoContext(ctx, "login rejected", "email", email, "reason", "bad password")
		return nil, authError("Invalid email or password")
	}

	now := a.now()
	if err := a.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("update last login: %w", err)
	}
	user.LastLogin = &now

	a.logger.InfoContext(ctx, "user logged in", "user_id", user.ID)
	return toUserView(user), nil
}

// GetProfile returns the public view of the user with the given email.
func (a *Accounts) GetProfile(ctx context.Context, email string) (*UserView, error) {
	user, err := a.users.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, notFoundError("User not found")
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return toUserView(user), nil
}

// NewGuest mints a guest identity in the guest_<millis>_<suffix> form.
// Nothing is persisted; threads are simply owned by the guest id.
func (a *Accounts) NewGuest() GuestView {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	id := fmt.Sprintf("guest_%d_%s", a.now().UnixMilli(), suffix)
	return GuestView{
		GuestID: id,
		Name:    "Guest User",
		Email:   id + "@novamind.com",
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func toUserView(user *storage.User) *UserView {
	return &UserView{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
		LastLogin: user.LastLogin,
	}
}
