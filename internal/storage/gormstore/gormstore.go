// Package gormstore implements storage.Store on GORM over SQLite or Postgres.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/fenggwsx/NovaMind/internal/config"
	"github.com/fenggwsx/NovaMind/internal/storage"
)

// Store is a GORM-backed implementation of storage.Store.
type Store struct {
	db *gorm.DB
}

type userModel struct {
	ID           string `gorm:"primaryKey"`
	Name         string `gorm:"not null"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	CreatedAt    time.Time
	LastLogin    *time.Time
}

func (userModel) TableName() string { return "users" }

// threadModel keeps the message list as one JSON column, so a chat turn
// rewrites a single row.
type threadModel struct {
	ID        uint                                 `gorm:"primaryKey"`
	ThreadID  string                               `gorm:"uniqueIndex:idx_threads_owner;not null"`
	UserID    string                               `gorm:"uniqueIndex:idx_threads_owner;index;not null"`
	UserEmail string                               `gorm:"not null;default:''"`
	Title     string                               `gorm:"not null;default:''"`
	Messages  datatypes.JSONSlice[storage.Message] `gorm:"not null"`
	CreatedAt time.Time                            `gorm:"autoCreateTime:false"`
	UpdatedAt time.Time                            `gorm:"autoUpdateTime:false;index"`
}

func (threadModel) TableName() string { return "threads" }

// NewStore opens the database described by cfg.
func NewStore(cfg config.DatabaseConfig) (*Store, error) {
	dialector, err := openDialector(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if cfg.Driver == config.DriverPostgres {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("get underlying sql.DB: %w", err)
		}
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
	}

	return &Store{db: db}, nil
}

func openDialector(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("database DSN is required")
	}
	switch cfg.Driver {
	case "", config.DriverSQLite:
		return sqlite.Open(cfg.DSN), nil
	case config.DriverPostgres:
		dsn, err := ensureTimezoneUTC(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("parse database URL: %w", err)
		}
		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// ensureTimezoneUTC adds TimeZone=UTC to URL-style DSNs that lack it.
func ensureTimezoneUTC(dsn string) (string, error) {
	if !strings.Contains(dsn, "://") {
		return dsn, nil
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "", err
	}
	q := u.Query()
	if q.Get("TimeZone") == "" {
		q.Set("TimeZone", "UTC")
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Migrate applies schema updates.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&userModel{}, &threadModel{})
}

// Ping checks that the database answers.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// CreateUser stores a new user record.
func (s *Store) CreateUser(ctx context.Context, user *storage.User) error {
	if user == nil {
		return errors.New("nil user")
	}
	model := userModel{
		ID:           user.ID,
		Name:         user.Name,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		CreatedAt:    user.CreatedAt,
		LastLogin:    user.LastLogin,
	}
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isDuplicate(err) {
			return storage.ErrDuplicate
		}
		return err
	}
	return nil
}

// GetUserByEmail retrieves a user by normalized email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*storage.User, error) {
	var model userModel
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &storage.User{
		ID:           model.ID,
		Name:         model.Name,
		Email:        model.Email,
		PasswordHash: model.PasswordHash,
		CreatedAt:    model.CreatedAt,
		LastLogin:    model.LastLogin,
	}, nil
}

// UpdateLastLogin records a successful login.
func (s *Store) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	result := s.db.WithContext(ctx).Model(&userModel{}).Where("id = ?", userID).Update("last_login", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetThread loads the thread owned by userID.
func (s *Store) GetThread(ctx context.Context, threadID, userID string) (*storage.Thread, error) {
	var model threadModel
	err := s.db.WithContext(ctx).
		Where("thread_id = ? AND user_id = ?", threadID, userID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	thread := toThread(model)
	return &thread, nil
}

// ThreadIDTaken reports whether any owner already uses threadID.
func (s *Store) ThreadIDTaken(ctx context.Context, threadID string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&threadModel{}).Where("thread_id = ?", threadID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// SaveThread upserts on the (thread_id, user_id) key.
func (s *Store) SaveThread(ctx context.Context, thread *storage.Thread) error {
	if thread == nil {
		return errors.New("nil thread")
	}
	model := threadModel{
		ThreadID:  thread.ThreadID,
		UserID:    thread.UserID,
		UserEmail: thread.UserEmail,
		Title:     thread.Title,
		Messages:  datatypes.JSONSlice[storage.Message](thread.Messages),
		CreatedAt: thread.CreatedAt,
		UpdatedAt: thread.UpdatedAt,
	}
	if model.Messages == nil {
		model.Messages = datatypes.JSONSlice[storage.Message]{}
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "thread_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_email", "title", "messages", "updated_at"}),
	}).Create(&model).Error
}

// ListThreads returns the owner's threads ordered by most recent activity.
func (s *Store) ListThreads(ctx context.Context, userID string) ([]storage.Thread, error) {
	var models []threadModel
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	return toThreads(models), nil
}

// DeleteThread removes the thread owned by userID.
func (s *Store) DeleteThread(ctx context.Context, threadID, userID string) error {
	result := s.db.WithContext(ctx).
		Where("thread_id = ? AND user_id = ?", threadID, userID).
		Delete(&threadModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListAllThreads returns every thread regardless of owner.
func (s *Store) ListAllThreads(ctx context.Context) ([]storage.Thread, error) {
	var models []threadModel
	if err := s.db.WithContext(ctx).Order("updated_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	return toThreads(models), nil
}

// DeleteAllThreads removes every thread and returns how many were deleted.
func (s *Store) DeleteAllThreads(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&threadModel{})
	return result.RowsAffected, result.Error
}

func toThreads(models []threadModel) []storage.Thread {
	threads := make([]storage.Thread, 0, len(models))
	for _, m := range models {
		threads = append(threads, toThread(m))
	}
	return threads
}

func toThread(model threadModel) storage.Thread {
	messages := make([]storage.Message, len(model.Messages))
	copy(messages, model.Messages)
	return storage.Thread{
		ThreadID:  model.ThreadID,
		UserID:    model.UserID,
		UserEmail: model.UserEmail,
		Title:     model.Title,
		Messages:  messages,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
