package gormstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenggwsx/NovaMind/internal/config"
	"github.com/fenggwsx/NovaMind/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(config.DatabaseConfig{
		Driver: config.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestNewStoreRejectsUnknownDriver(t *testing.T) {
	_, err := NewStore(config.DatabaseConfig{Driver: "mongo", DSN: "x"})
	assert.Error(t, err)

	_, err = NewStore(config.DatabaseConfig{Driver: config.DriverSQLite})
	assert.Error(t, err)
}

func TestEnsureTimezoneUTC(t *testing.T) {
	got, err := ensureTimezoneUTC("postgres://u:p@localhost:5432/db?sslmode=disable")
	require.NoError(t, err)
	assert.Contains(t, got, "TimeZone=UTC")
	assert.Contains(t, got, "sslmode=disable")

	got, err = ensureTimezoneUTC("postgres://u:p@localhost/db?TimeZone=Europe%2FRiga")
	require.NoError(t, err)
	assert.Contains(t, got, "TimeZone=Europe%2FRiga")

	got, err = ensureTimezoneUTC("host=localhost user=u dbname=db")
	require.NoError(t, err)
	assert.Equal(t, "host=localhost user=u dbname=db", got)
}

func TestUserLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	user := &storage.User{ID: "u-1", Name: "Ann", Email: "ann@x.com", PasswordHash: "hash", CreatedAt: base}
	require.NoError(t, store.CreateUser(ctx, user))

	dup := &storage.User{ID: "u-2", Name: "Ann Again", Email: "ann@x.com", PasswordHash: "hash", CreatedAt: base}
	assert.ErrorIs(t, store.CreateUser(ctx, dup), storage.ErrDuplicate)

	got, err := store.GetUserByEmail(ctx, "ann@x.com")
	require.NoError(t, err)
	assert.Equal(t, "u-1", got.ID)
	assert.Equal(t, "Ann", got.Name)
	assert.Nil(t, got.LastLogin)

	login := base.Add(time.Hour)
	require.NoError(t, store.UpdateLastLogin(ctx, "u-1", login))
	got, err = store.GetUserByEmail(ctx, "ann@x.com")
	require.NoError(t, err)
	require.NotNil(t, got.LastLogin)
	assert.True(t, login.Equal(*got.LastLogin))

	assert.ErrorIs(t, store.UpdateLastLogin(ctx, "missing", login), storage.ErrNotFound)

	_, err = store.GetUserByEmail(ctx, "bob@x.com")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSaveThreadUpsertsOnOwnerKey(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	thread := &storage.Thread{
		ThreadID:  "t1",
		UserID:    "u1",
		UserEmail: "u1@x.com",
		Title:     "Hi",
		Messages:  []storage.Message{{Role: storage.RoleUser, Content: "Hi"}},
		CreatedAt: base,
		UpdatedAt: base,
	}
	require.NoError(t, store.SaveThread(ctx, thread))

	thread.Messages = append(thread.Messages, storage.Message{Role: storage.RoleAssistant, Content: "Hello"})
	thread.UpdatedAt = base.Add(time.Minute)
	require.NoError(t, store.SaveThread(ctx, thread))

	got, err := store.GetThread(ctx, "t1", "u1")
	require.NoError(t, err)
	assert.Equal(t, []storage.Message{
		{Role: storage.RoleUser, Content: "Hi"},
		{Role: storage.RoleAssistant, Content: "Hello"},
	}, got.Messages)
	assert.True(t, base.Equal(got.CreatedAt))
	assert.True(t, base.Add(time.Minute).Equal(got.UpdatedAt))

	all, err := store.ListAllThreads(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestThreadsAreScopedByOwner(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.SaveThread(ctx, &storage.Thread{ThreadID: "t1", UserID: "u1", CreatedAt: base, UpdatedAt: base}))
	require.NoError(t, store.SaveThread(ctx, &storage.Thread{ThreadID: "t1", UserID: "u2", CreatedAt: base, UpdatedAt: base}))

	_, err := store.GetThread(ctx, "t1", "u3")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	taken, err := store.ThreadIDTaken(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, taken)
	taken, err = store.ThreadIDTaken(ctx, "t2")
	require.NoError(t, err)
	assert.False(t, taken)

	assert.ErrorIs(t, store.DeleteThread(ctx, "t1", "u3"), storage.ErrNotFound)
	require.NoError(t, store.DeleteThread(ctx, "t1", "u1"))
	assert.ErrorIs(t, store.DeleteThread(ctx, "t1", "u1"), storage.ErrNotFound)

	_, err = store.GetThread(ctx, "t1", "u2")
	assert.NoError(t, err)
}

func TestListThreadsOrdersByUpdatedAtDesc(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for i, id := range []string{"t1", "t2", "t3"} {
		at := base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, store.SaveThread(ctx, &storage.Thread{ThreadID: id, UserID: "u1", CreatedAt: at, UpdatedAt: at}))
	}
	require.NoError(t, store.SaveThread(ctx, &storage.Thread{ThreadID: "other", UserID: "u2", CreatedAt: base, UpdatedAt: base}))

	threads, err := store.ListThreads(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, threads, 3)
	assert.Equal(t, "t3", threads[0].ThreadID)
	assert.Equal(t, "t2", threads[1].ThreadID)
	assert.Equal(t, "t1", threads[2].ThreadID)
	assert.NotNil(t, threads[0].Messages)
}

func TestDeleteAllThreads(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.SaveThread(ctx, &storage.Thread{ThreadID: "t1", UserID: "u1", CreatedAt: base, UpdatedAt: base}))
	require.NoError(t, store.SaveThread(ctx, &storage.Thread{ThreadID: "t2", UserID: "u2", CreatedAt: base, UpdatedAt: base}))

	n, err := store.DeleteAllThreads(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	all, err := store.ListAllThreads(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestPing(t *testing.T) {
	store := newTestStore(t)
	assert.NoError(t, store.Ping(context.Background()))
}
