package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fenggwsx/NovaMind/internal/completion"
	"github.com/fenggwsx/NovaMind/internal/storage"
)

type memoryStore struct {
	mu      sync.Mutex
	users   map[string]storage.User
	threads map[string]storage.Thread
	saveErr error
	saves   int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:   make(map[string]storage.User),
		threads: make(map[string]storage.Thread),
	}
}

func threadKey(threadID, userID string) string { return threadID + "|" + userID }

func (m *memoryStore) CreateUser(_ context.Context, user *storage.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.Email]; ok {
		return storage.ErrDuplicate
	}
	m.users[user.Email] = *user
	return nil
}

func (m *memoryStore) GetUserByEmail(_ context.Context, email string) (*storage.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[email]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &user, nil
}

func (m *memoryStore) UpdateLastLogin(_ context.Context, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for email, user := range m.users {
		if user.ID == userID {
			user.LastLogin = &at
			m.users[email] = user
			return nil
		}
	}
	return storage.ErrNotFound
}

func (m *memoryStore) GetThread(_ context.Context, threadID, userID string) (*storage.Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	thread, ok := m.threads[threadKey(threadID, userID)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	thread.Messages = append([]storage.Message(nil), thread.Messages...)
	return &thread, nil
}

func (m *memoryStore) ThreadIDTaken(_ context.Context, threadID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, thread := range m.threads {
		if thread.ThreadID == threadID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryStore) SaveThread(_ context.Context, thread *storage.Thread) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	stored := *thread
	stored.Messages = append([]storage.Message(nil), thread.Messages...)
	m.threads[threadKey(thread.ThreadID, thread.UserID)] = stored
	return nil
}

func (m *memoryStore) ListThreads(_ context.Context, userID string) ([]storage.Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.Thread
	for _, thread := range m.threads {
		if thread.UserID == userID {
			out = append(out, thread)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (m *memoryStore) DeleteThread(_ context.Context, threadID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := threadKey(threadID, userID)
	if _, ok := m.threads[key]; !ok {
		return storage.ErrNotFound
	}
	delete(m.threads, key)
	return nil
}

func (m *memoryStore) ListAllThreads(ctx context.Context) ([]storage.Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]storage.Thread, 0, len(m.threads))
	for _, thread := range m.threads {
		out = append(out, thread)
	}
	return out, nil
}

func (m *memoryStore) DeleteAllThreads(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.threads))
	m.threads = make(map[string]storage.Thread)
	return n, nil
}

// scriptedCompleter replies with reply, or fails with err.
type scriptedCompleter struct {
	mu       sync.Mutex
	reply    string
	err      error
	calls    [][]completion.Message
	question string
	image    completion.Image
}

func (s *scriptedCompleter) Complete(_ context.Context, messages []completion.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, append([]completion.Message(nil), messages...))
	if s.err != nil {
		return "", s.err
	}
	if s.reply != "" {
		return s.reply, nil
	}
	return "echo: " + messages[len(messages)-1].Content, nil
}

func (s *scriptedCompleter) DescribeImage(_ context.Context, image completion.Image, question string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.image = image
	s.question = question
	if s.err != nil {
		return "", s.err
	}
	if s.reply != "" {
		return s.reply, nil
	}
	return "a picture of " + strings.ToLower(image.MIMEType), nil
}

var errUpstreamDown = errors.New("upstream down")

// steppingClock advances one second per call.
func steppingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}
