package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fenggwsx/NovaMind/internal/completion"
	"github.com/fenggwsx/NovaMind/internal/metrics"
	"github.com/fenggwsx/NovaMind/internal/storage"
)

// DefaultImageQuestion is asked when an image arrives without a question.
const DefaultImageQuestion = "What's in this image? Please describe it in detail."

const imageMessagePrefix = "[Image] "

// Resolution tells whether ResolveThread found a stored thread or started a new one.
type Resolution int

const (
	Found Resolution = iota
	Created
)

func (r Resolution) String() string {
	if r == Created {
		return "created"
	}
	return "found"
}

// ThreadSummary is the list view of a thread.
type ThreadSummary struct {
	ThreadID     string
	Title        string
	UserEmail    string
	MessageCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SendRequest is one text turn.
type SendRequest struct {
	ThreadID  string
	UserID    string
	UserEmail string
	Text      string
}

// ImageRequest is one image-analysis turn.
type ImageRequest struct {
	ThreadID  string
	UserID    string
	UserEmail string
	Image     completion.Image
	Question  string
}

// Threads owns the conversation lifecycle: listing, reading, deleting and chat turns.
type Threads struct {
	store     storage.ThreadStore
	completer completion.Client
	locks     *threadLocks
	logger    *slog.Logger
	now       func() time.Time
}

// NewThreads wires thread operations to a store and a completion client.
func NewThreads(store storage.ThreadStore, completer completion.Client, logger *slog.Logger) *Threads {
	return &Threads{
		store:     store,
		completer: completer,
		locks:     newThreadLocks(),
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ListThreads returns the caller's threads, most recently active first.
func (t *Threads) ListThreads(ctx context.Context, userID string) ([]ThreadSummary, error) {
	if isBlank(userID) {
		return nil, validationError("userId is required")
	}
	threads, err := t.store.ListThreads(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	summaries := make([]ThreadSummary, 0, len(threads))
	for _, th := range threads {
		summaries = append(summaries, ThreadSummary{
			ThreadID:     th.ThreadID,
			Title:        th.Title,
			UserEmail:    th.UserEmail,
			MessageCount: len(th.Messages),
			CreatedAt:    th.CreatedAt,
			UpdatedAt:    th.UpdatedAt,
		})
	}
	return summaries, nil
}

// GetThreadMessages returns the ordered transcript of one thread.
func (t *Threads) GetThreadMessages(ctx context.Context, threadID, userID string) ([]storage.Message, error) {
	if isBlank(userID) {
		return nil, validationError("userId is required")
	}
	thread, err := t.store.GetThread(ctx, threadID, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, notFoundError("Thread not found")
		}
		return nil, fmt.Errorf("get thread: %w", err)
	}
	return thread.Messages, nil
}

// DeleteThread removes one of the caller's threads.
func (t *Threads) DeleteThread(ctx context.Context, threadID, userID string) error {
	if isBlank(userID) {
		return validationError("userId is required")
	}
	release := t.locks.Lock(threadID, userID)
	defer release()

	if err := t.store.DeleteThread(ctx, threadID, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return notFoundError("Thread not found")
		}
		return fmt.Errorf("delete thread: %w", err)
	}
	t.logger.InfoContext(ctx, "thread deleted", "thread_id", threadID, "user_id", userID)
	return nil
}

// ResolveThread finds the caller's thread or starts a new one titled from firstText.
// A created thread is not persisted yet. A threadID already owned by someone
// else is reported as not found.
func (t *Threads) ResolveThread(ctx context.Context, threadID, userID, userEmail, firstText string) (*storage.Thread, Resolution, error) {
	thread, err := t.store.GetThread(ctx, threadID, userID)
	if err == nil {
		return thread, Found, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, Found, fmt.Errorf("get thread: %w", err)
	}

	taken, err := t.store.ThreadIDTaken(ctx, threadID)
	if err != nil {
		return nil, Found, fmt.Errorf("check thread id: %w", err)
	}
	if taken {
		return nil, Found, notFoundError("Thread not found")
	}

	now := t.now()
	return &storage.Thread{
		ThreadID:  threadID,
		UserID:    userID,
		UserEmail: userEmail,
		Title:     threadTitle(firstText),
		Messages:  []storage.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}, Created, nil
}

// SendMessage runs one chat turn and returns the assistant reply.
// The user message is persisted before the completion call and stays in the
// transcript if that call fails.
func (t *Threads) SendMessage(ctx context.Context, req SendRequest) (string, error) {
	if isBlank(req.ThreadID) || isBlank(req.Text) || isBlank(req.UserID) || isBlank(req.UserEmail) {
		return "", validationError("missing required fields: threadId, message, userId, userEmail")
	}

	release := t.locks.Lock(req.ThreadID, req.UserID)
	defer release()

	thread, resolution, err := t.ResolveThread(ctx, req.ThreadID, req.UserID, req.UserEmail, req.Text)
	if err != nil {
		return "", err
	}

	thread.Messages = append(thread.Messages, storage.Message{Role: storage.RoleUser, Content: req.Text})
	thread.UpdatedAt = t.now()
	if err := t.store.SaveThread(ctx, thread); err != nil {
		metrics.ChatTurns.WithLabelValues(metrics.KindText, metrics.OutcomeStoreError).Inc()
		return "", fmt.Errorf("save user message: %w", err)
	}
	if resolution == Created {
		metrics.ThreadsCreated.Inc()
		t.logger.InfoContext(ctx, "thread created", "thread_id", thread.ThreadID, "user_id", thread.UserID)
	}

	reply, err := t.complete(ctx, metrics.KindText, func(ctx context.Context) (string, error) {
		return t.completer.Complete(ctx, toCompletionMessages(thread.Messages))
	})
	if err != nil {
		return "", err
	}

	thread.Messages = append(thread.Messages, storage.Message{Role: storage.RoleAssistant, Content: reply})
	thread.UpdatedAt = t.now()
	if err := t.store.SaveThread(ctx, thread); err != nil {
		metrics.ChatTurns.WithLabelValues(metrics.KindText, metrics.OutcomeStoreError).Inc()
		return "", fmt.Errorf("save assistant message: %w", err)
	}

	metrics.ChatTurns.WithLabelValues(metrics.KindText, metrics.OutcomeOK).Inc()
	t.logger.InfoContext(ctx, "chat turn stored",
		"thread_id", thread.ThreadID,
		"user_id", thread.UserID,
		"messages", len(thread.Messages),
	)
	return reply, nil
}

// SendImageMessage asks the vision model about an image and records the exchange.
// Nothing is persisted when the model call fails.
func (t *Threads) SendImageMessage(ctx context.Context, req ImageRequest) (string, error) {
	if len(req.Image.Data) == 0 {
		return "", validationError("No image file provided")
	}
	if isBlank(req.ThreadID) || isBlank(req.UserID) || isBlank(req.UserEmail) {
		return "", validationError("missing required fields: threadId, userId, userEmail")
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		question = DefaultImageQuestion
	}
	userContent := imageMessagePrefix + question

	release := t.locks.Lock(req.ThreadID, req.UserID)
	defer release()

	thread, resolution, err := t.ResolveThread(ctx, req.ThreadID, req.UserID, req.UserEmail, userContent)
	if err != nil {
		return "", err
	}

	reply, err := t.complete(ctx, metrics.KindImage, func(ctx context.Context) (string, error) {
		return t.completer.DescribeImage(ctx, req.Image, question)
	})
	if err != nil {
		return "", err
	}

	thread.Messages = append(thread.Messages,
		storage.Message{Role: storage.RoleUser, Content: userContent},
		storage.Message{Role: storage.RoleAssistant, Content: reply},
	)
	thread.UpdatedAt = t.now()
	if err := t.store.SaveThread(ctx, thread); err != nil {
		metrics.ChatTurns.WithLabelValues(metrics.KindImage, metrics.OutcomeStoreError).Inc()
		return "", fmt.Errorf("save image turn: %w", err)
	}
	if resolution == Created {
		metrics.ThreadsCreated.Inc()
	}

	metrics.ChatTurns.WithLabelValues(metrics.KindImage, metrics.OutcomeOK).Inc()
	t.logger.InfoContext(ctx, "image turn stored",
		"thread_id", thread.ThreadID,
		"user_id", thread.UserID,
		"bytes", len(req.Image.Data),
		"resolution", resolution.String(),
	)
	return reply, nil
}

func (t *Threads) complete(ctx context.Context, kind string, call func(context.Context) (string, error)) (string, error) {
	start := time.Now()
	reply, err := call(ctx)
	metrics.CompletionLatency.WithLabelValues(kind).Observe(time.Since(start).Seconds())

	if err == nil && strings.TrimSpace(reply) == "" {
		err = completion.ErrEmptyReply
	}
	if err != nil {
		metrics.ChatTurns.WithLabelValues(kind, metrics.OutcomeUpstreamError).Inc()
		t.logger.ErrorContext(ctx, "completion failed", "kind", kind, "error", err)
		if errors.Is(err, completion.ErrEmptyReply) {
			return "", upstreamError("No response from the assistant", err)
		}
		return "", upstreamError("The assistant is unavailable, please try again", err)
	}
	return reply, nil
}

func toCompletionMessages(messages []storage.Message) []completion.Message {
	out := make([]completion.Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, completion.Message{Role: string(m.Role), Content: m.Content})
	}
	return out
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
