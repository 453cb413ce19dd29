package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenggwsx/NovaMind/internal/completion"
	"github.com/fenggwsx/NovaMind/internal/logging"
	"github.com/fenggwsx/NovaMind/internal/storage"
)

func newTestThreads(t *testing.T, completer completion.Client) (*Threads, *memoryStore) {
	t.Helper()
	store := newMemoryStore()
	threads := NewThreads(store, completer, logging.Discard())
	threads.now = steppingClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	return threads, store
}

func send(threadID, userID, text string) SendRequest {
	return SendRequest{ThreadID: threadID, UserID: userID, UserEmail: userID + "@x.io", Text: text}
}

func TestSendMessageCreatesThreadAndStoresTurn(t *testing.T) {
	threads, store := newTestThreads(t, &scriptedCompleter{reply: "Hello"})
	ctx := context.Background()

	reply, err := threads.SendMessage(ctx, send("t1", "u1", "Hi"))
	require.NoError(t, err)
	assert.Equal(t, "Hello", reply)

	messages, err := threads.GetThreadMessages(ctx, "t1", "u1")
	require.NoError(t, err)
	assert.Equal(t, []storage.Message{
		{Role: storage.RoleUser, Content: "Hi"},
		{Role: storage.RoleAssistant, Content: "Hello"},
	}, messages)

	stored := store.threads[threadKey("t1", "u1")]
	assert.Equal(t, "Hi", stored.Title)
	assert.Equal(t, "u1@x.io", stored.UserEmail)
	assert.True(t, stored.UpdatedAt.After(stored.CreatedAt))
}

func TestSendMessageSequenceInterleavesTurns(t *testing.T) {
	completer := &scriptedCompleter{}
	threads, _ := newTestThreads(t, completer)
	ctx := context.Background()

	for _, text := range []string{"one", "two", "three"} {
		_, err := threads.SendMessage(ctx, send("t1", "u1", text))
		require.NoError(t, err)
	}

	messages, err := threads.GetThreadMessages(ctx, "t1", "u1")
	require.NoError(t, err)
	require.Len(t, messages, 6)
	for i, text := range []string{"one", "two", "three"} {
		assert.Equal(t, storage.Message{Role: storage.RoleUser, Content: text}, messages[2*i])
		assert.Equal(t, storage.Message{Role: storage.RoleAssistant, Content: "echo: " + text}, messages[2*i+1])
	}

	require.Len(t, completer.calls, 3)
	last := completer.calls[2]
	require.Len(t, last, 5)
	assert.Equal(t, completion.Message{Role: "user", Content: "one"}, last[0])
	assert.Equal(t, completion.Message{Role: "assistant", Content: "echo: one"}, last[1])
	assert.Equal(t, completion.Message{Role: "user", Content: "three"}, last[4])
}

func TestSendMessageValidation(t *testing.T) {
	threads, store := newTestThreads(t, &scriptedCompleter{})
	ctx := context.Background()

	for _, req := range []SendRequest{
		{UserID: "u1", UserEmail: "u1@x.io", Text: "hi"},
		{ThreadID: "t1", UserEmail: "u1@x.io", Text: "hi"},
		{ThreadID: "t1", UserID: "u1", Text: "hi"},
		{ThreadID: "t1", UserID: "u1", UserEmail: "u1@x.io", Text: "   "},
	} {
		_, err := threads.SendMessage(ctx, req)
		require.ErrorIs(t, err, ErrValidation)
		msg, _ := PublicMessage(err)
		assert.Equal(t, "missing required fields: threadId, message, userId, userEmail", msg)
	}
	assert.Empty(t, store.threads)
}

func TestSendMessageUpstreamFailureKeepsUserTurn(t *testing.T) {
	completer := &scriptedCompleter{err: errUpstreamDown}
	threads, _ := newTestThreads(t, completer)
	ctx := context.Background()

	_, err := threads.SendMessage(ctx, send("t1", "u1", "Hi"))
	require.ErrorIs(t, err, ErrUpstream)
	require.ErrorIs(t, err, errUpstreamDown)

	messages, err := threads.GetThreadMessages(ctx, "t1", "u1")
	require.NoError(t, err)
	assert.Equal(t, []storage.Message{{Role: storage.RoleUser, Content: "Hi"}}, messages)
}

func TestSendMessageEmptyReplyIsUpstreamError(t *testing.T) {
	threads, _ := newTestThreads(t, &scriptedCompleter{reply: "   "})

	_, err := threads.SendMessage(context.Background(), send("t1", "u1", "Hi"))
	require.ErrorIs(t, err, ErrUpstream)
	require.ErrorIs(t, err, completion.ErrEmptyReply)
	msg, _ := PublicMessage(err)
	assert.Equal(t, "No response from the assistant", msg)
}

func TestSendMessageStoreFailureIsWrapped(t *testing.T) {
	threads, store := newTestThreads(t, &scriptedCompleter{})
	storeErr := errors.New("disk full")
	store.saveErr = storeErr

	_, err := threads.SendMessage(context.Background(), send("t1", "u1", "Hi"))
	require.ErrorIs(t, err, storeErr)
	_, classified := PublicMessage(err)
	assert.False(t, classified)
}

func TestSendMessageToForeignThreadIsNotFound(t *testing.T) {
	threads, store := newTestThreads(t, &scriptedCompleter{})
	ctx := context.Background()

	_, err := threads.SendMessage(ctx, send("t1", "owner", "mine"))
	require.NoError(t, err)

	_, err = threads.SendMessage(ctx, send("t1", "intruder", "let me in"))
	require.ErrorIs(t, err, ErrNotFound)

	assert.Len(t, store.threads, 1)
	messages, err := threads.GetThreadMessages(ctx, "t1", "owner")
	require.NoError(t, err)
	assert.Len(t, messages, 2)
}

func TestResolveThread(t *testing.T) {
	threads, _ := newTestThreads(t, &scriptedCompleter{})
	ctx := context.Background()
	long := strings.Repeat("x", 80)

	created, resolution, err := threads.ResolveThread(ctx, "t1", "u1", "u1@x.io", long)
	require.NoError(t, err)
	assert.Equal(t, Created, resolution)
	assert.Equal(t, strings.Repeat("x", 50)+"...", created.Title)
	assert.Empty(t, created.Messages)

	_, err = threads.GetThreadMessages(ctx, "t1", "u1")
	require.ErrorIs(t, err, ErrNotFound, "a resolved thread is not stored until a turn is saved")

	_, err = threads.SendMessage(ctx, send("t1", "u1", "first"))
	require.NoError(t, err)

	found, resolution, err := threads.ResolveThread(ctx, "t1", "u1", "u1@x.io", "ignored")
	require.NoError(t, err)
	assert.Equal(t, Found, resolution)
	assert.Equal(t, "first", found.Title)
	assert.Equal(t, "created", Created.String())
	assert.Equal(t, "found", Found.String())
}

func TestListThreadsOrderedByActivity(t *testing.T) {
	threads, _ := newTestThreads(t, &scriptedCompleter{})
	ctx := context.Background()

	for _, id := range []string{"t1", "t2", "t3"} {
		_, err := threads.SendMessage(ctx, send(id, "u1", "hello "+id))
		require.NoError(t, err)
	}
	_, err := threads.SendMessage(ctx, send("other", "u2", "not mine"))
	require.NoError(t, err)

	list, err := threads.ListThreads(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "t3", list[0].ThreadID)
	assert.Equal(t, "t2", list[1].ThreadID)
	assert.Equal(t, "t1", list[2].ThreadID)
	assert.Equal(t, 2, list[0].MessageCount)
	assert.Equal(t, "hello t3", list[0].Title)

	_, err = threads.SendMessage(ctx, send("t1", "u1", "again"))
	require.NoError(t, err)
	list, err = threads.ListThreads(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "t1", list[0].ThreadID)
	assert.Equal(t, 4, list[0].MessageCount)

	_, err = threads.ListThreads(ctx, " ")
	require.ErrorIs(t, err, ErrValidation)
}

func TestDeleteThread(t *testing.T) {
	threads, _ := newTestThreads(t, &scriptedCompleter{})
	ctx := context.Background()

	_, err := threads.SendMessage(ctx, send("t1", "u1", "Hi"))
	require.NoError(t, err)

	require.ErrorIs(t, threads.DeleteThread(ctx, "t1", "u2"), ErrNotFound)
	require.NoError(t, threads.DeleteThread(ctx, "t1", "u1"))
	require.ErrorIs(t, threads.DeleteThread(ctx, "t1", "u1"), ErrNotFound)
	require.ErrorIs(t, threads.DeleteThread(ctx, "t1", ""), ErrValidation)

	_, err = threads.GetThreadMessages(ctx, "t1", "u1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetThreadMessagesRequiresUser(t *testing.T) {
	threads, _ := newTestThreads(t, &scriptedCompleter{})

	_, err := threads.GetThreadMessages(context.Background(), "t1", "")
	require.ErrorIs(t, err, ErrValidation)
	msg, _ := PublicMessage(err)
	assert.Equal(t, "userId is required", msg)
}

func TestConcurrentTurnsOnOneThreadAreNotLost(t *testing.T) {
	threads, _ := newTestThreads(t, &scriptedCompleter{})
	ctx := context.Background()

	const turns = 20
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := threads.SendMessage(ctx, send("t1", "u1", fmt.Sprintf("msg %d", i)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	messages, err := threads.GetThreadMessages(ctx, "t1", "u1")
	require.NoError(t, err)
	require.Len(t, messages, 2*turns)
	for i := 0; i < turns; i++ {
		user, assistant := messages[2*i], messages[2*i+1]
		assert.Equal(t, storage.RoleUser, user.Role)
		assert.Equal(t, "echo: "+user.Content, assistant.Content)
	}
	assert.Zero(t, threads.locks.size())
}

func TestSendImageMessage(t *testing.T) {
	completer := &scriptedCompleter{reply: "A cat on a sofa."}
	threads, _ := newTestThreads(t, completer)
	ctx := context.Background()
	image := completion.Image{Data: []byte{0x89, 'P', 'N', 'G'}, MIMEType: "image/png"}

	reply, err := threads.SendImageMessage(ctx, ImageRequest{
		ThreadID: "t1", UserID: "u1", UserEmail: "u1@x.io", Image: image,
	})
	require.NoError(t, err)
	assert.Equal(t, "A cat on a sofa.", reply)
	assert.Equal(t, DefaultImageQuestion, completer.question)
	assert.Equal(t, image, completer.image)

	messages, err := threads.GetThreadMessages(ctx, "t1", "u1")
	require.NoError(t, err)
	assert.Equal(t, []storage.Message{
		{Role: storage.RoleUser, Content: "[Image] " + DefaultImageQuestion},
		{Role: storage.RoleAssistant, Content: "A cat on a sofa."},
	}, messages)

	_, err = threads.SendImageMessage(ctx, ImageRequest{
		ThreadID: "t1", UserID: "u1", UserEmail: "u1@x.io", Image: image, Question: "What color?",
	})
	require.NoError(t, err)
	messages, err = threads.GetThreadMessages(ctx, "t1", "u1")
	require.NoError(t, err)
	require.Len(t, messages, 4)
	assert.Equal(t, "[Image] What color?", messages[2].Content)
}

func TestSendImageMessageFailurePersistsNothing(t *testing.T) {
	threads, store := newTestThreads(t, &scriptedCompleter{err: errUpstreamDown})

	_, err := threads.SendImageMessage(context.Background(), ImageRequest{
		ThreadID: "t1", UserID: "u1", UserEmail: "u1@x.io",
		Image: completion.Image{Data: []byte("img"), MIMEType: "image/jpeg"},
	})
	require.ErrorIs(t, err, ErrUpstream)
	assert.Empty(t, store.threads)
	assert.Zero(t, store.saves)
}

func TestSendImageMessageValidation(t *testing.T) {
	threads, _ := newTestThreads(t, &scriptedCompleter{})
	ctx := context.Background()

	_, err := threads.SendImageMessage(ctx, ImageRequest{ThreadID: "t1", UserID: "u1", UserEmail: "u1@x.io"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = threads.SendImageMessage(ctx, ImageRequest{
		ThreadID: "t1", UserEmail: "u1@x.io",
		Image: completion.Image{Data: []byte("img")},
	})
	require.ErrorIs(t, err, ErrValidation)
}
