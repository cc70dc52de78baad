package repositories

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"yalla-chat/domain"
	"yalla-chat/errors"
)

func newUUID(t *testing.T) uuid.UUID {
	t.Helper()
	return uuid.New()
}

func seedConversation(t *testing.T, repository ConversationRepository, a, b string) domain.Conversation {
	t.Helper()
	conv, _, err := repository.GetOrCreate(mustPair(t, a, b),
		domain.Subject{Kind: domain.SubjectListing, ID: "L1"}, time.Now().UTC())
	require.NoError(t, err)
	return conv
}

// Two participants sending into one conversation at the same time both
// touch its record, so the store must absorb the transaction conflicts:
// every message lands and none of the senders sees a failure.
func Test_Append_Concurrent_Senders_All_Persist(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	conversations := NewConversationRepository(db, slog.Default())
	repository := NewMessageRepository(db, slog.Default(), 50)
	conv := seedConversation(t, conversations, "u1", "u2")

	const senders = 8
	at := time.Now().UTC()
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			err := repository.Append(domain.Message{
				ID:             uuid.New(),
				ConversationID: conv.ID,
				SenderID:       lo.Ternary(i%2 == 0, "u1", "u2"),
				Content:        "hello",
				CreatedAt:      at.Add(time.Duration(i) * time.Millisecond),
			})
			require.NoError(t, err)
		}(i)
	}
	close(start)
	wg.Wait()

	messages, _, err := repository.List(conv.ID, nil, 0)
	req.NoError(err)
	req.Len(messages, senders)

	// And the conversation's recency reflects the newest message
	stored, err := conversations.Get(conv.ID)
	req.NoError(err)
	req.Equal(messages[0].CreatedAt, stored.UpdatedAt)
}

func Test_Append_And_List_Newest_First(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	conversations := NewConversationRepository(db, slog.Default())
	repository := NewMessageRepository(db, slog.Default(), 50)
	conv := seedConversation(t, conversations, "u1", "u2")

	at := time.Now().UTC()
	contents := []string{"is this available?", "yes it is", "great, tomorrow?"}
	for i, content := range contents {
		err := repository.Append(domain.Message{
			ID:             newUUID(t),
			ConversationID: conv.ID,
			SenderID:       lo.Ternary(i%2 == 0, "u1", "u2"),
			Content:        content,
			CreatedAt:      at.Add(time.Duration(i) * time.Minute),
		})
		req.NoError(err)
	}

	messages, _, err := repository.List(conv.ID, nil, 0)
	req.NoError(err)
	req.Len(messages, len(contents))
	// Newest first
	req.Equal("great, tomorrow?", messages[0].Content)
	req.Equal("is this available?", messages[2].Content)
	req.False(messages[0].Read)

	// Re-fetching with no new writes yields the identical order
	again, _, err := repository.List(conv.ID, nil, 0)
	req.NoError(err)
	req.Equal(messages, again)
}

func Test_Append_Requires_Existing_Conversation(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository := NewMessageRepository(db, slog.Default(), 50)

	err := repository.Append(domain.Message{
		ID:             newUUID(t),
		ConversationID: "missing",
		SenderID:       "u1",
		Content:        "hello?",
		CreatedAt:      time.Now().UTC(),
	})
	req.ErrorIs(err, errors.ErrConversationNotFound)
}

func Test_List_Cursor_Pagination(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	conversations := NewConversationRepository(db, slog.Default())
	repository := NewMessageRepository(db, slog.Default(), 2)
	conv := seedConversation(t, conversations, "u1", "u2")

	at := time.Now().UTC()
	for i := 0; i < 5; i++ {
		err := repository.Append(domain.Message{
			ID:             newUUID(t),
			ConversationID: conv.ID,
			SenderID:       "u1",
			Content:        string(rune('a' + i)),
			CreatedAt:      at.Add(time.Duration(i) * time.Second),
		})
		req.NoError(err)
	}

	var collected []string
	var cursor *string
	for {
		messages, next, err := repository.List(conv.ID, cursor, 2)
		req.NoError(err)
		if len(messages) == 0 {
			break
		}
		for _, message := range messages {
			collected = append(collected, message.Content)
		}
		cursor = next
	}

	// Every message exactly once, newest first across pages
	req.Equal([]string{"e", "d", "c", "b", "a"}, collected)
}

func Test_Same_Nanosecond_Messages_Have_Stable_Order(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	conversations := NewConversationRepository(db, slog.Default())
	repository := NewMessageRepository(db, slog.Default(), 50)
	conv := seedConversation(t, conversations, "u1", "u2")

	at := time.Now().UTC()
	for i := 0; i < 4; i++ {
		err := repository.Append(domain.Message{
			ID:             newUUID(t),
			ConversationID: conv.ID,
			SenderID:       "u1",
			Content:        "simultaneous",
			CreatedAt:      at,
		})
		req.NoError(err)
	}

	first, _, err := repository.List(conv.ID, nil, 0)
	req.NoError(err)
	second, _, err := repository.List(conv.ID, nil, 0)
	req.NoError(err)
	req.Equal(first, second)
	req.Len(first, 4)
}

func Test_MarkRead_Flips_Only_Peer_Messages(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	conversations := NewConversationRepository(db, slog.Default())
	repository := NewMessageRepository(db, slog.Default(), 50)
	conv := seedConversation(t, conversations, "u1", "u2")

	at := time.Now().UTC()
	senders := []string{"u1", "u2", "u1", "u2"}
	for i, sender := range senders {
		err := repository.Append(domain.Message{
			ID:             newUUID(t),
			ConversationID: conv.ID,
			SenderID:       sender,
			Content:        "msg",
			CreatedAt:      at.Add(time.Duration(i) * time.Second),
		})
		req.NoError(err)
	}

	// Given u2 has two unread messages from u1
	unread, err := repository.CountUnread(conv.ID, "u2")
	req.NoError(err)
	req.Equal(2, unread)

	// When u2 marks the conversation read
	count, err := repository.MarkRead(conv.ID, "u2")
	req.NoError(err)
	req.Equal(2, count)

	// Then u2 has nothing unread left
	unread, err = repository.CountUnread(conv.ID, "u2")
	req.NoError(err)
	req.Zero(unread)

	// And u1's own unread messages from u2 are untouched
	unread, err = repository.CountUnread(conv.ID, "u1")
	req.NoError(err)
	req.Equal(2, unread)

	// And marking again transitions nothing (idempotent)
	count, err = repository.MarkRead(conv.ID, "u2")
	req.NoError(err)
	req.Zero(count)
}

func Test_Latest_Message(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	conversations := NewConversationRepository(db, slog.Default())
	repository := NewMessageRepository(db, slog.Default(), 50)
	conv := seedConversation(t, conversations, "u1", "u2")

	latest, err := repository.Latest(conv.ID)
	req.NoError(err)
	req.Nil(latest)

	at := time.Now().UTC()
	req.NoError(repository.Append(domain.Message{
		ID: newUUID(t), ConversationID: conv.ID, SenderID: "u1",
		Content: "first", CreatedAt: at,
	}))
	req.NoError(repository.Append(domain.Message{
		ID: newUUID(t), ConversationID: conv.ID, SenderID: "u2",
		Content: "second", CreatedAt: at.Add(time.Second),
	}))

	latest, err = repository.Latest(conv.ID)
	req.NoError(err)
	req.NotNil(latest)
	req.Equal("second", latest.Content)
}
