package repositories

import (
	"log/slog"
	"testing"

	"chat-relay/domain"
	"chat-relay/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func Test_Append_And_History_Order(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default())
	conv := domain.GroupKey("1")

	contents := []string{"first", "second", "third"}
	for _, content := range contents {
		_, err := repository.Append(conv, "alice-id", "alice", content)
		req.NoError(err)
	}

	history, err := repository.History(conv)
	req.NoError(err)
	req.Len(history, len(contents))
	for i, msg := range history {
		req.Equal(contents[i], msg.Content)
		req.Equal("alice-id", msg.SenderID)
		req.Equal("alice", msg.SenderName)
		req.Equal(conv, msg.ConversationKey)
		req.NotEqual("00000000-0000-0000-0000-000000000000", msg.ID.String())
	}
}

func Test_Append_Rejects_Empty_Content(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default())

	_, err := repository.Append(domain.GroupKey("1"), "alice-id", "alice", "")
	req.ErrorIs(err, errors.ErrInvalidArgument)

	history, err := repository.History(domain.GroupKey("1"))
	req.NoError(err)
	req.Empty(history)
}

func Test_History_Is_Restartable(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default())
	conv := domain.DirectKey("a", "b")

	_, err := repository.Append(conv, "a", "alice", "hello")
	req.NoError(err)

	first, err := repository.History(conv)
	req.NoError(err)
	second, err := repository.History(conv)
	req.NoError(err)
	req.Equal(first, second)
}

func Test_History_Isolated_Per_Conversation(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default())

	_, err := repository.Append(domain.GroupKey("1"), "alice-id", "alice", "for group one")
	req.NoError(err)
	_, err = repository.Append(domain.GroupKey("10"), "alice-id", "alice", "for group ten")
	req.NoError(err)

	history, err := repository.History(domain.GroupKey("1"))
	req.NoError(err)
	req.Len(history, 1)
	req.Equal("for group one", history[0].Content)
}

func Test_DeleteConversation(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default())
	conv := domain.GroupKey("doomed")

	for i := 0; i < 3; i++ {
		_, err := repository.Append(conv, "alice-id", "alice", "soon gone")
		req.NoError(err)
	}

	count, err := repository.DeleteConversation(conv)
	req.NoError(err)
	req.Equal(3, count)

	history, err := repository.History(conv)
	req.NoError(err)
	req.Empty(history)

	// Idempotent: deleting again is a no-op, not an error.
	count, err = repository.DeleteConversation(conv)
	req.NoError(err)
	req.Zero(count)
}

func Test_DirectPair_Index(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default())

	created, err := repository.RecordDirectPair("alice-id", "carol-id")
	req.NoError(err)
	req.True(created)

	created, err = repository.RecordDirectPair("carol-id", "alice-id")
	req.NoError(err)
	req.False(created) // already known, idempotent

	partners, err := repository.DirectPartners("alice-id")
	req.NoError(err)
	req.Equal([]string{"carol-id"}, partners)

	partners, err = repository.DirectPartners("carol-id")
	req.NoError(err)
	req.Equal([]string{"alice-id"}, partners)

	req.NoError(repository.DeleteDirectPair("carol-id", "alice-id"))
	partners, err = repository.DirectPartners("alice-id")
	req.NoError(err)
	req.Empty(partners)
}
