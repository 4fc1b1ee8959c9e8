//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"chat-relay/domain"
	"chat-relay/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

type IMessageRepository interface {
	Append(conversationKey, senderID, senderName, content string) (domain.Message, error)
	History(conversationKey string) ([]domain.Message, error)
	DeleteConversation(conversationKey string) (int, error)
	RecordDirectPair(userA, userB string) (bool, error)
	DirectPartners(userID string) ([]string, error)
	DeleteDirectPair(userA, userB string) error
}

// MessageRepository is the append-only message log. Messages never mutate
// once stored; ordering is by creation time with a process-wide sequence
// as tie-break.
type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
	seq atomic.Uint64
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) *MessageRepository {
	return &MessageRepository{db: db, log: log}
}

// messageRecord is the on-disk shape of a message.
type messageRecord struct {
	ID         string `cbor:"1,keyasint"`
	Conv       string `cbor:"2,keyasint"`
	Sender     string `cbor:"3,keyasint"`
	SenderName string `cbor:"4,keyasint"`
	Content    string `cbor:"5,keyasint"`
	At         int64  `cbor:"6,keyasint"`
}

// messageKey formats keys as "msg:{conv}:{timestamp_padded}:{seq_padded}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Keep insertion order as the tie-break if two messages land on the
//     same nanosecond.
func messageKey(conversationKey string, at time.Time, seq uint64) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%012d", conversationKey, at.UnixNano(), seq))
}

func messagePrefix(conversationKey string) []byte {
	return []byte("msg:" + conversationKey + ":")
}

// Append persists a message and assigns its id and timestamp. The id
// exists before any live observer sees the message, which is what lets
// receivers de-duplicate a push against a later history fetch.
func (m *MessageRepository) Append(conversationKey, senderID, senderName, content string) (domain.Message, error) {
	if content == "" {
		return domain.Message{}, fmt.Errorf("%w: empty content", errors.ErrInvalidArgument)
	}
	if conversationKey == "" {
		return domain.Message{}, fmt.Errorf("%w: empty conversation key", errors.ErrInvalidArgument)
	}

	msg := domain.Message{
		ID:              uuid.New(),
		ConversationKey: conversationKey,
		SenderID:        senderID,
		SenderName:      senderName,
		Content:         content,
		CreatedAt:       time.Now().UTC(),
	}

	bytes, err := cbor.Marshal(fromMessage(msg))
	if err != nil {
		return domain.Message{}, err
	}

	key := messageKey(conversationKey, msg.CreatedAt, m.seq.Add(1))
	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, bytes)
	})
	if err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

// History returns the full message sequence of a conversation in ascending
// creation order. Thanks to the padded timestamp in the key, a plain
// forward prefix scan yields the order for free. Repeat calls return the
// current full history, not a continuation.
func (m *MessageRepository) History(conversationKey string) ([]domain.Message, error) {
	var byteMessages [][]byte
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := messagePrefix(conversationKey)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				byteMessages = append(byteMessages, append([]byte(nil), value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	messages := make([]domain.Message, 0, len(byteMessages))
	for _, b := range byteMessages {
		var record messageRecord
		if err = cbor.Unmarshal(b, &record); err != nil {
			return nil, err
		}
		msg, err := toMessage(record)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// DeleteConversation removes every message of a conversation and reports
// how many were dropped. Deleting an absent or empty conversation is a
// no-op returning 0.
func (m *MessageRepository) DeleteConversation(conversationKey string) (int, error) {
	var keys [][]byte
	prefix := messagePrefix(conversationKey)
	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	batch := m.db.NewWriteBatch()
	defer batch.Cancel()
	for _, key := range keys {
		if err := batch.Delete(key); err != nil {
			return 0, err
		}
	}
	if err := batch.Flush(); err != nil {
		return 0, err
	}

	m.log.Debug(fmt.Sprintf("Deleted %d messages from %s", len(keys), conversationKey))
	return len(keys), nil
}

// RecordDirectPair marks that two users have exchanged at least one direct
// message, in both directions so either side's conversation list finds the
// other. Idempotent; reports whether the pair was newly discovered so the
// caller can hint both users to refresh their conversation lists.
func (m *MessageRepository) RecordDirectPair(userA, userB string) (bool, error) {
	created := false
	err := m.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(dmPairKey(userA, userB)); err == badger.ErrKeyNotFound {
			created = true
		}
		if err := txn.Set(dmPairKey(userA, userB), nil); err != nil {
			return err
		}
		return txn.Set(dmPairKey(userB, userA), nil)
	})
	return created, err
}

// DirectPartners lists every user the given user has a direct conversation with.
func (m *MessageRepository) DirectPartners(userID string) ([]string, error) {
	var partners []string
	prefix := []byte("dmpair:" + userID + ":")
	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			partners = append(partners, strings.TrimPrefix(key, string(prefix)))
		}
		return nil
	})
	return partners, err
}

// DeleteDirectPair forgets the direct conversation marker in both directions.
func (m *MessageRepository) DeleteDirectPair(userA, userB string) error {
	return m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(dmPairKey(userA, userB)); err != nil {
			return err
		}
		return txn.Delete(dmPairKey(userB, userA))
	})
}

func dmPairKey(owner, other string) []byte {
	return []byte("dmpair:" + owner + ":" + other)
}

func fromMessage(msg domain.Message) messageRecord {
	return messageRecord{
		ID:         msg.ID.String(),
		Conv:       msg.ConversationKey,
		Sender:     msg.SenderID,
		SenderName: msg.SenderName,
		Content:    msg.Content,
		At:         msg.CreatedAt.UnixNano(),
	}
}

func toMessage(record messageRecord) (domain.Message, error) {
	parsedID, err := uuid.Parse(record.ID)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:              parsedID,
		ConversationKey: record.Conv,
		SenderID:        record.Sender,
		SenderName:      record.SenderName,
		Content:         record.Content,
		CreatedAt:       time.Unix(0, record.At).UTC(),
	}, nil
}
