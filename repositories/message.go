//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"yalla-chat/domain"
	"yalla-chat/errors"
)

type MessageRepository struct {
	db           *badger.DB
	log          *slog.Logger
	defaultLimit int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, defaultLimit int) MessageRepository {
	return MessageRepository{db: db, log: log, defaultLimit: defaultLimit}
}

// DiskMessage is the stored representation of a message.
type DiskMessage struct {
	ID             uuid.UUID `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Content        string    `json:"content"`
	Read           bool      `json:"read"`
	At             time.Time `json:"at"`
}

// messageKey formats "msg:{conv}:{timestamp_padded}:{uuid}" so that:
//  1. 19-digit zero padding makes lexicographic order chronological.
//  2. The UUID disambiguates two messages persisted in the same
//     nanosecond, giving the (CreatedAt, ID) total order a stable tie-break.
func messageKey(message DiskMessage) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s",
		message.ConversationID,
		message.At.UnixNano(),
		message.ID,
	))
}

func messagePrefix(conversationID string) []byte {
	return []byte(fmt.Sprintf("msg:%s:", conversationID))
}

// Append persists a message and bumps the owning conversation's
// UpdatedAt to the message timestamp inside the same transaction, so the
// recency ordering of conversation lists can never lag a stored message.
// The write completes-or-fails atomically before any delivery attempt.
// Concurrent appends into one conversation both touch its record, so the
// transaction is retried on conflict; every sender's message lands.
func (m MessageRepository) Append(message domain.Message) error {
	disk := fromMessage(message)
	bytes, err := json.Marshal(disk)
	if err != nil {
		return err
	}

	return withWriteRetries(m.db, func(txn *badger.Txn) error {
		conv, err := readConversation(txn, message.ConversationID)
		if err == badger.ErrKeyNotFound {
			return errors.ErrConversationNotFound
		}
		if err != nil {
			return err
		}

		if err = txn.Set(messageKey(disk), bytes); err != nil {
			return err
		}

		// A retried loser must not move recency backwards past the winner.
		if message.CreatedAt.After(conv.UpdatedAt) {
			conv.UpdatedAt = message.CreatedAt
		}
		convBytes, err := json.Marshal(fromConversation(conv))
		if err != nil {
			return err
		}
		return txn.Set(conversationKey(conv.ID), convBytes)
	})
}

// List retrieves messages newest-first using a reverse prefix scan.
// The cursor is the key suffix of the last message of the previous page;
// nil starts from the most recent message. A second scan with no writes
// in between yields the exact same order.
func (m MessageRepository) List(conversationID string, cursor *string, limit int) ([]domain.Message, *string, error) {
	if limit <= 0 {
		limit = m.defaultLimit
	}

	var messages []domain.Message
	var lastKey string

	err := withReadRetries(m.db, func(txn *badger.Txn) error {
		messages = messages[:0]
		lastKey = ""

		prefix := messagePrefix(conversationID)
		prefixLen := len(prefix)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Seek past the newest possible timestamp, then walk backwards.
			seekKey = append(append([]byte{}, prefix...), []byte("9999999999999999999")...)
		default:
			seekKey = append(append([]byte{}, prefix...), []byte(*cursor)...)
		}

		it.Seek(seekKey)

		// A cursor points at an already-delivered message: skip it.
		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if len(messages) == limit {
				m.log.Debug(fmt.Sprintf("page limit of %d messages reached", limit))
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[prefixLen:])

			var disk DiskMessage
			err := item.Value(func(value []byte) error {
				return json.Unmarshal(value, &disk)
			})
			if err != nil {
				return err
			}
			messages = append(messages, toMessage(disk))
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if lastKey == "" {
		return messages, nil, nil
	}
	return messages, &lastKey, nil
}

// MarkRead flips every unread message authored by the other participant
// to read and returns how many were transitioned. Calling it again is a
// no-op that returns 0; messages authored by the reader are untouched.
// Retried on conflict so a reader racing a concurrent append never
// surfaces a store-level failure.
func (m MessageRepository) MarkRead(conversationID, readerID string) (int, error) {
	count := 0
	err := withWriteRetries(m.db, func(txn *badger.Txn) error {
		count = 0
		prefix := messagePrefix(conversationID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var disk DiskMessage
			err := item.Value(func(value []byte) error {
				return json.Unmarshal(value, &disk)
			})
			if err != nil {
				return err
			}
			if disk.SenderID == readerID || disk.Read {
				continue
			}

			disk.Read = true
			bytes, err := json.Marshal(disk)
			if err != nil {
				return err
			}
			if err = txn.Set(append([]byte{}, item.Key()...), bytes); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// CountUnread counts messages addressed to userID still awaiting a read.
func (m MessageRepository) CountUnread(conversationID, userID string) (int, error) {
	count := 0
	err := withReadRetries(m.db, func(txn *badger.Txn) error {
		count = 0
		prefix := messagePrefix(conversationID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var disk DiskMessage
			err := it.Item().Value(func(value []byte) error {
				return json.Unmarshal(value, &disk)
			})
			if err != nil {
				return err
			}
			if disk.SenderID != userID && !disk.Read {
				count++
			}
		}
		return nil
	})
	return count, err
}

// Latest returns the most recent message of a conversation, nil if the
// conversation holds none yet.
func (m MessageRepository) Latest(conversationID string) (*domain.Message, error) {
	var latest *domain.Message
	err := withReadRetries(m.db, func(txn *badger.Txn) error {
		latest = nil
		prefix := messagePrefix(conversationID)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		seekKey := append(append([]byte{}, prefix...), []byte("9999999999999999999")...)
		it.Seek(seekKey)
		if !it.ValidForPrefix(prefix) {
			return nil
		}

		var disk DiskMessage
		err := it.Item().Value(func(value []byte) error {
			return json.Unmarshal(value, &disk)
		})
		if err != nil {
			return err
		}
		message := toMessage(disk)
		latest = &message
		return nil
	})
	return latest, err
}

func fromMessage(message domain.Message) DiskMessage {
	return DiskMessage{
		ID:             message.ID,
		ConversationID: message.ConversationID,
		SenderID:       message.SenderID,
		Content:        message.Content,
		Read:           message.Read,
		At:             message.CreatedAt.UTC(),
	}
}

func toMessage(disk DiskMessage) domain.Message {
	return domain.Message{
		ID:             disk.ID,
		ConversationID: disk.ConversationID,
		SenderID:       disk.SenderID,
		Content:        disk.Content,
		Read:           disk.Read,
		CreatedAt:      disk.At,
	}
}
