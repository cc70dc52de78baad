//go:generate go run go.uber.org/mock/mockgen -source=conversation.go -destination=../mocks/mock_conversation_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"yalla-chat/domain"
	"yalla-chat/errors"
)

// creation retries cover insert-if-absent races detected by badger
const maxCreateAttempts = 5

type ConversationRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewConversationRepository(db *badger.DB, log *slog.Logger) ConversationRepository {
	return ConversationRepository{db: db, log: log}
}

// DiskConversation is the stored representation of a conversation.
type DiskConversation struct {
	ID        string    `json:"id"`
	Low       string    `json:"low"`
	High      string    `json:"high"`
	Kind      string    `json:"kind"`
	SubjectID string    `json:"subjectId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// GetOrCreate resolves the single conversation for a (pair, subject) key,
// creating it when absent. The uniqueness index and the record are
// written inside one transaction; when two callers race, badger's commit
// conflict detection aborts the loser, which then re-reads the winner.
// All concurrent callers therefore converge to the same record, with at
// most one conversation persisted.
func (r ConversationRepository) GetOrCreate(pair domain.ParticipantPair,
	subject domain.Subject, at time.Time) (domain.Conversation, bool, error) {

	uniqueKey := conversationUniqueKey(pair, subject)

	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		var conv domain.Conversation
		var created bool

		err := r.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get(uniqueKey)
			if err == nil {
				existing, err := readConversationByRef(txn, item)
				if err != nil {
					return err
				}
				conv, created = existing, false
				return nil
			}
			if err != badger.ErrKeyNotFound {
				return err
			}

			conv = domain.Conversation{
				ID:        uuid.NewString(),
				Pair:      pair,
				Subject:   subject,
				CreatedAt: at,
				UpdatedAt: at,
			}
			created = true

			bytes, err := json.Marshal(fromConversation(conv))
			if err != nil {
				return err
			}
			if err = txn.Set(uniqueKey, []byte(conv.ID)); err != nil {
				return err
			}
			if err = txn.Set(conversationKey(conv.ID), bytes); err != nil {
				return err
			}
			if err = txn.Set(membershipKey(pair.Low, conv.ID), nil); err != nil {
				return err
			}
			return txn.Set(membershipKey(pair.High, conv.ID), nil)
		})

		if err == badger.ErrConflict {
			r.log.Debug("conversation creation lost the race, retrying",
				"pair", pair.Key(), "subject", subject.Key())
			continue
		}
		if err != nil {
			return domain.Conversation{}, false, err
		}
		return conv, created, nil
	}

	return domain.Conversation{}, false, errors.ErrDuplicateConversation
}

func (r ConversationRepository) Get(id string) (domain.Conversation, error) {
	var conv domain.Conversation
	err := withReadRetries(r.db, func(txn *badger.Txn) error {
		found, err := readConversation(txn, id)
		if err != nil {
			return err
		}
		conv = found
		return nil
	})
	if err == badger.ErrKeyNotFound {
		return domain.Conversation{}, errors.ErrConversationNotFound
	}
	return conv, err
}

// ListForUser returns every conversation the user participates in,
// most recently active first.
func (r ConversationRepository) ListForUser(userID string) ([]domain.Conversation, error) {
	var conversations []domain.Conversation

	err := withReadRetries(r.db, func(txn *badger.Txn) error {
		conversations = conversations[:0]
		prefix := membershipPrefix(userID)
		prefixLen := len(prefix)

		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			conversationID := string(it.Item().Key()[prefixLen:])
			conv, err := readConversation(txn, conversationID)
			if err != nil {
				return fmt.Errorf("dangling membership index %q: %w",
					conversationID, err)
			}
			conversations = append(conversations, conv)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].UpdatedAt.After(conversations[j].UpdatedAt)
	})
	return conversations, nil
}

func readConversation(txn *badger.Txn, id string) (domain.Conversation, error) {
	item, err := txn.Get(conversationKey(id))
	if err != nil {
		return domain.Conversation{}, err
	}
	var disk DiskConversation
	err = item.Value(func(value []byte) error {
		return json.Unmarshal(value, &disk)
	})
	if err != nil {
		return domain.Conversation{}, err
	}
	return toConversation(disk), nil
}

func readConversationByRef(txn *badger.Txn, ref *badger.Item) (domain.Conversation, error) {
	var id string
	err := ref.Value(func(value []byte) error {
		id = string(value)
		return nil
	})
	if err != nil {
		return domain.Conversation{}, err
	}
	return readConversation(txn, id)
}

func fromConversation(conv domain.Conversation) DiskConversation {
	return DiskConversation{
		ID:        conv.ID,
		Low:       conv.Pair.Low,
		High:      conv.Pair.High,
		Kind:      string(conv.Subject.Kind),
		SubjectID: conv.Subject.ID,
		CreatedAt: conv.CreatedAt.UTC(),
		UpdatedAt: conv.UpdatedAt.UTC(),
	}
}

func toConversation(disk DiskConversation) domain.Conversation {
	return domain.Conversation{
		ID:        disk.ID,
		Pair:      domain.ParticipantPair{Low: disk.Low, High: disk.High},
		Subject:   domain.Subject{Kind: domain.SubjectKind(disk.Kind), ID: disk.SubjectID},
		CreatedAt: disk.CreatedAt,
		UpdatedAt: disk.UpdatedAt,
	}
}
