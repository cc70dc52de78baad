package repositories

import (
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"yalla-chat/contract"
	"yalla-chat/domain"
	"yalla-chat/errors"
)

// CatalogRepository reads the listing/service/profile snapshot the
// platform syncs into the store. The messaging core only consumes it:
// confirming a subject exists and resolving its owner, plus profile
// lookups for conversation enrichment.
type CatalogRepository struct {
	db *badger.DB
}

func NewCatalogRepository(db *badger.DB) CatalogRepository {
	return CatalogRepository{db: db}
}

// CatalogEntry mirrors the attributes the platform publishes per subject.
type CatalogEntry struct {
	ID      string `json:"id"`
	OwnerID string `json:"ownerId"`
	Title   string `json:"title"`
}

func subjectKey(subject domain.Subject) []byte {
	return []byte(fmt.Sprintf("%s:%s", subject.Kind, subject.ID))
}

func profileKey(userID string) []byte {
	return []byte("profile:" + userID)
}

// Owner confirms the subject exists and returns the user who owns it.
func (c CatalogRepository) Owner(subject domain.Subject) (string, error) {
	var entry CatalogEntry
	err := withReadRetries(c.db, func(txn *badger.Txn) error {
		item, err := txn.Get(subjectKey(subject))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &entry)
		})
	})
	if err == badger.ErrKeyNotFound {
		return "", errors.ErrSubjectNotFound
	}
	if err != nil {
		return "", err
	}
	return entry.OwnerID, nil
}

func (c CatalogRepository) Get(userID string) (contract.Profile, error) {
	var profile contract.Profile
	err := withReadRetries(c.db, func(txn *badger.Txn) error {
		item, err := txn.Get(profileKey(userID))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &profile)
		})
	})
	if err == badger.ErrKeyNotFound {
		return contract.Profile{}, errors.ErrProfileNotFound
	}
	return profile, err
}

// PutSubject and PutProfile are the sync entry points used by the
// platform's import job and by tests.
func (c CatalogRepository) PutSubject(subject domain.Subject, entry CatalogEntry) error {
	bytes, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(subjectKey(subject), bytes)
	})
}

func (c CatalogRepository) PutProfile(profile contract.Profile) error {
	bytes, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(profileKey(profile.UserID), bytes)
	})
}
