// Package repositories persists conversations and messages in BadgerDB.
//
// Key layout:
//
//	conv:{id}                          conversation record
//	convkey:{kind}:{subjectID}:{pair}  uniqueness index -> conversation id
//	uconv:{userID}:{convID}            membership index per participant
//	msg:{convID}:{timestamp}:{uuid}    message record, 19-digit padded
//	listing:{id} / service:{id}        catalog snapshot
//	profile:{id}                       user profile snapshot
package repositories

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"yalla-chat/domain"
)

const (
	storeReadAttempts  = 3
	storeWriteAttempts = 10
)

func conversationKey(id string) []byte {
	return []byte("conv:" + id)
}

func conversationUniqueKey(pair domain.ParticipantPair, subject domain.Subject) []byte {
	return []byte(fmt.Sprintf("convkey:%s:%s", subject.Key(), pair.Key()))
}

func membershipKey(userID, conversationID string) []byte {
	return []byte(fmt.Sprintf("uconv:%s:%s", userID, conversationID))
}

func membershipPrefix(userID string) []byte {
	return []byte(fmt.Sprintf("uconv:%s:", userID))
}

// withWriteRetries re-runs a write transaction aborted by badger's
// conflict detection. Concurrent writers touching the same keys are
// expected under load (two participants sending into one conversation);
// a conflict is a retry signal, never a failure to surface.
func withWriteRetries(db *badger.DB, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < storeWriteAttempts; attempt++ {
		err = db.Update(fn)
		if err != badger.ErrConflict {
			return err
		}
	}
	return err
}

// withReadRetries re-runs an idempotent read a bounded number of times.
// Not-found is a result, not a transient failure, so it is returned as is.
func withReadRetries(db *badger.DB, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < storeReadAttempts; attempt++ {
		err = db.View(fn)
		if err == nil || err == badger.ErrKeyNotFound {
			return err
		}
	}
	return err
}
