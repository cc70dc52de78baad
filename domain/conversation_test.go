package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"yalla-chat/errors"
)

func Test_NewParticipantPair_Is_Order_Independent(t *testing.T) {
	r := require.New(t)

	ab, err := NewParticipantPair("alice", "bob")
	r.NoError(err)
	ba, err := NewParticipantPair("bob", "alice")
	r.NoError(err)

	r.Equal(ab, ba)
	r.Equal("alice:bob", ab.Key())
	r.True(ab.Contains("alice"))
	r.True(ab.Contains("bob"))
	r.False(ab.Contains("carol"))
	r.Equal("bob", ab.Other("alice"))
	r.Equal("alice", ab.Other("bob"))
}

func Test_NewParticipantPair_Rejects_Self_And_Empty(t *testing.T) {
	r := require.New(t)

	_, err := NewParticipantPair("alice", "alice")
	r.ErrorIs(err, errors.ErrSelfConversation)

	_, err = NewParticipantPair("", "bob")
	r.ErrorIs(err, errors.ErrValidation)

	_, err = NewParticipantPair("alice", "")
	r.ErrorIs(err, errors.ErrValidation)
}

func Test_Subject_Validate(t *testing.T) {
	r := require.New(t)

	r.NoError(Subject{Kind: SubjectListing, ID: "L1"}.Validate())
	r.NoError(Subject{Kind: SubjectService, ID: "S1"}.Validate())
	r.ErrorIs(Subject{Kind: "auction", ID: "A1"}.Validate(), errors.ErrValidation)
	r.ErrorIs(Subject{Kind: SubjectListing}.Validate(), errors.ErrValidation)
}

func Test_Message_Before_Uses_ID_As_Tie_Break(t *testing.T) {
	r := require.New(t)

	at := time.Now()
	first := Message{ID: uuid.MustParse("00000000-0000-0000-0000-000000000001"), CreatedAt: at}
	second := Message{ID: uuid.MustParse("00000000-0000-0000-0000-000000000002"), CreatedAt: at}
	later := Message{ID: uuid.MustParse("00000000-0000-0000-0000-000000000000"), CreatedAt: at.Add(time.Nanosecond)}

	r.True(first.Before(second))
	r.False(second.Before(first))
	r.True(second.Before(later))
}
