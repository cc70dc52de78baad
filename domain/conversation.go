// Package domain contains core concepts of the messaging system.
// Conversations pair exactly two users around one marketplace subject.
package domain

import (
	"fmt"
	"time"

	"yalla-chat/errors"
)

type SubjectKind string

const (
	SubjectListing SubjectKind = "listing"
	SubjectService SubjectKind = "service"
)

// Subject is the listing or service offer a conversation is about.
// Exactly one kind, never both.
type Subject struct {
	Kind SubjectKind `json:"kind"`
	ID   string      `json:"id"`
}

func (s Subject) Validate() error {
	if s.Kind != SubjectListing && s.Kind != SubjectService {
		return fmt.Errorf("%w: unknown subject kind %q", errors.ErrValidation, s.Kind)
	}
	if s.ID == "" {
		return fmt.Errorf("%w: subject id is empty", errors.ErrValidation)
	}
	return nil
}

// Key is the order-independent identity part contributed by the subject.
func (s Subject) Key() string {
	return fmt.Sprintf("%s:%s", s.Kind, s.ID)
}

// ParticipantPair is a normalized unordered pair of two distinct user ids.
// Low/High keeps the pair order-independent so (a,b) and (b,a) share one key.
type ParticipantPair struct {
	Low  string `json:"low"`
	High string `json:"high"`
}

func NewParticipantPair(a, b string) (ParticipantPair, error) {
	if a == "" || b == "" {
		return ParticipantPair{}, fmt.Errorf("%w: participant id is empty", errors.ErrValidation)
	}
	if a == b {
		return ParticipantPair{}, errors.ErrSelfConversation
	}
	if a < b {
		return ParticipantPair{Low: a, High: b}, nil
	}
	return ParticipantPair{Low: b, High: a}, nil
}

func (p ParticipantPair) Key() string {
	return fmt.Sprintf("%s:%s", p.Low, p.High)
}

func (p ParticipantPair) Contains(userID string) bool {
	return userID == p.Low || userID == p.High
}

// Other returns the counterpart of userID, assuming exactly two participants.
// The two-participant invariant is hard: relaxing it to groups would
// require redesigning every delivery path, not just this helper.
func (p ParticipantPair) Other(userID string) string {
	if userID == p.Low {
		return p.High
	}
	return p.Low
}

func (p ParticipantPair) Users() []string {
	return []string{p.Low, p.High}
}

// Conversation is the unit of message grouping. Created lazily on first
// contact, never deleted here; only UpdatedAt moves afterwards.
type Conversation struct {
	ID        string          `json:"id"`
	Pair      ParticipantPair `json:"participants"`
	Subject   Subject         `json:"subject"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// UniqueKey identifies the single conversation allowed per
// (participant pair, subject).
func (c Conversation) UniqueKey() string {
	return fmt.Sprintf("%s:%s", c.Subject.Key(), c.Pair.Key())
}
