package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message is an immutable chat event. Content never changes after
// creation; only the Read flag is flipped by the read-state tracker.
type Message struct {
	ID             uuid.UUID `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Content        string    `json:"content"`
	Read           bool      `json:"read"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Before reports the store order: (CreatedAt, ID) with the id as a
// stable tie-break for messages persisted in the same nanosecond.
func (m Message) Before(other Message) bool {
	if m.CreatedAt.Equal(other.CreatedAt) {
		return m.ID.String() < other.ID.String()
	}
	return m.CreatedAt.Before(other.CreatedAt)
}
