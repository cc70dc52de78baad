package event

import (
	"time"

	"yalla-chat/domain"
)

// DomainEvent is anything the delivery pipeline pushes to live
// connections. RecipientIDs lists the users whose connections should
// receive the event; delivery is best-effort.
type DomainEvent interface {
	EventName() string
	RecipientIDs() []string
}

type ConversationCreated struct {
	Conversation domain.Conversation
	At           time.Time
}

func (e ConversationCreated) EventName() string      { return "new-conversation" }
func (e ConversationCreated) RecipientIDs() []string { return e.Conversation.Pair.Users() }

type MessageCreated struct {
	Message    domain.Message
	Recipients []string
}

func (e MessageCreated) EventName() string      { return "new-message" }
func (e MessageCreated) RecipientIDs() []string { return e.Recipients }

// MessagesRead notifies the peer that the reader has seen their
// messages up to At.
type MessagesRead struct {
	ConversationID string
	ReaderID       string
	Count          int
	At             time.Time
	Recipients     []string
}

func (e MessagesRead) EventName() string      { return "messages-read" }
func (e MessagesRead) RecipientIDs() []string { return e.Recipients }
