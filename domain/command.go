package domain

import "time"

// SendMessageCommand targets either an existing conversation by id or,
// for a first message, a recipient and subject pair.
type SendMessageCommand struct {
	SenderID       string
	ConversationID string
	RecipientID    string
	Subject        *Subject
	Content        string
	CreatedAt      time.Time
}

type StartConversationCommand struct {
	RequesterID string
	RecipientID string
	Subject     Subject
}

type MarkReadCommand struct {
	ReaderID       string
	ConversationID string
}

type ListConversationsCommand struct {
	UserID string
	Page   int
	Limit  int
}

type ListMessagesCommand struct {
	UserID         string
	ConversationID string
	Cursor         *string
	Limit          int
}
