//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
	"time"

	"yalla-chat/domain"
	"yalla-chat/domain/event"
)

// Worker doesn't protect itself; the supervisor restarts it on panic.
type Worker interface {
	Run(ctx context.Context) error
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// GetWorkerName uses reflection to retrieve the type name of the worker,
// for logging and supervision without a manual Name method.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is one live connection's inbound side for pushed events.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IPresence tracks live connections per user. In-memory only: losing it
// affects live delivery, never durability.
type IPresence interface {
	Register(userID, connID string, sink EventSink)
	Unregister(userID, connID string)
	SinksFor(userID string) []EventSink
	Online(userID string) bool
}

type ConversationWithPreview struct {
	Conversation domain.Conversation `json:"conversation"`
	LastMessage  *domain.Message     `json:"lastMessage,omitempty"`
	UnreadCount  int                 `json:"unreadCount"`
	Peer         Profile             `json:"peer"`
}

type IConversationRepository interface {
	GetOrCreate(pair domain.ParticipantPair, subject domain.Subject, at time.Time) (domain.Conversation, bool, error)
	Get(id string) (domain.Conversation, error)
	ListForUser(userID string) ([]domain.Conversation, error)
}

type IMessageRepository interface {
	Append(message domain.Message) error
	List(conversationID string, cursor *string, limit int) ([]domain.Message, *string, error)
	MarkRead(conversationID, readerID string) (int, error)
	CountUnread(conversationID, userID string) (int, error)
	Latest(conversationID string) (*domain.Message, error)
}

// SubjectCatalog is the external catalog collaborator: confirms a
// subject exists and tells who owns it.
type SubjectCatalog interface {
	Owner(subject domain.Subject) (string, error)
}

// Profile carries the display attributes used to enrich conversations.
type Profile struct {
	UserID    string `json:"userId"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// Profiles is the external user-directory collaborator.
type Profiles interface {
	Get(userID string) (Profile, error)
}
