//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"yalla-chat/contract"
	"yalla-chat/domain"
	"yalla-chat/domain/event"
	"yalla-chat/errors"
	"yalla-chat/moderation"
)

type IChatService interface {
	SendMessage(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error)
	StartConversation(ctx context.Context, cmd domain.StartConversationCommand) (domain.Conversation, error)
	MarkRead(ctx context.Context, cmd domain.MarkReadCommand) (int, error)
	ListConversations(ctx context.Context, cmd domain.ListConversationsCommand) ([]contract.ConversationWithPreview, error)
	ListMessages(ctx context.Context, cmd domain.ListMessagesCommand) ([]domain.Message, *string, error)
}

// ChatService orchestrates the relay: validate, resolve the
// conversation, persist, then hand delivery to the event pipeline.
// Persistence completes-or-fails before any delivery attempt; a missing
// live connection is never an error.
type ChatService struct {
	log           *slog.Logger
	conversations contract.IConversationRepository
	messages      contract.IMessageRepository
	catalog       contract.SubjectCatalog
	profiles      contract.Profiles
	moderator     *moderation.Moderator
	events        chan<- event.DomainEvent
	defaultLimit  int
}

func NewChatService(log *slog.Logger,
	conversations contract.IConversationRepository,
	messages contract.IMessageRepository,
	catalog contract.SubjectCatalog,
	profiles contract.Profiles,
	moderator *moderation.Moderator,
	events chan<- event.DomainEvent,
	defaultLimit int) *ChatService {
	return &ChatService{
		log:           log,
		conversations: conversations,
		messages:      messages,
		catalog:       catalog,
		profiles:      profiles,
		moderator:     moderator,
		events:        events,
		defaultLimit:  defaultLimit,
	}
}

// SendMessage relays one message: resolve or lazily create the
// conversation, check the sender is a participant, censor, persist with
// read=false, then emit the delivery event for both participants' live
// connections. The returned message is the sender's acknowledgment.
func (s *ChatService) SendMessage(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error) {
	content := strings.TrimSpace(cmd.Content)
	if content == "" {
		return domain.Message{}, errors.ErrEmptyContent
	}

	conv, err := s.resolveConversation(ctx, cmd)
	if err != nil {
		return domain.Message{}, err
	}

	if !conv.Pair.Contains(cmd.SenderID) {
		return domain.Message{}, errors.ErrNotParticipant
	}

	censored, foundWords := s.moderator.Censor(content)
	if len(foundWords) > 0 {
		s.log.Warn("message content censored",
			"conversation_id", conv.ID,
			"sender_id", cmd.SenderID,
			"lang", moderation.DetectLanguage(content),
			"hits", len(foundWords))
	}

	createdAt := cmd.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	message := domain.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		SenderID:       cmd.SenderID,
		Content:        censored,
		Read:           false,
		CreatedAt:      createdAt,
	}

	if err = s.messages.Append(message); err != nil {
		return domain.Message{}, fmt.Errorf("persisting message: %w", err)
	}

	s.emit(event.MessageCreated{
		Message:    message,
		Recipients: conv.Pair.Users(),
	})
	return message, nil
}

// StartConversation is the idempotent create-or-get entry point. The
// counterpart is explicit or derived from the subject's catalog owner.
func (s *ChatService) StartConversation(ctx context.Context, cmd domain.StartConversationCommand) (domain.Conversation, error) {
	if err := cmd.Subject.Validate(); err != nil {
		return domain.Conversation{}, err
	}

	ownerID, err := s.catalog.Owner(cmd.Subject)
	if err != nil {
		return domain.Conversation{}, err
	}

	recipientID := cmd.RecipientID
	if recipientID == "" {
		recipientID = ownerID
	}

	pair, err := domain.NewParticipantPair(cmd.RequesterID, recipientID)
	if err != nil {
		return domain.Conversation{}, err
	}

	conv, created, err := s.conversations.GetOrCreate(pair, cmd.Subject, time.Now().UTC())
	if err != nil {
		return domain.Conversation{}, err
	}
	if created {
		s.emit(event.ConversationCreated{Conversation: conv, At: conv.CreatedAt})
	}
	return conv, nil
}

// MarkRead flips the reader's unread messages and notifies the peer's
// live connections. Safe to call repeatedly; a zero count is valid.
func (s *ChatService) MarkRead(ctx context.Context, cmd domain.MarkReadCommand) (int, error) {
	conv, err := s.conversations.Get(cmd.ConversationID)
	if err != nil {
		return 0, err
	}
	if !conv.Pair.Contains(cmd.ReaderID) {
		return 0, errors.ErrNotParticipant
	}

	count, err := s.messages.MarkRead(conv.ID, cmd.ReaderID)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.emit(event.MessagesRead{
			ConversationID: conv.ID,
			ReaderID:       cmd.ReaderID,
			Count:          count,
			At:             time.Now().UTC(),
			Recipients:     []string{conv.Pair.Other(cmd.ReaderID)},
		})
	}
	return count, nil
}

// ListConversations returns the user's conversations by recency, each
// annotated with the latest message, the unread count and the peer's
// display profile.
func (s *ChatService) ListConversations(ctx context.Context, cmd domain.ListConversationsCommand) ([]contract.ConversationWithPreview, error) {
	conversations, err := s.conversations.ListForUser(cmd.UserID)
	if err != nil {
		return nil, err
	}

	page := paginate(conversations, cmd.Page, lo.Ternary(cmd.Limit > 0, cmd.Limit, s.defaultLimit))

	previews := make([]contract.ConversationWithPreview, 0, len(page))
	for _, conv := range page {
		latest, err := s.messages.Latest(conv.ID)
		if err != nil {
			return nil, err
		}
		unread, err := s.messages.CountUnread(conv.ID, cmd.UserID)
		if err != nil {
			return nil, err
		}
		peer, err := s.profiles.Get(conv.Pair.Other(cmd.UserID))
		if err != nil && err != errors.ErrProfileNotFound {
			return nil, err
		}
		previews = append(previews, contract.ConversationWithPreview{
			Conversation: conv,
			LastMessage:  latest,
			UnreadCount:  unread,
			Peer:         peer,
		})
	}
	return previews, nil
}

// ListMessages serves a history page newest-first and, as a side effect,
// marks the reader's unread messages as read.
func (s *ChatService) ListMessages(ctx context.Context, cmd domain.ListMessagesCommand) ([]domain.Message, *string, error) {
	conv, err := s.conversations.Get(cmd.ConversationID)
	if err != nil {
		return nil, nil, err
	}
	if !conv.Pair.Contains(cmd.UserID) {
		return nil, nil, errors.ErrNotParticipant
	}

	messages, cursor, err := s.messages.List(conv.ID, cmd.Cursor, cmd.Limit)
	if err != nil {
		return nil, nil, err
	}

	if _, err = s.MarkRead(ctx, domain.MarkReadCommand{
		ReaderID:       cmd.UserID,
		ConversationID: conv.ID,
	}); err != nil {
		// History was served; a failed read-state update must not fail the fetch.
		s.log.Error("mark-read side effect failed",
			"conversation_id", conv.ID, "reader_id", cmd.UserID, "error", err)
	}
	return messages, cursor, nil
}

func (s *ChatService) resolveConversation(ctx context.Context, cmd domain.SendMessageCommand) (domain.Conversation, error) {
	if cmd.ConversationID != "" {
		return s.conversations.Get(cmd.ConversationID)
	}
	if cmd.RecipientID == "" || cmd.Subject == nil {
		return domain.Conversation{}, fmt.Errorf(
			"%w: either a conversation id or a recipient and subject is required",
			errors.ErrValidation)
	}
	return s.StartConversation(ctx, domain.StartConversationCommand{
		RequesterID: cmd.SenderID,
		RecipientID: cmd.RecipientID,
		Subject:     *cmd.Subject,
	})
}

// emit hands an event to the delivery pipeline without ever blocking the
// relay; a full channel only costs live pushes, the message is stored.
func (s *ChatService) emit(e event.DomainEvent) {
	select {
	case s.events <- e:
	default:
		s.log.Warn("delivery channel full, dropping live push", "event", e.EventName())
	}
}

func paginate[T any](items []T, page, limit int) []T {
	if page < 1 {
		page = 1
	}
	start := (page - 1) * limit
	if start >= len(items) {
		return nil
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
