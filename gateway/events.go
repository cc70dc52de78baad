package gateway

import (
	"encoding/json"
	"time"

	"yalla-chat/domain"
	"yalla-chat/domain/event"
)

// Client -> server envelope. Type selects the operation, the remaining
// fields are operation-specific.
type ClientEvent struct {
	Type           string          `json:"type" validate:"required,oneof=send-message mark-read"`
	ConversationID string          `json:"conversationId,omitempty"`
	RecipientID    string          `json:"recipientId,omitempty"`
	Subject        *domain.Subject `json:"subject,omitempty"`
	Content        string          `json:"content,omitempty"`
}

// Server -> client envelopes.

type messagePayload struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Content        string    `json:"content"`
	Read           bool      `json:"read"`
	CreatedAt      time.Time `json:"createdAt"`
}

type conversationPayload struct {
	ID           string         `json:"id"`
	Participants []string       `json:"participants"`
	Subject      domain.Subject `json:"subject"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type serverEvent struct {
	Type           string               `json:"type"`
	Message        *messagePayload      `json:"message,omitempty"`
	Conversation   *conversationPayload `json:"conversation,omitempty"`
	ConversationID string               `json:"conversationId,omitempty"`
	ReaderID       string               `json:"readerId,omitempty"`
	Count          int                  `json:"count,omitempty"`
	At             *time.Time           `json:"at,omitempty"`
	Error          *errorPayload        `json:"error,omitempty"`
}

func toMessagePayload(message domain.Message) *messagePayload {
	return &messagePayload{
		ID:             message.ID.String(),
		ConversationID: message.ConversationID,
		SenderID:       message.SenderID,
		Content:        message.Content,
		Read:           message.Read,
		CreatedAt:      message.CreatedAt,
	}
}

func toConversationPayload(conv domain.Conversation) *conversationPayload {
	return &conversationPayload{
		ID:           conv.ID,
		Participants: conv.Pair.Users(),
		Subject:      conv.Subject,
		CreatedAt:    conv.CreatedAt,
		UpdatedAt:    conv.UpdatedAt,
	}
}

// encodeDomainEvent maps a pushed domain event onto its wire envelope.
// Returns nil for event types the live protocol does not expose.
func encodeDomainEvent(e event.DomainEvent) []byte {
	var envelope serverEvent
	switch evt := e.(type) {
	case event.MessageCreated:
		envelope = serverEvent{
			Type:    evt.EventName(),
			Message: toMessagePayload(evt.Message),
		}
	case event.ConversationCreated:
		envelope = serverEvent{
			Type:         evt.EventName(),
			Conversation: toConversationPayload(evt.Conversation),
		}
	case event.MessagesRead:
		at := evt.At
		envelope = serverEvent{
			Type:           evt.EventName(),
			ConversationID: evt.ConversationID,
			ReaderID:       evt.ReaderID,
			Count:          evt.Count,
			At:             &at,
		}
	default:
		return nil
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		return nil
	}
	return payload
}

func encodeAck(message domain.Message) []byte {
	payload, _ := json.Marshal(serverEvent{
		Type:    "message-ack",
		Message: toMessagePayload(message),
	})
	return payload
}

func encodeError(err error) []byte {
	payload, _ := json.Marshal(serverEvent{
		Type:  "error",
		Error: &errorPayload{Message: err.Error()},
	})
	return payload
}
