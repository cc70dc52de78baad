package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidToken = fmt.Errorf("invalid or expired token")
	ErrValidation   = fmt.Errorf("invalid request")

	ErrEmptyContent     = fmt.Errorf("message content is empty")
	ErrSelfConversation = fmt.Errorf("a conversation needs two distinct participants")
	ErrNotParticipant   = fmt.Errorf("user is not a participant of this conversation")

	ErrConversationNotFound = fmt.Errorf("conversation not found")
	ErrSubjectNotFound      = fmt.Errorf("subject not found")
	ErrProfileNotFound      = fmt.Errorf("profile not found")

	// ErrDuplicateConversation is an internal signal: the store lost the
	// insert-if-absent race and the caller must re-read the winner.
	// It never reaches clients.
	ErrDuplicateConversation = fmt.Errorf("conversation already exists for this pair and subject")

	ErrWorkerPanic = fmt.Errorf("worker panic")

	ErrOnlyWordlistFiles = fmt.Errorf("wordlists directory contains directories")
	ErrEmptyWordlists    = fmt.Errorf("no censored words have been found")
)

// MapToHTTPStatus converts a domain error into the status code exposed by
// the REST surface. Unknown errors are treated as internal failures so
// transient store problems are reported, not silently dropped.
func MapToHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotParticipant):
		return http.StatusForbidden
	case errors.Is(err, ErrConversationNotFound),
		errors.Is(err, ErrSubjectNotFound),
		errors.Is(err, ErrProfileNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrEmptyContent),
		errors.Is(err, ErrSelfConversation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
