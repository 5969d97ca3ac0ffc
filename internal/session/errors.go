package session

import "errors"

var (
	ErrArticleNotFound  = errors.New("article not found")
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionCompleted = errors.New("session is already completed")
	ErrOutOfOrder       = errors.New("question index is ahead of the session")
	ErrTurnInProgress   = errors.New("another turn is in progress for this session")
)

// ValidationError reports a malformed turn request. It is returned before
// any external call is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Message: msg}
}
