package session

import "errors"

var (
	// ErrSessionNotFound indicates the session isn't tracked.
	ErrSessionNotFound = errors.New("session not found")
	// ErrDuplicateSession indicates a session id that is already tracked.
	ErrDuplicateSession = errors.New("session already tracked")
	// ErrInvalidInput indicates invalid session input.
	ErrInvalidInput = errors.New("invalid session input")
)
