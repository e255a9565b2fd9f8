package matchmaker

import "errors"

var (
	// ErrClosed is returned once the engine has shut down.
	ErrClosed = errors.New("matchmaker closed")
	// ErrInvalidInput indicates a request missing a community or participant.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidConfig indicates unusable timings or categories.
	ErrInvalidConfig = errors.New("invalid matchmaker config")
)
