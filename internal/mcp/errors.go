package mcp

import (
	"errors"
	"fmt"

	"github.com/ganot/voicematch/internal/domain/activity"
	"github.com/ganot/voicematch/internal/domain/queue"
	"github.com/ganot/voicematch/internal/domain/session"
	"github.com/ganot/voicematch/internal/matchmaker"
	"github.com/ganot/voicematch/internal/platform"
)

var (
	errInvalidArgument = errors.New("invalid argument")
	errNotConfigured   = errors.New("not configured")
)

// APIError represents an MCP error response.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
	cause        error
}

func (e *APIError) Error() string {
	if e.RecoveryHint == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.RecoveryHint)
}

func (e *APIError) Unwrap() error { return e.cause }

// MapError maps domain errors to MCP error codes. It returns nil for
// errors it does not recognize.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}
	api := func(code, msg, hint string) *APIError {
		return &APIError{Code: code, Message: msg, RecoveryHint: hint, cause: err}
	}
	switch {
	case errors.Is(err, queue.ErrUnknownBucket):
		return api("UNKNOWN_BUCKET", "unknown queue", "Use general or one of the configured categories")
	case errors.Is(err, queue.ErrCategoryConflict):
		return api("CATEGORY_CONFLICT", "already queued in another category", "Cancel the other category first")
	case errors.Is(err, queue.ErrNoCategory):
		return api("NO_CATEGORY", "participant holds no category label", "Pass exactly one category label")
	case errors.Is(err, queue.ErrAmbiguousCategory):
		return api("AMBIGUOUS_CATEGORY", "participant holds more than one category label", "Pass exactly one category label")
	case errors.Is(err, ErrCommunityMismatch):
		return api("FORBIDDEN", "community not permitted", "Omit community_id or use the token's community")
	case errors.Is(err, platform.ErrChannelNotFound), errors.Is(err, session.ErrSessionNotFound):
		return api("SESSION_NOT_FOUND", "session not found", "List sessions to find a live one")
	case errors.Is(err, platform.ErrCommunityNotFound):
		return api("COMMUNITY_NOT_FOUND", "community not found", "")
	case errors.Is(err, platform.ErrParticipantNotFound):
		return api("PARTICIPANT_NOT_FOUND", "participant not found", "")
	case errors.Is(err, matchmaker.ErrClosed):
		return api("UNAVAILABLE", "matchmaker is shutting down", "Retry after restart")
	case errors.Is(err, errNotConfigured):
		return api("NOT_CONFIGURED", err.Error(), "Start the server with a database")
	case errors.Is(err, errInvalidArgument),
		errors.Is(err, queue.ErrInvalidInput),
		errors.Is(err, matchmaker.ErrInvalidInput),
		errors.Is(err, activity.ErrInvalidInput):
		return api("INVALID_INPUT", err.Error(), "Check required arguments")
	default:
		return nil
	}
}

// toolError converts err into the error a tool handler returns.
func toolError(err error) error {
	if apiErr := MapError(err); apiErr != nil {
		return apiErr
	}
	return err
}
