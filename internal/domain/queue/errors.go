package queue

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrAlreadyQueued indicates the participant already waits in the bucket.
	ErrAlreadyQueued = errors.New("participant already queued")
	// ErrNotQueued indicates the participant is not in the bucket.
	ErrNotQueued = errors.New("participant not queued")
	// ErrUnknownBucket indicates a bucket that is neither general nor a configured category.
	ErrUnknownBucket = errors.New("unknown bucket")
	// ErrCategoryConflict indicates the participant already waits in another category.
	ErrCategoryConflict = errors.New("participant queued in another category")
	// ErrNoCategory indicates the participant holds none of the category labels.
	ErrNoCategory = errors.New("participant holds no category label")
	// ErrAmbiguousCategory indicates the participant holds more than one category label.
	ErrAmbiguousCategory = errors.New("participant holds more than one category label")
	// ErrInvalidInput indicates invalid queue input.
	ErrInvalidInput = errors.New("invalid queue input")
)

// AlreadyQueuedError reports a rejected join together with the time the
// existing entry becomes eligible. It matches ErrAlreadyQueued.
type AlreadyQueuedError struct {
	Bucket     Bucket
	EligibleAt time.Time
}

func (e *AlreadyQueuedError) Error() string {
	return fmt.Sprintf("participant already queued in %s until %s", e.Bucket, e.EligibleAt.Format(time.RFC3339))
}

func (e *AlreadyQueuedError) Is(target error) bool {
	return target == ErrAlreadyQueued
}

// Remaining returns how long the existing entry still waits at now,
// never negative.
func (e *AlreadyQueuedError) Remaining(now time.Time) time.Duration {
	if d := e.EligibleAt.Sub(now); d > 0 {
		return d
	}
	return 0
}
