package queue

import (
	"sort"
	"time"
)

// Queue maps participants of one bucket to the time they become
// eligible for pairing. A Queue is owned by a single goroutine.
type Queue struct {
	bucket  Bucket
	entries map[string]time.Time
}

// NewQueue creates an empty queue for bucket.
func NewQueue(bucket Bucket) *Queue {
	return &Queue{bucket: bucket, entries: make(map[string]time.Time)}
}

// Bucket returns the bucket this queue holds.
func (q *Queue) Bucket() Bucket { return q.bucket }

// Join inserts participantID eligible at now+delay. An existing entry is
// left untouched and reported through *AlreadyQueuedError.
func (q *Queue) Join(participantID string, now time.Time, delay time.Duration) (time.Time, error) {
	if participantID == "" {
		return time.Time{}, ErrInvalidInput
	}
	if existing, ok := q.entries[participantID]; ok {
		return time.Time{}, &AlreadyQueuedError{Bucket: q.bucket, EligibleAt: existing}
	}
	eligibleAt := now.Add(delay)
	q.entries[participantID] = eligibleAt
	return eligibleAt, nil
}

// Cancel removes participantID and reports whether it was present.
func (q *Queue) Cancel(participantID string) bool {
	if _, ok := q.entries[participantID]; !ok {
		return false
	}
	delete(q.entries, participantID)
	return true
}

// Contains reports whether participantID is queued.
func (q *Queue) Contains(participantID string) bool {
	_, ok := q.entries[participantID]
	return ok
}

// EligibleAt returns the eligibility time of participantID.
func (q *Queue) EligibleAt(participantID string) (time.Time, bool) {
	at, ok := q.entries[participantID]
	return at, ok
}

// EligibleNow lists the participants whose eligibility time is at or
// before now, sorted by id. Nothing is removed.
func (q *Queue) EligibleNow(now time.Time) []string {
	var ids []string
	for id, at := range q.entries {
		if !at.After(now) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Size returns the number of queued participants.
func (q *Queue) Size() int { return len(q.entries) }

// CountEligible returns how many participants are eligible at now.
func (q *Queue) CountEligible(now time.Time) int {
	n := 0
	for _, at := range q.entries {
		if !at.After(now) {
			n++
		}
	}
	return n
}

// CountWaiting returns how many participants are still in their grace
// period at now.
func (q *Queue) CountWaiting(now time.Time) int {
	return q.Size() - q.CountEligible(now)
}

// Counts returns the status counters at now.
func (q *Queue) Counts(now time.Time) Counts {
	eligible := q.CountEligible(now)
	return Counts{
		Bucket:   q.bucket,
		Total:    q.Size(),
		Eligible: eligible,
		Waiting:  q.Size() - eligible,
	}
}
