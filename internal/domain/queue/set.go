package queue

import (
	"fmt"
	"slices"
	"time"
)

// Set holds every bucket of one community: the general pool plus the
// configured categories. Categories are mutually exclusive with each
// other; the general pool coexists with any of them.
type Set struct {
	general    *Queue
	categories []Bucket
	byBucket   map[Bucket]*Queue
}

// NewSet creates the buckets for one community. Callers pass validated,
// normalized category labels.
func NewSet(categories []Bucket) *Set {
	s := &Set{
		general:    NewQueue(General),
		categories: append([]Bucket(nil), categories...),
		byBucket:   make(map[Bucket]*Queue, len(categories)+1),
	}
	s.byBucket[General] = s.general
	for _, c := range categories {
		s.byBucket[c] = NewQueue(c)
	}
	return s
}

// General returns the unconstrained pool.
func (s *Set) General() *Queue { return s.general }

// Categories returns the configured category labels in order.
func (s *Set) Categories() []Bucket { return append([]Bucket(nil), s.categories...) }

// Queue returns the queue for bucket.
func (s *Set) Queue(bucket Bucket) (*Queue, error) {
	q, ok := s.byBucket[bucket]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBucket, bucket)
	}
	return q, nil
}

// Join admits participantID into bucket. Joining a category while queued
// in a different category is rejected.
func (s *Set) Join(participantID string, bucket Bucket, now time.Time, delay time.Duration) (time.Time, error) {
	q, err := s.Queue(bucket)
	if err != nil {
		return time.Time{}, err
	}
	if bucket != General {
		for _, other := range s.categories {
			if other != bucket && s.byBucket[other].Contains(participantID) {
				return time.Time{}, fmt.Errorf("%w: %s", ErrCategoryConflict, other)
			}
		}
	}
	return q.Join(participantID, now, delay)
}

// Cancel removes participantID from bucket.
func (s *Set) Cancel(participantID string, bucket Bucket) (bool, error) {
	q, err := s.Queue(bucket)
	if err != nil {
		return false, err
	}
	return q.Cancel(participantID), nil
}

// Contains reports whether participantID waits in any bucket.
func (s *Set) Contains(participantID string) bool {
	for _, q := range s.byBucket {
		if q.Contains(participantID) {
			return true
		}
	}
	return false
}

// RemoveEverywhere drops participantID from every bucket. A participant
// claimed by a pair must not stay eligible elsewhere.
func (s *Set) RemoveEverywhere(participantID string) {
	for _, q := range s.byBucket {
		q.Cancel(participantID)
	}
}

// ResolveCategory picks the single configured category among labels.
func (s *Set) ResolveCategory(labels []string) (Bucket, error) {
	var found []Bucket
	for _, label := range labels {
		b := Normalize(label)
		if b == General {
			continue
		}
		if _, ok := s.byBucket[b]; ok && !slices.Contains(found, b) {
			found = append(found, b)
		}
	}
	switch len(found) {
	case 0:
		return "", ErrNoCategory
	case 1:
		return found[0], nil
	default:
		return "", ErrAmbiguousCategory
	}
}

// Counts returns status counters for every bucket, general first.
func (s *Set) Counts(now time.Time) []Counts {
	out := make([]Counts, 0, len(s.categories)+1)
	out = append(out, s.general.Counts(now))
	for _, c := range s.categories {
		out = append(out, s.byBucket[c].Counts(now))
	}
	return out
}

// Size returns the number of entries across all buckets.
func (s *Set) Size() int {
	n := 0
	for _, q := range s.byBucket {
		n += q.Size()
	}
	return n
}
