package session

import (
	"slices"
	"sort"
	"time"
)

// Registry holds the sessions of one community shard. It is not safe
// for concurrent use; the owning shard serializes access.
type Registry struct {
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Track starts tracking a provisioned session.
func (r *Registry) Track(sess Session) error {
	if sess.ID == "" {
		return ErrInvalidInput
	}
	if _, ok := r.sessions[sess.ID]; ok {
		return ErrDuplicateSession
	}
	stored := sess
	stored.retiring = false
	r.sessions[sess.ID] = &stored
	return nil
}

// Get returns a copy of the session.
func (r *Registry) Get(id string) (Session, bool) {
	sess, ok := r.sessions[id]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// Len returns the number of tracked sessions.
func (r *Registry) Len() int { return len(r.sessions) }

// ObserveMembership applies a join or leave for participantID with the
// channel's live occupants as seen right after the event. The flags are
// applied even while the session is retiring; the destroy decision is
// then left to Recheck.
func (r *Registry) ObserveMembership(id, participantID string, joined bool, live []string) (Observation, error) {
	sess, ok := r.sessions[id]
	if !ok {
		return Observation{}, ErrSessionNotFound
	}

	obs := Observation{Decision: DecisionKeep}
	if joined {
		sess.EverOccupied = true
	}
	if sess.EverOccupied && !sess.FullyMet && sess.allPresent(live) {
		sess.FullyMet = true
		obs.BecameFullyMet = true
	}
	sess.LiveCount = len(live)

	if !joined && len(live) == 0 {
		switch {
		case sess.FullyMet && sess.retiring:
		case sess.FullyMet:
			sess.retiring = true
			obs.Decision = DecisionDestroy
			obs.Reason = ReasonMutualComplete
		case sess.EverOccupied:
			obs.Stranded = true
		}
	}

	obs.Session = *sess
	return obs, nil
}

// Expired selects sessions the watchdog should try to reclaim at now and
// marks them retiring. Sessions nobody ever joined qualify once timeout
// has elapsed since creation. With includeStranded, sessions that were
// used, never fully met and last seen empty qualify after the same
// timeout. Callers settle each candidate with Recheck, or Unretire when
// the channel could not be checked.
func (r *Registry) Expired(now time.Time, timeout time.Duration, includeStranded bool) []Candidate {
	var out []Candidate
	for _, sess := range r.sessions {
		if sess.retiring || now.Sub(sess.CreatedAt) < timeout {
			continue
		}
		switch {
		case !sess.EverOccupied:
			sess.retiring = true
			out = append(out, Candidate{Session: *sess, Reason: ReasonIdleTimeout})
		case includeStranded && !sess.FullyMet && sess.LiveCount == 0:
			sess.retiring = true
			out = append(out, Candidate{Session: *sess, Reason: ReasonStranded})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Session.ID < out[j].Session.ID })
	return out
}

// Recheck settles a retiring session against the occupants the watchdog
// just listed. The channel is destroyed only when it is empty and the
// session, as it stands now, still qualifies; otherwise retiring is
// cleared. Occupants seen here count as a join. ok is false when the
// session is no longer tracked.
func (r *Registry) Recheck(id string, live []string, includeStranded bool) (decision Decision, reason Reason, ok bool) {
	sess, ok := r.sessions[id]
	if !ok {
		return DecisionKeep, "", false
	}
	if slices.Contains(live, sess.Occupants[0]) || slices.Contains(live, sess.Occupants[1]) {
		sess.EverOccupied = true
	}
	if sess.EverOccupied && sess.allPresent(live) {
		sess.FullyMet = true
	}
	sess.LiveCount = len(live)

	if len(live) == 0 {
		switch {
		case sess.FullyMet:
			return DecisionDestroy, ReasonMutualComplete, true
		case !sess.EverOccupied:
			return DecisionDestroy, ReasonIdleTimeout, true
		case includeStranded:
			return DecisionDestroy, ReasonStranded, true
		}
	}
	sess.retiring = false
	return DecisionKeep, "", true
}

// Unretire cancels a pending reclamation without touching the flags.
func (r *Registry) Unretire(id string) {
	if sess, ok := r.sessions[id]; ok {
		sess.retiring = false
	}
}

// Remove stops tracking the session and reports whether it was present.
func (r *Registry) Remove(id string) bool {
	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	return true
}

// List returns copies of all sessions, oldest first.
func (r *Registry) List() []Session {
	out := make([]Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		out = append(out, *sess)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Summary counts sessions by phase.
func (r *Registry) Summary() Summary {
	var s Summary
	for _, sess := range r.sessions {
		s.Total++
		switch sess.Phase() {
		case PhaseAwaitingFirstJoin:
			s.Awaiting++
		case PhaseOccupied:
			s.Occupied++
		case PhaseFullyMet:
			s.FullyMet++
		case PhaseStranded:
			s.Stranded++
		case PhaseRetiring:
			s.Retiring++
		}
	}
	return s
}
