package session

import (
	"fmt"
	"slices"
	"time"
)

// Phase is the display state of a session, derived from its flags.
type Phase string

const (
	PhaseAwaitingFirstJoin Phase = "awaiting_first_join"
	PhaseOccupied          Phase = "occupied"
	PhaseFullyMet          Phase = "fully_met"
	PhaseStranded          Phase = "stranded"
	PhaseRetiring          Phase = "retiring"
)

// Decision is what the registry wants done with a channel after an
// observation or a watchdog scan.
type Decision int

const (
	DecisionKeep Decision = iota
	DecisionDestroy
)

// Reason explains a destroy decision.
type Reason string

const (
	ReasonMutualComplete Reason = "mutual_complete"
	ReasonIdleTimeout    Reason = "idle_timeout"
	ReasonStranded       Reason = "stranded"
	ReasonStale          Reason = "stale"
)

// Session tracks one auto-created private channel.
//
// EverOccupied and FullyMet only ever move from false to true.
type Session struct {
	ID           string    `json:"id"`
	CommunityID  string    `json:"community_id"`
	Name         string    `json:"name"`
	Occupants    [2]string `json:"occupants"`
	CreatedAt    time.Time `json:"created_at"`
	EverOccupied bool      `json:"ever_occupied"`
	FullyMet     bool      `json:"fully_met"`
	LiveCount    int       `json:"live_count"`

	retiring bool
}

// New builds an untouched session for a freshly provisioned channel.
func New(id, communityID, name string, first, second string, createdAt time.Time) (Session, error) {
	if id == "" || communityID == "" || first == "" || second == "" || first == second {
		return Session{}, ErrInvalidInput
	}
	return Session{
		ID:          id,
		CommunityID: communityID,
		Name:        name,
		Occupants:   [2]string{first, second},
		CreatedAt:   createdAt,
	}, nil
}

// Phase derives the display state.
func (s Session) Phase() Phase {
	switch {
	case s.retiring:
		return PhaseRetiring
	case !s.EverOccupied:
		return PhaseAwaitingFirstJoin
	case s.FullyMet:
		return PhaseFullyMet
	case s.LiveCount == 0:
		return PhaseStranded
	default:
		return PhaseOccupied
	}
}

// Retiring reports whether a destroy is in flight for the session.
func (s Session) Retiring() bool { return s.retiring }

// Expects reports whether participantID is one of the paired occupants.
func (s Session) Expects(participantID string) bool {
	return s.Occupants[0] == participantID || s.Occupants[1] == participantID
}

func (s Session) allPresent(live []string) bool {
	return slices.Contains(live, s.Occupants[0]) && slices.Contains(live, s.Occupants[1])
}

// DisplayName builds the channel name shown to the pair, truncating each
// display name to 12 runes.
func DisplayName(first, second string) string {
	return fmt.Sprintf("Match: %s & %s", truncate(first, 12), truncate(second, 12))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Observation is the outcome of applying one membership event.
type Observation struct {
	Session        Session
	Decision       Decision
	Reason         Reason
	BecameFullyMet bool
	// Stranded is set when a leave empties a channel that was used but
	// never held both occupants at once. The idle watchdog skips such
	// sessions unless stranded reclamation is enabled.
	Stranded bool
}

// Candidate is a session selected by a watchdog scan.
type Candidate struct {
	Session Session
	Reason  Reason
}

// Summary counts tracked sessions by phase.
type Summary struct {
	Total    int `json:"total"`
	Awaiting int `json:"awaiting_first_join"`
	Occupied int `json:"occupied"`
	FullyMet int `json:"fully_met"`
	Stranded int `json:"stranded"`
	Retiring int `json:"retiring"`
}
