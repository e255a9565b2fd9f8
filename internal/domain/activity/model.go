package activity

import "time"

// ActivityType represents the type of activity event
type ActivityType string

const (
	TypeParticipantQueued    ActivityType = "participant_queued"
	TypeParticipantCancelled ActivityType = "participant_cancelled"
	TypePairFormed           ActivityType = "pair_formed"
	TypeProvisionFailed      ActivityType = "provision_failed"
	TypeSessionOpened        ActivityType = "session_opened"
	TypeSessionReclaimed     ActivityType = "session_reclaimed"
	TypeSessionDropped       ActivityType = "session_dropped"
)

// Valid reports whether t is a known activity type.
func (t ActivityType) Valid() bool {
	switch t {
	case TypeParticipantQueued, TypeParticipantCancelled, TypePairFormed,
		TypeProvisionFailed, TypeSessionOpened, TypeSessionReclaimed, TypeSessionDropped:
		return true
	}
	return false
}

// ActivityEntry represents an event in the activity log
type ActivityEntry struct {
	ID            int64        `json:"id"`
	CommunityID   string       `json:"community_id"`
	ParticipantID *string      `json:"participant_id,omitempty"`
	SessionID     *string      `json:"session_id,omitempty"`
	Bucket        string       `json:"bucket,omitempty"`
	ActivityType  ActivityType `json:"type"`
	Summary       string       `json:"summary"`
	Details       string       `json:"details,omitempty"` // JSON string
	CreatedAt     time.Time    `json:"created_at"`
}
