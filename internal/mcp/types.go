package mcp

import (
	"time"

	"github.com/ganot/voicematch/internal/domain/activity"
	"github.com/ganot/voicematch/internal/domain/queue"
	"github.com/ganot/voicematch/internal/domain/session"
	"github.com/ganot/voicematch/internal/matchmaker"
)

type JoinQueueParams struct {
	CommunityID   string   `json:"community_id,omitempty" jsonschema:"community; defaults to the caller's community"`
	ParticipantID string   `json:"participant_id" jsonschema:"participant joining the queue"`
	DisplayName   string   `json:"display_name,omitempty" jsonschema:"name shown to the partner once matched"`
	Bucket        string   `json:"bucket,omitempty" jsonschema:"general or a configured category; empty resolves from labels or falls back to general"`
	Labels        []string `json:"labels,omitempty" jsonschema:"participant's role labels, used to pick the category when bucket is empty"`
}

type JoinQueueResult struct {
	Accepted         bool   `json:"accepted"`
	Bucket           string `json:"bucket,omitempty"`
	EligibleAt       string `json:"eligible_at,omitempty"`
	RemainingSeconds int    `json:"remaining_seconds"`
	Message          string `json:"message"`
}

type CancelQueueParams struct {
	CommunityID   string `json:"community_id,omitempty" jsonschema:"community; defaults to the caller's community"`
	ParticipantID string `json:"participant_id" jsonschema:"participant leaving the queue"`
	Bucket        string `json:"bucket,omitempty" jsonschema:"queue to leave; defaults to general"`
}

type CancelQueueResult struct {
	Removed bool   `json:"removed"`
	Bucket  string `json:"bucket"`
	Message string `json:"message"`
}

type CommunityParams struct {
	CommunityID string `json:"community_id,omitempty" jsonschema:"community; defaults to the caller's community"`
}

type BucketCounts struct {
	Bucket   string `json:"bucket"`
	Total    int    `json:"total"`
	Eligible int    `json:"eligible"`
	Waiting  int    `json:"waiting"`
}

type QueueStatusResult struct {
	CommunityID string          `json:"community_id"`
	Buckets     []BucketCounts  `json:"buckets"`
	Sessions    session.Summary `json:"sessions"`
	Text        string          `json:"text"`
}

type MembershipEventParams struct {
	CommunityID   string `json:"community_id,omitempty" jsonschema:"community; defaults to the caller's community"`
	SessionID     string `json:"session_id" jsonschema:"channel the participant entered or left"`
	ParticipantID string `json:"participant_id" jsonschema:"participant whose presence changed"`
	Joined        bool   `json:"joined" jsonschema:"true for an entry, false for a departure"`
}

type MembershipEventResult struct {
	Tracked   bool   `json:"tracked"`
	Phase     string `json:"phase,omitempty"`
	LiveCount int    `json:"live_count"`
	FullyMet  bool   `json:"fully_met"`
	Destroyed bool   `json:"destroyed"`
	Dropped   bool   `json:"dropped"`
}

type SessionView struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Occupants    []string `json:"occupants"`
	Phase        string   `json:"phase"`
	CreatedAt    string   `json:"created_at"`
	EverOccupied bool     `json:"ever_occupied"`
	FullyMet     bool     `json:"fully_met"`
	LiveCount    int      `json:"live_count"`
}

type ListSessionsResult struct {
	CommunityID string        `json:"community_id"`
	Sessions    []SessionView `json:"sessions"`
}

type RecentActivityParams struct {
	CommunityID   string `json:"community_id,omitempty" jsonschema:"community; defaults to the caller's community"`
	ParticipantID string `json:"participant_id,omitempty" jsonschema:"only entries about this participant"`
	SessionID     string `json:"session_id,omitempty" jsonschema:"only entries about this session"`
	ActivityType  string `json:"activity_type,omitempty" jsonschema:"only entries of this type"`
	Limit         int    `json:"limit,omitempty" jsonschema:"maximum entries, default 50"`
	Offset        int    `json:"offset,omitempty" jsonschema:"entries to skip"`
}

type ActivityView struct {
	ID            int64  `json:"id"`
	Type          string `json:"type"`
	ParticipantID string `json:"participant_id,omitempty"`
	SessionID     string `json:"session_id,omitempty"`
	Bucket        string `json:"bucket,omitempty"`
	Summary       string `json:"summary"`
	Details       string `json:"details,omitempty"`
	CreatedAt     string `json:"created_at"`
}

type RecentActivityResult struct {
	Entries []ActivityView `json:"entries"`
}

type OutcomeView struct {
	First     string `json:"first"`
	Second    string `json:"second"`
	Policy    string `json:"policy"`
	SessionID string `json:"session_id,omitempty"`
	Error     string `json:"error,omitempty"`
	Dropped   bool   `json:"dropped,omitempty"`
}

type RunSweepResult struct {
	CommunityID string        `json:"community_id"`
	Opened      int           `json:"opened"`
	Outcomes    []OutcomeView `json:"outcomes"`
}

type ReclamationView struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason"`
	Verdict   string `json:"verdict"`
	Error     string `json:"error,omitempty"`
}

type RunWatchdogResult struct {
	CommunityID  string            `json:"community_id"`
	Reclamations []ReclamationView `json:"reclamations"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func toBucketCounts(in []queue.Counts) []BucketCounts {
	out := make([]BucketCounts, 0, len(in))
	for _, c := range in {
		out = append(out, BucketCounts{Bucket: string(c.Bucket), Total: c.Total, Eligible: c.Eligible, Waiting: c.Waiting})
	}
	return out
}

func toSessionView(s session.Session) SessionView {
	return SessionView{
		ID:           s.ID,
		Name:         s.Name,
		Occupants:    []string{s.Occupants[0], s.Occupants[1]},
		Phase:        string(s.Phase()),
		CreatedAt:    formatTime(s.CreatedAt),
		EverOccupied: s.EverOccupied,
		FullyMet:     s.FullyMet,
		LiveCount:    s.LiveCount,
	}
}

func toActivityView(e activity.ActivityEntry) ActivityView {
	v := ActivityView{
		ID:        e.ID,
		Type:      string(e.ActivityType),
		Bucket:    e.Bucket,
		Summary:   e.Summary,
		Details:   e.Details,
		CreatedAt: formatTime(e.CreatedAt),
	}
	if e.ParticipantID != nil {
		v.ParticipantID = *e.ParticipantID
	}
	if e.SessionID != nil {
		v.SessionID = *e.SessionID
	}
	return v
}

func toOutcomeView(o matchmaker.Outcome) OutcomeView {
	return OutcomeView{
		First:     o.Match.First,
		Second:    o.Match.Second,
		Policy:    string(o.Match.Policy),
		SessionID: o.SessionID,
		Error:     o.Error,
		Dropped:   o.Dropped,
	}
}

func toReclamationView(r matchmaker.Reclamation) ReclamationView {
	return ReclamationView{
		SessionID: r.SessionID,
		Reason:    string(r.Reason),
		Verdict:   string(r.Verdict),
		Error:     r.Error,
	}
}
