package matchmaker

import (
	"context"
	"fmt"

	"github.com/ganot/voicematch/internal/domain/session"
	"github.com/ganot/voicematch/internal/platform"
)

// MembershipEvent is a join or leave on a channel.
type MembershipEvent struct {
	CommunityID   string `json:"community_id"`
	SessionID     string `json:"session_id"`
	ParticipantID string `json:"participant_id"`
	Joined        bool   `json:"joined"`
}

// MembershipResult reports how an event was applied.
type MembershipResult struct {
	// Tracked is false for channels the engine does not manage.
	Tracked   bool            `json:"tracked"`
	Session   session.Session `json:"session"`
	Phase     session.Phase   `json:"phase,omitempty"`
	Destroyed bool            `json:"destroyed"`
	Dropped   bool            `json:"dropped"`
}

// OnMembershipEvent applies a membership change to the session it
// concerns. Events for one session are handled one at a time: the live
// occupants are listed outside the shard while the session's lock is
// held, then the flags and the destroy decision are applied in one
// critical section. A mutually completed session is destroyed before
// returning.
func (e *Engine) OnMembershipEvent(ctx context.Context, ev MembershipEvent) (MembershipResult, error) {
	if ev.SessionID == "" || ev.ParticipantID == "" {
		return MembershipResult{}, fmt.Errorf("%w: session and participant are required", ErrInvalidInput)
	}
	s, err := e.shard(ev.CommunityID)
	if err != nil {
		return MembershipResult{}, err
	}

	var tracked bool
	if err := s.do(ctx, func() { _, tracked = s.sessions.Get(ev.SessionID) }); err != nil {
		return MembershipResult{}, err
	}
	if !tracked {
		return MembershipResult{}, nil
	}

	unlock, err := s.locks.acquire(ctx, ev.SessionID)
	if err != nil {
		return MembershipResult{}, err
	}
	defer unlock()

	live, err := e.platform.ListLiveOccupants(ctx, ev.CommunityID, ev.SessionID)
	if platform.IsStale(err) {
		e.drop(ctx, s, ev.SessionID, err)
		return MembershipResult{Tracked: true, Dropped: true}, nil
	}
	if err != nil {
		return MembershipResult{}, fmt.Errorf("listing occupants of %s: %w", ev.SessionID, err)
	}

	var (
		obs    session.Observation
		obsErr error
	)
	if err := s.do(ctx, func() {
		obs, obsErr = s.sessions.ObserveMembership(ev.SessionID, ev.ParticipantID, ev.Joined, live)
	}); err != nil {
		return MembershipResult{}, err
	}
	if obsErr != nil {
		// Reclaimed by the watchdog while waiting for the lock.
		return MembershipResult{}, nil
	}

	res := MembershipResult{Tracked: true, Session: obs.Session, Phase: obs.Session.Phase()}
	if obs.BecameFullyMet {
		e.logger.Info("session fully met", "community", ev.CommunityID, "session", ev.SessionID)
	}
	if obs.Stranded {
		e.logger.Warn("session stranded: emptied without both participants ever present",
			"community", ev.CommunityID, "session", ev.SessionID, "reclaim_stranded", e.cfg.ReclaimStranded)
	}
	if obs.Decision == session.DecisionDestroy {
		verdict := e.destroy(ctx, s, ev.SessionID, obs.Reason)
		res.Destroyed = verdict == VerdictReclaimed
		res.Dropped = verdict == VerdictDropped
	}
	return res, nil
}
