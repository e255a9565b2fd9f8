package matchmaker

import (
	"context"
	"errors"
	"fmt"

	"github.com/ganot/voicematch/internal/domain/activity"
	"github.com/ganot/voicematch/internal/domain/session"
	"github.com/ganot/voicematch/internal/platform"
	"golang.org/x/sync/errgroup"
)

// Verdict is what the watchdog did with a candidate session.
type Verdict string

const (
	VerdictReclaimed Verdict = "reclaimed"
	VerdictDropped   Verdict = "dropped"
	VerdictKept      Verdict = "kept"
)

// Reclamation reports one watchdog candidate.
type Reclamation struct {
	SessionID string         `json:"session_id"`
	Reason    session.Reason `json:"reason"`
	Verdict   Verdict        `json:"verdict"`
	Error     string         `json:"error,omitempty"`
}

// WatchdogResult reports one community's watchdog pass.
type WatchdogResult struct {
	CommunityID  string        `json:"community_id"`
	Reclamations []Reclamation `json:"reclamations"`
}

// Watchdog reclaims abandoned sessions in every community and waits for
// the platform calls to finish.
func (e *Engine) Watchdog(ctx context.Context) ([]WatchdogResult, error) {
	shards := e.snapshot()
	results := make([]WatchdogResult, len(shards))

	g, gctx := errgroup.WithContext(ctx)
	for i, s := range shards {
		g.Go(func() error {
			candidates, err := e.selectExpired(gctx, s)
			if err != nil {
				return err
			}
			results[i] = WatchdogResult{CommunityID: s.communityID, Reclamations: e.reclaimAll(gctx, s, candidates)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// WatchdogCommunity runs the watchdog for a single community.
func (e *Engine) WatchdogCommunity(ctx context.Context, communityID string) (WatchdogResult, error) {
	s, err := e.shard(communityID)
	if err != nil {
		return WatchdogResult{}, err
	}
	candidates, err := e.selectExpired(ctx, s)
	if err != nil {
		return WatchdogResult{}, err
	}
	return WatchdogResult{CommunityID: communityID, Reclamations: e.reclaimAll(ctx, s, candidates)}, nil
}

func (e *Engine) watchdogInBackground(ctx context.Context) {
	for _, s := range e.snapshot() {
		candidates, err := e.selectExpired(ctx, s)
		if err != nil {
			if !errors.Is(err, ErrClosed) && ctx.Err() == nil {
				e.logger.Error("watchdog failed", "community", s.communityID, "error", err)
			}
			continue
		}
		if len(candidates) == 0 {
			continue
		}
		e.spawn(func(ctx context.Context) { e.reclaimAll(ctx, s, candidates) })
	}
}

// selectExpired marks candidates retiring in one critical section so a
// membership event cannot destroy them a second time.
func (e *Engine) selectExpired(ctx context.Context, s *shard) ([]session.Candidate, error) {
	var candidates []session.Candidate
	err := s.do(ctx, func() {
		candidates = s.sessions.Expired(e.clock.Now(), e.cfg.IdleTimeout, e.cfg.ReclaimStranded)
	})
	return candidates, err
}

func (e *Engine) reclaimAll(ctx context.Context, s *shard, candidates []session.Candidate) []Reclamation {
	out := make([]Reclamation, len(candidates))
	var g errgroup.Group
	for i, c := range candidates {
		g.Go(func() error {
			out[i] = e.reclaim(ctx, s, c)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// reclaim re-checks occupancy under the session's lock and destroys the
// channel if it is empty and the session still qualifies.
func (e *Engine) reclaim(ctx context.Context, s *shard, c session.Candidate) Reclamation {
	r := Reclamation{SessionID: c.Session.ID, Reason: c.Reason}

	unlock, err := s.locks.acquire(ctx, c.Session.ID)
	if err != nil {
		e.unretire(ctx, s, c.Session.ID)
		r.Verdict = VerdictKept
		r.Error = err.Error()
		return r
	}
	defer unlock()

	live, err := e.platform.ListLiveOccupants(ctx, s.communityID, c.Session.ID)
	switch {
	case platform.IsStale(err):
		e.drop(ctx, s, c.Session.ID, err)
		r.Verdict = VerdictDropped
		return r
	case err != nil:
		e.logger.Warn("occupancy check failed, retrying next tick", "community", s.communityID, "session", c.Session.ID, "error", err)
		e.unretire(ctx, s, c.Session.ID)
		r.Verdict = VerdictKept
		r.Error = err.Error()
		return r
	}

	var (
		decision session.Decision
		tracked  bool
	)
	if err := s.do(context.WithoutCancel(ctx), func() {
		decision, r.Reason, tracked = s.sessions.Recheck(c.Session.ID, live, e.cfg.ReclaimStranded)
	}); err != nil {
		r.Verdict = VerdictKept
		r.Error = err.Error()
		return r
	}
	switch {
	case !tracked:
		r.Reason = c.Reason
		r.Verdict = VerdictDropped
		return r
	case decision == session.DecisionKeep:
		r.Reason = c.Reason
		r.Verdict = VerdictKept
		return r
	}

	r.Verdict = e.destroy(ctx, s, c.Session.ID, r.Reason)
	return r
}

// destroy removes the channel and then the registry entry. Any destroy
// failure counts as destroyed.
func (e *Engine) destroy(ctx context.Context, s *shard, sessionID string, reason session.Reason) Verdict {
	ctx = context.WithoutCancel(ctx)
	err := e.platform.DestroySession(ctx, s.communityID, sessionID)
	if platform.IsStale(err) {
		e.drop(ctx, s, sessionID, err)
		return VerdictDropped
	}
	if err != nil {
		e.logger.Warn("destroy failed, assuming destroyed", "community", s.communityID, "session", sessionID, "error", err)
	}
	e.remove(ctx, s, sessionID)
	e.logger.Info("session reclaimed", "community", s.communityID, "session", sessionID, "reason", reason)
	e.record(ctx, s.communityID, &activity.ActivityEntry{
		SessionID:    strPtr(sessionID),
		ActivityType: activity.TypeSessionReclaimed,
		Summary:      fmt.Sprintf("%s reclaimed (%s)", sessionID, reason),
		Details:      fmt.Sprintf(`{"reason":%q}`, reason),
	})
	return VerdictReclaimed
}

// drop forgets a session whose channel or community vanished out of band.
func (e *Engine) drop(ctx context.Context, s *shard, sessionID string, cause error) {
	ctx = context.WithoutCancel(ctx)
	e.remove(ctx, s, sessionID)
	e.logger.Info("session dropped", "community", s.communityID, "session", sessionID, "cause", cause)
	e.record(ctx, s.communityID, &activity.ActivityEntry{
		SessionID:    strPtr(sessionID),
		ActivityType: activity.TypeSessionDropped,
		Summary:      fmt.Sprintf("%s vanished", sessionID),
		Details:      fmt.Sprintf(`{"reason":%q}`, session.ReasonStale),
	})
}

func (e *Engine) remove(ctx context.Context, s *shard, sessionID string) {
	if err := s.do(ctx, func() { s.sessions.Remove(sessionID) }); err != nil {
		e.logger.Debug("session remove skipped", "session", sessionID, "error", err)
	}
}

func (e *Engine) unretire(ctx context.Context, s *shard, sessionID string) {
	if err := s.do(context.WithoutCancel(ctx), func() { s.sessions.Unretire(sessionID) }); err != nil {
		e.logger.Debug("session unretire skipped", "session", sessionID, "error", err)
	}
}
