package matchmaker

import (
	"context"
	"errors"
	"fmt"

	"github.com/ganot/voicematch/internal/domain/activity"
	"github.com/ganot/voicematch/internal/domain/pairing"
	"github.com/ganot/voicematch/internal/domain/session"
	"github.com/ganot/voicematch/internal/platform"
	"golang.org/x/sync/errgroup"
)

// Policy names the pairing policy that produced a match.
type Policy string

const (
	PolicyUnconstrained Policy = "unconstrained"
	PolicyCrossCategory Policy = "cross_category"
)

// Match is a pair claimed by a sweep, with the display names captured
// at claim time.
type Match struct {
	pairing.Pair
	Policy      Policy `json:"policy"`
	FirstName   string `json:"first_name"`
	SecondName  string `json:"second_name"`
	CommunityID string `json:"community_id"`
}

// Outcome is what happened to one match after provisioning.
type Outcome struct {
	Match     Match  `json:"match"`
	SessionID string `json:"session_id,omitempty"`
	Error     string `json:"error,omitempty"`
	// Dropped is set when a participant was gone and the match was
	// abandoned without notifying anyone.
	Dropped bool `json:"dropped,omitempty"`
}

// SweepResult reports one community's sweep.
type SweepResult struct {
	CommunityID string    `json:"community_id"`
	Outcomes    []Outcome `json:"outcomes"`
}

// Opened counts matches that produced a session.
func (r SweepResult) Opened() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.SessionID != "" {
			n++
		}
	}
	return n
}

// Sweep pairs eligible participants in every community and provisions a
// channel per pair. Communities and pairs are processed concurrently;
// it returns once all provisioning has finished.
func (e *Engine) Sweep(ctx context.Context) ([]SweepResult, error) {
	shards := e.snapshot()
	results := make([]SweepResult, len(shards))

	g, gctx := errgroup.WithContext(ctx)
	for i, s := range shards {
		g.Go(func() error {
			matches, err := e.claim(gctx, s)
			if err != nil {
				return err
			}
			results[i] = SweepResult{CommunityID: s.communityID, Outcomes: e.provisionAll(gctx, s, matches)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// SweepCommunity runs the sweep for a single community.
func (e *Engine) SweepCommunity(ctx context.Context, communityID string) (SweepResult, error) {
	s, err := e.shard(communityID)
	if err != nil {
		return SweepResult{}, err
	}
	matches, err := e.claim(ctx, s)
	if err != nil {
		return SweepResult{}, err
	}
	return SweepResult{CommunityID: communityID, Outcomes: e.provisionAll(ctx, s, matches)}, nil
}

// sweepInBackground claims pairs in every community and leaves the
// provisioning to background goroutines so a slow platform never delays
// the next tick.
func (e *Engine) sweepInBackground(ctx context.Context) {
	for _, s := range e.snapshot() {
		matches, err := e.claim(ctx, s)
		if err != nil {
			if !errors.Is(err, ErrClosed) && ctx.Err() == nil {
				e.logger.Error("sweep failed", "community", s.communityID, "error", err)
			}
			continue
		}
		if len(matches) == 0 {
			continue
		}
		e.spawn(func(ctx context.Context) { e.provisionAll(ctx, s, matches) })
	}
}

// claim forms every pair for both policies in one critical section and
// removes the paired participants from all buckets.
func (e *Engine) claim(ctx context.Context, s *shard) ([]Match, error) {
	var matches []Match
	err := s.do(ctx, func() {
		now := e.clock.Now()
		take := func(pairs []pairing.Pair, policy Policy) {
			for _, p := range pairs {
				matches = append(matches, Match{
					Pair:        p,
					Policy:      policy,
					FirstName:   s.displayName(p.First),
					SecondName:  s.displayName(p.Second),
					CommunityID: s.communityID,
				})
				s.queues.RemoveEverywhere(p.First)
				s.queues.RemoveEverywhere(p.Second)
				s.forget(p.First)
				s.forget(p.Second)
			}
		}

		pairs, _ := pairing.Unconstrained(s.queues.General().EligibleNow(now), s.rng)
		take(pairs, PolicyUnconstrained)

		if cats := s.queues.Categories(); len(cats) == 2 {
			a, _ := s.queues.Queue(cats[0])
			b, _ := s.queues.Queue(cats[1])
			pairs, _, _ := pairing.CrossCategory(a.EligibleNow(now), b.EligibleNow(now), s.rng)
			take(pairs, PolicyCrossCategory)
		}
	})
	if err != nil {
		return nil, err
	}

	for _, m := range matches {
		e.logger.Info("pair formed", "community", s.communityID, "first", m.First, "second", m.Second, "policy", m.Policy)
		e.record(ctx, s.communityID, &activity.ActivityEntry{
			ActivityType: activity.TypePairFormed,
			Summary:      fmt.Sprintf("%s paired with %s", m.First, m.Second),
			Details:      fmt.Sprintf(`{"policy":%q,"first":%q,"second":%q}`, m.Policy, m.First, m.Second),
		})
	}
	return matches, nil
}

// provisionAll creates a channel per match concurrently. A failure for
// one match never affects the others.
func (e *Engine) provisionAll(ctx context.Context, s *shard, matches []Match) []Outcome {
	outcomes := make([]Outcome, len(matches))
	var g errgroup.Group
	for i, m := range matches {
		g.Go(func() error {
			outcomes[i] = e.provision(ctx, s, m)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (e *Engine) provision(ctx context.Context, s *shard, m Match) Outcome {
	out := Outcome{Match: m}
	name := session.DisplayName(m.FirstName, m.SecondName)

	ch, err := e.platform.ProvisionSession(ctx, platform.ProvisionRequest{
		CommunityID:  s.communityID,
		Name:         name,
		Participants: [2]string{m.First, m.Second},
	})
	if err != nil {
		out.Error = err.Error()
		e.provisionFailed(ctx, s, m, err, &out)
		return out
	}

	sess, err := session.New(ch.ID, s.communityID, ch.Name, m.First, m.Second, e.clock.Now())
	if err == nil {
		var trackErr error
		err = s.do(context.WithoutCancel(ctx), func() { trackErr = s.sessions.Track(sess) })
		if err == nil {
			err = trackErr
		}
	}
	if err != nil {
		// Nothing would ever reclaim an untracked channel.
		e.logger.Error("session not tracked", "community", s.communityID, "session", ch.ID, "error", err)
		if derr := e.platform.DestroySession(context.WithoutCancel(ctx), s.communityID, ch.ID); derr != nil {
			e.logger.Warn("untracked session not destroyed", "session", ch.ID, "error", derr)
		}
		out.Error = err.Error()
		return out
	}

	out.SessionID = ch.ID
	e.logger.Info("session opened", "community", s.communityID, "session", ch.ID, "name", ch.Name)
	e.record(ctx, s.communityID, &activity.ActivityEntry{
		SessionID:    strPtr(ch.ID),
		ActivityType: activity.TypeSessionOpened,
		Summary:      fmt.Sprintf("%s opened for %s and %s", ch.Name, m.First, m.Second),
	})

	ref := ch.Invite
	if ref == "" {
		ref = ch.Name
	}
	e.notifyBoth(ctx, s.communityID, m,
		matchedMessage(m.SecondName, ref),
		matchedMessage(m.FirstName, ref))
	return out
}

func (e *Engine) provisionFailed(ctx context.Context, s *shard, m Match, err error, out *Outcome) {
	entry := &activity.ActivityEntry{
		ActivityType: activity.TypeProvisionFailed,
		Summary:      fmt.Sprintf("no channel for %s and %s", m.First, m.Second),
		Details:      fmt.Sprintf(`{"error":%q}`, err.Error()),
	}
	if errors.Is(err, platform.ErrParticipantNotFound) {
		out.Dropped = true
		e.logger.Debug("pair dropped, participant gone", "community", s.communityID, "first", m.First, "second", m.Second, "error", err)
		e.record(ctx, s.communityID, entry)
		return
	}

	e.logger.Warn("provisioning failed", "community", s.communityID, "first", m.First, "second", m.Second, "error", err)
	e.record(ctx, s.communityID, entry)
	msg := provisionFailedMessage(err)
	e.notifyBoth(ctx, s.communityID, m, msg, msg)
}

// notifyBoth messages the two participants concurrently.
func (e *Engine) notifyBoth(ctx context.Context, communityID string, m Match, toFirst, toSecond string) {
	ctx = context.WithoutCancel(ctx)
	var g errgroup.Group
	g.Go(func() error {
		e.notify(ctx, communityID, m.First, toFirst)
		return nil
	})
	g.Go(func() error {
		e.notify(ctx, communityID, m.Second, toSecond)
		return nil
	})
	_ = g.Wait()
}
