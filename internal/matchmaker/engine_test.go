package matchmaker_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ganot/voicematch/internal/clock"
	"github.com/ganot/voicematch/internal/domain/activity"
	"github.com/ganot/voicematch/internal/domain/queue"
	"github.com/ganot/voicematch/internal/domain/session"
	"github.com/ganot/voicematch/internal/matchmaker"
	"github.com/ganot/voicematch/internal/platform/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const community = "guild1"

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type recorder struct {
	mu      sync.Mutex
	entries []activity.ActivityEntry
}

func (r *recorder) LogActivity(_ context.Context, communityID string, entry *activity.ActivityEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := *entry
	e.CommunityID = communityID
	r.entries = append(r.entries, e)
	return nil
}

func (r *recorder) count(t activity.ActivityType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if e.ActivityType == t {
			n++
		}
	}
	return n
}

type harness struct {
	t   *testing.T
	ctx context.Context
	clk *clock.FakeClock
	mem *memory.Platform
	rec *recorder
	eng *matchmaker.Engine
}

func newHarness(t *testing.T, mutate func(*matchmaker.Config)) *harness {
	t.Helper()
	cfg := matchmaker.DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	h := &harness{
		t:   t,
		ctx: context.Background(),
		clk: clock.Fake(t0),
		mem: memory.New(),
		rec: &recorder{},
	}
	eng, err := matchmaker.New(cfg, h.mem,
		matchmaker.WithClock(h.clk),
		matchmaker.WithActivity(h.rec),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	h.eng = eng
	return h
}

// gatedPlatform holds the next armed ListLiveOccupants call until
// release is closed. With listFirst the occupants are read before
// holding, otherwise after.
type gatedPlatform struct {
	*memory.Platform
	listFirst bool
	armed     atomic.Bool
	entered   chan struct{}
	release   chan struct{}
}

func (g *gatedPlatform) ListLiveOccupants(ctx context.Context, communityID, channelID string) ([]string, error) {
	if !g.armed.CompareAndSwap(true, false) {
		return g.Platform.ListLiveOccupants(ctx, communityID, channelID)
	}
	var (
		live []string
		err  error
	)
	if g.listFirst {
		live, err = g.Platform.ListLiveOccupants(ctx, communityID, channelID)
	}
	close(g.entered)
	<-g.release
	if !g.listFirst {
		live, err = g.Platform.ListLiveOccupants(ctx, communityID, channelID)
	}
	return live, err
}

func newGatedHarness(t *testing.T, listFirst bool) (*harness, *gatedPlatform) {
	t.Helper()
	h := &harness{
		t:   t,
		ctx: context.Background(),
		clk: clock.Fake(t0),
		mem: memory.New(),
		rec: &recorder{},
	}
	gate := &gatedPlatform{
		Platform:  h.mem,
		listFirst: listFirst,
		entered:   make(chan struct{}),
		release:   make(chan struct{}),
	}
	eng, err := matchmaker.New(matchmaker.DefaultConfig(), gate,
		matchmaker.WithClock(h.clk),
		matchmaker.WithActivity(h.rec),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	h.eng = eng
	return h, gate
}

func (h *harness) join(id string, bucket queue.Bucket) matchmaker.JoinResult {
	h.t.Helper()
	res, err := h.eng.Join(h.ctx, matchmaker.JoinRequest{CommunityID: community, ParticipantID: id, Bucket: bucket})
	require.NoError(h.t, err)
	return res
}

func (h *harness) at(d time.Duration) { h.clk.Set(t0.Add(d)) }

func (h *harness) sweep() matchmaker.SweepResult {
	h.t.Helper()
	res, err := h.eng.SweepCommunity(h.ctx, community)
	require.NoError(h.t, err)
	return res
}

func (h *harness) watchdog() []matchmaker.Reclamation {
	h.t.Helper()
	res, err := h.eng.WatchdogCommunity(h.ctx, community)
	require.NoError(h.t, err)
	return res.Reclamations
}

// openSession queues a and b, lets them become eligible and sweeps.
func (h *harness) openSession(a, b string) string {
	h.t.Helper()
	h.join(a, queue.General)
	h.join(b, queue.General)
	h.clk.Advance(h.eng.Config().EligibilityDelay)
	res := h.sweep()
	require.Len(h.t, res.Outcomes, 1)
	require.NotEmpty(h.t, res.Outcomes[0].SessionID)
	return res.Outcomes[0].SessionID
}

func (h *harness) enter(sessionID, participantID string) matchmaker.MembershipResult {
	h.t.Helper()
	_, err := h.mem.Join(community, sessionID, participantID)
	require.NoError(h.t, err)
	res, err := h.eng.OnMembershipEvent(h.ctx, matchmaker.MembershipEvent{
		CommunityID: community, SessionID: sessionID, ParticipantID: participantID, Joined: true,
	})
	require.NoError(h.t, err)
	return res
}

func (h *harness) exit(sessionID, participantID string) matchmaker.MembershipResult {
	h.t.Helper()
	_, err := h.mem.Leave(community, sessionID, participantID)
	require.NoError(h.t, err)
	res, err := h.eng.OnMembershipEvent(h.ctx, matchmaker.MembershipEvent{
		CommunityID: community, SessionID: sessionID, ParticipantID: participantID, Joined: false,
	})
	require.NoError(h.t, err)
	return res
}

func generalCounts(t *testing.T, h *harness) queue.Counts {
	t.Helper()
	st, err := h.eng.Status(h.ctx, community)
	require.NoError(t, err)
	require.Equal(t, queue.General, st.Buckets[0].Bucket)
	return st.Buckets[0]
}

func TestEngine_DelayedEligibilityScenario(t *testing.T) {
	h := newHarness(t, nil)

	res := h.join("X", queue.General)
	require.Equal(t, t0.Add(60*time.Second), res.EligibleAt)
	h.at(5 * time.Second)
	h.join("Y", queue.General)

	h.at(60 * time.Second)
	require.Empty(t, h.sweep().Outcomes)
	require.Equal(t, queue.Counts{Bucket: queue.General, Total: 2, Eligible: 1, Waiting: 1}, generalCounts(t, h))

	h.at(70 * time.Second)
	sweep := h.sweep()
	require.Len(t, sweep.Outcomes, 1)
	out := sweep.Outcomes[0]
	require.ElementsMatch(t, []string{"X", "Y"}, []string{out.Match.First, out.Match.Second})
	require.Equal(t, matchmaker.PolicyUnconstrained, out.Match.Policy)
	require.Equal(t, 1, sweep.Opened())
	require.Equal(t, queue.Counts{Bucket: queue.General}, generalCounts(t, h))

	sessions, err := h.eng.Sessions(h.ctx, community)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, out.SessionID, sessions[0].ID)
	require.Equal(t, session.PhaseAwaitingFirstJoin, sessions[0].Phase())

	channels := h.mem.Channels(community)
	require.Len(t, channels, 1)
	require.True(t, strings.HasPrefix(channels[0].Name, "Match: "))

	var notified []string
	for _, n := range h.mem.Outbox() {
		notified = append(notified, n.ParticipantID)
		require.Contains(t, n.Message, "Matched with")
	}
	require.ElementsMatch(t, []string{"X", "Y"}, notified)
	require.Equal(t, 1, h.rec.count(activity.TypePairFormed))
	require.Equal(t, 1, h.rec.count(activity.TypeSessionOpened))
}

func TestEngine_OddParticipantStaysQueued(t *testing.T) {
	h := newHarness(t, nil)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		h.join(id, queue.General)
	}
	h.at(time.Minute)

	sweep := h.sweep()
	require.Len(t, sweep.Outcomes, 2)
	seen := map[string]bool{}
	for _, o := range sweep.Outcomes {
		require.False(t, seen[o.Match.First])
		require.False(t, seen[o.Match.Second])
		seen[o.Match.First], seen[o.Match.Second] = true, true
	}
	require.Equal(t, queue.Counts{Bucket: queue.General, Total: 1, Eligible: 1}, generalCounts(t, h))
}

func TestEngine_DuplicateJoinReportsRemaining(t *testing.T) {
	h := newHarness(t, nil)
	h.join("A", queue.General)
	h.at(5 * time.Second)

	_, err := h.eng.Join(h.ctx, matchmaker.JoinRequest{CommunityID: community, ParticipantID: "A"})
	require.ErrorIs(t, err, queue.ErrAlreadyQueued)
	var aq *queue.AlreadyQueuedError
	require.ErrorAs(t, err, &aq)
	require.Equal(t, 55*time.Second, aq.Remaining(h.clk.Now()))
	require.Equal(t, "You're already queued. 55 seconds left.", matchmaker.AlreadyQueuedMessage(err, h.clk.Now()))

	h.at(90 * time.Second)
	require.Contains(t, matchmaker.AlreadyQueuedMessage(err, h.clk.Now()), "shortly")
	require.Equal(t, 1, generalCounts(t, h).Total)
}

func TestEngine_CancelAfterClaimReportsNotQueued(t *testing.T) {
	h := newHarness(t, nil)
	h.join("A", queue.General)
	h.join("B", queue.General)

	removed, err := h.eng.Cancel(h.ctx, community, "B", "")
	require.NoError(t, err)
	require.True(t, removed)
	h.join("B", queue.General)

	h.at(time.Minute)
	require.Len(t, h.sweep().Outcomes, 1)

	removed, err = h.eng.Cancel(h.ctx, community, "A", queue.General)
	require.NoError(t, err)
	require.False(t, removed)
	require.Equal(t, 1, h.rec.count(activity.TypeParticipantCancelled))

	_, err = h.eng.Cancel(h.ctx, community, "A", "nope")
	require.ErrorIs(t, err, queue.ErrUnknownBucket)
}

func TestEngine_CrossCategoryPairing(t *testing.T) {
	h := newHarness(t, func(c *matchmaker.Config) { c.Categories = []string{"Male", "Female"} })
	for _, id := range []string{"m1", "m2", "m3"} {
		h.join(id, "male")
	}
	h.join("f1", "female")
	h.at(time.Minute)

	sweep := h.sweep()
	require.Len(t, sweep.Outcomes, 1)
	m := sweep.Outcomes[0].Match
	require.Equal(t, matchmaker.PolicyCrossCategory, m.Policy)
	require.True(t, strings.HasPrefix(m.First, "m"))
	require.Equal(t, "f1", m.Second)

	st, err := h.eng.Status(h.ctx, community)
	require.NoError(t, err)
	require.Equal(t, queue.Counts{Bucket: "male", Total: 2, Eligible: 2}, st.Buckets[1])
	require.Equal(t, queue.Counts{Bucket: "female"}, st.Buckets[2])
}

func TestEngine_CategoryAdmission(t *testing.T) {
	h := newHarness(t, func(c *matchmaker.Config) { c.Categories = []string{"male", "female"} })

	res, err := h.eng.Join(h.ctx, matchmaker.JoinRequest{CommunityID: community, ParticipantID: "A", Labels: []string{"member", "Female"}})
	require.NoError(t, err)
	require.Equal(t, queue.Bucket("female"), res.Bucket)

	_, err = h.eng.Join(h.ctx, matchmaker.JoinRequest{CommunityID: community, ParticipantID: "A", Bucket: "male"})
	require.ErrorIs(t, err, queue.ErrCategoryConflict)

	_, err = h.eng.Join(h.ctx, matchmaker.JoinRequest{CommunityID: community, ParticipantID: "B", Labels: []string{"male", "female"}})
	require.ErrorIs(t, err, queue.ErrAmbiguousCategory)

	_, err = h.eng.Join(h.ctx, matchmaker.JoinRequest{CommunityID: community, ParticipantID: "C", Labels: []string{"member"}})
	require.ErrorIs(t, err, queue.ErrNoCategory)

	_, err = h.eng.Join(h.ctx, matchmaker.JoinRequest{CommunityID: community, ParticipantID: "A"})
	require.NoError(t, err, "general pool coexists with a category")
}

func TestEngine_PairedParticipantLeavesEveryBucket(t *testing.T) {
	h := newHarness(t, func(c *matchmaker.Config) { c.Categories = []string{"male", "female"} })
	h.join("A", queue.General)
	h.join("A", "male")
	h.join("B", queue.General)
	h.join("F", "female")
	h.at(time.Minute)

	sweep := h.sweep()
	require.Len(t, sweep.Outcomes, 1, "A is claimed by the general pair and cannot also pair with F")
	require.Equal(t, matchmaker.PolicyUnconstrained, sweep.Outcomes[0].Match.Policy)

	st, err := h.eng.Status(h.ctx, community)
	require.NoError(t, err)
	require.Equal(t, 0, st.Buckets[1].Total)
	require.Equal(t, 1, st.Buckets[2].Total)
}

func TestEngine_MutualCompleteScenario(t *testing.T) {
	h := newHarness(t, nil)
	id := h.openSession("A", "B")

	h.clk.Advance(10 * time.Second)
	res := h.enter(id, "A")
	require.True(t, res.Tracked)
	require.Equal(t, session.PhaseOccupied, res.Phase)

	h.clk.Advance(10 * time.Second)
	res = h.enter(id, "B")
	require.Equal(t, session.PhaseFullyMet, res.Phase)

	h.clk.Advance(10 * time.Second)
	res = h.exit(id, "A")
	require.False(t, res.Destroyed)

	h.clk.Advance(10 * time.Second)
	res = h.exit(id, "B")
	require.True(t, res.Destroyed)

	require.Empty(t, h.mem.Channels(community))
	sessions, err := h.eng.Sessions(h.ctx, community)
	require.NoError(t, err)
	require.Empty(t, sessions)
	require.Equal(t, 1, h.rec.count(activity.TypeSessionReclaimed))
}

func TestEngine_IdleTimeoutScenario(t *testing.T) {
	h := newHarness(t, nil)
	id := h.openSession("A", "B")

	h.clk.Advance(299 * time.Second)
	require.Empty(t, h.watchdog())

	h.clk.Advance(time.Second)
	got := h.watchdog()
	require.Equal(t, []matchmaker.Reclamation{{SessionID: id, Reason: session.ReasonIdleTimeout, Verdict: matchmaker.VerdictReclaimed}}, got)
	require.Empty(t, h.mem.Channels(community))
	require.Empty(t, h.watchdog())
}

func TestEngine_WatchdogKeepsOccupiedChannel(t *testing.T) {
	h := newHarness(t, nil)
	id := h.openSession("A", "B")

	// Occupant present but the join event not delivered yet.
	_, err := h.mem.Join(community, id, "A")
	require.NoError(t, err)

	h.clk.Advance(5 * time.Minute)
	got := h.watchdog()
	require.Len(t, got, 1)
	require.Equal(t, matchmaker.VerdictKept, got[0].Verdict)
	require.Len(t, h.mem.Channels(community), 1)

	sessions, err := h.eng.Sessions(h.ctx, community)
	require.NoError(t, err)
	require.False(t, sessions[0].Retiring())
}

func TestEngine_StrandedSessionRetainedByDefault(t *testing.T) {
	h := newHarness(t, nil)
	id := h.openSession("A", "B")

	h.clk.Advance(10 * time.Second)
	h.enter(id, "A")
	h.clk.Advance(10 * time.Second)
	res := h.exit(id, "A")
	require.False(t, res.Destroyed)
	require.Equal(t, session.PhaseStranded, res.Phase)

	h.clk.Advance(time.Hour)
	require.Empty(t, h.watchdog())
	require.Len(t, h.mem.Channels(community), 1)

	st, err := h.eng.Status(h.ctx, community)
	require.NoError(t, err)
	require.Equal(t, 1, st.Sessions.Stranded)
}

func TestEngine_StrandedSessionReclaimedWhenEnabled(t *testing.T) {
	h := newHarness(t, func(c *matchmaker.Config) { c.ReclaimStranded = true })
	id := h.openSession("A", "B")

	h.enter(id, "A")
	h.exit(id, "A")

	h.clk.Advance(4 * time.Minute)
	require.Empty(t, h.watchdog())

	h.clk.Advance(time.Minute)
	got := h.watchdog()
	require.Len(t, got, 1)
	require.Equal(t, session.ReasonStranded, got[0].Reason)
	require.Equal(t, matchmaker.VerdictReclaimed, got[0].Verdict)
	require.Empty(t, h.mem.Channels(community))
}

func TestEngine_ProvisionFailureNotifiesBoth(t *testing.T) {
	h := newHarness(t, nil)
	h.mem.FailProvisioning(errors.New("missing permissions"))
	h.join("A", queue.General)
	h.join("B", queue.General)
	h.at(time.Minute)

	sweep := h.sweep()
	require.Len(t, sweep.Outcomes, 1)
	require.Empty(t, sweep.Outcomes[0].SessionID)
	require.Equal(t, "missing permissions", sweep.Outcomes[0].Error)

	outbox := h.mem.Outbox()
	require.Len(t, outbox, 2)
	for _, n := range outbox {
		require.Contains(t, n.Message, "missing permissions")
	}
	require.Equal(t, 0, generalCounts(t, h).Total, "no automatic retry")
	require.Equal(t, 1, h.rec.count(activity.TypeProvisionFailed))

	h.mem.FailProvisioning(nil)
	h.at(2 * time.Minute)
	require.Empty(t, h.sweep().Outcomes)
}

func TestEngine_NotificationFailureDoesNotBlockPartner(t *testing.T) {
	h := newHarness(t, nil)
	h.mem.FailNotifications("A")
	h.openSession("A", "B")

	outbox := h.mem.Outbox()
	require.Len(t, outbox, 1)
	require.Equal(t, "B", outbox[0].ParticipantID)
}

func TestEngine_MissingParticipantDroppedSilently(t *testing.T) {
	h := newHarness(t, nil)
	h.join("A", queue.General)
	h.join("B", queue.General)
	h.mem.RemoveParticipant("B")
	h.at(time.Minute)

	sweep := h.sweep()
	require.Len(t, sweep.Outcomes, 1)
	require.True(t, sweep.Outcomes[0].Dropped)
	require.Empty(t, h.mem.Outbox())
}

func TestEngine_StaleChannelIsDropped(t *testing.T) {
	h := newHarness(t, nil)
	id := h.openSession("A", "B")

	require.NoError(t, h.mem.DestroySession(h.ctx, community, id))
	res, err := h.eng.OnMembershipEvent(h.ctx, matchmaker.MembershipEvent{
		CommunityID: community, SessionID: id, ParticipantID: "A", Joined: true,
	})
	require.NoError(t, err)
	require.True(t, res.Dropped)
	require.Equal(t, 1, h.rec.count(activity.TypeSessionDropped))

	sessions, err := h.eng.Sessions(h.ctx, community)
	require.NoError(t, err)
	require.Empty(t, sessions)
}

func TestEngine_VanishedCommunityDropsOnWatchdog(t *testing.T) {
	h := newHarness(t, nil)
	id := h.openSession("A", "B")
	h.mem.RemoveCommunity(community)

	h.clk.Advance(5 * time.Minute)
	got := h.watchdog()
	require.Equal(t, []matchmaker.Reclamation{{SessionID: id, Reason: session.ReasonIdleTimeout, Verdict: matchmaker.VerdictDropped}}, got)
}

func TestEngine_UntrackedChannelEventsAreIgnored(t *testing.T) {
	h := newHarness(t, nil)
	res, err := h.eng.OnMembershipEvent(h.ctx, matchmaker.MembershipEvent{
		CommunityID: community, SessionID: "lobby", ParticipantID: "A", Joined: true,
	})
	require.NoError(t, err)
	require.False(t, res.Tracked)
}

func TestEngine_CommunitiesAreIndependent(t *testing.T) {
	h := newHarness(t, nil)
	h.join("A", queue.General)
	_, err := h.eng.Join(h.ctx, matchmaker.JoinRequest{CommunityID: "guild2", ParticipantID: "B"})
	require.NoError(t, err)
	h.at(time.Minute)

	results, err := h.eng.Sweep(h.ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		require.Empty(t, r.Outcomes)
	}
	require.Equal(t, []string{"guild1", "guild2"}, h.eng.Communities())
}

func TestEngine_RunDrivesTicks(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.eng.Run(ctx)
		close(done)
	}()
	h.clk.WaitForTickers(2)

	h.join("A", queue.General)
	h.join("B", queue.General)
	h.clk.Advance(time.Minute)

	require.Eventually(t, func() bool {
		sessions, err := h.eng.Sessions(h.ctx, community)
		return err == nil && len(sessions) == 1
	}, 2*time.Second, 5*time.Millisecond)

	h.clk.Advance(5 * time.Minute)
	require.Eventually(t, func() bool {
		return len(h.mem.Channels(community)) == 0
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestEngine_ClosedEngineRejectsWork(t *testing.T) {
	h := newHarness(t, nil)
	h.join("A", queue.General)
	require.NoError(t, h.eng.Close())
	require.NoError(t, h.eng.Close())

	_, err := h.eng.Join(h.ctx, matchmaker.JoinRequest{CommunityID: community, ParticipantID: "B"})
	require.ErrorIs(t, err, matchmaker.ErrClosed)
}

func TestEngine_RejectsMissingIdentifiers(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.eng.Join(h.ctx, matchmaker.JoinRequest{CommunityID: community})
	require.ErrorIs(t, err, matchmaker.ErrInvalidInput)
	_, err = h.eng.Join(h.ctx, matchmaker.JoinRequest{ParticipantID: "A"})
	require.ErrorIs(t, err, matchmaker.ErrInvalidInput)
	_, err = h.eng.OnMembershipEvent(h.ctx, matchmaker.MembershipEvent{CommunityID: community})
	require.ErrorIs(t, err, matchmaker.ErrInvalidInput)
}

func TestEngine_WatchdogCoversEveryCommunity(t *testing.T) {
	h := newHarness(t, nil)
	h.join("A", queue.General)
	h.join("B", queue.General)
	for _, id := range []string{"C", "D"} {
		_, err := h.eng.Join(h.ctx, matchmaker.JoinRequest{CommunityID: "guild2", ParticipantID: id})
		require.NoError(t, err)
	}
	h.at(time.Minute)
	_, err := h.eng.Sweep(h.ctx)
	require.NoError(t, err)

	h.at(time.Minute + 5*time.Minute)
	results, err := h.eng.Watchdog(h.ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "guild1", results[0].CommunityID)
	require.Equal(t, "guild2", results[1].CommunityID)
	for _, r := range results {
		require.Len(t, r.Reclamations, 1)
		require.Equal(t, matchmaker.VerdictReclaimed, r.Reclamations[0].Verdict)
		require.Equal(t, session.ReasonIdleTimeout, r.Reclamations[0].Reason)
		require.Empty(t, h.mem.Channels(r.CommunityID))
	}
}

func TestEngine_JoinDuringWatchdogRecheckCountsAsOccupied(t *testing.T) {
	h, gate := newGatedHarness(t, false)
	id := h.openSession("A", "B")
	h.clk.Advance(5 * time.Minute)

	gate.armed.Store(true)
	wd := make(chan []matchmaker.Reclamation, 1)
	go func() {
		res, err := h.eng.WatchdogCommunity(h.ctx, community)
		assert.NoError(t, err)
		wd <- res.Reclamations
	}()
	<-gate.entered

	_, err := h.mem.Join(community, id, "A")
	require.NoError(t, err)
	joined := make(chan matchmaker.MembershipResult, 1)
	go func() {
		res, err := h.eng.OnMembershipEvent(h.ctx, matchmaker.MembershipEvent{
			CommunityID: community, SessionID: id, ParticipantID: "A", Joined: true,
		})
		assert.NoError(t, err)
		joined <- res
	}()
	close(gate.release)

	got := <-wd
	require.Len(t, got, 1)
	require.Equal(t, matchmaker.VerdictKept, got[0].Verdict)
	res := <-joined
	require.True(t, res.Tracked)
	require.True(t, res.Session.EverOccupied)
	require.Equal(t, session.PhaseOccupied, res.Phase)

	require.Equal(t, session.PhaseStranded, h.exit(id, "A").Phase)
	h.clk.Advance(time.Hour)
	require.Empty(t, h.watchdog(), "a used session is never reclaimed as idle")
	require.Len(t, h.mem.Channels(community), 1)
}

func TestEngine_MembershipEventsForOneSessionApplyInOrder(t *testing.T) {
	h, gate := newGatedHarness(t, true)
	id := h.openSession("A", "B")
	h.enter(id, "A")

	_, err := h.mem.Join(community, id, "B")
	require.NoError(t, err)
	gate.armed.Store(true)
	joined := make(chan matchmaker.MembershipResult, 1)
	go func() {
		res, err := h.eng.OnMembershipEvent(h.ctx, matchmaker.MembershipEvent{
			CommunityID: community, SessionID: id, ParticipantID: "B", Joined: true,
		})
		assert.NoError(t, err)
		joined <- res
	}()
	<-gate.entered

	// Both leave while B's join still holds its occupant list.
	_, err = h.mem.Leave(community, id, "A")
	require.NoError(t, err)
	_, err = h.mem.Leave(community, id, "B")
	require.NoError(t, err)
	var (
		wg     sync.WaitGroup
		leaves [2]matchmaker.MembershipResult
	)
	for i, who := range []string{"A", "B"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := h.eng.OnMembershipEvent(h.ctx, matchmaker.MembershipEvent{
				CommunityID: community, SessionID: id, ParticipantID: who, Joined: false,
			})
			assert.NoError(t, err)
			leaves[i] = res
		}()
	}
	close(gate.release)
	wg.Wait()

	require.True(t, (<-joined).Session.FullyMet)
	require.True(t, leaves[0].Destroyed || leaves[1].Destroyed, "the leave applied after the stale join destroys the channel")
	require.False(t, leaves[0].Destroyed && leaves[1].Destroyed)
	require.Empty(t, h.mem.Channels(community))
	sessions, err := h.eng.Sessions(h.ctx, community)
	require.NoError(t, err)
	require.Empty(t, sessions)
}
