package session_test

import (
	"testing"
	"time"

	"github.com/ganot/voicematch/internal/domain/session"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func newTracked(t *testing.T, r *session.Registry, id string) session.Session {
	t.Helper()
	sess, err := session.New(id, "guild1", "Match: A & B", "A", "B", t0)
	require.NoError(t, err)
	require.NoError(t, r.Track(sess))
	return sess
}

func TestNew_Validation(t *testing.T) {
	_, err := session.New("", "g", "", "A", "B", t0)
	require.ErrorIs(t, err, session.ErrInvalidInput)
	_, err = session.New("s", "g", "", "A", "A", t0)
	require.ErrorIs(t, err, session.ErrInvalidInput)
}

func TestRegistry_TrackDuplicate(t *testing.T) {
	r := session.NewRegistry()
	newTracked(t, r, "s1")

	sess, _ := r.Get("s1")
	require.ErrorIs(t, r.Track(sess), session.ErrDuplicateSession)
	require.Equal(t, session.PhaseAwaitingFirstJoin, sess.Phase())
}

func TestRegistry_ObserveUnknown(t *testing.T) {
	r := session.NewRegistry()
	_, err := r.ObserveMembership("missing", "A", true, []string{"A"})
	require.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestRegistry_MutualCompleteScenario(t *testing.T) {
	r := session.NewRegistry()
	newTracked(t, r, "s1")

	obs, err := r.ObserveMembership("s1", "A", true, []string{"A"})
	require.NoError(t, err)
	require.True(t, obs.Session.EverOccupied)
	require.False(t, obs.Session.FullyMet)
	require.Equal(t, session.DecisionKeep, obs.Decision)

	obs, err = r.ObserveMembership("s1", "B", true, []string{"A", "B"})
	require.NoError(t, err)
	require.True(t, obs.Session.FullyMet)
	require.True(t, obs.BecameFullyMet)

	obs, err = r.ObserveMembership("s1", "A", false, []string{"B"})
	require.NoError(t, err)
	require.Equal(t, session.DecisionKeep, obs.Decision)
	require.True(t, obs.Session.FullyMet, "flag never falls")

	obs, err = r.ObserveMembership("s1", "B", false, nil)
	require.NoError(t, err)
	require.Equal(t, session.DecisionDestroy, obs.Decision)
	require.Equal(t, session.ReasonMutualComplete, obs.Reason)
	require.Equal(t, session.PhaseRetiring, obs.Session.Phase())

	// A destroy is already in flight; no second one is requested.
	obs, err = r.ObserveMembership("s1", "A", true, []string{"A"})
	require.NoError(t, err)
	require.Equal(t, session.DecisionKeep, obs.Decision)
	obs, err = r.ObserveMembership("s1", "A", false, nil)
	require.NoError(t, err)
	require.Equal(t, session.DecisionKeep, obs.Decision)

	require.True(t, r.Remove("s1"))
	require.False(t, r.Remove("s1"))
}

func TestRegistry_OneSidedSessionIsStranded(t *testing.T) {
	r := session.NewRegistry()
	newTracked(t, r, "s1")

	_, err := r.ObserveMembership("s1", "A", true, []string{"A"})
	require.NoError(t, err)
	obs, err := r.ObserveMembership("s1", "A", false, nil)
	require.NoError(t, err)
	require.Equal(t, session.DecisionKeep, obs.Decision)
	require.True(t, obs.Stranded)
	require.Equal(t, session.PhaseStranded, obs.Session.Phase())

	require.Empty(t, r.Expired(t0.Add(time.Hour), 5*time.Minute, false), "idle path never applies once occupied")

	got := r.Expired(t0.Add(time.Hour), 5*time.Minute, true)
	require.Len(t, got, 1)
	require.Equal(t, session.ReasonStranded, got[0].Reason)
}

func TestRegistry_ExpiredRespectsTimeout(t *testing.T) {
	r := session.NewRegistry()
	newTracked(t, r, "s1")

	require.Empty(t, r.Expired(t0.Add(299*time.Second), 300*time.Second, false))

	got := r.Expired(t0.Add(300*time.Second), 300*time.Second, false)
	require.Len(t, got, 1)
	require.Equal(t, session.ReasonIdleTimeout, got[0].Reason)

	require.Empty(t, r.Expired(t0.Add(330*time.Second), 300*time.Second, false), "retiring sessions are not selected twice")

	r.Unretire("s1")
	got = r.Expired(t0.Add(360*time.Second), 300*time.Second, false)
	require.Len(t, got, 1)
}

func TestRegistry_JoinWhileRetiringIsKept(t *testing.T) {
	r := session.NewRegistry()
	newTracked(t, r, "s1")
	require.Len(t, r.Expired(t0.Add(5*time.Minute), 5*time.Minute, false), 1)

	obs, err := r.ObserveMembership("s1", "A", true, []string{"A"})
	require.NoError(t, err)
	require.Equal(t, session.DecisionKeep, obs.Decision)
	require.True(t, obs.Session.EverOccupied)
	require.Equal(t, session.PhaseRetiring, obs.Session.Phase())

	decision, _, ok := r.Recheck("s1", []string{"A"}, false)
	require.True(t, ok)
	require.Equal(t, session.DecisionKeep, decision)

	obs, err = r.ObserveMembership("s1", "A", false, nil)
	require.NoError(t, err)
	require.True(t, obs.Stranded)
	require.Empty(t, r.Expired(t0.Add(time.Hour), 5*time.Minute, false))
}

func TestRegistry_Recheck(t *testing.T) {
	cases := []struct {
		name            string
		events          func(r *session.Registry)
		live            []string
		includeStranded bool
		decision        session.Decision
		reason          session.Reason
		phase           session.Phase
	}{
		{
			name:     "untouched and empty",
			decision: session.DecisionDestroy,
			reason:   session.ReasonIdleTimeout,
			phase:    session.PhaseRetiring,
		},
		{
			name:     "occupant seen by the watchdog counts as a join",
			live:     []string{"B"},
			decision: session.DecisionKeep,
			phase:    session.PhaseOccupied,
		},
		{
			name:     "stranger keeps the channel without occupying it",
			live:     []string{"C"},
			decision: session.DecisionKeep,
			phase:    session.PhaseAwaitingFirstJoin,
		},
		{
			name: "met while retiring then emptied",
			events: func(r *session.Registry) {
				_, _ = r.ObserveMembership("s1", "A", true, []string{"A"})
				_, _ = r.ObserveMembership("s1", "B", true, []string{"A", "B"})
				_, _ = r.ObserveMembership("s1", "A", false, []string{"B"})
				_, _ = r.ObserveMembership("s1", "B", false, nil)
			},
			decision: session.DecisionDestroy,
			reason:   session.ReasonMutualComplete,
			phase:    session.PhaseRetiring,
		},
		{
			name: "used while retiring is no longer idle",
			events: func(r *session.Registry) {
				_, _ = r.ObserveMembership("s1", "A", true, []string{"A"})
				_, _ = r.ObserveMembership("s1", "A", false, nil)
			},
			decision: session.DecisionKeep,
			phase:    session.PhaseStranded,
		},
		{
			name: "used while retiring with stranded reclamation",
			events: func(r *session.Registry) {
				_, _ = r.ObserveMembership("s1", "A", true, []string{"A"})
				_, _ = r.ObserveMembership("s1", "A", false, nil)
			},
			includeStranded: true,
			decision:        session.DecisionDestroy,
			reason:          session.ReasonStranded,
			phase:           session.PhaseRetiring,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := session.NewRegistry()
			newTracked(t, r, "s1")
			require.Len(t, r.Expired(t0.Add(5*time.Minute), 5*time.Minute, false), 1)
			if tc.events != nil {
				tc.events(r)
			}

			decision, reason, ok := r.Recheck("s1", tc.live, tc.includeStranded)
			require.True(t, ok)
			require.Equal(t, tc.decision, decision)
			require.Equal(t, tc.reason, reason)
			sess, _ := r.Get("s1")
			require.Equal(t, tc.phase, sess.Phase())
		})
	}

	_, _, ok := session.NewRegistry().Recheck("missing", nil, false)
	require.False(t, ok)
}

func TestRegistry_FullyMetRequiresBothAtOnce(t *testing.T) {
	r := session.NewRegistry()
	newTracked(t, r, "s1")

	_, _ = r.ObserveMembership("s1", "A", true, []string{"A"})
	_, _ = r.ObserveMembership("s1", "A", false, nil)
	obs, _ := r.ObserveMembership("s1", "B", true, []string{"B"})
	require.False(t, obs.Session.FullyMet)

	obs, _ = r.ObserveMembership("s1", "B", false, nil)
	require.Equal(t, session.DecisionKeep, obs.Decision)
}

func TestRegistry_ListAndSummary(t *testing.T) {
	r := session.NewRegistry()
	newTracked(t, r, "s2")
	newTracked(t, r, "s1")
	_, _ = r.ObserveMembership("s2", "A", true, []string{"A"})

	list := r.List()
	require.Len(t, list, 2)
	require.Equal(t, "s1", list[0].ID)

	summary := r.Summary()
	require.Equal(t, session.Summary{Total: 2, Awaiting: 1, Occupied: 1}, summary)
}

func TestDisplayName(t *testing.T) {
	require.Equal(t, "Match: Alice & Bob", session.DisplayName("Alice", "Bob"))
	require.Equal(t, "Match: abcdefghijkl & Bob", session.DisplayName("abcdefghijklmnop", "Bob"))
}
