package matchmaker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ganot/voicematch/internal/domain/queue"
	"github.com/ganot/voicematch/internal/domain/session"
)

// Status is a snapshot of one community.
type Status struct {
	CommunityID string          `json:"community_id"`
	At          time.Time       `json:"at"`
	Buckets     []queue.Counts  `json:"buckets"`
	Sessions    session.Summary `json:"sessions"`
}

// Status returns queue counts per bucket, general first, and session
// counts by phase.
func (e *Engine) Status(ctx context.Context, communityID string) (Status, error) {
	s, err := e.shard(communityID)
	if err != nil {
		return Status{}, err
	}
	st := Status{CommunityID: communityID}
	err = s.do(ctx, func() {
		st.At = e.clock.Now()
		st.Buckets = s.queues.Counts(st.At)
		st.Sessions = s.sessions.Summary()
	})
	if err != nil {
		return Status{}, err
	}
	return st, nil
}

// RenderText formats the status one line per bucket.
func (st Status) RenderText() string {
	var b strings.Builder
	for _, c := range st.Buckets {
		fmt.Fprintf(&b, "%s: %d total (%d ready / %d waiting)\n", c.Bucket, c.Total, c.Eligible, c.Waiting)
	}
	ss := st.Sessions
	fmt.Fprintf(&b, "sessions: %d open (%d awaiting, %d occupied, %d fully met, %d stranded, %d closing)",
		ss.Total, ss.Awaiting, ss.Occupied, ss.FullyMet, ss.Stranded, ss.Retiring)
	return b.String()
}
