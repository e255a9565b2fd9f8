package mcp

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/ganot/voicematch/internal/domain/activity"
	"github.com/ganot/voicematch/internal/domain/queue"
	"github.com/ganot/voicematch/internal/matchmaker"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

type tools struct {
	engine    Engine
	activity  ActivityService
	simulator OccupancySimulator
}

func registerTools(server *sdkmcp.Server, t *tools) {
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "join_queue",
		Description: "Queue a participant for a random voice match. A duplicate join reports the seconds left instead of failing.",
	}, t.joinQueue)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "cancel_queue",
		Description: "Remove a participant from a queue. Reports removed=false when they were not waiting there.",
	}, t.cancelQueue)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "queue_status",
		Description: "Per-queue totals (ready and waiting) and session phase counts for a community.",
	}, t.queueStatus)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "membership_event",
		Description: "Report that a participant entered or left a session channel.",
	}, t.membershipEvent)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_sessions",
		Description: "List the voice sessions the matchmaker is tracking, oldest first.",
	}, t.listSessions)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "recent_activity",
		Description: "Match history for a community, newest first.",
	}, t.recentActivity)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "run_sweep",
		Description: "Pair every eligible participant now and provision their sessions, without waiting for the next tick.",
	}, t.runSweep)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "run_watchdog",
		Description: "Reclaim idle sessions now, without waiting for the next tick.",
	}, t.runWatchdog)
}

func (t *tools) joinQueue(ctx context.Context, _ *sdkmcp.CallToolRequest, in JoinQueueParams) (*sdkmcp.CallToolResult, JoinQueueResult, error) {
	communityID, err := getCommunityID(ctx, in.CommunityID)
	if err != nil {
		return nil, JoinQueueResult{}, toolError(err)
	}

	res, err := t.engine.Join(ctx, matchmaker.JoinRequest{
		CommunityID:   communityID,
		ParticipantID: in.ParticipantID,
		DisplayName:   in.DisplayName,
		Bucket:        queue.Bucket(in.Bucket),
		Labels:        in.Labels,
	})
	var aq *queue.AlreadyQueuedError
	if errors.As(err, &aq) {
		now := t.engine.Now()
		return nil, JoinQueueResult{
			Bucket:           string(aq.Bucket),
			EligibleAt:       formatTime(aq.EligibleAt),
			RemainingSeconds: int(math.Ceil(aq.Remaining(now).Seconds())),
			Message:          matchmaker.AlreadyQueuedMessage(err, now),
		}, nil
	}
	if err != nil {
		return nil, JoinQueueResult{}, toolError(err)
	}
	return nil, JoinQueueResult{
		Accepted:         true,
		Bucket:           string(res.Bucket),
		EligibleAt:       formatTime(res.EligibleAt),
		RemainingSeconds: int(res.Delay.Seconds()),
		Message:          matchmaker.JoinedMessage(res),
	}, nil
}

func (t *tools) cancelQueue(ctx context.Context, _ *sdkmcp.CallToolRequest, in CancelQueueParams) (*sdkmcp.CallToolResult, CancelQueueResult, error) {
	communityID, err := getCommunityID(ctx, in.CommunityID)
	if err != nil {
		return nil, CancelQueueResult{}, toolError(err)
	}
	bucket := queue.Normalize(in.Bucket)
	if bucket == "" {
		bucket = queue.General
	}
	removed, err := t.engine.Cancel(ctx, communityID, in.ParticipantID, bucket)
	if err != nil {
		return nil, CancelQueueResult{}, toolError(err)
	}
	return nil, CancelQueueResult{
		Removed: removed,
		Bucket:  string(bucket),
		Message: matchmaker.CancelledMessage(bucket, removed),
	}, nil
}

func (t *tools) queueStatus(ctx context.Context, _ *sdkmcp.CallToolRequest, in CommunityParams) (*sdkmcp.CallToolResult, QueueStatusResult, error) {
	communityID, err := getCommunityID(ctx, in.CommunityID)
	if err != nil {
		return nil, QueueStatusResult{}, toolError(err)
	}
	st, err := t.engine.Status(ctx, communityID)
	if err != nil {
		return nil, QueueStatusResult{}, toolError(err)
	}
	return nil, QueueStatusResult{
		CommunityID: communityID,
		Buckets:     toBucketCounts(st.Buckets),
		Sessions:    st.Sessions,
		Text:        st.RenderText(),
	}, nil
}

func (t *tools) membershipEvent(ctx context.Context, _ *sdkmcp.CallToolRequest, in MembershipEventParams) (*sdkmcp.CallToolResult, MembershipEventResult, error) {
	communityID, err := getCommunityID(ctx, in.CommunityID)
	if err != nil {
		return nil, MembershipEventResult{}, toolError(err)
	}
	if in.SessionID == "" || in.ParticipantID == "" {
		return nil, MembershipEventResult{}, toolError(fmt.Errorf("%w: session_id and participant_id are required", errInvalidArgument))
	}

	if t.simulator != nil {
		move := t.simulator.Leave
		if in.Joined {
			move = t.simulator.Join
		}
		if _, err := move(communityID, in.SessionID, in.ParticipantID); err != nil {
			return nil, MembershipEventResult{}, toolError(err)
		}
	}

	res, err := t.engine.OnMembershipEvent(ctx, matchmaker.MembershipEvent{
		CommunityID:   communityID,
		SessionID:     in.SessionID,
		ParticipantID: in.ParticipantID,
		Joined:        in.Joined,
	})
	if err != nil {
		return nil, MembershipEventResult{}, toolError(err)
	}
	return nil, MembershipEventResult{
		Tracked:   res.Tracked,
		Phase:     string(res.Phase),
		LiveCount: res.Session.LiveCount,
		FullyMet:  res.Session.FullyMet,
		Destroyed: res.Destroyed,
		Dropped:   res.Dropped,
	}, nil
}

func (t *tools) listSessions(ctx context.Context, _ *sdkmcp.CallToolRequest, in CommunityParams) (*sdkmcp.CallToolResult, ListSessionsResult, error) {
	communityID, err := getCommunityID(ctx, in.CommunityID)
	if err != nil {
		return nil, ListSessionsResult{}, toolError(err)
	}
	sessions, err := t.engine.Sessions(ctx, communityID)
	if err != nil {
		return nil, ListSessionsResult{}, toolError(err)
	}
	out := ListSessionsResult{CommunityID: communityID, Sessions: make([]SessionView, 0, len(sessions))}
	for _, s := range sessions {
		out.Sessions = append(out.Sessions, toSessionView(s))
	}
	return nil, out, nil
}

func (t *tools) recentActivity(ctx context.Context, _ *sdkmcp.CallToolRequest, in RecentActivityParams) (*sdkmcp.CallToolResult, RecentActivityResult, error) {
	if t.activity == nil {
		return nil, RecentActivityResult{}, toolError(fmt.Errorf("activity log: %w", errNotConfigured))
	}
	communityID, err := getCommunityID(ctx, in.CommunityID)
	if err != nil {
		return nil, RecentActivityResult{}, toolError(err)
	}

	opts := activity.ListActivityOptions{Limit: in.Limit, Offset: in.Offset}
	if in.ParticipantID != "" {
		opts.ParticipantID = &in.ParticipantID
	}
	if in.SessionID != "" {
		opts.SessionID = &in.SessionID
	}
	if in.ActivityType != "" {
		typ := activity.ActivityType(in.ActivityType)
		opts.ActivityType = &typ
	}

	entries, err := t.activity.GetRecentActivity(ctx, communityID, opts)
	if err != nil {
		return nil, RecentActivityResult{}, toolError(err)
	}
	out := RecentActivityResult{Entries: make([]ActivityView, 0, len(entries))}
	for _, e := range entries {
		out.Entries = append(out.Entries, toActivityView(e))
	}
	return nil, out, nil
}

func (t *tools) runSweep(ctx context.Context, _ *sdkmcp.CallToolRequest, in CommunityParams) (*sdkmcp.CallToolResult, RunSweepResult, error) {
	communityID, err := getCommunityID(ctx, in.CommunityID)
	if err != nil {
		return nil, RunSweepResult{}, toolError(err)
	}
	res, err := t.engine.SweepCommunity(ctx, communityID)
	if err != nil {
		return nil, RunSweepResult{}, toolError(err)
	}
	out := RunSweepResult{CommunityID: communityID, Opened: res.Opened(), Outcomes: make([]OutcomeView, 0, len(res.Outcomes))}
	for _, o := range res.Outcomes {
		out.Outcomes = append(out.Outcomes, toOutcomeView(o))
	}
	return nil, out, nil
}

func (t *tools) runWatchdog(ctx context.Context, _ *sdkmcp.CallToolRequest, in CommunityParams) (*sdkmcp.CallToolResult, RunWatchdogResult, error) {
	communityID, err := getCommunityID(ctx, in.CommunityID)
	if err != nil {
		return nil, RunWatchdogResult{}, toolError(err)
	}
	res, err := t.engine.WatchdogCommunity(ctx, communityID)
	if err != nil {
		return nil, RunWatchdogResult{}, toolError(err)
	}
	out := RunWatchdogResult{CommunityID: communityID, Reclamations: make([]ReclamationView, 0, len(res.Reclamations))}
	for _, r := range res.Reclamations {
		out.Reclamations = append(out.Reclamations, toReclamationView(r))
	}
	return nil, out, nil
}
