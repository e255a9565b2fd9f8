// Package matchmaker runs the readiness queues, the pairing sweep and the
// session lifecycle for every community. Each community is served by its
// own shard goroutine; external platform calls never run on a shard.
package matchmaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ganot/voicematch/internal/clock"
	"github.com/ganot/voicematch/internal/domain/activity"
	"github.com/ganot/voicematch/internal/domain/queue"
	"github.com/ganot/voicematch/internal/domain/session"
	"github.com/ganot/voicematch/internal/platform"
)

// Engine is the matchmaking service. It is safe for concurrent use.
type Engine struct {
	cfg        Config
	categories []queue.Bucket
	platform   platform.Platform
	activity   ActivityLogger
	clock      clock.Clock
	logger     *slog.Logger

	mu     sync.Mutex
	shards map[string]*shard
	closed bool

	bg       sync.WaitGroup
	bgCtx    context.Context
	bgCancel context.CancelFunc
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithActivity records match history through logger.
func WithActivity(logger ActivityLogger) Option {
	return func(e *Engine) { e.activity = logger }
}

// New creates an engine. Shards are created lazily per community.
func New(cfg Config, p platform.Platform, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: platform is required", ErrInvalidConfig)
	}
	e := &Engine{
		cfg:        cfg,
		categories: cfg.buckets(),
		platform:   p,
		clock:      clock.Real(),
		logger:     slog.New(slog.DiscardHandler),
		shards:     make(map[string]*shard),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.bgCtx, e.bgCancel = context.WithCancel(context.Background())
	return e, nil
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config { return e.cfg }

// Now returns the engine clock's current time.
func (e *Engine) Now() time.Time { return e.clock.Now() }

func (e *Engine) shard(communityID string) (*shard, error) {
	if communityID == "" {
		return nil, fmt.Errorf("%w: community id is required", ErrInvalidInput)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}
	s, ok := e.shards[communityID]
	if !ok {
		s = newShard(communityID, e.categories)
		e.shards[communityID] = s
		e.logger.Debug("shard started", "community", communityID)
	}
	return s, nil
}

// snapshot returns the live shards ordered by community id.
func (e *Engine) snapshot() []*shard {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*shard, 0, len(e.shards))
	for _, s := range e.shards {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].communityID < out[j].communityID })
	return out
}

// spawn runs fn in the background until Close. It reports false once
// the engine is closed.
func (e *Engine) spawn(fn func(ctx context.Context)) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	e.bg.Add(1)
	go func() {
		defer e.bg.Done()
		fn(e.bgCtx)
	}()
	return true
}

// Close cancels background work, waits for it, then stops every shard.
// Queue and session state is discarded.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.bgCancel()
	e.bg.Wait()

	for _, s := range e.snapshot() {
		s.stop()
	}
	return nil
}

// JoinRequest asks for a participant to be queued.
type JoinRequest struct {
	CommunityID   string
	ParticipantID string
	DisplayName   string
	// Bucket is the target bucket. Empty means the general pool unless
	// Labels is set.
	Bucket queue.Bucket
	// Labels are the participant's role labels; when Bucket is empty and
	// Labels is non-empty the single matching category is used.
	Labels []string
}

// JoinResult reports an accepted join.
type JoinResult struct {
	CommunityID   string        `json:"community_id"`
	ParticipantID string        `json:"participant_id"`
	Bucket        queue.Bucket  `json:"bucket"`
	EligibleAt    time.Time     `json:"eligible_at"`
	Delay         time.Duration `json:"-"`
}

// Join queues a participant. A participant already waiting in the bucket
// gets a *queue.AlreadyQueuedError carrying the existing eligible time.
func (e *Engine) Join(ctx context.Context, req JoinRequest) (JoinResult, error) {
	if req.ParticipantID == "" {
		return JoinResult{}, fmt.Errorf("%w: participant id is required", ErrInvalidInput)
	}
	s, err := e.shard(req.CommunityID)
	if err != nil {
		return JoinResult{}, err
	}

	var (
		bucket     = queue.Normalize(string(req.Bucket))
		eligibleAt time.Time
		joinErr    error
	)
	err = s.do(ctx, func() {
		if bucket == "" && len(req.Labels) > 0 {
			bucket, joinErr = s.queues.ResolveCategory(req.Labels)
			if joinErr != nil {
				return
			}
		}
		if bucket == "" {
			bucket = queue.General
		}
		eligibleAt, joinErr = s.queues.Join(req.ParticipantID, bucket, e.clock.Now(), e.cfg.EligibilityDelay)
		if joinErr == nil && req.DisplayName != "" {
			s.names[req.ParticipantID] = req.DisplayName
		}
	})
	if err != nil {
		return JoinResult{}, err
	}
	if joinErr != nil {
		return JoinResult{}, joinErr
	}

	e.logger.Info("participant queued", "community", req.CommunityID, "participant", req.ParticipantID, "bucket", bucket, "eligible_at", eligibleAt)
	e.record(ctx, req.CommunityID, &activity.ActivityEntry{
		ParticipantID: &req.ParticipantID,
		Bucket:        string(bucket),
		ActivityType:  activity.TypeParticipantQueued,
		Summary:       fmt.Sprintf("%s joined %s", req.ParticipantID, bucket),
	})
	return JoinResult{
		CommunityID:   req.CommunityID,
		ParticipantID: req.ParticipantID,
		Bucket:        bucket,
		EligibleAt:    eligibleAt,
		Delay:         e.cfg.EligibilityDelay,
	}, nil
}

// Cancel removes a participant from a bucket. It reports false, with no
// error, when the participant was not queued there, including when a
// sweep already claimed them.
func (e *Engine) Cancel(ctx context.Context, communityID, participantID string, bucket queue.Bucket) (bool, error) {
	if participantID == "" {
		return false, fmt.Errorf("%w: participant id is required", ErrInvalidInput)
	}
	s, err := e.shard(communityID)
	if err != nil {
		return false, err
	}
	bucket = queue.Normalize(string(bucket))
	if bucket == "" {
		bucket = queue.General
	}

	var (
		removed   bool
		cancelErr error
	)
	err = s.do(ctx, func() {
		removed, cancelErr = s.queues.Cancel(participantID, bucket)
		if removed {
			s.forget(participantID)
		}
	})
	if err != nil {
		return false, err
	}
	if cancelErr != nil {
		return false, cancelErr
	}
	if removed {
		e.logger.Info("participant cancelled", "community", communityID, "participant", participantID, "bucket", bucket)
		e.record(ctx, communityID, &activity.ActivityEntry{
			ParticipantID: &participantID,
			Bucket:        string(bucket),
			ActivityType:  activity.TypeParticipantCancelled,
			Summary:       fmt.Sprintf("%s left %s", participantID, bucket),
		})
	}
	return removed, nil
}

// Sessions lists the tracked sessions of a community, oldest first.
func (e *Engine) Sessions(ctx context.Context, communityID string) ([]session.Session, error) {
	s, err := e.shard(communityID)
	if err != nil {
		return nil, err
	}
	var out []session.Session
	if err := s.do(ctx, func() { out = s.sessions.List() }); err != nil {
		return nil, err
	}
	return out, nil
}

// Communities lists every community the engine has seen.
func (e *Engine) Communities() []string {
	shards := e.snapshot()
	out := make([]string, 0, len(shards))
	for _, s := range shards {
		out = append(out, s.communityID)
	}
	return out
}

func (e *Engine) record(ctx context.Context, communityID string, entry *activity.ActivityEntry) {
	if e.activity == nil {
		return
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = e.clock.Now()
	}
	// History must survive a cancelled request.
	ctx = context.WithoutCancel(ctx)
	if err := e.activity.LogActivity(ctx, communityID, entry); err != nil {
		e.logger.Warn("activity not recorded", "community", communityID, "type", entry.ActivityType, "error", err)
	}
}

// notify delivers a direct message, swallowing failures.
func (e *Engine) notify(ctx context.Context, communityID, participantID, message string) {
	if err := e.platform.Notify(ctx, participantID, message); err != nil {
		level := slog.LevelWarn
		if errors.Is(err, platform.ErrParticipantNotFound) {
			level = slog.LevelDebug
		}
		e.logger.Log(ctx, level, "notification failed", "community", communityID, "participant", participantID, "error", err)
	}
}

func strPtr(s string) *string { return &s }
