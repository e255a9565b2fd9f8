package mcp

import (
	"context"
	"log/slog"
	"time"

	"github.com/ganot/voicematch/internal/domain/activity"
	"github.com/ganot/voicematch/internal/domain/queue"
	"github.com/ganot/voicematch/internal/domain/session"
	"github.com/ganot/voicematch/internal/matchmaker"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Engine defines the matchmaker operations needed by MCP.
type Engine interface {
	Now() time.Time
	Join(ctx context.Context, req matchmaker.JoinRequest) (matchmaker.JoinResult, error)
	Cancel(ctx context.Context, communityID, participantID string, bucket queue.Bucket) (bool, error)
	Status(ctx context.Context, communityID string) (matchmaker.Status, error)
	OnMembershipEvent(ctx context.Context, ev matchmaker.MembershipEvent) (matchmaker.MembershipResult, error)
	Sessions(ctx context.Context, communityID string) ([]session.Session, error)
	SweepCommunity(ctx context.Context, communityID string) (matchmaker.SweepResult, error)
	WatchdogCommunity(ctx context.Context, communityID string) (matchmaker.WatchdogResult, error)
}

var _ Engine = (*matchmaker.Engine)(nil)

// ActivityService defines activity operations needed by MCP.
type ActivityService interface {
	GetRecentActivity(ctx context.Context, communityID string, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error)
}

// OccupancySimulator moves participants in and out of loopback channels.
// When configured, membership_event applies the move before notifying
// the engine.
type OccupancySimulator interface {
	Join(communityID, channelID, participantID string) ([]string, error)
	Leave(communityID, channelID, participantID string) ([]string, error)
}

// Config contains server configuration.
type Config struct {
	Engine    Engine
	Activity  ActivityService
	Simulator OccupancySimulator
	Resolver  CommunityResolver

	AuthEnabled      bool
	TransportMode    string // "stdio" or "http"
	DefaultCommunity string
	Logger           *slog.Logger
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.DefaultCommunity == "" {
		cfg.DefaultCommunity = "default"
	}

	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "voicematch",
		Version: "0.1.0",
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	registerDocResources(server)

	// Stdio is local only and never authenticates.
	if cfg.TransportMode != "stdio" && cfg.AuthEnabled {
		server.AddReceivingMiddleware(authMiddleware(cfg.Resolver))
	} else {
		server.AddReceivingMiddleware(noAuthMiddleware(cfg.DefaultCommunity))
	}
	server.AddReceivingMiddleware(trafficLoggingMiddleware(cfg.Logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(cfg.Logger, "outbound"))

	registerTools(server, &tools{
		engine:    cfg.Engine,
		activity:  cfg.Activity,
		simulator: cfg.Simulator,
	})

	return server
}
