package testserver

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ganot/voicematch/internal/clock"
	"github.com/ganot/voicematch/internal/domain/activity"
	"github.com/ganot/voicematch/internal/matchmaker"
	"github.com/ganot/voicematch/internal/mcp"
	"github.com/ganot/voicematch/internal/platform/memory"
	"github.com/ganot/voicematch/internal/sqlite"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"
)

// Start is the fake clock's initial time.
var Start = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// TestServer is the whole stack in-process: a shared-cache sqlite
// database, the loopback platform, the engine on a fake clock and the MCP
// server behind bearer auth.
type TestServer struct {
	Server      *httptest.Server
	DB          *sqlite.DB
	Clock       *clock.FakeClock
	Platform    *memory.Platform
	Engine      *matchmaker.Engine
	Activity    *activity.Service
	Token       string
	CommunityID string
}

// Option customizes the engine configuration.
type Option func(*matchmaker.Config)

func New(t *testing.T, token, communityID string, opts ...Option) *TestServer {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sqlite.New(dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	require.NoError(t, db.RunMigrations())

	activitySvc := activity.NewService(sqlite.NewActivityRepository(db), nil)
	apiKeys := sqlite.NewAPIKeyRepository(db)

	cfg := matchmaker.DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	clk := clock.Fake(Start)
	mem := memory.New()
	engine, err := matchmaker.New(cfg, mem,
		matchmaker.WithClock(clk),
		matchmaker.WithActivity(activitySvc),
	)
	require.NoError(t, err)

	mcpServer := mcp.NewServer(mcp.Config{
		Engine:        engine,
		Activity:      activitySvc,
		Simulator:     mem,
		Resolver:      apiKeys,
		AuthEnabled:   true,
		TransportMode: "http",
	})
	handler := sdkmcp.NewStreamableHTTPHandler(
		func(*http.Request) *sdkmcp.Server { return mcpServer },
		&sdkmcp.StreamableHTTPOptions{SessionTimeout: time.Minute},
	)
	mux := http.NewServeMux()
	mux.Handle("/mcp", handler)
	server := httptest.NewServer(mux)

	ts := &TestServer{
		Server:      server,
		DB:          db,
		Clock:       clk,
		Platform:    mem,
		Engine:      engine,
		Activity:    activitySvc,
		Token:       token,
		CommunityID: communityID,
	}
	require.NoError(t, ts.AddAPIKey(token, communityID))

	t.Cleanup(func() {
		server.Close()
		_ = engine.Close()
		_ = db.Close()
	})

	return ts
}

func (ts *TestServer) AddAPIKey(token, communityID string) error {
	return sqlite.NewAPIKeyRepository(ts.DB).Add(context.Background(), token, communityID, "test")
}

// Connect opens an MCP client session authenticated with token.
func (ts *TestServer) Connect(t *testing.T, token string) (*sdkmcp.ClientSession, error) {
	t.Helper()
	transport := &sdkmcp.StreamableClientTransport{
		Endpoint:   ts.Server.URL + "/mcp",
		HTTPClient: &http.Client{Transport: bearerTransport{token: token, base: http.DefaultTransport}},
	}
	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	cs, err := client.Connect(context.Background(), transport, nil)
	if err != nil {
		return nil, err
	}
	t.Cleanup(func() { _ = cs.Close() })
	return cs, nil
}

type bearerTransport struct {
	token string
	base  http.RoundTripper
}

func (b bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if b.token != "" {
		req.Header.Set("Authorization", "Bearer "+b.token)
	}
	return b.base.RoundTrip(req)
}
