package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ganot/voicematch/internal/config"
	"github.com/ganot/voicematch/internal/domain/activity"
	"github.com/ganot/voicematch/internal/matchmaker"
	"github.com/ganot/voicematch/internal/mcp"
	"github.com/ganot/voicematch/internal/platform"
	"github.com/ganot/voicematch/internal/platform/memory"
	"github.com/ganot/voicematch/internal/platform/webhook"
	"github.com/ganot/voicematch/internal/repository"
	"github.com/ganot/voicematch/internal/sqlite"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	// Use stderr for logs in stdio mode to keep stdout clean for JSON-RPC.
	logWriter := io.Writer(os.Stdout)
	if cfg.Transport.Mode == config.TransportStdio {
		logWriter = os.Stderr
	}
	if cfg.Log.Path != "" {
		fileWriter, err := newLogFileWriter(cfg.Log.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log file error: %v\n", err)
		} else {
			defer fileWriter.Close()
			logWriter = fileWriter
		}
	}
	logger := slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if err := ensureDBDir(cfg.DB.Path); err != nil {
		return fmt.Errorf("prepare database path: %w", err)
	}
	db, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.RunMigrations(); err != nil {
		return err
	}

	activitySvc := activity.NewService(sqlite.NewActivityRepository(db), logger)
	apiKeys := sqlite.NewAPIKeyRepository(db)
	if err := seedAPIKeys(ctx, apiKeys, cfg.Auth.Tokens); err != nil {
		return err
	}

	plat, simulator, err := buildPlatform(cfg.Platform, logger)
	if err != nil {
		return err
	}

	engine, err := matchmaker.New(cfg.Matchmaker(), plat,
		matchmaker.WithLogger(logger),
		matchmaker.WithActivity(activitySvc),
	)
	if err != nil {
		return err
	}
	defer engine.Close()

	mcpServer := mcp.NewServer(mcp.Config{
		Engine:           engine,
		Activity:         activitySvc,
		Simulator:        simulator,
		Resolver:         apiKeys,
		AuthEnabled:      cfg.Auth.Enabled,
		TransportMode:    cfg.Transport.Mode,
		DefaultCommunity: cfg.Auth.DefaultCommunity,
		Logger:           logger,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		engine.Run(ctx)
		return nil
	})
	g.Go(func() error {
		// The engine stops with the transport.
		defer cancel()
		if cfg.Transport.Mode == config.TransportStdio {
			return runStdioMode(ctx, logger, mcpServer)
		}
		return runHTTPMode(ctx, logger, mcpServer, cfg.Server.Host, cfg.Server.Port)
	})
	return g.Wait()
}

// buildPlatform returns the platform adapter and, for the loopback
// platform, the simulator the membership_event tool drives.
func buildPlatform(cfg config.PlatformConfig, logger *slog.Logger) (platform.Platform, mcp.OccupancySimulator, error) {
	switch cfg.Mode {
	case config.PlatformWebhook:
		client, err := webhook.New(webhook.Config{
			BaseURL: cfg.WebhookURL,
			Token:   cfg.WebhookToken,
			Logger:  logger,
		})
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using webhook platform", "url", cfg.WebhookURL)
		return client, nil, nil
	default:
		logger.Info("using loopback platform")
		mem := memory.New()
		return mem, mem, nil
	}
}

func seedAPIKeys(ctx context.Context, repo repository.APIKeyRepository, tokens map[string]string) error {
	for token, communityID := range tokens {
		err := repo.Add(ctx, token, communityID, "config")
		if err != nil && !errors.Is(err, repository.ErrAlreadyExists) {
			return fmt.Errorf("seed api key for %s: %w", communityID, err)
		}
	}
	return nil
}

func runStdioMode(ctx context.Context, logger *slog.Logger, mcpServer *sdkmcp.Server) error {
	logger.Info("starting stdio transport", "auth", "disabled")

	// Run blocks until stdin closes or ctx is cancelled.
	err := mcpServer.Run(ctx, &sdkmcp.StdioTransport{})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("stdio server: %w", err)
	}
	logger.Info("shutting down")
	return nil
}

func runHTTPMode(ctx context.Context, logger *slog.Logger, mcpServer *sdkmcp.Server, host string, port int) error {
	mcpHandler := sdkmcp.NewStreamableHTTPHandler(
		func(r *http.Request) *sdkmcp.Server { return mcpServer },
		&sdkmcp.StreamableHTTPOptions{
			SessionTimeout: 30 * time.Minute,
		},
	)

	router := http.NewServeMux()
	router.Handle("/mcp", mcpHandler)
	router.Handle("/mcp/", mcpHandler)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	addr := fmt.Sprintf("%s:%d", host, port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
