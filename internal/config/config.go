package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ganot/voicematch/internal/matchmaker"
	"gopkg.in/yaml.v3"
)

// Transport modes.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Platform modes.
const (
	PlatformMemory  = "memory"
	PlatformWebhook = "webhook"
)

// ErrInvalid indicates a configuration that cannot be served.
var ErrInvalid = errors.New("invalid config")

// Config defines server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	DB        DBConfig        `yaml:"db"`
	Log       LogConfig       `yaml:"log"`
	Transport TransportConfig `yaml:"transport"`
	Matching  MatchingConfig  `yaml:"matching"`
	Platform  PlatformConfig  `yaml:"platform"`
	Auth      AuthConfig      `yaml:"auth"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Path  string `yaml:"path"`
}

type TransportConfig struct {
	Mode string `yaml:"mode"`
}

// MatchingConfig holds the matchmaker timings in whole seconds.
type MatchingConfig struct {
	EligibilitySeconds int      `yaml:"eligibility_seconds"`
	SweepSeconds       int      `yaml:"sweep_seconds"`
	IdleTimeoutSeconds int      `yaml:"idle_timeout_seconds"`
	WatchdogSeconds    int      `yaml:"watchdog_seconds"`
	Categories         []string `yaml:"categories"`
	ReclaimStranded    bool     `yaml:"reclaim_stranded"`
}

type PlatformConfig struct {
	Mode         string `yaml:"mode"`
	WebhookURL   string `yaml:"webhook_url"`
	WebhookToken string `yaml:"webhook_token"`
}

// AuthConfig controls bearer authentication of the HTTP transport.
// Tokens maps a bearer token to the community it may act for.
type AuthConfig struct {
	Enabled          bool              `yaml:"enabled"`
	Tokens           map[string]string `yaml:"tokens"`
	DefaultCommunity string            `yaml:"default_community"`
}

// Default returns the configuration used before any file or environment
// override is applied.
func Default() Config {
	mc := matchmaker.DefaultConfig()
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		DB: DBConfig{
			Path: "voicematch.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Transport: TransportConfig{
			Mode: TransportHTTP,
		},
		Matching: MatchingConfig{
			EligibilitySeconds: int(mc.EligibilityDelay / time.Second),
			SweepSeconds:       int(mc.SweepInterval / time.Second),
			IdleTimeoutSeconds: int(mc.IdleTimeout / time.Second),
			WatchdogSeconds:    int(mc.WatchdogInterval / time.Second),
		},
		Platform: PlatformConfig{
			Mode: PlatformMemory,
		},
		Auth: AuthConfig{
			DefaultCommunity: "default",
		},
	}
}

// Load reads configuration from an optional YAML file and environment variables.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("VOICEMATCH_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if host := os.Getenv("VOICEMATCH_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if err := envInt("VOICEMATCH_SERVER_PORT", &cfg.Server.Port); err != nil {
		return err
	}
	if dbPath := os.Getenv("VOICEMATCH_DB_PATH"); dbPath != "" {
		cfg.DB.Path = dbPath
	}
	if level := os.Getenv("VOICEMATCH_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if path := os.Getenv("VOICEMATCH_LOG_PATH"); path != "" {
		cfg.Log.Path = path
	}
	if mode := os.Getenv("VOICEMATCH_TRANSPORT_MODE"); mode != "" {
		cfg.Transport.Mode = mode
	}

	for name, dst := range map[string]*int{
		"VOICEMATCH_ELIGIBILITY_SECONDS":  &cfg.Matching.EligibilitySeconds,
		"VOICEMATCH_SWEEP_SECONDS":        &cfg.Matching.SweepSeconds,
		"VOICEMATCH_IDLE_TIMEOUT_SECONDS": &cfg.Matching.IdleTimeoutSeconds,
		"VOICEMATCH_WATCHDOG_SECONDS":     &cfg.Matching.WatchdogSeconds,
	} {
		if err := envInt(name, dst); err != nil {
			return err
		}
	}
	if raw, ok := os.LookupEnv("VOICEMATCH_CATEGORIES"); ok {
		cfg.Matching.Categories = splitList(raw)
	}
	if err := envBool("VOICEMATCH_RECLAIM_STRANDED", &cfg.Matching.ReclaimStranded); err != nil {
		return err
	}

	if mode := os.Getenv("VOICEMATCH_PLATFORM_MODE"); mode != "" {
		cfg.Platform.Mode = mode
	}
	if url := os.Getenv("VOICEMATCH_PLATFORM_WEBHOOK_URL"); url != "" {
		cfg.Platform.WebhookURL = url
	}
	if token := os.Getenv("VOICEMATCH_PLATFORM_WEBHOOK_TOKEN"); token != "" {
		cfg.Platform.WebhookToken = token
	}

	if err := envBool("VOICEMATCH_AUTH_ENABLED", &cfg.Auth.Enabled); err != nil {
		return err
	}
	// VOICEMATCH_AUTH_TOKENS is a comma-separated list of token=community pairs.
	if raw := os.Getenv("VOICEMATCH_AUTH_TOKENS"); raw != "" {
		tokens := make(map[string]string)
		for _, pair := range splitList(raw) {
			token, community, ok := strings.Cut(pair, "=")
			if !ok || token == "" || community == "" {
				return fmt.Errorf("invalid VOICEMATCH_AUTH_TOKENS entry %q", pair)
			}
			tokens[token] = community
		}
		cfg.Auth.Tokens = tokens
	}
	if community := os.Getenv("VOICEMATCH_DEFAULT_COMMUNITY"); community != "" {
		cfg.Auth.DefaultCommunity = community
	}
	return nil
}

func envInt(name string, dst *int) error {
	raw := os.Getenv(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*dst = v
	return nil
}

func envBool(name string, dst *bool) error {
	raw := os.Getenv(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*dst = v
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Matchmaker converts the matching section into engine configuration.
func (c Config) Matchmaker() matchmaker.Config {
	return matchmaker.Config{
		EligibilityDelay: time.Duration(c.Matching.EligibilitySeconds) * time.Second,
		SweepInterval:    time.Duration(c.Matching.SweepSeconds) * time.Second,
		IdleTimeout:      time.Duration(c.Matching.IdleTimeoutSeconds) * time.Second,
		WatchdogInterval: time.Duration(c.Matching.WatchdogSeconds) * time.Second,
		Categories:       c.Matching.Categories,
		ReclaimStranded:  c.Matching.ReclaimStranded,
	}
}

// Validate checks the sections that cannot be defaulted away.
func (c Config) Validate() error {
	switch c.Transport.Mode {
	case TransportStdio, TransportHTTP:
	default:
		return fmt.Errorf("%w: unknown transport mode %q", ErrInvalid, c.Transport.Mode)
	}
	switch c.Platform.Mode {
	case PlatformMemory:
	case PlatformWebhook:
		if c.Platform.WebhookURL == "" {
			return fmt.Errorf("%w: webhook platform requires a url", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown platform mode %q", ErrInvalid, c.Platform.Mode)
	}
	if c.Auth.Enabled && c.Transport.Mode == TransportHTTP && len(c.Auth.Tokens) == 0 {
		return fmt.Errorf("%w: auth enabled without tokens", ErrInvalid)
	}
	if c.Auth.DefaultCommunity == "" {
		return fmt.Errorf("%w: default community is required", ErrInvalid)
	}
	if err := c.Matchmaker().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}
