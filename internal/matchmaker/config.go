package matchmaker

import (
	"fmt"
	"time"

	"github.com/ganot/voicematch/internal/domain/queue"
)

// Config holds the matching and reclamation timings.
type Config struct {
	EligibilityDelay time.Duration
	SweepInterval    time.Duration
	IdleTimeout      time.Duration
	WatchdogInterval time.Duration
	// Categories are the two complementary labels for cross-category
	// pairing. Empty disables it.
	Categories []string
	// ReclaimStranded lets the watchdog reclaim sessions that were used
	// but never fully met and are now empty.
	ReclaimStranded bool
}

// DefaultConfig returns the timings the bot has always used.
func DefaultConfig() Config {
	return Config{
		EligibilityDelay: 60 * time.Second,
		SweepInterval:    10 * time.Second,
		IdleTimeout:      5 * time.Minute,
		WatchdogInterval: 30 * time.Second,
	}
}

// Validate checks intervals and category labels.
func (c Config) Validate() error {
	if c.EligibilityDelay < 0 {
		return fmt.Errorf("%w: eligibility delay must not be negative", ErrInvalidConfig)
	}
	if c.SweepInterval <= 0 || c.WatchdogInterval <= 0 {
		return fmt.Errorf("%w: tick intervals must be positive", ErrInvalidConfig)
	}
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("%w: idle timeout must be positive", ErrInvalidConfig)
	}
	if len(c.Categories) != 0 && len(c.Categories) != 2 {
		return fmt.Errorf("%w: cross-category pairing needs exactly two categories, got %d", ErrInvalidConfig, len(c.Categories))
	}
	seen := make(map[queue.Bucket]bool, len(c.Categories))
	for _, label := range c.Categories {
		b := queue.Normalize(label)
		switch {
		case b == "":
			return fmt.Errorf("%w: empty category label", ErrInvalidConfig)
		case b == queue.General:
			return fmt.Errorf("%w: category %q is reserved", ErrInvalidConfig, label)
		case seen[b]:
			return fmt.Errorf("%w: duplicate category %q", ErrInvalidConfig, label)
		}
		seen[b] = true
	}
	return nil
}

func (c Config) buckets() []queue.Bucket {
	out := make([]queue.Bucket, 0, len(c.Categories))
	for _, label := range c.Categories {
		out = append(out, queue.Normalize(label))
	}
	return out
}
