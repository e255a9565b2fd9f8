package matchmaker

import "context"

// Run drives the sweep and watchdog on the engine clock. Blocks until
// ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	sweepTicker := e.clock.NewTicker(e.cfg.SweepInterval)
	defer sweepTicker.Stop()

	watchdogTicker := e.clock.NewTicker(e.cfg.WatchdogInterval)
	defer watchdogTicker.Stop()

	e.logger.Info("matchmaker running",
		"sweep_interval", e.cfg.SweepInterval,
		"watchdog_interval", e.cfg.WatchdogInterval,
		"eligibility_delay", e.cfg.EligibilityDelay,
		"idle_timeout", e.cfg.IdleTimeout,
		"categories", e.categories,
	)

	for {
		select {
		case <-sweepTicker.C:
			e.sweepInBackground(ctx)
		case <-watchdogTicker.C:
			e.watchdogInBackground(ctx)
		case <-ctx.Done():
			return
		}
	}
}
