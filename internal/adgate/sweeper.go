package adgate

import (
	"context"
	"time"
)

// SweeperConfig controls the idle-session sweeper.
type SweeperConfig struct {
	Interval time.Duration
}

// Sweeper periodically drops idle gate sessions from a Registry.
type Sweeper struct {
	Registry *Registry
	Conf     SweeperConfig
}

// Run starts the sweep loop and blocks until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	interval := s.Conf.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.Registry.logger.Info().
		Str("event", "gate.sweeper_started").
		Dur("interval", interval).
		Dur("ttl", s.Registry.ttl).
		Msg("gate session sweeper started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce()
		}
	}
}

// SweepOnce performs a single sweep and returns the number of removed sessions.
func (s *Sweeper) SweepOnce() int {
	return s.Registry.Sweep()
}
