// ABOUTME: Periodic idle-memory sweeper with explicit Start/Stop lifecycle
// ABOUTME: A failed pass is logged and the loop keeps running

package bot

import (
	"context"
	"log/slog"
	"time"
)

// Pruner is the slice of the history store the sweeper needs.
type Pruner interface {
	PruneInactive(ctx context.Context, idleTTL time.Duration) (int, error)
}

// Sweeper periodically drops the memory of channels idle longer than the
// TTL. A zero TTL disables sweeping entirely.
type Sweeper struct {
	pruner   Pruner
	ttl      time.Duration
	interval time.Duration
	logger   *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper creates a sweeper. Start must be called to begin sweeping.
func NewSweeper(pruner Pruner, ttl, interval time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		pruner:   pruner,
		ttl:      ttl,
		interval: interval,
		logger:   logger.With("component", "sweeper"),
	}
}

// Start launches the sweep loop. It is a no-op when the TTL is zero or
// the sweeper is already running.
func (s *Sweeper) Start() {
	if s.ttl <= 0 {
		s.logger.Info("idle TTL is zero, sweeper disabled")
		return
	}
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(ctx)
	s.logger.Info("sweeper started", "ttl", s.ttl, "interval", s.interval)
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	pruned, err := s.pruner.PruneInactive(ctx, s.ttl)
	if err != nil {
		s.logger.Error("sweep failed", "error", err)
		return
	}
	if pruned > 0 {
		s.logger.Info("pruned idle channels", "channels", pruned)
	}
}

// Stop halts the sweep loop and waits for the in-flight pass to finish.
// Safe to call when the sweeper never started.
func (s *Sweeper) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.logger.Info("sweeper stopped")
}
