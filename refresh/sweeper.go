package refresh

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Sweeper periodically removes expired refresh tokens independent of
// rotation traffic.
type Sweeper struct {
	manager  *Manager
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper deletes expired tokens through manager every interval.
func NewSweeper(manager *Manager, interval time.Duration, logger *slog.Logger) (*Sweeper, error) {
	if manager == nil {
		return nil, errors.New("refresh manager required")
	}
	if interval <= 0 {
		return nil, errors.New("invalid sweep interval")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Sweeper{manager: manager, interval: interval, logger: logger}, nil
}

// Run sweeps once per interval until ctx is cancelled. A failed pass is
// logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep pass and returns the number of rows removed.
func (s *Sweeper) RunOnce(ctx context.Context) int64 {
	n, err := s.manager.Sweep(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.ErrorContext(ctx, "refresh sweep failed", slog.Any("error", err))
		}
		return 0
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "refresh sweep removed expired tokens", slog.Int64("removed", n))
	}
	return n
}
