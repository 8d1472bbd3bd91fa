package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tamir303/Afekaton2024/internal/repository"
)

// EdgeSweeper periodically removes edges whose endpoints were deleted.
type EdgeSweeper struct {
	edges    repository.EdgeRepository
	interval time.Duration
	log      *zap.Logger
}

// NewEdgeSweeper constructs a sweeper; a non-positive interval defaults to one minute.
func NewEdgeSweeper(edges repository.EdgeRepository, interval time.Duration, log *zap.Logger) *EdgeSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &EdgeSweeper{edges: edges, interval: interval, log: orNop(log)}
}

// Run sweeps on every tick until ctx is done.
func (w *EdgeSweeper) Run(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := w.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				w.log.Warn("edge sweep failed", zap.Error(err))
			}
		}
	}
}

// SweepOnce prunes dangling edges and returns how many were removed.
func (w *EdgeSweeper) SweepOnce(ctx context.Context) (int64, error) {
	n, err := w.edges.PruneDangling(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		w.log.Info("pruned dangling edges", zap.Int64("count", n))
	}
	return n, nil
}
