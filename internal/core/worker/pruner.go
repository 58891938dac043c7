// Package worker holds background maintenance loops.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/propulsorfi/txtracker/internal/core/domain"
	"github.com/propulsorfi/txtracker/internal/infra/storage"
)

// Pruner deletes finalized transaction records past the retention period.
// Pending records are never touched regardless of age.
type Pruner struct {
	retention time.Duration
	repo      storage.TransactionRepository
	networks  []domain.ChainID
	log       *slog.Logger
}

// NewPruner creates a pruner over the given networks. A zero retention
// disables pruning entirely.
func NewPruner(retention time.Duration, repo storage.TransactionRepository, networks []domain.ChainID) *Pruner {
	return &Pruner{
		retention: retention,
		repo:      repo,
		networks:  networks,
		log:       slog.Default(),
	}
}

// Run prunes on a fixed cadence until ctx is done.
func (p *Pruner) Run(ctx context.Context) {
	if p.retention <= 0 {
		return
	}

	// Check at 10% of the retention period, clamped to [1m, 1h].
	interval := min(p.retention/10, time.Hour)
	interval = max(interval, time.Minute)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.prune(ctx)
		}
	}
}

func (p *Pruner) prune(ctx context.Context) {
	cutoff := time.Now().Add(-p.retention)
	for _, chainID := range p.networks {
		removed, err := p.repo.DeleteFinalizedBefore(ctx, chainID, cutoff)
		if err != nil {
			p.log.Warn("Failed to prune transactions", "chain", chainID.Name(), "error", err)
			continue
		}
		if removed > 0 {
			p.log.Info("Pruned finalized transactions", "chain", chainID.Name(), "count", removed)
		}
	}
}
