package storage

import (
	"context"
	"time"

	"github.com/propulsorfi/txtracker/internal/core/domain"
)

// TransactionRepository persists the per-network transaction mapping.
// Every store mutation writes through; the full mapping for a network is
// loaded once at process start.
type TransactionRepository interface {
	// Save upserts a single record under its network.
	Save(ctx context.Context, chainID domain.ChainID, record *domain.TransactionRecord) error

	// LoadNetwork returns the full hash-to-record mapping for a network.
	LoadNetwork(ctx context.Context, chainID domain.ChainID) (map[string]*domain.TransactionRecord, error)

	// DeleteFinalizedBefore removes finalized records confirmed before the
	// cutoff and returns how many were removed. Pending records are never
	// touched.
	DeleteFinalizedBefore(ctx context.Context, chainID domain.ChainID, cutoff time.Time) (int64, error)
}
