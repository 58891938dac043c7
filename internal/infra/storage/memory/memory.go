// Package memory provides an in-process TransactionRepository used when no
// database is configured. Records survive only for the lifetime of the
// process.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/propulsorfi/txtracker/internal/core/domain"
)

// TxRepo implements storage.TransactionRepository in memory.
type TxRepo struct {
	mu  sync.RWMutex
	txs map[domain.ChainID]map[string]*domain.TransactionRecord
}

// NewTxRepo creates an empty in-memory repository.
func NewTxRepo() *TxRepo {
	return &TxRepo{txs: make(map[domain.ChainID]map[string]*domain.TransactionRecord)}
}

func (r *TxRepo) Save(ctx context.Context, chainID domain.ChainID, record *domain.TransactionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	network, ok := r.txs[chainID]
	if !ok {
		network = make(map[string]*domain.TransactionRecord)
		r.txs[chainID] = network
	}
	network[record.Hash] = record.Clone()
	return nil
}

func (r *TxRepo) LoadNetwork(ctx context.Context, chainID domain.ChainID) (map[string]*domain.TransactionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*domain.TransactionRecord, len(r.txs[chainID]))
	for hash, record := range r.txs[chainID] {
		out[hash] = record.Clone()
	}
	return out, nil
}

func (r *TxRepo) DeleteFinalizedBefore(ctx context.Context, chainID domain.ChainID, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed int64
	for hash, record := range r.txs[chainID] {
		if record.Receipt != nil && record.ConfirmedTime != nil && record.ConfirmedTime.Before(cutoff) {
			delete(r.txs[chainID], hash)
			removed++
		}
	}
	return removed, nil
}
