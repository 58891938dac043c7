// Package store holds the authoritative per-network mapping from
// transaction hash to record.
//
// The store is the only writer of transaction records. Records are created
// the moment a transaction is broadcast, mutated by the reconciler while
// pending, and never deleted here (pruning is an offline maintenance
// operation against the repository). Every mutation writes through to the
// persistence repository so pending transactions survive a restart.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/propulsorfi/txtracker/internal/core/domain"
	"github.com/propulsorfi/txtracker/internal/core/events"
	"github.com/propulsorfi/txtracker/internal/infra/storage"
	"github.com/propulsorfi/txtracker/internal/tracking/metrics"
)

// ErrDuplicateTransaction is returned when a hash is added twice for the
// same network. This is a caller bug, not a recoverable condition.
var ErrDuplicateTransaction = errors.New("attempted to add existing transaction")

// Change announces that a record was created or mutated.
type Change struct {
	ChainID domain.ChainID
	Hash    string
}

// Store owns all transaction records, partitioned by network.
type Store struct {
	mu   sync.RWMutex
	txs  map[domain.ChainID]map[string]*domain.TransactionRecord
	repo storage.TransactionRepository
	bus  *events.Bus[Change]
	now  func() time.Time
	log  *slog.Logger
}

// New creates a store backed by the given repository.
func New(repo storage.TransactionRepository) *Store {
	return &Store{
		txs:  make(map[domain.ChainID]map[string]*domain.TransactionRecord),
		repo: repo,
		bus:  events.NewBus[Change](),
		now:  time.Now,
		log:  slog.Default(),
	}
}

// SetClock overrides the time source. Tests only.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Changes subscribes to store mutations.
func (s *Store) Changes() (<-chan Change, func()) {
	return s.bus.Subscribe(16)
}

// Hydrate loads the persisted mapping for each network. Called once at
// process start, before any mutation.
func (s *Store) Hydrate(ctx context.Context, chainIDs []domain.ChainID) error {
	for _, chainID := range chainIDs {
		records, err := s.repo.LoadNetwork(ctx, chainID)
		if err != nil {
			return fmt.Errorf("hydrate chain %s: %w", chainID, err)
		}
		s.mu.Lock()
		s.txs[chainID] = records
		s.mu.Unlock()
		metrics.PendingTransactions.WithLabelValues(chainID.Name()).Set(float64(s.PendingCount(chainID)))
		s.log.Info("Hydrated transactions", "chain", chainID.Name(), "count", len(records))
	}
	return nil
}

// Add creates a record for a freshly broadcast transaction. The hash must
// not already exist for the network.
func (s *Store) Add(ctx context.Context, chainID domain.ChainID, hash, from string, subject domain.TxSubject, approval *domain.Approval) (*domain.TransactionRecord, error) {
	s.mu.Lock()
	network, ok := s.txs[chainID]
	if !ok {
		network = make(map[string]*domain.TransactionRecord)
		s.txs[chainID] = network
	}
	if _, exists := network[hash]; exists {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDuplicateTransaction, hash)
	}

	record := &domain.TransactionRecord{
		Hash:      hash,
		From:      from,
		AddedTime: s.now(),
		Subject:   subject,
		Approval:  approval,
	}
	network[hash] = record
	clone := record.Clone()
	s.mu.Unlock()

	s.persist(ctx, chainID, clone)
	metrics.TransactionsSubmitted.WithLabelValues(chainID.Name(), string(subject)).Inc()
	metrics.PendingTransactions.WithLabelValues(chainID.Name()).Inc()
	s.bus.Publish(Change{ChainID: chainID, Hash: hash})
	return clone, nil
}

// MarkChecked records that a receipt check at blockNumber came back empty.
// Absent hashes are a silent no-op: the record may legitimately be gone.
func (s *Store) MarkChecked(ctx context.Context, chainID domain.ChainID, hash string, blockNumber uint64) {
	s.mu.Lock()
	record, ok := s.txs[chainID][hash]
	if !ok {
		s.mu.Unlock()
		return
	}
	if blockNumber > record.LastCheckedBlock {
		record.LastCheckedBlock = blockNumber
	}
	clone := record.Clone()
	s.mu.Unlock()

	s.persist(ctx, chainID, clone)
	s.bus.Publish(Change{ChainID: chainID, Hash: hash})
}

// Finalize attaches the receipt and stamps the confirmation time, making
// the record terminal. Idempotent: an already-finalized record is left
// untouched. Absent hashes are a silent no-op. Returns whether this call
// transitioned the record to terminal, so callers can emit the success
// notification exactly once per hash.
func (s *Store) Finalize(ctx context.Context, chainID domain.ChainID, hash string, receipt *domain.Receipt) bool {
	s.mu.Lock()
	record, ok := s.txs[chainID][hash]
	if !ok || record.Receipt != nil {
		s.mu.Unlock()
		return false
	}
	confirmed := s.now()
	record.Receipt = receipt
	record.ConfirmedTime = &confirmed
	clone := record.Clone()
	s.mu.Unlock()

	s.persist(ctx, chainID, clone)
	metrics.TransactionsFinalized.WithLabelValues(chainID.Name(), string(clone.Subject)).Inc()
	metrics.PendingTransactions.WithLabelValues(chainID.Name()).Dec()
	s.bus.Publish(Change{ChainID: chainID, Hash: hash})
	return true
}

// Get returns a copy of one record, or nil when absent.
func (s *Store) Get(chainID domain.ChainID, hash string) *domain.TransactionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.txs[chainID][hash]
	if !ok {
		return nil
	}
	return record.Clone()
}

// Pending returns copies of all records without a receipt for the network,
// ordered by creation time. The slice reflects store contents at call
// time, not a long-lived snapshot.
func (s *Store) Pending(chainID domain.ChainID) []*domain.TransactionRecord {
	s.mu.RLock()
	out := make([]*domain.TransactionRecord, 0)
	for _, record := range s.txs[chainID] {
		if record.Pending() {
			out = append(out, record.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].AddedTime.Before(out[j].AddedTime) })
	return out
}

// PendingCount returns how many records await a receipt.
func (s *Store) PendingCount(chainID domain.ChainID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, record := range s.txs[chainID] {
		if record.Pending() {
			count++
		}
	}
	return count
}

// Recent returns copies of records added within the recency window,
// newest first.
func (s *Store) Recent(chainID domain.ChainID) []*domain.TransactionRecord {
	now := s.now()
	s.mu.RLock()
	out := make([]*domain.TransactionRecord, 0)
	for _, record := range s.txs[chainID] {
		if record.Recent(now) {
			out = append(out, record.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].AddedTime.After(out[j].AddedTime) })
	return out
}

// persist writes through to the repository. A failed write leaves the
// in-memory state authoritative for this session; it is logged, not
// propagated, so a flaky database cannot corrupt tracking.
func (s *Store) persist(ctx context.Context, chainID domain.ChainID, record *domain.TransactionRecord) {
	if err := s.repo.Save(ctx, chainID, record); err != nil {
		s.log.Warn("Failed to persist transaction", "chain", chainID.Name(), "hash", record.Hash, "error", err)
	}
}
