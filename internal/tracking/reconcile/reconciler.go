// Package reconcile decides, for every pending transaction, whether it is
// due for a receipt check, performs the check, and applies the outcome.
//
// A transaction moves through three conceptual states, derived from its
// record rather than materialized: unchecked (never queried), awaiting
// recheck (queried, no receipt yet), and confirmed (receipt attached,
// terminal). Ticks are triggered by block-height updates and store
// changes; each tick re-derives due-ness from data, so a failed query
// needs no retry bookkeeping — the record simply stays due.
package reconcile

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/propulsorfi/txtracker/internal/core/domain"
	"github.com/propulsorfi/txtracker/internal/core/session"
	"github.com/propulsorfi/txtracker/internal/infra/chain"
	"github.com/propulsorfi/txtracker/internal/tracking/blocks"
	"github.com/propulsorfi/txtracker/internal/tracking/metrics"
	"github.com/propulsorfi/txtracker/internal/tracking/notify"
	"github.com/propulsorfi/txtracker/internal/tracking/store"
)

// maxInflightChecks caps concurrent receipt queries per tick.
const maxInflightChecks = 8

// HeightSource provides the externally visible block height per network.
// Satisfied by blocks.Tracker.
type HeightSource interface {
	Latest(chainID domain.ChainID) (uint64, bool)
	Updates() (<-chan blocks.Height, func())
}

// Reconciler sweeps pending transactions on the active network.
type Reconciler struct {
	store    *store.Store
	clients  map[domain.ChainID]chain.Client
	session  *session.Session
	blocks   HeightSource
	notifier notify.Notifier
	policy   Policy
	now      func() time.Time
	log      *slog.Logger
}

// New creates a reconciler.
func New(
	txStore *store.Store,
	clients map[domain.ChainID]chain.Client,
	sess *session.Session,
	tracker HeightSource,
	notifier notify.Notifier,
	policy Policy,
) *Reconciler {
	return &Reconciler{
		store:    txStore,
		clients:  clients,
		session:  sess,
		blocks:   tracker,
		notifier: notifier,
		policy:   policy,
		now:      time.Now,
		log:      slog.Default(),
	}
}

// SetClock overrides the time source. Tests only.
func (r *Reconciler) SetClock(now func() time.Time) {
	r.now = now
}

// Run ticks on every block-height update and every store change until ctx
// is done.
func (r *Reconciler) Run(ctx context.Context) error {
	heights, cancelHeights := r.blocks.Updates()
	defer cancelHeights()
	changes, cancelChanges := r.store.Changes()
	defer cancelChanges()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-heights:
			r.Tick(ctx)
		case <-changes:
			r.Tick(ctx)
		}
	}
}

// Tick runs one reconciliation sweep. The active network is read fresh so
// a network switch between ticks can never mix transactions across
// networks.
func (r *Reconciler) Tick(ctx context.Context) {
	snap := r.session.Snapshot()
	if snap.ChainID == 0 {
		return
	}
	client, ok := r.clients[snap.ChainID]
	if !ok {
		return
	}
	lastBlockNumber, ok := r.blocks.Latest(snap.ChainID)
	if !ok {
		return
	}

	now := r.now()
	var due []*domain.TransactionRecord
	for _, tx := range r.store.Pending(snap.ChainID) {
		if r.policy.ShouldCheck(now, lastBlockNumber, tx) {
			due = append(due, tx)
		}
	}
	if len(due) == 0 {
		return
	}

	// Each check is independent; no ordering between hashes. Completion
	// handlers apply their own store mutation.
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(maxInflightChecks)
	for _, tx := range due {
		group.Go(func() error {
			r.check(groupCtx, client, snap.ChainID, tx, lastBlockNumber)
			return nil
		})
	}
	_ = group.Wait()
}

// check queries one receipt and applies the outcome. A transport failure
// leaves the record untouched so it stays due on the next tick; that is
// the whole retry mechanism.
func (r *Reconciler) check(ctx context.Context, client chain.Client, chainID domain.ChainID, tx *domain.TransactionRecord, lastBlockNumber uint64) {
	metrics.ReceiptChecks.WithLabelValues(chainID.Name()).Inc()

	receipt, err := client.TransactionReceipt(ctx, tx.Hash)
	if err != nil {
		metrics.ReceiptCheckErrors.WithLabelValues(chainID.Name()).Inc()
		r.log.Error("Failed to check transaction receipt", "chain", chainID.Name(), "hash", tx.Hash, "error", err)
		return
	}

	if receipt != nil {
		// Receipt presence is what makes the record terminal; a reverted
		// status still finalizes.
		if !r.store.Finalize(ctx, chainID, tx.Hash, receipt) {
			// Lost the race to a concurrent check; that one notified.
			return
		}
		r.notifier.Success(ctx, chainID, tx.Hash, tx.Subject)
		r.log.Info("Transaction finalized",
			"chain", chainID.Name(),
			"hash", tx.Hash,
			"block", receipt.BlockNumber,
			"status", receipt.Status,
		)
		return
	}

	r.store.MarkChecked(ctx, chainID, tx.Hash, lastBlockNumber)
}
