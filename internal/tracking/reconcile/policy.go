package reconcile

import (
	"time"

	"github.com/propulsorfi/txtracker/internal/core/domain"
)

// Policy holds the tiered backoff thresholds deciding when a pending
// transaction is due for another receipt check. The tiers bound query
// volume for long-pending transactions while keeping fresh ones responsive.
//
// The threshold values are heuristics the product shipped with, kept
// configurable rather than re-derived: changing them changes observable
// polling behavior.
type Policy struct {
	// SlowPendingAge is the pending age past which checks slow to every
	// SlowPendingBlocks+1 blocks.
	SlowPendingAge    time.Duration
	SlowPendingBlocks uint64

	// LongPendingAge is the pending age past which checks slow further to
	// every LongPendingBlocks+1 blocks.
	LongPendingAge    time.Duration
	LongPendingBlocks uint64
}

// DefaultPolicy returns the shipped thresholds: every block for the first
// five minutes, every ~3 blocks after five minutes, every ~10 blocks after
// an hour.
func DefaultPolicy() Policy {
	return Policy{
		SlowPendingAge:    5 * time.Minute,
		SlowPendingBlocks: 2,
		LongPendingAge:    time.Hour,
		LongPendingBlocks: 9,
	}
}

// ShouldCheck reports whether tx is due for a receipt check at the given
// chain head.
func (p Policy) ShouldCheck(now time.Time, lastBlockNumber uint64, tx *domain.TransactionRecord) bool {
	if tx.Receipt != nil {
		return false
	}
	if tx.LastCheckedBlock == 0 {
		return true
	}
	if lastBlockNumber <= tx.LastCheckedBlock {
		// No new block since the last check.
		return false
	}
	blocksSinceCheck := lastBlockNumber - tx.LastCheckedBlock

	pending := now.Sub(tx.AddedTime)
	switch {
	case pending > p.LongPendingAge:
		return blocksSinceCheck > p.LongPendingBlocks
	case pending > p.SlowPendingAge:
		return blocksSinceCheck > p.SlowPendingBlocks
	default:
		return true
	}
}
