// Package submit bridges "a transaction has just been broadcast" and the
// store.
package submit

import (
	"context"
	"errors"

	"github.com/propulsorfi/txtracker/internal/core/domain"
	"github.com/propulsorfi/txtracker/internal/core/session"
	"github.com/propulsorfi/txtracker/internal/tracking/store"
)

// ErrMissingHash is returned when a broadcast result carries no hash.
// Broadcast responses always include one; absence is a programming or
// environment error, not a user-facing condition.
var ErrMissingHash = errors.New("no transaction hash found")

// Broadcast is the minimal shape of a just-broadcast transaction.
type Broadcast struct {
	Hash string
}

// Options carries optional submission metadata.
type Options struct {
	Approval *domain.Approval
}

// Adder records broadcast transactions so the reconciler can track them.
type Adder struct {
	store   *store.Store
	session *session.Session
}

// NewAdder creates a submission helper bound to the session.
func NewAdder(txStore *store.Store, sess *session.Session) *Adder {
	return &Adder{store: txStore, session: sess}
}

// Add records a broadcast transaction the moment its hash is known, before
// confirmation. Without an active account and network the call is a no-op:
// submission is only meaningful in an authenticated, network-bound
// context.
func (a *Adder) Add(ctx context.Context, broadcast Broadcast, subject domain.TxSubject, opts Options) (*domain.TransactionRecord, error) {
	snap := a.session.Snapshot()
	if snap.Account == "" || snap.ChainID == 0 {
		return nil, nil
	}
	if broadcast.Hash == "" {
		return nil, ErrMissingHash
	}
	return a.store.Add(ctx, snap.ChainID, broadcast.Hash, snap.Account, subject, opts.Approval)
}
