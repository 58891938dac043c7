package chain

import (
	"context"

	"github.com/propulsorfi/txtracker/internal/core/domain"
)

// Client is the chain-access boundary the tracker core depends on.
//
// TransactionReceipt returns (nil, nil) when the transaction is not yet
// mined; a non-nil error means the query itself failed and should be
// retried on a later tick.
type Client interface {
	// BlockNumber returns the current chain head.
	BlockNumber(ctx context.Context) (uint64, error)

	// TransactionReceipt fetches the receipt for a transaction hash.
	TransactionReceipt(ctx context.Context, hash string) (*domain.Receipt, error)

	// SubscribeHeads delivers observed chain heads until unsubscribed.
	SubscribeHeads(buffer int) (<-chan uint64, func())

	// ChainID returns the network this client talks to.
	ChainID() domain.ChainID
}
