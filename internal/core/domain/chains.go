package domain

import "fmt"

// ChainID identifies a blockchain network.
type ChainID uint64

const (
	BSCMainnet ChainID = 56
	BSCTestnet ChainID = 97
)

// ChainIDToName maps known chain ids to human-readable names.
var ChainIDToName = map[ChainID]string{
	BSCMainnet: "bsc-mainnet",
	BSCTestnet: "bsc-testnet",
}

// Name returns the human-readable name for the chain, or a numeric
// fallback when the chain is unknown.
func (c ChainID) Name() string {
	if name, ok := ChainIDToName[c]; ok {
		return name
	}
	return fmt.Sprintf("chain-%d", c)
}

func (c ChainID) String() string {
	return fmt.Sprintf("%d", c)
}

// explorerPrefixes holds the explorer subdomain per chain. Mainnet has none.
var explorerPrefixes = map[ChainID]string{
	BSCMainnet: "",
	BSCTestnet: "testnet.",
}

// ExplorerTxURL builds the block explorer link for a transaction hash.
// Unknown chains fall back to the mainnet explorer.
func ExplorerTxURL(chainID ChainID, hash string) string {
	prefix, ok := explorerPrefixes[chainID]
	if !ok {
		prefix = explorerPrefixes[BSCMainnet]
	}
	return fmt.Sprintf("https://%sbscscan.com/tx/%s", prefix, hash)
}
