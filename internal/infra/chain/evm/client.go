// Package evm implements chain.Client against an EVM JSON-RPC endpoint.
package evm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/propulsorfi/txtracker/internal/core/domain"
	"github.com/propulsorfi/txtracker/internal/core/events"
)

// Client talks JSON-RPC 2.0 over HTTP to a single endpoint.
//
// Head notifications are produced by an internal poll loop (started with
// Run) and fanned out to subscribers; HTTP endpoints have no push channel,
// so polling stands in for the provider's block event stream.
type Client struct {
	chainID      domain.ChainID
	endpoint     string
	pollInterval time.Duration
	httpClient   *http.Client
	heads        *events.Bus[uint64]
	log          *slog.Logger
}

// NewClient creates a client for one network endpoint.
func NewClient(chainID domain.ChainID, endpoint string, pollInterval, timeout time.Duration) *Client {
	return &Client{
		chainID:      chainID,
		endpoint:     endpoint,
		pollInterval: pollInterval,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		heads: events.NewBus[uint64](),
		log:   slog.Default().With("chain", chainID.Name()),
	}
}

// ChainID returns the network this client talks to.
func (c *Client) ChainID() domain.ChainID {
	return c.chainID
}

// Run polls the chain head at the configured interval and publishes each
// newly observed height to subscribers. It returns when ctx is done.
func (c *Client) Run(ctx context.Context) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	var last uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			height, err := c.BlockNumber(ctx)
			if err != nil {
				c.log.Debug("head poll failed", "error", err)
				continue
			}
			if height == last {
				continue
			}
			last = height
			c.heads.Publish(height)
		}
	}
}

// SubscribeHeads delivers observed chain heads until unsubscribed.
func (c *Client) SubscribeHeads(buffer int) (<-chan uint64, func()) {
	return c.heads.Subscribe(buffer)
}

// BlockNumber returns the current chain head via eth_blockNumber.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	result, err := c.call(ctx, "eth_blockNumber", nil)
	if err != nil {
		return 0, fmt.Errorf("eth_blockNumber failed: %w", err)
	}

	var blockHex string
	if err := json.Unmarshal(result, &blockHex); err != nil {
		return 0, fmt.Errorf("invalid block number response: %w", err)
	}
	return parseHex(blockHex)
}

// rpcReceipt mirrors the eth_getTransactionReceipt result shape.
type rpcReceipt struct {
	BlockHash        string  `json:"blockHash"`
	BlockNumber      string  `json:"blockNumber"`
	ContractAddress  *string `json:"contractAddress"`
	From             string  `json:"from"`
	To               *string `json:"to"`
	Status           string  `json:"status"`
	TransactionHash  string  `json:"transactionHash"`
	TransactionIndex string  `json:"transactionIndex"`
}

// TransactionReceipt fetches the receipt for a transaction hash.
// Returns (nil, nil) when the transaction is not yet mined.
func (c *Client) TransactionReceipt(ctx context.Context, hash string) (*domain.Receipt, error) {
	result, err := c.call(ctx, "eth_getTransactionReceipt", []any{hash})
	if err != nil {
		return nil, fmt.Errorf("eth_getTransactionReceipt failed: %w", err)
	}
	if len(result) == 0 || string(result) == "null" {
		return nil, nil
	}

	var raw rpcReceipt
	if err := json.Unmarshal(result, &raw); err != nil {
		return nil, fmt.Errorf("invalid receipt response: %w", err)
	}

	blockNumber, err := parseHex(raw.BlockNumber)
	if err != nil {
		return nil, fmt.Errorf("invalid receipt block number: %w", err)
	}
	status, err := parseHex(raw.Status)
	if err != nil {
		return nil, fmt.Errorf("invalid receipt status: %w", err)
	}
	txIndex, err := parseHex(raw.TransactionIndex)
	if err != nil {
		return nil, fmt.Errorf("invalid receipt transaction index: %w", err)
	}

	receipt := &domain.Receipt{
		BlockHash:        raw.BlockHash,
		BlockNumber:      blockNumber,
		From:             raw.From,
		Status:           status,
		TransactionHash:  raw.TransactionHash,
		TransactionIndex: txIndex,
	}
	if raw.ContractAddress != nil {
		receipt.ContractAddress = *raw.ContractAddress
	}
	if raw.To != nil {
		receipt.To = *raw.To
	}
	return receipt, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      int    `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	if params == nil {
		params = []any{}
	}
	jsonData, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      1,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, string(body))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	return rpcResp.Result, nil
}
