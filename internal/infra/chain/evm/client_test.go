package evm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/propulsorfi/txtracker/internal/core/domain"
)

// rpcServer serves canned JSON-RPC results keyed by method.
func rpcServer(t *testing.T, results map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		result, ok := results[req.Method]
		if !ok {
			result = `null`
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":` + result + `}`))
	}))
}

func newTestClient(endpoint string) *Client {
	return NewClient(domain.BSCTestnet, endpoint, time.Second, 5*time.Second)
}

func TestBlockNumber(t *testing.T) {
	server := rpcServer(t, map[string]string{"eth_blockNumber": `"0x10d4f"`})
	defer server.Close()

	got, err := newTestClient(server.URL).BlockNumber(context.Background())
	if err != nil {
		t.Fatalf("BlockNumber: %v", err)
	}
	if got != 0x10d4f {
		t.Errorf("expected %d, got %d", 0x10d4f, got)
	}
}

func TestTransactionReceiptNotMined(t *testing.T) {
	server := rpcServer(t, map[string]string{"eth_getTransactionReceipt": `null`})
	defer server.Close()

	receipt, err := newTestClient(server.URL).TransactionReceipt(context.Background(), "0xA")
	if err != nil {
		t.Fatalf("TransactionReceipt: %v", err)
	}
	if receipt != nil {
		t.Errorf("expected nil receipt for an unmined transaction, got %+v", receipt)
	}
}

func TestTransactionReceiptParsing(t *testing.T) {
	server := rpcServer(t, map[string]string{"eth_getTransactionReceipt": `{
		"blockHash": "0xbh",
		"blockNumber": "0x65",
		"contractAddress": null,
		"from": "0xfeed",
		"to": "0xpool",
		"status": "0x1",
		"transactionHash": "0xA",
		"transactionIndex": "0x2"
	}`})
	defer server.Close()

	receipt, err := newTestClient(server.URL).TransactionReceipt(context.Background(), "0xA")
	if err != nil {
		t.Fatalf("TransactionReceipt: %v", err)
	}
	want := &domain.Receipt{
		BlockHash:        "0xbh",
		BlockNumber:      101,
		From:             "0xfeed",
		To:               "0xpool",
		Status:           1,
		TransactionHash:  "0xA",
		TransactionIndex: 2,
	}
	if *receipt != *want {
		t.Errorf("receipt mismatch:\n got %+v\nwant %+v", receipt, want)
	}
}

func TestRPCError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"header not found"}}`))
	}))
	defer server.Close()

	if _, err := newTestClient(server.URL).BlockNumber(context.Background()); err == nil {
		t.Fatal("expected rpc error to surface")
	}
}

func TestHTTPStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	if _, err := newTestClient(server.URL).BlockNumber(context.Background()); err == nil {
		t.Fatal("expected http status error to surface")
	}
}

func TestParseHex(t *testing.T) {
	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{in: "0x0", want: 0},
		{in: "0x1", want: 1},
		{in: "0x10d4f", want: 68943},
		{in: "10", want: 16},
		{in: "", wantErr: true},
		{in: "0xzz", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseHex(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseHex(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseHex(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseHex(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
