package blocks

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/propulsorfi/txtracker/internal/core/domain"
	"github.com/propulsorfi/txtracker/internal/core/session"
	"github.com/propulsorfi/txtracker/internal/infra/chain"
)

// scriptedClient hands out a fixed initial block number and exposes the
// head channel so tests can push observations.
type scriptedClient struct {
	mu      sync.Mutex
	chainID domain.ChainID
	initial uint64
	heads   chan uint64
}

func newScriptedClient(chainID domain.ChainID, initial uint64) *scriptedClient {
	return &scriptedClient{chainID: chainID, initial: initial, heads: make(chan uint64, 16)}
}

func (c *scriptedClient) BlockNumber(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initial, nil
}

func (c *scriptedClient) TransactionReceipt(ctx context.Context, hash string) (*domain.Receipt, error) {
	return nil, nil
}

func (c *scriptedClient) SubscribeHeads(buffer int) (<-chan uint64, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.heads = make(chan uint64, buffer)
	ch := c.heads
	return ch, func() {}
}

func (c *scriptedClient) push(height uint64) {
	c.mu.Lock()
	ch := c.heads
	c.mu.Unlock()
	ch <- height
}

func (c *scriptedClient) ChainID() domain.ChainID { return c.chainID }

// waitForHeight polls Latest until the expected value arrives or the
// deadline passes. The tracker publishes asynchronously after the
// debounce window.
func waitForHeight(t *testing.T, tracker *Tracker, chainID domain.ChainID, want uint64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got, ok := tracker.Latest(chainID); ok && got == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	got, ok := tracker.Latest(chainID)
	t.Fatalf("timed out waiting for height %d on %s, have %d (known=%v)", want, chainID.Name(), got, ok)
}

func TestTrackerActivationAndMonotonicMerge(t *testing.T) {
	sess := session.New()
	client := newScriptedClient(domain.BSCTestnet, 100)
	tracker := New(sess, map[domain.ChainID]chain.Client{domain.BSCTestnet: client}, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tracker.Run(ctx)

	sess.SetNetwork(domain.BSCTestnet)
	waitForHeight(t, tracker, domain.BSCTestnet, 100)

	// An out-of-order lower head must not move the height backwards.
	client.push(105)
	waitForHeight(t, tracker, domain.BSCTestnet, 105)
	client.push(103)
	time.Sleep(50 * time.Millisecond)
	if got, _ := tracker.Latest(domain.BSCTestnet); got != 105 {
		t.Errorf("expected height to stay at 105, got %d", got)
	}

	client.push(110)
	waitForHeight(t, tracker, domain.BSCTestnet, 110)
}

func TestTrackerDebounceCollapsesBursts(t *testing.T) {
	sess := session.New()
	client := newScriptedClient(domain.BSCTestnet, 100)
	tracker := New(sess, map[domain.ChainID]chain.Client{domain.BSCTestnet: client}, 30*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tracker.Run(ctx)

	updates, unsub := tracker.Updates()
	defer unsub()

	sess.SetNetwork(domain.BSCTestnet)
	waitForHeight(t, tracker, domain.BSCTestnet, 100)

	// A burst inside one debounce window must yield a single update with
	// the final value. The initial activation publish (100) may still be
	// in flight, so skip it.
	client.push(101)
	client.push(102)
	client.push(103)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case update := <-updates:
			if update.Number == 100 {
				continue
			}
			if update.Number != 103 {
				t.Errorf("expected collapsed update 103, got %d", update.Number)
			}
		case <-deadline:
			t.Fatal("timed out waiting for debounced update")
		}
		break
	}

	select {
	case update := <-updates:
		t.Errorf("expected burst to collapse to one update, got extra %d", update.Number)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestTrackerVisibilityGating(t *testing.T) {
	sess := session.New()
	client := newScriptedClient(domain.BSCTestnet, 100)
	tracker := New(sess, map[domain.ChainID]chain.Client{domain.BSCTestnet: client}, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tracker.Run(ctx)

	sess.SetNetwork(domain.BSCTestnet)
	waitForHeight(t, tracker, domain.BSCTestnet, 100)

	sess.SetVisible(false)
	time.Sleep(50 * time.Millisecond)

	// Heads pushed while hidden go to the unsubscribed channel; the
	// published height must not move.
	client.push(200)
	time.Sleep(100 * time.Millisecond)
	if got, _ := tracker.Latest(domain.BSCTestnet); got != 100 {
		t.Errorf("expected height frozen at 100 while hidden, got %d", got)
	}

	// Becoming visible re-activates and re-queries.
	client.mu.Lock()
	client.initial = 205
	client.mu.Unlock()
	sess.SetVisible(true)
	waitForHeight(t, tracker, domain.BSCTestnet, 205)
}

func TestTrackerNetworkSwitchResetsState(t *testing.T) {
	sess := session.New()
	testnet := newScriptedClient(domain.BSCTestnet, 500)
	mainnet := newScriptedClient(domain.BSCMainnet, 40)
	tracker := New(sess, map[domain.ChainID]chain.Client{
		domain.BSCTestnet: testnet,
		domain.BSCMainnet: mainnet,
	}, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tracker.Run(ctx)

	sess.SetNetwork(domain.BSCTestnet)
	waitForHeight(t, tracker, domain.BSCTestnet, 500)

	// Switching networks must accept the new network's lower height: the
	// merge state resets, it does not carry the old maximum across.
	sess.SetNetwork(domain.BSCMainnet)
	waitForHeight(t, tracker, domain.BSCMainnet, 40)

	// The old network's last published height remains visible.
	if got, ok := tracker.Latest(domain.BSCTestnet); !ok || got != 500 {
		t.Errorf("expected testnet height 500 retained, got %d (known=%v)", got, ok)
	}
}

func TestObserveDiscardsStaleNetwork(t *testing.T) {
	sess := session.New()
	tracker := New(sess, nil, 10*time.Millisecond)

	tracker.mu.Lock()
	tracker.state = workingState{chainID: domain.BSCTestnet, number: 100, known: true}
	tracker.mu.Unlock()

	if tracker.observe(Height{ChainID: domain.BSCMainnet, Number: 999}) {
		t.Error("expected observation for inactive network to be discarded")
	}
	if tracker.observe(Height{ChainID: domain.BSCTestnet, Number: 99}) {
		t.Error("expected lower observation to be discarded")
	}
	if !tracker.observe(Height{ChainID: domain.BSCTestnet, Number: 101}) {
		t.Error("expected higher observation to merge")
	}
}
