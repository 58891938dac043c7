package reconcile

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/propulsorfi/txtracker/internal/core/domain"
	"github.com/propulsorfi/txtracker/internal/core/session"
	"github.com/propulsorfi/txtracker/internal/infra/chain"
	"github.com/propulsorfi/txtracker/internal/infra/storage/memory"
	"github.com/propulsorfi/txtracker/internal/tracking/blocks"
	"github.com/propulsorfi/txtracker/internal/tracking/store"
)

// fakeClient serves canned receipts and counts queries.
type fakeClient struct {
	mu       sync.Mutex
	chainID  domain.ChainID
	receipts map[string]*domain.Receipt
	queries  int
	fail     bool
}

func (f *fakeClient) BlockNumber(ctx context.Context) (uint64, error) { return 0, nil }

func (f *fakeClient) TransactionReceipt(ctx context.Context, hash string) (*domain.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	if f.fail {
		return nil, context.DeadlineExceeded
	}
	return f.receipts[hash], nil
}

func (f *fakeClient) SubscribeHeads(buffer int) (<-chan uint64, func()) {
	ch := make(chan uint64)
	return ch, func() { close(ch) }
}

func (f *fakeClient) ChainID() domain.ChainID { return f.chainID }

func (f *fakeClient) queryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries
}

// fakeHeights is a static HeightSource.
type fakeHeights struct {
	mu      sync.Mutex
	heights map[domain.ChainID]uint64
}

func (f *fakeHeights) Latest(chainID domain.ChainID) (uint64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.heights[chainID]
	return h, ok
}

func (f *fakeHeights) Updates() (<-chan blocks.Height, func()) {
	ch := make(chan blocks.Height)
	return ch, func() { close(ch) }
}

func (f *fakeHeights) set(chainID domain.ChainID, height uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heights[chainID] = height
}

// recordingNotifier captures success notifications.
type recordingNotifier struct {
	mu     sync.Mutex
	hashes []string
}

func (n *recordingNotifier) Success(ctx context.Context, chainID domain.ChainID, hash string, subject domain.TxSubject) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.hashes = append(n.hashes, hash)
}

func (n *recordingNotifier) notified() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.hashes...)
}

type fixture struct {
	store      *store.Store
	client     *fakeClient
	heights    *fakeHeights
	notifier   *recordingNotifier
	reconciler *Reconciler
	now        time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sess := session.New()
	sess.SetAccount("0xfeed")
	sess.SetNetwork(domain.BSCTestnet)

	txStore := store.New(memory.NewTxRepo())
	client := &fakeClient{chainID: domain.BSCTestnet, receipts: make(map[string]*domain.Receipt)}
	heights := &fakeHeights{heights: make(map[domain.ChainID]uint64)}
	notifier := &recordingNotifier{}

	reconciler := New(
		txStore,
		map[domain.ChainID]chain.Client{domain.BSCTestnet: client},
		sess,
		heights,
		notifier,
		DefaultPolicy(),
	)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	txStore.SetClock(func() time.Time { return now })
	reconciler.SetClock(func() time.Time { return now })

	return &fixture{
		store:      txStore,
		client:     client,
		heights:    heights,
		notifier:   notifier,
		reconciler: reconciler,
		now:        now,
	}
}

func TestTickFirstCheckMarksChecked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.store.Add(ctx, domain.BSCTestnet, "0xA", "0xfeed", domain.SubjectDeposit, nil); err != nil {
		t.Fatalf("add: %v", err)
	}
	pending := f.store.Pending(domain.BSCTestnet)
	if len(pending) != 1 || pending[0].Hash != "0xA" {
		t.Fatalf("expected 0xA pending, got %v", pending)
	}
	if pending[0].LastCheckedBlock != 0 {
		t.Fatalf("expected unchecked record, got last checked %d", pending[0].LastCheckedBlock)
	}

	f.heights.set(domain.BSCTestnet, 100)
	f.reconciler.Tick(ctx)

	if got := f.client.queryCount(); got != 1 {
		t.Fatalf("expected 1 receipt query, got %d", got)
	}
	if got := f.store.Get(domain.BSCTestnet, "0xA").LastCheckedBlock; got != 100 {
		t.Errorf("expected last checked block 100, got %d", got)
	}
}

func TestTickNoNewBlockIssuesNoQuery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.store.Add(ctx, domain.BSCTestnet, "0xA", "0xfeed", domain.SubjectDeposit, nil)
	f.heights.set(domain.BSCTestnet, 100)
	f.reconciler.Tick(ctx)

	// Same height again: blocksSinceCheck is 0, not due.
	f.reconciler.Tick(ctx)
	if got := f.client.queryCount(); got != 1 {
		t.Errorf("expected no second query at the same height, got %d queries", got)
	}
}

func TestTickFinalizesAndNotifiesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.store.Add(ctx, domain.BSCTestnet, "0xA", "0xfeed", domain.SubjectDeposit, nil)
	f.heights.set(domain.BSCTestnet, 100)
	f.reconciler.Tick(ctx)

	receipt := &domain.Receipt{
		BlockHash:       "0xbh",
		BlockNumber:     101,
		From:            "0xfeed",
		To:              "0xpool",
		Status:          1,
		TransactionHash: "0xA",
	}
	f.client.mu.Lock()
	f.client.receipts["0xA"] = receipt
	f.client.mu.Unlock()

	f.heights.set(domain.BSCTestnet, 101)
	f.reconciler.Tick(ctx)

	record := f.store.Get(domain.BSCTestnet, "0xA")
	if record.Receipt == nil {
		t.Fatal("expected record to be finalized")
	}
	if record.ConfirmedTime == nil || !record.ConfirmedTime.Equal(f.now) {
		t.Errorf("expected confirmed time %v, got %v", f.now, record.ConfirmedTime)
	}
	if pending := f.store.Pending(domain.BSCTestnet); len(pending) != 0 {
		t.Errorf("expected no pending transactions, got %d", len(pending))
	}
	if notified := f.notifier.notified(); len(notified) != 1 || notified[0] != "0xA" {
		t.Errorf("expected exactly one notification for 0xA, got %v", notified)
	}

	// Further ticks must not re-check or re-notify a terminal record.
	before := f.client.queryCount()
	f.heights.set(domain.BSCTestnet, 110)
	f.reconciler.Tick(ctx)
	if got := f.client.queryCount(); got != before {
		t.Errorf("expected no queries for finalized record, got %d extra", got-before)
	}
	if notified := f.notifier.notified(); len(notified) != 1 {
		t.Errorf("expected still one notification, got %v", notified)
	}
}

func TestTickLongPendingBackoff(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.store.SetClock(func() time.Time { return f.now.Add(-70 * time.Minute) })
	f.store.Add(ctx, domain.BSCTestnet, "0xOLD", "0xfeed", domain.SubjectWithdraw, nil)
	f.store.MarkChecked(ctx, domain.BSCTestnet, "0xOLD", 500)
	f.store.SetClock(func() time.Time { return f.now })

	f.heights.set(domain.BSCTestnet, 508)
	f.reconciler.Tick(ctx)
	if got := f.client.queryCount(); got != 0 {
		t.Errorf("expected no query 8 blocks after check for a 70-minute-old transaction, got %d", got)
	}

	f.heights.set(domain.BSCTestnet, 510)
	f.reconciler.Tick(ctx)
	if got := f.client.queryCount(); got != 1 {
		t.Errorf("expected a query 10 blocks after check, got %d", got)
	}
}

func TestTickQueryFailureLeavesRecordDue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.store.Add(ctx, domain.BSCTestnet, "0xA", "0xfeed", domain.SubjectDeposit, nil)
	f.heights.set(domain.BSCTestnet, 100)

	f.client.mu.Lock()
	f.client.fail = true
	f.client.mu.Unlock()
	f.reconciler.Tick(ctx)

	record := f.store.Get(domain.BSCTestnet, "0xA")
	if record.LastCheckedBlock != 0 {
		t.Errorf("expected failed query to leave record unchecked, got %d", record.LastCheckedBlock)
	}

	// Next tick retries naturally.
	f.client.mu.Lock()
	f.client.fail = false
	f.client.mu.Unlock()
	f.reconciler.Tick(ctx)
	if got := f.store.Get(domain.BSCTestnet, "0xA").LastCheckedBlock; got != 100 {
		t.Errorf("expected retry to mark checked at 100, got %d", got)
	}
}

func TestTickScopedToActiveNetwork(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A pending transaction on a network that is not active must not be
	// checked.
	f.store.Add(ctx, domain.BSCMainnet, "0xM", "0xfeed", domain.SubjectDeposit, nil)
	f.heights.set(domain.BSCMainnet, 100)
	f.heights.set(domain.BSCTestnet, 100)

	f.reconciler.Tick(ctx)
	if got := f.store.Get(domain.BSCMainnet, "0xM").LastCheckedBlock; got != 0 {
		t.Errorf("expected mainnet record untouched while testnet is active, got checked at %d", got)
	}
}
