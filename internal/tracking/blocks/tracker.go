// Package blocks maintains the best-known block height for the active
// network.
//
// The tracker runs only while the session is bound to a network and
// visible. On activation it resets its working state, issues one immediate
// head query, and subscribes to the chain client's head notifications.
// Observed heights for the active network merge monotonically (a lower
// value is discarded); observations tagged with a stale network are
// dropped outright. A short debounce window collapses bursts of
// notifications so downstream consumers only ever see the last value.
package blocks

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/propulsorfi/txtracker/internal/core/domain"
	"github.com/propulsorfi/txtracker/internal/core/events"
	"github.com/propulsorfi/txtracker/internal/core/session"
	"github.com/propulsorfi/txtracker/internal/infra/chain"
	"github.com/propulsorfi/txtracker/internal/tracking/metrics"
)

// Height is a debounced block height for one network.
type Height struct {
	ChainID domain.ChainID
	Number  uint64
}

// workingState is the pre-debounce merge state. It is reset on every
// activation, so the first observation after a network switch is
// authoritative.
type workingState struct {
	chainID domain.ChainID
	number  uint64
	known   bool
}

// Tracker owns block state for all networks and is its sole writer.
type Tracker struct {
	session  *session.Session
	clients  map[domain.ChainID]chain.Client
	debounce time.Duration
	bus      *events.Bus[Height]
	log      *slog.Logger

	mu     sync.Mutex
	state  workingState
	latest map[domain.ChainID]uint64

	obs chan Height
}

// New creates a tracker over the given chain clients.
func New(sess *session.Session, clients map[domain.ChainID]chain.Client, debounce time.Duration) *Tracker {
	return &Tracker{
		session:  sess,
		clients:  clients,
		debounce: debounce,
		bus:      events.NewBus[Height](),
		log:      slog.Default(),
		latest:   make(map[domain.ChainID]uint64),
		obs:      make(chan Height, 64),
	}
}

// Latest returns the externally visible (debounced) height for a network.
func (t *Tracker) Latest(chainID domain.ChainID) (uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	height, ok := t.latest[chainID]
	return height, ok
}

// Updates subscribes to debounced height changes.
func (t *Tracker) Updates() (<-chan Height, func()) {
	return t.bus.Subscribe(8)
}

// Run drives the tracker until ctx is done. It reacts to session changes
// by activating or deactivating head tracking for the active network.
func (t *Tracker) Run(ctx context.Context) error {
	sessionCh, cancelSession := t.session.Changes()
	defer cancelSession()

	timer := time.NewTimer(t.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	armed := false

	var unsubscribe func()
	var activeChain domain.ChainID
	var activeVisible bool
	deactivate := func() {
		if unsubscribe != nil {
			unsubscribe()
			unsubscribe = nil
		}
		activeChain = 0
		activeVisible = false
	}
	defer deactivate()

	apply := func(snap session.Snapshot) {
		if snap.ChainID == activeChain && snap.Visible == activeVisible {
			return
		}
		deactivate()
		if !snap.Active() {
			return
		}
		client, ok := t.clients[snap.ChainID]
		if !ok {
			t.log.Warn("No chain client for network", "chain", snap.ChainID.Name())
			return
		}
		activeChain = snap.ChainID
		activeVisible = snap.Visible

		t.mu.Lock()
		t.state = workingState{chainID: snap.ChainID}
		t.mu.Unlock()

		// One immediate query; a failure is logged and not retried here,
		// the head subscription still delivers subsequent blocks.
		go func(chainID domain.ChainID) {
			height, err := client.BlockNumber(ctx)
			if err != nil {
				t.log.Error("Failed to get block number", "chain", chainID.Name(), "error", err)
				return
			}
			t.enqueue(Height{ChainID: chainID, Number: height})
		}(snap.ChainID)

		heads, unsub := client.SubscribeHeads(16)
		unsubscribe = unsub
		go func(chainID domain.ChainID) {
			for height := range heads {
				t.enqueue(Height{ChainID: chainID, Number: height})
			}
		}(snap.ChainID)
	}

	apply(t.session.Snapshot())

	for {
		select {
		case <-ctx.Done():
			return nil
		case snap := <-sessionCh:
			apply(snap)
		case observation := <-t.obs:
			if t.observe(observation) {
				if armed && !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(t.debounce)
				armed = true
			}
		case <-timer.C:
			armed = false
			t.publish()
		}
	}
}

// enqueue hands an observation to the run loop without ever blocking the
// producer. Dropping under pressure is fine: heights are merged by max, so
// a later observation subsumes a dropped one.
func (t *Tracker) enqueue(observation Height) {
	select {
	case t.obs <- observation:
	default:
	}
}

// observe merges one observation into the working state. Observations for
// a network other than the one the state was captured for are stale
// completions and are discarded. Returns whether the state changed.
func (t *Tracker) observe(observation Height) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if observation.ChainID != t.state.chainID {
		return false
	}
	if !t.state.known {
		t.state.number = observation.Number
		t.state.known = true
		return true
	}
	if observation.Number > t.state.number {
		t.state.number = observation.Number
		return true
	}
	return false
}

// publish propagates the debounced working state to the externally
// visible height map and the bus.
func (t *Tracker) publish() {
	t.mu.Lock()
	if !t.state.known {
		t.mu.Unlock()
		return
	}
	update := Height{ChainID: t.state.chainID, Number: t.state.number}
	t.latest[update.ChainID] = update.Number
	t.mu.Unlock()

	metrics.BlockHeight.WithLabelValues(update.ChainID.Name()).Set(float64(update.Number))
	t.bus.Publish(update)
}
