// Package session owns the active user context: the connected account, the
// targeted network, and whether the application is currently visible.
//
// The session is the single writer of this state. Consumers either pull a
// fresh Snapshot each time they need it (the reconciler does this every
// tick, so a network switch can never mix transactions across networks) or
// subscribe to change events (the block tracker does this to
// activate/deactivate).
package session

import (
	"sync"

	"github.com/propulsorfi/txtracker/internal/core/domain"
	"github.com/propulsorfi/txtracker/internal/core/events"
)

// Snapshot is an immutable view of the session at one point in time.
type Snapshot struct {
	Account string
	ChainID domain.ChainID
	Visible bool
}

// Active reports whether the session is bound to a network and visible,
// which is the precondition for block tracking.
func (s Snapshot) Active() bool {
	return s.ChainID != 0 && s.Visible
}

// Session holds the mutable active context.
type Session struct {
	mu      sync.RWMutex
	account string
	chainID domain.ChainID
	visible bool
	bus     *events.Bus[Snapshot]
}

// New creates a session with no account, no network, and visibility on.
// A headless deployment that never drives the visibility signal gets
// continuous tracking.
func New() *Session {
	return &Session{
		visible: true,
		bus:     events.NewBus[Snapshot](),
	}
}

// Snapshot returns the current session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Account: s.account, ChainID: s.chainID, Visible: s.visible}
}

// Changes subscribes to session updates.
func (s *Session) Changes() (<-chan Snapshot, func()) {
	return s.bus.Subscribe(4)
}

// SetAccount records the connected account. Empty disconnects.
func (s *Session) SetAccount(account string) {
	s.mu.Lock()
	s.account = account
	snap := Snapshot{Account: s.account, ChainID: s.chainID, Visible: s.visible}
	s.mu.Unlock()
	s.bus.Publish(snap)
}

// SetNetwork switches the active network. Zero unbinds.
func (s *Session) SetNetwork(chainID domain.ChainID) {
	s.mu.Lock()
	s.chainID = chainID
	snap := Snapshot{Account: s.account, ChainID: s.chainID, Visible: s.visible}
	s.mu.Unlock()
	s.bus.Publish(snap)
}

// SetVisible records the externally supplied visibility signal.
func (s *Session) SetVisible(visible bool) {
	s.mu.Lock()
	s.visible = visible
	snap := Snapshot{Account: s.account, ChainID: s.chainID, Visible: s.visible}
	s.mu.Unlock()
	s.bus.Publish(snap)
}
