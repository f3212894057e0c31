/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package lock implements the storage lock manager (§4.7): one shared lock
// per media pool store id, with RAII-style release on last-reference-drop
// and an availability latch opened or closed by the peer.
package lock

import (
	"sync"

	"github.com/micolous/necromancer/necroerr"
	"github.com/micolous/necromancer/protocol"
)

// MaxStoreID is the highest valid store id (§4.7 validation rule).
const MaxStoreID = 63

// Sender is the subset of the session command channel the lock manager
// needs to enqueue lock/unlock atoms. It mirrors the weak-reference-to-
// command-channel idea from §9 "Cyclic references": Go has no Weak<T>, so a
// Manager instead owns the registry directly and a Handle only ever talks
// back to its owning Manager, never to the session.
type Sender interface {
	SendAtom(a protocol.Atom)
}

// Handle is a shared-ownership reference to a store id's lock. Available
// blocks until the peer has granted the lock (or it becomes clear it never
// will). Release must be called exactly once per Handle returned by
// Manager.Acquire; the underlying lock is released to the peer when the
// last outstanding Handle for a store id is released.
type Handle struct {
	storeID uint16
	entry   *entry
	mgr     *Manager

	once sync.Once
}

// StoreID returns the store id this handle refers to.
func (h *Handle) StoreID() uint16 { return h.storeID }

// Available blocks until the peer has granted the lock, or returns an error
// if the peer revoked it (or never granted it) before that happened.
func (h *Handle) Available() error {
	<-h.entry.ready
	h.entry.mu.Lock()
	err := h.entry.err
	h.entry.mu.Unlock()
	return err
}

// Release drops this reference. When the last reference to a store id's
// lock is released, a MediaPoolLock{lock=false} atom is enqueued. Calling
// Release more than once on the same Handle is a no-op.
func (h *Handle) Release() {
	h.once.Do(func() {
		h.mgr.release(h.storeID, h.entry)
	})
}

// entry is the shared state behind every Handle for one store id.
type entry struct {
	mu    sync.Mutex
	refs  int
	ready chan struct{}
	// err is set (before ready is closed, or by closeAvailable) when the
	// lock will never become available.
	err error
}

// Manager tracks outstanding storage locks for one session. It is not safe
// for concurrent mutation from multiple goroutines beyond what sync.Mutex
// provides internally; Acquire/HandleLockObtained/HandleLockStatus may be
// called from different goroutines (application callers vs. the session
// task) since each only touches the shared entry under its own mutex.
type Manager struct {
	mu      sync.Mutex
	sender  Sender
	entries map[uint16]*entry
}

// NewManager creates a lock Manager that sends request/release atoms
// through sender.
func NewManager(sender Sender) *Manager {
	return &Manager{
		sender:  sender,
		entries: make(map[uint16]*entry),
	}
}

// Acquire returns a Handle for storeID, creating and requesting the lock
// from the peer if this is the first outstanding reference, or cloning the
// existing handle's entry otherwise (§4.7 "subsequent requests").
func (m *Manager) Acquire(storeID uint16) (*Handle, error) {
	if storeID > MaxStoreID {
		return nil, necroerr.Newf(necroerr.KindParameterOutOfRange, "store id %d exceeds maximum %d", storeID, MaxStoreID)
	}

	m.mu.Lock()
	e, ok := m.entries[storeID]
	if !ok {
		e = &entry{ready: make(chan struct{})}
		m.entries[storeID] = e
		m.mu.Unlock()
		m.sender.SendAtom(protocol.NewAtom(&protocol.MediaPoolLock{StoreID: storeID, Lock: true}))
	} else {
		e.mu.Lock()
		e.refs++
		e.mu.Unlock()
		m.mu.Unlock()
	}

	return &Handle{storeID: storeID, entry: e, mgr: m}, nil
}

// release drops one reference to storeID's entry, sending
// MediaPoolLock{lock=false} when the last one drops.
func (m *Manager) release(storeID uint16, e *entry) {
	m.mu.Lock()
	e.mu.Lock()
	last := e.refs == 0
	if !last {
		e.refs--
	}
	e.mu.Unlock()
	if last {
		delete(m.entries, storeID)
	}
	m.mu.Unlock()

	if last {
		m.sender.SendAtom(protocol.NewAtom(&protocol.MediaPoolLock{StoreID: storeID, Lock: false}))
	}
}

// HandleLockObtained opens the availability latch for storeID, releasing
// all current and future waiters with success (§4.7, the LKOB atom).
func (m *Manager) HandleLockObtained(storeID uint16) {
	m.mu.Lock()
	e, ok := m.entries[storeID]
	m.mu.Unlock()
	if !ok {
		return
	}
	markReady(e, nil)
}

// HandleLockStatus processes a peer MediaPoolLockStatus atom. When the peer
// reports our store id as unexpectedly unlocked, the latch is closed (or
// re-closed) so waiters fail with ChannelUnavailable (§4.7).
func (m *Manager) HandleLockStatus(storeID uint16, locked bool) {
	if locked {
		return
	}
	m.mu.Lock()
	e, ok := m.entries[storeID]
	m.mu.Unlock()
	if !ok {
		return
	}
	markReady(e, necroerr.New(necroerr.KindChannelUnavailable, "peer revoked storage lock"))
}

// markReady sets err and closes ready if it is not already closed. Once
// ready is closed it stays closed; later calls only update err.
func markReady(e *entry, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	select {
	case <-e.ready:
		// Already open; a later revocation still updates err for any
		// Handle.Available call that hasn't read it yet, but does not
		// re-close a closed channel.
		e.err = err
	default:
		e.err = err
		close(e.ready)
	}
}
