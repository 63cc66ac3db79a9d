// Package lockmgr implements the per-node multiple-reader/single-writer
// lock state machine (C3 in spec.md §2, §4.3). It is ported nearly
// statement-for-statement from original_source's LockManager
// (include/sync/LockManager.h, src/sync/LockManager.cpp) — the
// std::mutex/std::condition_variable pair there maps directly onto
// Go's sync.Mutex/sync.Cond — with a lazily-populated map guarded by
// its own mutex, separate from the per-entry state.
package lockmgr

import (
	"sync"

	"github.com/golang/glog"

	"github.com/yalidogan/Distributed-Shared-Memory-Middleware/internal/clockutil"
	"github.com/yalidogan/Distributed-Shared-Memory-Middleware/internal/objectid"
)

// objectLockState is the LockState of spec.md §3: readers/writerActive/
// writeWaiters at rest must satisfy writerActive ⇒ readers==0 and
// readers>0 ⇒ ¬writerActive, enforced entirely under mu.
type objectLockState struct {
	mu   sync.Mutex
	cond *sync.Cond

	readers      int
	writerActive bool
	writeWaiters int
}

func newObjectLockState() *objectLockState {
	s := &objectLockState{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Manager owns every LockState this node coordinates, one per
// ObjectId. Entries are created on first use and never removed in the
// MVP (spec.md §4.3, §9) — bounded by the active id set.
type Manager struct {
	mapMu  sync.Mutex
	states map[objectid.ID]*objectLockState
	clock  clockutil.Clock
}

// New creates an empty Manager using the real wall clock.
func New() *Manager {
	return NewWithClock(clockutil.Real{})
}

// NewWithClock is the injectable-clock constructor tests use to make
// writer-wait-time assertions deterministic (see clockutil.Mock).
func NewWithClock(clock clockutil.Clock) *Manager {
	return &Manager{states: make(map[objectid.ID]*objectLockState), clock: clock}
}

func (m *Manager) getState(id objectid.ID) *objectLockState {
	m.mapMu.Lock()
	defer m.mapMu.Unlock()

	s, ok := m.states[id]
	if !ok {
		s = newObjectLockState()
		m.states[id] = s
	}
	return s
}

// Acquire blocks until the lock is granted. Never hold mapMu while
// blocking on a state's condvar (spec.md §5) — getState above always
// releases mapMu before Acquire touches the per-object mutex.
func (m *Manager) Acquire(id objectid.ID, isWrite bool) {
	state := m.getState(id)

	start := m.clock.Now()
	if glog.V(2) {
		glog.Infof("lockmgr: acquire requested for %q write=%v", id, isWrite)
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	if isWrite {
		state.writeWaiters++
		for !(state.readers == 0 && !state.writerActive) {
			state.cond.Wait()
		}
		state.writeWaiters--
		state.writerActive = true
	} else {
		// Readers must not overtake a queued writer: this is what
		// gives the writer bounded-wait fairness (spec.md §4.3 P3).
		for !(!state.writerActive && state.writeWaiters == 0) {
			state.cond.Wait()
		}
		state.readers++
	}

	if glog.V(2) {
		glog.Infof("lockmgr: acquire granted for %q write=%v after %s", id, isWrite, m.clock.Now().Sub(start))
	}
}

// Release is non-blocking and wakes any parked waiters. Broadcasting
// on every release (rather than only when the last reader drops) is
// simpler and safe, per spec.md §4.3.
func (m *Manager) Release(id objectid.ID, isWrite bool) {
	state := m.getState(id)

	state.mu.Lock()
	if isWrite {
		state.writerActive = false
	} else {
		state.readers--
	}
	state.mu.Unlock()

	state.cond.Broadcast()

	if glog.V(2) {
		glog.Infof("lockmgr: released %q write=%v", id, isWrite)
	}
}
