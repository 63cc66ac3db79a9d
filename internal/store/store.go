// Package store implements the local, per-node object table (C2 in
// spec.md §2). It is grounded on original_source's ObjectStore
// (include/dsm/ObjectStore.h) for the operation set, and on the
// teacher's coarse-grained single-mutex discipline (obj_server.go's
// KVStore.kvLock) rather than its versioned list-per-key design —
// spec.md §4.2 wants a plain key→bytes map, not a version history.
package store

import (
	"sync"

	"github.com/golang/glog"

	"github.com/yalidogan/Distributed-Shared-Memory-Middleware/internal/dsmerr"
	"github.com/yalidogan/Distributed-Shared-Memory-Middleware/internal/objectid"
)

// Store is a thread-safe local key→bytes map with lifecycle ops. All
// methods are atomic under a single internal mutex (spec.md §4.2); no
// method ever blocks on anything but that mutex, and none of them
// reenter the Store.
type Store struct {
	mu      sync.Mutex
	objects map[objectid.ID][]byte
}

// New creates an empty Store.
func New() *Store {
	return &Store{objects: make(map[objectid.ID][]byte)}
}

// Get returns the stored bytes for id, or dsmerr.ErrNotFound if absent.
// It never allocates a missing entry.
func (s *Store) Get(id objectid.ID) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.objects[id]
	if !ok {
		return nil, dsmerr.ErrNotFound
	}
	// Return a copy: callers must not be able to mutate our backing array.
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// Put inserts or overwrites the bytes stored for id.
func (s *Store) Put(id objectid.ID, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	s.objects[id] = stored
}

// Exists reports whether id has an entry, without copying its value.
func (s *Store) Exists(id objectid.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.objects[id]
	return ok
}

// Erase removes id's entry if present and reports whether it removed one.
func (s *Store) Erase(id objectid.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[id]; !ok {
		return false
	}
	delete(s.objects, id)
	return true
}

// Snapshot returns a deep copy of the whole table, keyed by the
// object's string name, for monitoring consumers (internal/monitor).
// It must not leak any reference into s's internal map or byte slices.
func (s *Store) Snapshot() map[string][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string][]byte, len(s.objects))
	for id, b := range s.objects {
		cp := make([]byte, len(b))
		copy(cp, b)
		out[id.String()] = cp
	}

	if glog.V(2) {
		glog.Infof("store: snapshot taken, %d objects", len(out))
	}
	return out
}
