package coherence

import (
	"sync"

	"github.com/yalidogan/Distributed-Shared-Memory-Middleware/internal/objectid"
)

// metaTable is ObjectMeta from spec.md §3: for each object this node is
// home or backup for, the set of nodes currently caching it. Grounded
// on original_source's DsmCore::meta_ (an
// unordered_map<ObjectId, ObjectMeta> guarded by meta_mtx_); ported
// with the same "copy out, then release the mutex before any RPC"
// discipline spec.md §5 requires ("never hold the meta map mutex
// across RPC calls").
type metaTable struct {
	mu   sync.Mutex
	data map[objectid.ID]map[int]struct{}
}

func newMetaTable() *metaTable {
	return &metaTable{data: make(map[objectid.ID]map[int]struct{})}
}

// register adds nodeID to id's cacher set. Grows forever in the MVP —
// spec.md §3 and §9 both call this out as a deliberately weakened
// invariant; no eviction is implemented here.
func (m *metaTable) register(id objectid.ID, nodeID int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.data[id]
	if !ok {
		set = make(map[int]struct{})
		m.data[id] = set
	}
	set[nodeID] = struct{}{}
}

// cachers returns a snapshot copy of id's cacher set, safe to iterate
// and send RPCs over after the metaTable's mutex has been released.
func (m *metaTable) cachers(id objectid.ID) []int {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.data[id]
	if !ok {
		return nil
	}
	out := make([]int, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	return out
}
