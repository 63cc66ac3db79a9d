// Package coherence implements the coherence engine (C6 in spec.md
// §2): object placement lookups, the distributed lock protocol, the
// fetch and commit paths, and the seven inbound RPC handlers. It is
// the Go rendition of original_source's dsm::DsmCore
// (include/dsm/DsmCore.h, src/dsm/DsmCore.cpp), extended with the
// backup replica and remove path spec.md adds on top of that
// prototype, and with obj_server_repl.go's bounded-parallelism fan-out
// pattern (a WaitGroup + token-channel semaphore) used for the
// cache-update/cache-remove broadcast.
package coherence

import (
	"context"
	"sync"

	"github.com/golang/glog"

	"github.com/yalidogan/Distributed-Shared-Memory-Middleware/internal/dsmerr"
	"github.com/yalidogan/Distributed-Shared-Memory-Middleware/internal/lockmgr"
	"github.com/yalidogan/Distributed-Shared-Memory-Middleware/internal/objectid"
	"github.com/yalidogan/Distributed-Shared-Memory-Middleware/internal/peermsg"
	"github.com/yalidogan/Distributed-Shared-Memory-Middleware/internal/placement"
	"github.com/yalidogan/Distributed-Shared-Memory-Middleware/internal/store"
)

// maxFanoutParallelism bounds how many CacheUpdate/CacheRemove RPCs a
// single commit or remove sends concurrently, the same role the
// teacher's MaxReplParallelism token channel plays in
// obj_server_repl.go.
const maxFanoutParallelism = 8

// Engine is the per-node coherence engine: the single object exposing
// spec.md §4.4's contracts. It owns the local store and meta table
// (spec.md §3) and holds the peer messenger and lock manager by
// reference, never by value — matching the "engine must outlive all
// live handles" / "not owned" relationships spec.md §3 and §9 specify.
type Engine struct {
	myID       int
	totalNodes int
	placement  placement.Table

	store *store.Store
	meta  *metaTable
	locks *lockmgr.Manager

	peer peermsg.Messenger
}

// New builds an Engine for myID in a totalNodes-node cluster, driven
// by peer for all outbound RPCs.
func New(myID, totalNodes int, peer peermsg.Messenger) *Engine {
	return &Engine{
		myID:       myID,
		totalNodes: totalNodes,
		placement:  placement.New(totalNodes),
		store:      store.New(),
		meta:       newMetaTable(),
		locks:      lockmgr.New(),
		peer:       peer,
	}
}

// Store exposes the local object table for callers (cluster assembly's
// Snapshot, tests) that need direct access without going through a
// Handle.
func (e *Engine) Store() *store.Store { return e.store }

// MyID returns this engine's node id.
func (e *Engine) MyID() int { return e.myID }

// Home and Backup expose placement.Table's lookups scoped to this
// engine's cluster size.
func (e *Engine) Home(id objectid.ID) int   { return e.placement.Home(id) }
func (e *Engine) Backup(id objectid.ID) int { return e.placement.Backup(id) }

func (e *Engine) isHomeOrBackup(id objectid.ID) bool {
	home, backup := e.placement.HomeAndBackup(id)
	return e.myID == home || e.myID == backup
}

// ---------------------------------------------------------------- //
// 4.4.1 Distributed lock acquisition
// ---------------------------------------------------------------- //

// acquireDistributed serializes access cluster-wide by taking the
// local lock on both home and backup, in the fixed order spec.md
// §4.4.1 mandates. Every role takes the home's lock before the
// backup's: the home locks locally and then RPCs the backup, the
// backup RPCs the home and then locks locally, and any other node RPCs
// the home and then the backup. That fixed order is what gives two
// ordinary clients deadlock-freedom. Lock RPC
// failure is a correctness hazard (spec.md §7) and is returned to the
// caller rather than swallowed.
func (e *Engine) acquireDistributed(ctx context.Context, id objectid.ID, isWrite bool) error {
	home, backup := e.placement.HomeAndBackup(id)

	if home == backup {
		// Degenerate single-replica placement (spec.md §4.1: totalNodes
		// == 1 collapses backup onto home) — there is only one local
		// lock to take, and sending a second RPC to "backup" would just
		// be this same node re-entering its own lock manager.
		if e.myID != home {
			if err := e.peer.LockAcquire(ctx, home, id, isWrite); err != nil {
				return dsmerr.TransportError("acquireDistributed: LockAcquire(home=%d, %q): %v", home, id, err)
			}
			return nil
		}
		e.locks.Acquire(id, isWrite)
		return nil
	}

	switch e.myID {
	case home:
		e.locks.Acquire(id, isWrite)
		if err := e.peer.LockAcquire(ctx, backup, id, isWrite); err != nil {
			e.locks.Release(id, isWrite)
			return dsmerr.TransportError("acquireDistributed: LockAcquire(backup=%d, %q): %v", backup, id, err)
		}
		return nil
	case backup:
		if err := e.peer.LockAcquire(ctx, home, id, isWrite); err != nil {
			return dsmerr.TransportError("acquireDistributed: LockAcquire(home=%d, %q): %v", home, id, err)
		}
		e.locks.Acquire(id, isWrite)
		return nil
	default:
		if err := e.peer.LockAcquire(ctx, home, id, isWrite); err != nil {
			return dsmerr.TransportError("acquireDistributed: LockAcquire(home=%d, %q): %v", home, id, err)
		}
		if err := e.peer.LockAcquire(ctx, backup, id, isWrite); err != nil {
			// Best-effort unwind of the half-acquired distributed lock
			// so home doesn't hold it forever on our behalf.
			_ = e.peer.LockRelease(ctx, home, id, isWrite)
			return dsmerr.TransportError("acquireDistributed: LockAcquire(backup=%d, %q): %v", backup, id, err)
		}
		return nil
	}
}

// releaseDistributed is symmetric with acquireDistributed and releases
// in the same order. It is non-blocking by contract (spec.md §4.3) but
// still surfaces a failed release RPC, since a stuck remote lock is
// itself a correctness hazard even though there's little the caller
// can do besides log it.
func (e *Engine) releaseDistributed(ctx context.Context, id objectid.ID, isWrite bool) error {
	home, backup := e.placement.HomeAndBackup(id)

	if home == backup {
		if e.myID != home {
			if err := e.peer.LockRelease(ctx, home, id, isWrite); err != nil {
				glog.Errorf("coherence: releaseDistributed(%q, write=%v): %v", id, isWrite, err)
				return dsmerr.TransportError("releaseDistributed(%q): %v", id, err)
			}
			return nil
		}
		e.locks.Release(id, isWrite)
		return nil
	}

	var err error
	switch e.myID {
	case home:
		e.locks.Release(id, isWrite)
		err = e.peer.LockRelease(ctx, backup, id, isWrite)
	case backup:
		err = e.peer.LockRelease(ctx, home, id, isWrite)
		e.locks.Release(id, isWrite)
	default:
		if rerr := e.peer.LockRelease(ctx, home, id, isWrite); rerr != nil {
			err = rerr
		}
		if rerr := e.peer.LockRelease(ctx, backup, id, isWrite); rerr != nil {
			err = rerr
		}
	}
	if err != nil {
		glog.Errorf("coherence: releaseDistributed(%q, write=%v): %v", id, isWrite, err)
		return dsmerr.TransportError("releaseDistributed(%q): %v", id, err)
	}
	return nil
}

// ---------------------------------------------------------------- //
// 4.4.2 Fetch path
// ---------------------------------------------------------------- //

// fetchRawInternal implements spec.md §4.4.2 step 2, assuming the
// caller already holds the distributed lock for id.
func (e *Engine) fetchRawInternal(ctx context.Context, id objectid.ID) ([]byte, error) {
	if b, err := e.store.Get(id); err == nil {
		return b, nil
	}

	home, backup := e.placement.HomeAndBackup(id)

	if e.myID != home && e.myID != backup {
		if reply, err := e.peer.FetchFromHome(ctx, home, id); err == nil && reply.Found && len(reply.Data) > 0 {
			e.store.Put(id, reply.Data)
			return reply.Data, nil
		} else if err != nil {
			glog.Errorf("coherence: FetchFromHome(home=%d, %q): %v", home, id, err)
		}

		reply, err := e.peer.FetchFromHome(ctx, backup, id)
		if err != nil {
			glog.Errorf("coherence: FetchFromHome(backup=%d, %q): %v", backup, id, err)
			return nil, nil
		}
		if reply.Found && len(reply.Data) > 0 {
			e.store.Put(id, reply.Data)
			return reply.Data, nil
		}
		return nil, nil
	}

	// I am home with no local entry: ask backup (spec.md §4.4.2's
	// "Else (I am home with no entry)" branch).
	reply, err := e.peer.FetchFromHome(ctx, backup, id)
	if err != nil {
		glog.Errorf("coherence: FetchFromHome(backup=%d, %q): %v", backup, id, err)
		return nil, nil
	}
	if reply.Found && len(reply.Data) > 0 {
		e.store.Put(id, reply.Data)
		return reply.Data, nil
	}
	return nil, nil
}

// ---------------------------------------------------------------- //
// 4.4.4 Commit path
// ---------------------------------------------------------------- //

// putRawInternal implements spec.md §4.4.4, assuming the caller
// already holds the distributed exclusive lock for id.
func (e *Engine) putRawInternal(ctx context.Context, id objectid.ID, bytes []byte) {
	home, backup := e.placement.HomeAndBackup(id)

	if e.myID == home || e.myID == backup {
		e.store.Put(id, bytes)
		e.broadcastCacheUpdate(ctx, id, bytes)

		other := home
		if e.myID == home {
			other = backup
		}
		if other != e.myID {
			if err := e.peer.WriteToHome(ctx, other, id, bytes); err != nil {
				glog.Errorf("coherence: WriteToHome(other=%d, %q): %v", other, id, err)
			}
		}
		return
	}

	if err := e.peer.WriteToHome(ctx, home, id, bytes); err != nil {
		glog.Errorf("coherence: WriteToHome(home=%d, %q): %v", home, id, err)
	}
	if err := e.peer.WriteToHome(ctx, backup, id, bytes); err != nil {
		glog.Errorf("coherence: WriteToHome(backup=%d, %q): %v", backup, id, err)
	}
	// Optimistic local update: read-your-writes on the node that
	// committed (spec.md §5).
	e.store.Put(id, bytes)
}

// broadcastCacheUpdate fans CacheUpdate out to every registered cacher
// except self, bounded to maxFanoutParallelism concurrent RPCs at a
// time — a WaitGroup plus a buffered "tokens" channel semaphore, the
// same shape as obj_server_repl.go's localRepl. Best-effort per
// spec.md §7: a failed send to one cacher never aborts the commit.
func (e *Engine) broadcastCacheUpdate(ctx context.Context, id objectid.ID, bytes []byte) {
	cachers := e.meta.cachers(id)
	if len(cachers) == 0 {
		return
	}

	var wg sync.WaitGroup
	tokens := make(chan struct{}, maxFanoutParallelism)

	for _, c := range cachers {
		if c == e.myID {
			continue
		}
		wg.Add(1)
		tokens <- struct{}{}
		go func(peer int) {
			defer wg.Done()
			defer func() { <-tokens }()
			if err := e.peer.CacheUpdate(ctx, peer, id, bytes); err != nil {
				glog.Errorf("coherence: CacheUpdate(peer=%d, %q): %v", peer, id, err)
			}
		}(c)
	}
	wg.Wait()
}

func (e *Engine) broadcastCacheRemove(ctx context.Context, id objectid.ID) {
	cachers := e.meta.cachers(id)
	if len(cachers) == 0 {
		return
	}

	var wg sync.WaitGroup
	tokens := make(chan struct{}, maxFanoutParallelism)

	for _, c := range cachers {
		if c == e.myID {
			continue
		}
		wg.Add(1)
		tokens <- struct{}{}
		go func(peer int) {
			defer wg.Done()
			defer func() { <-tokens }()
			if err := e.peer.CacheRemove(ctx, peer, id); err != nil {
				glog.Errorf("coherence: CacheRemove(peer=%d, %q): %v", peer, id, err)
			}
		}(c)
	}
	wg.Wait()
}

// ---------------------------------------------------------------- //
// 4.4.6 Remove path
// ---------------------------------------------------------------- //

// Remove implements spec.md §4.4.6. On the home or backup it erases
// locally, fans CacheRemove out to cachers, and sends RemoveToHome to
// the other of the pair, the same way putRawInternal forwards a commit.
func (e *Engine) Remove(ctx context.Context, id objectid.ID) error {
	if err := e.acquireDistributed(ctx, id, true); err != nil {
		return err
	}
	defer func() {
		if err := e.releaseDistributed(ctx, id, true); err != nil {
			glog.Errorf("coherence: Remove releaseDistributed(%q): %v", id, err)
		}
	}()

	home, backup := e.placement.HomeAndBackup(id)
	if e.myID == home || e.myID == backup {
		e.store.Erase(id)
		e.broadcastCacheRemove(ctx, id)

		other := home
		if e.myID == home {
			other = backup
		}
		if other != e.myID {
			if err := e.peer.RemoveToHome(ctx, other, id); err != nil {
				glog.Errorf("coherence: RemoveToHome(other=%d, %q): %v", other, id, err)
			}
		}
		return nil
	}

	if err := e.peer.RemoveToHome(ctx, home, id); err != nil {
		glog.Errorf("coherence: RemoveToHome(home=%d, %q): %v", home, id, err)
	}
	if err := e.peer.RemoveToHome(ctx, backup, id); err != nil {
		glog.Errorf("coherence: RemoveToHome(backup=%d, %q): %v", backup, id, err)
	}
	e.store.Erase(id)
	return nil
}

// Exists reports whether id has a local entry. This is a local check,
// not a cluster-wide query — spec.md §8 P8 only requires it false on
// the caller immediately after Remove returns.
func (e *Engine) Exists(id objectid.ID) bool {
	return e.store.Exists(id)
}

// Snapshot exposes the local store for monitoring (spec.md §4.6).
func (e *Engine) Snapshot() map[string][]byte {
	return e.store.Snapshot()
}

// ---------------------------------------------------------------- //
// 4.4.5 Incoming handler contracts
// ---------------------------------------------------------------- //

func (e *Engine) OnFetchFromHome(ctx context.Context, from int, id objectid.ID) (peermsg.FetchReply, error) {
	if e.isHomeOrBackup(id) && from >= 0 {
		e.meta.register(id, from)
	}
	b, err := e.store.Get(id)
	if err != nil {
		return peermsg.FetchReply{Found: false, ObjectName: id.String()}, nil
	}
	return peermsg.FetchReply{Found: true, ObjectName: id.String(), Data: b}, nil
}

func (e *Engine) OnWriteToHome(ctx context.Context, from int, id objectid.ID, data []byte) error {
	if !e.isHomeOrBackup(id) {
		glog.Errorf("coherence: OnWriteToHome called on node %d which is neither home nor backup for %q", e.myID, id)
		return dsmerr.RoleMismatchError{Handler: "OnWriteToHome", NodeID: e.myID, Object: id.String()}
	}
	e.store.Put(id, data)
	e.broadcastCacheUpdate(ctx, id, data)
	return nil
}

func (e *Engine) OnCacheUpdate(ctx context.Context, id objectid.ID, data []byte) error {
	e.store.Put(id, data)
	return nil
}

func (e *Engine) OnRemoveToHome(ctx context.Context, from int, id objectid.ID) error {
	if !e.isHomeOrBackup(id) {
		glog.Errorf("coherence: OnRemoveToHome called on node %d which is neither home nor backup for %q", e.myID, id)
		return dsmerr.RoleMismatchError{Handler: "OnRemoveToHome", NodeID: e.myID, Object: id.String()}
	}
	e.store.Erase(id)
	e.broadcastCacheRemove(ctx, id)
	return nil
}

func (e *Engine) OnCacheRemove(ctx context.Context, id objectid.ID) error {
	e.store.Erase(id)
	return nil
}

func (e *Engine) OnLockAcquire(ctx context.Context, from int, id objectid.ID, isWrite bool) error {
	e.locks.Acquire(id, isWrite)
	return nil
}

func (e *Engine) OnLockRelease(ctx context.Context, from int, id objectid.ID, isWrite bool) error {
	e.locks.Release(id, isWrite)
	return nil
}

var _ peermsg.Handlers = &Engine{}
