package peermsg

import (
	"context"
	"sync"

	"github.com/yalidogan/Distributed-Shared-Memory-Middleware/internal/dsmerr"
	"github.com/yalidogan/Distributed-Shared-Memory-Middleware/internal/objectid"
)

// LocalMessenger routes every call to an in-process Handlers
// implementation keyed by node id, skipping the network entirely. It
// is grounded on transport.go's LocalTransport, which does the same
// "look it up in a local map, else fall through" dispatch for vnodes;
// here there is no remote fallback because every node in a test/demo
// cluster is registered locally.
//
// One LocalMessenger instance is shared by every cluster.Cluster in a
// process; each node's engine is handed a thin NodeView wrapping this
// same instance with its own outbound node id baked in, and passes that
// id as the "from" argument of the handlers that take one (the engine
// uses it in OnFetchFromHome to register the caller as a cacher).
type LocalMessenger struct {
	mu    sync.RWMutex
	nodes map[int]Handlers
}

// NewLocalMessenger creates an empty registry.
func NewLocalMessenger() *LocalMessenger {
	return &LocalMessenger{nodes: make(map[int]Handlers)}
}

// Register attaches a node's inbound handlers under nodeID. Whoever
// wires an in-process cluster (cmd/dsmnode's -demo, the package tests)
// calls this once per node after building it; internal/cluster does not.
func (l *LocalMessenger) Register(nodeID int, h Handlers) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nodes[nodeID] = h
}

func (l *LocalMessenger) handlers(peer int) (Handlers, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	h, ok := l.nodes[peer]
	if !ok {
		return nil, dsmerr.TransportError("local: no node registered for id %d", peer)
	}
	return h, nil
}

// NodeView returns the Messenger a node with the given id should hold
// on to: every outbound call made through it carries selfID as the
// "from" node, the way a real RPC transport carries the sender's
// identity on the wire (spec.md §6's "carry the sender's node id for
// the three where from is referenced").
func (l *LocalMessenger) NodeView(selfID int) Messenger {
	return &localNodeView{local: l, selfID: selfID}
}

type localNodeView struct {
	local  *LocalMessenger
	selfID int
}

func (v *localNodeView) FetchFromHome(ctx context.Context, peer int, id objectid.ID) (FetchReply, error) {
	h, err := v.local.handlers(peer)
	if err != nil {
		return FetchReply{}, err
	}
	return h.OnFetchFromHome(ctx, v.selfID, id)
}

func (v *localNodeView) WriteToHome(ctx context.Context, peer int, id objectid.ID, data []byte) error {
	h, err := v.local.handlers(peer)
	if err != nil {
		return err
	}
	return h.OnWriteToHome(ctx, v.selfID, id, data)
}

func (v *localNodeView) CacheUpdate(ctx context.Context, peer int, id objectid.ID, data []byte) error {
	h, err := v.local.handlers(peer)
	if err != nil {
		return err
	}
	return h.OnCacheUpdate(ctx, id, data)
}

func (v *localNodeView) RemoveToHome(ctx context.Context, peer int, id objectid.ID) error {
	h, err := v.local.handlers(peer)
	if err != nil {
		return err
	}
	return h.OnRemoveToHome(ctx, v.selfID, id)
}

func (v *localNodeView) CacheRemove(ctx context.Context, peer int, id objectid.ID) error {
	h, err := v.local.handlers(peer)
	if err != nil {
		return err
	}
	return h.OnCacheRemove(ctx, id)
}

func (v *localNodeView) LockAcquire(ctx context.Context, peer int, id objectid.ID, isWrite bool) error {
	h, err := v.local.handlers(peer)
	if err != nil {
		return err
	}
	return h.OnLockAcquire(ctx, v.selfID, id, isWrite)
}

func (v *localNodeView) LockRelease(ctx context.Context, peer int, id objectid.ID, isWrite bool) error {
	h, err := v.local.handlers(peer)
	if err != nil {
		return err
	}
	return h.OnLockRelease(ctx, v.selfID, id, isWrite)
}

var _ Messenger = &localNodeView{}
