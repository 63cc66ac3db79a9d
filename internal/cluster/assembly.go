package cluster

import (
	"context"

	"github.com/golang/glog"

	"github.com/yalidogan/Distributed-Shared-Memory-Middleware/internal/codec"
	"github.com/yalidogan/Distributed-Shared-Memory-Middleware/internal/coherence"
	"github.com/yalidogan/Distributed-Shared-Memory-Middleware/internal/objectid"
	"github.com/yalidogan/Distributed-Shared-Memory-Middleware/internal/peermsg"
)

// Cluster is the top-level object of spec.md §4.6 (C8): it wires
// identity, placement, store, lock manager and meta together inside
// one *coherence.Engine and exposes the only surface an application
// depends on. Grounded on buddystore.go's BuddyStore, the top-level
// struct that holds config plus the components it assembled at init —
// narrowed here since coherence.Engine already does the actual
// component wiring; Cluster's job is strictly identity + messenger
// plumbing and the public API shape.
type Cluster struct {
	config Config
	engine *coherence.Engine
}

// New builds a Cluster for cfg, driving every outbound RPC through
// peer. Call Register (for an in-process peermsg.LocalMessenger) or
// wire peer to a real transport (internal/transport/httprpc) before
// any handle is acquired from another node's perspective.
func New(cfg Config, peer peermsg.Messenger) (*Cluster, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Cluster{
		config: cfg,
		engine: coherence.New(cfg.MyID, cfg.TotalNodes(), peer),
	}, nil
}

// Handlers returns the peermsg.Handlers implementation a transport
// adapter should dispatch inbound RPCs to — the engine itself.
func (c *Cluster) Handlers() peermsg.Handlers {
	return c.engine
}

// MyID returns this process's node id.
func (c *Cluster) MyID() int { return c.config.MyID }

// ReadHandle opens id for reading (spec.md §4.4.2).
func ReadHandle[T any](ctx context.Context, c *Cluster, id objectid.ID, codec codec.Codec[T]) (*coherence.Handle[T], error) {
	return coherence.ReadHandle(ctx, c.engine, id, codec)
}

// WriteHandle opens id for writing (spec.md §4.4.3).
func WriteHandle[T any](ctx context.Context, c *Cluster, id objectid.ID, codec codec.Codec[T]) (*coherence.Handle[T], error) {
	return coherence.WriteHandle(ctx, c.engine, id, codec)
}

// WithReadHandle is the functional-scoping convenience over ReadHandle.
func WithReadHandle[T any](ctx context.Context, c *Cluster, id objectid.ID, co codec.Codec[T], fn func(T) error) error {
	return coherence.WithReadHandle(ctx, c.engine, id, co, fn)
}

// WithWriteHandle is the functional-scoping convenience over WriteHandle.
func WithWriteHandle[T any](ctx context.Context, c *Cluster, id objectid.ID, co codec.Codec[T], fn func(T) (T, error)) error {
	return coherence.WithWriteHandle(ctx, c.engine, id, co, fn)
}

// Remove deletes id cluster-wide (spec.md §4.4.6).
func (c *Cluster) Remove(ctx context.Context, id objectid.ID) error {
	return c.engine.Remove(ctx, id)
}

// Exists reports whether id has a local entry on this node.
func (c *Cluster) Exists(id objectid.ID) bool {
	return c.engine.Exists(id)
}

// Snapshot returns a deep copy of this node's local object table, used
// by internal/monitor's /snapshot endpoint. It is this node's view
// only, not a cluster-wide consistent snapshot (spec.md §1 non-goals:
// "global snapshotting").
func (c *Cluster) Snapshot() map[string][]byte {
	return c.engine.Snapshot()
}

// LogIdentity writes the node's assembled identity at glog.V(1), the
// rough equivalent of the original's startup banner ("=== DSM Node
// Startup ===" in original_source/src/main.cpp).
func (c *Cluster) LogIdentity() {
	if glog.V(1) {
		info, _ := c.config.MyInfo()
		glog.Infof("cluster: node %d (%s) joined a %d-node cluster", c.config.MyID, info.Address(), c.config.TotalNodes())
	}
}
