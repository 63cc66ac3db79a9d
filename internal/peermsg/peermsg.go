// Package peermsg defines the abstract peer messaging interface (C4 in
// spec.md §2) and the wire-visible message shapes from spec.md §6. It
// is grounded on original_source's DsmNetwork (include/net/DsmNetwork.h)
// for the method set, and follows the Go idiom of one interface with
// many RPC methods plus a degenerate implementation (here, Blackhole)
// every real transport can be compared against in tests.
package peermsg

import (
	"context"

	"github.com/yalidogan/Distributed-Shared-Memory-Middleware/internal/dsmerr"
	"github.com/yalidogan/Distributed-Shared-Memory-Middleware/internal/objectid"
)

// FetchRequest is the wire shape for FetchFromHome, spec.md §6.
type FetchRequest struct {
	ObjectName      string
	RequesterNodeID int
}

// FetchReply is the wire shape for the FetchFromHome response.
type FetchReply struct {
	Found      bool
	ObjectName string
	Data       []byte
}

// UpdateMsg backs both WriteToHome and CacheUpdate.
type UpdateMsg struct {
	ObjectName   string
	Data         []byte
	SenderNodeID int
}

// RemoveMsg backs both RemoveToHome and CacheRemove.
type RemoveMsg struct {
	ObjectName   string
	SenderNodeID int
}

// LockRequest backs LockAcquire and LockRelease.
type LockRequest struct {
	ClientID    int
	ObjectID    string
	IsWriteLock bool
}

// Messenger is the injected peer transport the coherence engine is
// driven by and consumes by reference (spec.md §3's "injected and
// owned externally" relationship, §6's outbound call list). Every
// method takes a context so a concrete transport can honor
// cancellation/timeouts even though the core contract doesn't require
// them (spec.md §5).
type Messenger interface {
	FetchFromHome(ctx context.Context, peer int, id objectid.ID) (FetchReply, error)
	WriteToHome(ctx context.Context, peer int, id objectid.ID, data []byte) error
	CacheUpdate(ctx context.Context, peer int, id objectid.ID, data []byte) error
	RemoveToHome(ctx context.Context, peer int, id objectid.ID) error
	CacheRemove(ctx context.Context, peer int, id objectid.ID) error
	// LockAcquire blocks until the remote node's local lock manager
	// grants the request (spec.md §4.4.1).
	LockAcquire(ctx context.Context, peer int, id objectid.ID, isWrite bool) error
	LockRelease(ctx context.Context, peer int, id objectid.ID, isWrite bool) error
}

// Handlers is what a concrete transport dispatches inbound RPCs to —
// the seven entry points of spec.md §4.4.5. The coherence engine
// implements this; the transport adapter never needs to know the
// engine's concrete type, matching spec.md §9's "the engine does not
// depend on the transport's types" design note.
type Handlers interface {
	OnFetchFromHome(ctx context.Context, from int, id objectid.ID) (FetchReply, error)
	OnWriteToHome(ctx context.Context, from int, id objectid.ID, data []byte) error
	OnCacheUpdate(ctx context.Context, id objectid.ID, data []byte) error
	OnRemoveToHome(ctx context.Context, from int, id objectid.ID) error
	OnCacheRemove(ctx context.Context, id objectid.ID) error
	OnLockAcquire(ctx context.Context, from int, id objectid.ID, isWrite bool) error
	OnLockRelease(ctx context.Context, from int, id objectid.ID, isWrite bool) error
}

// Blackhole implements Messenger by failing every call: a safe default
// for a peer slot nobody has wired up yet, and a convenient target for
// "what if this RPC fails" tests.
type Blackhole struct{}

func (Blackhole) FetchFromHome(ctx context.Context, peer int, id objectid.ID) (FetchReply, error) {
	return FetchReply{}, dsmerr.TransportError("blackhole: no route to peer %d", peer)
}

func (Blackhole) WriteToHome(ctx context.Context, peer int, id objectid.ID, data []byte) error {
	return dsmerr.TransportError("blackhole: no route to peer %d", peer)
}

func (Blackhole) CacheUpdate(ctx context.Context, peer int, id objectid.ID, data []byte) error {
	return dsmerr.TransportError("blackhole: no route to peer %d", peer)
}

func (Blackhole) RemoveToHome(ctx context.Context, peer int, id objectid.ID) error {
	return dsmerr.TransportError("blackhole: no route to peer %d", peer)
}

func (Blackhole) CacheRemove(ctx context.Context, peer int, id objectid.ID) error {
	return dsmerr.TransportError("blackhole: no route to peer %d", peer)
}

func (Blackhole) LockAcquire(ctx context.Context, peer int, id objectid.ID, isWrite bool) error {
	return dsmerr.TransportError("blackhole: no route to peer %d", peer)
}

func (Blackhole) LockRelease(ctx context.Context, peer int, id objectid.ID, isWrite bool) error {
	return dsmerr.TransportError("blackhole: no route to peer %d", peer)
}

var _ Messenger = Blackhole{}
