// Package placement computes the deterministic (home, backup) pair for
// an object (C5 in spec.md §2). The hash function is fixed by the wire
// contract in spec.md §4.1 — FNV-1a, 32-bit, offset basis 2166136261,
// prime 16777619 — which is exactly what Go's hash/fnv.New32a()
// implements. That choice of hash function is grounded on
// johnjansen-torua's internal/shard/shard.go (OwnsKey), the one repo
// in the pack that already reaches for hash/fnv instead of rolling its
// own hash, for the same "pick a shard deterministically" purpose.
package placement

import (
	"hash/fnv"

	"github.com/yalidogan/Distributed-Shared-Memory-Middleware/internal/objectid"
)

// Table computes home/backup assignments for a fixed cluster size.
// It carries no mutable state: placement is a pure function of
// (id, totalNodes), so a Table is safe to share and call concurrently
// without synchronization.
type Table struct {
	totalNodes int
}

// New builds a placement Table for a cluster of the given size.
// totalNodes must be >= 1.
func New(totalNodes int) Table {
	if totalNodes < 1 {
		panic("placement: totalNodes must be >= 1")
	}
	return Table{totalNodes: totalNodes}
}

// TotalNodes returns the cluster size this table was built for.
func (t Table) TotalNodes() int {
	return t.totalNodes
}

func hash32(id objectid.ID) uint32 {
	h := fnv.New32a()
	h.Write(id.Bytes())
	return h.Sum32()
}

// Home returns the unique node where id's canonical state lives.
func (t Table) Home(id objectid.ID) int {
	return int(hash32(id) % uint32(t.totalNodes))
}

// Backup returns the node that replicates id alongside Home. When
// totalNodes == 1, Backup degrades to Home (spec.md §4.1's
// collision-safety clause) and all backup-directed operations become
// no-ops with respect to a second peer.
func (t Table) Backup(id objectid.ID) int {
	if t.totalNodes <= 1 {
		return t.Home(id)
	}
	return int((hash32(id) + 1) % uint32(t.totalNodes))
}

// HomeAndBackup is a convenience wrapper returning both assignments
// from a single hash computation.
func (t Table) HomeAndBackup(id objectid.ID) (home, backup int) {
	h := hash32(id)
	home = int(h % uint32(t.totalNodes))
	if t.totalNodes <= 1 {
		return home, home
	}
	backup = int((h + 1) % uint32(t.totalNodes))
	return home, backup
}
