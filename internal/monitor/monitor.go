// Package monitor exposes the operator-facing HTTP surface spec.md §1
// calls out as a named external collaborator ("the startup/CLI/monitor
// layers ... out of scope"), kept deliberately separate from
// internal/transport/httprpc's peer RPC surface. It is grounded on
// johnjansen-torua's cmd/node/main.go /health and /info endpoints, and
// built on github.com/go-chi/chi/v5 like the rest of this module's
// HTTP-facing code.
package monitor

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Snapshotter is the narrow view of cluster.Cluster the monitor needs:
// just enough to report identity and a local snapshot, never enough to
// mutate cluster state.
type Snapshotter interface {
	MyID() int
	Snapshot() map[string][]byte
}

// NewRouter builds the operator-facing router: GET /health (liveness)
// and GET /snapshot (this node's local object table, base64-encoded by
// encoding/json's default []byte handling).
//
// /snapshot is explicitly a single node's view, not a cluster-wide
// consistent snapshot — spec.md §1 lists "global snapshotting" as a
// non-goal, and stitching per-node snapshots into one consistent view
// would require coordination this module doesn't implement.
func NewRouter(s Snapshotter) chi.Router {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	r.Get("/snapshot", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(snapshotResponse{
			NodeID:  s.MyID(),
			Objects: s.Snapshot(),
		})
	})

	return r
}

type snapshotResponse struct {
	NodeID  int               `json:"node_id"`
	Objects map[string][]byte `json:"objects"`
}
