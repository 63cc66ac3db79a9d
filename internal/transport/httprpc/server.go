package httprpc

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang/glog"
	"github.com/google/uuid"

	"github.com/yalidogan/Distributed-Shared-Memory-Middleware/internal/objectid"
	"github.com/yalidogan/Distributed-Shared-Memory-Middleware/internal/peermsg"
)

// NewRouter builds the chi.Router that dispatches the seven inbound
// RPCs of spec.md §4.4.5 to h. One router is mounted per node process;
// internal/cluster's Cluster.Handlers() is the h every real deployment
// passes in (internal/monitor's router is served by a separate
// *http.Server, which cmd/dsmnode binds to -monitor-listen, to keep the
// RPC surface and the operator-facing surface separate).
//
// requestIDMiddleware stamps every inbound RPC with a
// github.com/google/uuid request id before dispatch, the one piece of
// cross-cutting ambient behavior this transport adds beyond what
// peermsg.Handlers itself requires. The id is minted on the receiving
// node, logged there at glog.V(2), returned in the X-Request-Id response
// header and stored in the request context (see RequestID); Client does
// not read or forward it, so each hop of a commit's fan-out gets its
// own id.
func NewRouter(h peermsg.Handlers) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)

	r.Post("/dsm/fetch", handleFetch(h))
	r.Post("/dsm/write", handleWrite(h))
	r.Post("/dsm/cache-update", handleCacheUpdate(h))
	r.Post("/dsm/remove", handleRemove(h))
	r.Post("/dsm/cache-remove", handleCacheRemove(h))
	r.Post("/dsm/lock-acquire", handleLockAcquire(h))
	r.Post("/dsm/lock-release", handleLockRelease(h))

	return r
}

type requestIDCtxKey struct{}

// RequestID extracts the request id requestIDMiddleware stamped onto
// ctx, or "" if none is present (e.g. a handler invoked directly in a
// test rather than through this router).
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDCtxKey{}).(string)
	return id
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		if glog.V(2) {
			glog.Infof("httprpc: %s %s request=%s", r.Method, r.URL.Path, id)
		}
		ctx := context.WithValue(r.Context(), requestIDCtxKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeJSONError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func handleFetch(h peermsg.Handlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req peermsg.FetchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		reply, err := h.OnFetchFromHome(r.Context(), req.RequesterNodeID, objectid.New(req.ObjectName))
		if err != nil {
			writeJSONError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(wireFetchReply{Found: reply.Found, ObjectName: reply.ObjectName, Data: reply.Data})
	}
}

func handleWrite(h peermsg.Handlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req peermsg.UpdateMsg
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := h.OnWriteToHome(r.Context(), req.SenderNodeID, objectid.New(req.ObjectName), req.Data); err != nil {
			writeJSONError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleCacheUpdate(h peermsg.Handlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req peermsg.UpdateMsg
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := h.OnCacheUpdate(r.Context(), objectid.New(req.ObjectName), req.Data); err != nil {
			writeJSONError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleRemove(h peermsg.Handlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req peermsg.RemoveMsg
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := h.OnRemoveToHome(r.Context(), req.SenderNodeID, objectid.New(req.ObjectName)); err != nil {
			writeJSONError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleCacheRemove(h peermsg.Handlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req peermsg.RemoveMsg
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := h.OnCacheRemove(r.Context(), objectid.New(req.ObjectName)); err != nil {
			writeJSONError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleLockAcquire(h peermsg.Handlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req peermsg.LockRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := h.OnLockAcquire(r.Context(), req.ClientID, objectid.New(req.ObjectID), req.IsWriteLock); err != nil {
			writeJSONError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleLockRelease(h peermsg.Handlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req peermsg.LockRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := h.OnLockRelease(r.Context(), req.ClientID, objectid.New(req.ObjectID), req.IsWriteLock); err != nil {
			writeJSONError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
