package httprpc

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yalidogan/Distributed-Shared-Memory-Middleware/internal/codec"
	"github.com/yalidogan/Distributed-Shared-Memory-Middleware/internal/coherence"
	"github.com/yalidogan/Distributed-Shared-Memory-Middleware/internal/objectid"
	"github.com/yalidogan/Distributed-Shared-Memory-Middleware/internal/peermsg"
)

// twoHTTPEngines starts two httptest servers, each backed by its own
// coherence.Engine wired to the other via a real Client, proving the
// wire format round-trips through actual HTTP+JSON rather than just
// the in-process LocalMessenger.
func twoHTTPEngines(t *testing.T) (*coherence.Engine, *coherence.Engine, func()) {
	t.Helper()

	// Engines are constructed after the servers exist, since each
	// engine's Messenger needs to know both servers' URLs up front, but
	// each server needs its engine to exist to build a router. Bridge
	// the cycle with a lazily-filled handler slot.
	var h0, h1 peermsg.Handlers
	srv0 := httptest.NewServer(NewRouter(handlerFunc(func() peermsg.Handlers { return h0 })))
	srv1 := httptest.NewServer(NewRouter(handlerFunc(func() peermsg.Handlers { return h1 })))

	peers0 := map[int]string{0: srv0.URL, 1: srv1.URL}
	peers1 := map[int]string{0: srv0.URL, 1: srv1.URL}

	e0 := coherence.New(0, 2, NewSelfTaggingMessenger(NewClient(peers0), 0))
	e1 := coherence.New(1, 2, NewSelfTaggingMessenger(NewClient(peers1), 1))
	h0, h1 = e0, e1

	return e0, e1, func() {
		srv0.Close()
		srv1.Close()
	}
}

// handlerFunc adapts a lazily-resolved peermsg.Handlers getter to the
// peermsg.Handlers interface, letting NewRouter be built before the
// engine it will dispatch to exists.
type handlerFunc func() peermsg.Handlers

func (f handlerFunc) OnFetchFromHome(ctx context.Context, from int, id objectid.ID) (peermsg.FetchReply, error) {
	return f().OnFetchFromHome(ctx, from, id)
}
func (f handlerFunc) OnWriteToHome(ctx context.Context, from int, id objectid.ID, data []byte) error {
	return f().OnWriteToHome(ctx, from, id, data)
}
func (f handlerFunc) OnCacheUpdate(ctx context.Context, id objectid.ID, data []byte) error {
	return f().OnCacheUpdate(ctx, id, data)
}
func (f handlerFunc) OnRemoveToHome(ctx context.Context, from int, id objectid.ID) error {
	return f().OnRemoveToHome(ctx, from, id)
}
func (f handlerFunc) OnCacheRemove(ctx context.Context, id objectid.ID) error {
	return f().OnCacheRemove(ctx, id)
}
func (f handlerFunc) OnLockAcquire(ctx context.Context, from int, id objectid.ID, isWrite bool) error {
	return f().OnLockAcquire(ctx, from, id, isWrite)
}
func (f handlerFunc) OnLockRelease(ctx context.Context, from int, id objectid.ID, isWrite bool) error {
	return f().OnLockRelease(ctx, from, id, isWrite)
}

var _ peermsg.Handlers = handlerFunc(nil)

func TestHTTPRoundTripWriteThenRead(t *testing.T) {
	e0, e1, cleanup := twoHTTPEngines(t)
	defer cleanup()

	ctx := context.Background()
	id := objectid.New("http-foo")
	str := codec.StringCodec{}

	h, err := coherence.WriteHandle(ctx, e0, id, str)
	require.NoError(t, err)
	require.NoError(t, h.Set("via-http"))
	require.NoError(t, h.Close(ctx))

	rh, err := coherence.ReadHandle(ctx, e1, id, str)
	require.NoError(t, err)
	assert.Equal(t, "via-http", rh.Get())
	require.NoError(t, rh.Close(ctx))
}
