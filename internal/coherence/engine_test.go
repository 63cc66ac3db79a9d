package coherence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yalidogan/Distributed-Shared-Memory-Middleware/internal/codec"
	"github.com/yalidogan/Distributed-Shared-Memory-Middleware/internal/objectid"
	"github.com/yalidogan/Distributed-Shared-Memory-Middleware/internal/peermsg"
)

// newCluster wires n Engines together through one shared LocalMessenger,
// the same in-process fixture spec.md §8's literal scenarios are
// phrased against.
func newCluster(n int) []*Engine {
	lm := peermsg.NewLocalMessenger()
	engines := make([]*Engine, n)
	for i := 0; i < n; i++ {
		engines[i] = New(i, n, lm.NodeView(i))
	}
	for i := 0; i < n; i++ {
		lm.Register(i, engines[i])
	}
	return engines
}

// TestScenarioHappyPathWriteRead is spec.md §8 scenario 1: a write from
// one node is visible to a read from another, N=3.
func TestScenarioHappyPathWriteRead(t *testing.T) {
	engines := newCluster(3)
	ctx := context.Background()
	id := objectid.New("alpha")
	str := codec.StringCodec{}

	writer := engines[0]
	wh, err := WriteHandle(ctx, writer, id, str)
	require.NoError(t, err)
	require.NoError(t, wh.Set("hello"))
	require.NoError(t, wh.Close(ctx))

	for _, reader := range engines {
		rh, err := ReadHandle(ctx, reader, id, str)
		require.NoError(t, err)
		assert.Equal(t, "hello", rh.Get())
		require.NoError(t, rh.Close(ctx))
	}
}

// TestScenarioFetchThenCacheRegistersReader is spec.md §8 scenario 2:
// after a non-owning node fetches an object, the home node's meta table
// lists it as a cacher, and a subsequent write reaches it via
// CacheUpdate without another explicit fetch.
func TestScenarioFetchThenCacheRegistersReader(t *testing.T) {
	engines := newCluster(3)
	ctx := context.Background()
	id := objectid.New("beta")
	str := codec.StringCodec{}

	home := engines[0].Home(id)
	backup := engines[0].Backup(id)
	var plain int
	for i := 0; i < 3; i++ {
		if i != home && i != backup {
			plain = i
		}
	}

	wh, err := WriteHandle(ctx, engines[home], id, str)
	require.NoError(t, err)
	require.NoError(t, wh.Set("v1"))
	require.NoError(t, wh.Close(ctx))

	rh, err := ReadHandle(ctx, engines[plain], id, str)
	require.NoError(t, err)
	assert.Equal(t, "v1", rh.Get())
	require.NoError(t, rh.Close(ctx))

	assert.Contains(t, engines[home].meta.cachers(id), plain)

	wh2, err := WriteHandle(ctx, engines[home], id, str)
	require.NoError(t, err)
	require.NoError(t, wh2.Set("v2"))
	require.NoError(t, wh2.Close(ctx))

	assert.True(t, engines[plain].store.Exists(id))
	b, err := engines[plain].store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(b))
}

// TestScenarioWriterPreferenceSingleNode is spec.md §8 scenario 3: with
// N=1 (home==backup==self), a reader holds, a writer queues behind it,
// and a second reader arriving after the writer is granted only after
// the writer, per the local lock manager's writer-preference rule.
func TestScenarioWriterPreferenceSingleNode(t *testing.T) {
	engines := newCluster(1)
	ctx := context.Background()
	id := objectid.New("gamma")
	str := codec.StringCodec{}
	e := engines[0]

	wh, err := WriteHandle(ctx, e, id, str)
	require.NoError(t, err)
	require.NoError(t, wh.Set("seed"))
	require.NoError(t, wh.Close(ctx))

	var order []string
	var mu sync.Mutex
	record := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}

	rh1, err := ReadHandle(ctx, e, id, str)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		wh2, err := WriteHandle(ctx, e, id, str)
		require.NoError(t, err)
		record("writer")
		require.NoError(t, wh2.Set("updated"))
		require.NoError(t, wh2.Close(ctx))
	}()

	// Give the writer time to queue behind rh1 before a second reader
	// arrives, then give that reader time to queue behind the writer.
	time.Sleep(20 * time.Millisecond)
	wg.Add(1)
	go func() {
		defer wg.Done()
		rh2, err := ReadHandle(ctx, e, id, str)
		require.NoError(t, err)
		record("late-reader")
		require.NoError(t, rh2.Close(ctx))
	}()
	time.Sleep(20 * time.Millisecond)

	record("reader")
	require.NoError(t, rh1.Close(ctx))
	wg.Wait()

	assert.Equal(t, []string{"reader", "writer", "late-reader"}, order)
}

// TestScenarioRemovePropagation is spec.md §8 scenario 4: Remove issued
// from the home node erases the object on both home and backup, N=2.
func TestScenarioRemovePropagation(t *testing.T) {
	engines := newCluster(2)
	ctx := context.Background()
	id := objectid.New("delta")
	str := codec.StringCodec{}

	home := engines[0].Home(id)
	backup := engines[0].Backup(id)

	wh, err := WriteHandle(ctx, engines[home], id, str)
	require.NoError(t, err)
	require.NoError(t, wh.Set("to-remove"))
	require.NoError(t, wh.Close(ctx))

	assert.True(t, engines[home].Exists(id))
	assert.True(t, engines[backup].Exists(id))

	require.NoError(t, engines[home].Remove(ctx, id))

	assert.False(t, engines[home].Exists(id))
	assert.False(t, engines[backup].Exists(id))
}

// TestScenarioFetchFallsBackToBackup is spec.md §8 scenario 5: if home
// has no local entry (e.g. it restarted) a non-owning node's fetch
// still succeeds via backup, N=3.
func TestScenarioFetchFallsBackToBackup(t *testing.T) {
	engines := newCluster(3)
	ctx := context.Background()
	id := objectid.New("epsilon")
	str := codec.StringCodec{}

	home := engines[0].Home(id)
	backup := engines[0].Backup(id)
	var plain int
	for i := 0; i < 3; i++ {
		if i != home && i != backup {
			plain = i
		}
	}

	engines[backup].store.Put(id, []byte("from-backup"))
	// Home has no local entry and neither do cachers: fetch must reach
	// backup via the "I am home with no entry" branch when called from
	// home, or via the plain-client "else" branch when called from a
	// third party. Exercise the plain-client branch here.

	rh, err := ReadHandle(ctx, engines[plain], id, str)
	require.NoError(t, err)
	assert.Equal(t, "from-backup", rh.Get())
	require.NoError(t, rh.Close(ctx))
}

// TestScenarioReadModifyWriteRoundTrip is spec.md §8 scenario 6: a
// read-modify-write loop run 100 times from two alternating nodes never
// loses an increment, N=2.
func TestScenarioReadModifyWriteRoundTrip(t *testing.T) {
	engines := newCluster(2)
	ctx := context.Background()
	id := objectid.New("zeta")
	i64 := codec.Int64Codec{}

	wh, err := WriteHandle(ctx, engines[0], id, i64)
	require.NoError(t, err)
	require.NoError(t, wh.Set(int64(0)))
	require.NoError(t, wh.Close(ctx))

	for n := 0; n < 100; n++ {
		e := engines[n%2]
		err := WithWriteHandle(ctx, e, id, i64, func(v int64) (int64, error) {
			return v + 1, nil
		})
		require.NoError(t, err)
	}

	rh, err := ReadHandle(ctx, engines[0], id, i64)
	require.NoError(t, err)
	assert.Equal(t, int64(100), rh.Get())
	require.NoError(t, rh.Close(ctx))
}

// TestP4CommitOrdering is spec.md §8 P4: two writers racing for the same
// object never interleave their encode/store/broadcast sequence —
// commits apply in the order their write locks were granted.
func TestP4CommitOrdering(t *testing.T) {
	engines := newCluster(1)
	ctx := context.Background()
	id := objectid.New("eta")
	str := codec.StringCodec{}
	e := engines[0]

	wh0, err := WriteHandle(ctx, e, id, str)
	require.NoError(t, err)
	require.NoError(t, wh0.Set(""))
	require.NoError(t, wh0.Close(ctx))

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := WriteHandle(ctx, e, id, str)
			if err != nil {
				return
			}
			_ = h.Set(h.Get() + "x")
			_ = h.Close(ctx)
		}()
	}
	wg.Wait()

	b, err := e.store.Get(id)
	require.NoError(t, err)
	assert.Len(t, b, n)
}

// TestP5CacherConvergence is spec.md §8 P5: every node that has fetched
// an object converges to the latest value after a commit, with no
// further fetch on their part.
func TestP5CacherConvergence(t *testing.T) {
	engines := newCluster(4)
	ctx := context.Background()
	id := objectid.New("theta")
	str := codec.StringCodec{}
	home := engines[0].Home(id)

	wh, err := WriteHandle(ctx, engines[home], id, str)
	require.NoError(t, err)
	require.NoError(t, wh.Set("v0"))
	require.NoError(t, wh.Close(ctx))

	for i, e := range engines {
		if i == home {
			continue
		}
		rh, err := ReadHandle(ctx, e, id, str)
		require.NoError(t, err)
		require.NoError(t, rh.Close(ctx))
	}

	wh2, err := WriteHandle(ctx, engines[home], id, str)
	require.NoError(t, err)
	require.NoError(t, wh2.Set("v1"))
	require.NoError(t, wh2.Close(ctx))

	for i, e := range engines {
		if i == home {
			continue
		}
		if !e.store.Exists(id) {
			continue
		}
		b, err := e.store.Get(id)
		require.NoError(t, err)
		assert.Equal(t, "v1", string(b))
	}
}

// TestP8RemovePropagation is spec.md §8 P8: after Remove returns, the
// object is gone everywhere it was ever present, including cachers.
func TestP8RemovePropagation(t *testing.T) {
	engines := newCluster(3)
	ctx := context.Background()
	id := objectid.New("iota")
	str := codec.StringCodec{}
	home := engines[0].Home(id)
	backup := engines[0].Backup(id)
	var plain int
	for i := 0; i < 3; i++ {
		if i != home && i != backup {
			plain = i
		}
	}

	wh, err := WriteHandle(ctx, engines[home], id, str)
	require.NoError(t, err)
	require.NoError(t, wh.Set("gone-soon"))
	require.NoError(t, wh.Close(ctx))

	rh, err := ReadHandle(ctx, engines[plain], id, str)
	require.NoError(t, err)
	require.NoError(t, rh.Close(ctx))
	require.True(t, engines[plain].Exists(id))

	require.NoError(t, engines[plain].Remove(ctx, id))

	assert.False(t, engines[home].Exists(id))
	assert.False(t, engines[backup].Exists(id))
	assert.False(t, engines[plain].Exists(id))
}

// TestRoleMismatchErrorOnWrongNode exercises the OnWriteToHome/
// OnRemoveToHome guard directly: a node with neither role rejects the
// inbound RPC.
func TestRoleMismatchErrorOnWrongNode(t *testing.T) {
	engines := newCluster(3)
	ctx := context.Background()
	id := objectid.New("kappa")
	home := engines[0].Home(id)
	backup := engines[0].Backup(id)
	var plain int
	for i := 0; i < 3; i++ {
		if i != home && i != backup {
			plain = i
		}
	}

	err := engines[plain].OnWriteToHome(ctx, 0, id, []byte("x"))
	assert.Error(t, err)

	err = engines[plain].OnRemoveToHome(ctx, 0, id)
	assert.Error(t, err)
}
