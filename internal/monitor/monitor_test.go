package monitor

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSnapshotter struct {
	id   int
	data map[string][]byte
}

func (f fakeSnapshotter) MyID() int                   { return f.id }
func (f fakeSnapshotter) Snapshot() map[string][]byte { return f.data }

func TestHealthEndpoint(t *testing.T) {
	r := NewRouter(fakeSnapshotter{id: 1, data: nil})
	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSnapshotEndpoint(t *testing.T) {
	data := map[string][]byte{"foo": []byte("bar")}
	r := NewRouter(fakeSnapshotter{id: 2, data: data})
	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/snapshot")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out snapshotResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 2, out.NodeID)
	assert.Equal(t, []byte("bar"), out.Objects["foo"])
}
