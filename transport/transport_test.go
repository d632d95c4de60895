package transport

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/f3rmion/keyserver/job"
	"github.com/f3rmion/keyserver/keyshare"
	"github.com/f3rmion/keyserver/keystore"
	"github.com/f3rmion/keyserver/unknownsessions"
)

func node(b byte) keyshare.NodeID {
	var id keyshare.NodeID
	id[0] = b
	return id
}

func session(i int) keyshare.SessionID {
	var id keyshare.SessionID
	id[0], id[1] = byte(i>>8), byte(i)
	return id
}

// storeMissing holds n sessions that all lack target.
func storeMissing(t *testing.T, n int, holder keyshare.NodeID) *keystore.MemoryStore {
	t.Helper()

	s := keystore.NewMemoryStore()
	for i := range n {
		rec := &keyshare.Record{IDNumbers: map[keyshare.NodeID]keyshare.ShareIndex{holder: {31: 1}}}
		require.NoError(t, s.Insert(session(i), rec))
	}
	return s
}

func newDiscoveryServer(t *testing.T, view keystore.View, cfg ServerConfig) *httptest.Server {
	t.Helper()

	srv := NewServer(cfg)
	Handle[keyshare.NodeID, keyshare.SessionSet](srv, "unknown-sessions", unknownsessions.NewResponder(view), NodeIDCodec{}, SessionSetCodec{})
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts
}

func newDiscoveryClient(peers map[keyshare.NodeID]string, compressAbove int) *Client[keyshare.NodeID, keyshare.SessionSet] {
	return NewClient[keyshare.NodeID, keyshare.SessionSet]("unknown-sessions", ClientConfig{Peers: peers, CompressAbove: compressAbove}, NodeIDCodec{}, SessionSetCodec{})
}

func TestSendRespond(t *testing.T) {
	holder, target := node(1), node(9)

	tests := []struct {
		name          string
		sessions      int
		compressAbove int
	}{
		{"Small", 3, 0},
		{"CompressedReply", 500, 64},
		{"CompressionDisabled", 500, -1},
		{"Empty", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newDiscoveryServer(t, storeMissing(t, tt.sessions, holder), ServerConfig{CompressAbove: tt.compressAbove})
			c := newDiscoveryClient(map[keyshare.NodeID]string{holder: ts.URL + "/"}, tt.compressAbove)

			action, err := c.Send(context.Background(), holder, target)
			require.NoError(t, err)
			require.False(t, action.Rejected())
			require.Len(t, action.Response, tt.sessions)

			action, err = c.Send(context.Background(), holder, holder)
			require.NoError(t, err)
			require.Empty(t, action.Response)
		})
	}
}

// refuser rejects every request with a fixed payload.
type refuser struct{}

func (refuser) ProcessRequest(keyshare.NodeID) (job.RequestAction[keyshare.SessionSet], error) {
	return job.RejectRequest(keyshare.NewSessionSet(session(7))), nil
}

type failing struct{}

func (failing) ProcessRequest(keyshare.NodeID) (job.RequestAction[keyshare.SessionSet], error) {
	return job.RequestAction[keyshare.SessionSet]{}, errors.New("disk gone")
}

func TestSendReject(t *testing.T) {
	srv := NewServer(ServerConfig{})
	Handle[keyshare.NodeID, keyshare.SessionSet](srv, "refuse", refuser{}, NodeIDCodec{}, SessionSetCodec{})
	Handle[keyshare.NodeID, keyshare.SessionSet](srv, "fail", failing{}, NodeIDCodec{}, SessionSetCodec{})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	peers := map[keyshare.NodeID]string{node(1): ts.URL}

	t.Run("Refused", func(t *testing.T) {
		c := NewClient[keyshare.NodeID, keyshare.SessionSet]("refuse", ClientConfig{Peers: peers}, NodeIDCodec{}, SessionSetCodec{})
		action, err := c.Send(context.Background(), node(1), node(2))
		require.NoError(t, err)
		require.True(t, action.Rejected())
		require.Equal(t, keyshare.NewSessionSet(session(7)), action.Response)
	})

	t.Run("ResponderFault", func(t *testing.T) {
		c := NewClient[keyshare.NodeID, keyshare.SessionSet]("fail", ClientConfig{Peers: peers}, NodeIDCodec{}, SessionSetCodec{})
		_, err := c.Send(context.Background(), node(1), node(2))
		var status *StatusError
		require.ErrorAs(t, err, &status)
		require.Equal(t, http.StatusInternalServerError, status.Code)
	})

	t.Run("UnknownKind", func(t *testing.T) {
		c := NewClient[keyshare.NodeID, keyshare.SessionSet]("nope", ClientConfig{Peers: peers}, NodeIDCodec{}, SessionSetCodec{})
		_, err := c.Send(context.Background(), node(1), node(2))
		var status *StatusError
		require.ErrorAs(t, err, &status)
		require.Equal(t, http.StatusNotFound, status.Code)
	})

	t.Run("UnknownPeer", func(t *testing.T) {
		c := NewClient[keyshare.NodeID, keyshare.SessionSet]("refuse", ClientConfig{Peers: peers}, NodeIDCodec{}, SessionSetCodec{})
		_, err := c.Send(context.Background(), node(3), node(2))
		require.ErrorIs(t, err, ErrUnknownPeer)
	})
}

func TestServerRejectsBadBodies(t *testing.T) {
	ts := newDiscoveryServer(t, keystore.NewMemoryStore(), ServerConfig{})
	url := ts.URL + JobPath("unknown-sessions")

	resp, err := http.Post(url, "application/octet-stream", bytes.NewReader([]byte{1, 2, 3}))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(make([]byte, keyshare.IDSize)))
	require.NoError(t, err)
	req.Header.Set("Content-Encoding", "br")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)

	resp, err = http.Get(url)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestReadiness(t *testing.T) {
	srv := NewServer(ServerConfig{})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	get := func(path string) int {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	require.Equal(t, http.StatusOK, get("/livez"))
	require.Equal(t, http.StatusOK, get("/readyz"))
	srv.SetReady(false)
	require.Equal(t, http.StatusServiceUnavailable, get("/readyz"))
	require.Equal(t, http.StatusOK, get("/livez"))
}

// TestDiscoverOverHTTP runs the whole job through real HTTP servers, with
// one peer down.
func TestDiscoverOverHTTP(t *testing.T) {
	self, peerA, peerB, down := node(1), node(2), node(3), node(4)
	target := node(9)

	local := storeMissing(t, 2, self)
	tsA := newDiscoveryServer(t, storeMissing(t, 3, peerA), ServerConfig{})
	tsB := newDiscoveryServer(t, keystore.NewMemoryStore(), ServerConfig{})

	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	client := newDiscoveryClient(map[keyshare.NodeID]string{
		peerA: tsA.URL,
		peerB: tsB.URL,
		down:  deadURL,
	}, 0)

	nodes := keyshare.NewNodeSet(self, peerA, peerB, down)
	report, summary, err := unknownsessions.Discover(context.Background(), job.Config{Self: self, MinResponses: 3}, target, nodes, client, local)
	require.NoError(t, err)
	require.Equal(t, keyshare.NewSessionSet(session(0), session(1), session(2)), report.Sessions())
	require.Equal(t, keyshare.NewNodeSet(self, peerA), report.Reporters(session(0)))
	require.Equal(t, keyshare.NewNodeSet(peerA), report.Reporters(session(2)))
	require.Contains(t, summary.Failed, down)
}

func TestCompression(t *testing.T) {
	data := bytes.Repeat([]byte("session"), 1000)

	out, compressed, err := compressBody(data, 100)
	require.NoError(t, err)
	require.True(t, compressed)
	require.Less(t, len(out), len(data))

	back, err := decompressBody(out, "ZSTD")
	require.NoError(t, err)
	require.Equal(t, data, back)

	out, compressed, err = compressBody(data, -1)
	require.NoError(t, err)
	require.False(t, compressed)
	require.Equal(t, data, out)

	_, err = decompressBody([]byte("not zstd"), encodingZstd)
	require.Error(t, err)

	require.True(t, acceptsZstd("gzip, zstd;q=0.9"))
	require.False(t, acceptsZstd("gzip"))
}

func TestNodeIDCodec(t *testing.T) {
	var c NodeIDCodec
	enc, err := c.Encode(node(5))
	require.NoError(t, err)

	got, err := c.Decode(enc)
	require.NoError(t, err)
	require.Equal(t, node(5), got)

	_, err = c.Decode(enc[:5])
	require.ErrorIs(t, err, keyshare.ErrMalformed)
}
