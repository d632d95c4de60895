package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/f3rmion/keyserver/keyshare"
	"github.com/f3rmion/keyserver/keystore"
)

func nodeID(b byte) keyshare.NodeID {
	var id keyshare.NodeID
	id[0] = b
	return id
}

func sessionID(b byte) keyshare.SessionID {
	var id keyshare.SessionID
	id[0] = b
	return id
}

func storeWith(t *testing.T, sessions map[keyshare.SessionID][]keyshare.NodeID) *keystore.MemoryStore {
	t.Helper()

	s := keystore.NewMemoryStore()
	for id, holders := range sessions {
		rec := &keyshare.Record{IDNumbers: make(map[keyshare.NodeID]keyshare.ShareIndex)}
		for i, h := range holders {
			rec.IDNumbers[h] = keyshare.ShareIndex{31: byte(i + 1)}
		}
		require.NoError(t, s.Insert(id, rec))
	}
	return s
}

func TestAdminUnknownSessions(t *testing.T) {
	self, peer, target := nodeID(1), nodeID(2), nodeID(9)

	peerCfg := defaultConfig()
	peerNode, err := newNode(peerCfg, peer, storeWith(t, map[keyshare.SessionID][]keyshare.NodeID{
		sessionID(1): {peer, target},
		sessionID(2): {peer},
	}))
	require.NoError(t, err)
	peerSrv := httptest.NewServer(peerNode.server)
	defer peerSrv.Close()

	cfg := defaultConfig()
	cfg.Peers[peer.String()] = peerSrv.URL
	n, err := newNode(cfg, self, storeWith(t, map[keyshare.SessionID][]keyshare.NodeID{
		sessionID(2): {self, peer},
		sessionID(3): {self, target},
	}))
	require.NoError(t, err)
	srv := httptest.NewServer(n.server)
	defer srv.Close()

	t.Run("Report", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/admin/unknown-sessions/" + target.String())
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var got discoveryJSON
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
		require.Equal(t, target, got.Target)
		require.Equal(t, keyshare.NewNodeSet(self, peer), got.Accepted)
		require.Equal(t, []unknownSessionJSON{
			{Session: sessionID(2), Reporters: keyshare.NewNodeSet(self, peer)},
		}, got.Sessions)
	})

	t.Run("BadTarget", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/admin/unknown-sessions/xyz")
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("PeerDown", func(t *testing.T) {
		downCfg := defaultConfig()
		downCfg.Peers[peer.String()] = "http://127.0.0.1:1"
		down, err := newNode(downCfg, self, keystore.NewMemoryStore())
		require.NoError(t, err)
		downSrv := httptest.NewServer(down.server)
		defer downSrv.Close()

		resp, err := http.Get(downSrv.URL + "/admin/unknown-sessions/" + target.String())
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	})
}
