package unknownsessions

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/f3rmion/keyserver/job"
	"github.com/f3rmion/keyserver/keyshare"
	"github.com/f3rmion/keyserver/keystore"
)

func node(b byte) keyshare.NodeID {
	var id keyshare.NodeID
	id[0] = b
	return id
}

func session(b byte) keyshare.SessionID {
	var id keyshare.SessionID
	id[0] = b
	return id
}

// storeWith builds a memory store from session -> holder list.
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

var (
	nodeA, nodeB   = node(0xA), node(0xB)
	nodeR1, nodeR2 = node(0x01), node(0x02)
	s1, s2, s3     = session(1), session(2), session(3)
)

func TestProcessRequest(t *testing.T) {
	store := storeWith(t, map[keyshare.SessionID][]keyshare.NodeID{
		s1: {nodeA, nodeB},
		s2: {nodeA},
		s3: {},
	})
	r := NewResponder(store)

	tests := []struct {
		name   string
		target keyshare.NodeID
		want   keyshare.SessionSet
	}{
		{"HolderOfAll", nodeA, keyshare.SessionSet{s3}},
		{"PartialHolder", nodeB, keyshare.SessionSet{s2, s3}},
		{"Stranger", node(0xC), keyshare.SessionSet{s1, s2, s3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action, err := r.ProcessRequest(tt.target)
			require.NoError(t, err)
			require.False(t, action.Rejected())
			require.Equal(t, tt.want, action.Response)
		})
	}
}

func TestProcessRequestEmptyStore(t *testing.T) {
	action, err := NewResponder(keystore.NewMemoryStore()).ProcessRequest(nodeA)
	require.NoError(t, err)
	require.Empty(t, action.Response)
}

func TestProcessRequestDoesNotMutateStore(t *testing.T) {
	store := storeWith(t, map[keyshare.SessionID][]keyshare.NodeID{s1: {nodeA}})
	before, err := store.Get(s1)
	require.NoError(t, err)

	_, err = NewResponder(store).ProcessRequest(nodeB)
	require.NoError(t, err)

	after, err := store.Get(s1)
	require.NoError(t, err)
	require.True(t, before.Equal(after))
	require.Equal(t, 1, store.Len())
}

type failingView struct{ err error }

func (v failingView) Iterate(func(keyshare.SessionID, *keyshare.Record) error) error {
	return v.err
}

func TestProcessRequestForwardsStoreFault(t *testing.T) {
	fault := errors.New("disk on fire")

	_, err := NewResponder(failingView{err: fault}).ProcessRequest(nodeA)
	require.ErrorIs(t, err, fault)
}

func TestPrepareRequestIgnoresPeers(t *testing.T) {
	c := NewCoordinator(nodeB)

	for _, peers := range []keyshare.NodeSet{
		nil,
		keyshare.NewNodeSet(nodeA),
		keyshare.NewNodeSet(nodeA, nodeB, nodeR1),
	} {
		for _, peer := range append(peers, nodeR2) {
			req, err := c.PrepareRequest(peer, peers)
			require.NoError(t, err)
			require.Equal(t, nodeB, req)
		}
	}
	require.Equal(t, nodeB, c.Target())
}

func TestCheckResponseAlwaysAccepts(t *testing.T) {
	c := NewCoordinator(nodeA)
	for _, resp := range []keyshare.SessionSet{nil, {}, {s1, s2}} {
		action, err := c.CheckResponse(resp)
		require.NoError(t, err)
		require.Equal(t, job.Accept, action)
	}
}

func TestTwoResponderExample(t *testing.T) {
	r1 := NewResponder(storeWith(t, map[keyshare.SessionID][]keyshare.NodeID{
		s1: {nodeA, nodeB},
		s2: {nodeA},
	}))
	r2 := NewResponder(storeWith(t, map[keyshare.SessionID][]keyshare.NodeID{
		s1: {nodeA, nodeB},
		s3: {},
	}))

	c := NewCoordinator(nodeB)
	req, err := c.PrepareRequest(nodeR1, keyshare.NewNodeSet(nodeR1, nodeR2))
	require.NoError(t, err)

	a1, err := r1.ProcessRequest(req)
	require.NoError(t, err)
	require.Equal(t, keyshare.SessionSet{s2}, a1.Response)

	a2, err := r2.ProcessRequest(req)
	require.NoError(t, err)
	require.Equal(t, keyshare.SessionSet{s3}, a2.Response)

	report, err := c.ComputeResponse(map[keyshare.NodeID]keyshare.SessionSet{
		nodeR1: a1.Response,
		nodeR2: a2.Response,
	})
	require.NoError(t, err)
	require.Equal(t, Report{
		s2: keyshare.NodeSet{nodeR1},
		s3: keyshare.NodeSet{nodeR2},
	}, report)
}

func TestComputeResponse(t *testing.T) {
	c := NewCoordinator(nodeA)

	t.Run("Empty", func(t *testing.T) {
		report, err := c.ComputeResponse(nil)
		require.NoError(t, err)
		require.Empty(t, report)
	})

	t.Run("AllResponsesEmpty", func(t *testing.T) {
		report, err := c.ComputeResponse(map[keyshare.NodeID]keyshare.SessionSet{
			nodeR1: {},
			nodeR2: nil,
		})
		require.NoError(t, err)
		require.Empty(t, report)
	})

	t.Run("SharedSessions", func(t *testing.T) {
		report, err := c.ComputeResponse(map[keyshare.NodeID]keyshare.SessionSet{
			nodeR2: {s1, s2},
			nodeR1: {s1},
		})
		require.NoError(t, err)
		require.Equal(t, keyshare.NodeSet{nodeR1, nodeR2}, report.Reporters(s1))
		require.Equal(t, keyshare.NodeSet{nodeR2}, report.Reporters(s2))
		require.Nil(t, report.Reporters(s3))
		require.Equal(t, keyshare.SessionSet{s1, s2}, report.Sessions())
	})
}

func TestComputeResponseOrderIndependent(t *testing.T) {
	c := NewCoordinator(nodeA)
	rng := rand.New(rand.NewSource(7))

	responses := map[keyshare.NodeID]keyshare.SessionSet{}
	for n := byte(1); n <= 6; n++ {
		var set keyshare.SessionSet
		for s := byte(1); s <= 12; s++ {
			if rng.Intn(2) == 0 {
				set = append(set, session(s))
			}
		}
		responses[node(n)] = set
	}

	want, err := c.ComputeResponse(responses)
	require.NoError(t, err)
	wantBytes, err := want.MarshalBinary()
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		shuffled := make(map[keyshare.NodeID]keyshare.SessionSet, len(responses))
		for n, set := range responses {
			perm := append(keyshare.SessionSet(nil), set...)
			rng.Shuffle(len(perm), func(a, b int) { perm[a], perm[b] = perm[b], perm[a] })
			shuffled[n] = perm
		}

		got, err := c.ComputeResponse(shuffled)
		require.NoError(t, err)
		require.Equal(t, want, got)

		gotBytes, err := got.MarshalBinary()
		require.NoError(t, err)
		require.Equal(t, wantBytes, gotBytes)
	}
}

func TestComputeResponseDuplicateContent(t *testing.T) {
	c := NewCoordinator(nodeA)

	report, err := c.ComputeResponse(map[keyshare.NodeID]keyshare.SessionSet{
		nodeR1: {s1, s1, s2},
	})
	require.NoError(t, err)
	require.Equal(t, Report{
		s1: keyshare.NodeSet{nodeR1},
		s2: keyshare.NodeSet{nodeR1},
	}, report)
}

func TestReportNeverHasEmptyEntries(t *testing.T) {
	c := NewCoordinator(nodeA)
	report, err := c.ComputeResponse(map[keyshare.NodeID]keyshare.SessionSet{
		nodeR1: {s1},
		nodeR2: {},
	})
	require.NoError(t, err)
	for s, reporters := range report {
		require.NotEmpty(t, reporters, "session %s", s)
	}
}

func TestReportEncoding(t *testing.T) {
	report := Report{
		s3: keyshare.NodeSet{nodeR1, nodeR2},
		s1: keyshare.NodeSet{nodeR2},
	}

	data, err := report.MarshalBinary()
	require.NoError(t, err)

	var decoded Report
	require.NoError(t, decoded.UnmarshalBinary(data))
	require.Equal(t, report, decoded)

	require.ErrorIs(t, decoded.UnmarshalBinary(data[:len(data)-1]), keyshare.ErrMalformed)
	require.ErrorIs(t, decoded.UnmarshalBinary(append(data, 0)), keyshare.ErrMalformed)
	require.ErrorIs(t, decoded.UnmarshalBinary([]byte{0xff, 0xff, 0xff, 0xff}), keyshare.ErrMalformed)
	require.ErrorIs(t, decoded.UnmarshalBinary([]byte{0, 0, 0, 2, 1}), keyshare.ErrMalformed)

	empty, err := Report{}.MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, []byte{0, 0, 0, 0}, empty)
}

// localTransport answers from in-process responders; nodes missing from
// the map fail as unreachable.
type localTransport map[keyshare.NodeID]*Responder

func (lt localTransport) Send(_ context.Context, n keyshare.NodeID, req keyshare.NodeID) (job.RequestAction[keyshare.SessionSet], error) {
	r, ok := lt[n]
	if !ok {
		return job.RequestAction[keyshare.SessionSet]{}, errors.New("unreachable")
	}
	return r.ProcessRequest(req)
}

func TestDiscover(t *testing.T) {
	self := nodeR1
	local := storeWith(t, map[keyshare.SessionID][]keyshare.NodeID{s1: {nodeA}, s2: {nodeA, nodeB}})
	remote := storeWith(t, map[keyshare.SessionID][]keyshare.NodeID{s2: {nodeA}, s3: {nodeB}})

	transport := localTransport{nodeR2: NewResponder(remote)}
	peers := keyshare.NewNodeSet(self, nodeR2, node(0x03))

	t.Run("ToleratesUnreachablePeer", func(t *testing.T) {
		report, summary, err := Discover(context.Background(), job.Config{Self: self, MinResponses: 2}, nodeB, peers, transport, local)
		require.NoError(t, err)
		require.Equal(t, Report{
			s1: keyshare.NodeSet{self},
			s2: keyshare.NodeSet{nodeR2},
		}, report)
		require.Equal(t, keyshare.NodeSet{self, nodeR2}, summary.Accepted)
		require.Contains(t, summary.Failed, node(0x03))
	})

	t.Run("RequiresAllByDefault", func(t *testing.T) {
		_, _, err := Discover(context.Background(), job.Config{Self: self}, nodeB, peers, transport, local)
		require.ErrorIs(t, err, job.ErrNotEnoughResponses)
	})
}
