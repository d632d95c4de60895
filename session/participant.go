package session

import (
	"errors"
	"fmt"
	"io"

	"github.com/f3rmion/keyserver/frost"
	"github.com/f3rmion/keyserver/group"
	"github.com/f3rmion/keyserver/keyshare"
)

// Participant is one shareholder's state across key generation and signing.
type Participant struct {
	id        int
	frost     *frost.FROST
	keyShare  *frost.KeyShare
	dkgState  *frost.Participant
	finalized bool
}

// DKGResult is the outcome of key generation on one node.
type DKGResult struct {
	// KeyShare is this node's share. It must be stored before signing.
	KeyShare *frost.KeyShare

	// GroupKey is the session public key, identical on every node.
	GroupKey group.Point

	// PublicShares maps participant index to its public key share, used
	// to check signature shares.
	PublicShares map[int]group.Point

	threshold int
	indexOf   func(int) group.Scalar
}

// Round1Output holds the messages a participant sends in round 1.
type Round1Output struct {
	// Broadcast goes to every participant.
	Broadcast *frost.Round1Data

	// PrivateShares maps recipient index to its share; each goes only to
	// its recipient over a confidential channel.
	PrivateShares map[int]*frost.Round1PrivateData
}

// Round1Input holds everything a participant received in round 1.
type Round1Input struct {
	// Broadcasts from all participants, this one included.
	Broadcasts []*frost.Round1Data

	// PrivateShares addressed to this participant by all others.
	PrivateShares []*frost.Round1PrivateData
}

// NewParticipant creates participant id (1..total) of a (threshold, total) setup.
func NewParticipant(g group.Group, threshold, total, id int) (*Participant, error) {
	if id < 1 || id > total {
		return nil, fmt.Errorf("session: participant id must be in 1..%d, got %d", total, id)
	}

	f, err := frost.New(g, threshold, total)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	return &Participant{id: id, frost: f}, nil
}

// ID returns the participant index.
func (p *Participant) ID() int {
	return p.id
}

// FROST returns the underlying parameters.
func (p *Participant) FROST() *frost.FROST {
	return p.frost
}

// KeyShare returns the share once key generation finished, or nil.
func (p *Participant) KeyShare() *frost.KeyShare {
	return p.keyShare
}

// GenerateRound1 samples this participant's polynomial and returns its
// broadcast and one private share per other participant in allIDs.
func (p *Participant) GenerateRound1(rng io.Reader, allIDs []int) (*Round1Output, error) {
	if p.dkgState != nil || p.finalized {
		return nil, errors.New("session: round 1 already generated")
	}

	state, err := p.frost.NewParticipant(rng, p.id)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	p.dkgState = state

	out := &Round1Output{
		Broadcast:     state.Round1Broadcast(),
		PrivateShares: make(map[int]*frost.Round1PrivateData, len(allIDs)),
	}
	for _, to := range allIDs {
		if to == p.id {
			continue
		}
		out.PrivateShares[to] = p.frost.Round1PrivateSend(state, to)
	}
	return out, nil
}

// ProcessRound1 verifies every received share and completes key generation.
func (p *Participant) ProcessRound1(input *Round1Input) (*DKGResult, error) {
	if p.dkgState == nil {
		return nil, errors.New("session: GenerateRound1 must run first")
	}

	bySender := make(map[string]*frost.Round1Data, len(input.Broadcasts))
	for _, b := range input.Broadcasts {
		key := string(b.ID.Bytes())
		if _, dup := bySender[key]; dup {
			return nil, errors.New("session: duplicate broadcast")
		}
		bySender[key] = b
	}

	for _, share := range input.PrivateShares {
		sender, ok := bySender[string(share.FromID.Bytes())]
		if !ok {
			return nil, errors.New("session: private share from a participant without broadcast")
		}
		if err := p.frost.Round2ReceiveShare(p.dkgState, share, sender.Commitments); err != nil {
			return nil, fmt.Errorf("session: %w", err)
		}
	}

	ks, err := p.frost.Finalize(p.dkgState, input.Broadcasts)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	p.keyShare = ks
	p.finalized = true
	p.dkgState = nil

	publicShares := make(map[int]group.Point, p.frost.Total())
	for i := 1; i <= p.frost.Total(); i++ {
		publicShares[i] = p.frost.PublicShare(p.frost.Index(i), input.Broadcasts)
	}

	return &DKGResult{
		KeyShare:     ks,
		GroupKey:     ks.GroupKey,
		PublicShares: publicShares,
		threshold:    p.frost.Threshold(),
		indexOf:      p.frost.Index,
	}, nil
}

// SetKeyShare restores a share loaded from storage.
func (p *Participant) SetKeyShare(ks *frost.KeyShare) {
	p.keyShare = ks
	p.finalized = true
}

// Record builds the key-share record this node stores for the session.
// nodes maps every participant index to its NodeID.
func (r *DKGResult) Record(author keyshare.NodeID, nodes map[int]keyshare.NodeID) (*keyshare.Record, error) {
	if len(nodes) != len(r.PublicShares) {
		return nil, fmt.Errorf("session: got %d node ids for %d participants", len(nodes), len(r.PublicShares))
	}

	rec := &keyshare.Record{
		Author:    author,
		Threshold: uint32(r.threshold - 1),
		IDNumbers: make(map[keyshare.NodeID]keyshare.ShareIndex, len(nodes)),
	}
	copy(rec.GroupKey[:], r.GroupKey.Bytes())
	copy(rec.SecretShare[:], r.KeyShare.SecretKey.Bytes())

	for idx, id := range nodes {
		if _, ok := r.PublicShares[idx]; !ok {
			return nil, fmt.Errorf("session: unknown participant index %d", idx)
		}
		if _, dup := rec.IDNumbers[id]; dup {
			return nil, fmt.Errorf("session: node %s assigned twice", id)
		}
		rec.IDNumbers[id] = keyshare.ShareIndexFromScalar(r.indexOf(idx))
	}
	return rec, nil
}

// KeyShareFromRecord rebuilds the signing share of node self from a stored record.
func KeyShareFromRecord(g group.Group, rec *keyshare.Record, self keyshare.NodeID) (*frost.KeyShare, error) {
	idx, ok := rec.ShareIndexOf(self)
	if !ok {
		return nil, fmt.Errorf("session: node %s holds no share of this session", self)
	}

	id, err := g.NewScalar().SetBytes(idx[:])
	if err != nil {
		return nil, fmt.Errorf("session: share index: %w", err)
	}
	secret, err := g.NewScalar().SetBytes(rec.SecretShare[:])
	if err != nil {
		return nil, fmt.Errorf("session: secret share: %w", err)
	}
	groupKey, err := g.NewPoint().SetBytes(rec.GroupKey[:])
	if err != nil {
		return nil, fmt.Errorf("session: group key: %w", err)
	}

	return &frost.KeyShare{
		ID:        id,
		SecretKey: secret,
		PublicKey: g.NewPoint().ScalarMult(secret, g.Generator()),
		GroupKey:  groupKey,
	}, nil
}
