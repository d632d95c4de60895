package frost

import (
	"errors"
	"fmt"
	"io"

	"github.com/f3rmion/keyserver/group"
)

// Round1Data is the public part of a participant's DKG contribution.
type Round1Data struct {
	ID          group.Scalar  // sender share index
	Commitments []group.Point // coefficient commitments, constant term first
}

// Round1PrivateData carries one polynomial evaluation from sender to recipient.
type Round1PrivateData struct {
	FromID group.Scalar
	ToID   group.Scalar
	Share  group.Scalar
}

// Participant is the per-node DKG state. It is discarded after Finalize.
type Participant struct {
	id           group.Scalar
	coefficients []group.Scalar
	commitments  []group.Point
	received     map[string]group.Scalar // keyed by sender ID bytes
}

// NewParticipant samples a fresh polynomial for participant id.
func (f *FROST) NewParticipant(r io.Reader, id int) (*Participant, error) {
	if id < 1 || id > f.total {
		return nil, fmt.Errorf("frost: participant id %d outside 1..%d", id, f.total)
	}

	coeffs := make([]group.Scalar, f.threshold)
	commits := make([]group.Point, f.threshold)
	for i := range coeffs {
		c, err := f.group.RandomScalar(r)
		if err != nil {
			return nil, fmt.Errorf("frost: sample coefficient: %w", err)
		}
		coeffs[i] = c
		commits[i] = f.group.NewPoint().ScalarMult(c, f.group.Generator())
	}

	return &Participant{
		id:           f.Index(id),
		coefficients: coeffs,
		commitments:  commits,
		received:     make(map[string]group.Scalar),
	}, nil
}

// ID returns the participant's share index.
func (p *Participant) ID() group.Scalar {
	return p.id
}

// Round1Broadcast returns the commitments every other participant needs.
func (p *Participant) Round1Broadcast() *Round1Data {
	return &Round1Data{
		ID:          p.id,
		Commitments: p.commitments,
	}
}

// Round1PrivateSend evaluates p's polynomial at recipient's index.
func (f *FROST) Round1PrivateSend(p *Participant, recipientID int) *Round1PrivateData {
	to := f.Index(recipientID)
	return &Round1PrivateData{
		FromID: p.id,
		ToID:   to,
		Share:  f.evalPolynomial(p.coefficients, to),
	}
}

// Round2ReceiveShare checks share*G == sum(C_k * x^k) for the sender's
// commitments C and stores the share.
func (f *FROST) Round2ReceiveShare(p *Participant, data *Round1PrivateData, senderCommitments []group.Point) error {
	if !data.ToID.Equal(p.id) {
		return errors.New("frost: share addressed to another participant")
	}
	if len(senderCommitments) != f.threshold {
		return fmt.Errorf("frost: got %d commitments, want %d", len(senderCommitments), f.threshold)
	}

	lhs := f.group.NewPoint().ScalarMult(data.Share, f.group.Generator())

	rhs := f.group.NewPoint()
	power := f.Index(1)
	for _, c := range senderCommitments {
		term := f.group.NewPoint().ScalarMult(power, c)
		rhs = f.group.NewPoint().Add(rhs, term)
		power = f.group.NewScalar().Mul(power, data.ToID)
	}

	if !lhs.Equal(rhs) {
		return errors.New("frost: share does not match sender commitments")
	}

	p.received[string(data.FromID.Bytes())] = data.Share
	return nil
}

// Finalize combines the participant's own evaluation with every received
// share. allBroadcasts must contain one entry per participant, including p.
func (f *FROST) Finalize(p *Participant, allBroadcasts []*Round1Data) (*KeyShare, error) {
	if len(allBroadcasts) != f.total {
		return nil, fmt.Errorf("frost: got %d broadcasts, want %d", len(allBroadcasts), f.total)
	}
	if len(p.received) != f.total-1 {
		return nil, fmt.Errorf("frost: got %d shares, want %d", len(p.received), f.total-1)
	}

	secret := f.evalPolynomial(p.coefficients, p.id)
	for _, s := range p.received {
		secret = f.group.NewScalar().Add(secret, s)
	}

	groupKey := f.group.NewPoint()
	for _, b := range allBroadcasts {
		groupKey = f.group.NewPoint().Add(groupKey, b.Commitments[0])
	}

	return &KeyShare{
		ID:        p.id,
		SecretKey: secret,
		PublicKey: f.group.NewPoint().ScalarMult(secret, f.group.Generator()),
		GroupKey:  groupKey,
	}, nil
}

// PublicShare derives the public key share of the participant at id from
// everyone's commitments: sum over senders i and coefficients k of C_ik * id^k.
func (f *FROST) PublicShare(id group.Scalar, allBroadcasts []*Round1Data) group.Point {
	acc := f.group.NewPoint()
	for _, b := range allBroadcasts {
		power := f.Index(1)
		for _, c := range b.Commitments {
			acc = f.group.NewPoint().Add(acc, f.group.NewPoint().ScalarMult(power, c))
			power = f.group.NewScalar().Mul(power, id)
		}
	}
	return acc
}
