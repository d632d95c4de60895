package session

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/f3rmion/keyserver/frost"
	"github.com/f3rmion/keyserver/group"
	"github.com/f3rmion/keyserver/job"
	"github.com/f3rmion/keyserver/keyshare"
)

// SignRequest asks every committed signer for its signature share.
type SignRequest struct {
	Message     []byte
	Commitments []*frost.SigningCommitment
}

// SignCoordinator collects signature shares and aggregates them.
type SignCoordinator struct {
	frost        *frost.FROST
	groupKey     group.Point
	request      *SignRequest
	publicShares map[string]group.Point
}

var _ job.Coordinator[*SignRequest, *frost.SignatureShare, *frost.Signature] = (*SignCoordinator)(nil)

// NewSignCoordinator prepares a signing job over message with the collected
// commitments. publicShares maps participant index to public key share;
// when given, every share is verified before it is admitted.
func NewSignCoordinator(
	f *frost.FROST,
	groupKey group.Point,
	message []byte,
	commitments []*frost.SigningCommitment,
	publicShares map[int]group.Point,
) (*SignCoordinator, error) {
	if len(commitments) < f.Threshold() {
		return nil, fmt.Errorf("session: %d commitments, need %d", len(commitments), f.Threshold())
	}

	seen := make(map[string]struct{}, len(commitments))
	for _, c := range commitments {
		key := string(c.ID.Bytes())
		if _, dup := seen[key]; dup {
			return nil, errors.New("session: duplicate commitment")
		}
		seen[key] = struct{}{}
	}

	shares := make(map[string]group.Point, len(publicShares))
	for idx, pub := range publicShares {
		shares[string(f.Index(idx).Bytes())] = pub
	}

	return &SignCoordinator{
		frost:    f,
		groupKey: groupKey,
		request: &SignRequest{
			Message:     bytes.Clone(message),
			Commitments: commitments,
		},
		publicShares: shares,
	}, nil
}

// PrepareRequest returns the same request for every signer.
func (c *SignCoordinator) PrepareRequest(keyshare.NodeID, keyshare.NodeSet) (*SignRequest, error) {
	return c.request, nil
}

// CheckResponse rejects shares from signers without a commitment and,
// when public shares are known, shares that do not verify.
func (c *SignCoordinator) CheckResponse(share *frost.SignatureShare) (job.ResponseAction, error) {
	if share == nil || share.ID == nil || share.Z == nil {
		return job.Reject, nil
	}
	if !c.committed(share.ID) {
		return job.Reject, nil
	}
	if len(c.publicShares) == 0 {
		return job.Accept, nil
	}

	pub, ok := c.publicShares[string(share.ID.Bytes())]
	if !ok {
		return job.Reject, nil
	}
	if !c.frost.VerifyShare(share, pub, c.request.Message, c.request.Commitments, c.groupKey) {
		return job.Reject, nil
	}
	return job.Accept, nil
}

// ComputeResponse aggregates one share per commitment and checks the result.
func (c *SignCoordinator) ComputeResponse(responses map[keyshare.NodeID]*frost.SignatureShare) (*frost.Signature, error) {
	byID := make(map[string]*frost.SignatureShare, len(responses))
	for _, share := range responses {
		byID[string(share.ID.Bytes())] = share
	}

	shares := make([]*frost.SignatureShare, 0, len(c.request.Commitments))
	for _, cm := range c.request.Commitments {
		share, ok := byID[string(cm.ID.Bytes())]
		if !ok {
			return nil, errors.New("session: missing signature share")
		}
		shares = append(shares, share)
	}

	sig, err := c.frost.Aggregate(c.request.Message, c.request.Commitments, shares)
	if err != nil {
		return nil, fmt.Errorf("session: aggregate: %w", err)
	}
	if !c.frost.Verify(c.request.Message, sig, c.groupKey) {
		return nil, errors.New("session: aggregated signature does not verify")
	}
	return sig, nil
}

func (c *SignCoordinator) committed(id group.Scalar) bool {
	for _, cm := range c.request.Commitments {
		if cm.ID.Equal(id) {
			return true
		}
	}
	return false
}

// SignResponder answers one signing request with a signing session.
type SignResponder struct {
	session *SigningSession
	approve func(message []byte) bool
}

var _ job.Responder[*SignRequest, *frost.SignatureShare] = (*SignResponder)(nil)

// NewSignResponder answers with s. approve, if non-nil, decides whether
// the node agrees to sign a message.
func NewSignResponder(s *SigningSession, approve func(message []byte) bool) *SignResponder {
	return &SignResponder{session: s, approve: approve}
}

// ProcessRequest signs req.Message. It refuses messages the node does not
// approve and requests that misquote its commitment.
func (r *SignResponder) ProcessRequest(req *SignRequest) (job.RequestAction[*frost.SignatureShare], error) {
	if r.approve != nil && !r.approve(req.Message) {
		return job.RejectRequest[*frost.SignatureShare](nil), nil
	}
	if !r.ownCommitmentIntact(req.Commitments) {
		return job.RejectRequest[*frost.SignatureShare](nil), nil
	}

	share, err := r.session.Sign(req.Message, req.Commitments)
	if err != nil {
		return job.RequestAction[*frost.SignatureShare]{}, err
	}
	return job.Respond(share), nil
}

func (r *SignResponder) ownCommitmentIntact(commitments []*frost.SigningCommitment) bool {
	own := r.session.Commitment()
	for _, c := range commitments {
		if c.ID.Equal(own.ID) {
			return c.HidingPoint.Equal(own.HidingPoint) && c.BindingPoint.Equal(own.BindingPoint)
		}
	}
	return false
}
