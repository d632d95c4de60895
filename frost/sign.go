package frost

import (
	"errors"
	"io"

	"github.com/f3rmion/keyserver/group"
)

// SigningNonce is the secret (d, e) pair of one signer for one message.
type SigningNonce struct {
	ID group.Scalar
	D  group.Scalar // hiding
	E  group.Scalar // binding
}

// SigningCommitment is the public (D, E) = (dG, eG) of one signer.
type SigningCommitment struct {
	ID           group.Scalar
	HidingPoint  group.Point
	BindingPoint group.Point
}

// SignatureShare is z_i for one signer.
type SignatureShare struct {
	ID group.Scalar
	Z  group.Scalar
}

// SignRound1 samples nonces for share and returns them with their commitment.
func (f *FROST) SignRound1(r io.Reader, share *KeyShare) (*SigningNonce, *SigningCommitment, error) {
	d, err := f.group.RandomScalar(r)
	if err != nil {
		return nil, nil, err
	}
	e, err := f.group.RandomScalar(r)
	if err != nil {
		return nil, nil, err
	}

	nonce := &SigningNonce{ID: share.ID, D: d, E: e}
	commitment := &SigningCommitment{
		ID:           share.ID,
		HidingPoint:  f.group.NewPoint().ScalarMult(d, f.group.Generator()),
		BindingPoint: f.group.NewPoint().ScalarMult(e, f.group.Generator()),
	}
	return nonce, commitment, nil
}

// SignRound2 computes z_i = d + rho_i*e + lambda_i*s_i*c.
func (f *FROST) SignRound2(
	share *KeyShare,
	nonce *SigningNonce,
	message []byte,
	commitments []*SigningCommitment,
) (*SignatureShare, error) {
	if len(commitments) < f.threshold {
		return nil, errors.New("frost: fewer commitments than threshold")
	}

	rhos := f.bindingFactors(message, commitments)
	rho, ok := rhos[string(share.ID.Bytes())]
	if !ok {
		return nil, errors.New("frost: signer has no commitment")
	}

	R := f.groupCommitment(commitments, rhos)
	c, err := f.group.HashToScalar(R.Bytes(), share.GroupKey.Bytes(), message)
	if err != nil {
		return nil, err
	}

	lambda, err := f.lagrange(share.ID, commitments)
	if err != nil {
		return nil, err
	}

	z := f.group.NewScalar().Mul(rho, nonce.E)
	z = f.group.NewScalar().Add(nonce.D, z)
	ls := f.group.NewScalar().Mul(lambda, share.SecretKey)
	z = f.group.NewScalar().Add(z, f.group.NewScalar().Mul(ls, c))

	return &SignatureShare{ID: share.ID, Z: z}, nil
}

// Aggregate sums the signature shares under the recomputed group commitment.
func (f *FROST) Aggregate(
	message []byte,
	commitments []*SigningCommitment,
	shares []*SignatureShare,
) (*Signature, error) {
	if len(shares) != len(commitments) {
		return nil, errors.New("frost: share and commitment counts differ")
	}

	R := f.groupCommitment(commitments, f.bindingFactors(message, commitments))

	z := f.group.NewScalar()
	for _, s := range shares {
		z = f.group.NewScalar().Add(z, s.Z)
	}
	return &Signature{R: R, Z: z}, nil
}

// Verify checks zG == R + cY.
func (f *FROST) Verify(message []byte, sig *Signature, groupKey group.Point) bool {
	c, err := f.group.HashToScalar(sig.R.Bytes(), groupKey.Bytes(), message)
	if err != nil {
		return false
	}

	lhs := f.group.NewPoint().ScalarMult(sig.Z, f.group.Generator())
	rhs := f.group.NewPoint().Add(sig.R, f.group.NewPoint().ScalarMult(c, groupKey))
	return lhs.Equal(rhs)
}

func (f *FROST) groupCommitment(commitments []*SigningCommitment, rhos map[string]group.Scalar) group.Point {
	R := f.group.NewPoint()
	for _, c := range commitments {
		rhoE := f.group.NewPoint().ScalarMult(rhos[string(c.ID.Bytes())], c.BindingPoint)
		R = f.group.NewPoint().Add(R, f.group.NewPoint().Add(c.HidingPoint, rhoE))
	}
	return R
}

func (f *FROST) bindingFactors(message []byte, commitments []*SigningCommitment) map[string]group.Scalar {
	var encoded []byte
	for _, c := range commitments {
		encoded = append(encoded, c.ID.Bytes()...)
		encoded = append(encoded, c.HidingPoint.Bytes()...)
		encoded = append(encoded, c.BindingPoint.Bytes()...)
	}

	rhos := make(map[string]group.Scalar, len(commitments))
	for _, c := range commitments {
		rho, _ := f.group.HashToScalar([]byte("rho"), message, encoded, c.ID.Bytes())
		rhos[string(c.ID.Bytes())] = rho
	}
	return rhos
}

// lagrange returns the coefficient of id at x = 0 over the committed signers.
func (f *FROST) lagrange(id group.Scalar, commitments []*SigningCommitment) (group.Scalar, error) {
	num := f.Index(1)
	den := f.Index(1)

	for _, c := range commitments {
		if c.ID.Equal(id) {
			continue
		}
		num = f.group.NewScalar().Mul(num, c.ID)
		den = f.group.NewScalar().Mul(den, f.group.NewScalar().Sub(c.ID, id))
	}

	inv, err := f.group.NewScalar().Invert(den)
	if err != nil {
		return nil, errors.New("frost: degenerate signer set")
	}
	return f.group.NewScalar().Mul(num, inv), nil
}

// VerifyShare checks one signer's contribution before aggregation:
// z_i*G == D_i + rho_i*E_i + lambda_i*c*Y_i, with Y_i the signer's public share.
func (f *FROST) VerifyShare(
	share *SignatureShare,
	publicShare group.Point,
	message []byte,
	commitments []*SigningCommitment,
	groupKey group.Point,
) bool {
	var own *SigningCommitment
	for _, c := range commitments {
		if c.ID.Equal(share.ID) {
			own = c
			break
		}
	}
	if own == nil {
		return false
	}

	rhos := f.bindingFactors(message, commitments)
	R := f.groupCommitment(commitments, rhos)
	c, err := f.group.HashToScalar(R.Bytes(), groupKey.Bytes(), message)
	if err != nil {
		return false
	}
	lambda, err := f.lagrange(share.ID, commitments)
	if err != nil {
		return false
	}

	lhs := f.group.NewPoint().ScalarMult(share.Z, f.group.Generator())

	rhs := f.group.NewPoint().ScalarMult(rhos[string(share.ID.Bytes())], own.BindingPoint)
	rhs = f.group.NewPoint().Add(own.HidingPoint, rhs)
	lc := f.group.NewScalar().Mul(lambda, c)
	rhs = f.group.NewPoint().Add(rhs, f.group.NewPoint().ScalarMult(lc, publicShare))

	return lhs.Equal(rhs)
}
