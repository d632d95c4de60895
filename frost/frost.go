package frost

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/f3rmion/keyserver/group"
)

// FROST binds a group to the (t, n) parameters of one key-sharing setup.
type FROST struct {
	group     group.Group
	threshold int // t: minimum number of signers
	total     int // n: number of shareholders
}

// KeyShare is one node's share of a session secret.
type KeyShare struct {
	ID        group.Scalar // share index
	SecretKey group.Scalar // evaluation of the joint polynomial at ID
	PublicKey group.Point  // SecretKey * G
	GroupKey  group.Point  // public key of the whole session
}

// Signature is a Schnorr signature (R, z).
type Signature struct {
	R group.Point
	Z group.Scalar
}

// New validates the threshold parameters and returns a FROST instance.
func New(g group.Group, threshold, total int) (*FROST, error) {
	if threshold < 2 {
		return nil, errors.New("frost: threshold must be at least 2")
	}
	if total < threshold {
		return nil, fmt.Errorf("frost: total %d below threshold %d", total, threshold)
	}

	return &FROST{
		group:     g,
		threshold: threshold,
		total:     total,
	}, nil
}

// Group returns the underlying group.
func (f *FROST) Group() group.Group {
	return f.group
}

// Threshold returns t.
func (f *FROST) Threshold() int {
	return f.threshold
}

// Total returns n.
func (f *FROST) Total() int {
	return f.total
}

// Index returns the share index of participant id.
func (f *FROST) Index(id int) group.Scalar {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(id))
	s, _ := f.group.NewScalar().SetBytes(buf[:])
	return s
}

// evalPolynomial evaluates coeffs at x using Horner's rule.
func (f *FROST) evalPolynomial(coeffs []group.Scalar, x group.Scalar) group.Scalar {
	acc := f.group.NewScalar().Set(coeffs[len(coeffs)-1])
	for i := len(coeffs) - 2; i >= 0; i-- {
		acc = f.group.NewScalar().Mul(acc, x)
		acc = f.group.NewScalar().Add(acc, coeffs[i])
	}
	return acc
}
