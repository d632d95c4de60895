package bjj

import (
	"io"

	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards"
	"golang.org/x/crypto/blake2b"

	"github.com/f3rmion/keyserver/group"
)

// hashDomain separates this module's hash-to-scalar outputs from any
// other protocol hashing onto the same curve.
const hashDomain = "keyserver/bjj/h2s/v1"

// BJJ is the Baby Jubjub [group.Group]. It carries no state.
type BJJ struct{}

var _ group.Group = (*BJJ)(nil)

// NewScalar returns zero.
func (g *BJJ) NewScalar() group.Scalar {
	return &Scalar{}
}

// NewPoint returns the identity (0, 1).
func (g *BJJ) NewPoint() group.Point {
	pt := &Point{}
	pt.p.X.SetZero()
	pt.p.Y.SetOne()
	return pt
}

// Generator returns the curve base point.
func (g *BJJ) Generator() group.Point {
	return &Point{p: twistededwards.GetEdwardsCurve().Base}
}

// RandomScalar reads 64 bytes from r and reduces them, which keeps the
// modulo bias negligible.
func (g *BJJ) RandomScalar(r io.Reader) (group.Scalar, error) {
	var buf [64]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, err
	}
	s := &Scalar{}
	s.v.SetBytes(buf[:])
	return s.reduce(), nil
}

// HashToScalar hashes data with domain-separated BLAKE2b-512 and reduces
// the digest modulo the order.
func (g *BJJ) HashToScalar(data ...[]byte) (group.Scalar, error) {
	h, err := blake2b.New512(nil)
	if err != nil {
		return nil, err
	}
	h.Write([]byte(hashDomain))
	for _, d := range data {
		h.Write(d)
	}

	s := &Scalar{}
	s.v.SetBytes(h.Sum(nil))
	return s.reduce(), nil
}

// Order returns the subgroup order, big-endian.
func (g *BJJ) Order() []byte {
	return order.Bytes()
}
