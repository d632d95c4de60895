package bjj

import (
	"errors"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards"

	"github.com/f3rmion/keyserver/group"
)

// ScalarSize is the encoded length of a scalar.
const ScalarSize = 32

// order is the prime order of the Baby Jubjub subgroup, not the BN254 Fr modulus.
var order = new(big.Int).Set(&twistededwards.GetEdwardsCurve().Order)

// Scalar is an integer modulo the Baby Jubjub subgroup order.
type Scalar struct {
	v big.Int
}

var _ group.Scalar = (*Scalar)(nil)

// ScalarFromUint64 returns the scalar n mod order.
func ScalarFromUint64(n uint64) *Scalar {
	s := &Scalar{}
	s.v.SetUint64(n)
	s.v.Mod(&s.v, order)
	return s
}

func asScalar(x group.Scalar) *Scalar {
	return x.(*Scalar)
}

func (s *Scalar) reduce() *Scalar {
	s.v.Mod(&s.v, order)
	return s
}

// Add sets s = a + b.
func (s *Scalar) Add(a, b group.Scalar) group.Scalar {
	s.v.Add(&asScalar(a).v, &asScalar(b).v)
	return s.reduce()
}

// Sub sets s = a - b.
func (s *Scalar) Sub(a, b group.Scalar) group.Scalar {
	s.v.Sub(&asScalar(a).v, &asScalar(b).v)
	return s.reduce()
}

// Mul sets s = a * b.
func (s *Scalar) Mul(a, b group.Scalar) group.Scalar {
	s.v.Mul(&asScalar(a).v, &asScalar(b).v)
	return s.reduce()
}

// Negate sets s = -a.
func (s *Scalar) Negate(a group.Scalar) group.Scalar {
	s.v.Neg(&asScalar(a).v)
	return s.reduce()
}

// Invert sets s = 1/a. Zero has no inverse.
func (s *Scalar) Invert(a group.Scalar) (group.Scalar, error) {
	x := asScalar(a)
	if x.IsZero() {
		return nil, errors.New("bjj: inverse of zero scalar")
	}
	s.v.ModInverse(&x.v, order)
	return s, nil
}

// Set sets s = a.
func (s *Scalar) Set(a group.Scalar) group.Scalar {
	s.v.Set(&asScalar(a).v)
	return s
}

// Bytes returns the 32-byte big-endian encoding.
func (s *Scalar) Bytes() []byte {
	out := make([]byte, ScalarSize)
	s.v.FillBytes(out)
	return out
}

// SetBytes decodes big-endian data, reducing it modulo the order.
func (s *Scalar) SetBytes(data []byte) (group.Scalar, error) {
	s.v.SetBytes(data)
	return s.reduce(), nil
}

// Equal reports whether s == b.
func (s *Scalar) Equal(b group.Scalar) bool {
	return s.v.Cmp(&asScalar(b).v) == 0
}

// IsZero reports whether s == 0.
func (s *Scalar) IsZero() bool {
	return s.v.Sign() == 0
}
