package bjj

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards"

	"github.com/f3rmion/keyserver/group"
)

// PointSize is the encoded length of a compressed point.
const PointSize = 32

// Point is an affine Baby Jubjub point. The zero value is not the
// identity; obtain points from [BJJ.NewPoint] or [PointFromBytes].
type Point struct {
	p twistededwards.PointAffine
}

var _ group.Point = (*Point)(nil)

// PointFromBytes decodes a compressed point.
func PointFromBytes(data []byte) (*Point, error) {
	if len(data) != PointSize {
		return nil, fmt.Errorf("bjj: point encoding is %d bytes, want %d", len(data), PointSize)
	}
	pt := &Point{}
	if err := pt.p.Unmarshal(data); err != nil {
		return nil, fmt.Errorf("bjj: decode point: %w", err)
	}
	return pt, nil
}

func asPoint(x group.Point) *Point {
	return x.(*Point)
}

// Add sets p = a + b.
func (p *Point) Add(a, b group.Point) group.Point {
	p.p.Add(&asPoint(a).p, &asPoint(b).p)
	return p
}

// Sub sets p = a - b.
func (p *Point) Sub(a, b group.Point) group.Point {
	var neg twistededwards.PointAffine
	neg.Neg(&asPoint(b).p)
	p.p.Add(&asPoint(a).p, &neg)
	return p
}

// Negate sets p = -a.
func (p *Point) Negate(a group.Point) group.Point {
	p.p.Neg(&asPoint(a).p)
	return p
}

// ScalarMult sets p = s * q.
func (p *Point) ScalarMult(s group.Scalar, q group.Point) group.Point {
	p.p.ScalarMultiplication(&asPoint(q).p, &asScalar(s).v)
	return p
}

// Set sets p = a.
func (p *Point) Set(a group.Point) group.Point {
	p.p.Set(&asPoint(a).p)
	return p
}

// Bytes returns the compressed encoding.
func (p *Point) Bytes() []byte {
	b := p.p.Bytes()
	return b[:]
}

// SetBytes decodes a compressed encoding into p.
func (p *Point) SetBytes(data []byte) (group.Point, error) {
	if err := p.p.Unmarshal(data); err != nil {
		return nil, err
	}
	return p, nil
}

// Equal reports whether p == b.
func (p *Point) Equal(b group.Point) bool {
	return p.p.Equal(&asPoint(b).p)
}

// IsIdentity reports whether p is (0, 1).
func (p *Point) IsIdentity() bool {
	return p.p.IsZero()
}
