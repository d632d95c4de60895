package group

import (
	"io"
)

// Scalar is an element of the scalar field of a [Group].
//
// Implementations keep every value reduced into [0, order).
type Scalar interface {
	// Add sets the receiver to a+b and returns it.
	Add(a, b Scalar) Scalar
	// Sub sets the receiver to a-b and returns it.
	Sub(a, b Scalar) Scalar
	// Mul sets the receiver to a*b and returns it.
	Mul(a, b Scalar) Scalar
	// Negate sets the receiver to -a and returns it.
	Negate(a Scalar) Scalar
	// Invert sets the receiver to a^{-1} and returns it.
	// It fails when a is zero.
	Invert(a Scalar) (Scalar, error)
	// Set copies a into the receiver and returns it.
	Set(a Scalar) Scalar
	// Bytes returns the canonical 32-byte big-endian encoding.
	Bytes() []byte
	// SetBytes decodes data into the receiver, reducing modulo the order.
	SetBytes(data []byte) (Scalar, error)
	// Equal reports whether the receiver equals b.
	Equal(b Scalar) bool
	// IsZero reports whether the receiver is zero.
	IsZero() bool
}

// Point is an element of a [Group].
type Point interface {
	// Add sets the receiver to a+b and returns it.
	Add(a, b Point) Point
	// Sub sets the receiver to a-b and returns it.
	Sub(a, b Point) Point
	// Negate sets the receiver to -a and returns it.
	Negate(a Point) Point
	// ScalarMult sets the receiver to s*p and returns it.
	ScalarMult(s Scalar, p Point) Point
	// Set copies a into the receiver and returns it.
	Set(a Point) Point
	// Bytes returns the canonical compressed encoding.
	Bytes() []byte
	// SetBytes decodes a compressed encoding into the receiver.
	// It fails when data is not a valid group element.
	SetBytes(data []byte) (Point, error)
	// Equal reports whether the receiver equals b.
	Equal(b Point) bool
	// IsIdentity reports whether the receiver is the identity element.
	IsIdentity() bool
}

// Group creates scalars and points and provides the hashing and
// randomness the threshold protocols need.
type Group interface {
	// NewScalar returns a zero scalar.
	NewScalar() Scalar
	// NewPoint returns the identity point.
	NewPoint() Point
	// Generator returns the base point.
	Generator() Point
	// RandomScalar draws a uniformly random scalar from r.
	RandomScalar(r io.Reader) (Scalar, error)
	// HashToScalar hashes the concatenation of data to a scalar.
	HashToScalar(data ...[]byte) (Scalar, error)
	// Order returns the group order, big-endian.
	Order() []byte
}
