// Package group defines the abstract prime-order group used by the key
// server for node identities, share indices and threshold signatures.
//
// Three interfaces cover everything the rest of the module needs:
//
//   - [Scalar]: integers modulo the group order (secret shares, share
//     indices, polynomial coefficients)
//   - [Point]: group elements (node public keys, commitments, group keys)
//   - [Group]: factory for the two above plus hashing and randomness
//
// Arithmetic uses a mutable receiver: the receiver is overwritten with
// the result and returned, so expressions chain without extra copies:
//
//	// y = a + b*c
//	y := g.NewScalar().Mul(b, c)
//	y = g.NewScalar().Add(a, y)
//
// The only concrete implementation in this module is bjj.BJJ.
//
// # Encodings
//
// Scalars and points both encode to 32 bytes. Those encodings are what
// the keyshare package persists and compares, so an implementation must
// produce a single canonical encoding per value and reject invalid
// points in SetBytes.
package group
