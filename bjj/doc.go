// Package bjj implements [group.Group] on the Baby Jubjub twisted Edwards
// curve, using gnark-crypto's BN254 companion curve arithmetic.
//
// Every key server node is identified by a Baby Jubjub public key, and
// every secret-sharing session evaluates its polynomials over the Baby
// Jubjub scalar field, so this package sits underneath node identity,
// share indices and threshold signing alike.
//
// Usage:
//
//	g := &bjj.BJJ{}
//	sk, _ := g.RandomScalar(rand.Reader)
//	pk := g.NewPoint().ScalarMult(sk, g.Generator())
//
// Scalars encode to 32 bytes big-endian. Points encode to the 32-byte
// compressed form produced by gnark-crypto.
package bjj
