// Package frost holds the threshold mathematics behind key-server
// sessions: a dealerless distributed key generation that hands every node
// a share of a session secret, and FROST threshold Schnorr signing over
// those shares.
//
// # Share indices
//
// Participant i (1-based) evaluates polynomials at the scalar i, returned
// by [FROST.Index]. That scalar is the share index a node's key-share
// record lists for it; a node missing from a record's index map does not
// hold a share of that session.
//
// # Distributed key generation
//
//  1. Every participant samples a degree t-1 polynomial and broadcasts
//     commitments to its coefficients ([Participant.Round1Broadcast]).
//  2. Every participant sends each peer the evaluation of its polynomial
//     at the peer's index ([FROST.Round1PrivateSend]).
//  3. Receivers check each evaluation against the sender's commitments
//     ([FROST.Round2ReceiveShare]).
//  4. [FROST.Finalize] sums the evaluations into the final [KeyShare].
//
// # Signing
//
// Any t shareholders sign a message in two rounds: [FROST.SignRound1]
// produces nonces and a public commitment, [FROST.SignRound2] produces a
// signature share once all commitments are known, and [FROST.Aggregate]
// combines shares into a [Signature] checked by [FROST.Verify].
// A coordinator holding the DKG broadcasts can check each share on its own
// with [FROST.VerifyShare] against the signer's [FROST.PublicShare].
//
// Nonces must never be reused across messages. The session package wraps
// them in a one-shot type.
package frost
