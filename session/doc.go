// Package session runs the cryptographic side of key-server sessions on
// top of the frost package: creating a session's key shares with a
// dealerless DKG, turning the outcome into the key-share record the node
// stores, and signing with those shares as a cluster job.
//
// # Key generation
//
// Every shareholder runs the same code:
//
//	p, err := session.NewParticipant(&bjj.BJJ{}, threshold, total, myIndex)
//	r1, err := p.GenerateRound1(rand.Reader, allIndices)
//	// broadcast r1.Broadcast, send r1.PrivateShares[j] to participant j
//	result, err := p.ProcessRound1(&session.Round1Input{...})
//	rec, err := result.Record(author, indexToNode)
//	err = store.Insert(sessionID, rec)
//
// The record lists every shareholder's NodeID with its share index. That
// list is what the unknown-sessions job inspects.
//
// # Signing
//
// Signing is a job: the coordinator collects commitments, then sends each
// signer a [SignRequest]. Each signer answers with [SignResponder], which
// wraps a one-shot [SigningSession] so nonces are never reused. The
// [SignCoordinator] admits only shares that verify against the signer's
// public share and aggregates them into a signature.
//
// The package does not move bytes between nodes; plug its job types into
// job.Session with any transport.
package session
