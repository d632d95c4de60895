// Package unknownsessions implements the unknown-sessions discovery job:
// given a target node, the cluster works out which stored sessions the
// target does not hold a share of.
//
// The coordinator sends the same request, the target's NodeID, to every
// queried peer. Each peer scans its own key store and answers with the
// sessions whose records do not list the target. The coordinator accepts
// every answer as reported and merges them into a [Report]: for each
// session some peer believes the target is missing, the set of peers that
// said so.
//
// Peers answer from their own, possibly stale, view. The report is a
// best-effort discovery, not a vote; deciding how to backfill the target
// is left to the caller. A report built from a subset of the cluster is
// still well defined and simply covers fewer sessions.
//
// Reports built from the same admitted answers are identical on every
// node, whatever order the answers arrived in, and encode to the same
// bytes.
package unknownsessions
