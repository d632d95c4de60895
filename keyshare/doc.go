// Package keyshare defines the identifiers and per-session records a key
// server node keeps for every secret-sharing session it participates in.
//
// A [Record] maps each shareholder's [NodeID] to its [ShareIndex], the
// point at which the session polynomial was evaluated for that node. A
// node listed in that map is believed by the local store to hold a share;
// a node absent from it does not.
//
// [NodeSet] and [SessionSet] are sorted, duplicate-free slices. Their
// order is the byte-wise order of the identifiers, which is the same on
// every node, so anything built from them encodes identically across the
// cluster regardless of the order values were inserted in.
package keyshare
