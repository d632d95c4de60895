package keyshare

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/f3rmion/keyserver/group"
)

// IDSize is the encoded length of every identifier in this package.
const IDSize = 32

// sessionDomain prefixes document key identifiers before hashing.
const sessionDomain = "keyserver/session/v1"

// NodeID is a cluster node identity: its compressed public key.
type NodeID [IDSize]byte

// NodeIDFromPoint returns the identity of the node owning public key pub.
func NodeIDFromPoint(pub group.Point) NodeID {
	var id NodeID
	copy(id[:], pub.Bytes())
	return id
}

// ParseNodeID decodes a hex NodeID.
func ParseNodeID(s string) (NodeID, error) {
	var id NodeID
	err := parseHex(id[:], s)
	return id, err
}

// Compare orders node identities byte-wise.
func (n NodeID) Compare(o NodeID) int {
	return bytes.Compare(n[:], o[:])
}

func (n NodeID) String() string {
	return hex.EncodeToString(n[:])
}

// MarshalText encodes the identifier as hex.
func (n NodeID) MarshalText() ([]byte, error) {
	return []byte(n.String()), nil
}

// UnmarshalText decodes a hex identifier.
func (n *NodeID) UnmarshalText(text []byte) error {
	return parseHex(n[:], string(text))
}

// SessionID identifies one secret-sharing session (one document key).
type SessionID [IDSize]byte

// DeriveSessionID maps an application document key identifier to the
// session identifier stored cluster-wide.
func DeriveSessionID(documentKey []byte) SessionID {
	h := blake3.New()
	h.Write([]byte(sessionDomain))
	h.Write(documentKey)

	var id SessionID
	h.Sum(id[:0])
	return id
}

// ParseSessionID decodes a hex SessionID.
func ParseSessionID(s string) (SessionID, error) {
	var id SessionID
	err := parseHex(id[:], s)
	return id, err
}

// Compare orders session identifiers byte-wise.
func (s SessionID) Compare(o SessionID) int {
	return bytes.Compare(s[:], o[:])
}

func (s SessionID) String() string {
	return hex.EncodeToString(s[:])
}

// MarshalText encodes the identifier as hex.
func (s SessionID) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a hex identifier.
func (s *SessionID) UnmarshalText(text []byte) error {
	return parseHex(s[:], string(text))
}

// ShareIndex is the encoded scalar at which a node's share was evaluated.
type ShareIndex [IDSize]byte

// ShareIndexFromScalar encodes a share index scalar.
func ShareIndexFromScalar(s group.Scalar) ShareIndex {
	var idx ShareIndex
	copy(idx[:], s.Bytes())
	return idx
}

func parseHex(dst []byte, s string) error {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("keyshare: decode hex: %w", err)
	}
	if len(raw) != len(dst) {
		return fmt.Errorf("keyshare: identifier is %d bytes, want %d", len(raw), len(dst))
	}
	copy(dst, raw)
	return nil
}
