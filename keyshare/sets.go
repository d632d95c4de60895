package keyshare

import (
	"encoding/binary"
	"fmt"
	"slices"
)

type identifier[T any] interface {
	comparable
	Compare(T) int
}

func normalize[T identifier[T]](xs []T) []T {
	slices.SortFunc(xs, func(a, b T) int { return a.Compare(b) })
	return slices.Compact(xs)
}

func insertSorted[T identifier[T]](xs []T, x T) ([]T, bool) {
	i, found := slices.BinarySearchFunc(xs, x, func(a, b T) int { return a.Compare(b) })
	if found {
		return xs, false
	}
	return slices.Insert(xs, i, x), true
}

func containsSorted[T identifier[T]](xs []T, x T) bool {
	_, found := slices.BinarySearchFunc(xs, x, func(a, b T) int { return a.Compare(b) })
	return found
}

// NodeSet is an ordered set of node identities.
type NodeSet []NodeID

// NewNodeSet builds a set from ids in any order, dropping duplicates.
func NewNodeSet(ids ...NodeID) NodeSet {
	return normalize(slices.Clone(ids))
}

// Insert adds id, reporting whether it was absent.
func (s *NodeSet) Insert(id NodeID) bool {
	var added bool
	*s, added = insertSorted(*s, id)
	return added
}

// Contains reports whether id is in s.
func (s NodeSet) Contains(id NodeID) bool {
	return containsSorted(s, id)
}

// SessionSet is an ordered set of session identifiers.
type SessionSet []SessionID

// NewSessionSet builds a set from ids in any order, dropping duplicates.
func NewSessionSet(ids ...SessionID) SessionSet {
	return normalize(slices.Clone(ids))
}

// Insert adds id, reporting whether it was absent.
func (s *SessionSet) Insert(id SessionID) bool {
	var added bool
	*s, added = insertSorted(*s, id)
	return added
}

// Contains reports whether id is in s.
func (s SessionSet) Contains(id SessionID) bool {
	return containsSorted(s, id)
}

// MarshalBinary encodes the set as [4B count] [count * 32B ids].
func (s SessionSet) MarshalBinary() ([]byte, error) {
	return encodeIDs(s), nil
}

// UnmarshalBinary decodes a set written by MarshalBinary. Input order is
// not trusted; the result is re-sorted and deduplicated.
func (s *SessionSet) UnmarshalBinary(data []byte) error {
	ids, err := decodeIDs[SessionID](data)
	if err != nil {
		return err
	}
	*s = normalize(ids)
	return nil
}

// MarshalBinary encodes the set as [4B count] [count * 32B ids].
func (s NodeSet) MarshalBinary() ([]byte, error) {
	return encodeIDs(s), nil
}

// UnmarshalBinary decodes a set written by MarshalBinary.
func (s *NodeSet) UnmarshalBinary(data []byte) error {
	ids, err := decodeIDs[NodeID](data)
	if err != nil {
		return err
	}
	*s = normalize(ids)
	return nil
}

func encodeIDs[T ~[IDSize]byte](ids []T) []byte {
	buf := make([]byte, 4, 4+len(ids)*IDSize)
	binary.BigEndian.PutUint32(buf, uint32(len(ids)))
	for _, id := range ids {
		buf = append(buf, id[:]...)
	}
	return buf
}

func decodeIDs[T ~[IDSize]byte](data []byte) ([]T, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: id list too short: %d < 4", ErrMalformed, len(data))
	}

	n := int(binary.BigEndian.Uint32(data[:4]))
	body := data[4:]
	if len(body) != n*IDSize {
		return nil, fmt.Errorf("%w: id list holds %d bytes, want %d", ErrMalformed, len(body), n*IDSize)
	}

	ids := make([]T, n)
	for i := range ids {
		copy(ids[i][:], body[i*IDSize:(i+1)*IDSize])
	}
	return ids, nil
}
