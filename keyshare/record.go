package keyshare

import (
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
)

// ErrMalformed is returned when an encoded record or set cannot be decoded.
var ErrMalformed = errors.New("keyshare: malformed encoding")

const (
	recordVersion = 1

	// recordHeaderSize is version + author + threshold + group key + secret share + count.
	recordHeaderSize = 1 + IDSize + 4 + IDSize + IDSize + 4

	recordEntrySize = IDSize + IDSize
)

// Record is one node's stored view of a session.
type Record struct {
	Author      NodeID                // Author is the node that requested the session
	Threshold   uint32                // Threshold is one less than the shares needed to recover
	GroupKey    [IDSize]byte          // GroupKey is the compressed public key of the session
	SecretShare [IDSize]byte          // SecretShare is this node's secret share scalar
	IDNumbers   map[NodeID]ShareIndex // IDNumbers lists every shareholder the node knows of
}

// ShareIndexOf returns id's share index and whether id holds a share.
func (r *Record) ShareIndexOf(id NodeID) (ShareIndex, bool) {
	idx, ok := r.IDNumbers[id]
	return idx, ok
}

// Holders returns the shareholders in canonical order.
func (r *Record) Holders() NodeSet {
	holders := make(NodeSet, 0, len(r.IDNumbers))
	for id := range r.IDNumbers {
		holders = append(holders, id)
	}
	return normalize(holders)
}

// MarshalBinary encodes the record.
// Format: [1B version] [32B author] [4B threshold] [32B group key]
// [32B secret share] [4B count] [count * (32B node || 32B index)], entries sorted by node.
func (r *Record) MarshalBinary() ([]byte, error) {
	holders := r.Holders()

	buf := make([]byte, recordHeaderSize, recordHeaderSize+len(holders)*recordEntrySize)
	buf[0] = recordVersion
	off := 1
	off += copy(buf[off:], r.Author[:])
	binary.BigEndian.PutUint32(buf[off:], r.Threshold)
	off += 4
	off += copy(buf[off:], r.GroupKey[:])
	off += copy(buf[off:], r.SecretShare[:])
	binary.BigEndian.PutUint32(buf[off:], uint32(len(holders)))

	for _, id := range holders {
		idx := r.IDNumbers[id]
		buf = append(buf, id[:]...)
		buf = append(buf, idx[:]...)
	}
	return buf, nil
}

// UnmarshalBinary decodes a record written by MarshalBinary.
func (r *Record) UnmarshalBinary(data []byte) error {
	if len(data) < recordHeaderSize {
		return fmt.Errorf("%w: record too short: %d < %d", ErrMalformed, len(data), recordHeaderSize)
	}
	if data[0] != recordVersion {
		return fmt.Errorf("%w: unknown record version %d", ErrMalformed, data[0])
	}

	off := 1
	off += copy(r.Author[:], data[off:])
	r.Threshold = binary.BigEndian.Uint32(data[off:])
	off += 4
	off += copy(r.GroupKey[:], data[off:])
	off += copy(r.SecretShare[:], data[off:])
	n := int(binary.BigEndian.Uint32(data[off:]))
	off += 4

	if len(data)-off != n*recordEntrySize {
		return fmt.Errorf("%w: record body holds %d bytes, want %d", ErrMalformed, len(data)-off, n*recordEntrySize)
	}

	r.IDNumbers = make(map[NodeID]ShareIndex, n)
	for i := 0; i < n; i++ {
		var id NodeID
		var idx ShareIndex
		off += copy(id[:], data[off:])
		off += copy(idx[:], data[off:])
		if _, dup := r.IDNumbers[id]; dup {
			return fmt.Errorf("%w: node %s listed twice", ErrMalformed, id)
		}
		r.IDNumbers[id] = idx
	}
	return nil
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	c := *r
	c.IDNumbers = make(map[NodeID]ShareIndex, len(r.IDNumbers))
	for id, idx := range r.IDNumbers {
		c.IDNumbers[id] = idx
	}
	return &c
}

// Equal reports whether r and o describe the same session state.
func (r *Record) Equal(o *Record) bool {
	if r.Author != o.Author || r.Threshold != o.Threshold ||
		r.GroupKey != o.GroupKey || r.SecretShare != o.SecretShare {
		return false
	}
	if len(r.IDNumbers) != len(o.IDNumbers) {
		return false
	}
	return slices.EqualFunc(r.Holders(), o.Holders(), func(a, b NodeID) bool {
		return a == b && r.IDNumbers[a] == o.IDNumbers[b]
	})
}
