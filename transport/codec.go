package transport

import (
	"encoding"
	"fmt"

	"github.com/f3rmion/keyserver/keyshare"
)

// Codec converts job payloads to and from wire bytes.
type Codec[T any] interface {
	Encode(v T) ([]byte, error)
	Decode(data []byte) (T, error)
}

// binaryPointer is a pointer to T with binary marshalling.
type binaryPointer[T any] interface {
	*T
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

// BinaryCodec encodes any type with MarshalBinary and UnmarshalBinary.
type BinaryCodec[T any, P binaryPointer[T]] struct{}

// Encode marshals v.
func (BinaryCodec[T, P]) Encode(v T) ([]byte, error) {
	return P(&v).MarshalBinary()
}

// Decode unmarshals data into a fresh T.
func (BinaryCodec[T, P]) Decode(data []byte) (T, error) {
	var v T
	err := P(&v).UnmarshalBinary(data)
	return v, err
}

// SessionSetCodec is the wire format of unknown-sessions responses.
type SessionSetCodec = BinaryCodec[keyshare.SessionSet, *keyshare.SessionSet]

// NodeIDCodec sends a NodeID as its 32 raw bytes.
type NodeIDCodec struct{}

// Encode returns a copy of id's bytes.
func (NodeIDCodec) Encode(id keyshare.NodeID) ([]byte, error) {
	out := make([]byte, keyshare.IDSize)
	copy(out, id[:])
	return out, nil
}

// Decode requires exactly IDSize bytes.
func (NodeIDCodec) Decode(data []byte) (keyshare.NodeID, error) {
	var id keyshare.NodeID
	if len(data) != keyshare.IDSize {
		return id, fmt.Errorf("%w: node id of %d bytes", keyshare.ErrMalformed, len(data))
	}
	copy(id[:], data)
	return id, nil
}
