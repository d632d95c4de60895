package unknownsessions

import (
	"encoding/binary"
	"fmt"
	"maps"
	"slices"

	"github.com/f3rmion/keyserver/keyshare"
)

// Report maps each session reported missing to the peers that reported
// it. A session nobody reported has no entry; an entry is never empty.
// Ranging over the map visits sessions in random order; use Sessions for
// ascending order.
type Report map[keyshare.SessionID]keyshare.NodeSet

func (r Report) add(session keyshare.SessionID, node keyshare.NodeID) {
	reporters := r[session]
	reporters.Insert(node)
	r[session] = reporters
}

// Sessions returns the reported sessions in ascending order.
func (r Report) Sessions() keyshare.SessionSet {
	return slices.SortedFunc(maps.Keys(r), keyshare.SessionID.Compare)
}

// Reporters returns the peers that reported session missing.
func (r Report) Reporters(session keyshare.SessionID) keyshare.NodeSet {
	return r[session]
}

// MarshalBinary encodes the report canonically: sessions ascending, each
// followed by its reporters ascending.
// Format: [4B count] { [32B session] [4B n] [n * 32B node] }*
func (r Report) MarshalBinary() ([]byte, error) {
	sessions := r.Sessions()

	buf := binary.BigEndian.AppendUint32(nil, uint32(len(sessions)))
	for _, s := range sessions {
		buf = append(buf, s[:]...)
		nodes, _ := r[s].MarshalBinary()
		buf = append(buf, nodes...)
	}
	return buf, nil
}

// UnmarshalBinary decodes a report written by MarshalBinary.
func (r *Report) UnmarshalBinary(data []byte) error {
	if len(data) < 4 {
		return fmt.Errorf("%w: report too short", keyshare.ErrMalformed)
	}

	n := int(binary.BigEndian.Uint32(data))
	data = data[4:]
	if n > len(data)/(keyshare.IDSize+4) {
		return fmt.Errorf("%w: %d entries in %d bytes", keyshare.ErrMalformed, n, len(data))
	}
	out := make(Report, n)

	for i := 0; i < n; i++ {
		if len(data) < keyshare.IDSize+4 {
			return fmt.Errorf("%w: report entry %d truncated", keyshare.ErrMalformed, i)
		}

		var session keyshare.SessionID
		copy(session[:], data)
		data = data[keyshare.IDSize:]

		count := int(binary.BigEndian.Uint32(data))
		size := 4 + count*keyshare.IDSize
		if len(data) < size {
			return fmt.Errorf("%w: report entry %d truncated", keyshare.ErrMalformed, i)
		}

		var nodes keyshare.NodeSet
		if err := nodes.UnmarshalBinary(data[:size]); err != nil {
			return err
		}
		if _, dup := out[session]; dup {
			return fmt.Errorf("%w: session %s listed twice", keyshare.ErrMalformed, session)
		}
		if len(nodes) == 0 {
			return fmt.Errorf("%w: session %s has no reporters", keyshare.ErrMalformed, session)
		}
		out[session] = nodes
		data = data[size:]
	}

	if len(data) != 0 {
		return fmt.Errorf("%w: %d trailing bytes", keyshare.ErrMalformed, len(data))
	}

	*r = out
	return nil
}
