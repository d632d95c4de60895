package keystore

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/f3rmion/keyserver/keyshare"
)

func sid(b byte) keyshare.SessionID {
	var id keyshare.SessionID
	id[0] = b
	return id
}

func nid(b byte) keyshare.NodeID {
	var id keyshare.NodeID
	id[0] = b
	return id
}

func record(holders ...byte) *keyshare.Record {
	rec := &keyshare.Record{
		Author:    nid(1),
		Threshold: 1,
		IDNumbers: make(map[keyshare.NodeID]keyshare.ShareIndex),
	}
	for i, h := range holders {
		rec.IDNumbers[nid(h)] = keyshare.ShareIndex{31: byte(i + 1)}
	}
	return rec
}

// stores returns a constructor per Store implementation.
func stores() map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store {
			return NewMemoryStore()
		},
		"pebble": func(t *testing.T) Store {
			s, err := OpenPebble(filepath.Join(t.TempDir(), "db"))
			require.NoError(t, err)
			return s
		},
	}
}

func TestStoreCRUD(t *testing.T) {
	for name, open := range stores() {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer s.Close()

			_, err := s.Get(sid(1))
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Insert(sid(1), record(1, 2)))
			require.ErrorIs(t, s.Insert(sid(1), record(1)), ErrExists)

			got, err := s.Get(sid(1))
			require.NoError(t, err)
			require.True(t, record(1, 2).Equal(got))

			require.NoError(t, s.Update(sid(1), record(3)))
			got, err = s.Get(sid(1))
			require.NoError(t, err)
			require.True(t, record(3).Equal(got))

			require.ErrorIs(t, s.Update(sid(2), record(3)), ErrNotFound)

			require.NoError(t, s.Delete(sid(1)))
			require.ErrorIs(t, s.Delete(sid(1)), ErrNotFound)
		})
	}
}

func TestStoreIterateOrdered(t *testing.T) {
	for name, open := range stores() {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer s.Close()

			for _, b := range []byte{9, 3, 6} {
				require.NoError(t, s.Insert(sid(b), record(b)))
			}

			var seen []keyshare.SessionID
			err := s.Iterate(func(id keyshare.SessionID, rec *keyshare.Record) error {
				seen = append(seen, id)
				_, ok := rec.ShareIndexOf(nid(id[0]))
				require.True(t, ok)
				return nil
			})
			require.NoError(t, err)
			require.Equal(t, []keyshare.SessionID{sid(3), sid(6), sid(9)}, seen)
		})
	}
}

func TestStoreIterateStopsOnError(t *testing.T) {
	stop := errors.New("stop")

	for name, open := range stores() {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer s.Close()

			require.NoError(t, s.Insert(sid(1), record(1)))
			require.NoError(t, s.Insert(sid(2), record(2)))

			calls := 0
			err := s.Iterate(func(keyshare.SessionID, *keyshare.Record) error {
				calls++
				return stop
			})
			require.ErrorIs(t, err, stop)
			require.Equal(t, 1, calls)
		})
	}
}

func TestStoreIterateSnapshot(t *testing.T) {
	for name, open := range stores() {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer s.Close()

			require.NoError(t, s.Insert(sid(1), record(1)))
			require.NoError(t, s.Insert(sid(2), record(2)))

			var seen int
			err := s.Iterate(func(id keyshare.SessionID, _ *keyshare.Record) error {
				seen++
				if id == sid(1) {
					require.NoError(t, s.Insert(sid(3), record(3)))
				}
				return nil
			})
			require.NoError(t, err)
			require.Equal(t, 2, seen, "writes during a scan must not be visible to it")
		})
	}
}

func TestPebbleReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")

	s, err := OpenPebble(path)
	require.NoError(t, err)
	require.NoError(t, s.Insert(sid(4), record(1, 2, 3)))
	require.NoError(t, s.Close())

	s, err = OpenPebble(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(sid(4))
	require.NoError(t, err)
	require.Len(t, got.IDNumbers, 3)
}

func TestPrefixUpperBound(t *testing.T) {
	require.Equal(t, []byte("ks0"), prefixUpperBound([]byte("ks/")))
	require.Equal(t, []byte{0x02}, prefixUpperBound([]byte{0x01, 0xFF}))
	require.Nil(t, prefixUpperBound([]byte{0xFF, 0xFF}))
}

func TestPebbleDetectsCorruption(t *testing.T) {
	s, err := OpenPebble(filepath.Join(t.TempDir(), "db"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Insert(sid(1), record(1, 2)))

	value, err := encodeValue(record(1, 2))
	require.NoError(t, err)
	value[0] ^= 0xFF
	require.NoError(t, s.db.Set(recordKey(sid(2)), value, nil))

	_, err = s.Get(sid(2))
	require.ErrorIs(t, err, ErrCorrupt)

	err = s.Iterate(func(keyshare.SessionID, *keyshare.Record) error { return nil })
	require.ErrorIs(t, err, ErrCorrupt)

	require.NoError(t, s.db.Set(recordKey(sid(3)), []byte{1}, nil))
	_, err = s.Get(sid(3))
	require.ErrorIs(t, err, ErrCorrupt)

	_, err = s.Get(sid(1))
	require.NoError(t, err)
}
