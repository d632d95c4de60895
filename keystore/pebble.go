package keystore

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/zeebo/blake3"

	"github.com/f3rmion/keyserver/keyshare"
)

const (
	// defaultSyncInterval is the period of background WAL syncs.
	defaultSyncInterval = 100 * time.Millisecond

	// recordPrefix namespaces key-share records inside the database.
	recordPrefix = "ks/"

	// checksumSize is the length of the blake3 digest appended to each value.
	checksumSize = 8
)

// ErrCorrupt is returned when a stored value fails its checksum.
var ErrCorrupt = errors.New("keystore: corrupt record")

// PebbleStore is a Store backed by a Pebble database. Writes are not
// synced individually; a background loop syncs the WAL periodically and
// Close performs a final sync.
type PebbleStore struct {
	db       *pebble.DB
	writeMu  sync.Mutex // serializes read-check-write in Insert/Update/Delete
	stopSync chan struct{}
	wg       sync.WaitGroup
}

var _ Store = (*PebbleStore)(nil)

// OpenPebble opens or creates a store at path.
func OpenPebble(path string) (*PebbleStore, error) {
	opts := &pebble.Options{
		Cache:                       pebble.NewCache(32 << 20),
		MemTableSize:                16 << 20,
		MemTableStopWritesThreshold: 2,
	}

	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("keystore: open %s: %w", path, err)
	}

	s := &PebbleStore{
		db:       db,
		stopSync: make(chan struct{}),
	}
	s.startSyncLoop()

	return s, nil
}

func recordKey(id keyshare.SessionID) []byte {
	return append([]byte(recordPrefix), id[:]...)
}

// Get implements Store.
func (s *PebbleStore) Get(id keyshare.SessionID) (*keyshare.Record, error) {
	value, closer, err := s.db.Get(recordKey(id))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("keystore: get %s: %w", id, err)
	}
	defer closer.Close()

	return decodeValue(id, value)
}

// Insert implements Store.
func (s *PebbleStore) Insert(id keyshare.SessionID, rec *keyshare.Record) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	exists, err := s.has(id)
	if err != nil {
		return err
	}
	if exists {
		return ErrExists
	}
	return s.put(id, rec)
}

// Update implements Store.
func (s *PebbleStore) Update(id keyshare.SessionID, rec *keyshare.Record) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	exists, err := s.has(id)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return s.put(id, rec)
}

// Delete implements Store.
func (s *PebbleStore) Delete(id keyshare.SessionID) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	exists, err := s.has(id)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return s.db.Delete(recordKey(id), pebble.NoSync)
}

// Iterate implements View over a Pebble snapshot, so concurrent writes
// never show up halfway through a scan.
func (s *PebbleStore) Iterate(fn func(keyshare.SessionID, *keyshare.Record) error) error {
	snap := s.db.NewSnapshot()
	defer snap.Close()

	prefix := []byte(recordPrefix)
	iter, err := snap.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return fmt.Errorf("keystore: open iterator: %w", err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		key := iter.Key()
		if len(key) != len(recordPrefix)+keyshare.IDSize {
			return fmt.Errorf("keystore: unexpected key length %d", len(key))
		}

		var id keyshare.SessionID
		copy(id[:], key[len(recordPrefix):])

		value, err := iter.ValueAndErr()
		if err != nil {
			return fmt.Errorf("keystore: read %s: %w", id, err)
		}

		rec, err := decodeValue(id, value)
		if err != nil {
			return err
		}

		if err := fn(id, rec); err != nil {
			return err
		}
	}

	return iter.Error()
}

// Close stops the sync loop, syncs the WAL and closes the database.
func (s *PebbleStore) Close() error {
	close(s.stopSync)
	s.wg.Wait()

	if err := s.sync(); err != nil {
		return err
	}
	return s.db.Close()
}

func (s *PebbleStore) has(id keyshare.SessionID) (bool, error) {
	_, closer, err := s.db.Get(recordKey(id))
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("keystore: lookup %s: %w", id, err)
	}
	closer.Close()
	return true, nil
}

func (s *PebbleStore) put(id keyshare.SessionID, rec *keyshare.Record) error {
	value, err := encodeValue(rec)
	if err != nil {
		return fmt.Errorf("keystore: encode %s: %w", id, err)
	}
	return s.db.Set(recordKey(id), value, pebble.NoSync)
}

// encodeValue returns the record encoding followed by its checksum.
func encodeValue(rec *keyshare.Record) ([]byte, error) {
	data, err := rec.MarshalBinary()
	if err != nil {
		return nil, err
	}
	sum := blake3.Sum256(data)
	return append(data, sum[:checksumSize]...), nil
}

// decodeValue checks and decodes a value written by encodeValue.
func decodeValue(id keyshare.SessionID, value []byte) (*keyshare.Record, error) {
	if len(value) < checksumSize {
		return nil, fmt.Errorf("%w: %s: value of %d bytes", ErrCorrupt, id, len(value))
	}

	data, stored := value[:len(value)-checksumSize], value[len(value)-checksumSize:]
	sum := blake3.Sum256(data)
	if !bytes.Equal(sum[:checksumSize], stored) {
		return nil, fmt.Errorf("%w: %s: checksum mismatch", ErrCorrupt, id)
	}

	rec := &keyshare.Record{}
	if err := rec.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("keystore: decode %s: %w", id, err)
	}
	return rec, nil
}

// prefixUpperBound returns the exclusive upper bound of a prefix scan,
// or nil when the prefix is all 0xFF.
func prefixUpperBound(prefix []byte) []byte {
	upper := append([]byte(nil), prefix...)
	for i := len(upper) - 1; i >= 0; i-- {
		upper[i]++
		if upper[i] != 0 {
			return upper[:i+1]
		}
	}
	return nil
}

func (s *PebbleStore) startSyncLoop() {
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(defaultSyncInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				_ = s.sync()
			case <-s.stopSync:
				return
			}
		}
	}()
}

func (s *PebbleStore) sync() error {
	return s.db.LogData(nil, pebble.Sync)
}
