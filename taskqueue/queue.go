package taskqueue

import (
	"github.com/cockroachdb/pebble"
)

// Spool is a small wrapper around a Pebble DB holding pending submissions so
// they survive a restart.
type Spool struct {
	DB       *pebble.DB
	DataFile string
}

// Open opens (or creates) a pebble DB at the given dataFile path and returns
// a Spool wrapper.
func Open(dataFile string) (*Spool, error) {
	db, err := pebble.Open(dataFile, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &Spool{DB: db, DataFile: dataFile}, nil
}

// Add stores a value under the given key.
func (s *Spool) Add(key string, value []byte) error {
	return s.DB.Set([]byte(key), value, pebble.Sync)
}

// Get returns a copy of the value for the given key.
func (s *Spool) Get(key string) ([]byte, error) {
	value, closer, err := s.DB.Get([]byte(key))
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Delete removes the key from the DB.
func (s *Spool) Delete(key string) error {
	return s.DB.Delete([]byte(key), pebble.Sync)
}

// List returns every key/value pair in the spool.
func (s *Spool) List() (map[string][]byte, error) {
	iter, err := s.DB.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	entries := make(map[string][]byte)
	for iter.First(); iter.Valid(); iter.Next() {
		value := make([]byte, len(iter.Value()))
		copy(value, iter.Value())
		entries[string(iter.Key())] = value
	}
	return entries, nil
}

// Close closes the underlying DB.
func (s *Spool) Close() error {
	return s.DB.Close()
}
