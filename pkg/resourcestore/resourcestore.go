// Package resourcestore persists the mutable per-path ResourceMetadata
// record. It enforces nothing: authorization and state transitions are the
// dispatcher's job, layered on top.
package resourcestore

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/janus-web/janus-db/internal/keyValStore"
	"github.com/janus-web/janus-db/pkg/types"
)

var metaKeyPrefix = []byte("res:meta:")

type kvStore interface {
	Write(key []byte, content []byte) error
	Read(key []byte) ([]byte, error)
}

type Store struct {
	kv kvStore
}

func New(kv kvStore) *Store {
	return &Store{kv: kv}
}

// Read returns the metadata for path. A path with no history yields a
// zero-valued record and no error; callers distinguish via Version == 0.
func (s *Store) Read(path string) (types.ResourceMetadata, error) {
	raw, err := s.kv.Read(metaKey(path))
	if errors.Is(err, keyValStore.ErrNotFound) {
		return types.ResourceMetadata{}, nil
	}
	if err != nil {
		return types.ResourceMetadata{}, fmt.Errorf("read metadata for %s: %w", path, err)
	}

	var md types.ResourceMetadata
	if err := json.Unmarshal(raw, &md); err != nil {
		return types.ResourceMetadata{}, fmt.Errorf("decode metadata for %s: %w", path, err)
	}
	return md, nil
}

// Write replaces the metadata record for path.
func (s *Store) Write(path string, md types.ResourceMetadata) error {
	entry := s.Entry(path, md)
	if err := s.kv.Write(entry.Key, entry.Value); err != nil {
		return fmt.Errorf("write metadata for %s: %w", path, err)
	}
	return nil
}

// Entry encodes the metadata record as a raw store entry, for callers that
// commit it together with other records in one transaction.
func (s *Store) Entry(path string, md types.ResourceMetadata) keyValStore.Entry {
	return keyValStore.Entry{Key: metaKey(path), Value: md.CanonicalJSON()}
}

func metaKey(path string) []byte {
	return append(append([]byte{}, metaKeyPrefix...), path...)
}
