// Package headerstore persists the immutable, content-addressed HeaderInfo
// records. Identical configurations share one record; records are cached in
// memory without locking concerns because they never change after creation.
package headerstore

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/janus-web/janus-db/pkg/types"
)

var headerKeyPrefix = []byte("hdr:")

type kvStore interface {
	Write(key []byte, content []byte) error
	Read(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
}

type Store struct {
	kv kvStore

	cacheMu sync.RWMutex
	cache   map[types.Hash]types.HeaderInfo
}

func New(kv kvStore) *Store {
	return &Store{
		kv:    kv,
		cache: make(map[types.Hash]types.HeaderInfo),
	}
}

// CreateOrGet stores the header if no content-identical record exists and
// returns its ref. Idempotent: equal headers always map to the same ref.
func (s *Store) CreateOrGet(h types.HeaderInfo) (types.Hash, error) {
	if err := h.Validate(); err != nil {
		return types.Hash{}, err
	}

	ref := h.Ref()

	s.cacheMu.RLock()
	_, cached := s.cache[ref]
	s.cacheMu.RUnlock()
	if cached {
		return ref, nil
	}

	exists, err := s.kv.Has(headerKey(ref))
	if err != nil {
		return types.Hash{}, fmt.Errorf("check header %s: %w", ref, err)
	}
	if !exists {
		encoded, err := json.Marshal(h)
		if err != nil {
			return types.Hash{}, fmt.Errorf("encode header: %w", err)
		}
		if err := s.kv.Write(headerKey(ref), encoded); err != nil {
			return types.Hash{}, fmt.Errorf("write header %s: %w", ref, err)
		}
	}

	s.cacheMu.Lock()
	s.cache[ref] = h
	s.cacheMu.Unlock()

	return ref, nil
}

// Read fetches a header record by ref.
func (s *Store) Read(ref types.Hash) (types.HeaderInfo, error) {
	s.cacheMu.RLock()
	h, cached := s.cache[ref]
	s.cacheMu.RUnlock()
	if cached {
		return h, nil
	}

	raw, err := s.kv.Read(headerKey(ref))
	if err != nil {
		return types.HeaderInfo{}, fmt.Errorf("read header %s: %w", ref, err)
	}

	if err := json.Unmarshal(raw, &h); err != nil {
		return types.HeaderInfo{}, fmt.Errorf("decode header %s: %w", ref, err)
	}

	s.cacheMu.Lock()
	s.cache[ref] = h
	s.cacheMu.Unlock()

	return h, nil
}

func headerKey(ref types.Hash) []byte {
	return append(append([]byte{}, headerKeyPrefix...), ref[:]...)
}
