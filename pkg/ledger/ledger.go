// Package ledger defines the payment boundary the dispatcher charges
// against, plus an in-memory reference implementation. Production
// deployments implement Ledger against the real royalty system.
package ledger

import (
	"sync"
	"time"

	"github.com/janus-web/janus-db/pkg/types"
)

// Ledger prices chunk storage and records publications for royalty
// attribution. PriceOf must be deterministic for a given chunk so the
// dispatcher can price an entire payload before committing any of it.
type Ledger interface {
	PriceOf(chunk []byte) uint64
	RecordPublication(address types.Hash, publisher string)
}

// Publication is one audit record of a committed chunk.
type Publication struct {
	Address   types.Hash
	Publisher string
	At        time.Time
}

// Memory is a Ledger pricing per started KiB, keeping publications in
// memory.
type Memory struct {
	perKiB uint64

	mu   sync.Mutex
	pubs []Publication
}

// NewMemory builds a ledger charging perKiB units per started KiB of chunk
// bytes. perKiB 0 makes all writes free.
func NewMemory(perKiB uint64) *Memory {
	return &Memory{perKiB: perKiB}
}

func (m *Memory) PriceOf(chunk []byte) uint64 {
	if m.perKiB == 0 || len(chunk) == 0 {
		return 0
	}
	startedKiB := (uint64(len(chunk)) + 1023) / 1024
	return startedKiB * m.perKiB
}

func (m *Memory) RecordPublication(address types.Hash, publisher string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pubs = append(m.pubs, Publication{
		Address:   address,
		Publisher: publisher,
		At:        time.Now().UTC(),
	})
}

// Publications returns a copy of the audit log.
func (m *Memory) Publications() []Publication {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Publication, len(m.pubs))
	copy(out, m.pubs)
	return out
}
