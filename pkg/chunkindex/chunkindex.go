// Package chunkindex maintains the ordered chunk sequence of each path.
// Entries reference content-addressed chunks in the byte store; two paths
// holding identical bytes share the same chunk addresses. Sequences are
// contiguous: a commit may extend or overwrite slots but never leave gaps.
package chunkindex

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/janus-web/janus-db/internal/keyValStore"
	"github.com/janus-web/janus-db/pkg/types"
)

var seqKeyPrefix = []byte("res:seq:")

// Ref is one slot of a path's chunk sequence.
type Ref struct {
	Address types.Hash `json:"address"`
	Length  uint32     `json:"length"`
}

type kvStore interface {
	Read(key []byte) ([]byte, error)
	BatchWriteAtomic(entries []keyValStore.Entry) error
}

// ByteStore is the content-addressed chunk byte store the index commits
// into. Storing identical bytes twice must be a no-op.
type ByteStore interface {
	AddressOf(b []byte) types.Hash
	StoreBatch(chunks [][]byte) ([]types.Hash, error)
	Load(h types.Hash) ([]byte, error)
}

type Index struct {
	kv    kvStore
	bytes ByteStore
}

func New(kv kvStore, bytes ByteStore) *Index {
	return &Index{kv: kv, bytes: bytes}
}

// Sequence returns the ordered chunk refs of path. A path with no chunks
// yields an empty sequence, not an error.
func (x *Index) Sequence(path string) ([]Ref, error) {
	raw, err := x.kv.Read(seqKey(path))
	if errors.Is(err, keyValStore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read sequence for %s: %w", path, err)
	}

	var seq []Ref
	if err := json.Unmarshal(raw, &seq); err != nil {
		return nil, fmt.Errorf("decode sequence for %s: %w", path, err)
	}
	return seq, nil
}

// RangeRead returns the subsequence [start, end) of the path's refs.
// end == 0 means "through the last chunk"; negative offsets count from the
// end; out-of-bounds offsets clamp; inverted ranges yield an empty result.
func (x *Index) RangeRead(path string, start, end int) ([]Ref, error) {
	seq, err := x.Sequence(path)
	if err != nil {
		return nil, err
	}

	lo, hi := resolveRange(len(seq), start, end)
	if lo >= hi {
		return nil, nil
	}
	return seq[lo:hi], nil
}

// Staged is a prepared sequence update. The chunk bytes are already
// persisted (content-addressed, so an abandoned stage leaves no garbage a
// later identical write would not reuse); the sequence itself becomes
// visible only when Apply commits it.
type Staged struct {
	index   *Index
	path    string
	written []Ref
	merged  []Ref
}

// Written lists the refs of the staged chunks, in input order.
func (st *Staged) Written() []Ref {
	return st.written
}

// Size is the total byte size the path's sequence will have once applied.
func (st *Staged) Size() uint64 {
	return TotalSize(st.merged)
}

// Apply commits the staged sequence, together with any extra records, in a
// single transaction. Readers observe all of it or none of it.
func (st *Staged) Apply(with ...keyValStore.Entry) error {
	encoded, err := json.Marshal(st.merged)
	if err != nil {
		return fmt.Errorf("encode sequence for %s: %w", st.path, err)
	}

	entries := make([]keyValStore.Entry, 0, 1+len(with))
	entries = append(entries, keyValStore.Entry{Key: seqKey(st.path), Value: encoded})
	entries = append(entries, with...)

	if err := st.index.kv.BatchWriteAtomic(entries); err != nil {
		return fmt.Errorf("commit sequence for %s: %w", st.path, err)
	}
	return nil
}

// Stage prepares a commit of chunks into the path's sequence starting at
// slot startIndex, overwriting existing slots and extending the sequence as
// needed. A negative startIndex counts from the end of the current
// sequence. Staging past the current length is rejected: committed
// sequences have no gaps.
func (x *Index) Stage(path string, chunks [][]byte, startIndex int) (*Staged, error) {
	seq, err := x.Sequence(path)
	if err != nil {
		return nil, err
	}

	idx := startIndex
	if idx < 0 {
		idx = len(seq) + idx
	}
	if idx < 0 || idx > len(seq) {
		return nil, fmt.Errorf("commit at slot %d outside contiguous sequence of length %d", startIndex, len(seq))
	}

	written, err := x.store(chunks)
	if err != nil {
		return nil, err
	}

	merged := make([]Ref, 0, max(len(seq), idx+len(written)))
	merged = append(merged, seq[:idx]...)
	merged = append(merged, written...)
	if idx+len(written) < len(seq) {
		merged = append(merged, seq[idx+len(written):]...)
	}

	return &Staged{index: x, path: path, written: written, merged: merged}, nil
}

// StageReplace prepares a whole-sequence replacement: once applied, the
// path's sequence consists of exactly the staged chunks.
func (x *Index) StageReplace(path string, chunks [][]byte) (*Staged, error) {
	written, err := x.store(chunks)
	if err != nil {
		return nil, err
	}
	return &Staged{index: x, path: path, written: written, merged: written}, nil
}

// Commit stages chunks at startIndex and applies the update immediately.
func (x *Index) Commit(path string, chunks [][]byte, startIndex int) ([]Ref, error) {
	st, err := x.Stage(path, chunks, startIndex)
	if err != nil {
		return nil, err
	}
	if err := st.Apply(); err != nil {
		return nil, err
	}
	return st.Written(), nil
}

// Truncate clears the path's sequence, committing any extra records in the
// same transaction. Chunk bytes are globally shared and stay untouched;
// other paths referencing the same addresses are unaffected.
func (x *Index) Truncate(path string, with ...keyValStore.Entry) error {
	entries := make([]keyValStore.Entry, 0, 1+len(with))
	entries = append(entries, keyValStore.Entry{Key: seqKey(path), Value: []byte("[]")})
	entries = append(entries, with...)

	if err := x.kv.BatchWriteAtomic(entries); err != nil {
		return fmt.Errorf("truncate sequence for %s: %w", path, err)
	}
	return nil
}

func (x *Index) store(chunks [][]byte) ([]Ref, error) {
	addrs, err := x.bytes.StoreBatch(chunks)
	if err != nil {
		return nil, err
	}

	written := make([]Ref, len(chunks))
	for i, chunk := range chunks {
		written[i] = Ref{Address: addrs[i], Length: uint32(len(chunk))}
	}
	return written, nil
}

// Load fetches the bytes of one ref from the byte store.
func (x *Index) Load(ref Ref) ([]byte, error) {
	return x.bytes.Load(ref.Address)
}

// TotalSize sums the byte lengths of a sequence.
func TotalSize(seq []Ref) uint64 {
	var total uint64
	for _, ref := range seq {
		total += uint64(ref.Length)
	}
	return total
}

func seqKey(path string) []byte {
	return append(append([]byte{}, seqKeyPrefix...), path...)
}

// resolveRange maps the protocol's range sugar onto [lo, hi) slot bounds.
func resolveRange(n, start, end int) (int, int) {
	lo := start
	if lo < 0 {
		lo = n + lo
	}

	hi := end
	switch {
	case hi == 0:
		hi = n
	case hi < 0:
		hi = n + hi
	}

	if lo < 0 {
		lo = 0
	}
	if hi > n {
		hi = n
	}
	return lo, hi
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
