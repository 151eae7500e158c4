// Package bytestore is the content-addressed chunk byte store. Chunk bytes
// are addressed by sha512 over bytes plus the storage format version,
// compressed with lzma and sealed with XChaCha20-Poly1305 before they reach
// the key-value layer. Storing identical bytes twice is a no-op.
package bytestore

import (
	"bytes"
	"crypto/cipher"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"sort"

	"github.com/ulikunitz/xz/lzma"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/janus-web/janus-db/internal/keyValStore"
	"github.com/janus-web/janus-db/pkg/types"
	workerpool "github.com/janus-web/janus-db/pkg/workerPool"
)

var chunkKeyPrefix = []byte("chunk:")

type Store struct {
	kv   *keyValStore.KeyValStore
	aead cipher.AEAD
	wp   *workerpool.WorkerPool
	log  *slog.Logger
}

// New builds a byte store sealing payloads with a key derived from secret.
// The same secret must be used across restarts or previously stored chunks
// become unreadable.
func New(kv *keyValStore.KeyValStore, secret string, wp *workerpool.WorkerPool, log *slog.Logger) (*Store, error) {
	key := sha256.Sum256([]byte(secret))
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, fmt.Errorf("init aead: %w", err)
	}

	return &Store{
		kv:   kv,
		aead: aead,
		wp:   wp,
		log:  log,
	}, nil
}

// AddressOf computes the content address of chunk bytes without storing them.
func (s *Store) AddressOf(b []byte) types.Hash {
	return types.AddressOf(b)
}

// Store persists one chunk and returns its address. Idempotent.
func (s *Store) Store(b []byte) (types.Hash, error) {
	addrs, err := s.StoreBatch([][]byte{b})
	if err != nil {
		return types.Hash{}, err
	}
	return addrs[0], nil
}

type sealedChunk struct {
	index  int
	addr   types.Hash
	sealed []byte
	err    error
}

// StoreBatch persists chunks in input order and returns their addresses.
// Compression and sealing run on the worker pool; only chunks whose address
// is not yet present are written to the key-value layer.
func (s *Store) StoreBatch(chunks [][]byte) ([]types.Hash, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	room := s.wp.CreateRoom(len(chunks))
	room.AsyncCollector()

	for i, chunk := range chunks {
		i, chunk := i, chunk
		room.NewTaskWaitForFreeSlot(func() interface{} {
			addr := types.AddressOf(chunk)

			compressed, err := compressWithLzma(chunk)
			if err != nil {
				return sealedChunk{index: i, err: err}
			}

			// The nonce is derived from the address: the key/nonce pair is
			// unique per distinct content, and re-sealing the same content
			// yields the same ciphertext, which keeps writes idempotent.
			sealed := s.aead.Seal(nil, addr[:chacha20poly1305.NonceSizeX], compressed, nil)

			return sealedChunk{index: i, addr: addr, sealed: sealed}
		})
	}

	results, err := room.GetAsyncResults()
	if err != nil {
		return nil, err
	}

	sealedChunks := make([]sealedChunk, 0, len(results))
	for _, r := range results {
		sc := r.(sealedChunk)
		if sc.err != nil {
			return nil, fmt.Errorf("seal chunk: %w", sc.err)
		}
		sealedChunks = append(sealedChunks, sc)
	}
	sort.Slice(sealedChunks, func(a, b int) bool {
		return sealedChunks[a].index < sealedChunks[b].index
	})

	entries := make([]keyValStore.Entry, 0, len(sealedChunks))
	addrs := make([]types.Hash, len(sealedChunks))
	for _, sc := range sealedChunks {
		addrs[sc.index] = sc.addr
		entries = append(entries, keyValStore.Entry{
			Key:   chunkKey(sc.addr),
			Value: sc.sealed,
		})
	}

	if err := s.kv.BatchWriteNonExisting(entries); err != nil {
		return nil, fmt.Errorf("write chunks: %w", err)
	}

	return addrs, nil
}

// Load fetches, opens and decompresses one chunk and verifies its address.
func (s *Store) Load(h types.Hash) ([]byte, error) {
	sealed, err := s.kv.Read(chunkKey(h))
	if err != nil {
		return nil, fmt.Errorf("load chunk %s: %w", h, err)
	}

	compressed, err := s.aead.Open(nil, h[:chacha20poly1305.NonceSizeX], sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("unseal chunk %s: %w", h, err)
	}

	chunk, err := decompressWithLzma(compressed)
	if err != nil {
		return nil, fmt.Errorf("decompress chunk %s: %w", h, err)
	}

	if types.AddressOf(chunk) != h {
		return nil, fmt.Errorf("chunk %s failed content verification", h)
	}

	return chunk, nil
}

func chunkKey(h types.Hash) []byte {
	return append(append([]byte{}, chunkKeyPrefix...), h[:]...)
}

func compressWithLzma(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := lzma.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressWithLzma(data []byte) ([]byte, error) {
	r, err := lzma.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
