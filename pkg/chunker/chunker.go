// Package chunker splits payloads into the chunk sequences the engine
// commits. Two modes are supported: fixed-size slots (the default, stable
// offsets for PATCH range writes) and buzhash content-defined chunking
// (better cross-resource dedup for append-heavy content).
package chunker

import (
	"bytes"
	"fmt"
	"io"

	chunker "github.com/ipfs/boxo/chunker"
)

type Mode string

const (
	ModeFixed   Mode = "fixed"
	ModeBuzhash Mode = "buzhash"
)

// DefaultChunkSize is the fixed-mode slot size.
const DefaultChunkSize = 32 * 1024

// Split chunks data according to mode. size is only meaningful for
// ModeFixed; zero selects DefaultChunkSize.
func Split(data []byte, mode Mode, size int) ([][]byte, error) {
	switch mode {
	case "", ModeFixed:
		return SplitFixed(data, size), nil
	case ModeBuzhash:
		return SplitBuzhash(data)
	}
	return nil, fmt.Errorf("unknown chunking mode %q", mode)
}

// SplitFixed cuts data into size-byte chunks; the last chunk carries the
// remainder. Empty data yields no chunks.
func SplitFixed(data []byte, size int) [][]byte {
	if size <= 0 {
		size = DefaultChunkSize
	}

	chunks := make([][]byte, 0, (len(data)+size-1)/size)
	for start := 0; start < len(data); start += size {
		end := start + size
		if end > len(data) {
			end = len(data)
		}
		chunk := make([]byte, end-start)
		copy(chunk, data[start:end])
		chunks = append(chunks, chunk)
	}
	return chunks
}

// SplitBuzhash cuts data at content-defined boundaries.
func SplitBuzhash(data []byte) ([][]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	bz := chunker.NewBuzhash(bytes.NewReader(data))

	var chunks [][]byte
	for {
		chunk, err := bz.NextBytes()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading chunk: %w", err)
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}
