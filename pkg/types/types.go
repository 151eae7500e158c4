// Package types holds the small shared value types of the engine: content
// hashes, role identifiers, the protocol method space, header records and
// per-path resource metadata. Everything here is plain data; behaviour lives
// in the stores and the dispatcher.
package types

import (
	"crypto/sha512"
	"encoding/hex"
	"fmt"
)

// StorageFormatVersion is appended to chunk bytes before hashing so that a
// change of on-disk format yields new addresses instead of colliding with
// old ones.
const StorageFormatVersion byte = 1

type Hash [64]byte

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

func (h Hash) Bytes() []byte {
	return h[:]
}

func (h Hash) IsZero() bool {
	return h == Hash{}
}

func (h *Hash) FromBytes(b []byte) error {
	if len(b) != 64 {
		return fmt.Errorf("invalid byte length for Hash: %d", len(b))
	}
	copy(h[:], b)
	return nil
}

// MarshalText encodes the hash as lowercase hex so Hash values can be used
// in JSON documents and as map keys.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(h[:])), nil
}

func (h *Hash) UnmarshalText(text []byte) error {
	decoded, err := hex.DecodeString(string(text))
	if err != nil {
		return fmt.Errorf("invalid hash hex: %w", err)
	}
	return h.FromBytes(decoded)
}

// ParseHash decodes a hex-encoded hash string.
func ParseHash(s string) (Hash, error) {
	var h Hash
	if err := h.UnmarshalText([]byte(s)); err != nil {
		return Hash{}, err
	}
	return h, nil
}

// HashBytes hashes raw bytes without the storage format version. Used for
// etags and header refs, where the input already carries its own framing.
func HashBytes(b []byte) Hash {
	return sha512.Sum512(b)
}

// AddressOf computes the content address of a chunk:
// sha512(bytes ++ StorageFormatVersion).
func AddressOf(b []byte) Hash {
	d := sha512.New()
	d.Write(b)
	d.Write([]byte{StorageFormatVersion})
	var h Hash
	copy(h[:], d.Sum(nil))
	return h
}

// RoleId names a role a subject may hold. Roles are opaque to the engine;
// membership is answered by a RoleStore.
type RoleId string

// SuperAdmin is the reserved role that is implicitly authorized for every
// method on every path. It is also the conservative fallback when a header
// carries no per-method origins list.
const SuperAdmin RoleId = "super-admin"
