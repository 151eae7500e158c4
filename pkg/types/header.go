package types

import (
	"encoding/json"
	"fmt"
)

// CachePreset selects one of the predefined cache policies. Custom carries a
// verbatim policy string when the preset is CachePresetCustom.
type CachePreset uint8

const (
	CachePresetNone CachePreset = iota
	CachePresetNoCache
	CachePresetPublic
	CachePresetPrivate
	CachePresetCustom
)

// CachePolicy is the caching part of a header record. Immutable permanently
// forbids further mutation of any resource referencing this header once that
// resource has at least one committed version.
type CachePolicy struct {
	Immutable bool        `json:"immutable"`
	Preset    CachePreset `json:"preset"`
	Custom    string      `json:"custom,omitempty"`
}

// CORSPreset selects one of the predefined origin policies.
type CORSPreset uint8

const (
	CORSPresetNone CORSPreset = iota
	CORSPresetAllowAll
	CORSPresetCustom
)

// CORSPolicy enables methods and names the role required per method.
// Origins must have either zero entries (fall back to the super-admin role
// for every method) or exactly MethodCount entries, one per method slot.
type CORSPolicy struct {
	Methods MethodSet  `json:"methods"`
	Origins []RoleId   `json:"origins,omitempty"`
	Preset  CORSPreset `json:"preset"`
	Custom  string     `json:"custom,omitempty"`
}

// RedirectPolicy declares a header-level redirect. Code 0 means no redirect.
type RedirectPolicy struct {
	Code     uint16 `json:"code"`
	Location string `json:"location,omitempty"`
}

// HeaderInfo is the immutable, content-addressed configuration record shared
// between resources. Identical configurations share one record; the record
// is looked up and created by the hash of its canonical encoding.
type HeaderInfo struct {
	Cache    CachePolicy    `json:"cache"`
	CORS     CORSPolicy     `json:"cors"`
	Redirect RedirectPolicy `json:"redirect"`
}

// Validate rejects malformed headers at the boundary. The only structural
// constraint is the origins list length.
func (h HeaderInfo) Validate() error {
	if n := len(h.CORS.Origins); n != 0 && n != MethodCount {
		return fmt.Errorf("cors origins must have 0 or %d entries, got %d", MethodCount, n)
	}
	return nil
}

// Ref computes the content address of the header record. Field-for-field
// equal headers always produce the same ref.
func (h HeaderInfo) Ref() Hash {
	// json.Marshal on a fixed struct is deterministic, so the encoding is
	// canonical as long as the struct shape does not change.
	encoded, err := json.Marshal(h)
	if err != nil {
		// Only unmarshalable types can fail here and HeaderInfo has none.
		panic(fmt.Sprintf("encode header: %v", err))
	}
	d := append(encoded, StorageFormatVersion)
	return HashBytes(d)
}

// DefaultHeader is the policy applied to paths that never received a DEFINE:
// all methods except CONNECT enabled, no per-method origins (super-admin
// required), no redirect, nothing pinned immutable.
func DefaultHeader() HeaderInfo {
	return HeaderInfo{
		CORS: CORSPolicy{Methods: DefaultMethods()},
	}
}
