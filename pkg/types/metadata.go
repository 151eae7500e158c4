package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// ContentProperties carries the semantic description of a resource's bytes.
// The engine stores and returns it but never interprets it.
type ContentProperties struct {
	MimeType string `json:"mimeType,omitempty"`
	Charset  string `json:"charset,omitempty"`
	Encoding string `json:"encoding,omitempty"`
	Language string `json:"language,omitempty"`
}

// ResourceMetadata is the mutable per-path record. Version 0 means the path
// never had content; Version > 0 with Size 0 means the content was deleted
// (the Gone state). Header is the content address of the governing
// HeaderInfo; a zero hash resolves to DefaultHeader.
type ResourceMetadata struct {
	Properties   ContentProperties `json:"properties"`
	Size         uint64            `json:"size"`
	Version      uint64            `json:"version"`
	LastModified time.Time         `json:"lastModified"`
	Header       Hash              `json:"header"`
}

// Exists reports whether the path has any history at all.
func (m ResourceMetadata) Exists() bool {
	return m.Version > 0
}

// Gone is the canonical gone predicate: previously existed, now empty.
// It is deliberately independent of the header's immutable flag.
func (m ResourceMetadata) Gone() bool {
	return m.Version > 0 && m.Size == 0
}

// Live reports whether the path currently serves content.
func (m ResourceMetadata) Live() bool {
	return m.Version > 0 && m.Size > 0
}

// CanonicalJSON is the encoding used for persistence and etag derivation.
func (m ResourceMetadata) CanonicalJSON() []byte {
	encoded, err := json.Marshal(m)
	if err != nil {
		panic(fmt.Sprintf("encode metadata: %v", err))
	}
	return encoded
}
