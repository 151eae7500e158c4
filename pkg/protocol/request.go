package protocol

import (
	"time"

	"github.com/janus-web/janus-db/pkg/chunkindex"
	"github.com/janus-web/janus-db/pkg/types"
)

// Request is the transport-independent input of the dispatcher. The
// transport layer (HTTP adapter, RPC, tests) fills in whatever the method
// needs; unused fields stay zero.
type Request struct {
	Path    string
	Method  types.Method
	Subject string

	// Payload carries the body of PUT and PATCH.
	Payload []byte

	// ChunkOffset is the slot PATCH starts writing at. Negative values
	// count from the end of the current sequence.
	ChunkOffset int

	// RangeStart/RangeEnd select chunk slots for GET and LOCATE.
	// RangeEnd 0 means "through the last chunk"; negative offsets count
	// from the end.
	RangeStart int
	RangeEnd   int

	// Conditional headers. A zero hash / zero time disables the check.
	IfNoneMatch     types.Hash
	IfModifiedSince time.Time

	// Payment supplied for PUT/PATCH, in ledger units.
	Payment uint64

	// Header carries the record to install for DEFINE.
	Header *types.HeaderInfo

	// Properties optionally replaces the content properties on PUT.
	Properties *types.ContentProperties
}

// Response is the terminal result of a dispatched request. Status carries
// the HTTP-equivalent code; the remaining fields are filled per method.
type Response struct {
	Status int

	// Body is the assembled content range for GET.
	Body []byte

	// Locations lists the chunk refs of the requested range for LOCATE.
	Locations []chunkindex.Ref

	// Allowed is the method bitset, set on OPTIONS and on header-bearing
	// reads.
	Allowed types.MethodSet

	// ETag and LastModified support conditional requests.
	ETag         types.Hash
	LastModified time.Time

	// Location is the redirect target for 3xx responses.
	Location string

	// Metadata is the resource record after the operation.
	Metadata types.ResourceMetadata
}

// ContentStatus derives the status code of a content-bearing response:
// 204 when nothing is returned, 200 when the full content is returned,
// 206 for a partial range.
func ContentStatus(returned, total uint64) int {
	switch {
	case returned == 0:
		return 204
	case returned == total:
		return 200
	default:
		return 206
	}
}
