// Package protocol implements the method state machine of the engine:
// authorization, existence and staleness checks, status derivation, and the
// single commit point of each mutating method against the header, resource
// and chunk stores.
package protocol

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/janus-web/janus-db/pkg/chunker"
	"github.com/janus-web/janus-db/pkg/chunkindex"
	"github.com/janus-web/janus-db/pkg/headerstore"
	"github.com/janus-web/janus-db/pkg/ledger"
	"github.com/janus-web/janus-db/pkg/permission"
	"github.com/janus-web/janus-db/pkg/resourcestore"
	"github.com/janus-web/janus-db/pkg/types"
)

// Config tunes how PUT/PATCH payloads are cut into chunks.
type Config struct {
	ChunkMode chunker.Mode
	ChunkSize int
}

type Dispatcher struct {
	resources *resourcestore.Store
	headers   *headerstore.Store
	chunks    *chunkindex.Index
	resolver  *permission.Resolver
	ledger    ledger.Ledger
	log       *slog.Logger
	config    Config

	locks pathLocks
}

// New wires the dispatcher. The permission resolver is built here because
// the dispatcher itself is its header source.
func New(
	resources *resourcestore.Store,
	headers *headerstore.Store,
	chunks *chunkindex.Index,
	roles permission.RoleStore,
	pay ledger.Ledger,
	log *slog.Logger,
	config Config,
) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}

	d := &Dispatcher{
		resources: resources,
		headers:   headers,
		chunks:    chunks,
		ledger:    pay,
		log:       log,
		config:    config,
		locks:     pathLocks{locks: make(map[string]*sync.RWMutex)},
	}
	d.resolver = permission.NewResolver(d, roles, log)
	return d
}

// Resolver exposes the permission resolver, mainly for tests and tooling.
func (d *Dispatcher) Resolver() *permission.Resolver {
	return d.resolver
}

// HeaderFor resolves the header currently governing a path. Paths without
// an installed header resolve to the built-in default.
func (d *Dispatcher) HeaderFor(path string) (types.HeaderInfo, error) {
	md, err := d.resources.Read(path)
	if err != nil {
		return types.HeaderInfo{}, err
	}
	return d.headerOf(md)
}

func (d *Dispatcher) headerOf(md types.ResourceMetadata) (types.HeaderInfo, error) {
	if md.Header.IsZero() {
		return types.DefaultHeader(), nil
	}
	return d.headers.Read(md.Header)
}

// Handle runs one request through the state machine. All precondition
// failures surface as typed StatusError values before any state changes;
// each mutating method has exactly one commit point.
func (d *Dispatcher) Handle(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	if !req.Method.Valid() {
		return Response{}, &InvalidRequestError{Reason: fmt.Sprintf("method index %d out of range", req.Method)}
	}
	if req.Path == "" {
		return Response{}, &InvalidRequestError{Reason: "empty path"}
	}

	// Mutations on the same path are serialized; metadata, version and the
	// chunk sequence are read-modify-written as one unit. Reads take the
	// read side so a request observes one committed state, never a commit
	// mid-flight.
	lock := d.locks.acquire(req.Path)
	if req.Method.Mutates() {
		lock.Lock()
		defer lock.Unlock()
	} else {
		lock.RLock()
		defer lock.RUnlock()
	}

	md, err := d.resources.Read(req.Path)
	if err != nil {
		return Response{}, err
	}
	hdr, err := d.headerOf(md)
	if err != nil {
		return Response{}, err
	}

	// Authorization runs before the conditional check: a caller the header
	// rejects must get 405/403, not a 304 that discloses the etag.
	if resp, err := d.authorize(req, hdr); err != nil {
		return resp, err
	}

	// Conditional short-circuit for reads of existing resources.
	switch req.Method {
	case types.MethodGet, types.MethodHead, types.MethodLocate:
		if md.Exists() {
			etag, err := d.etagFor(md, req.Path, req.RangeStart, req.RangeEnd)
			if err != nil {
				return Response{}, err
			}
			if notModified(req, md, etag) {
				return Response{
					Status:       304,
					ETag:         etag,
					LastModified: md.LastModified,
					Allowed:      hdr.CORS.Methods,
				}, nil
			}
		}
	}

	// A header-declared redirect takes precedence over normal success,
	// except for DEFINE and DELETE, which must be able to reach and
	// replace the redirect itself.
	if hdr.Redirect.Code != 0 && req.Method != types.MethodDefine && req.Method != types.MethodDelete {
		return Response{
			Status:   int(hdr.Redirect.Code),
			Location: hdr.Redirect.Location,
			Allowed:  hdr.CORS.Methods,
		}, nil
	}

	switch req.Method {
	case types.MethodOptions:
		return Response{Status: 204, Allowed: hdr.CORS.Methods}, nil
	case types.MethodHead:
		return d.handleHead(req, md, hdr)
	case types.MethodGet, types.MethodLocate:
		return d.handleRead(req, md, hdr)
	case types.MethodDefine:
		return d.handleDefine(req, md, hdr)
	case types.MethodPut:
		return d.handlePut(req, md, hdr)
	case types.MethodPatch:
		return d.handlePatch(req, md, hdr)
	case types.MethodDelete:
		return d.handleDelete(req, md, hdr)
	case types.MethodConnect:
		return Response{}, &MethodNotAllowedError{
			Method:    req.Method,
			Allowed:   hdr.CORS.Methods.Without(types.MethodConnect),
			Immutable: hdr.Cache.Immutable,
		}
	}
	return Response{}, &InvalidRequestError{Reason: "unhandled method"}
}

func (d *Dispatcher) authorize(req Request, hdr types.HeaderInfo) (Response, error) {
	allowed, err := d.resolver.MethodAllowed(req.Path, req.Method, req.Subject)
	if err != nil {
		return Response{}, err
	}
	if !allowed {
		return Response{}, &MethodNotAllowedError{
			Method:    req.Method,
			Allowed:   hdr.CORS.Methods,
			Immutable: hdr.Cache.Immutable,
		}
	}

	authorized, err := d.resolver.IsAuthorized(req.Path, req.Method, req.Subject)
	if err != nil {
		return Response{}, err
	}
	if !authorized {
		required, err := d.resolver.AuthorizedRole(req.Path, req.Method)
		if err != nil {
			return Response{}, err
		}
		return Response{}, &ForbiddenError{Method: req.Method, Required: required}
	}
	return Response{}, nil
}

func (d *Dispatcher) handleHead(req Request, md types.ResourceMetadata, hdr types.HeaderInfo) (Response, error) {
	if err := existsForRead(req.Path, md); err != nil {
		return Response{}, err
	}

	etag, err := d.etagFor(md, req.Path, req.RangeStart, req.RangeEnd)
	if err != nil {
		return Response{}, err
	}

	return Response{
		Status:       ContentStatus(md.Size, md.Size),
		ETag:         etag,
		LastModified: md.LastModified,
		Allowed:      hdr.CORS.Methods,
		Metadata:     md,
	}, nil
}

func (d *Dispatcher) handleRead(req Request, md types.ResourceMetadata, hdr types.HeaderInfo) (Response, error) {
	if err := existsForRead(req.Path, md); err != nil {
		return Response{}, err
	}

	refs, err := d.chunks.RangeRead(req.Path, req.RangeStart, req.RangeEnd)
	if err != nil {
		return Response{}, err
	}

	etag, err := d.etagFor(md, req.Path, req.RangeStart, req.RangeEnd)
	if err != nil {
		return Response{}, err
	}

	resp := Response{
		ETag:         etag,
		LastModified: md.LastModified,
		Allowed:      hdr.CORS.Methods,
		Metadata:     md,
	}

	if req.Method == types.MethodLocate {
		resp.Locations = refs
		resp.Status = ContentStatus(chunkindex.TotalSize(refs), md.Size)
		return resp, nil
	}

	body := make([]byte, 0, chunkindex.TotalSize(refs))
	for _, ref := range refs {
		chunk, err := d.chunks.Load(ref)
		if err != nil {
			return Response{}, fmt.Errorf("load chunk for %s: %w", req.Path, err)
		}
		body = append(body, chunk...)
	}

	resp.Body = body
	resp.Status = ContentStatus(uint64(len(body)), md.Size)
	return resp, nil
}

func (d *Dispatcher) handleDefine(req Request, md types.ResourceMetadata, hdr types.HeaderInfo) (Response, error) {
	if req.Header == nil {
		return Response{}, &InvalidRequestError{Reason: "DEFINE requires a header record"}
	}
	if immutableLocked(md, hdr) {
		return Response{}, &ConflictError{Path: req.Path}
	}

	ref, err := d.headers.CreateOrGet(*req.Header)
	if err != nil {
		return Response{}, &InvalidRequestError{Reason: err.Error()}
	}

	seq, err := d.chunks.Sequence(req.Path)
	if err != nil {
		return Response{}, err
	}

	// Properties survive a DEFINE; size is recomputed from the sequence
	// and the modification timestamp refreshed.
	md.Header = ref
	md.Size = chunkindex.TotalSize(seq)
	md.LastModified = time.Now().UTC()

	if err := d.resources.Write(req.Path, md); err != nil {
		return Response{}, err
	}

	d.log.Debug("header defined", "path", req.Path, "header", ref.String(), "subject", req.Subject)

	return Response{Status: 200, Metadata: md, Allowed: req.Header.CORS.Methods}, nil
}

func (d *Dispatcher) handlePut(req Request, md types.ResourceMetadata, hdr types.HeaderInfo) (Response, error) {
	if immutableLocked(md, hdr) {
		return Response{}, &ConflictError{Path: req.Path}
	}

	parts, err := chunker.Split(req.Payload, d.config.ChunkMode, d.config.ChunkSize)
	if err != nil {
		return Response{}, &InvalidRequestError{Reason: err.Error()}
	}

	if err := d.checkPayment(parts, req.Payment); err != nil {
		return Response{}, err
	}

	st, err := d.chunks.StageReplace(req.Path, parts)
	if err != nil {
		return Response{}, err
	}

	priorVersion := md.Version
	if req.Properties != nil {
		md.Properties = *req.Properties
	}
	md.Size = uint64(len(req.Payload))
	md.Version++
	md.LastModified = time.Now().UTC()

	// Commit point: the replacement sequence and the new metadata land in
	// one transaction, so no reader can pair the new sequence with the old
	// record or vice versa.
	if err := st.Apply(d.resources.Entry(req.Path, md)); err != nil {
		return Response{}, err
	}

	d.recordPublications(st.Written(), req.Subject)
	d.log.Debug("content stored", "path", req.Path, "version", md.Version, "size", md.Size, "chunks", len(st.Written()))

	status := 200
	switch {
	case priorVersion == 0:
		status = 201
	case len(req.Payload) == 0:
		status = 204
	}

	return Response{Status: status, Metadata: md, Allowed: hdr.CORS.Methods}, nil
}

func (d *Dispatcher) handlePatch(req Request, md types.ResourceMetadata, hdr types.HeaderInfo) (Response, error) {
	if !md.Exists() {
		return Response{}, &NotFoundError{Path: req.Path}
	}
	if immutableLocked(md, hdr) {
		return Response{}, &ConflictError{Path: req.Path}
	}

	parts, err := chunker.Split(req.Payload, d.config.ChunkMode, d.config.ChunkSize)
	if err != nil {
		return Response{}, &InvalidRequestError{Reason: err.Error()}
	}

	if err := d.checkPayment(parts, req.Payment); err != nil {
		return Response{}, err
	}

	st, err := d.chunks.Stage(req.Path, parts, req.ChunkOffset)
	if err != nil {
		return Response{}, &InvalidRequestError{Reason: err.Error()}
	}

	md.Size = st.Size()
	md.LastModified = time.Now().UTC()

	// Commit point: spliced sequence and updated metadata in one transaction.
	if err := st.Apply(d.resources.Entry(req.Path, md)); err != nil {
		return Response{}, err
	}

	d.recordPublications(st.Written(), req.Subject)
	d.log.Debug("content patched", "path", req.Path, "offset", req.ChunkOffset, "size", md.Size, "chunks", len(st.Written()))

	return Response{
		Status:   ContentStatus(uint64(len(req.Payload)), md.Size),
		Metadata: md,
		Allowed:  hdr.CORS.Methods,
	}, nil
}

func (d *Dispatcher) handleDelete(req Request, md types.ResourceMetadata, hdr types.HeaderInfo) (Response, error) {
	if !md.Exists() {
		return Response{}, &NotFoundError{Path: req.Path}
	}
	if immutableLocked(md, hdr) {
		return Response{}, &ConflictError{Path: req.Path}
	}

	// Version stays above zero: the path moves to the Gone state instead
	// of reverting to "never existed".
	md.Size = 0
	md.LastModified = time.Now().UTC()

	// Commit point: cleared sequence and Gone metadata in one transaction.
	if err := d.chunks.Truncate(req.Path, d.resources.Entry(req.Path, md)); err != nil {
		return Response{}, err
	}

	d.log.Debug("content deleted", "path", req.Path, "version", md.Version)

	return Response{Status: 204, Metadata: md, Allowed: hdr.CORS.Methods}, nil
}

// checkPayment prices every chunk of the payload and rejects the whole
// operation before anything is committed.
func (d *Dispatcher) checkPayment(parts [][]byte, supplied uint64) error {
	if d.ledger == nil {
		return nil
	}

	var required uint64
	for _, part := range parts {
		required += d.ledger.PriceOf(part)
	}
	if required > supplied {
		return &PaymentError{Required: required, Supplied: supplied}
	}
	return nil
}

func (d *Dispatcher) recordPublications(refs []chunkindex.Ref, publisher string) {
	if d.ledger == nil {
		return
	}
	for _, ref := range refs {
		d.ledger.RecordPublication(ref.Address, publisher)
	}
}

// etagFor derives the conditional-request tag from the canonical metadata
// encoding and the address of the first chunk in the requested range. Using
// the address instead of the bytes keeps conditional checks free of chunk
// reads while staying content-sensitive.
func (d *Dispatcher) etagFor(md types.ResourceMetadata, path string, start, end int) (types.Hash, error) {
	refs, err := d.chunks.RangeRead(path, start, end)
	if err != nil {
		return types.Hash{}, err
	}

	input := md.CanonicalJSON()
	if len(refs) > 0 {
		input = append(input, refs[0].Address.Bytes()...)
	}
	return types.HashBytes(input), nil
}

func notModified(req Request, md types.ResourceMetadata, etag types.Hash) bool {
	if !req.IfNoneMatch.IsZero() && req.IfNoneMatch == etag {
		return true
	}
	if !req.IfModifiedSince.IsZero() && !md.LastModified.IsZero() &&
		!md.LastModified.After(req.IfModifiedSince) {
		return true
	}
	return false
}

// existsForRead maps resource state to the read-side terminal errors.
func existsForRead(path string, md types.ResourceMetadata) error {
	if !md.Exists() {
		return &NotFoundError{Path: path}
	}
	if md.Gone() {
		return &GoneError{Path: path}
	}
	return nil
}

// immutableLocked is the mutation guard: a resource is locked once its
// header pins it immutable and it has at least one committed version. A
// never-written path can always receive its first PUT, even under an
// immutable header.
func immutableLocked(md types.ResourceMetadata, hdr types.HeaderInfo) bool {
	return hdr.Cache.Immutable && md.Version > 0
}

// pathLocks hands out one lock per path. Entries are never evicted; at the
// expected path cardinality a map of locks is cheaper than lock striping.
type pathLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

func (p *pathLocks) acquire(path string) *sync.RWMutex {
	p.mu.Lock()
	defer p.mu.Unlock()

	lock, ok := p.locks[path]
	if !ok {
		lock = &sync.RWMutex{}
		p.locks[path] = lock
	}
	return lock
}
