package apiServer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	janus "github.com/janus-web/janus-db"
	"github.com/janus-web/janus-db/pkg/protocol"
	"github.com/janus-web/janus-db/pkg/types"
)

const maxBodySize = 64 << 20

type locateResponse struct {
	Locations []locationEntry `json:"locations"`
}

type locationEntry struct {
	Address string `json:"address"`
	Length  uint32 `json:"length"`
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request, subject string) {
	method, err := types.ParseMethod(r.Method)
	if err != nil {
		w.Header().Set("Allow", types.DefaultMethods().String())
		http.Error(w, err.Error(), http.StatusMethodNotAllowed)
		return
	}

	req := protocol.Request{
		Path:    r.URL.Path,
		Method:  method,
		Subject: subject,
	}

	if err := s.fillRequest(&req, r); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := s.engine.Handle(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeResponse(w, method, resp)
}

// fillRequest maps wire headers and the body onto the protocol request.
func (s *Server) fillRequest(req *protocol.Request, r *http.Request) error {
	var err error
	if req.RangeStart, err = intHeader(r, headerRangeStart); err != nil {
		return err
	}
	if req.RangeEnd, err = intHeader(r, headerRangeEnd); err != nil {
		return err
	}
	if req.ChunkOffset, err = intHeader(r, headerChunkOffset); err != nil {
		return err
	}

	if raw := r.Header.Get(headerPayment); raw != "" {
		payment, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", headerPayment, err)
		}
		req.Payment = payment
	}

	if raw := strings.Trim(r.Header.Get("If-None-Match"), `"`); raw != "" {
		etag, err := types.ParseHash(raw)
		if err != nil {
			return fmt.Errorf("invalid If-None-Match: %w", err)
		}
		req.IfNoneMatch = etag
	}
	if raw := r.Header.Get("If-Modified-Since"); raw != "" {
		since, err := http.ParseTime(raw)
		if err != nil {
			return fmt.Errorf("invalid If-Modified-Since: %w", err)
		}
		req.IfModifiedSince = since
	}

	switch req.Method {
	case types.MethodDefine:
		var hdr types.HeaderInfo
		dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&hdr); err != nil {
			return fmt.Errorf("invalid header record: %w", err)
		}
		req.Header = &hdr

	case types.MethodPut, types.MethodPatch:
		payload, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		req.Payload = payload
		req.Properties = contentProperties(r)
	}

	return nil
}

// contentProperties derives content properties from the standard entity
// headers. Nil means "keep whatever the resource already has".
func contentProperties(r *http.Request) *types.ContentProperties {
	contentType := r.Header.Get("Content-Type")
	encoding := r.Header.Get("Content-Encoding")
	language := r.Header.Get("Content-Language")
	if contentType == "" && encoding == "" && language == "" {
		return nil
	}

	props := types.ContentProperties{
		Encoding: encoding,
		Language: language,
	}
	if contentType != "" {
		mediaType, params, err := mime.ParseMediaType(contentType)
		if err == nil {
			props.MimeType = mediaType
			props.Charset = params["charset"]
		} else {
			props.MimeType = contentType
		}
	}
	return &props
}

func (s *Server) writeResponse(w http.ResponseWriter, method types.Method, resp protocol.Response) {
	if resp.Allowed != 0 {
		w.Header().Set("Allow", resp.Allowed.String())
	}
	if !resp.ETag.IsZero() {
		w.Header().Set("ETag", `"`+resp.ETag.String()+`"`)
	}
	if !resp.LastModified.IsZero() {
		w.Header().Set("Last-Modified", resp.LastModified.UTC().Format(http.TimeFormat))
	}
	if resp.Location != "" {
		w.Header().Set("Location", resp.Location)
	}

	switch {
	case method == types.MethodLocate && resp.Status != 304:
		out := locateResponse{Locations: make([]locationEntry, 0, len(resp.Locations))}
		for _, ref := range resp.Locations {
			out.Locations = append(out.Locations, locationEntry{
				Address: ref.Address.String(),
				Length:  ref.Length,
			})
		}
		writeJSON(w, resp.Status, out)

	case method == types.MethodHead:
		setEntityHeaders(w, resp)
		w.Header().Set("Content-Length", strconv.FormatUint(resp.Metadata.Size, 10))
		w.WriteHeader(resp.Status)

	case method == types.MethodGet && len(resp.Body) > 0:
		setEntityHeaders(w, resp)
		w.Header().Set("Content-Length", strconv.Itoa(len(resp.Body)))
		w.WriteHeader(resp.Status)
		if _, err := w.Write(resp.Body); err != nil {
			s.log.Error("failed to write response body", "error", err)
		}

	default:
		w.WriteHeader(resp.Status)
	}
}

func setEntityHeaders(w http.ResponseWriter, resp protocol.Response) {
	props := resp.Metadata.Properties

	contentType := props.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	} else if props.Charset != "" {
		contentType += "; charset=" + props.Charset
	}
	w.Header().Set("Content-Type", contentType)

	if props.Encoding != "" {
		w.Header().Set("Content-Encoding", props.Encoding)
	}
	if props.Language != "" {
		w.Header().Set("Content-Language", props.Language)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, janus.ErrNotStarted) || errors.Is(err, janus.ErrClosed) {
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}

	var statusErr protocol.StatusError
	if !errors.As(err, &statusErr) {
		s.log.Error("request failed", "error", err, "path", r.URL.Path, "method", r.Method)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var notAllowed *protocol.MethodNotAllowedError
	if errors.As(err, &notAllowed) {
		w.Header().Set("Allow", notAllowed.Allowed.String())
	}
	var forbidden *protocol.ForbiddenError
	if errors.As(err, &forbidden) {
		w.Header().Set(headerRequired, string(forbidden.Required))
	}

	http.Error(w, statusErr.Error(), statusErr.StatusCode())
}
