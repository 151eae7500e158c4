// Package apiServer exposes the engine over HTTP. The wire surface maps
// one-to-one onto the protocol: the HTTP verb (including the DEFINE and
// LOCATE extensions) selects the method, the URL path names the resource,
// and the protocol's conditional and range semantics ride on headers.
package apiServer

import (
	"log/slog"
	"net/http"

	janus "github.com/janus-web/janus-db"
)

const (
	headerRangeStart  = "X-Janus-Range-Start"
	headerRangeEnd    = "X-Janus-Range-End"
	headerChunkOffset = "X-Janus-Chunk-Offset"
	headerPayment     = "X-Janus-Payment"
	headerRequired    = "X-Janus-Required-Role"
)

type Server struct {
	engine *janus.Engine
	log    *slog.Logger
	auth   AuthFunc
}

type Option func(*Server)

func New(engine *janus.Engine, opts ...Option) *Server {
	s := &Server{
		engine: engine,
		log:    slog.Default(),
		auth:   AnonymousAuth,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		origin = "*"
	} else {
		w.Header().Set("Vary", "Origin")
	}
	w.Header().Set("Access-Control-Allow-Origin", origin)

	allowedHeaders := r.Header.Get("Access-Control-Request-Headers")
	if allowedHeaders == "" {
		allowedHeaders = "Content-Type, Accept, Authorization"
	}
	w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)
	w.Header().Set("Access-Control-Allow-Methods", "GET,HEAD,DEFINE,PUT,DELETE,OPTIONS,LOCATE,PATCH")
	w.Header().Set(
		"Access-Control-Expose-Headers",
		"Content-Type, Content-Length, ETag, Last-Modified, Location, Allow, "+headerRequired,
	)

	subject, err := s.auth(r)
	if err != nil {
		s.log.Warn("authentication failed", "error", err)
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	s.handle(w, r, subject)
}
