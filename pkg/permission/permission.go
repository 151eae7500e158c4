// Package permission resolves whether a caller may invoke a method on a
// path. Resolution is pure: the resolver reads the path's current header
// and asks a RoleStore about membership, nothing else.
package permission

import (
	"fmt"
	"log/slog"

	"github.com/janus-web/janus-db/pkg/types"
)

// RoleStore answers role membership for subjects. Implementations must be
// safe for concurrent use.
type RoleStore interface {
	HasRole(role types.RoleId, subject string) bool
}

// HeaderSource resolves the header currently governing a path, falling back
// to the default header for paths without one.
type HeaderSource interface {
	HeaderFor(path string) (types.HeaderInfo, error)
}

type Resolver struct {
	headers    HeaderSource
	roles      RoleStore
	superAdmin types.RoleId
	log        *slog.Logger
}

func NewResolver(headers HeaderSource, roles RoleStore, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{
		headers:    headers,
		roles:      roles,
		superAdmin: types.SuperAdmin,
		log:        log,
	}
}

// MethodAllowed reports whether the method bit is set in the path's header.
// The super-admin role always passes: the escape hatch that keeps a
// misconfigured permission set from locking out all future admin access.
func (r *Resolver) MethodAllowed(path string, m types.Method, subject string) (bool, error) {
	if r.isSuperAdmin(subject, path, m) {
		return true, nil
	}

	hdr, err := r.headers.HeaderFor(path)
	if err != nil {
		return false, err
	}
	return hdr.CORS.Methods.Has(m), nil
}

// AuthorizedRole returns the role required to invoke method m on path. An
// empty origins list falls back to the super-admin role as the conservative
// default.
func (r *Resolver) AuthorizedRole(path string, m types.Method) (types.RoleId, error) {
	if !m.Valid() {
		return "", fmt.Errorf("method index %d out of range", m)
	}

	hdr, err := r.headers.HeaderFor(path)
	if err != nil {
		return "", err
	}

	if len(hdr.CORS.Origins) == types.MethodCount {
		return hdr.CORS.Origins[m], nil
	}
	return r.superAdmin, nil
}

// IsAuthorized reports whether subject holds the role required for method m
// on path.
func (r *Resolver) IsAuthorized(path string, m types.Method, subject string) (bool, error) {
	if r.isSuperAdmin(subject, path, m) {
		return true, nil
	}

	required, err := r.AuthorizedRole(path, m)
	if err != nil {
		return false, err
	}
	return r.roles.HasRole(required, subject), nil
}

// isSuperAdmin checks the reserved role and logs the bypass distinctly so
// every use of the escape hatch is auditable.
func (r *Resolver) isSuperAdmin(subject string, path string, m types.Method) bool {
	if subject == "" || !r.roles.HasRole(r.superAdmin, subject) {
		return false
	}
	r.log.Info("super-admin override", "subject", subject, "path", path, "method", m.String())
	return true
}
