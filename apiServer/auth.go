package apiServer

import (
	"fmt"
	"net/http"
	"strings"
)

// AuthFunc resolves the subject of a request. An error rejects the request
// with 401 before it reaches the engine.
type AuthFunc func(r *http.Request) (string, error)

// AnonymousAuth maps every request to the empty subject. Anonymous callers
// hold no roles, so they only reach resources whose header grants a role
// they could never satisfy; this is the safe default for development.
func AnonymousAuth(r *http.Request) (string, error) {
	return "", nil
}

// TokenAuth resolves subjects from a static bearer-token table. Requests
// without an Authorization header stay anonymous; an unknown token is
// rejected.
func TokenAuth(tokens map[string]string) AuthFunc {
	return func(r *http.Request) (string, error) {
		raw := strings.TrimSpace(r.Header.Get("Authorization"))
		if raw == "" {
			return "", nil
		}

		token, ok := strings.CutPrefix(raw, "Bearer ")
		if !ok {
			return "", fmt.Errorf("unsupported authorization scheme")
		}

		subject, ok := tokens[strings.TrimSpace(token)]
		if !ok {
			return "", fmt.Errorf("unknown token")
		}
		return subject, nil
	}
}
