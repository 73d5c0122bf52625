// Package namespace resolves which vector store partition a request targets.
package namespace

import (
	"net/http"
	"regexp"

	apperr "websearch/internal/errors"
)

// Header is the HTTP header carrying a caller's namespace.
const Header = "X-Namespace"

// Fallback is the last-resort namespace.
const Fallback = "default"

var validName = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,64}$`)

// Resolver applies the precedence: explicit argument, request header,
// configured default, then "default".
type Resolver struct {
	configured string
}

// NewResolver creates a resolver with the configured default namespace.
func NewResolver(configured string) *Resolver {
	return &Resolver{configured: configured}
}

// Resolve picks the namespace for a request. r may be nil (CLI callers).
func (res *Resolver) Resolve(explicit string, r *http.Request) (string, error) {
	candidate := explicit
	if candidate == "" && r != nil {
		candidate = r.Header.Get(Header)
	}
	if candidate == "" {
		candidate = res.configured
	}
	if candidate == "" {
		candidate = Fallback
	}
	if err := Validate(candidate); err != nil {
		return "", err
	}
	return candidate, nil
}

// Validate checks that a namespace is a safe directory name.
func Validate(ns string) error {
	if !validName.MatchString(ns) {
		return apperr.Newf(apperr.KindInvalidInput,
			"invalid namespace %q: must match [a-zA-Z0-9._-]{1,64}", ns).
			WithDetail("namespace", ns)
	}
	// Dot-only names would collide with directory traversal semantics.
	if ns == "." || ns == ".." {
		return apperr.Newf(apperr.KindInvalidInput, "invalid namespace %q", ns)
	}
	return nil
}
