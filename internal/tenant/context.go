// Package tenant provides tenant isolation primitives: the explicit tenant
// context threaded through every orchestrator and adapter call, the registry
// that validates it once at the system boundary, and per-tenant limits.
package tenant

import (
	"time"

	"github.com/parallax-rag/parallax/internal/errors"
)

// Scope is a permission scope granted to a tenant context.
type Scope string

const (
	// ScopeIngest allows document ingestion and clearing.
	ScopeIngest Scope = "ingest"
	// ScopeQuery allows search queries.
	ScopeQuery Scope = "query"
	// ScopeAdmin allows tenant administration.
	ScopeAdmin Scope = "admin"
)

// Context is the explicit tenant context carried through every call.
// It is a value, never ambient state: a call without one fails closed
// before any backend is touched.
//
// A Context is produced exactly once per request by Registry.Authorize;
// downstream code trusts it and never re-derives tenant state, so there is
// no validation/use race.
type Context struct {
	// TenantID is the authenticated tenant identifier.
	TenantID string

	// Scopes are the permission scopes granted for this request.
	Scopes []Scope

	// Deadline is the request deadline. Zero means no deadline.
	Deadline time.Time
}

// Valid reports whether the context carries a tenant identifier.
func (c Context) Valid() bool {
	return c.TenantID != ""
}

// HasScope reports whether the context grants the given scope.
// Admin implies all scopes.
func (c Context) HasScope(s Scope) bool {
	for _, have := range c.Scopes {
		if have == s || have == ScopeAdmin {
			return true
		}
	}
	return false
}

// Require returns an Unauthorized error unless the context is valid and
// grants the scope. Every orchestration entry point calls this before any
// backend work.
func (c Context) Require(s Scope) error {
	if !c.Valid() {
		return errors.Unauthorized("missing tenant context")
	}
	if !c.HasScope(s) {
		return errors.Unauthorized("tenant context lacks scope " + string(s)).
			WithDetail("tenant", c.TenantID)
	}
	return nil
}
