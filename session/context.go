// Package session handles authentication for the MTAP client: provider
// contracts, ready-made providers (static token, JWT, OAuth2 token sources)
// and a manager that caches the established session and collapses concurrent
// authentication into a single provider call.
package session

import "time"

// SessionContext carries the identity and token material established by an
// auth provider. TokenInfo holds provider-specific fields such as
// access_token, refresh_token and expires_at.
//
//nolint:revive // name mirrors the wire-level concept; plain Context would
// collide with context.Context at call sites
type SessionContext struct {
	UserID      string
	AgentID     string
	Permissions map[string]any
	TokenInfo   map[string]any
	ExpiresAt   time.Time
}

// Valid reports whether the session can back authenticated requests: token
// material is present and the expiry, when known, has not passed.
func (s *SessionContext) Valid() bool {
	if s == nil || len(s.TokenInfo) == 0 {
		return false
	}
	if expiry, ok := s.expiry(); ok && !expiry.After(time.Now()) {
		return false
	}
	return true
}

// expiry resolves the session expiry from ExpiresAt or, failing that, from
// an expires_at entry in TokenInfo (unix seconds or a time.Time).
func (s *SessionContext) expiry() (time.Time, bool) {
	if !s.ExpiresAt.IsZero() {
		return s.ExpiresAt, true
	}
	switch v := s.TokenInfo["expires_at"].(type) {
	case time.Time:
		return v, true
	case float64:
		return time.Unix(int64(v), 0), true
	case int64:
		return time.Unix(v, 0), true
	case int:
		return time.Unix(int64(v), 0), true
	}
	return time.Time{}, false
}
