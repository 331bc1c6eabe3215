package session

import (
	"context"
	"errors"
)

// Sentinel errors surfaced by providers and the manager. The client maps
// them onto its error taxonomy.
var (
	// ErrNoProvider indicates the manager was built without an auth provider.
	ErrNoProvider = errors.New("session: no auth provider configured")
	// ErrInvalidSession indicates a provider returned a session context that
	// cannot back authenticated requests.
	ErrInvalidSession = errors.New("session: auth provider returned an invalid session context")
	// ErrExpired indicates the credential backing the provider has expired
	// and cannot be refreshed.
	ErrExpired = errors.New("session: credential is expired")
)

// AuthProvider supplies authentication material for requests. Implementations
// own token acquisition, caching and refreshing; callers treat them as
// opaque.
type AuthProvider interface {
	// AuthHeaders returns the headers that authenticate a request.
	AuthHeaders(ctx context.Context) (map[string]string, error)
	// Authenticate establishes a session explicitly, for initial login or
	// forced re-authentication.
	Authenticate(ctx context.Context) (*SessionContext, error)
}

// SessionRefresher is implemented by providers able to refresh a session in
// place without a full re-authentication.
type SessionRefresher interface {
	// RefreshSession returns a refreshed session, or nil when the provider
	// declines and a full authentication should run instead.
	RefreshSession(ctx context.Context) (*SessionContext, error)
}

// SessionRevoker is implemented by providers with server-side logout
// semantics, such as token revocation.
type SessionRevoker interface {
	Logout(ctx context.Context) error
}
