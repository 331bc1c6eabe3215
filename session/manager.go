package session

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/mtap-io/mtap-go/logger"
)

// establishKey is the singleflight key; one session per manager means one key.
const establishKey = "establish"

// Manager caches the established session and funnels authentication through
// a single flight so concurrent requests hitting an unauthenticated client
// trigger exactly one provider call. Safe for concurrent use.
type Manager struct {
	provider AuthProvider
	log      logger.Logger

	mu      sync.RWMutex
	current *SessionContext
	sfg     singleflight.Group
}

// NewManager creates a session manager around the provider. A nil logger is
// replaced with a disabled one.
func NewManager(provider AuthProvider, log logger.Logger) *Manager {
	if log == nil {
		log = logger.New("disabled", false)
	}
	return &Manager{provider: provider, log: log}
}

// Ensure returns a valid session, establishing one when none is cached or
// the cached one expired. Concurrent callers collapse into a single
// provider call.
func (m *Manager) Ensure(ctx context.Context) (*SessionContext, error) {
	// Fast path: a valid session is already cached.
	if sc := m.validSession(); sc != nil {
		return sc, nil
	}

	result, err, _ := m.sfg.Do(establishKey, func() (any, error) {
		// Double-check after winning the flight; a concurrent caller may
		// have established the session already.
		if sc := m.validSession(); sc != nil {
			return sc, nil
		}
		return m.establish(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.(*SessionContext), nil
}

// Authenticate establishes a fresh session even when a valid one is cached.
// Concurrent forced authentications still collapse into one provider call.
func (m *Manager) Authenticate(ctx context.Context) (*SessionContext, error) {
	result, err, _ := m.sfg.Do(establishKey, func() (any, error) {
		return m.establish(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.(*SessionContext), nil
}

// Refresh asks the provider for an in-place session refresh, falling back to
// full authentication when the provider does not support it or declines.
func (m *Manager) Refresh(ctx context.Context) (*SessionContext, error) {
	refresher, ok := m.provider.(SessionRefresher)
	if !ok {
		return m.Authenticate(ctx)
	}

	result, err, _ := m.sfg.Do(establishKey, func() (any, error) {
		sc, err := refresher.RefreshSession(ctx)
		if err != nil {
			return nil, err
		}
		if sc == nil {
			return m.establish(ctx)
		}
		if !sc.Valid() {
			m.setCurrent(nil)
			return nil, ErrInvalidSession
		}
		m.setCurrent(sc)
		return sc, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*SessionContext), nil
}

// AuthHeaders returns the provider's authentication headers for a request.
func (m *Manager) AuthHeaders(ctx context.Context) (map[string]string, error) {
	if m.provider == nil {
		return nil, ErrNoProvider
	}
	return m.provider.AuthHeaders(ctx)
}

// Current returns the cached session without triggering authentication. The
// result may be nil or expired; use Ensure for a guaranteed-valid session.
func (m *Manager) Current() *SessionContext {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// IsAuthenticated reports whether a valid session is cached.
func (m *Manager) IsAuthenticated() bool {
	return m.validSession() != nil
}

// Invalidate drops the cached session so the next Ensure re-authenticates.
func (m *Manager) Invalidate() {
	m.setCurrent(nil)
}

// Logout clears the cached session and, when the provider supports it,
// revokes the credential server-side.
func (m *Manager) Logout(ctx context.Context) error {
	m.setCurrent(nil)
	if revoker, ok := m.provider.(SessionRevoker); ok {
		return revoker.Logout(ctx)
	}
	return nil
}

func (m *Manager) establish(ctx context.Context) (*SessionContext, error) {
	if m.provider == nil {
		return nil, ErrNoProvider
	}

	sc, err := m.provider.Authenticate(ctx)
	if err != nil {
		m.log.Warn().Err(err).Msg("Authentication failed")
		return nil, err
	}
	if !sc.Valid() {
		m.setCurrent(nil)
		return nil, ErrInvalidSession
	}

	m.setCurrent(sc)
	m.log.Debug().
		Str("user_id", sc.UserID).
		Str("agent_id", sc.AgentID).
		Msg("Session established")
	return sc, nil
}

func (m *Manager) validSession() *SessionContext {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current.Valid() {
		return m.current
	}
	return nil
}

func (m *Manager) setCurrent(sc *SessionContext) {
	m.mu.Lock()
	m.current = sc
	m.mu.Unlock()
}
