package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtap-io/mtap-go/logger"
)

func createTestLogger() logger.Logger {
	return logger.New("info", false)
}

func validTestSession() *SessionContext {
	return &SessionContext{
		UserID:    "user-1",
		AgentID:   "agent-1",
		TokenInfo: map[string]any{"access_token": "tok"},
	}
}

// fakeProvider counts calls and can delay or fail on demand.
type fakeProvider struct {
	authCalls   atomic.Int32
	headerCalls atomic.Int32
	delay       time.Duration
	authErr     error
	session     func() *SessionContext
}

func (f *fakeProvider) AuthHeaders(context.Context) (map[string]string, error) {
	f.headerCalls.Add(1)
	return map[string]string{"Authorization": "Bearer tok"}, nil
}

func (f *fakeProvider) Authenticate(context.Context) (*SessionContext, error) {
	f.authCalls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.authErr != nil {
		return nil, f.authErr
	}
	if f.session != nil {
		return f.session(), nil
	}
	return validTestSession(), nil
}

// refreshingProvider also implements SessionRefresher.
type refreshingProvider struct {
	fakeProvider
	refreshCalls atomic.Int32
	refreshed    func() *SessionContext
	refreshErr   error
}

func (f *refreshingProvider) RefreshSession(context.Context) (*SessionContext, error) {
	f.refreshCalls.Add(1)
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	if f.refreshed == nil {
		return nil, nil
	}
	return f.refreshed(), nil
}

// revokingProvider also implements SessionRevoker.
type revokingProvider struct {
	fakeProvider
	logoutCalls atomic.Int32
	logoutErr   error
}

func (f *revokingProvider) Logout(context.Context) error {
	f.logoutCalls.Add(1)
	return f.logoutErr
}

func TestManagerEnsure(t *testing.T) {
	ctx := context.Background()

	t.Run("establishes and caches the session", func(t *testing.T) {
		provider := &fakeProvider{}
		manager := NewManager(provider, createTestLogger())

		sc, err := manager.Ensure(ctx)
		require.NoError(t, err)
		assert.Equal(t, "user-1", sc.UserID)

		again, err := manager.Ensure(ctx)
		require.NoError(t, err)
		assert.Same(t, sc, again)
		assert.Equal(t, int32(1), provider.authCalls.Load(), "cached session must not re-authenticate")
	})

	t.Run("expired cached session re-authenticates", func(t *testing.T) {
		provider := &fakeProvider{}
		manager := NewManager(provider, createTestLogger())
		manager.setCurrent(&SessionContext{
			TokenInfo: map[string]any{"access_token": "stale"},
			ExpiresAt: time.Now().Add(-time.Minute),
		})

		sc, err := manager.Ensure(ctx)
		require.NoError(t, err)
		assert.Equal(t, "tok", sc.TokenInfo["access_token"])
		assert.Equal(t, int32(1), provider.authCalls.Load())
	})

	t.Run("provider failure propagates", func(t *testing.T) {
		cause := errors.New("identity service down")
		provider := &fakeProvider{authErr: cause}
		manager := NewManager(provider, createTestLogger())

		_, err := manager.Ensure(ctx)
		require.ErrorIs(t, err, cause)
		assert.False(t, manager.IsAuthenticated())
	})

	t.Run("invalid session from provider rejected", func(t *testing.T) {
		provider := &fakeProvider{session: func() *SessionContext { return &SessionContext{} }}
		manager := NewManager(provider, createTestLogger())

		_, err := manager.Ensure(ctx)
		require.ErrorIs(t, err, ErrInvalidSession)
	})

	t.Run("nil provider rejected", func(t *testing.T) {
		manager := NewManager(nil, createTestLogger())

		_, err := manager.Ensure(ctx)
		require.ErrorIs(t, err, ErrNoProvider)

		_, err = manager.AuthHeaders(ctx)
		require.ErrorIs(t, err, ErrNoProvider)
	})
}

func TestManagerEnsureSingleFlight(t *testing.T) {
	provider := &fakeProvider{delay: 50 * time.Millisecond}
	manager := NewManager(provider, createTestLogger())

	const goroutines = 20
	var wg sync.WaitGroup
	errs := make(chan error, goroutines)
	sessions := make(chan *SessionContext, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sc, err := manager.Ensure(context.Background())
			errs <- err
			sessions <- sc
		}()
	}
	wg.Wait()
	close(errs)
	close(sessions)

	for err := range errs {
		require.NoError(t, err)
	}
	first := <-sessions
	for sc := range sessions {
		assert.Same(t, first, sc, "all callers must share the single established session")
	}
	assert.Equal(t, int32(1), provider.authCalls.Load(),
		"concurrent Ensure calls must collapse into one authentication")
}

func TestManagerAuthenticateForcesRefresh(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{}
	manager := NewManager(provider, createTestLogger())

	_, err := manager.Ensure(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), provider.authCalls.Load())

	_, err = manager.Authenticate(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), provider.authCalls.Load(),
		"explicit authentication bypasses the cache")
}

func TestManagerRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("provider refresh used when supported", func(t *testing.T) {
		provider := &refreshingProvider{refreshed: func() *SessionContext {
			sc := validTestSession()
			sc.UserID = "refreshed-user"
			return sc
		}}
		manager := NewManager(provider, createTestLogger())

		sc, err := manager.Refresh(ctx)
		require.NoError(t, err)
		assert.Equal(t, "refreshed-user", sc.UserID)
		assert.Equal(t, int32(1), provider.refreshCalls.Load())
		assert.Equal(t, int32(0), provider.authCalls.Load())
	})

	t.Run("declined refresh falls back to authenticate", func(t *testing.T) {
		provider := &refreshingProvider{}
		manager := NewManager(provider, createTestLogger())

		sc, err := manager.Refresh(ctx)
		require.NoError(t, err)
		assert.Equal(t, "user-1", sc.UserID)
		assert.Equal(t, int32(1), provider.refreshCalls.Load())
		assert.Equal(t, int32(1), provider.authCalls.Load())
	})

	t.Run("unsupported provider authenticates", func(t *testing.T) {
		provider := &fakeProvider{}
		manager := NewManager(provider, createTestLogger())

		_, err := manager.Refresh(ctx)
		require.NoError(t, err)
		assert.Equal(t, int32(1), provider.authCalls.Load())
	})

	t.Run("refresh failure propagates", func(t *testing.T) {
		cause := errors.New("refresh token revoked")
		provider := &refreshingProvider{refreshErr: cause}
		manager := NewManager(provider, createTestLogger())

		_, err := manager.Refresh(ctx)
		require.ErrorIs(t, err, cause)
	})
}

func TestManagerLogout(t *testing.T) {
	ctx := context.Background()

	t.Run("clears session and revokes", func(t *testing.T) {
		provider := &revokingProvider{}
		manager := NewManager(provider, createTestLogger())

		_, err := manager.Ensure(ctx)
		require.NoError(t, err)
		require.True(t, manager.IsAuthenticated())

		require.NoError(t, manager.Logout(ctx))
		assert.False(t, manager.IsAuthenticated())
		assert.Nil(t, manager.Current())
		assert.Equal(t, int32(1), provider.logoutCalls.Load())
	})

	t.Run("revocation failure still clears the session", func(t *testing.T) {
		provider := &revokingProvider{logoutErr: errors.New("revocation endpoint down")}
		manager := NewManager(provider, createTestLogger())

		_, err := manager.Ensure(ctx)
		require.NoError(t, err)

		err = manager.Logout(ctx)
		require.Error(t, err)
		assert.False(t, manager.IsAuthenticated())
	})

	t.Run("provider without logout is a no-op", func(t *testing.T) {
		provider := &fakeProvider{}
		manager := NewManager(provider, createTestLogger())

		_, err := manager.Ensure(ctx)
		require.NoError(t, err)
		require.NoError(t, manager.Logout(ctx))
		assert.False(t, manager.IsAuthenticated())
	})
}

func TestManagerInvalidate(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{}
	manager := NewManager(provider, createTestLogger())

	_, err := manager.Ensure(ctx)
	require.NoError(t, err)
	require.True(t, manager.IsAuthenticated())

	manager.Invalidate()
	assert.False(t, manager.IsAuthenticated())

	_, err = manager.Ensure(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), provider.authCalls.Load())
}

func TestManagerCurrentDoesNotAuthenticate(t *testing.T) {
	provider := &fakeProvider{}
	manager := NewManager(provider, createTestLogger())

	assert.Nil(t, manager.Current())
	assert.False(t, manager.IsAuthenticated())
	assert.Equal(t, int32(0), provider.authCalls.Load())
}
