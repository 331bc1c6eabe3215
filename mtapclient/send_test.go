package mtapclient

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtap-io/mtap-go/governance"
	"github.com/mtap-io/mtap-go/internal/testutil"
	"github.com/mtap-io/mtap-go/session"
	"github.com/mtap-io/mtap-go/trace"
	"github.com/mtap-io/mtap-go/transport"
)

// failingAuthProvider simulates an unreachable auth backend.
type failingAuthProvider struct{}

func (p *failingAuthProvider) AuthHeaders(context.Context) (map[string]string, error) {
	return nil, errors.New("auth backend down")
}

func (p *failingAuthProvider) Authenticate(context.Context) (*session.SessionContext, error) {
	return nil, errors.New("auth backend down")
}

// logoutTrackingProvider counts Logout invocations on top of a working
// static provider.
type logoutTrackingProvider struct {
	session.AuthProvider
	logouts atomic.Int32
}

func (p *logoutTrackingProvider) Logout(context.Context) error {
	p.logouts.Add(1)
	return nil
}

type stubExtension struct{ id string }

func (e *stubExtension) ID() string { return e.id }

func (e *stubExtension) Initialize(context.Context) error { return nil }

func TestRequestIDPropagation(t *testing.T) {
	server := newIPv4TestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "req-42", r.Header.Get(trace.HeaderXRequestID))
		writeJSON(w, http.StatusOK, `{"id": "mem-123", "content_type": "text/plain"}`)
	}))

	client := newTestClient(t, server.URL)
	ctx := trace.WithRequestID(context.Background(), "req-42")

	_, err := client.GetMemory(ctx, testutil.TestMemoryID, nil)
	require.NoError(t, err)
}

func TestHeaderPrecedence(t *testing.T) {
	server := newIPv4TestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Session headers always win over client defaults.
		assert.Equal(t, "Bearer "+testutil.TestAccessToken, r.Header.Get("Authorization"))
		// Per-call options win over client defaults.
		assert.Equal(t, "audio/wav", r.Header.Get(transport.HeaderAccept))
		// Untouched defaults pass through.
		assert.Equal(t, "memory-platform", r.Header.Get("X-Team"))
		w.Header().Set(transport.HeaderContentType, "audio/wav")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("bytes"))
	}))

	client, err := NewBuilder(server.URL, session.NewStaticTokenProvider(testutil.TestAccessToken)).
		WithLogger(createTestLogger()).
		WithDefaultHeader("X-Team", "memory-platform").
		WithDefaultHeader(transport.HeaderAccept, transport.ContentTypeJSON).
		WithDefaultHeader("Authorization", "Bearer stale-default").
		Build()
	require.NoError(t, err)
	defer client.Close(context.Background())

	_, err = client.GetMemory(context.Background(), testutil.TestMemoryID, &GetOptions{Accept: "audio/wav"})
	require.NoError(t, err)
}

func TestRetryThenSuccess(t *testing.T) {
	var calls atomic.Int32
	var mu sync.Mutex
	var keys []string
	server := newIPv4TestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		keys = append(keys, r.Header.Get(transport.HeaderIdempotencyKey))
		mu.Unlock()
		if calls.Add(1) == 1 {
			writeJSON(w, http.StatusServiceUnavailable, `{"detail": "warming up"}`)
			return
		}
		writeJSON(w, http.StatusCreated, `{"id": "mem-123", "content_type": "text/plain", "metadata": {}}`)
	}))

	client := newTestClient(t, server.URL)
	memory, err := client.CaptureMemory(context.Background(),
		[]byte("payload"), "text/plain", map[string]any{},
		&CaptureOptions{IdempotencyKey: testutil.TestIdempotencyKey})

	require.NoError(t, err)
	assert.Equal(t, testutil.TestMemoryID, memory.ID)
	assert.Equal(t, int32(2), calls.Load())
	// The same key rides every attempt so the server can deduplicate.
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{testutil.TestIdempotencyKey, testutil.TestIdempotencyKey}, keys)
}

func TestRetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	server := newIPv4TestServer(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusServiceUnavailable, `{"detail": "still down"}`)
	}))

	client := newTestClient(t, server.URL)
	memory, err := client.GetMemory(context.Background(), testutil.TestMemoryID, nil)

	require.Error(t, err)
	assert.Nil(t, memory)
	assert.True(t, IsErrorType(err, ServerError))
	assert.True(t, IsHTTPStatusError(err, http.StatusServiceUnavailable))
	assert.Equal(t, int32(3), calls.Load())

	var apiErr *apiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "still down", apiErr.Message())
}

func TestNonRetryableStatusFailsFast(t *testing.T) {
	var calls atomic.Int32
	server := newIPv4TestServer(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusInternalServerError, `{"detail": "boom"}`)
	}))

	// 500 is off this client's forcelist, so no retry happens.
	client := newTestClient(t, server.URL)
	_, err := client.GetMemory(context.Background(), testutil.TestMemoryID, nil)

	require.Error(t, err)
	assert.True(t, IsErrorType(err, ServerError))
	assert.Equal(t, int32(1), calls.Load())
}

func TestErrorClassification(t *testing.T) {
	server := newIPv4TestServer(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusForbidden,
			`{"detail": {"message": "consent proof expired", "code": "CONSENT_EXPIRED"}}`)
	}))

	client := newTestClient(t, server.URL)
	_, err := client.GetMemory(context.Background(), testutil.TestMemoryID, nil)

	require.Error(t, err)
	assert.True(t, IsErrorType(err, AuthorizationError))
	assert.True(t, IsHTTPStatusError(err, http.StatusForbidden))

	var apiErr *apiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "consent proof expired", apiErr.Message())
}

func TestErrorClassificationNotFound(t *testing.T) {
	server := newIPv4TestServer(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, `{"detail": "memory not found"}`)
	}))

	client := newTestClient(t, server.URL)
	_, err := client.GetMemory(context.Background(), "mem-missing", nil)

	require.Error(t, err)
	assert.True(t, IsErrorType(err, NotFoundError))
	assert.Contains(t, err.Error(), "memory not found")
}

func TestErrorClassificationEmptyBody(t *testing.T) {
	server := newIPv4TestServer(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))

	client := newTestClient(t, server.URL)
	_, err := client.GetMemory(context.Background(), testutil.TestMemoryID, nil)

	require.Error(t, err)
	assert.True(t, IsErrorType(err, InvalidRequestError))
	assert.Contains(t, err.Error(), "API error at")
}

func TestNetworkFailureSurfaces(t *testing.T) {
	server := newIPv4TestServer(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	url := server.URL
	server.Close()

	client := newTestClient(t, url)
	_, err := client.GetMemory(context.Background(), testutil.TestMemoryID, nil)

	require.Error(t, err)
	assert.True(t, IsErrorType(err, NetworkFailure))
	_, hasStatus := StatusCodeOf(err)
	assert.False(t, hasStatus)
}

func TestCanceledContext(t *testing.T) {
	client := newTestClient(t, testutil.TestServerURL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.GetMemory(ctx, testutil.TestMemoryID, nil)
	require.Error(t, err)
	assert.True(t, IsErrorType(err, NetworkFailure))
	assert.Contains(t, err.Error(), "canceled")
}

func TestDecodeFailureOnSuccessStatus(t *testing.T) {
	server := newIPv4TestServer(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusCreated, `{"id": "mem-123"`)
	}))

	client := newTestClient(t, server.URL)
	memory, err := client.CaptureMemory(context.Background(), []byte("x"), "text/plain", nil, nil)

	require.Error(t, err)
	assert.Nil(t, memory)
	assert.True(t, IsErrorType(err, UnexpectedError))
	assert.True(t, IsHTTPStatusError(err, http.StatusCreated))
}

func TestAuthenticationFailureBeforeDispatch(t *testing.T) {
	var calls atomic.Int32
	server := newIPv4TestServer(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))

	client, err := NewBuilder(server.URL, &failingAuthProvider{}).
		WithLogger(createTestLogger()).
		Build()
	require.NoError(t, err)
	defer client.Close(context.Background())

	_, err = client.GetMemory(context.Background(), testutil.TestMemoryID, nil)

	require.Error(t, err)
	assert.True(t, IsErrorType(err, AuthenticationError))
	// The failure happens before any request leaves the client.
	assert.Equal(t, int32(0), calls.Load())
	_, hasStatus := StatusCodeOf(err)
	assert.False(t, hasStatus)
}

func TestAuthenticateAndSessionContext(t *testing.T) {
	client := newTestClient(t, testutil.TestServerURL)

	// No session yet and no auto-authentication requested.
	sc, err := client.SessionContext(context.Background(), false)
	require.NoError(t, err)
	assert.Nil(t, sc)
	assert.False(t, client.IsAuthenticated())

	sc, err = client.Authenticate(context.Background())
	require.NoError(t, err)
	require.NotNil(t, sc)
	assert.True(t, sc.Valid())
	assert.True(t, client.IsAuthenticated())

	cached, err := client.SessionContext(context.Background(), false)
	require.NoError(t, err)
	assert.Same(t, sc, cached)
}

func TestSessionContextAutoAuthenticate(t *testing.T) {
	client := newTestClient(t, testutil.TestServerURL)

	sc, err := client.SessionContext(context.Background(), true)
	require.NoError(t, err)
	require.NotNil(t, sc)
	assert.True(t, client.IsAuthenticated())
}

func TestCloseIsIdempotentAndLogsOut(t *testing.T) {
	provider := &logoutTrackingProvider{
		AuthProvider: session.NewStaticTokenProvider(testutil.TestAccessToken),
	}
	client, err := NewBuilder(testutil.TestServerURL, provider).
		WithLogger(createTestLogger()).
		Build()
	require.NoError(t, err)

	require.NoError(t, client.Close(context.Background()))
	require.NoError(t, client.Close(context.Background()))
	assert.Equal(t, int32(1), provider.logouts.Load())
}

func TestClosedClientRejectsOperations(t *testing.T) {
	client := newTestClient(t, testutil.TestServerURL)
	require.NoError(t, client.Close(context.Background()))

	ctx := context.Background()
	operations := map[string]func() error{
		"capture": func() error {
			_, err := client.CaptureMemory(ctx, []byte("x"), "text/plain", nil, nil)
			return err
		},
		"get": func() error {
			_, err := client.GetMemory(ctx, testutil.TestMemoryID, nil)
			return err
		},
		"search": func() error {
			_, err := client.SearchMemories(ctx, &SearchOptions{Query: "x"})
			return err
		},
		"revoke": func() error {
			_, err := client.RevokeMemory(ctx, testutil.TestMemoryID, nil)
			return err
		},
		"audit": func() error {
			_, err := client.AuditLog(ctx, nil)
			return err
		},
		"authenticate": func() error {
			_, err := client.Authenticate(ctx)
			return err
		},
		"register extension": func() error {
			return client.RegisterExtension(&stubExtension{id: "ext.test"})
		},
		"get extension": func() error {
			_, err := client.Extension(ctx, "ext.test")
			return err
		},
	}

	for name, op := range operations {
		t.Run(name, func(t *testing.T) {
			err := op()
			require.Error(t, err)
			assert.True(t, IsErrorType(err, ConfigurationError))
			assert.Contains(t, err.Error(), "client is closed")
		})
	}

	assert.False(t, client.IsAuthenticated())
}

func TestExtensionLifecycle(t *testing.T) {
	client := newTestClient(t, testutil.TestServerURL)

	ext := &stubExtension{id: "ext.mtap.vectorsearch-v1"}
	require.NoError(t, client.RegisterExtension(ext))

	got, err := client.Extension(context.Background(), ext.ID())
	require.NoError(t, err)
	assert.Same(t, ext, got)
}

func TestGovernanceDefaultsNotConfigured(t *testing.T) {
	client := newTestClient(t, testutil.TestServerURL)

	_, err := client.GetConsentArtifact(context.Background(), "artifact-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, governance.ErrNotConfigured)

	_, err = client.GenerateConsentProof(context.Background(), "artifact-1", map[string]any{"op": "capture"})
	require.Error(t, err)
	assert.ErrorIs(t, err, governance.ErrNotConfigured)

	_, err = client.Policies().PolicyDetails(context.Background(), "policy-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, governance.ErrNotConfigured)
}
