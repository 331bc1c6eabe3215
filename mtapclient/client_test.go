package mtapclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtap-io/mtap-go/config"
	"github.com/mtap-io/mtap-go/internal/testutil"
	"github.com/mtap-io/mtap-go/logger"
	"github.com/mtap-io/mtap-go/session"
	"github.com/mtap-io/mtap-go/transport"
)

func TestNewClient(t *testing.T) {
	client, err := NewClient(testutil.TestServerURL, session.NewStaticTokenProvider(testutil.TestAccessToken))
	require.NoError(t, err)
	require.NotNil(t, client)

	assert.Equal(t, testutil.TestServerURL, client.baseURL)
	assert.NotNil(t, client.transport)
	assert.NotNil(t, client.sessions)
	assert.NotNil(t, client.extensions)
	assert.NotNil(t, client.validator)
	assert.Equal(t, DefaultUserAgent, client.defaultHeaders["User-Agent"])

	require.NoError(t, client.Close(context.Background()))
}

func TestBuildRejectsInvalidSetup(t *testing.T) {
	provider := session.NewStaticTokenProvider(testutil.TestAccessToken)

	tests := []struct {
		name    string
		builder *Builder
		field   string
	}{
		{
			name:    "empty server url",
			builder: NewBuilder("", provider),
			field:   "server_url",
		},
		{
			name:    "unsupported scheme",
			builder: NewBuilder("ftp://mtap.example.com", provider),
			field:   "server_url",
		},
		{
			name:    "missing host",
			builder: NewBuilder("http://", provider),
			field:   "server_url",
		},
		{
			name:    "unparsable url",
			builder: NewBuilder("http://bad url with spaces", provider),
			field:   "server_url",
		},
		{
			name:    "nil auth provider",
			builder: NewBuilder(testutil.TestServerURL, nil),
			field:   "auth_provider",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := tt.builder.Build()
			require.Error(t, err)
			assert.Nil(t, client)
			assert.True(t, IsErrorType(err, ConfigurationError))
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestBuildRejectsInvalidRetryPolicy(t *testing.T) {
	client, err := NewBuilder(testutil.TestServerURL, session.NewStaticTokenProvider(testutil.TestAccessToken)).
		WithRetryPolicy(transport.RetryPolicy{MaxAttempts: -1}).
		Build()

	require.Error(t, err)
	assert.Nil(t, client)
	assert.True(t, IsErrorType(err, ConfigurationError))
	assert.Contains(t, err.Error(), "invalid transport policies")
}

func TestBuilderOptions(t *testing.T) {
	client, err := NewBuilder(testutil.TestServerURL, session.NewStaticTokenProvider(testutil.TestAccessToken)).
		WithLogger(logger.New("debug", false)).
		WithDefaultHeader("X-Team", "memory-platform").
		WithDefaultHeader("User-Agent", "custom-agent/2.0").
		WithDefaultPolicySnapshot(testutil.TestPolicySnapshotID).
		WithRateLimit(50, 100).
		Build()
	require.NoError(t, err)
	defer client.Close(context.Background())

	assert.Equal(t, "memory-platform", client.defaultHeaders["X-Team"])
	// Caller-supplied defaults replace the built-in User-Agent.
	assert.Equal(t, "custom-agent/2.0", client.defaultHeaders["User-Agent"])
	assert.Equal(t, testutil.TestPolicySnapshotID, client.defaultPolicySnapshotID)
}

func TestFromConfig(t *testing.T) {
	cfg := &config.Config{
		Server: config.ServerConfig{URL: testutil.TestServerURL},
		Retry: config.RetryConfig{
			Attempts:          5,
			BackoffFactor:     250 * time.Millisecond,
			MaxDelay:          30 * time.Second,
			RetryableStatuses: []int{502, 503},
		},
		Timeout: config.TimeoutConfig{
			Connect: 2 * time.Second,
			Read:    10 * time.Second,
			Write:   10 * time.Second,
		},
		Rate:       config.RateConfig{Limit: 25, Burst: 50},
		Log:        config.LogConfig{Level: "disabled"},
		Headers:    map[string]string{"X-Team": "memory-platform"},
		Governance: config.GovernanceConfig{PolicySnapshotID: testutil.TestPolicySnapshotID},
	}

	client, err := FromConfig(cfg, session.NewStaticTokenProvider(testutil.TestAccessToken))
	require.NoError(t, err)
	defer client.Close(context.Background())

	assert.Equal(t, testutil.TestServerURL, client.baseURL)
	assert.Equal(t, "memory-platform", client.defaultHeaders["X-Team"])
	assert.Equal(t, testutil.TestPolicySnapshotID, client.defaultPolicySnapshotID)
}

func TestFromConfigNil(t *testing.T) {
	client, err := FromConfig(nil, session.NewStaticTokenProvider(testutil.TestAccessToken))
	require.Error(t, err)
	assert.Nil(t, client)
	assert.True(t, IsErrorType(err, ConfigurationError))
}
