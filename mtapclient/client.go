package mtapclient

import (
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"

	"github.com/mtap-io/mtap-go/config"
	"github.com/mtap-io/mtap-go/extension"
	"github.com/mtap-io/mtap-go/governance"
	"github.com/mtap-io/mtap-go/logger"
	"github.com/mtap-io/mtap-go/session"
	"github.com/mtap-io/mtap-go/transport"
)

// Version is the SDK release version, sent in the default User-Agent.
const Version = "0.1.0"

// DefaultUserAgent identifies the SDK on outgoing requests unless the
// caller overrides the User-Agent default header.
const DefaultUserAgent = "mtap-go/" + Version

// Client is the entry point for the MTAP API. It owns the retry-aware
// transport, the session manager, and the per-client extension registry,
// and delegates consent and policy concerns to the injected collaborators.
// A Client is safe for concurrent use.
type Client struct {
	baseURL                 string
	transport               *transport.Transport
	sessions                *session.Manager
	consent                 governance.ConsentManager
	policies                governance.PolicyManager
	extensions              *extension.Registry
	validator               *Validator
	log                     logger.Logger
	headerFilter            *logger.SensitiveDataFilter
	defaultHeaders          map[string]string
	defaultPolicySnapshotID string
	closed                  atomic.Bool
}

// NewClient creates a client with default policies. Use NewBuilder for
// anything beyond the server URL and auth provider.
func NewClient(serverURL string, provider session.AuthProvider) (*Client, error) {
	return NewBuilder(serverURL, provider).Build()
}

// Builder provides a fluent interface for configuring the client
type Builder struct {
	serverURL               string
	provider                session.AuthProvider
	consent                 governance.ConsentManager
	policies                governance.PolicyManager
	log                     logger.Logger
	retry                   transport.RetryPolicy
	timeout                 transport.TimeoutPolicy
	requestsPerSecond       int
	burst                   int
	httpClient              *http.Client
	defaultHeaders          map[string]string
	defaultPolicySnapshotID string
}

// NewBuilder creates a new client builder
func NewBuilder(serverURL string, provider session.AuthProvider) *Builder {
	return &Builder{
		serverURL:      serverURL,
		provider:       provider,
		defaultHeaders: make(map[string]string),
	}
}

// WithLogger sets the logger shared by the client and its transport
func (b *Builder) WithLogger(log logger.Logger) *Builder {
	b.log = log
	return b
}

// WithRetryPolicy sets the retry policy; zero fields keep their defaults
func (b *Builder) WithRetryPolicy(policy transport.RetryPolicy) *Builder {
	b.retry = policy
	return b
}

// WithTimeoutPolicy sets the timeout policy; zero fields keep their defaults
func (b *Builder) WithTimeoutPolicy(policy transport.TimeoutPolicy) *Builder {
	b.timeout = policy
	return b
}

// WithRateLimit enables client-side throttling. A burst of zero defaults
// to twice the sustained rate.
func (b *Builder) WithRateLimit(requestsPerSecond, burst int) *Builder {
	b.requestsPerSecond = requestsPerSecond
	b.burst = burst
	return b
}

// WithHTTPClient overrides the pooled HTTP client; tests inject stub round
// trippers through this
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithDefaultHeader adds a header sent with every request. Per-call and
// auth headers override it.
func (b *Builder) WithDefaultHeader(key, value string) *Builder {
	b.defaultHeaders[key] = value
	return b
}

// WithDefaultPolicySnapshot pins the policy snapshot sent with capture
// calls that do not name one
func (b *Builder) WithDefaultPolicySnapshot(id string) *Builder {
	b.defaultPolicySnapshotID = id
	return b
}

// WithConsentManager injects the consent collaborator
func (b *Builder) WithConsentManager(manager governance.ConsentManager) *Builder {
	b.consent = manager
	return b
}

// WithPolicyManager injects the policy collaborator
func (b *Builder) WithPolicyManager(manager governance.PolicyManager) *Builder {
	b.policies = manager
	return b
}

// Build creates the client with the configured options
func (b *Builder) Build() (*Client, error) {
	if err := validateServerURL(b.serverURL); err != nil {
		return nil, err
	}
	if b.provider == nil {
		return nil, NewConfigurationError("auth provider is required", "auth_provider")
	}

	log := b.log
	if log == nil {
		log = logger.New("disabled", false)
	}

	tp, err := transport.New(transport.Config{
		Retry:             b.retry,
		Timeout:           b.timeout,
		RequestsPerSecond: b.requestsPerSecond,
		Burst:             b.burst,
		HTTPClient:        b.httpClient,
		Logger:            log,
	})
	if err != nil {
		return nil, &configurationError{message: "invalid transport policies", wrapped: err}
	}

	consent := b.consent
	if consent == nil {
		consent = &governance.NoopConsentManager{}
	}
	policies := b.policies
	if policies == nil {
		policies = &governance.NoopPolicyManager{}
	}

	headers := make(map[string]string, len(b.defaultHeaders)+1)
	headers["User-Agent"] = DefaultUserAgent
	for k, v := range b.defaultHeaders {
		headers[k] = v
	}

	return &Client{
		baseURL:                 b.serverURL,
		transport:               tp,
		sessions:                session.NewManager(b.provider, log),
		consent:                 consent,
		policies:                policies,
		extensions:              extension.NewRegistry(log),
		validator:               NewValidator(),
		log:                     log,
		headerFilter:            logger.NewSensitiveDataFilter(logger.DefaultFilterConfig()),
		defaultHeaders:          headers,
		defaultPolicySnapshotID: b.defaultPolicySnapshotID,
	}, nil
}

// FromConfig creates a client from a loaded configuration. The auth
// provider cannot come from configuration and stays an explicit argument.
func FromConfig(cfg *config.Config, provider session.AuthProvider) (*Client, error) {
	if cfg == nil {
		return nil, NewConfigurationError("config is required", "config")
	}

	b := NewBuilder(cfg.Server.URL, provider).
		WithLogger(logger.New(cfg.Log.Level, cfg.Log.Pretty)).
		WithRetryPolicy(transport.RetryPolicy{
			MaxAttempts:       cfg.Retry.Attempts,
			BackoffFactor:     cfg.Retry.BackoffFactor,
			MaxDelay:          cfg.Retry.MaxDelay,
			RetryableStatuses: cfg.Retry.RetryableStatuses,
		}).
		WithTimeoutPolicy(transport.TimeoutPolicy{
			Connect: cfg.Timeout.Connect,
			Read:    cfg.Timeout.Read,
			Write:   cfg.Timeout.Write,
		})

	if cfg.Rate.Limit > 0 {
		b.WithRateLimit(cfg.Rate.Limit, cfg.Rate.Burst)
	}
	for k, v := range cfg.Headers {
		b.WithDefaultHeader(k, v)
	}
	if cfg.Governance.PolicySnapshotID != "" {
		b.WithDefaultPolicySnapshot(cfg.Governance.PolicySnapshotID)
	}

	return b.Build()
}

// validateServerURL rejects URLs the HTTP transport cannot serve.
func validateServerURL(raw string) error {
	if raw == "" {
		return NewConfigurationError("server url is required", "server_url")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return &configurationError{
			message: fmt.Sprintf("invalid server url %q", raw),
			field:   "server_url",
			wrapped: err,
		}
	}
	switch parsed.Scheme {
	case "http", "https":
	default:
		return NewConfigurationError(
			fmt.Sprintf("unsupported transport scheme %q", parsed.Scheme), "server_url")
	}
	if parsed.Host == "" {
		return NewConfigurationError("server url must include a host", "server_url")
	}
	return nil
}
