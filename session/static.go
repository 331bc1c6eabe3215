package session

import (
	"context"
	"fmt"
	"strings"
)

// StaticTokenProvider authenticates every request with a fixed bearer token.
// It never refreshes and never expires; use it for API keys and long-lived
// service tokens.
type StaticTokenProvider struct {
	token  string
	scheme string
}

// NewStaticTokenProvider creates a provider around the given token using the
// Bearer scheme.
func NewStaticTokenProvider(token string) *StaticTokenProvider {
	return &StaticTokenProvider{token: token, scheme: "Bearer"}
}

// NewStaticTokenProviderWithScheme creates a provider with a custom
// authorization scheme, such as "ApiKey".
func NewStaticTokenProviderWithScheme(token, scheme string) *StaticTokenProvider {
	return &StaticTokenProvider{token: token, scheme: scheme}
}

// AuthHeaders implements AuthProvider.
func (p *StaticTokenProvider) AuthHeaders(_ context.Context) (map[string]string, error) {
	if strings.TrimSpace(p.token) == "" {
		return nil, fmt.Errorf("static token provider: %w", ErrInvalidSession)
	}
	return map[string]string{"Authorization": p.scheme + " " + p.token}, nil
}

// Authenticate implements AuthProvider.
func (p *StaticTokenProvider) Authenticate(_ context.Context) (*SessionContext, error) {
	if strings.TrimSpace(p.token) == "" {
		return nil, fmt.Errorf("static token provider: token is empty: %w", ErrInvalidSession)
	}
	return &SessionContext{
		TokenInfo: map[string]any{
			"access_token": p.token,
			"token_type":   strings.ToLower(p.scheme),
		},
	}, nil
}
