package session

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// TokenSourceProvider adapts an oauth2.TokenSource to the AuthProvider
// contract. Refreshing is the source's responsibility; every header request
// pulls the current token, so expired tokens renew transparently when the
// source supports it.
type TokenSourceProvider struct {
	source oauth2.TokenSource
}

// NewTokenSourceProvider wraps an existing token source.
func NewTokenSourceProvider(source oauth2.TokenSource) *TokenSourceProvider {
	return &TokenSourceProvider{source: source}
}

// NewClientCredentialsProvider builds a provider for the OAuth2 client
// credentials grant. The returned provider caches and renews its token
// through the oauth2 package.
func NewClientCredentialsProvider(ctx context.Context, clientID, clientSecret, tokenURL string, scopes []string) *TokenSourceProvider {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		Scopes:       scopes,
	}
	return &TokenSourceProvider{source: cfg.TokenSource(ctx)}
}

// AuthHeaders implements AuthProvider.
func (p *TokenSourceProvider) AuthHeaders(_ context.Context) (map[string]string, error) {
	if p.source == nil {
		return nil, fmt.Errorf("oauth2 provider: %w", ErrNoProvider)
	}
	token, err := p.source.Token()
	if err != nil {
		return nil, fmt.Errorf("oauth2 provider: cannot obtain token: %w", err)
	}
	return map[string]string{"Authorization": token.Type() + " " + token.AccessToken}, nil
}

// Authenticate implements AuthProvider.
func (p *TokenSourceProvider) Authenticate(_ context.Context) (*SessionContext, error) {
	if p.source == nil {
		return nil, fmt.Errorf("oauth2 provider: %w", ErrNoProvider)
	}
	token, err := p.source.Token()
	if err != nil {
		return nil, fmt.Errorf("oauth2 provider: cannot obtain token: %w", err)
	}

	sc := &SessionContext{
		ExpiresAt: token.Expiry,
		TokenInfo: map[string]any{
			"access_token": token.AccessToken,
			"token_type":   token.Type(),
		},
	}
	if token.RefreshToken != "" {
		sc.TokenInfo["refresh_token"] = token.RefreshToken
	}
	if !token.Expiry.IsZero() {
		sc.TokenInfo["expires_at"] = float64(token.Expiry.Unix())
	}
	return sc, nil
}
