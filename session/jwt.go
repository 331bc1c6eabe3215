package session

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// JWTProvider authenticates with a pre-issued JWT. The token is parsed once,
// without signature verification (the server is the verifier; the client only
// mines claims for session context and expiry), and rejected once expired.
type JWTProvider struct {
	raw     string
	claims  jwt.MapClaims
	expires time.Time
}

// NewJWTProvider parses the token and returns a provider around it. A
// malformed token fails here rather than on first use.
func NewJWTProvider(token string) (*JWTProvider, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("jwt provider: cannot parse token: %w", err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("jwt provider: unexpected claims type %T", parsed.Claims)
	}

	provider := &JWTProvider{raw: token, claims: claims}
	if exp, ok := claims["exp"].(float64); ok {
		provider.expires = time.Unix(int64(exp), 0)
	}
	return provider, nil
}

// AuthHeaders implements AuthProvider.
func (p *JWTProvider) AuthHeaders(_ context.Context) (map[string]string, error) {
	if p.expired() {
		return nil, fmt.Errorf("jwt provider: %w", ErrExpired)
	}
	return map[string]string{"Authorization": "Bearer " + p.raw}, nil
}

// Authenticate implements AuthProvider. The session context is mined from
// standard and MTAP claims: sub becomes the user, agent_id the agent, and
// scope or permissions the permission set.
func (p *JWTProvider) Authenticate(_ context.Context) (*SessionContext, error) {
	if p.expired() {
		return nil, fmt.Errorf("jwt provider: %w", ErrExpired)
	}

	sc := &SessionContext{
		ExpiresAt: p.expires,
		TokenInfo: map[string]any{
			"access_token": p.raw,
			"token_type":   "bearer",
		},
	}
	if !p.expires.IsZero() {
		sc.TokenInfo["expires_at"] = float64(p.expires.Unix())
	}
	if sub, ok := p.claims["sub"].(string); ok {
		sc.UserID = sub
	}
	if agent, ok := p.claims["agent_id"].(string); ok {
		sc.AgentID = agent
	}

	permissions := map[string]any{}
	if scope, ok := p.claims["scope"]; ok {
		permissions["scope"] = scope
	}
	if claimed, ok := p.claims["permissions"].(map[string]any); ok {
		for key, value := range claimed {
			permissions[key] = value
		}
	}
	if len(permissions) > 0 {
		sc.Permissions = permissions
	}
	return sc, nil
}

func (p *JWTProvider) expired() bool {
	return !p.expires.IsZero() && !p.expires.After(time.Now())
}
