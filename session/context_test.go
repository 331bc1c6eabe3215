package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionContextValid(t *testing.T) {
	future := time.Now().Add(time.Hour)
	past := time.Now().Add(-time.Hour)

	tests := []struct {
		name string
		sc   *SessionContext
		want bool
	}{
		{
			name: "nil session",
			sc:   nil,
			want: false,
		},
		{
			name: "no token info",
			sc:   &SessionContext{UserID: "u-1"},
			want: false,
		},
		{
			name: "empty token info",
			sc:   &SessionContext{TokenInfo: map[string]any{}},
			want: false,
		},
		{
			name: "token without expiry never expires",
			sc:   &SessionContext{TokenInfo: map[string]any{"access_token": "t"}},
			want: true,
		},
		{
			name: "future expiry",
			sc: &SessionContext{
				TokenInfo: map[string]any{"access_token": "t"},
				ExpiresAt: future,
			},
			want: true,
		},
		{
			name: "past expiry",
			sc: &SessionContext{
				TokenInfo: map[string]any{"access_token": "t"},
				ExpiresAt: past,
			},
			want: false,
		},
		{
			name: "token info unix expiry in the future",
			sc: &SessionContext{
				TokenInfo: map[string]any{
					"access_token": "t",
					"expires_at":   float64(future.Unix()),
				},
			},
			want: true,
		},
		{
			name: "token info unix expiry in the past",
			sc: &SessionContext{
				TokenInfo: map[string]any{
					"access_token": "t",
					"expires_at":   float64(past.Unix()),
				},
			},
			want: false,
		},
		{
			name: "token info int64 expiry",
			sc: &SessionContext{
				TokenInfo: map[string]any{
					"access_token": "t",
					"expires_at":   past.Unix(),
				},
			},
			want: false,
		},
		{
			name: "token info time expiry",
			sc: &SessionContext{
				TokenInfo: map[string]any{
					"access_token": "t",
					"expires_at":   future,
				},
			},
			want: true,
		},
		{
			name: "explicit expiry wins over token info",
			sc: &SessionContext{
				TokenInfo: map[string]any{
					"access_token": "t",
					"expires_at":   float64(past.Unix()),
				},
				ExpiresAt: future,
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.sc.Valid())
		})
	}
}
