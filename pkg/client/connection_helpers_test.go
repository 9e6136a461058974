package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveRealtimeURL(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		override string
		want     string
		wantErr  bool
	}{
		{name: "http base", base: "http://localhost:3000/api", want: "ws://localhost:3000/socket"},
		{name: "https base", base: "https://social.example.com/api/v1?x=1", want: "wss://social.example.com/socket"},
		{name: "override wins", base: "https://social.example.com/api", override: "wss://rt.example.com/ws", want: "wss://rt.example.com/ws"},
		{name: "override without scheme", base: "", override: "rt.example.com:9000/socket", want: "ws://rt.example.com:9000/socket"},
		{name: "override with http scheme", override: "http://rt.example.com", wantErr: true},
		{name: "empty base", base: "", wantErr: true},
		{name: "base without host", base: "/api", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveRealtimeURL(tt.base, tt.override)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Date(2030, 5, 1, 0, 0, 0, 0, time.UTC)
	token := signedToken(t, exp)

	got, ok := TokenExpiry(token)
	require.True(t, ok)
	assert.True(t, got.Equal(exp))

	assert.False(t, TokenExpired(token, exp.Add(-time.Second)))
	assert.True(t, TokenExpired(token, exp))

	_, ok = TokenExpiry("opaque-session-token")
	assert.False(t, ok)
	assert.False(t, TokenExpired("opaque-session-token", exp))
}
