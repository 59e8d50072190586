package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/gobang-online/directory"
	"github.com/wricardo/gobang-online/game/presence"
)

func newProvider() (*Provider, *presence.Registry) {
	hash, err := directory.HashPassword("secret")
	if err != nil {
		panic(err)
	}
	users := directory.NewMemory(
		directory.Record{Username: "alice", Password: hash},
		directory.Record{Username: "bob"},
	)
	reg := presence.NewRegistry()
	return NewProvider(users, reg), reg
}

func TestLogin(t *testing.T) {
	p, _ := newProvider()
	ctx := context.Background()

	_, err := p.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = p.Login(ctx, "nobody", "secret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	token, err := p.Login(ctx, "alice", "secret")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	identity, ok := p.Lookup(token)
	assert.True(t, ok)
	assert.Equal(t, "alice", identity)
}

func TestLogin_RejectsSecondSignIn(t *testing.T) {
	p, reg := newProvider()
	ctx := context.Background()

	token, err := p.Login(ctx, "bob", "")
	require.NoError(t, err)

	_, err = p.Login(ctx, "bob", "")
	assert.ErrorIs(t, err, ErrAlreadySignedIn, "pending login holds the identity")

	// The first login connects, then fully disconnects.
	reg.Register("bob", "")
	_, err = p.Login(ctx, "bob", "")
	assert.ErrorIs(t, err, ErrAlreadySignedIn, "connected identity cannot sign in again")

	reg.Unregister("bob", "")
	p.Logout(token)
	_, err = p.Login(ctx, "bob", "")
	assert.NoError(t, err)
}

func TestLogin_ConcurrentSameIdentity(t *testing.T) {
	p, _ := newProvider()

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Login(context.Background(), "bob", ""); err == nil {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)
}

func TestLogoutReleasesClaim(t *testing.T) {
	p, _ := newProvider()
	ctx := context.Background()

	token, err := p.Login(ctx, "alice", "secret")
	require.NoError(t, err)
	p.Logout(token)

	_, ok := p.Lookup(token)
	assert.False(t, ok)
	_, err = p.Login(ctx, "alice", "secret")
	assert.NoError(t, err, "logout before connecting frees the identity")

	p.Logout("unknown-token")
}

func TestIdentify(t *testing.T) {
	p, _ := newProvider()
	token, err := p.Login(context.Background(), "alice", "secret")
	require.NoError(t, err)

	tests := []struct {
		name    string
		request func() *http.Request
		want    string
		wantErr bool
	}{
		{
			name: "cookie",
			request: func() *http.Request {
				r := httptest.NewRequest(http.MethodGet, "/ws", nil)
				r.AddCookie(SessionCookie(token))
				return r
			},
			want: "alice",
		},
		{
			name: "query parameter",
			request: func() *http.Request {
				return httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)
			},
			want: "alice",
		},
		{
			name: "missing",
			request: func() *http.Request {
				return httptest.NewRequest(http.MethodGet, "/ws", nil)
			},
			wantErr: true,
		},
		{
			name: "unknown token",
			request: func() *http.Request {
				return httptest.NewRequest(http.MethodGet, "/ws?token=nope", nil)
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identity, err := p.Identify(tt.request())
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnauthenticated)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, identity)
		})
	}
}
