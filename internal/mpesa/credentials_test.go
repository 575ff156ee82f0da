package mpesa

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokenServer(t *testing.T, hits *atomic.Int64, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "key", user)
		require.Equal(t, "secret", pass)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTokenCachedUntilSkew(t *testing.T) {
	var hits atomic.Int64
	srv := newTokenServer(t, &hits, 200, `{"access_token":"tok-1","expires_in":"3599"}`)

	p := NewTokenProvider(resty.New().SetBaseURL(srv.URL), "key", "secret")

	c1, err := p.Token(context.Background())
	require.NoError(t, err)
	c2, err := p.Token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "tok-1", c1.Token)
	assert.Equal(t, c1.Token, c2.Token)
	assert.Equal(t, int64(1), hits.Load())
}

func TestTokenRefreshAfterExpiry(t *testing.T) {
	var hits atomic.Int64
	srv := newTokenServer(t, &hits, 200, `{"access_token":"tok","expires_in":"3599"}`)

	p := NewTokenProvider(resty.New().SetBaseURL(srv.URL), "key", "secret")

	_, err := p.Token(context.Background())
	require.NoError(t, err)

	// Simulate an expired cache entry.
	p.mu.Lock()
	p.cached.ExpiresAt = time.Now().Add(-time.Minute)
	p.mu.Unlock()

	_, err = p.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), hits.Load())
}

func TestTokenSingleFlight(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		time.Sleep(50 * time.Millisecond) // widen the race window
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok","expires_in":"3599"}`))
	}))
	defer srv.Close()

	p := NewTokenProvider(resty.New().SetBaseURL(srv.URL), "key", "secret")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cred, err := p.Token(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "tok", cred.Token)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), hits.Load(), "concurrent callers must share one exchange")
}

func TestTokenFetchOutlivesCaller(t *testing.T) {
	var hits atomic.Int64
	srv := newTokenServer(t, &hits, 200, `{"access_token":"tok","expires_in":"3599"}`)

	p := NewTokenProvider(resty.New().SetBaseURL(srv.URL), "key", "secret")

	// The exchange is shared by every waiter, so the starting caller's
	// cancellation must not poison it.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cred, err := p.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok", cred.Token)
	assert.Equal(t, int64(1), hits.Load())
}

func TestTokenAuthRejected(t *testing.T) {
	var hits atomic.Int64
	srv := newTokenServer(t, &hits, 401, `{"errorMessage":"Bad credentials"}`)

	p := NewTokenProvider(resty.New().SetBaseURL(srv.URL), "key", "secret")

	_, err := p.Token(context.Background())
	assert.ErrorIs(t, err, ErrAuthFailure)
}

func TestTokenInvalidate(t *testing.T) {
	var hits atomic.Int64
	srv := newTokenServer(t, &hits, 200, `{"access_token":"tok","expires_in":"3599"}`)

	p := NewTokenProvider(resty.New().SetBaseURL(srv.URL), "key", "secret")

	_, err := p.Token(context.Background())
	require.NoError(t, err)
	p.Invalidate()
	_, err = p.Token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(2), hits.Load())
}
