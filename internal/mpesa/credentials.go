package mpesa

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/singleflight"
)

// refreshSkew: refresh this long before the token actually expires so an
// in-flight push never carries a token that dies mid-request.
const refreshSkew = 30 * time.Second

// tokenFetchTimeout bounds the shared token exchange once it is detached
// from the callers' contexts.
const tokenFetchTimeout = 10 * time.Second

type Credential struct {
	Token     string
	ExpiresAt time.Time
}

func (c Credential) valid(now time.Time) bool {
	return c.Token != "" && now.Before(c.ExpiresAt.Add(-refreshSkew))
}

// TokenProvider caches the short-lived Daraja bearer token. Concurrent
// refreshes are collapsed into one exchange via singleflight.
type TokenProvider struct {
	http           *resty.Client
	consumerKey    string
	consumerSecret string

	mu     sync.Mutex
	cached Credential
	sf     singleflight.Group
}

func NewTokenProvider(http *resty.Client, consumerKey, consumerSecret string) *TokenProvider {
	return &TokenProvider{http: http, consumerKey: consumerKey, consumerSecret: consumerSecret}
}

// Token returns the cached credential, refreshing it first when it is close
// to expiry. A rejected exchange surfaces as ErrAuthFailure.
func (p *TokenProvider) Token(ctx context.Context) (Credential, error) {
	p.mu.Lock()
	if cached := p.cached; cached.valid(time.Now()) {
		p.mu.Unlock()
		return cached, nil
	}
	p.mu.Unlock()

	v, err, _ := p.sf.Do("token", func() (any, error) {
		// The exchange is shared by every waiter, so it must not die with
		// whichever caller happened to start it.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), tokenFetchTimeout)
		defer cancel()
		return p.fetch(fctx)
	})
	if err != nil {
		return Credential{}, err
	}
	return v.(Credential), nil
}

// Invalidate drops the cached credential, forcing the next Token call to
// refresh. Used when the gateway rejects a token it previously issued.
func (p *TokenProvider) Invalidate() {
	p.mu.Lock()
	p.cached = Credential{}
	p.mu.Unlock()
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"` // seconds, as a string
}

func (p *TokenProvider) fetch(ctx context.Context) (Credential, error) {
	var body tokenResponse
	resp, err := p.http.R().
		SetContext(ctx).
		SetBasicAuth(p.consumerKey, p.consumerSecret).
		SetResult(&body).
		Get("/oauth/v1/generate?grant_type=client_credentials")
	if err != nil {
		return Credential{}, ErrGatewayUnavailable
	}
	if resp.StatusCode() == 401 || resp.StatusCode() == 403 {
		slog.Error("mpesa token exchange rejected", "status", resp.StatusCode())
		return Credential{}, ErrAuthFailure
	}
	if resp.IsError() || body.AccessToken == "" {
		slog.Error("mpesa token exchange failed", "status", resp.StatusCode())
		return Credential{}, ErrGatewayUnavailable
	}

	ttl := 3600
	if n, err := strconv.Atoi(body.ExpiresIn); err == nil && n > 0 {
		ttl = n
	}
	cred := Credential{
		Token:     body.AccessToken,
		ExpiresAt: time.Now().Add(time.Duration(ttl) * time.Second),
	}

	p.mu.Lock()
	p.cached = cred
	p.mu.Unlock()
	return cred, nil
}
