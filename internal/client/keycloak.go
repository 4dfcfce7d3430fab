package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/manak-ai/stratum/internal/apperr"
)

// tokenRefreshMargin renews tokens this long before they expire so an
// in-flight request never carries a token that dies mid-call.
const tokenRefreshMargin = 30 * time.Second

// Keycloak fetches client-credentials tokens from the identity
// provider's token endpoint and caches them until shortly before
// expiry. Safe for concurrent use.
type Keycloak struct {
	tokenURL     string
	clientID     string
	clientSecret string
	http         httpDoer
	now          func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

func NewKeycloak(issuerURI, clientID, clientSecret string, timeout time.Duration) *Keycloak {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Keycloak{
		tokenURL:     trimSlash(issuerURI) + "/protocol/openid-connect/token",
		clientID:     clientID,
		clientSecret: clientSecret,
		http:         &http.Client{Timeout: timeout},
		now:          time.Now,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// Token returns a cached token, fetching a fresh one when the cache is
// empty or about to expire.
func (k *Keycloak) Token(ctx context.Context) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.token != "" && k.now().Add(tokenRefreshMargin).Before(k.expires) {
		return k.token, nil
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {k.clientID},
		"client_secret": {k.clientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, k.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", apperr.Internal("build token request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := k.http.Do(req)
	if err != nil {
		return "", apperr.UpstreamNetwork("token request to "+k.tokenURL+" failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperr.UpstreamNetwork("read token response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", apperr.UpstreamHTTP(resp.StatusCode, "token request")
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", apperr.New(apperr.KindDecode, apperr.CodeInternal, "invalid token response").WithCause(err)
	}
	if tr.AccessToken == "" {
		return "", apperr.New(apperr.KindUpstreamHTTP, apperr.CodeUpstreamStatus, "token response without access_token")
	}

	k.token = tr.AccessToken
	k.expires = k.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	return k.token, nil
}
