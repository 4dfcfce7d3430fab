// Package client holds the outbound HTTP clients: the document service,
// the repository service, and the identity provider that issues their
// bearer tokens.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/manak-ai/stratum/internal/apperr"
)

// DefaultTimeout bounds every outbound request.
const DefaultTimeout = 30 * time.Second

// TokenProvider supplies bearer tokens for outbound calls.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// NoAuth is a TokenProvider for deployments without an identity
// provider; it sends no Authorization header.
type NoAuth struct{}

func (NoAuth) Token(context.Context) (string, error) { return "", nil }

// httpDoer lets tests swap the transport.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// base is the shared GET plumbing of the service clients.
type base struct {
	baseURL   string
	userAgent string
	tokens    TokenProvider
	http      httpDoer
}

func newBase(baseURL, serviceName string, tokens TokenProvider, timeout time.Duration) base {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if tokens == nil {
		tokens = NoAuth{}
	}
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}
	return base{
		baseURL:   trimSlash(baseURL),
		userAgent: serviceName + "/1.0",
		tokens:    tokens,
		http:      &http.Client{Transport: transport, Timeout: timeout},
	}
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}

func (b *base) get(ctx context.Context, path, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+path, nil)
	if err != nil {
		return nil, apperr.Internal("build request for "+path, err)
	}
	token, err := b.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("User-Agent", b.userAgent)
	req.Header.Set("Accept", accept)

	resp, err := b.http.Do(req)
	if err != nil {
		return nil, apperr.UpstreamNetwork("request to "+b.baseURL+path+" failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.UpstreamNetwork("read response from "+b.baseURL+path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperr.UpstreamHTTP(resp.StatusCode, "GET "+path)
	}
	return body, nil
}

func (b *base) getJSON(ctx context.Context, path string, out any) error {
	body, err := b.get(ctx, path, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return apperr.New(apperr.KindDecode, apperr.CodeInternal,
			fmt.Sprintf("invalid JSON from %s", path)).WithCause(err)
	}
	return nil
}

func (b *base) getBytes(ctx context.Context, path string) ([]byte, error) {
	return b.get(ctx, path, "application/octet-stream")
}
