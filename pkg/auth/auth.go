// Package auth provides the authorization collaborators consumed by the
// FirecREST client. Any object able to produce a currently valid bearer
// token on demand satisfies TokenSource; the package ships a static token
// wrapper and a Keycloak client-credentials implementation.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	logging "github.com/ipfs/go-log/v2"

	"github.com/firecrest-hpc/firecrest_sdk_go/internal/httpx"
)

var log = logging.Logger("auth")

// TokenSource produces a currently valid bearer token. Implementations are
// consulted once per outgoing request and must be safe for concurrent use.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource returning a fixed token string.
type StaticToken string

// AccessToken implements TokenSource.
func (t StaticToken) AccessToken(context.Context) (string, error) {
	if t == "" {
		return "", errors.New("auth: empty static token")
	}
	return string(t), nil
}

// expirySkew is subtracted from the reported token lifetime so a token is
// refreshed before the server would reject it.
const expirySkew = 30 * time.Second

// ClientCredentials obtains tokens from an OpenID Connect token endpoint
// using the client_credentials grant, caching each token until near expiry.
type ClientCredentials struct {
	clientID     string
	clientSecret string
	tokenURI     string
	client       *httpx.Client

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewClientCredentials builds a ClientCredentials token source for the given
// token endpoint, e.g.
// https://auth.example.com/auth/realms/site/protocol/openid-connect/token.
func NewClientCredentials(clientID, clientSecret, tokenURI string, opts ...httpx.Option) (*ClientCredentials, error) {
	if strings.TrimSpace(clientID) == "" || strings.TrimSpace(clientSecret) == "" {
		return nil, errors.New("auth: client ID and secret are required")
	}
	cl, err := httpx.NewClient(tokenURI, append([]httpx.Option{httpx.WithTimeout(15 * time.Second)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("auth: invalid token URI: %w", err)
	}
	return &ClientCredentials{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURI:     tokenURI,
		client:       cl,
	}, nil
}

// AccessToken returns the cached token or fetches a fresh one when the cached
// token is missing or about to expire.
func (c *ClientCredentials) AccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.expires) {
		return c.token, nil
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
	}
	body, contentType := httpx.WithFormBody(form)
	resp, err := c.client.Do(ctx, &httpx.Request{
		Method: http.MethodPost,
		URL:    c.tokenURI,
		Header: http.Header{"Content-Type": []string{contentType}},
		Body:   body,
	})
	if err != nil {
		return "", fmt.Errorf("auth: token request: %w", err)
	}
	payload, err := httpx.ReadAllAndClose(resp.Body)
	if err != nil {
		return "", fmt.Errorf("auth: read token response: %w", err)
	}

	var decoded struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return "", fmt.Errorf("auth: decode token response: %w", err)
	}
	if decoded.AccessToken == "" {
		return "", errors.New("auth: token endpoint returned no access_token")
	}

	c.token = decoded.AccessToken
	c.expires = time.Now().Add(time.Duration(decoded.ExpiresIn)*time.Second - expirySkew)
	log.Debugf("fetched access token, valid for %ds", decoded.ExpiresIn)
	return c.token, nil
}
