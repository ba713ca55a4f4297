// Package firecrest is a client for the FirecREST HPC REST API. It wraps
// filesystem browsing, job scheduling and staged large-file transfers in
// blocking method calls; long-running server-side tasks are tracked through
// their numeric status codes and polled through a per-microservice rate
// limiter.
package firecrest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/spf13/afero"

	"github.com/firecrest-hpc/firecrest_sdk_go/internal/fcapi"
	"github.com/firecrest-hpc/firecrest_sdk_go/internal/httpx"
	"github.com/firecrest-hpc/firecrest_sdk_go/pkg/auth"
)

var log = logging.Logger("firecrest")

const (
	envFirecrestURL = "FIRECREST_URL"
	envAPIToken     = "FIRECREST_API_TOKEN"
	envClientID     = "FIRECREST_CLIENT_ID"
	envClientSecret = "FIRECREST_CLIENT_SECRET"
	envTokenURL     = "AUTH_TOKEN_URL"
)

// Client provides access to a FirecREST deployment. All methods are safe for
// concurrent use; staged transfer objects returned by ExternalUpload and
// ExternalDownload are owned by a single caller.
type Client struct {
	api      *httpx.Client
	tokens   auth.TokenSource
	limiter  *Limiter
	fs       afero.Fs
	httpOpts []httpx.Option
}

// Option configures a Client.
type Option func(*Client)

// WithLimiter shares a rate limiter across clients. By default each client
// owns its own limiter with the 5 second per-category interval.
func WithLimiter(l *Limiter) Option {
	return func(c *Client) {
		if l != nil {
			c.limiter = l
		}
	}
}

// WithFs overrides the filesystem used for local reads and writes during
// transfers. Defaults to the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(c *Client) {
		if fs != nil {
			c.fs = fs
		}
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.httpOpts = append(c.httpOpts, httpx.WithHTTPClient(h))
	}
}

// New constructs a Client for the given FirecREST base URL. The token source
// is consulted once per outgoing request.
func New(baseURL string, tokens auth.TokenSource, opts ...Option) (*Client, error) {
	if tokens == nil {
		return nil, errors.New("firecrest: token source is required")
	}
	c := &Client{
		tokens:  tokens,
		limiter: NewLimiter(),
		fs:      afero.NewOsFs(),
	}
	for _, opt := range opts {
		opt(c)
	}
	httpOpts := append([]httpx.Option{
		httpx.WithHeaders(http.Header{"User-Agent": []string{"firecrest-sdk-go"}}),
	}, c.httpOpts...)
	api, err := httpx.NewClient(baseURL, httpOpts...)
	if err != nil {
		return nil, err
	}
	c.api = api
	return c, nil
}

// NewFromEnv builds a Client from FIRECREST_URL plus either a static
// FIRECREST_API_TOKEN or the FIRECREST_CLIENT_ID / FIRECREST_CLIENT_SECRET /
// AUTH_TOKEN_URL client-credentials triple.
func NewFromEnv(opts ...Option) (*Client, error) {
	baseURL := strings.TrimSpace(os.Getenv(envFirecrestURL))
	if baseURL == "" {
		return nil, fmt.Errorf("firecrest: %s is required", envFirecrestURL)
	}

	if token := strings.TrimSpace(os.Getenv(envAPIToken)); token != "" {
		return New(baseURL, auth.StaticToken(token), opts...)
	}

	clientID := strings.TrimSpace(os.Getenv(envClientID))
	clientSecret := strings.TrimSpace(os.Getenv(envClientSecret))
	tokenURL := strings.TrimSpace(os.Getenv(envTokenURL))
	if clientID == "" || clientSecret == "" || tokenURL == "" {
		return nil, fmt.Errorf(
			"firecrest: set %s, or %s, %s and %s",
			envAPIToken, envClientID, envClientSecret, envTokenURL,
		)
	}
	tokens, err := auth.NewClientCredentials(clientID, clientSecret, tokenURL)
	if err != nil {
		return nil, err
	}
	return New(baseURL, tokens, opts...)
}

// SetRateInterval reconfigures the request spacing for one microservice
// category, effective on the next call.
func (c *Client) SetRateInterval(category string, d time.Duration) {
	c.limiter.SetInterval(category, d)
}

// Limiter exposes the client's rate limiter, e.g. to share it with another
// client instance.
func (c *Client) Limiter() *Limiter { return c.limiter }

// categoryFor maps an endpoint to its rate-limit category using the first
// path segment, mirroring the microservice layout of the API.
func categoryFor(endpoint string) string {
	seg := strings.TrimPrefix(endpoint, "/")
	if idx := strings.Index(seg, "/"); idx >= 0 {
		seg = seg[:idx]
	}
	return seg
}

// do issues one authorized, rate-limited request and returns the response
// body. Requests are never retried here: the only repetition the core
// performs is the not-yet-done loop of WaitTask.
func (c *Client) do(ctx context.Context, req *httpx.Request) ([]byte, error) {
	op := req.Method + " " + req.Path
	if err := c.limiter.Wait(ctx, categoryFor(req.Path)); err != nil {
		return nil, err
	}
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, &RequestError{Op: op, Err: err}
	}
	if req.Header == nil {
		req.Header = make(http.Header)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.DisableRetry = true

	resp, err := c.api.Do(ctx, req)
	if err != nil {
		var httpErr *httpx.HTTPError
		if errors.As(err, &httpErr) {
			if name, value := fcapi.HeaderError(httpErr.Header); name != "" {
				return nil, &RequestError{Op: op, Err: fmt.Errorf("%s: %s: %w", name, value, err)}
			}
		}
		return nil, &RequestError{Op: op, Err: err}
	}
	if name, value := fcapi.HeaderError(resp.Header); name != "" {
		_, _ = httpx.ReadAllAndClose(resp.Body)
		return nil, &RequestError{Op: op, Err: fmt.Errorf("%s: %s", name, value)}
	}
	body, err := httpx.ReadAllAndClose(resp.Body)
	if err != nil {
		return nil, &RequestError{Op: op, Err: err}
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, endpoint string, headers http.Header, query url.Values) ([]byte, error) {
	return c.do(ctx, &httpx.Request{
		Method: http.MethodGet,
		Path:   endpoint,
		Header: headers,
		Query:  query,
	})
}

func (c *Client) postForm(ctx context.Context, endpoint string, headers http.Header, form url.Values) ([]byte, error) {
	body, contentType := httpx.WithFormBody(form)
	if headers == nil {
		headers = make(http.Header)
	}
	headers.Set("Content-Type", contentType)
	return c.do(ctx, &httpx.Request{
		Method: http.MethodPost,
		Path:   endpoint,
		Header: headers,
		Body:   body,
	})
}

func (c *Client) delete(ctx context.Context, endpoint string, headers http.Header) ([]byte, error) {
	return c.do(ctx, &httpx.Request{
		Method: http.MethodDelete,
		Path:   endpoint,
		Header: headers,
	})
}

func machineHeader(machine string) http.Header {
	return http.Header{"X-Machine-Name": []string{machine}}
}
