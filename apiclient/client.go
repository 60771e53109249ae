package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jrsteele09/issue-tracker-client/internal/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// TokenStore is the part of the session's token store the client needs
type TokenStore interface {
	Token(ctx context.Context) *oauth2.Token
	SetTokens(ctx context.Context, tok *oauth2.Token) error
	Clear(ctx context.Context) error
	ClearAccess(ctx context.Context) error
}

// TerminationHandler is told when the refresh protocol has ended the session. The
// client itself never navigates; the owner of the session decides what happens.
type TerminationHandler func(ctx context.Context, reason error)

// Client sends authorised requests to the issue tracker API and recovers from an
// expired access token with one refresh-and-resend per request.
//
// Concurrent requests that are each rejected refresh independently; there is no
// shared in-flight refresh.
type Client struct {
	base        *url.URL
	http        *http.Client
	tokens      TokenStore
	onTerminate TerminationHandler
	metrics     *Metrics

	transport  http.RoundTripper
	timeout    time.Duration
	tracing    bool
	registerer prometheus.Registerer
}

type Option func(*Client)

// WithTransport sets the underlying round tripper (default http.DefaultTransport)
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.transport = rt
	}
}

// WithTimeout bounds each individual HTTP exchange
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithTracing wraps the transport in an OpenTelemetry client span
func WithTracing(enabled bool) Option {
	return func(c *Client) {
		c.tracing = enabled
	}
}

// WithRegisterer registers the client metrics
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Client) {
		c.registerer = reg
	}
}

func WithTerminationHandler(h TerminationHandler) Option {
	return func(c *Client) {
		c.onTerminate = h
	}
}

// New creates a client for the API rooted at baseURL
func New(baseURL string, tokens TokenStore, options ...Option) (*Client, error) {
	if tokens == nil {
		return nil, errors.New("[apiclient New] token store is required")
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("[apiclient New] invalid base URL %q: %w", baseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("[apiclient New] base URL %q must be absolute", baseURL)
	}
	if base.Path == "" || base.Path[len(base.Path)-1] != '/' {
		base.Path += "/"
	}

	c := &Client{
		base:    base,
		tokens:  tokens,
		metrics: newMetrics(),
	}
	for _, opt := range options {
		opt(c)
	}

	c.http = &http.Client{
		Transport: newTransport(c.transport, c.tracing),
		Timeout:   c.timeout,
	}
	if c.registerer != nil {
		if err := c.metrics.register(c.registerer); err != nil {
			return nil, fmt.Errorf("[apiclient New] register metrics: %w", err)
		}
	}
	return c, nil
}

// Metrics returns the client's counters
func (c *Client) Metrics() *Metrics {
	return c.metrics
}

// Authorize attaches the stored access token, if any, as a bearer credential.
// Credential endpoints are left untouched.
func (c *Client) Authorize(ctx context.Context, r *http.Request) {
	if isCredentialRoute(c.relativePath(r.URL)) {
		return
	}
	if tok := c.tokens.Token(ctx); tok != nil && tok.AccessToken != "" {
		tok.SetAuthHeader(r)
	}
}

// Do sends req and decodes a 2xx JSON body into out (when out is non-nil).
// Non-2xx responses are returned as *APIError, transport failures wrap
// errors.ErrNetworkFailure, and a 401 that ends the session wraps
// errors.ErrAuthExpired. A 401 on the resend is returned as is.
func (c *Client) Do(ctx context.Context, req *Request, out any) error {
	p, err := newPendingRequest(req)
	if err != nil {
		return err
	}
	return c.do(ctx, p, out)
}

func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Query: query}, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, &Request{Method: http.MethodPost, Path: path, Body: body}, out)
}

func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, &Request{Method: http.MethodPatch, Path: path, Body: body}, out)
}

func (c *Client) Delete(ctx context.Context, path string) error {
	return c.Do(ctx, &Request{Method: http.MethodDelete, Path: path}, nil)
}

func (c *Client) do(ctx context.Context, p pendingRequest, out any) error {
	status, body, err := c.send(ctx, p)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized && p.attempt == 0 && !isCredentialRoute(p.req.Path) {
		return c.recoverUnauthorized(ctx, p, newAPIError(p.req.Method, p.req.Path, status, body), out)
	}
	if status < 200 || status > 299 {
		return newAPIError(p.req.Method, p.req.Path, status, body)
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("[Client Do] decode %s %s: %w: %w", p.req.Method, p.req.Path, errors.ErrUnknownFailure, err)
		}
	}
	return nil
}

// recoverUnauthorized runs the refresh protocol for a request rejected with 401 on
// its first attempt. The resend result is returned to the caller as is.
func (c *Client) recoverUnauthorized(ctx context.Context, p pendingRequest, rejected *APIError, out any) error {
	tok := c.tokens.Token(ctx)
	if tok == nil || tok.RefreshToken == "" {
		log.Warn().Str("path", p.req.Path).Msg("access token rejected and no refresh token stored")
		if err := c.tokens.ClearAccess(ctx); err != nil {
			log.Err(err).Msg("failed to clear access token")
		}
		c.terminate(ctx, ReasonNoRefreshToken, rejected)
		return fmt.Errorf("[Client Do] %w: %w", errors.ErrAuthExpired, rejected)
	}

	refreshed, err := c.refresh(ctx, tok.RefreshToken)
	if err != nil {
		log.Err(err).Str("path", p.req.Path).Msg("token refresh failed")
		if clearErr := c.tokens.Clear(ctx); clearErr != nil {
			log.Err(clearErr).Msg("failed to clear tokens")
		}
		c.terminate(ctx, ReasonRefreshFailed, err)
		return fmt.Errorf("[Client Do] token refresh: %w: %w", errors.ErrAuthExpired, err)
	}

	if err := c.tokens.SetTokens(ctx, refreshed); err != nil {
		// The resend still carries the new token; only persistence failed
		log.Err(err).Msg("failed to persist refreshed tokens")
	}

	c.metrics.Retries.Inc()
	return c.do(ctx, p.retried(refreshed.AccessToken), out)
}

type refreshResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// refresh exchanges the refresh token for a new access token (and a rotated refresh
// token when the backend issues one)
func (c *Client) refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	var resp refreshResponse
	err := c.Do(ctx, &Request{
		Method: http.MethodPost,
		Path:   RouteJWTRefresh,
		Body:   map[string]string{"refresh": refreshToken},
	}, &resp)
	if err == nil && resp.Access == "" {
		err = fmt.Errorf("[Client refresh] %w: response has no access token", errors.ErrUnknownFailure)
	}
	if err != nil {
		c.metrics.Refreshes.WithLabelValues(RefreshFailed).Inc()
		return nil, err
	}

	c.metrics.Refreshes.WithLabelValues(RefreshSucceeded).Inc()
	return &oauth2.Token{
		AccessToken:  resp.Access,
		RefreshToken: resp.Refresh,
		TokenType:    "Bearer",
	}, nil
}

// Refresh exchanges the stored refresh token for a new token pair and persists it.
// The stored tokens are left alone when the exchange fails.
func (c *Client) Refresh(ctx context.Context) error {
	tok := c.tokens.Token(ctx)
	if tok == nil || tok.RefreshToken == "" {
		return fmt.Errorf("[Client Refresh] %w: no refresh token stored", errors.ErrNotAuthenticated)
	}
	refreshed, err := c.refresh(ctx, tok.RefreshToken)
	if err != nil {
		return fmt.Errorf("[Client Refresh] %w: %w", errors.ErrAuthExpired, err)
	}
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = tok.RefreshToken
	}
	return c.tokens.SetTokens(ctx, refreshed)
}

func (c *Client) terminate(ctx context.Context, reason string, cause error) {
	c.metrics.Terminations.WithLabelValues(reason).Inc()
	if c.onTerminate != nil {
		c.onTerminate(ctx, cause)
	}
}

// send performs one HTTP exchange and returns the status and full body. Errors
// here mean no response was received.
func (c *Client) send(ctx context.Context, p pendingRequest) (int, []byte, error) {
	r, err := p.build(ctx, c.base)
	if err != nil {
		return 0, nil, err
	}

	if p.bearer != "" {
		(&oauth2.Token{AccessToken: p.bearer, TokenType: "Bearer"}).SetAuthHeader(r)
	} else {
		c.Authorize(ctx, r)
	}

	resp, err := c.http.Do(r)
	if err != nil {
		c.metrics.Requests.WithLabelValues(r.Method, "error").Inc()
		return 0, nil, fmt.Errorf("[Client send] %s %s: %w: %w", r.Method, p.req.Path, errors.ErrNetworkFailure, err)
	}
	defer resp.Body.Close()
	c.metrics.Requests.WithLabelValues(r.Method, strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("[Client send] read %s %s: %w: %w", r.Method, p.req.Path, errors.ErrNetworkFailure, err)
	}
	return resp.StatusCode, body, nil
}

func (c *Client) relativePath(u *url.URL) string {
	if u == nil {
		return ""
	}
	rel := u.Path
	if len(rel) >= len(c.base.Path) && rel[:len(c.base.Path)] == c.base.Path {
		rel = rel[len(c.base.Path):]
	}
	return rel
}
