// Package apiclient talks to the Bastion REST API on behalf of a session.
// Authenticated requests carry the session's bearer token; an expired token
// is refreshed once and the request retried once.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/bastion-hub/internal/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const defaultTimeout = 30 * time.Second

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the bare transport used for every request.
func WithHTTPClient(doer Doer) Option {
	return func(c *Client) {
		c.bare = doer
	}
}

// WithTimeout sets the timeout of the default http.Client. It has no effect
// together with WithHTTPClient.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// WithSharedRefresh lets concurrent 401s share one refresh call.
func WithSharedRefresh() Option {
	return func(c *Client) {
		c.sharedRefresh = true
	}
}

// Client sends JSON requests to the API
type Client struct {
	baseURL       string
	session       Session
	bare          Doer
	auth          Doer
	refresher     *Refresher
	timeout       time.Duration
	sharedRefresh bool
	log           zerolog.Logger
}

// New creates a client for the API at baseURL acting for sess.
func New(baseURL string, sess Session, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		session: sess,
		timeout: defaultTimeout,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.bare == nil {
		c.bare = &http.Client{Timeout: c.timeout}
	}

	c.refresher = NewRefresher(c.bare, c.baseURL, sess, c.log)
	if c.timeout > 0 {
		c.refresher.timeout = c.timeout
	}
	if c.sharedRefresh {
		c.refresher.Shared()
	}
	c.auth = &AuthTransport{
		Next:    c.bare,
		Source:  sessionTokenSource{sess},
		Refresh: c.refresher.Refresh,
	}
	return c
}

// BaseURL is the API root every endpoint is resolved against
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Session returns the session the client acts for.
func (c *Client) Session() Session {
	return c.session
}

type requestConfig struct {
	requireAuth bool
	header      http.Header
}

// RequestOption adjusts a single request
type RequestOption func(*requestConfig)

// WithoutAuth sends the request with no bearer token and no refresh on 401.
func WithoutAuth() RequestOption {
	return func(rc *requestConfig) {
		rc.requireAuth = false
	}
}

// WithHeader adds a header to the request. Authorization is always set by
// the client for authenticated requests.
func WithHeader(key, value string) RequestOption {
	return func(rc *requestConfig) {
		rc.header.Set(key, value)
	}
}

// Request sends body as JSON to endpoint and decodes the response into out.
// A 204 decodes as an empty object. Non-2xx responses are returned as
// *APIError; transport failures are wrapped and never retried.
func (c *Client) Request(ctx context.Context, method, endpoint string, body, out any, opts ...RequestOption) error {
	rc := requestConfig{requireAuth: true, header: http.Header{}}
	for _, opt := range opts {
		opt(&rc)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.Wrapf(err, "[Client Request] encode %s %s", method, endpoint)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return errors.Wrapf(err, "[Client Request] %s %s", method, endpoint)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range rc.header {
		req.Header[k] = v
	}

	doer := c.bare
	if rc.requireAuth {
		doer = c.auth
	}

	resp, err := doer.Do(req)
	if err != nil {
		return errors.Wrapf(err, "[Client Request] %s %s", method, endpoint)
	}
	defer resp.Body.Close()

	return c.decode(resp, method, endpoint, out)
}

func (c *Client) decode(resp *http.Response, method, endpoint string, out any) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "[Client Request] read %s %s", method, endpoint)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := newAPIError(resp.StatusCode, data)
		c.log.Debug().Str("method", method).Str("endpoint", endpoint).Int("status", apiErr.Status).Msg(apiErr.Message)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(data)) == 0 {
		return decodeEmpty(out)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrapf(err, "[Client Request] decode %s %s", method, endpoint)
	}
	return nil
}

// decodeEmpty gives out the value of an empty JSON object. Targets that
// cannot hold an object, such as slices, are left at their zero value.
func decodeEmpty(out any) error {
	err := json.Unmarshal([]byte("{}"), out)
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return nil
	}
	return err
}

func (c *Client) Get(ctx context.Context, endpoint string, out any, opts ...RequestOption) error {
	return c.Request(ctx, http.MethodGet, endpoint, nil, out, opts...)
}

func (c *Client) Post(ctx context.Context, endpoint string, body, out any, opts ...RequestOption) error {
	return c.Request(ctx, http.MethodPost, endpoint, body, out, opts...)
}

func (c *Client) Put(ctx context.Context, endpoint string, body, out any, opts ...RequestOption) error {
	return c.Request(ctx, http.MethodPut, endpoint, body, out, opts...)
}

func (c *Client) Patch(ctx context.Context, endpoint string, body, out any, opts ...RequestOption) error {
	return c.Request(ctx, http.MethodPatch, endpoint, body, out, opts...)
}

func (c *Client) Delete(ctx context.Context, endpoint string, out any, opts ...RequestOption) error {
	return c.Request(ctx, http.MethodDelete, endpoint, nil, out, opts...)
}

// sessionTokenSource reads the access token when the request is built, so
// a token refreshed by another request is picked up immediately.
type sessionTokenSource struct {
	session Session
}

func (s sessionTokenSource) Token() (*oauth2.Token, error) {
	access := s.session.AccessToken()
	if access == "" {
		return nil, errors.ErrNoAccessToken
	}
	return &oauth2.Token{AccessToken: access, TokenType: "Bearer"}, nil
}
