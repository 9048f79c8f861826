package apiclient

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/jrsteele09/bastion-hub/internal/errors"
	"golang.org/x/oauth2"
)

// Doer sends a single HTTP request. *http.Client is the usual implementation.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

var _ Doer = (*AuthTransport)(nil)

// AuthTransport decorates a bare Doer with the bearer policy: attach the
// current access token, and on a 401 refresh once and retry once. A request
// is therefore sent at most twice.
type AuthTransport struct {
	Next    Doer
	Source  oauth2.TokenSource
	Refresh func(ctx context.Context) string
}

// Do sends req with the current bearer token. When the first response is a
// 401 and Refresh yields a new token, the request is replayed exactly once
// with that token and the second response is returned as is.
func (t *AuthTransport) Do(req *http.Request) (*http.Response, error) {
	first := req.Clone(req.Context())
	if tok, err := t.Source.Token(); err == nil {
		tok.SetAuthHeader(first)
	}

	resp, err := t.Next.Do(first)
	if err != nil || resp.StatusCode != http.StatusUnauthorized || t.Refresh == nil {
		return resp, err
	}

	// Keep the 401 body so it can still be returned if no retry happens.
	unauthorized, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, errors.Wrapf(err, "[AuthTransport Do] read 401 body")
	}
	resp.Body = io.NopCloser(bytes.NewReader(unauthorized))

	access := t.Refresh(req.Context())
	if access == "" {
		return resp, nil
	}

	retry, err := replay(req)
	if err != nil {
		return resp, nil
	}
	(&oauth2.Token{AccessToken: access, TokenType: "Bearer"}).SetAuthHeader(retry)
	return t.Next.Do(retry)
}

// replay clones req with a fresh copy of its body.
func replay(req *http.Request) (*http.Request, error) {
	retry := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return retry, nil
	}
	if req.GetBody == nil {
		return nil, errors.Wrapf(errors.ErrUnsupported, "[AuthTransport replay] request body cannot be replayed")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, errors.Wrapf(err, "[AuthTransport replay]")
	}
	retry.Body = body
	return retry, nil
}
