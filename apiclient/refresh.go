package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/jrsteele09/bastion-hub/internal/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// RefreshPath is the token refresh endpoint, relative to the API base URL.
const RefreshPath = "/auth/token/refresh/"

const defaultRefreshTimeout = 30 * time.Second

// Session is the part of the auth store the client needs. *session.Store
// implements it.
type Session interface {
	AccessToken() string
	RefreshToken() string
	UpdateAccessToken(access string)
	Logout()
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type refreshResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// Refresher trades the session's refresh token for a new access token.
// Any failure signs the session out.
type Refresher struct {
	doer    Doer
	baseURL string
	session Session
	log     zerolog.Logger
	group   *singleflight.Group
	timeout time.Duration
}

// NewRefresher creates a refresher posting to baseURL + RefreshPath through
// doer. doer must not be an AuthTransport.
func NewRefresher(doer Doer, baseURL string, sess Session, log zerolog.Logger) *Refresher {
	return &Refresher{
		doer:    doer,
		baseURL: baseURL,
		session: sess,
		log:     log,
		timeout: defaultRefreshTimeout,
	}
}

// Shared makes concurrent callers wait on one in-flight refresh instead of
// each sending their own.
func (r *Refresher) Shared() *Refresher {
	r.group = &singleflight.Group{}
	return r
}

// Refresh returns the new access token, or "" after signing the session out.
func (r *Refresher) Refresh(ctx context.Context) string {
	if r.group == nil {
		return r.refresh(ctx)
	}
	v, _, _ := r.group.Do("refresh", func() (any, error) {
		return r.refresh(ctx), nil
	})
	return v.(string)
}

// refresh runs the exchange detached from ctx. A caller that goes away
// mid-refresh must not sign out a session whose refresh token is still good.
func (r *Refresher) refresh(ctx context.Context) string {
	refresh := r.session.RefreshToken()
	if refresh == "" {
		r.log.Debug().Err(errors.ErrNoRefreshToken).Msg("signing out")
		r.session.Logout()
		return ""
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	access, err := r.exchange(ctx, refresh)
	if err != nil {
		r.log.Warn().Err(err).Msg("token refresh failed, signing out")
		r.session.Logout()
		return ""
	}

	r.session.UpdateAccessToken(access)
	return access
}

func (r *Refresher) exchange(ctx context.Context, refresh string) (string, error) {
	payload, err := json.Marshal(refreshRequest{Refresh: refresh})
	if err != nil {
		return "", errors.Wrapf(err, "[Refresher exchange] encode")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+RefreshPath, bytes.NewReader(payload))
	if err != nil {
		return "", errors.Wrapf(err, "[Refresher exchange] new request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.doer.Do(req)
	if err != nil {
		return "", errors.Wrapf(err, "[Refresher exchange] send")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrapf(err, "[Refresher exchange] read")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", errors.Wrapf(errors.ErrRefreshRejected, "[Refresher exchange] %s", newAPIError(resp.StatusCode, body))
	}

	var out refreshResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", errors.Wrapf(err, "[Refresher exchange] decode")
	}
	if out.Access == "" {
		return "", errors.Wrapf(errors.ErrNoAccessToken, "[Refresher exchange]")
	}
	if out.Refresh != "" {
		// The session keeps the refresh token it already has.
		r.log.Debug().Msg("ignoring rotated refresh token")
	}
	return out.Access, nil
}
