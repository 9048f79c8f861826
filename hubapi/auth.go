package hubapi

import (
	"context"

	"github.com/jrsteele09/bastion-hub/apiclient"
	"github.com/jrsteele09/bastion-hub/internal/errors"
	"github.com/jrsteele09/bastion-hub/session"
	"github.com/rs/zerolog/log"
)

const (
	loginFailed        = "Login failed"
	registrationFailed = "Registration failed"
)

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Registration struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
}

// LoginResponse is what login and register return
type LoginResponse struct {
	User   session.User       `json:"user"`
	Tokens session.AuthTokens `json:"tokens"`
}

// AuthService signs users in and out and manages passwords. Login and
// Register report progress through the session's loading and error fields.
type AuthService struct {
	client  *apiclient.Client
	session Session
}

func (s *AuthService) Login(ctx context.Context, creds Credentials) (LoginResponse, error) {
	return s.signIn(ctx, "/auth/login/", creds, loginFailed)
}

func (s *AuthService) Register(ctx context.Context, reg Registration) (LoginResponse, error) {
	if reg.PasswordConfirm == "" {
		reg.PasswordConfirm = reg.Password
	}
	return s.signIn(ctx, "/auth/register/", reg, registrationFailed)
}

func (s *AuthService) signIn(ctx context.Context, path string, body any, fallback string) (LoginResponse, error) {
	s.session.SetLoading(true)
	s.session.SetError("")
	defer s.session.SetLoading(false)

	var resp LoginResponse
	if err := s.client.Post(ctx, path, body, &resp, apiclient.WithoutAuth()); err != nil {
		s.session.SetError(failureMessage(err, fallback))
		return LoginResponse{}, err
	}
	if resp.Tokens.Access == "" {
		s.session.SetError(fallback)
		return LoginResponse{}, errors.Wrapf(errors.ErrNoAccessToken, "[AuthService signIn] %s", path)
	}

	s.session.Login(resp.User, resp.Tokens)
	return resp, nil
}

// Logout asks the API to revoke the refresh token, then clears the session.
// The session is cleared even when the API call fails.
func (s *AuthService) Logout(ctx context.Context) {
	defer s.session.Logout()

	refresh := s.session.RefreshToken()
	if refresh == "" {
		return
	}
	if err := s.client.Post(ctx, "/auth/logout/", map[string]string{"refresh": refresh}, nil); err != nil {
		log.Debug().Err(err).Msg("server logout failed, clearing local session anyway")
	}
}

// Me fetches the signed-in user
func (s *AuthService) Me(ctx context.Context) (session.User, error) {
	return get[session.User](ctx, s.client, "/auth/me/")
}

func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	return s.client.Post(ctx, "/auth/password/reset/", map[string]string{"email": email}, nil, apiclient.WithoutAuth())
}

func (s *AuthService) ResetPassword(ctx context.Context, token, password string) error {
	body := map[string]string{"token": token, "password": password}
	return s.client.Post(ctx, "/auth/password/reset/confirm/", body, nil, apiclient.WithoutAuth())
}

func (s *AuthService) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	body := map[string]string{"current_password": currentPassword, "new_password": newPassword}
	return s.client.Post(ctx, "/auth/password/change/", body, nil)
}

// failureMessage is the text shown to the user for a failed sign in.
func failureMessage(err error, fallback string) string {
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
