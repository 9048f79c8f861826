package hubapi

import (
	"context"
	"time"

	"github.com/jrsteele09/bastion-hub/apiclient"
	"github.com/jrsteele09/bastion-hub/session"
)

// User is a hub account as managed by administrators. It carries more than
// the session.User kept for the signed-in user.
type User struct {
	ID          string       `json:"id"`
	Email       string       `json:"email"`
	FirstName   string       `json:"first_name"`
	LastName    string       `json:"last_name"`
	FullName    string       `json:"full_name,omitempty"`
	Role        session.Role `json:"role"`
	IsActive    bool         `json:"is_active"`
	IsStaff     bool         `json:"is_staff"`
	IsSuperuser bool         `json:"is_superuser"`
	MFAEnabled  bool         `json:"mfa_enabled"`
	DateJoined  time.Time    `json:"date_joined"`
	LastLogin   *time.Time   `json:"last_login"`
}

type NewUser struct {
	Email     string       `json:"email"`
	Password  string       `json:"password"`
	FirstName string       `json:"first_name,omitempty"`
	LastName  string       `json:"last_name,omitempty"`
	Role      session.Role `json:"role,omitempty"`
}

type UsersService struct {
	client *apiclient.Client
}

func (s *UsersService) List(ctx context.Context, params Params) (Page[User], error) {
	return get[Page[User]](ctx, s.client, withQuery("/users/", params))
}

func (s *UsersService) Get(ctx context.Context, id string) (User, error) {
	return get[User](ctx, s.client, itemPath("/users/", id))
}

func (s *UsersService) Create(ctx context.Context, u NewUser) (User, error) {
	return post[User](ctx, s.client, "/users/", u)
}

func (s *UsersService) Update(ctx context.Context, id string, fields Fields) (User, error) {
	return patch[User](ctx, s.client, itemPath("/users/", id), fields)
}

func (s *UsersService) Activate(ctx context.Context, id string) (Status, error) {
	return post[Status](ctx, s.client, itemPath("/users/", id)+"activate/", nil)
}

func (s *UsersService) Deactivate(ctx context.Context, id string) (Status, error) {
	return post[Status](ctx, s.client, itemPath("/users/", id)+"deactivate/", nil)
}

func (s *UsersService) ResetPassword(ctx context.Context, id string) (Status, error) {
	return post[Status](ctx, s.client, itemPath("/users/", id)+"reset_password/", nil)
}
