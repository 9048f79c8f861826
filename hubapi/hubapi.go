// Package hubapi wraps every Bastion API endpoint in a typed call.
package hubapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/jrsteele09/bastion-hub/apiclient"
	"github.com/jrsteele09/bastion-hub/internal/errors"
	"github.com/jrsteele09/bastion-hub/session"
)

// Session is the auth store as the typed API drives it. *session.Store
// implements it.
type Session interface {
	apiclient.Session
	Login(user session.User, tokens session.AuthTokens)
	SetLoading(loading bool)
	SetError(msg string)
}

// API groups the endpoint services
type API struct {
	client *apiclient.Client

	Auth               *AuthService
	Clients            *ClientsService
	Households         *HouseholdsService
	Accounts           *AccountsService
	Documents          *DocumentsService
	DocumentCategories *DocumentCategoriesService
	Briefings          *BriefingsService
	BriefingTemplates  *BriefingTemplatesService
	Notifications      *NotificationsService
	Users              *UsersService
	Dashboard          *DashboardService
	Audit              *AuditService
	Settings           *SettingsService
}

// New builds the typed API over client. sess must be the session client acts for.
func New(client *apiclient.Client, sess Session) *API {
	return &API{
		client:             client,
		Auth:               &AuthService{client: client, session: sess},
		Clients:            &ClientsService{client: client},
		Households:         &HouseholdsService{client: client},
		Accounts:           &AccountsService{client: client},
		Documents:          &DocumentsService{client: client},
		DocumentCategories: &DocumentCategoriesService{client: client},
		Briefings:          &BriefingsService{client: client},
		BriefingTemplates:  &BriefingTemplatesService{client: client},
		Notifications:      &NotificationsService{client: client},
		Users:              &UsersService{client: client},
		Dashboard:          &DashboardService{client: client},
		Audit:              &AuditService{client: client},
		Settings:           &SettingsService{client: client},
	}
}

// Client is the underlying JSON client
func (a *API) Client() *apiclient.Client {
	return a.client
}

// Health reports API and database status. It needs no session.
func (a *API) Health(ctx context.Context) (Health, error) {
	var h Health
	err := a.client.Get(ctx, "/health/", &h, apiclient.WithoutAuth())
	return h, err
}

// Page is one page of a paginated collection
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// Params are list filters sent as the query string, e.g. search, page,
// ordering, status.
type Params = url.Values

// Fields is a partial update body. Only the keys present are changed.
type Fields map[string]any

// Status is the {"status": ...} acknowledgement some actions return
type Status struct {
	Status string `json:"status"`
}

// Amount is a money value. The API sends decimals either as JSON numbers
// or as strings such as "1250000.00".
type Amount float64

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*a = 0
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return errors.Wrapf(err, "[Amount UnmarshalJSON] %q", data)
	}
	*a = Amount(f)
	return nil
}

func withQuery(path string, params Params) string {
	if len(params) == 0 {
		return path
	}
	return path + "?" + params.Encode()
}

func get[T any](ctx context.Context, c *apiclient.Client, path string) (T, error) {
	var out T
	err := c.Get(ctx, path, &out)
	return out, err
}

func post[T any](ctx context.Context, c *apiclient.Client, path string, body any) (T, error) {
	var out T
	err := c.Post(ctx, path, body, &out)
	return out, err
}

func patch[T any](ctx context.Context, c *apiclient.Client, path string, body any) (T, error) {
	var out T
	err := c.Patch(ctx, path, body, &out)
	return out, err
}

func itemPath(collection, id string) string {
	return collection + url.PathEscape(id) + "/"
}

// pageOrList decodes either a Page[T] or a bare JSON array of T.
func pageOrList[T any](data json.RawMessage) ([]T, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []T
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, errors.Wrapf(err, "[pageOrList] list")
		}
		return list, nil
	}
	var page Page[T]
	if err := json.Unmarshal(trimmed, &page); err != nil {
		return nil, errors.Wrapf(err, "[pageOrList] page")
	}
	return page.Results, nil
}
