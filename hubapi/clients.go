package hubapi

import (
	"context"
	"time"

	"github.com/jrsteele09/bastion-hub/apiclient"
)

type ClientType string

const (
	ClientIndividual ClientType = "individual"
	ClientJoint      ClientType = "joint"
	ClientTrust      ClientType = "trust"
	ClientEntity     ClientType = "entity"
	ClientIRA        ClientType = "ira"
)

type Client struct {
	ID            string     `json:"id"`
	FirstName     string     `json:"first_name"`
	LastName      string     `json:"last_name"`
	FullName      string     `json:"full_name"`
	Email         string     `json:"email"`
	Phone         string     `json:"phone"`
	ClientType    ClientType `json:"client_type"`
	Household     *string    `json:"household"`
	HouseholdName *string    `json:"household_name"`
	PortalEnabled bool       `json:"portal_enabled"`
	RiskTolerance string     `json:"risk_tolerance"`
	TimeHorizon   string     `json:"time_horizon"`
	IsActive      bool       `json:"is_active"`
	OnboardedAt   *time.Time `json:"onboarded_at"`
	AccountCount  int        `json:"account_count"`
	TotalValue    *Amount    `json:"total_value"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// NewClient is the body for creating a client
type NewClient struct {
	FirstName     string     `json:"first_name"`
	LastName      string     `json:"last_name"`
	Email         string     `json:"email,omitempty"`
	Phone         string     `json:"phone,omitempty"`
	ClientType    ClientType `json:"client_type,omitempty"`
	Household     string     `json:"household,omitempty"`
	RiskTolerance string     `json:"risk_tolerance,omitempty"`
	TimeHorizon   string     `json:"time_horizon,omitempty"`
}

type Household struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Notes       string    `json:"notes"`
	ClientCount int       `json:"client_count"`
	TotalValue  *Amount   `json:"total_value"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type NewHousehold struct {
	Name  string `json:"name"`
	Notes string `json:"notes,omitempty"`
}

type Account struct {
	ID            string    `json:"id"`
	AccountNumber string    `json:"account_number"`
	Name          string    `json:"name"`
	AccountType   string    `json:"account_type"`
	Client        string    `json:"client"`
	ClientName    string    `json:"client_name"`
	Household     *string   `json:"household"`
	HouseholdName *string   `json:"household_name"`
	Custodian     string    `json:"custodian"`
	IsActive      bool      `json:"is_active"`
	OpenedDate    *string   `json:"opened_date"`
	CreatedAt     time.Time `json:"created_at"`
}

type ClientsService struct {
	client *apiclient.Client
}

func (s *ClientsService) List(ctx context.Context, params Params) (Page[Client], error) {
	return get[Page[Client]](ctx, s.client, withQuery("/clients/", params))
}

func (s *ClientsService) Get(ctx context.Context, id string) (Client, error) {
	return get[Client](ctx, s.client, itemPath("/clients/", id))
}

func (s *ClientsService) Create(ctx context.Context, c NewClient) (Client, error) {
	return post[Client](ctx, s.client, "/clients/", c)
}

func (s *ClientsService) Update(ctx context.Context, id string, fields Fields) (Client, error) {
	return patch[Client](ctx, s.client, itemPath("/clients/", id), fields)
}

func (s *ClientsService) Delete(ctx context.Context, id string) error {
	return s.client.Delete(ctx, itemPath("/clients/", id), nil)
}

func (s *ClientsService) Accounts(ctx context.Context, id string) ([]Account, error) {
	return get[[]Account](ctx, s.client, itemPath("/clients/", id)+"accounts/")
}

type HouseholdsService struct {
	client *apiclient.Client
}

func (s *HouseholdsService) List(ctx context.Context, params Params) (Page[Household], error) {
	return get[Page[Household]](ctx, s.client, withQuery("/households/", params))
}

func (s *HouseholdsService) Get(ctx context.Context, id string) (Household, error) {
	return get[Household](ctx, s.client, itemPath("/households/", id))
}

func (s *HouseholdsService) Create(ctx context.Context, h NewHousehold) (Household, error) {
	return post[Household](ctx, s.client, "/households/", h)
}

func (s *HouseholdsService) Update(ctx context.Context, id string, fields Fields) (Household, error) {
	return patch[Household](ctx, s.client, itemPath("/households/", id), fields)
}

func (s *HouseholdsService) Clients(ctx context.Context, id string) ([]Client, error) {
	return get[[]Client](ctx, s.client, itemPath("/households/", id)+"clients/")
}

func (s *HouseholdsService) Accounts(ctx context.Context, id string) ([]Account, error) {
	return get[[]Account](ctx, s.client, itemPath("/households/", id)+"accounts/")
}

type AccountsService struct {
	client *apiclient.Client
}

func (s *AccountsService) List(ctx context.Context, params Params) (Page[Account], error) {
	return get[Page[Account]](ctx, s.client, withQuery("/accounts/", params))
}

func (s *AccountsService) Get(ctx context.Context, id string) (Account, error) {
	return get[Account](ctx, s.client, itemPath("/accounts/", id))
}
