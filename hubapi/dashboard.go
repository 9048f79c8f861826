package hubapi

import (
	"context"
	"strconv"
	"time"

	"github.com/jrsteele09/bastion-hub/apiclient"
)

const defaultActivityLimit = 10

type DashboardStats struct {
	TotalAUM         Amount `json:"total_aum"`
	TotalClients     int    `json:"total_clients"`
	TotalHouseholds  int    `json:"total_households"`
	TotalAccounts    int    `json:"total_accounts"`
	PendingTasks     int    `json:"pending_tasks"`
	PendingBriefings int    `json:"pending_briefings"`
}

type ActivityItem struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	User        string    `json:"user"`
	Timestamp   time.Time `json:"timestamp"`
	EventType   string    `json:"event_type"`
}

type AuditLog struct {
	ID          string         `json:"id"`
	Timestamp   time.Time      `json:"timestamp"`
	EventType   string         `json:"event_type"`
	Severity    string         `json:"severity"`
	UserEmail   string         `json:"user_email"`
	TargetType  string         `json:"target_type"`
	TargetID    string         `json:"target_id"`
	TargetRepr  string         `json:"target_repr"`
	Description string         `json:"description"`
	IPAddress   string         `json:"ip_address"`
	Data        map[string]any `json:"data"`
}

type Settings struct {
	CompanyName           string `json:"company_name"`
	Timezone              string `json:"timezone"`
	DateFormat            string `json:"date_format"`
	Currency              string `json:"currency"`
	EmailNotifications    bool   `json:"email_notifications"`
	MFARequired           bool   `json:"mfa_required"`
	SessionTimeoutMinutes int    `json:"session_timeout_minutes"`
	PasswordExpiryDays    int    `json:"password_expiry_days"`
}

type Health struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Version  string `json:"version"`
}

type DashboardService struct {
	client *apiclient.Client
}

func (s *DashboardService) Stats(ctx context.Context) (DashboardStats, error) {
	return get[DashboardStats](ctx, s.client, "/dashboard/stats/")
}

// Activity returns the latest activity, newest first. A limit of zero or
// less uses the API's usual ten.
func (s *DashboardService) Activity(ctx context.Context, limit int) ([]ActivityItem, error) {
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	return get[[]ActivityItem](ctx, s.client, withQuery("/dashboard/activity/", Params{"limit": {strconv.Itoa(limit)}}))
}

type AuditService struct {
	client *apiclient.Client
}

func (s *AuditService) List(ctx context.Context, params Params) (Page[AuditLog], error) {
	return get[Page[AuditLog]](ctx, s.client, withQuery("/audit-logs/", params))
}

func (s *AuditService) Export(ctx context.Context, params Params) ([]AuditLog, error) {
	return get[[]AuditLog](ctx, s.client, withQuery("/audit-logs/export/", params))
}

type SettingsService struct {
	client *apiclient.Client
}

func (s *SettingsService) Get(ctx context.Context) (Settings, error) {
	return get[Settings](ctx, s.client, "/settings/")
}

func (s *SettingsService) Update(ctx context.Context, fields Fields) (Status, error) {
	return patch[Status](ctx, s.client, "/settings/", fields)
}
