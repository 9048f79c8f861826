package hubapi

import (
	"context"
	"time"

	"github.com/jrsteele09/bastion-hub/apiclient"
)

type BriefingStatus string

const (
	BriefingDraft         BriefingStatus = "draft"
	BriefingPendingReview BriefingStatus = "pending_review"
	BriefingApproved      BriefingStatus = "approved"
	BriefingSent          BriefingStatus = "sent"
	BriefingFailed        BriefingStatus = "failed"
)

type DeliveryMethod string

const (
	DeliveryEmail  DeliveryMethod = "email"
	DeliveryPortal DeliveryMethod = "portal"
	DeliveryBoth   DeliveryMethod = "both"
)

type Briefing struct {
	ID                    string         `json:"id"`
	Title                 string         `json:"title"`
	Subject               string         `json:"subject"`
	Household             *string        `json:"household"`
	HouseholdName         *string        `json:"household_name"`
	Client                *string        `json:"client"`
	ClientName            *string        `json:"client_name"`
	Template              *string        `json:"template"`
	TemplateName          *string        `json:"template_name"`
	BodyMarkdown          string         `json:"body_markdown"`
	BodyHTML              string         `json:"body_html"`
	Status                BriefingStatus `json:"status"`
	StatusDisplay         string         `json:"status_display"`
	DeliveryMethod        DeliveryMethod `json:"delivery_method"`
	DeliveryMethodDisplay string         `json:"delivery_method_display"`
	ScheduledFor          *time.Time     `json:"scheduled_for"`
	SentAt                *time.Time     `json:"sent_at"`
	OpenedAt              *time.Time     `json:"opened_at"`
	CreatedBy             *string        `json:"created_by"`
	CreatedByName         *string        `json:"created_by_name"`
	ApprovedBy            *string        `json:"approved_by"`
	ApprovedByName        *string        `json:"approved_by_name"`
	ApprovedAt            *time.Time     `json:"approved_at"`
	PeriodStart           *string        `json:"period_start"`
	PeriodEnd             *string        `json:"period_end"`
	AttachmentCount       int            `json:"attachment_count"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
}

// CanApprove reports whether the briefing is waiting for sign-off
func (b Briefing) CanApprove() bool {
	return b.Status == BriefingDraft || b.Status == BriefingPendingReview
}

func (b Briefing) CanSend() bool {
	return b.Status == BriefingApproved
}

type NewBriefing struct {
	Title          string         `json:"title"`
	Subject        string         `json:"subject,omitempty"`
	Household      string         `json:"household,omitempty"`
	Client         string         `json:"client,omitempty"`
	Template       string         `json:"template,omitempty"`
	BodyMarkdown   string         `json:"body_markdown,omitempty"`
	DeliveryMethod DeliveryMethod `json:"delivery_method,omitempty"`
	ScheduledFor   *time.Time     `json:"scheduled_for,omitempty"`
}

type BriefingTemplate struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	TemplateType        string    `json:"template_type"`
	TemplateTypeDisplay string    `json:"template_type_display"`
	Description         string    `json:"description"`
	SubjectTemplate     string    `json:"subject_template"`
	BodyTemplate        string    `json:"body_template"`
	AvailableVariables  []string  `json:"available_variables"`
	IsActive            bool      `json:"is_active"`
	RequiresApproval    bool      `json:"requires_approval"`
	UsageCount          int       `json:"usage_count"`
	CreatedAt           time.Time `json:"created_at"`
}

type NotificationType string

const (
	NotificationInfo    NotificationType = "info"
	NotificationWarning NotificationType = "warning"
	NotificationAlert   NotificationType = "alert"
	NotificationSuccess NotificationType = "success"
	NotificationTask    NotificationType = "task"
)

type Notification struct {
	ID                      string           `json:"id"`
	Title                   string           `json:"title"`
	Message                 string           `json:"message"`
	NotificationType        NotificationType `json:"notification_type"`
	NotificationTypeDisplay string           `json:"notification_type_display"`
	Link                    string           `json:"link"`
	LinkText                string           `json:"link_text"`
	IsRead                  bool             `json:"is_read"`
	ReadAt                  *time.Time       `json:"read_at"`
	CreatedAt               time.Time        `json:"created_at"`
}

type UnreadNotifications struct {
	Count         int            `json:"count"`
	Notifications []Notification `json:"notifications"`
}

type BriefingsService struct {
	client *apiclient.Client
}

func (s *BriefingsService) List(ctx context.Context, params Params) (Page[Briefing], error) {
	return get[Page[Briefing]](ctx, s.client, withQuery("/briefings/", params))
}

func (s *BriefingsService) Get(ctx context.Context, id string) (Briefing, error) {
	return get[Briefing](ctx, s.client, itemPath("/briefings/", id))
}

func (s *BriefingsService) Create(ctx context.Context, b NewBriefing) (Briefing, error) {
	return post[Briefing](ctx, s.client, "/briefings/", b)
}

func (s *BriefingsService) Update(ctx context.Context, id string, fields Fields) (Briefing, error) {
	return patch[Briefing](ctx, s.client, itemPath("/briefings/", id), fields)
}

func (s *BriefingsService) Approve(ctx context.Context, id string) (Briefing, error) {
	return post[Briefing](ctx, s.client, itemPath("/briefings/", id)+"approve/", nil)
}

func (s *BriefingsService) Send(ctx context.Context, id string) (Briefing, error) {
	return post[Briefing](ctx, s.client, itemPath("/briefings/", id)+"send/", nil)
}

func (s *BriefingsService) Pending(ctx context.Context) ([]Briefing, error) {
	return get[[]Briefing](ctx, s.client, "/briefings/pending/")
}

func (s *BriefingsService) Scheduled(ctx context.Context) ([]Briefing, error) {
	return get[[]Briefing](ctx, s.client, "/briefings/scheduled/")
}

type BriefingTemplatesService struct {
	client *apiclient.Client
}

func (s *BriefingTemplatesService) List(ctx context.Context) (Page[BriefingTemplate], error) {
	return get[Page[BriefingTemplate]](ctx, s.client, "/briefing-templates/")
}

func (s *BriefingTemplatesService) Get(ctx context.Context, id string) (BriefingTemplate, error) {
	return get[BriefingTemplate](ctx, s.client, itemPath("/briefing-templates/", id))
}

type NotificationsService struct {
	client *apiclient.Client
}

func (s *NotificationsService) List(ctx context.Context, params Params) (Page[Notification], error) {
	return get[Page[Notification]](ctx, s.client, withQuery("/notifications/", params))
}

func (s *NotificationsService) Unread(ctx context.Context) (UnreadNotifications, error) {
	return get[UnreadNotifications](ctx, s.client, "/notifications/unread/")
}

type markReadRequest struct {
	NotificationIDs []string `json:"notification_ids,omitempty"`
	MarkAll         bool     `json:"mark_all,omitempty"`
}

type markReadResponse struct {
	MarkedRead int `json:"marked_read"`
}

// MarkRead marks the given notifications read, or all of them when ids is
// nil. It returns how many were marked.
func (s *NotificationsService) MarkRead(ctx context.Context, ids []string) (int, error) {
	body := markReadRequest{NotificationIDs: ids}
	if ids == nil {
		body = markReadRequest{MarkAll: true}
	}
	resp, err := post[markReadResponse](ctx, s.client, "/notifications/mark_read/", body)
	return resp.MarkedRead, err
}

func (s *NotificationsService) MarkOneRead(ctx context.Context, id string) (Notification, error) {
	return post[Notification](ctx, s.client, itemPath("/notifications/", id)+"read/", nil)
}
