package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jrsteele09/bastion-hub/guard"
	"github.com/jrsteele09/bastion-hub/hubapi"
	"github.com/rs/zerolog/log"
)

// maxUploadMemory is how much of a multipart upload is held in memory
// before spilling to disk.
const maxUploadMemory = 32 << 20

type pager struct {
	Page    int
	Count   int
	PrevURL string
	NextURL string
}

func newPager[T any](r *http.Request, p hubapi.Page[T]) pager {
	n := pageNumber(r)
	link := func(page int) string {
		q := r.URL.Query()
		q.Set("page", strconv.Itoa(page))
		return "?" + q.Encode()
	}

	pg := pager{Page: n, Count: p.Count}
	if p.Previous != nil {
		pg.PrevURL = link(n - 1)
	}
	if p.Next != nil {
		pg.NextURL = link(n + 1)
	}
	return pg
}

func listParams(r *http.Request, keys ...string) hubapi.Params {
	params := hubapi.Params{}
	for _, k := range append(keys, "page") {
		if v := strings.TrimSpace(r.URL.Query().Get(k)); v != "" {
			params.Set(k, v)
		}
	}
	return params
}

type dashboardView struct {
	Stats    hubapi.DashboardStats
	Activity []hubapi.ActivityItem
	Pending  []hubapi.Briefing
}

// DashboardHandler shows the headline numbers, recent activity and the
// briefings waiting for review.
func (s *Server) DashboardHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("dashboard.html")

	return func(w http.ResponseWriter, r *http.Request) {
		api, _ := s.api(r.Context())
		data := s.pageData(r, "Dashboard", "dashboard")
		var view dashboardView

		stats, err := api.Dashboard.Stats(r.Context())
		if s.sessionEnded(w, r, err, r.URL.RequestURI()) {
			return
		}
		data.setError(err)
		view.Stats = stats

		if err == nil {
			view.Activity, err = api.Dashboard.Activity(r.Context(), 0)
			data.setError(err)
			view.Pending, err = api.Briefings.Pending(r.Context())
			data.setError(err)
		}

		data.Data = view
		renderPage(w, tmpl, data)
	}
}

type clientsView struct {
	Search  string
	Clients []hubapi.Client
	Pager   pager
}

func (s *Server) ClientsHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("clients.html")

	return func(w http.ResponseWriter, r *http.Request) {
		api, _ := s.api(r.Context())
		data := s.pageData(r, "Clients", "clients")

		page, err := api.Clients.List(r.Context(), listParams(r, "search", "client_type"))
		if s.sessionEnded(w, r, err, r.URL.RequestURI()) {
			return
		}
		data.setError(err)
		data.Data = clientsView{
			Search:  r.URL.Query().Get("search"),
			Clients: page.Results,
			Pager:   newPager(r, page),
		}
		renderPage(w, tmpl, data)
	}
}

type clientDetailView struct {
	Client   hubapi.Client
	Accounts []hubapi.Account
}

func (s *Server) ClientDetailHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("client_detail.html")

	return func(w http.ResponseWriter, r *http.Request) {
		api, _ := s.api(r.Context())
		id := r.PathValue("id")

		client, err := api.Clients.Get(r.Context(), id)
		if s.sessionEnded(w, r, err, r.URL.RequestURI()) {
			return
		}
		if err != nil {
			redirectWithError(w, r, RouteHubClients, errorMessage(err))
			return
		}

		data := s.pageData(r, client.FullName, "clients")
		accounts, err := api.Clients.Accounts(r.Context(), id)
		data.setError(err)
		data.Data = clientDetailView{Client: client, Accounts: accounts}
		renderPage(w, tmpl, data)
	}
}

type documentsView struct {
	Search     string
	Category   string
	Documents  []hubapi.Document
	Categories []hubapi.DocumentCategory
	Pager      pager
}

func (s *Server) DocumentsHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("documents.html")

	return func(w http.ResponseWriter, r *http.Request) {
		api, _ := s.api(r.Context())
		data := s.pageData(r, "Documents", "documents")

		page, err := api.Documents.List(r.Context(), listParams(r, "search", "category", "status"))
		if s.sessionEnded(w, r, err, r.URL.RequestURI()) {
			return
		}
		data.setError(err)

		categories, err := api.DocumentCategories.List(r.Context())
		data.setError(err)

		data.Data = documentsView{
			Search:     r.URL.Query().Get("search"),
			Category:   r.URL.Query().Get("category"),
			Documents:  page.Results,
			Categories: categories,
			Pager:      newPager(r, page),
		}
		renderPage(w, tmpl, data)
	}
}

// DocumentUploadHandler forwards a multipart upload to the API
func (s *Server) DocumentUploadHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
			redirectWithError(w, r, RouteHubDocuments, "The upload could not be read")
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			redirectWithError(w, r, RouteHubDocuments, "Choose a file to upload")
			return
		}
		defer file.Close()

		title := strings.TrimSpace(r.FormValue("title"))
		if title == "" {
			title = header.Filename
		}
		confidential := r.FormValue("is_confidential") == "on"
		upload := hubapi.DocumentUpload{
			Title:          title,
			Description:    r.FormValue("description"),
			Category:       r.FormValue("category"),
			Client:         r.FormValue("client"),
			Household:      r.FormValue("household"),
			IsConfidential: &confidential,
			FileName:       header.Filename,
			ContentType:    header.Header.Get("Content-Type"),
			File:           file,
		}
		if tags := strings.TrimSpace(r.FormValue("tags")); tags != "" {
			for _, t := range strings.Split(tags, ",") {
				if t = strings.TrimSpace(t); t != "" {
					upload.Tags = append(upload.Tags, t)
				}
			}
		}

		api, _ := s.api(r.Context())
		doc, err := api.Documents.Upload(r.Context(), upload)
		if err == nil {
			log.Info().Str("document", doc.ID).Str("file", header.Filename).Msg("document uploaded")
		}
		s.afterAction(w, r, err, RouteHubDocuments, "Uploaded "+title)
	}
}

// DocumentDownloadHandler sends the browser to the signed file URL
func (s *Server) DocumentDownloadHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		api, _ := s.api(r.Context())
		dl, err := api.Documents.Download(r.Context(), r.PathValue("id"))
		if s.sessionEnded(w, r, err, RouteHubDocuments) {
			return
		}
		if err != nil || dl.DownloadURL == "" {
			msg := "The document has no file attached"
			if err != nil {
				msg = errorMessage(err)
			}
			redirectWithError(w, r, RouteHubDocuments, msg)
			return
		}
		http.Redirect(w, r, dl.DownloadURL, http.StatusFound)
	}
}

func (s *Server) DocumentDeleteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		api, _ := s.api(r.Context())
		err := api.Documents.Delete(r.Context(), r.PathValue("id"))
		s.afterAction(w, r, err, RouteHubDocuments, "Document deleted")
	}
}

type briefingsView struct {
	Status    string
	Statuses  []hubapi.BriefingStatus
	Briefings []hubapi.Briefing
	Pager     pager
}

func (s *Server) BriefingsHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("briefings.html")

	return func(w http.ResponseWriter, r *http.Request) {
		api, _ := s.api(r.Context())
		data := s.pageData(r, "Briefings", "briefings")

		page, err := api.Briefings.List(r.Context(), listParams(r, "status", "search"))
		if s.sessionEnded(w, r, err, r.URL.RequestURI()) {
			return
		}
		data.setError(err)
		data.Data = briefingsView{
			Status: r.URL.Query().Get("status"),
			Statuses: []hubapi.BriefingStatus{
				hubapi.BriefingDraft, hubapi.BriefingPendingReview, hubapi.BriefingApproved,
				hubapi.BriefingSent, hubapi.BriefingFailed,
			},
			Briefings: page.Results,
			Pager:     newPager(r, page),
		}
		renderPage(w, tmpl, data)
	}
}

func (s *Server) BriefingApproveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		api, _ := s.api(r.Context())
		b, err := api.Briefings.Approve(r.Context(), r.PathValue("id"))
		s.afterAction(w, r, err, RouteHubBriefings, fmt.Sprintf("Approved %q", b.Title))
	}
}

func (s *Server) BriefingSendHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		api, _ := s.api(r.Context())
		b, err := api.Briefings.Send(r.Context(), r.PathValue("id"))
		s.afterAction(w, r, err, RouteHubBriefings, fmt.Sprintf("Sent %q", b.Title))
	}
}

type notificationsView struct {
	Notifications []hubapi.Notification
	Pager         pager
}

func (s *Server) NotificationsHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("notifications.html")

	return func(w http.ResponseWriter, r *http.Request) {
		api, _ := s.api(r.Context())
		data := s.pageData(r, "Notifications", "notifications")

		page, err := api.Notifications.List(r.Context(), listParams(r, "is_read"))
		if s.sessionEnded(w, r, err, r.URL.RequestURI()) {
			return
		}
		data.setError(err)
		data.Data = notificationsView{Notifications: page.Results, Pager: newPager(r, page)}
		renderPage(w, tmpl, data)
	}
}

func (s *Server) NotificationsReadAllHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		api, _ := s.api(r.Context())
		n, err := api.Notifications.MarkRead(r.Context(), nil)
		s.afterAction(w, r, err, RouteHubNotifications, fmt.Sprintf("Marked %d read", n))
	}
}

func (s *Server) NotificationReadHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		api, _ := s.api(r.Context())
		n, err := api.Notifications.MarkOneRead(r.Context(), r.PathValue("id"))
		if err == nil && guard.SafePath(n.Link) {
			redirectSuccess(w, r, n.Link)
			return
		}
		s.afterAction(w, r, err, RouteHubNotifications, "Marked read")
	}
}

type auditView struct {
	EventType string
	Severity  string
	Logs      []hubapi.AuditLog
	Pager     pager
}

func (s *Server) AuditHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("audit.html")

	return func(w http.ResponseWriter, r *http.Request) {
		api, _ := s.api(r.Context())
		data := s.pageData(r, "Audit log", "audit")

		page, err := api.Audit.List(r.Context(), listParams(r, "event_type", "severity", "search"))
		if s.sessionEnded(w, r, err, r.URL.RequestURI()) {
			return
		}
		data.setError(err)
		data.Data = auditView{
			EventType: r.URL.Query().Get("event_type"),
			Severity:  r.URL.Query().Get("severity"),
			Logs:      page.Results,
			Pager:     newPager(r, page),
		}
		renderPage(w, tmpl, data)
	}
}

// AuditExportHandler streams the filtered audit log as a JSON attachment
func (s *Server) AuditExportHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		api, _ := s.api(r.Context())
		logs, err := api.Audit.Export(r.Context(), listParams(r, "event_type", "severity", "search"))
		if s.sessionEnded(w, r, err, RouteHubAudit) {
			return
		}
		if err != nil {
			redirectWithError(w, r, RouteHubAudit, errorMessage(err))
			return
		}

		name := fmt.Sprintf("audit-%s.json", NowTimeFunc().UTC().Format("20060102-150405"))
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(logs); err != nil {
			log.Err(err).Msg("failed to write audit export")
		}
	}
}

type usersView struct {
	Search string
	Users  []hubapi.User
	Pager  pager
}

func (s *Server) UsersHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("users.html")

	return func(w http.ResponseWriter, r *http.Request) {
		api, _ := s.api(r.Context())
		data := s.pageData(r, "Users", "users")

		page, err := api.Users.List(r.Context(), listParams(r, "search", "role"))
		if s.sessionEnded(w, r, err, r.URL.RequestURI()) {
			return
		}
		data.setError(err)
		data.Data = usersView{Search: r.URL.Query().Get("search"), Users: page.Results, Pager: newPager(r, page)}
		renderPage(w, tmpl, data)
	}
}

// UserActionHandler runs activate, deactivate or reset-password on a user
func (s *Server) UserActionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		api, _ := s.api(r.Context())
		id := r.PathValue("id")

		var (
			err    error
			notice string
		)
		switch r.PathValue("action") {
		case "activate":
			_, err = api.Users.Activate(r.Context(), id)
			notice = "User activated"
		case "deactivate":
			_, err = api.Users.Deactivate(r.Context(), id)
			notice = "User deactivated"
		case "reset-password":
			_, err = api.Users.ResetPassword(r.Context(), id)
			notice = "Password reset email sent"
		default:
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
			return
		}
		s.afterAction(w, r, err, RouteHubUsers, notice)
	}
}

func (s *Server) SettingsHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("settings.html")

	return func(w http.ResponseWriter, r *http.Request) {
		api, _ := s.api(r.Context())
		data := s.pageData(r, "Settings", "settings")

		settings, err := api.Settings.Get(r.Context())
		if s.sessionEnded(w, r, err, r.URL.RequestURI()) {
			return
		}
		data.setError(err)
		data.Data = settings
		renderPage(w, tmpl, data)
	}
}

// SettingsUpdateHandler sends only the fields present in the form
func (s *Server) SettingsUpdateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		fields, invalid := settingsFields(r)
		if invalid != "" {
			redirectWithError(w, r, RouteHubSettings, strings.ReplaceAll(invalid, "_", " ")+" must be a whole number")
			return
		}

		api, _ := s.api(r.Context())
		_, err = api.Settings.Update(r.Context(), fields)
		s.afterAction(w, r, err, RouteHubSettings, "Settings saved")
	}
}

// settingsFields builds the partial update from the settings form. The second
// result names the first number field that does not parse.
func settingsFields(r *http.Request) (hubapi.Fields, string) {
	fields := hubapi.Fields{}
	for _, k := range []string{"company_name", "timezone", "date_format", "currency"} {
		if _, ok := r.PostForm[k]; ok {
			fields[k] = strings.TrimSpace(r.PostForm.Get(k))
		}
	}
	for _, k := range []string{"session_timeout_minutes", "password_expiry_days"} {
		v := strings.TrimSpace(r.PostForm.Get(k))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, k
		}
		fields[k] = n
	}
	// Checkboxes are only posted when ticked, so the form marks their presence.
	if r.PostForm.Get("has_toggles") != "" {
		fields["email_notifications"] = r.PostForm.Get("email_notifications") == "on"
		fields["mfa_required"] = r.PostForm.Get("mfa_required") == "on"
	}
	return fields, ""
}

func (s *Server) ChangePasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current := r.FormValue("current_password")
		next := r.FormValue("new_password")
		switch {
		case current == "" || next == "":
			redirectWithError(w, r, RouteHubSettings, "Both passwords are required")
			return
		case next != r.FormValue("new_password_confirm"):
			redirectWithError(w, r, RouteHubSettings, "Passwords do not match")
			return
		}

		api, _ := s.api(r.Context())
		err := api.Auth.ChangePassword(r.Context(), current, next)
		s.afterAction(w, r, err, RouteHubSettings, "Password changed")
	}
}

// NowTimeFunc is swapped in tests
var NowTimeFunc = time.Now
