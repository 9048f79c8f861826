package server

// Route path constants
const (
	// Public
	RouteIndex   = "/"
	RouteHealthz = "/healthz"

	// Auth
	RouteLogin          = "/login"
	RouteAuthLogin      = "/auth/login"
	RouteAuthLogout     = "/auth/logout"
	RouteRegister       = "/auth/register"
	RouteForgotPassword = "/auth/forgot-password"
	RouteResetPassword  = "/auth/reset-password"

	// Hub (protected)
	RouteHub                = "/hub"
	RouteHubClients         = "/hub/clients"
	RouteHubClient          = "/hub/clients/{id}"
	RouteHubDocuments       = "/hub/documents"
	RouteHubDocumentDelete  = "/hub/documents/{id}/delete"
	RouteHubDocumentFile    = "/hub/documents/{id}/download"
	RouteHubBriefings       = "/hub/briefings"
	RouteHubBriefingApprove = "/hub/briefings/{id}/approve"
	RouteHubBriefingSend    = "/hub/briefings/{id}/send"
	RouteHubNotifications   = "/hub/notifications"
	RouteHubNotificationsRd = "/hub/notifications/read"
	RouteHubNotificationRd  = "/hub/notifications/{id}/read"
	RouteHubAudit           = "/hub/audit"
	RouteHubAuditExport     = "/hub/audit/export"
	RouteHubUsers           = "/hub/users"
	RouteHubUserAction      = "/hub/users/{id}/{action}"
	RouteHubSettings        = "/hub/settings"
	RouteHubPassword        = "/hub/settings/password"

	// Static Asset Routes (patterns)
	RouteStaticCSS = "/css/{file}"
)
