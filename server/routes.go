package server

import (
	"net/http"
	"strings"
)

func (s *Server) initRoutes() {
	html := s.HTMLMiddleWare
	protected := func(h http.HandlerFunc) http.HandlerFunc {
		return ChainMiddleware(h, html(s.guard.Middleware)...)
	}

	s.RegisterRouteHandler("GET "+RouteHealthz, ChainMiddleware(s.HealthzHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteStaticCSS, ChainMiddleware(s.serveFileHandler(), s.StaticMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteIndex+"{$}", ChainMiddleware(s.IndexHandler(), html()...))

	// LOGIN
	s.RegisterRouteHandler("GET "+RouteLogin, ChainMiddleware(s.LoginPageHandler(), html()...))
	s.RegisterRouteHandler("POST "+RouteAuthLogin, ChainMiddleware(s.LoginSubmissionHandler(), html()...))
	s.RegisterRouteHandler("POST "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), html()...))
	s.RegisterRouteHandler("GET "+RouteRegister, ChainMiddleware(s.RegisterPageHandler(), html()...))
	s.RegisterRouteHandler("POST "+RouteRegister, ChainMiddleware(s.RegisterSubmissionHandler(), html()...))
	s.RegisterRouteHandler("GET "+RouteForgotPassword, ChainMiddleware(s.ForgotPasswordGetHandler(), html()...))
	s.RegisterRouteHandler("POST "+RouteForgotPassword, ChainMiddleware(s.ForgotPasswordPostHandler(), html()...))
	s.RegisterRouteHandler("GET "+RouteResetPassword, ChainMiddleware(s.ResetPasswordGetHandler(), html()...))
	s.RegisterRouteHandler("POST "+RouteResetPassword, ChainMiddleware(s.ResetPasswordPostHandler(), html()...))

	// HUB
	s.RegisterRouteHandler("GET "+RouteHub, protected(s.DashboardHandler()))
	s.RegisterRouteHandler("GET "+RouteHubClients, protected(s.ClientsHandler()))
	s.RegisterRouteHandler("GET "+RouteHubClient, protected(s.ClientDetailHandler()))
	s.RegisterRouteHandler("GET "+RouteHubDocuments, protected(s.DocumentsHandler()))
	s.RegisterRouteHandler("POST "+RouteHubDocuments, protected(s.DocumentUploadHandler()))
	s.RegisterRouteHandler("GET "+RouteHubDocumentFile, protected(s.DocumentDownloadHandler()))
	s.RegisterRouteHandler("POST "+RouteHubDocumentDelete, protected(s.DocumentDeleteHandler()))
	s.RegisterRouteHandler("GET "+RouteHubBriefings, protected(s.BriefingsHandler()))
	s.RegisterRouteHandler("POST "+RouteHubBriefingApprove, protected(s.BriefingApproveHandler()))
	s.RegisterRouteHandler("POST "+RouteHubBriefingSend, protected(s.BriefingSendHandler()))
	s.RegisterRouteHandler("GET "+RouteHubNotifications, protected(s.NotificationsHandler()))
	s.RegisterRouteHandler("POST "+RouteHubNotificationsRd, protected(s.NotificationsReadAllHandler()))
	s.RegisterRouteHandler("POST "+RouteHubNotificationRd, protected(s.NotificationReadHandler()))
	s.RegisterRouteHandler("GET "+RouteHubAudit, protected(s.AuditHandler()))
	s.RegisterRouteHandler("GET "+RouteHubAuditExport, protected(s.AuditExportHandler()))
	s.RegisterRouteHandler("GET "+RouteHubUsers, protected(s.UsersHandler()))
	s.RegisterRouteHandler("POST "+RouteHubUserAction, protected(s.UserActionHandler()))
	s.RegisterRouteHandler("GET "+RouteHubSettings, protected(s.SettingsHandler()))
	s.RegisterRouteHandler("POST "+RouteHubSettings, protected(s.SettingsUpdateHandler()))
	s.RegisterRouteHandler("POST "+RouteHubPassword, protected(s.ChangePasswordHandler()))
}

func (s *Server) serveFileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filePath := strings.TrimPrefix(r.URL.Path, "/")
		if filePath == "" {
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
			return
		}
		if err := StreamFile(w, r, filePath); err != nil {
			logError(r.Method, filePath, err)
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
		}
	}
}
