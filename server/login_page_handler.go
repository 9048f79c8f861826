package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jrsteele09/bastion-hub/hubapi"
	"github.com/rs/zerolog/log"
)

type loginView struct {
	Email string
}

// IndexHandler sends signed-in visitors to the hub and everyone else to a
// plain landing page.
func (s *Server) IndexHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("index.html")

	return func(w http.ResponseWriter, r *http.Request) {
		if store := storeFromContext(r.Context()); store != nil {
			<-store.Hydrated()
			if store.IsAuthenticated() {
				redirectSuccess(w, r, RouteHub)
				return
			}
		}
		renderPage(w, tmpl, s.pageData(r, "Welcome", ""))
	}
}

// LoginPageHandler displays the login page (GET /login)
func (s *Server) LoginPageHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("login.html")

	return func(w http.ResponseWriter, r *http.Request) {
		store := storeFromContext(r.Context())
		<-store.Hydrated()
		if store.IsAuthenticated() {
			redirectSuccess(w, r, s.guard.AfterLogin(w, r))
			return
		}

		data := s.pageData(r, "Sign in", "")
		data.Data = loginView{Email: r.URL.Query().Get("email")}
		renderPage(w, tmpl, data)
	}
}

// LoginSubmissionHandler signs in with the API and lands on the remembered
// page, or the dashboard.
func (s *Server) LoginSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		email := strings.TrimSpace(r.FormValue("email"))
		password := r.FormValue("password")

		back := withQueryParam(RouteLogin, "email", email)
		if email == "" || password == "" {
			redirectWithError(w, r, back, "Email and password are required")
			return
		}

		api, store := s.api(r.Context())
		if _, err := api.Auth.Login(r.Context(), hubapi.Credentials{Email: email, Password: password}); err != nil {
			msg := store.Error()
			store.ClearError()
			redirectWithError(w, r, back, msg)
			return
		}

		log.Info().Str("user", store.User().ID).Msg("signed in")
		redirectSuccess(w, r, s.guard.AfterLogin(w, r))
	}
}

// LogoutHandler revokes the refresh token and clears the hub session
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		api, _ := s.api(r.Context())
		api.Auth.Logout(r.Context())
		redirectSuccess(w, r, withQueryParam(RouteLogin, "notice", "You have been signed out"))
	}
}

type registerView struct {
	Email     string
	FirstName string
	LastName  string
}

func (s *Server) RegisterPageHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("register.html")

	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		data := s.pageData(r, "Create account", "")
		data.Data = registerView{Email: q.Get("email"), FirstName: q.Get("first_name"), LastName: q.Get("last_name")}
		renderPage(w, tmpl, data)
	}
}

func (s *Server) RegisterSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		reg := hubapi.Registration{
			Email:           strings.TrimSpace(r.FormValue("email")),
			Password:        r.FormValue("password"),
			PasswordConfirm: r.FormValue("password_confirm"),
			FirstName:       strings.TrimSpace(r.FormValue("first_name")),
			LastName:        strings.TrimSpace(r.FormValue("last_name")),
		}

		back := withQueryParam(withQueryParam(withQueryParam(RouteRegister, "email", reg.Email), "first_name", reg.FirstName), "last_name", reg.LastName)
		if reg.Email == "" || reg.Password == "" {
			redirectWithError(w, r, back, "Email and password are required")
			return
		}
		if reg.Password != reg.PasswordConfirm {
			redirectWithError(w, r, back, "Passwords do not match")
			return
		}

		api, store := s.api(r.Context())
		if _, err := api.Auth.Register(r.Context(), reg); err != nil {
			msg := store.Error()
			store.ClearError()
			redirectWithError(w, r, back, msg)
			return
		}
		redirectSuccess(w, r, RouteHub)
	}
}

func (s *Server) ForgotPasswordGetHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("forgot_password.html")

	return func(w http.ResponseWriter, r *http.Request) {
		renderPage(w, tmpl, s.pageData(r, "Reset password", ""))
	}
}

func (s *Server) ForgotPasswordPostHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := strings.TrimSpace(r.FormValue("email"))
		if email == "" {
			redirectWithError(w, r, RouteForgotPassword, "Email is required")
			return
		}
		api, _ := s.api(r.Context())
		if err := api.Auth.RequestPasswordReset(r.Context(), email); err != nil {
			redirectWithError(w, r, RouteForgotPassword, errorMessage(err))
			return
		}
		redirectSuccess(w, r, withQueryParam(RouteLogin, "notice", "If an account exists for that email, a reset link is on its way"))
	}
}

type resetView struct {
	Token string
}

func (s *Server) ResetPasswordGetHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("reset_password.html")

	return func(w http.ResponseWriter, r *http.Request) {
		data := s.pageData(r, "Choose a new password", "")
		data.Data = resetView{Token: r.URL.Query().Get("token")}
		renderPage(w, tmpl, data)
	}
}

func (s *Server) ResetPasswordPostHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.FormValue("token")
		password := r.FormValue("password")
		back := withQueryParam(RouteResetPassword, "token", token)

		switch {
		case token == "":
			redirectWithError(w, r, RouteForgotPassword, "The reset link is incomplete")
			return
		case password == "" || password != r.FormValue("password_confirm"):
			redirectWithError(w, r, back, "Passwords do not match")
			return
		}

		api, _ := s.api(r.Context())
		if err := api.Auth.ResetPassword(r.Context(), token, password); err != nil {
			redirectWithError(w, r, back, errorMessage(err))
			return
		}
		redirectSuccess(w, r, withQueryParam(RouteLogin, "notice", "Password updated, please sign in"))
	}
}

// HealthzHandler reports liveness and whether the API answers
func (s *Server) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{"status": "ok"}
		if h, err := s.healthAPI.Health(r.Context()); err != nil {
			status["api"] = "unreachable"
		} else {
			status["api"] = h.Status
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(status); err != nil {
			log.Err(err).Msg("failed to write health status")
		}
	}
}
