package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/jrsteele09/bastion-hub/apiclient"
	"github.com/jrsteele09/bastion-hub/internal/errors"
	"github.com/jrsteele09/bastion-hub/session"
	"github.com/rs/zerolog/log"
)

const unreachableMessage = "The hub could not reach the Bastion API. Please try again."

// PageData is handed to every page template
type PageData struct {
	AppName string
	Title   string
	Active  string
	User    *session.User
	// TokenExpiry is how long the access token has left, when it is a JWT.
	TokenExpiry string
	Error       string
	Notice      string
	Data        any
}

func (s *Server) pageData(r *http.Request, title, active string) PageData {
	data := PageData{
		AppName: s.config.GetAppName(),
		Title:   title,
		Active:  active,
		Error:   r.URL.Query().Get("error"),
		Notice:  r.URL.Query().Get("notice"),
	}
	if store := storeFromContext(r.Context()); store != nil {
		data.User = store.User()
		if exp, ok := session.AccessExpiry(store.AccessToken()); ok {
			data.TokenExpiry = untilString(exp)
		}
	}
	return data
}

// setError shows err inline unless an error is already being shown
func (p *PageData) setError(err error) {
	if err != nil && p.Error == "" {
		p.Error = errorMessage(err)
	}
}

func errorMessage(err error) string {
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	log.Err(err).Msg("API request failed")
	return unreachableMessage
}

// sessionEnded sends the browser to the login page when err left the
// session signed out, which happens when a refresh is rejected.
func (s *Server) sessionEnded(w http.ResponseWriter, r *http.Request, err error, returnTo string) bool {
	if !apiclient.IsUnauthorized(err) {
		return false
	}
	if store := storeFromContext(r.Context()); store != nil && store.IsAuthenticated() {
		return false
	}
	s.guard.SendToLogin(w, r, returnTo)
	return true
}

// afterAction finishes a form post: back to the listing with a notice, or
// with the error.
func (s *Server) afterAction(w http.ResponseWriter, r *http.Request, err error, back, notice string) {
	if s.sessionEnded(w, r, err, back) {
		return
	}
	if err != nil {
		redirectWithError(w, r, back, errorMessage(err))
		return
	}
	redirectSuccess(w, r, withQueryParam(back, "notice", notice))
}

func untilString(t time.Time) string {
	d := time.Until(t).Round(time.Minute)
	switch {
	case d <= 0:
		return "expired"
	case d < time.Hour:
		return "expires in " + strconv.Itoa(int(d.Minutes())) + "m"
	}
	return "expires in " + strconv.Itoa(int(d.Hours())) + "h"
}

func pageNumber(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || n < 1 {
		return 1
	}
	return n
}
