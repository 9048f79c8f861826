package apiclient_test

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/jrsteele09/bastion-hub/apiclient"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type recordingDoer struct {
	statuses []int
	seen     []string
}

func (d *recordingDoer) Do(r *http.Request) (*http.Response, error) {
	d.seen = append(d.seen, r.Header.Get("Authorization"))
	status := d.statuses[0]
	if len(d.statuses) > 1 {
		d.statuses = d.statuses[1:]
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(`{"attempt":` + strconv.Itoa(len(d.seen)) + `}`)),
		Header:     http.Header{},
	}, nil
}

func TestAuthTransport(t *testing.T) {
	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "A1", TokenType: "Bearer"})

	t.Run("success passes through", func(t *testing.T) {
		next := &recordingDoer{statuses: []int{http.StatusOK}}
		refreshed := 0
		tr := &apiclient.AuthTransport{Next: next, Source: source, Refresh: func(context.Context) string {
			refreshed++
			return "A2"
		}}

		req, _ := http.NewRequest(http.MethodGet, "http://api.test/clients/", nil)
		resp, err := tr.Do(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, []string{"Bearer A1"}, next.seen)
		require.Zero(t, refreshed)
		require.Empty(t, req.Header.Get("Authorization"))
	})

	t.Run("refresh without token keeps the 401", func(t *testing.T) {
		next := &recordingDoer{statuses: []int{http.StatusUnauthorized}}
		tr := &apiclient.AuthTransport{Next: next, Source: source, Refresh: func(context.Context) string { return "" }}

		req, _ := http.NewRequest(http.MethodGet, "http://api.test/clients/", nil)
		resp, err := tr.Do(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.JSONEq(t, `{"attempt":1}`, string(body))
		require.Len(t, next.seen, 1)
	})

	t.Run("one retry with the new token", func(t *testing.T) {
		next := &recordingDoer{statuses: []int{http.StatusUnauthorized, http.StatusUnauthorized}}
		refreshed := 0
		tr := &apiclient.AuthTransport{Next: next, Source: source, Refresh: func(context.Context) string {
			refreshed++
			return "A2"
		}}

		req, _ := http.NewRequest(http.MethodPost, "http://api.test/clients/", strings.NewReader(`{}`))
		resp, err := tr.Do(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.Equal(t, []string{"Bearer A1", "Bearer A2"}, next.seen)
		require.Equal(t, 1, refreshed)
	})

	t.Run("body that cannot be replayed", func(t *testing.T) {
		next := &recordingDoer{statuses: []int{http.StatusUnauthorized}}
		tr := &apiclient.AuthTransport{Next: next, Source: source, Refresh: func(context.Context) string { return "A2" }}

		req, _ := http.NewRequest(http.MethodPost, "http://api.test/clients/", io.NopCloser(strings.NewReader(`{}`)))
		resp, err := tr.Do(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.Len(t, next.seen, 1)
	})
}
