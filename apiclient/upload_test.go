package apiclient_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jrsteele09/bastion-hub/apiclient"
	"github.com/jrsteele09/bastion-hub/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpload(t *testing.T) {
	var (
		calls    int
		auth     string
		fields   map[string]string
		fileName string
		content  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		auth = r.Header.Get("Authorization")
		if auth != "Bearer A1" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "expired"})
			return
		}
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		fields = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			fields[k] = v[0]
		}
		f, hdr, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		fileName = hdr.Filename
		b, _ := io.ReadAll(f)
		content = string(b)
		writeJSON(w, http.StatusCreated, map[string]string{"id": "d1", "title": fields["title"]})
	}))
	defer srv.Close()

	t.Run("posts multipart with the session bearer", func(t *testing.T) {
		store := signedIn(t, session.AuthTokens{Access: "A1", Refresh: "R1"})
		client := apiclient.New(srv.URL, store)

		var doc struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		}
		err := client.Upload(context.Background(), "/documents/", map[string]string{
			"title": "Trust deed",
			"tags":  `["estate"]`,
		}, apiclient.FormFile{Name: "deed.pdf", ContentType: "application/pdf", Content: strings.NewReader("%PDF-1.7")}, &doc)

		require.NoError(t, err)
		require.Equal(t, "d1", doc.ID)
		require.Equal(t, "Trust deed", doc.Title)
		require.Equal(t, map[string]string{"title": "Trust deed", "tags": `["estate"]`}, fields)
		require.Equal(t, "deed.pdf", fileName)
		require.Equal(t, "%PDF-1.7", content)
	})

	t.Run("401 is not refreshed", func(t *testing.T) {
		calls = 0
		store := signedIn(t, session.AuthTokens{Access: "stale", Refresh: "R1"})
		client := apiclient.New(srv.URL, store)

		err := client.Upload(context.Background(), "/documents/", nil, apiclient.FormFile{Name: "a.txt", Content: strings.NewReader("a")}, nil)

		var apiErr *apiclient.APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, apiclient.UploadFailedMessage, apiErr.Message)
		require.Equal(t, http.StatusUnauthorized, apiErr.Status)
		require.Equal(t, 1, calls)
		require.True(t, store.IsAuthenticated())
	})
}
