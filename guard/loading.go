package guard

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/rs/zerolog/log"
)

//go:embed templates/*.html
var templateFS embed.FS

var loadingTemplate = template.Must(template.ParseFS(templateFS, "templates/loading.html"))

type loadingData struct {
	Poll bool
}

// renderLoading writes the neutral page shown instead of protected content.
// With poll set the page reloads itself until the check settles.
func renderLoading(w http.ResponseWriter, status int, poll bool) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := loadingTemplate.Execute(w, loadingData{Poll: poll}); err != nil {
		log.Err(err).Msg("failed to render loading page")
	}
}
