package server

import (
	"embed"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strings"
	"sync"

	"github.com/jrsteele09/bastion-hub/internal/errors"
)

//go:embed static/*
var staticFiles embed.FS

// staticFS is the static/ directory with the prefix stripped, so assets are
// looked up as "css/hub.css".
var staticFS = sync.OnceValue(func() fs.FS {
	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic("static assets: " + err.Error())
	}
	return sub
})

// StreamFile writes the embedded asset name. A missing asset returns
// errors.ErrNotFound.
func StreamFile(w http.ResponseWriter, _ *http.Request, name string) error {
	data, err := fs.ReadFile(staticFS(), strings.TrimPrefix(name, "static/"))
	if err != nil {
		return errors.Wrapf(errors.ErrNotFound, "[StreamFile] %s", name)
	}

	ctype := mime.TypeByExtension(strings.ToLower(path.Ext(name)))
	if ctype == "" {
		ctype = http.DetectContentType(data)
	}
	if strings.HasPrefix(ctype, "text/") && !strings.Contains(ctype, "charset=") {
		ctype += "; charset=utf-8"
	}
	w.Header().Set("Content-Type", ctype)
	if _, err := w.Write(data); err != nil {
		return errors.Wrapf(err, "[StreamFile] write %s", name)
	}
	return nil
}
