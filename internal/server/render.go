package server

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"formatSize": FormatSize,
}).ParseFS(templateFS, "templates/*.html"))

type fileView struct {
	Name        string
	Size        int64
	DownloadURL string
	DeleteURL   string
}

type pageData struct {
	Title     string
	Flashes   []Flash
	Files     []fileView
	CSRFToken string
	MaxUpload int64
}

// render executes a page into a buffer first so template failures turn into
// a clean 500 instead of a half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.reqLogger(r).Error("render template", zap.String("template", name), zap.Error(err))
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
