package server

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"filedrop/internal/storage"
)

// maxFormBytes caps urlencoded bodies (login, delete).
const maxFormBytes = 64 << 10

// indexHandler lists stored files. A storage failure degrades to an empty
// listing with an error message instead of an error page.
func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	flashes, err := s.auth.popFlashes(w, r)
	if err != nil {
		s.reqLogger(r).Error("save session", zap.Error(err))
	}

	files, err := s.store.List(r.Context())
	if err != nil {
		s.reqLogger(r).Error("list files", zap.Error(err))
		flashes = append(flashes, Flash{Text: "Error listing files", Severity: FlashError})
		files = nil
	}

	views := make([]fileView, 0, len(files))
	for _, f := range files {
		escaped := url.PathEscape(f.Name)
		views = append(views, fileView{
			Name:        f.Name,
			Size:        f.Size,
			DownloadURL: "/download/" + escaped,
			DeleteURL:   "/delete/" + escaped,
		})
	}

	s.render(w, r, http.StatusOK, "index.html", pageData{
		Title:     "Files",
		Flashes:   flashes,
		Files:     views,
		CSRFToken: s.auth.csrfToken(r),
		MaxUpload: s.maxUpload,
	})
}

// deleteHandler handles POST /delete/{filename}.
func (s *Server) deleteHandler(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "filename")
	display := displayName(name)

	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil || !s.auth.validCSRF(r, r.PostFormValue("csrf_token")) {
		s.metrics.RecordDeleteError()
		s.redirectHome(w, r, Flash{Text: msgFormExpired, Severity: FlashError})
		return
	}

	err := s.store.Delete(r.Context(), name)
	switch {
	case err == nil:
		s.metrics.RecordDelete()
		s.reqLogger(r).Info("file deleted", zap.String("name", display))
		s.redirectHome(w, r, Flash{Text: fmt.Sprintf("File \"%s\" deleted successfully", display), Severity: FlashSuccess})
	case errors.Is(err, storage.ErrNotFound):
		s.metrics.RecordDeleteError()
		s.redirectHome(w, r, Flash{Text: fmt.Sprintf("File \"%s\" not found", display), Severity: FlashError})
	case errors.Is(err, storage.ErrInvalidName):
		s.metrics.RecordDeleteError()
		s.redirectHome(w, r, Flash{Text: msgInvalidName, Severity: FlashError})
	default:
		s.metrics.RecordDeleteError()
		s.reqLogger(r).Error("delete file", zap.String("name", display), zap.Error(err))
		s.redirectHome(w, r, Flash{Text: "Error deleting file", Severity: FlashError})
	}
}

const (
	msgFormExpired = "The form has expired. Please try again."
	msgInvalidName = "Invalid file name"
)

// redirectHome stores f for the next page and sends the client to the listing.
func (s *Server) redirectHome(w http.ResponseWriter, r *http.Request, f Flash) {
	if err := s.auth.addFlash(w, r, f); err != nil {
		s.reqLogger(r).Error("save session", zap.Error(err))
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// pathParam returns a decoded route parameter. chi matches on RawPath when
// the request had one, in which case the value is still escaped.
func pathParam(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if r.URL.RawPath != "" {
		if u, err := url.PathUnescape(v); err == nil {
			return u
		}
	}
	return v
}

// displayName is the sanitized form of name when it has one.
func displayName(name string) string {
	if clean, err := storage.Sanitize(name); err == nil {
		return clean
	}
	return name
}
