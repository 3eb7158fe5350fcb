package server

import (
	"errors"
	"mime"
	"net/http"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"filedrop/internal/storage"
)

// downloadHandler streams a stored file as an attachment. Any failure sends
// the user back to the listing with a message instead of an error page.
func (s *Server) downloadHandler(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "filename")

	if err := s.transfers.Acquire(r.Context(), 1); err != nil {
		return
	}
	defer s.transfers.Release(1)

	start := time.Now()
	obj, err := s.store.Open(r.Context(), name)
	if err != nil {
		s.metrics.RecordDownloadError()
		var f Flash
		switch {
		case errors.Is(err, storage.ErrNotFound):
			f = Flash{Text: "File \"" + displayName(name) + "\" not found", Severity: FlashError}
		case errors.Is(err, storage.ErrInvalidName):
			f = Flash{Text: msgInvalidName, Severity: FlashError}
		default:
			s.reqLogger(r).Error("open file", zap.String("name", name), zap.Error(err))
			f = Flash{Text: "Error downloading file", Severity: FlashError}
		}
		s.redirectHome(w, r, f)
		return
	}
	defer obj.Close()

	info := obj.Info()
	w.Header().Set("Content-Disposition", contentDisposition(info.Name))
	if mime.TypeByExtension(filepath.Ext(info.Name)) == "" {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	http.ServeContent(w, r, info.Name, info.ModTime, obj)

	s.metrics.RecordDownload(info.Size, time.Since(start))
}

// contentDisposition builds an attachment header; mime.FormatMediaType
// switches to the RFC 2231 form for non-ASCII names.
func contentDisposition(name string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "attachment"
}
