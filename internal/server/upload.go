package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"filedrop/internal/storage"
)

const msgNoFile = "No file selected"

// uploadHandler streams the multipart "file" field straight into storage.
//
// The body is never buffered whole: parts are read in order, so the
// csrf_token field has to come before the file, which is how the upload form
// lays them out.
func (s *Server) uploadHandler(w http.ResponseWriter, r *http.Request) {
	log := s.reqLogger(r)

	if err := s.transfers.Acquire(r.Context(), 1); err != nil {
		// Client gave up while queued.
		return
	}
	defer s.transfers.Release(1)

	if r.ContentLength > s.maxUpload {
		s.metrics.RecordUploadError()
		log.Warn("upload rejected", zap.Int64("content_length", r.ContentLength), zap.Int64("max", s.maxUpload))
		s.redirectHome(w, r, s.tooLarge())
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)

	mr, err := r.MultipartReader()
	if err != nil {
		s.metrics.RecordUploadError()
		s.redirectHome(w, r, Flash{Text: msgNoFile, Severity: FlashError})
		return
	}

	csrfOK := false
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			s.metrics.RecordUploadError()
			s.redirectHome(w, r, s.uploadFailure(r, "", err))
			return
		}

		switch part.FormName() {
		case "csrf_token":
			tok, _ := io.ReadAll(io.LimitReader(part, 256))
			csrfOK = s.auth.validCSRF(r, string(tok))
		case "file":
			if !csrfOK {
				s.metrics.RecordUploadError()
				_ = part.Close()
				s.redirectHome(w, r, Flash{Text: msgFormExpired, Severity: FlashError})
				return
			}
			s.saveUpload(w, r, part.FileName(), part)
			_ = part.Close()
			return
		}
		_ = part.Close()
	}

	s.metrics.RecordUploadError()
	s.redirectHome(w, r, Flash{Text: msgNoFile, Severity: FlashError})
}

func (s *Server) saveUpload(w http.ResponseWriter, r *http.Request, filename string, body io.Reader) {
	if filename == "" {
		s.metrics.RecordUploadError()
		s.redirectHome(w, r, Flash{Text: msgNoFile, Severity: FlashError})
		return
	}

	start := time.Now()
	f, err := s.store.Save(r.Context(), filename, body)
	if err != nil {
		s.metrics.RecordUploadError()
		s.redirectHome(w, r, s.uploadFailure(r, filename, err))
		return
	}

	s.metrics.RecordUpload(f.Size, time.Since(start))
	s.reqLogger(r).Info("file uploaded", zap.String("name", f.Name), zap.Int64("bytes", f.Size))
	s.redirectHome(w, r, Flash{Text: fmt.Sprintf("File \"%s\" uploaded successfully", f.Name), Severity: FlashSuccess})
}

// uploadFailure maps an upload error to the message shown to the user.
// Storage failures are logged; client side failures are not the server's fault.
func (s *Server) uploadFailure(r *http.Request, filename string, err error) Flash {
	var tooBig *http.MaxBytesError
	var ioErr *storage.IOError
	switch {
	case errors.As(err, &tooBig):
		return s.tooLarge()
	case errors.Is(err, storage.ErrInvalidName):
		return Flash{Text: msgInvalidName, Severity: FlashError}
	case errors.As(err, &ioErr):
		s.reqLogger(r).Error("save upload", zap.String("name", filename), zap.Error(err))
		return Flash{Text: "Error uploading file", Severity: FlashError}
	default:
		s.reqLogger(r).Warn("upload interrupted", zap.String("name", filename), zap.Error(err))
		return Flash{Text: "Upload failed: the request was interrupted or malformed", Severity: FlashError}
	}
}

func (s *Server) tooLarge() Flash {
	return Flash{Text: "File too large (maximum " + FormatSize(s.maxUpload) + ")", Severity: FlashError}
}
