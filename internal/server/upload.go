package server

import (
	"bytes"
	"net/http"

	"filehost/internal/upload"
)

// handleUpload streams a multipart body through the upload pipeline and
// replies with links to every stored file.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	log := loggerFrom(r.Context())

	if limit := s.settings.MaxBodySize(); limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}

	parts, err := r.MultipartReader()
	if err != nil {
		log.WithError(err).Debug("rejecting non-multipart upload")
		s.metrics.uploadFailures.WithLabelValues("malformed").Inc()
		http.Error(w, msgNotMultipart, http.StatusBadRequest)
		return
	}

	files, err := s.pipeline.Ingest(upload.WithLogger(r.Context(), log), parts)
	if err != nil {
		entry := log.WithError(err).WithField("reason", failureReason(err))
		if len(files) > 0 {
			// Files stored before the failure stay on disk and stay reachable.
			entry = entry.WithField("kept_files", storedNames(files))
			s.metrics.recordStored(files)
		}
		if statusFor(err) >= http.StatusInternalServerError {
			entry.Error("upload failed")
		} else {
			entry.Info("upload rejected")
		}
		s.metrics.recordUploadFailure(err)
		writeError(w, err)
		return
	}

	s.metrics.recordStored(files)
	for _, f := range files {
		log.WithField("file", f.Name).WithField("size", f.Size).Info("file stored")
	}

	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, "result.html", resultView(files)); err != nil {
		log.WithError(err).Error("render upload result")
		http.Error(w, msgInternal, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Security-Policy", pageCSP)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func storedNames(files []upload.StoredFile) []string {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	return names
}
