package server

import (
	"io"
	"mime"
	"net/http"

	"github.com/gorilla/mux"
)

// handleDownload serves a stored file by name. Any failure to open the name
// is reported as not found; Range and conditional requests are honoured.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["filename"]
	log := loggerFrom(r.Context()).WithField("file", name)

	obj, err := s.store.Open(r.Context(), name)
	if err != nil {
		log.WithError(err).Debug("open failed")
		s.metrics.downloadMisses.Inc()
		notFound(w, r)
		return
	}
	defer obj.Close()

	ctype := s.contentType(name)
	if _, _, err := mime.ParseMediaType(ctype); err != nil {
		log.WithError(err).WithField("content_type", ctype).Error("bad content type")
		http.Error(w, msgInternal, http.StatusInternalServerError)
		return
	}

	s.metrics.downloads.Inc()
	h := w.Header()
	h.Set("Content-Type", ctype)
	h.Set("Accept-Ranges", "bytes")
	h.Set("Content-Security-Policy", downloadCSP)

	// Bound the body to the size seen at open time.
	content := io.NewSectionReader(obj, 0, obj.Size())
	cw := &loggingResponseWriter{ResponseWriter: w}
	http.ServeContent(cw, r, name, obj.ModTime(), content)
	s.metrics.downloadBytes.Add(float64(cw.size))
}
