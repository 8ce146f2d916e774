package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"filehost/internal/config"
	"filehost/internal/upload"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type indexView struct {
	Title         string
	UploadURL     string
	NeedsKey      bool
	KeyField      string
	FileField     string
	MaxFiles      int
	MaxFilesizeMB int
}

type resultLine struct {
	URL  string
	Size string
}

// renderIndex renders the landing page once; configuration never changes
// after startup.
func renderIndex(cfg *config.Config) ([]byte, error) {
	view := indexView{
		Title:         cfg.Title,
		UploadURL:     cfg.BaseURL() + "/",
		NeedsKey:      cfg.HasKey(),
		KeyField:      upload.KeyField,
		FileField:     upload.FileField,
		MaxFiles:      int(cfg.MaxFiles),
		MaxFilesizeMB: int(cfg.MaxFilesizeMB),
	}
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, "index.html", view); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func resultView(files []upload.StoredFile) []resultLine {
	lines := make([]resultLine, len(files))
	for i, f := range files {
		lines[i] = resultLine{URL: f.URL, Size: fmt.Sprintf("%.2fk", f.SizeKB())}
	}
	return lines
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	h := w.Header()
	h.Set("Content-Type", "text/html; charset=utf-8")
	h.Set("Content-Security-Policy", pageCSP)
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write(s.indexHTML)
	}
}
