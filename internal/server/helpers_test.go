package server

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"filehost/internal/config"
	"filehost/internal/storage"
)

type testServer struct {
	*Server
	root string
	logs *bytes.Buffer
}

func newTestServer(t *testing.T, mutate func(*config.Config)) testServer {
	t.Helper()

	root := t.TempDir()
	cfg := config.Default()
	cfg.RootDir = root
	cfg.ExternalHost = "files.example.com"
	cfg.ExternalHasTLS = true
	cfg.MaxFilesizeMB = 1
	if mutate != nil {
		mutate(cfg)
	}

	store, err := storage.NewFilesystemBackend(cfg.RootDir)
	require.NoError(t, err)

	logs := &bytes.Buffer{}
	logger := logrus.New()
	logger.SetOutput(logs)
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.DebugLevel)

	srv, err := New(Config{
		Settings: cfg,
		Store:    store,
		Logger:   logger,
		Build:    BuildInfo{Version: "test", Commit: "abc123"},
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if srv.limiter != nil {
			srv.limiter.stop()
		}
	})

	return testServer{Server: srv, root: root, logs: logs}
}

func (ts testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.Handler().ServeHTTP(rec, req)
	return rec
}

func (ts testServer) storedFiles(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(ts.root)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

type formField struct {
	name     string
	fileName string
	isFile   bool
	data     []byte
}

func keyPart(v string) formField { return formField{name: "key", data: []byte(v)} }

func filePart(fileName string, data []byte) formField {
	return formField{name: "file", fileName: fileName, isFile: true, data: data}
}

func uploadRequest(t *testing.T, fields ...formField) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range fields {
		var (
			w   io.Writer
			err error
		)
		if f.isFile && f.fileName != "" {
			w, err = mw.CreateFormFile(f.name, f.fileName)
		} else {
			w, err = mw.CreateFormField(f.name)
		}
		require.NoError(t, err)
		_, err = w.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}
