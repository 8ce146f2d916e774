package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configEnv = []string{
	"ROOT_DIR", "KEY", "TITLE", "INTERNAL_HOST", "INTERNAL_PORT", "EXTERNAL_HOST",
	"EXTERNAL_HAS_TLS", "MAX_FILES", "MAX_FILESIZE_MB", "UPLOAD_RATE_LIMIT",
	"SHUTDOWN_TIMEOUT", "LOG_LEVEL", "LOG_FORMAT", "SENTRY_DSN", "SENTRY_ENVIRONMENT",
	"STORAGE_BACKEND", "S3_ENDPOINT", "S3_ACCESS_KEY", "S3_SECRET_KEY", "S3_BUCKET",
}

// unsetEnv clears the variables Load reads and restores them afterwards.
func unsetEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnv {
		if old, ok := os.LookupEnv(key); ok {
			require.NoError(t, os.Unsetenv(key))
			t.Cleanup(func() { _ = os.Setenv(key, old) })
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	unsetEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/var/files", cfg.RootDir)
	assert.Equal(t, "Simpler Filehost", cfg.Title)
	assert.Equal(t, "127.0.0.1:8000", cfg.ListenAddr())
	assert.Equal(t, "127.0.0.1", cfg.ExternalHost, "external host falls back to internal host")
	assert.False(t, cfg.HasKey())
	assert.Equal(t, int64(100<<20), cfg.MaxFileSize())
	assert.Equal(t, int64(10*(100<<20)*2), cfg.MaxBodySize())
	assert.Equal(t, "http://127.0.0.1", cfg.BaseURL())
	assert.Equal(t, BackendFilesystem, cfg.Storage.Backend)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	unsetEnv(t)
	t.Setenv("ROOT_DIR", "/srv/files")
	t.Setenv("KEY", "hunter2")
	t.Setenv("EXTERNAL_HOST", "files.example.com")
	t.Setenv("EXTERNAL_HAS_TLS", "true")
	t.Setenv("MAX_FILESIZE_MB", "5")
	t.Setenv("MAX_FILES", "3")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SHUTDOWN_TIMEOUT", "3s")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/srv/files", cfg.RootDir)
	assert.True(t, cfg.HasKey())
	assert.Equal(t, "hunter2", cfg.Key)
	assert.Equal(t, "https://files.example.com", cfg.BaseURL())
	assert.Equal(t, int64(5<<20), cfg.MaxFileSize())
	assert.Equal(t, int64(3*(5<<20)*2), cfg.MaxBodySize())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_ConfigFileThenEnv(t *testing.T) {
	unsetEnv(t)

	path := filepath.Join(t.TempDir(), "filehost.yaml")
	yaml := "root_dir: /from/file\ntitle: From File\nmax_filesize_mb: 7\nlog:\n  format: json\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv("TITLE", "From Env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/from/file", cfg.RootDir)
	assert.Equal(t, "From Env", cfg.Title, "environment overrides the file")
	assert.Equal(t, int64(7<<20), cfg.MaxFileSize())
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, Int(8000), cfg.InternalPort, "defaults survive a partial file")
}

func TestLoad_MissingConfigFile(t *testing.T) {
	unsetEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_S3RequiresCredentials(t *testing.T) {
	unsetEnv(t)
	t.Setenv("STORAGE_BACKEND", "s3")
	t.Setenv("S3_ENDPOINT", "minio:9000")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "S3_BUCKET")
	assert.Contains(t, err.Error(), "S3_ACCESS_KEY")
}

func TestValidate_ReportsEveryError(t *testing.T) {
	cfg := Default()
	cfg.InternalPort = 0
	cfg.MaxFiles = 0
	cfg.Log.Format = "xml"
	cfg.ExternalHost = "https://files.example.com"

	err := Validate(cfg)
	require.Error(t, err)
	for _, field := range []string{"INTERNAL_PORT", "MAX_FILES", "LOG_FORMAT", "EXTERNAL_HOST"} {
		assert.Contains(t, err.Error(), field)
	}
}

func TestMaxBodySize_Saturates(t *testing.T) {
	cfg := Default()
	cfg.MaxFilesizeMB = math.MaxInt32
	cfg.MaxFiles = math.MaxInt32

	assert.Equal(t, int64(math.MaxInt64), cfg.MaxBodySize())
}

func TestFileURL(t *testing.T) {
	cfg := Default()
	cfg.ExternalHost = "example.com:8080"

	assert.Equal(t, "http://example.com:8080/abc123-report.pdf", cfg.FileURL("abc123-report.pdf"))
}

func TestLoad_ExternalHasTLSPresence(t *testing.T) {
	tests := []struct {
		value string
		want  string
	}{
		{"", "https"},
		{"yes", "https"},
		{"1", "https"},
		{"true", "https"},
		{"false", "http"},
		{"0", "http"},
	}
	for _, tt := range tests {
		t.Run("value="+tt.value, func(t *testing.T) {
			unsetEnv(t)
			t.Setenv("EXTERNAL_HAS_TLS", tt.value)

			cfg, err := Load("")
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.ExternalProtocol())
		})
	}
}

func TestLoad_EmptyNumbersKeepDefaults(t *testing.T) {
	unsetEnv(t)
	t.Setenv("INTERNAL_PORT", "")
	t.Setenv("MAX_FILES", " ")
	t.Setenv("MAX_FILESIZE_MB", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8000", cfg.ListenAddr())
	assert.Equal(t, Int(10), cfg.MaxFiles)
	assert.Equal(t, int64(100<<20), cfg.MaxFileSize())
}

func TestLoad_BadNumberRejected(t *testing.T) {
	unsetEnv(t)
	t.Setenv("INTERNAL_PORT", "eighty")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INTERNAL_PORT")
}
