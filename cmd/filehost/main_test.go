package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filehost/internal/config"
	"filehost/internal/storage"
)

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "filehost dev (unknown)\n", out.String())
}

func TestRootCommand_MissingConfigFile(t *testing.T) {
	cmd := newRootCmd()
	var stderr bytes.Buffer
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"--config", "/nonexistent/filehost.yaml"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, stderr.String(), "failed to read config file")
}

func TestRootCommand_RejectsArgs(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"serve"})

	assert.Error(t, cmd.Execute())
}

func TestLoadConfig_LogLevelFlag(t *testing.T) {
	t.Setenv("ROOT_DIR", t.TempDir())

	cfg, err := loadConfig(options{logLevel: "debug"})
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)

	_, err = loadConfig(options{logLevel: "verbose"})
	assert.ErrorContains(t, err, "LOG_LEVEL")
}

func TestOpenStorage(t *testing.T) {
	cfg := config.Default()
	cfg.RootDir = t.TempDir()

	store, err := openStorage(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "filesystem", store.Kind())
	assert.IsType(t, &storage.FilesystemBackend{}, store)

	cfg.Storage.Backend = "tape"
	_, err = openStorage(context.Background(), cfg)
	assert.ErrorContains(t, err, `unknown storage backend "tape"`)
}

func TestRun_StopsOnCancel(t *testing.T) {
	cfg := config.Default()
	cfg.RootDir = t.TempDir()
	cfg.InternalPort = 0
	cfg.Log.Level = "error"
	cfg.ShutdownTimeout = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}
