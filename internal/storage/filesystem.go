package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// FilesystemBackend stores files directly under a root directory.
type FilesystemBackend struct {
	root string
}

// NewFilesystemBackend creates root if needed.
func NewFilesystemBackend(root string) (*FilesystemBackend, error) {
	if root == "" {
		return nil, fmt.Errorf("root directory is required for filesystem backend")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create root directory: %w", err)
	}
	return &FilesystemBackend{root: root}, nil
}

func (b *FilesystemBackend) Kind() string { return "filesystem" }

func (b *FilesystemBackend) Root() string { return b.root }

func (b *FilesystemBackend) path(name string) string {
	return filepath.Join(b.root, name)
}

func (b *FilesystemBackend) Create(_ context.Context, name string) (Writer, error) {
	if !ValidName(name) {
		return nil, ErrInvalidName
	}

	path := b.path(name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, ErrExists
		}
		return nil, fmt.Errorf("create %s: %w", name, err)
	}
	return &fileWriter{f: f, path: path}, nil
}

func (b *FilesystemBackend) Open(_ context.Context, name string) (Object, error) {
	if !ValidName(name) {
		return nil, ErrNotFound
	}

	path := b.path(name)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil, ErrNotFound
	}

	// The file can vanish between Stat and Open; that is still not-found.
	f, err := os.Open(path)
	if err != nil {
		return nil, ErrNotFound
	}

	return &fileObject{File: f, size: info.Size(), modTime: info.ModTime()}, nil
}

func (b *FilesystemBackend) Remove(_ context.Context, name string) error {
	if !ValidName(name) {
		return ErrNotFound
	}
	if err := os.Remove(b.path(name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (b *FilesystemBackend) Ping(_ context.Context) error {
	info, err := os.Stat(b.root)
	if err != nil {
		return fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("root %s is not a directory", b.root)
	}
	return nil
}

type fileWriter struct {
	f    *os.File
	path string
}

func (w *fileWriter) Write(p []byte) (int, error) {
	return w.f.Write(p)
}

func (w *fileWriter) Commit() error {
	if err := w.f.Close(); err != nil {
		_ = os.Remove(w.path)
		return err
	}
	return nil
}

func (w *fileWriter) Abort() error {
	_ = w.f.Close()
	return os.Remove(w.path)
}

type fileObject struct {
	*os.File
	size    int64
	modTime time.Time
}

func (o *fileObject) Size() int64        { return o.size }
func (o *fileObject) ModTime() time.Time { return o.modTime }
