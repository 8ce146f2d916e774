// Package storage holds uploaded files beneath a single flat namespace: a
// directory on local disk or a bucket on an S3-compatible server. There is
// no metadata store; listing the namespace is the index.
package storage

import (
	"context"
	"errors"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

var (
	// ErrNotFound covers every reason a name cannot be opened, so callers
	// cannot tell a missing file from an unreadable one.
	ErrNotFound = errors.New("storage: file not found")
	// ErrExists is returned by Create when the name is already taken.
	ErrExists = errors.New("storage: file already exists")
	// ErrInvalidName is returned by Create for names that are not a single
	// safe path segment.
	ErrInvalidName = errors.New("storage: invalid file name")
)

// DefaultContentType is served when the extension is not recognised.
const DefaultContentType = "application/octet-stream"

// Backend is where stored files live.
type Backend interface {
	// Create starts a new file. It never overwrites: a taken name yields
	// ErrExists.
	Create(ctx context.Context, name string) (Writer, error)
	// Open returns the file for reading, or ErrNotFound.
	Open(ctx context.Context, name string) (Object, error)
	Remove(ctx context.Context, name string) error
	// Ping checks that the storage root is reachable.
	Ping(ctx context.Context) error
	Kind() string
}

// Writer receives the bytes of one file. Exactly one of Commit or Abort must
// be called; Abort discards whatever was written.
type Writer interface {
	io.Writer
	Commit() error
	Abort() error
}

// Object is an open stored file. Size and ModTime are captured at open time.
type Object interface {
	io.ReadSeekCloser
	io.ReaderAt
	Size() int64
	ModTime() time.Time
}

// ValidName reports whether name can be used directly as one path segment:
// not empty, not "." or "..", and free of separators and control characters.
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, `/\`) {
		return false
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}

// ContentType guesses the media type of a stored file from its extension.
func ContentType(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return DefaultContentType
}
