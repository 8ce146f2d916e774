// Package upload turns a streamed multipart form into stored files.
//
// Fields are consumed strictly in arrival order. A "key" field authorises the
// fields after it; "file" fields are streamed to storage chunk by chunk with a
// per-file size ceiling; every other field is skipped.
//
// A failing request is not rolled back: files completed earlier in the same
// request stay in storage. Only the file being written when the failure
// happens is removed.
package upload

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"math"
	"mime"
	"mime/multipart"
	"net/http"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"filehost/internal/storage"
)

// Form field names.
const (
	KeyField  = "key"
	FileField = "file"
)

const (
	chunkSize       = 32 << 10
	maxNameAttempts = 3
)

// PartReader yields multipart fields one at a time until io.EOF.
// *multipart.Reader satisfies it.
type PartReader interface {
	NextPart() (*multipart.Part, error)
}

// StoredFile is one fully written upload.
type StoredFile struct {
	Name string
	Size int64
	URL  string
}

// SizeKB is the size in KiB, for display.
func (f StoredFile) SizeKB() float64 {
	return float64(f.Size) / 1024
}

// Options configures a Pipeline.
type Options struct {
	// Key is the shared secret. Empty means uploads are unauthenticated.
	Key string
	// MaxFileSize is the per-file ceiling in bytes; 0 disables it.
	MaxFileSize int64
	// FileURL builds the public link for a stored name.
	FileURL func(name string) string
	// Logger is used when the request context carries none; see WithLogger.
	Logger logrus.FieldLogger
}

// Pipeline is safe for concurrent use; it holds no per-request state.
type Pipeline struct {
	store   storage.Backend
	key     []byte
	maxFile int64
	fileURL func(string) string
	log     logrus.FieldLogger
	newName func(clientName string) string
}

// New returns a Pipeline writing to store.
func New(store storage.Backend, opts Options) *Pipeline {
	p := &Pipeline{
		store:   store,
		maxFile: opts.MaxFileSize,
		fileURL: opts.FileURL,
		log:     opts.Logger,
		newName: StoredName,
	}
	if opts.Key != "" {
		p.key = []byte(opts.Key)
	}
	if p.fileURL == nil {
		p.fileURL = func(name string) string { return "/" + name }
	}
	if p.log == nil {
		p.log = logrus.StandardLogger()
	}
	return p
}

// Ingest consumes parts until they are exhausted or a field fails. On
// success it returns one StoredFile per file field, in arrival order. On
// failure it returns the error together with the files that were already
// persisted before it.
func (p *Pipeline) Ingest(ctx context.Context, parts PartReader) ([]StoredFile, error) {
	var stored []StoredFile
	authorized := p.key == nil

	for {
		part, err := parts.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return stored, readError(err, "Malformed multipart body")
		}

		switch part.FormName() {
		case KeyField:
			if p.key == nil {
				break
			}
			if err := p.checkKey(part); err != nil {
				_ = part.Close()
				return stored, err
			}
			authorized = true

		case FileField:
			if !authorized {
				_ = part.Close()
				return stored, newError(ErrMissingKey, "Missing key", nil)
			}
			f, err := p.storeFile(ctx, part)
			if err != nil {
				_ = part.Close()
				return stored, err
			}
			stored = append(stored, f)
		}

		_ = part.Close()
	}

	if len(stored) == 0 {
		return nil, newError(ErrNoFiles, "No files uploaded", nil)
	}
	return stored, nil
}

// checkKey reads at most one byte more than the secret, so an oversized key
// field cannot make us buffer it.
func (p *Pipeline) checkKey(part *multipart.Part) error {
	got, err := io.ReadAll(io.LimitReader(part, int64(len(p.key))+1))
	if err != nil {
		return readError(err, "Error reading key")
	}
	if len(got) > len(p.key) {
		return newError(ErrWrongKey, "Wrong key", nil)
	}
	if !utf8.Valid(got) {
		return newError(ErrInvalidKeyFormat, "Invalid key format", nil)
	}
	if subtle.ConstantTimeCompare(got, p.key) != 1 {
		return newError(ErrWrongKey, "Wrong key", nil)
	}
	return nil
}

func (p *Pipeline) create(ctx context.Context, clientName string) (string, storage.Writer, error) {
	var lastErr error
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		name := p.newName(clientName)
		w, err := p.store.Create(ctx, name)
		if err == nil {
			return name, w, nil
		}
		lastErr = err
		if !errors.Is(err, storage.ErrExists) {
			break
		}
	}
	return "", nil, lastErr
}

func (p *Pipeline) storeFile(ctx context.Context, part *multipart.Part) (StoredFile, error) {
	name, w, err := p.create(ctx, clientFileName(part))
	if err != nil {
		return StoredFile{}, newError(ErrStorage, "Internal i/o error", err)
	}

	abort := func() {
		if err := w.Abort(); err != nil {
			p.logger(ctx).WithError(err).WithField("file", name).Warn("failed to remove partial upload")
		}
	}

	buf := make([]byte, chunkSize)
	var written int64
	for {
		n, rerr := part.Read(buf)
		if n > 0 {
			total, ok := addSize(written, n)
			if !ok || (p.maxFile > 0 && total > p.maxFile) {
				abort()
				return StoredFile{}, fileTooBig(name)
			}
			written = total
			if _, werr := w.Write(buf[:n]); werr != nil {
				abort()
				return StoredFile{}, newError(ErrStorage, "Internal i/o error", werr)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			abort()
			return StoredFile{}, readError(rerr, "Error reading file "+name)
		}
	}

	if err := w.Commit(); err != nil {
		return StoredFile{}, newError(ErrStorage, "Internal i/o error", err)
	}

	return StoredFile{Name: name, Size: written, URL: p.fileURL(name)}, nil
}

// clientFileName is the filename parameter exactly as the client sent it.
// Part.FileName keeps only the last path element; here directories are kept
// so they survive into the slug ("photos/2024/cat.jpg" -> "photos-2024-cat.jpg").
func clientFileName(part *multipart.Part) string {
	_, params, err := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
	if err != nil {
		return part.FileName()
	}
	return params["filename"]
}

type logKey struct{}

// WithLogger attaches a request-scoped logger that Ingest uses instead of
// Options.Logger.
func WithLogger(ctx context.Context, log logrus.FieldLogger) context.Context {
	return context.WithValue(ctx, logKey{}, log)
}

func (p *Pipeline) logger(ctx context.Context) logrus.FieldLogger {
	if log, ok := ctx.Value(logKey{}).(logrus.FieldLogger); ok && log != nil {
		return log
	}
	return p.log
}

// addSize adds n to total, reporting false instead of overflowing.
func addSize(total int64, n int) (int64, bool) {
	if n < 0 || total > math.MaxInt64-int64(n) {
		return total, false
	}
	return total + int64(n), true
}

// readError classifies a failure reading the request body. Hitting the
// cumulative body ceiling is reported separately from a broken body.
func readError(err error, message string) *Error {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return newError(ErrBodyTooLarge, "Request body too large", err)
	}
	return newError(ErrMalformed, message, err)
}
