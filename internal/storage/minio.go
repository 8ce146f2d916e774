package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"filehost/internal/config"
)

// defaultPartSize bounds the memory PutObject buffers per upload when the
// total length is unknown. S3 requires at least 5 MiB.
const defaultPartSize = 16 << 20

var errAborted = errors.New("upload aborted")

// MinioBackend stores files as objects in a single bucket.
type MinioBackend struct {
	client   *minio.Client
	bucket   string
	partSize uint64
}

func normaliseEndpoint(raw string) (endpoint string, secure bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("empty endpoint")
	}

	// Accept either "minio:9000" or "http://minio:9000" / "https://minio:9000".
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", false, err
		}
		if u.Host == "" {
			return "", false, fmt.Errorf("invalid endpoint")
		}
		if u.Path != "" && u.Path != "/" {
			return "", false, fmt.Errorf("endpoint must not contain a path")
		}
		return u.Host, u.Scheme == "https", nil
	}

	// No scheme: host:port, plain HTTP as for a local MinIO.
	return raw, false, nil
}

// NewMinioBackend connects to the configured endpoint and checks that the
// bucket exists.
func NewMinioBackend(ctx context.Context, cfg config.S3Config) (*MinioBackend, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("minio configuration incomplete")
	}

	endpoint, secure, err := normaliseEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, err
	}

	b := NewMinioBackendWithClient(client, cfg.Bucket)
	if err := b.Ping(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

func NewMinioBackendWithClient(client *minio.Client, bucket string) *MinioBackend {
	return &MinioBackend{client: client, bucket: bucket, partSize: defaultPartSize}
}

func (b *MinioBackend) Kind() string { return "s3" }

// Create streams the object to the bucket as it is written. The existence
// check is not atomic with the upload; the random name prefix keeps races
// out of practical reach.
func (b *MinioBackend) Create(ctx context.Context, name string) (Writer, error) {
	if !ValidName(name) {
		return nil, ErrInvalidName
	}

	_, err := b.client.StatObject(ctx, b.bucket, name, minio.StatObjectOptions{})
	if err == nil {
		return nil, ErrExists
	}
	if minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return nil, fmt.Errorf("stat %s: %w", name, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	pr, pw := io.Pipe()
	w := &objectWriter{
		backend: b,
		name:    name,
		pw:      pw,
		cancel:  cancel,
		done:    make(chan error, 1),
		cleanup: context.WithoutCancel(ctx),
	}

	go func() {
		_, err := b.client.PutObject(ctx, b.bucket, name, pr, -1, minio.PutObjectOptions{
			ContentType: ContentType(name),
			PartSize:    b.partSize,
		})
		// Unblock any pending Write if PutObject gave up early.
		_ = pr.CloseWithError(err)
		w.done <- err
	}()

	return w, nil
}

func (b *MinioBackend) Open(ctx context.Context, name string) (Object, error) {
	if !ValidName(name) {
		return nil, ErrNotFound
	}

	info, err := b.client.StatObject(ctx, b.bucket, name, minio.StatObjectOptions{})
	if err != nil {
		return nil, ErrNotFound
	}

	obj, err := b.client.GetObject(ctx, b.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, ErrNotFound
	}

	return &minioObject{Object: obj, size: info.Size, modTime: info.LastModified}, nil
}

func (b *MinioBackend) Remove(ctx context.Context, name string) error {
	if !ValidName(name) {
		return ErrNotFound
	}
	return b.client.RemoveObject(ctx, b.bucket, name, minio.RemoveObjectOptions{})
}

func (b *MinioBackend) Ping(ctx context.Context) error {
	exists, err := b.client.BucketExists(ctx, b.bucket)
	if err != nil {
		return fmt.Errorf("minio connection failed: %w", err)
	}
	if !exists {
		return fmt.Errorf("minio bucket does not exist: %s", b.bucket)
	}
	return nil
}

type objectWriter struct {
	backend *MinioBackend
	name    string
	pw      *io.PipeWriter
	cancel  context.CancelFunc
	done    chan error
	cleanup context.Context
}

func (w *objectWriter) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

func (w *objectWriter) Commit() error {
	_ = w.pw.Close()
	err := <-w.done
	w.cancel()
	if err != nil {
		return fmt.Errorf("put object %s: %w", w.name, err)
	}
	return nil
}

func (w *objectWriter) Abort() error {
	_ = w.pw.CloseWithError(errAborted)
	<-w.done
	w.cancel()

	ctx, cancel := context.WithTimeout(w.cleanup, 30*time.Second)
	defer cancel()
	return w.backend.client.RemoveObject(ctx, w.backend.bucket, w.name, minio.RemoveObjectOptions{})
}

type minioObject struct {
	*minio.Object
	size    int64
	modTime time.Time
}

func (o *minioObject) Size() int64        { return o.size }
func (o *minioObject) ModTime() time.Time { return o.modTime }
