package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"songbook/config"

	"github.com/minio/minio-go/v7"
)

// ProgressFunc receives transfer progress. It is driven by the transport's
// reads, never polled.
type ProgressFunc func(transferred, total int64)

// ObjectStore is the blob half of the remote audio store: opaque binary
// objects keyed by path.
type ObjectStore interface {
	// Put streams size bytes from r to path. progress may be nil.
	Put(ctx context.Context, path string, r io.Reader, size int64, contentType string, progress ProgressFunc) error
	// Remove deletes the object at path.
	Remove(ctx context.Context, path string) error
	// PublicURL resolves path to a dereferenceable URL. This is a pure
	// string transform; no network call is made.
	PublicURL(path string) string
}

// progressReader wraps a reader and reports cumulative bytes read. The
// transport pulls from it, so progress events track actual transfer.
type progressReader struct {
	r           io.Reader
	total       int64
	transferred int64
	fn          ProgressFunc
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.transferred += int64(n)
		if p.fn != nil {
			p.fn(p.transferred, p.total)
		}
	}
	return n, err
}

// wrapProgress wraps r only when a callback is present.
func wrapProgress(r io.Reader, size int64, fn ProgressFunc) io.Reader {
	if fn == nil {
		return r
	}
	return &progressReader{r: r, total: size, fn: fn}
}

// minioStore implements ObjectStore on the MinIO client.
type minioStore struct {
	client     *minio.Client
	bucket     string
	publicBase string
}

// NewMinioStore creates an ObjectStore backed by the initialized MinIO client.
func NewMinioStore(cfg *config.Config) (ObjectStore, error) {
	client := GetMinioClient()
	if client == nil {
		return nil, fmt.Errorf("MinIO client not initialized")
	}
	return &minioStore{
		client:     client,
		bucket:     cfg.MinioBucket,
		publicBase: strings.TrimRight(cfg.MinioPublicBase, "/"),
	}, nil
}

func (s *minioStore) Put(ctx context.Context, path string, r io.Reader, size int64, contentType string, progress ProgressFunc) error {
	if contentType == "" {
		contentType = "audio/mpeg"
	}

	opts := minio.PutObjectOptions{
		ContentType:      contentType,
		DisableMultipart: true,
	}

	_, err := s.client.PutObject(ctx, s.bucket, path, wrapProgress(r, size, progress), size, opts)
	if err != nil {
		return fmt.Errorf("failed to upload object %s: %w", path, err)
	}
	return nil
}

func (s *minioStore) Remove(ctx context.Context, path string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, path, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove object %s: %w", path, err)
	}
	return nil
}

func (s *minioStore) PublicURL(path string) string {
	// Without a public base the blob is served through the server's own
	// /static/ passthrough route.
	if s.publicBase == "" {
		return "/static/" + path
	}
	return s.publicBase + "/" + s.bucket + "/" + path
}
