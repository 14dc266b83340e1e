package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"songbook/config"
)

// httpStore implements ObjectStore against a path-addressed HTTP object API:
// raw bytes POSTed under /object/{bucket}/{path} with bearer-token and
// api-key headers and an upsert directive, public URLs resolved by a fixed
// transform under /object/public/.
type httpStore struct {
	baseURL string
	bucket  string
	token   string
	apiKey  string
	client  *http.Client
}

// NewHTTPStore creates an ObjectStore speaking the hosted object-storage
// protocol. Timeouts are left to the transport's defaults.
func NewHTTPStore(cfg *config.Config) (ObjectStore, error) {
	if cfg.HTTPStoreBaseURL == "" {
		return nil, fmt.Errorf("HTTP store base URL not configured")
	}
	return &httpStore{
		baseURL: strings.TrimRight(cfg.HTTPStoreBaseURL, "/"),
		bucket:  cfg.HTTPStoreBucket,
		token:   cfg.HTTPStoreToken,
		apiKey:  cfg.HTTPStoreAPIKey,
		client:  http.DefaultClient,
	}, nil
}

func (s *httpStore) objectURL(path string) string {
	return s.baseURL + "/object/" + s.bucket + "/" + path
}

func (s *httpStore) setAuth(req *http.Request) {
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	if s.apiKey != "" {
		req.Header.Set("apikey", s.apiKey)
	}
}

func (s *httpStore) Put(ctx context.Context, path string, r io.Reader, size int64, contentType string, progress ProgressFunc) error {
	if contentType == "" {
		contentType = "audio/mpeg"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.objectURL(path), wrapProgress(r, size, progress))
	if err != nil {
		return fmt.Errorf("failed to build upload request: %w", err)
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")
	s.setAuth(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to upload object %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("upload of %s rejected: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

func (s *httpStore) Remove(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.objectURL(path), nil)
	if err != nil {
		return fmt.Errorf("failed to build delete request: %w", err)
	}
	s.setAuth(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to remove object %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("delete of %s rejected: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

func (s *httpStore) PublicURL(path string) string {
	return s.baseURL + "/object/public/" + s.bucket + "/" + path
}

// NewObjectStore picks the configured backend.
func NewObjectStore(cfg *config.Config) (ObjectStore, error) {
	switch cfg.AudioStoreBackend {
	case "", "minio":
		return NewMinioStore(cfg)
	case "http":
		return NewHTTPStore(cfg)
	default:
		return nil, fmt.Errorf("unknown audio store backend: %s", cfg.AudioStoreBackend)
	}
}
