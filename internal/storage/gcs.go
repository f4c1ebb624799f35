package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

const (
	maxUploadRetries = 4
	uploadTimeout    = 50 * time.Second
)

// uploadDisposition says what a failed write attempt means for the
// retry loop.
type uploadDisposition int

const (
	uploadRetry uploadDisposition = iota
	uploadSettled
	uploadFatal
)

// classifyUploadErr sorts write failures. A 412 means a precondition
// on the object held: the object already exists in the demanded state,
// which is not a failure in an idempotent workflow. Other 4xx
// responses describe requests no retry can repair; everything else is
// treated as transient.
func classifyUploadErr(err error) uploadDisposition {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return uploadRetry
	}
	switch {
	case gerr.Code == http.StatusPreconditionFailed:
		return uploadSettled
	case gerr.Code == http.StatusTooManyRequests:
		return uploadRetry
	case gerr.Code >= 400 && gerr.Code < 500:
		return uploadFatal
	default:
		return uploadRetry
	}
}

// GCSStore implements ObjectStore on Google Cloud Storage.
type GCSStore struct {
	client *gcs.Client
}

// NewGCSStore wraps an existing storage client.
func NewGCSStore(client *gcs.Client) *GCSStore {
	return &GCSStore{client: client}
}

func splitPath(path string) (bucket, object string, err error) {
	bucket, object, ok := strings.Cut(path, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", fmt.Errorf("malformed object path %q", path)
	}
	return bucket, object, nil
}

func (s *GCSStore) handle(path string) (*gcs.ObjectHandle, error) {
	bucket, object, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	return s.client.Bucket(bucket).Object(object), nil
}

// Upload writes an object, retrying transient failures with exponential
// backoff before giving up.
func (s *GCSStore) Upload(ctx context.Context, path string, data []byte) error {
	obj, err := s.handle(path)
	if err != nil {
		return err
	}

	backoff := 1 * time.Second
	var lastErr error
	for i := 0; i < maxUploadRetries; i++ {
		err := func() error {
			writeCtx, cancel := context.WithTimeout(ctx, uploadTimeout)
			defer cancel()

			w := obj.NewWriter(writeCtx)
			if _, err := w.Write(data); err != nil {
				_ = w.Close()
				return fmt.Errorf("write to gcs failed: %w", err)
			}
			if err := w.Close(); err != nil {
				return fmt.Errorf("failed to finalize gcs write: %w", err)
			}
			return nil
		}()
		if err == nil {
			return nil
		}

		switch classifyUploadErr(err) {
		case uploadSettled:
			slog.Info("Upload precondition already satisfied.", "object", path)
			return nil
		case uploadFatal:
			return fmt.Errorf("upload for %s rejected: %w", path, err)
		}

		lastErr = err
		slog.Warn("Upload failed, will retry.",
			"object", path,
			"attempt", i+1,
			"maxRetries", maxUploadRetries,
			"backoff", backoff.String(),
			"error", err,
		)

		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("upload for %s failed after all retries: %w", path, lastErr)
}

func (s *GCSStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	obj, err := s.handle(path)
	if err != nil {
		return nil, err
	}
	r, err := obj.NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, fmt.Errorf("%s: %w", path, ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open gcs object %s: %w", path, err)
	}
	return r, nil
}

func (s *GCSStore) ReadAll(ctx context.Context, path string) ([]byte, error) {
	r, err := s.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read gcs object %s: %w", path, err)
	}
	return data, nil
}

func (s *GCSStore) ReadRange(ctx context.Context, path string, offset, length int64) ([]byte, error) {
	obj, err := s.handle(path)
	if err != nil {
		return nil, err
	}
	r, err := obj.NewRangeReader(ctx, offset, length)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, fmt.Errorf("%s: %w", path, ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open range of gcs object %s: %w", path, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read range of gcs object %s: %w", path, err)
	}
	return data, nil
}

func (s *GCSStore) Size(ctx context.Context, path string) (int64, error) {
	obj, err := s.handle(path)
	if err != nil {
		return 0, err
	}
	attrs, err := obj.Attrs(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return 0, fmt.Errorf("%s: %w", path, ErrNotExist)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to stat gcs object %s: %w", path, err)
	}
	return attrs.Size, nil
}

func (s *GCSStore) Delete(ctx context.Context, path string) error {
	obj, err := s.handle(path)
	if err != nil {
		return err
	}
	if err := obj.Delete(ctx); err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete gcs object %s: %w", path, err)
	}
	return nil
}

func (s *GCSStore) DeletePrefix(ctx context.Context, prefix string) error {
	bucket, object, err := splitPath(prefix)
	if err != nil {
		return err
	}
	it := s.client.Bucket(bucket).Objects(ctx, &gcs.Query{Prefix: object})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to list gcs prefix %s: %w", prefix, err)
		}
		if err := s.client.Bucket(bucket).Object(attrs.Name).Delete(ctx); err != nil &&
			!errors.Is(err, gcs.ErrObjectNotExist) {
			return fmt.Errorf("failed to delete gcs object %s: %w", attrs.Name, err)
		}
	}
}
