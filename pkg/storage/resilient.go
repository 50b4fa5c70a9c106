package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/richxcame/driver-verification/pkg/resilience"
)

// ResilientStorage guards a Storage with a circuit breaker so that an
// unavailable bucket fails uploads fast instead of holding request slots.
type ResilientStorage struct {
	inner   Storage
	breaker *resilience.CircuitBreaker
}

// NewResilientStorage wraps inner. Missing objects do not count as breaker failures.
func NewResilientStorage(inner Storage, settings resilience.Settings) *ResilientStorage {
	settings.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, ErrObjectNotFound) || errors.Is(err, context.Canceled)
	}
	return &ResilientStorage{
		inner:   inner,
		breaker: resilience.NewCircuitBreaker(settings),
	}
}

func (r *ResilientStorage) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (*UploadResult, error) {
	result, err := r.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return r.inner.Upload(ctx, key, reader, size, contentType)
	})
	if err != nil {
		return nil, err
	}
	return result.(*UploadResult), nil
}

func (r *ResilientStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	result, err := r.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return r.inner.Download(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	return result.(io.ReadCloser), nil
}

func (r *ResilientStorage) GetURL(key string) string {
	return r.inner.GetURL(key)
}

func (r *ResilientStorage) GetPresignedDownloadURL(ctx context.Context, key string, expiry time.Duration) (*PresignedURLResult, error) {
	result, err := r.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return r.inner.GetPresignedDownloadURL(ctx, key, expiry)
	})
	if err != nil {
		return nil, err
	}
	return result.(*PresignedURLResult), nil
}

// Ping bypasses the breaker so readiness reflects the real bucket state.
func (r *ResilientStorage) Ping(ctx context.Context) error {
	return r.inner.Ping(ctx)
}
