package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/richxcame/driver-verification/pkg/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStorage struct {
	mock.Mock
}

func (m *mockStorage) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (*UploadResult, error) {
	args := m.Called(ctx, key, reader, size, contentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*UploadResult), args.Error(1)
}

func (m *mockStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *mockStorage) GetURL(key string) string {
	return m.Called(key).String(0)
}

func (m *mockStorage) GetPresignedDownloadURL(ctx context.Context, key string, expiry time.Duration) (*PresignedURLResult, error) {
	args := m.Called(ctx, key, expiry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*PresignedURLResult), args.Error(1)
}

func (m *mockStorage) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func TestResilientStorage_OpensAfterFailures(t *testing.T) {
	inner := new(mockStorage)
	store := NewResilientStorage(inner, resilience.Settings{
		Name:             "storage-test-open",
		FailureThreshold: 2,
		Timeout:          time.Minute,
	})

	inner.On("Upload", mock.Anything, "k", mock.Anything, int64(1), "image/png").
		Return(nil, errors.New("503 slow down")).Twice()

	for i := 0; i < 2; i++ {
		_, err := store.Upload(context.Background(), "k", strings.NewReader("x"), 1, "image/png")
		require.Error(t, err)
	}

	_, err := store.Upload(context.Background(), "k", strings.NewReader("x"), 1, "image/png")
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	inner.AssertNumberOfCalls(t, "Upload", 2)
}

func TestResilientStorage_NotFoundDoesNotTrip(t *testing.T) {
	inner := new(mockStorage)
	store := NewResilientStorage(inner, resilience.Settings{
		Name:             "storage-test-notfound",
		FailureThreshold: 1,
		Timeout:          time.Minute,
	})

	inner.On("Download", mock.Anything, "gone").Return(nil, ErrObjectNotFound)
	inner.On("Download", mock.Anything, "here").Return(io.NopCloser(strings.NewReader("ok")), nil)

	_, err := store.Download(context.Background(), "gone")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	body, err := store.Download(context.Background(), "here")
	require.NoError(t, err)
	body.Close()
}

func TestResilientStorage_PassThrough(t *testing.T) {
	inner := new(mockStorage)
	store := NewResilientStorage(inner, resilience.Settings{Name: "storage-test-pass"})

	inner.On("GetURL", "k").Return("https://cdn/k")
	inner.On("Ping", mock.Anything).Return(nil)
	inner.On("GetPresignedDownloadURL", mock.Anything, "k", time.Minute).
		Return(&PresignedURLResult{URL: "https://signed/k"}, nil)

	assert.Equal(t, "https://cdn/k", store.GetURL("k"))
	assert.NoError(t, store.Ping(context.Background()))

	res, err := store.GetPresignedDownloadURL(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "https://signed/k", res.URL)
}
