package storage

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBackend struct {
	signedTTL time.Duration
}

func (s *stubBackend) EnsureBucket(ctx context.Context) error { return nil }

func (s *stubBackend) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	return nil
}

func (s *stubBackend) Get(ctx context.Context, key string) (io.ReadCloser, error) { return nil, nil }

func (s *stubBackend) Delete(ctx context.Context, key string) (bool, error) { return false, nil }

func (s *stubBackend) Exists(ctx context.Context, key string) (bool, error) { return false, nil }

func (s *stubBackend) Size(ctx context.Context, key string) (int64, error) { return 0, nil }

func (s *stubBackend) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	s.signedTTL = ttl
	return "https://example.com/" + key, nil
}

func (s *stubBackend) Bucket() string { return "test-bucket" }

func TestSignedURLDefaultTTL(t *testing.T) {
	backend := &stubBackend{}
	storage := NewStorage(backend)

	_, err := storage.SignedURL(context.Background(), "a/b", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultSignedURLTTL, backend.signedTTL)

	_, err = storage.SignedURL(context.Background(), "a/b", 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, backend.signedTTL)
}
