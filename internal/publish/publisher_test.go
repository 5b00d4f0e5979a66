package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/resilience"
)

type fakeStore struct {
	mu       sync.Mutex
	buckets  map[string]bool
	objects  map[string][]byte
	types    map[string]string
	failures int
	denied   bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		buckets: make(map[string]bool),
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

func (f *fakeStore) BucketExists(_ context.Context, bucket string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buckets[bucket], nil
}

func (f *fakeStore) MakeBucket(_ context.Context, bucket string, _ minio.MakeBucketOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buckets[bucket] = true
	return nil
}

func (f *fakeStore) PutObject(_ context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.denied {
		return minio.UploadInfo{}, minio.ErrorResponse{Code: "AccessDenied", Message: "Access Denied."}
	}
	if f.failures > 0 {
		f.failures--
		return minio.UploadInfo{}, errors.New("connection reset")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.objects[key] = data
	f.types[key] = opts.ContentType
	return minio.UploadInfo{Bucket: bucket, Key: key, Size: size}, nil
}

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func loadCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Load(context.Background(), "../catalog/testdata/search", catalog.Options{})
	require.NoError(t, err)
	return cat
}

func TestPublishUploadsEveryFile(t *testing.T) {
	store := newFakeStore()
	p := New(store, "docs", "sites").WithRetry(fastRetry())
	ctx := context.Background()
	require.NoError(t, p.EnsureBucket(ctx))
	assert.True(t, store.buckets["docs"])

	m, err := p.Publish(ctx, "mimicpp", "v7", loadCatalog(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"all_4.js", "classes_0.js", "searchdata.js"}, m.Files)
	assert.Equal(t, 60, m.Stats.Entries)

	want, err := os.ReadFile("../catalog/testdata/search/all_4.js")
	require.NoError(t, err)
	got := store.objects["sites/mimicpp/v7/search/all_4.js"]
	assert.True(t, bytes.Equal(want, got), "published file differs from source")
	assert.Equal(t, "application/javascript", store.types["sites/mimicpp/v7/search/all_4.js"])

	var manifest Manifest
	require.NoError(t, json.Unmarshal(store.objects["sites/mimicpp/v7/manifest.json"], &manifest))
	assert.Equal(t, "mimicpp", manifest.Docset)
	assert.Len(t, manifest.Files, 3)
}

func TestPublishRetriesTransientFailures(t *testing.T) {
	store := newFakeStore()
	store.failures = 2
	p := New(store, "docs", "").WithRetry(fastRetry())

	_, err := p.Publish(context.Background(), "mimicpp", "v7", loadCatalog(t))
	require.NoError(t, err)
	assert.Contains(t, store.objects, "mimicpp/v7/search/classes_0.js")
}

func TestPublishGivesUp(t *testing.T) {
	store := newFakeStore()
	store.failures = 10
	p := New(store, "docs", "").WithRetry(fastRetry())

	_, err := p.Publish(context.Background(), "mimicpp", "v7", loadCatalog(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestPublishCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(newFakeStore(), "docs", "").Publish(ctx, "mimicpp", "v7", loadCatalog(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPublishDoesNotRetryAccessDenied(t *testing.T) {
	store := newFakeStore()
	store.denied = true
	p := New(store, "docs", "").WithRetry(resilience.RetryConfig{MaxAttempts: 3, InitialDelay: time.Hour})

	start := time.Now()
	_, err := p.Publish(context.Background(), "mimicpp", "v7", loadCatalog(t))
	require.Error(t, err)
	assert.Equal(t, "AccessDenied", minio.ToErrorResponse(err).Code)
	assert.Less(t, time.Since(start), time.Minute)
}
