package storage_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/narwhalmedia/deadarchive/internal/config"
	"github.com/narwhalmedia/deadarchive/internal/infrastructure/storage"
	apperrors "github.com/narwhalmedia/deadarchive/pkg/errors"
)

func TestLocalStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewLocalStorage(t.TempDir(), zaptest.NewLogger(t))
	require.NoError(t, err)

	require.NoError(t, store.Store(ctx, "exports/ratings.json", strings.NewReader(`{"ok":true}`)))

	exists, err := store.Exists(ctx, "exports/ratings.json")
	require.NoError(t, err)
	assert.True(t, exists)

	rc, err := store.Retrieve(ctx, "exports/ratings.json")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, `{"ok":true}`, string(data))

	require.NoError(t, store.Delete(ctx, "exports/ratings.json"))
	_, err = store.Retrieve(ctx, "exports/ratings.json")
	assert.True(t, apperrors.IsNotFound(err))
	assert.True(t, apperrors.IsNotFound(store.Delete(ctx, "exports/ratings.json")))
}

func TestLocalStorage_StoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir, zaptest.NewLogger(t))
	require.NoError(t, err)

	require.NoError(t, store.Store(context.Background(), "ratings.json", strings.NewReader("{}")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "ratings.json", entries[0].Name())
	assert.Equal(t, "file://"+filepath.Join(dir, "ratings.json"), store.URL("ratings.json"))
}

func TestForTarget(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t)
	dir := t.TempDir()

	store, key, err := storage.ForTarget(ctx, "ratings.json", config.StorageConfig{Backend: "local", LocalDir: dir}, logger)
	require.NoError(t, err)
	assert.Equal(t, "ratings.json", key)
	assert.IsType(t, &storage.LocalStorage{}, store)

	abs := filepath.Join(t.TempDir(), "out.json")
	store, key, err = storage.ForTarget(ctx, abs, config.StorageConfig{Backend: "local", LocalDir: dir}, logger)
	require.NoError(t, err)
	require.NoError(t, store.Store(ctx, key, strings.NewReader("{}")))
	assert.FileExists(t, abs)

	_, _, err = storage.ForTarget(ctx, "s3://bucket-only", config.StorageConfig{}, logger)
	assert.True(t, apperrors.IsBadRequest(err))

	_, _, err = storage.ForTarget(ctx, "", config.StorageConfig{}, logger)
	assert.True(t, apperrors.IsBadRequest(err))
}

type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.objects[key] = data
	f.types[key] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if _, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func TestS3Storage_PrefixesKeys(t *testing.T) {
	ctx := context.Background()
	client := newFakeS3()
	store := storage.NewS3StorageWithClient(client, "dead-exports", "ratings", "us-east-1", zaptest.NewLogger(t))

	require.NoError(t, store.Store(ctx, "2026/ratings.json", strings.NewReader("{}")))
	assert.Contains(t, client.objects, "dead-exports/ratings/2026/ratings.json")
	assert.Equal(t, "application/json", client.types["dead-exports/ratings/2026/ratings.json"])
	assert.Equal(t, "s3://dead-exports/ratings/2026/ratings.json", store.URL("2026/ratings.json"))

	exists, err := store.Exists(ctx, "2026/ratings.json")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, store.Delete(ctx, "2026/ratings.json"))
	exists, err = store.Exists(ctx, "2026/ratings.json")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = store.Retrieve(ctx, "2026/ratings.json")
	assert.True(t, apperrors.IsNotFound(err))
}
