package s3

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockS3 keeps objects in a map keyed by bucket/key.
type mockS3 struct {
	objects map[string][]byte
	fail    bool
}

func newMockS3() *mockS3 {
	return &mockS3{objects: make(map[string][]byte)}
}

func (m *mockS3) key(bucket, key string) string {
	return bucket + "/" + key
}

func (m *mockS3) PutObject(ctx context.Context, params *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error) {
	if m.fail {
		return nil, fmt.Errorf("s3: access denied")
	}
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	m.objects[m.key(*params.Bucket, *params.Key)] = body
	return &awss3.PutObjectOutput{}, nil
}

func (m *mockS3) GetObject(ctx context.Context, params *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error) {
	if m.fail {
		return nil, fmt.Errorf("s3: access denied")
	}
	body, ok := m.objects[m.key(*params.Bucket, *params.Key)]
	if !ok {
		return nil, fmt.Errorf("s3: no such key")
	}
	return &awss3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(string(body)))}, nil
}

func (m *mockS3) HeadObject(ctx context.Context, params *awss3.HeadObjectInput, optFns ...func(*awss3.Options)) (*awss3.HeadObjectOutput, error) {
	if _, ok := m.objects[m.key(*params.Bucket, *params.Key)]; !ok {
		return nil, fmt.Errorf("s3: not found")
	}
	return &awss3.HeadObjectOutput{}, nil
}

func TestKeyStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := &KeyStore{client: newMockS3(), bucket: "veil-keys"}
	wrapped := []byte("wrapped-dek-blob")

	exists, err := store.Exists(ctx, "user-service")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.Store(ctx, "user-service", wrapped))

	exists, err = store.Exists(ctx, "user-service")
	require.NoError(t, err)
	assert.True(t, exists)

	fetched, err := store.Fetch(ctx, "user-service")
	require.NoError(t, err)
	assert.Equal(t, wrapped, fetched)
}

func TestKeyStoreAliasIsolation(t *testing.T) {
	ctx := context.Background()
	store := &KeyStore{client: newMockS3(), bucket: "veil-keys"}

	require.NoError(t, store.Store(ctx, "service-a", []byte("key-a")))
	require.NoError(t, store.Store(ctx, "service-b", []byte("key-b")))

	fetched, err := store.Fetch(ctx, "service-a")
	require.NoError(t, err)
	assert.Equal(t, []byte("key-a"), fetched)
}

func TestKeyStoreErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("fetch missing alias", func(t *testing.T) {
		store := &KeyStore{client: newMockS3(), bucket: "veil-keys"}
		_, err := store.Fetch(ctx, "nope")
		assert.ErrorIs(t, err, ErrKeyNotFound)
	})

	t.Run("store empty blob", func(t *testing.T) {
		store := &KeyStore{client: newMockS3(), bucket: "veil-keys"}
		assert.Error(t, store.Store(ctx, "x", nil))
	})

	t.Run("store unavailable", func(t *testing.T) {
		store := &KeyStore{client: &mockS3{fail: true}, bucket: "veil-keys"}
		err := store.Store(ctx, "x", []byte("blob"))
		assert.ErrorIs(t, err, ErrStoreUnavailable)
	})
}

func TestNewKeyStoreRequiresBucket(t *testing.T) {
	_, err := NewKeyStore(context.Background(), Config{})
	assert.Error(t, err)
}
