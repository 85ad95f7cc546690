package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/marmos91/dittofuse/internal/ratelimiter"
	"github.com/marmos91/dittofuse/pkg/store/content"
	storetest "github.com/marmos91/dittofuse/pkg/store/content/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 is an in-process stand-in for one bucket.
type fakeS3 struct {
	mu      sync.Mutex
	bucket  string
	objects map[string][]byte
	calls   map[string]int
}

func newFakeS3(bucket string) *fakeS3 {
	return &fakeS3{bucket: bucket, objects: make(map[string][]byte), calls: make(map[string]int)}
}

func (f *fakeS3) record(op string) {
	f.calls[op]++
}

func (f *fakeS3) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeS3) HeadBucket(_ context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("HeadBucket")
	if aws.ToString(in.Bucket) != f.bucket {
		return nil, &types.NotFound{}
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetObject")

	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}

	if in.Range != nil {
		var start, end int64
		if _, err := fmt.Sscanf(aws.ToString(in.Range), "bytes=%d-%d", &start, &end); err != nil {
			return nil, err
		}
		if start >= int64(len(data)) {
			return nil, errors.New("api error InvalidRange: The requested range is not satisfiable")
		}
		end = min(end+1, int64(len(data)))
		data = data[start:end]
	}

	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(bytes.Clone(data))),
		ContentLength: aws.Int64(int64(len(data))),
	}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("HeadObject")

	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data)))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("PutObject")
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteObject")
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListObjectsV2")

	prefix := aws.ToString(in.Prefix)
	keys := make([]string, 0, len(f.objects))
	for key := range f.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, key := range keys {
		out.Contents = append(out.Contents, types.Object{
			Key:  aws.String(key),
			Size: aws.Int64(int64(len(f.objects[key]))),
		})
	}
	return out, nil
}

// recordingMetrics counts flushes.
type recordingMetrics struct {
	mu      sync.Mutex
	flushes []string
	bytes   map[string]int64
}

func (m *recordingMetrics) ObserveOperation(string, time.Duration, error) {}

func (m *recordingMetrics) RecordBytes(operation string, n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bytes == nil {
		m.bytes = make(map[string]int64)
	}
	m.bytes[operation] += n
}

func (m *recordingMetrics) RecordFlushOperation(reason string, _ int64, _ time.Duration, _ error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushes = append(m.flushes, reason)
}

func newTestStore(t *testing.T, fake *fakeS3, metrics S3Metrics) *S3ContentStore {
	t.Helper()
	store, err := NewS3ContentStore(context.Background(), S3ContentStoreConfig{
		Client:    fake,
		Bucket:    fake.bucket,
		KeyPrefix: "vol/",
		Limiter:   ratelimiter.New(0, 0),
		Metrics:   metrics,
	})
	require.NoError(t, err)
	return store
}

func TestS3ContentStore(t *testing.T) {
	suite := &storetest.StoreTestSuite{
		NewStore: func(t *testing.T) content.Store {
			return newTestStore(t, newFakeS3("bucket"), nil)
		},
	}
	suite.Run(t)
}

func TestS3ContentStore_BucketMustExist(t *testing.T) {
	_, err := NewS3ContentStore(context.Background(), S3ContentStoreConfig{
		Client: newFakeS3("bucket"),
		Bucket: "other",
	})
	assert.Error(t, err)
}

func TestS3ContentStore_ConfigValidation(t *testing.T) {
	_, err := NewS3ContentStore(context.Background(), S3ContentStoreConfig{Bucket: "b"})
	assert.Error(t, err)

	_, err = NewS3ContentStore(context.Background(), S3ContentStoreConfig{Client: newFakeS3("b")})
	assert.Error(t, err)
}

func TestS3ContentStore_WritesAreBufferedUntilFlush(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3("bucket")
	metrics := &recordingMetrics{}
	store := newTestStore(t, fake, metrics)

	require.NoError(t, store.WriteAt(ctx, "obj", []byte("hello"), 0))
	require.NoError(t, store.WriteAt(ctx, "obj", []byte(" world"), 5))
	assert.Zero(t, fake.callCount("PutObject"))

	require.NoError(t, store.Flush(ctx, "obj"))
	assert.Equal(t, 1, fake.callCount("PutObject"))
	assert.Equal(t, []byte("hello world"), fake.objects["vol/obj"])
	assert.Equal(t, []string{"flush"}, metrics.flushes)
	assert.Equal(t, int64(11), metrics.bytes["write"])

	// A clean flush uploads nothing.
	require.NoError(t, store.Flush(ctx, "obj"))
	assert.Equal(t, 1, fake.callCount("PutObject"))
}

func TestS3ContentStore_RangeReads(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3("bucket")
	fake.objects["vol/existing"] = []byte("0123456789")
	store := newTestStore(t, fake, nil)

	buf := make([]byte, 3)
	n, err := store.ReadAt(ctx, "existing", buf, 4)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []byte("456"), buf)

	// Reads of unbuffered objects never pull the whole object.
	assert.Zero(t, len(store.buffers))
}

func TestS3ContentStore_ModifyExistingObject(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3("bucket")
	fake.objects["vol/existing"] = []byte("0123456789")
	store := newTestStore(t, fake, nil)

	require.NoError(t, store.WriteAt(ctx, "existing", []byte("AB"), 8))
	require.NoError(t, store.Close())

	assert.Equal(t, []byte("01234567AB"), fake.objects["vol/existing"])
}

func TestS3ContentStore_CloseSyncsDirtyBuffers(t *testing.T) {
	fake := newFakeS3("bucket")
	metrics := &recordingMetrics{}
	store := newTestStore(t, fake, metrics)

	require.NoError(t, store.WriteAt(context.Background(), "b", []byte("2"), 0))
	require.NoError(t, store.WriteAt(context.Background(), "a", []byte("1"), 0))
	require.NoError(t, store.Close())

	assert.Equal(t, []byte("1"), fake.objects["vol/a"])
	assert.Equal(t, []byte("2"), fake.objects["vol/b"])
	assert.Equal(t, []string{"sync", "sync"}, metrics.flushes)

	assert.ErrorIs(t, store.WriteAt(context.Background(), "a", []byte("x"), 0), content.ErrStoreClosed)
}

func TestS3ContentStore_CancelledLimiterWait(t *testing.T) {
	fake := newFakeS3("bucket")
	store := newTestStore(t, fake, nil)
	store.limiter = ratelimiter.New(1, 1)
	store.limiter.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := store.GetContentSize(ctx, "anything")
	assert.Error(t, err)
	assert.Zero(t, fake.callCount("HeadObject"))
}
