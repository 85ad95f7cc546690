// Package s3 implements S3-based content storage.
package s3

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/marmos91/dittofuse/internal/ratelimiter"
	"github.com/marmos91/dittofuse/pkg/store/content"
)

// Client is the subset of the S3 API used by the store. *s3.Client
// satisfies it.
type Client interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3ContentStore implements content.Store using Amazon S3 or S3-compatible
// storage.
//
// Write-Back Buffering:
// S3 objects cannot be modified in place. The first WriteAt or Truncate on an
// object loads it into a local buffer; subsequent writes mutate the buffer.
// Flush uploads a dirty buffer with a single PutObject and drops it.
// Reads of a buffered object are served locally; reads of anything else
// use byte-range GETs.
//
// Every S3 call waits on the configured rate limiter first.
//
// Thread Safety:
// A single mutex guards the buffer map and is held across the S3 calls of
// one operation.
type S3ContentStore struct {
	client    Client
	bucket    string
	keyPrefix string
	limiter   *ratelimiter.RateLimiter
	metrics   S3Metrics

	mu      sync.Mutex
	buffers map[content.ContentID]*objectBuffer
	closed  bool
}

// objectBuffer is the local copy of one object being modified.
type objectBuffer struct {
	data  []byte
	dirty bool
}

// S3ContentStoreConfig contains configuration for S3 content store.
type S3ContentStoreConfig struct {
	// Client is the configured S3 client
	Client Client

	// Bucket is the S3 bucket name
	Bucket string

	// KeyPrefix is an optional prefix for all object keys
	// Example: "dittofuse/" results in keys like "dittofuse/<content id>"
	KeyPrefix string

	// Limiter throttles S3 calls. nil means unlimited.
	Limiter *ratelimiter.RateLimiter

	// Metrics receives per-operation observations. nil means no-op.
	Metrics S3Metrics
}

// NewS3ContentStore creates a new S3-based content store.
//
// The bucket must already exist: this function verifies access with
// HeadBucket and does not create it.
func NewS3ContentStore(ctx context.Context, cfg S3ContentStoreConfig) (*S3ContentStore, error) {
	// ========================================================================
	// Step 1: Check context before S3 operations
	// ========================================================================

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// ========================================================================
	// Step 2: Validate configuration
	// ========================================================================

	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}

	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}

	store := &S3ContentStore{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
		limiter:   cfg.Limiter,
		metrics:   metrics,
		buffers:   make(map[content.ContentID]*objectBuffer),
	}

	// ========================================================================
	// Step 3: Verify bucket access
	// ========================================================================

	err := store.call(ctx, "HeadBucket", func() error {
		_, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{
			Bucket: aws.String(cfg.Bucket),
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	return store, nil
}

// getObjectKey returns the full S3 object key for a given content ID.
func (s *S3ContentStore) getObjectKey(id content.ContentID) string {
	return s.keyPrefix + string(id)
}

// call waits on the limiter, runs fn and records the outcome.
func (s *S3ContentStore) call(ctx context.Context, operation string, fn func() error) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	start := time.Now()
	err := fn()
	s.metrics.ObserveOperation(operation, time.Since(start), err)
	return err
}

// isNotFound reports whether err is a missing-object response. GetObject
// reports NoSuchKey while HeadObject reports a bare NotFound.
func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}

// GetStorageStats lists every object under the key prefix.
//
// Objects buffered locally but never flushed are not counted.
func (s *S3ContentStore) GetStorageStats(ctx context.Context) (*content.StorageStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var totalSize uint64
	var objectCount uint64

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.keyPrefix),
	})

	for paginator.HasMorePages() {
		var page *s3.ListObjectsV2Output
		err := s.call(ctx, "ListObjectsV2", func() error {
			var err error
			page, err = paginator.NextPage(ctx)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}

		for _, obj := range page.Contents {
			if obj.Size != nil {
				totalSize += uint64(*obj.Size)
			}
			objectCount++
		}
	}

	averageSize := uint64(0)
	if objectCount > 0 {
		averageSize = totalSize / objectCount
	}

	// S3 capacity is unbounded; report zero as "unknown".
	return &content.StorageStats{
		UsedSize:     totalSize,
		ContentCount: objectCount,
		AverageSize:  averageSize,
	}, nil
}

// Close uploads every dirty buffer.
func (s *S3ContentStore) Close() error {
	if err := s.Sync(context.Background()); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
