package s3

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/dittofuse/internal/logger"
	"github.com/marmos91/dittofuse/pkg/store/content"
)

// WriteAt writes data at the specified offset into the object's local
// buffer. Nothing reaches S3 until Flush.
func (s *S3ContentStore) WriteAt(ctx context.Context, id content.ContentID, data []byte, offset uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return content.ErrStoreClosed
	}

	b, err := s.loadBuffer(ctx, id)
	if err != nil {
		return err
	}
	if b.data, err = content.WriteAtBuffer(b.data, data, offset); err != nil {
		return err
	}
	b.dirty = true
	return nil
}

// Truncate resizes the object's local buffer.
func (s *S3ContentStore) Truncate(ctx context.Context, id content.ContentID, size uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return content.ErrStoreClosed
	}

	b, err := s.loadBuffer(ctx, id)
	if err != nil {
		return err
	}
	if uint64(len(b.data)) != size {
		if b.data, err = content.ResizeBuffer(b.data, size); err != nil {
			return err
		}
		b.dirty = true
	}
	return nil
}

// Delete drops any local buffer and removes the object. Deleting a missing
// object succeeds (S3 DeleteObject is idempotent).
func (s *S3ContentStore) Delete(ctx context.Context, id content.ContentID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.buffers, id)

	err := s.call(ctx, "DeleteObject", func() error {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.getObjectKey(id)),
		})
		return err
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete object from S3: %w", err)
	}
	return nil
}

// Flush uploads the object's buffer if it is dirty, then releases it.
func (s *S3ContentStore) Flush(ctx context.Context, id content.ContentID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.flushLocked(ctx, id, "flush")
}

// Sync uploads every dirty buffer. S3 acknowledges a PutObject only once
// the object is durable, so there is nothing else to wait for.
func (s *S3ContentStore) Sync(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]content.ContentID, 0, len(s.buffers))
	for id := range s.buffers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if err := s.flushLocked(ctx, id, "sync"); err != nil {
			return err
		}
	}
	return nil
}

func (s *S3ContentStore) flushLocked(ctx context.Context, id content.ContentID, reason string) error {
	b, ok := s.buffers[id]
	if !ok {
		return nil
	}
	if !b.dirty {
		delete(s.buffers, id)
		return nil
	}

	start := time.Now()
	size := int64(len(b.data))
	err := s.call(ctx, "PutObject", func() error {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(s.bucket),
			Key:           aws.String(s.getObjectKey(id)),
			Body:          bytes.NewReader(b.data),
			ContentLength: aws.Int64(size),
		})
		return err
	})
	s.metrics.RecordFlushOperation(reason, size, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to upload %s to S3: %w", id, err)
	}

	s.metrics.RecordBytes("write", size)
	logger.Debug("S3 flush: uploaded %s (%d bytes, reason=%s)", id, size, reason)

	delete(s.buffers, id)
	return nil
}
