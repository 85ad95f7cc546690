package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/marmos91/dittofuse/pkg/store/metadata"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetadataMetrics provides observability for metadata store operations.
//
// This interface is optional - if not provided, the store is used
// directly without metrics collection (zero overhead).
//
// Example usage:
//
//	m := metrics.NewMetadataMetrics("badger")
//	store = metrics.InstrumentMetadataStore(store, m)
type MetadataMetrics interface {
	// RecordOperation records a completed metadata operation with its name,
	// duration, and outcome.
	//
	// Parameters:
	//   - operation: Store method (e.g., "GetInode", "SetChild", "Sync")
	//   - duration: Time taken to complete the operation
	//   - err: Error if operation failed, nil if successful
	RecordOperation(operation string, duration time.Duration, err error)
}

// metadataMetrics is the Prometheus implementation of MetadataMetrics.
type metadataMetrics struct {
	storeType         string
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
}

// NewMetadataMetrics creates a new Prometheus-backed MetadataMetrics instance.
//
// storeType ("memory", "badger") labels every sample.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewMetadataMetrics(storeType string) MetadataMetrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &metadataMetrics{
		storeType: storeType,
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittofuse_metadata_operations_total",
				Help: "Total number of metadata store operations by store type, operation, and status",
			},
			[]string{"store_type", "operation", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "dittofuse_metadata_operation_duration_seconds",
				Help: "Duration of metadata store operations in seconds",
				Buckets: []float64{
					0.00001, // 10µs
					0.0001,  // 100µs
					0.0005,  // 500µs
					0.001,   // 1ms
					0.005,   // 5ms
					0.01,    // 10ms
					0.05,    // 50ms
					0.1,     // 100ms
					0.5,     // 500ms
				},
			},
			[]string{"store_type", "operation"},
		),
	}
}

func (m *metadataMetrics) RecordOperation(operation string, duration time.Duration, err error) {
	status := "success"
	switch {
	case errors.Is(err, metadata.ErrNotFound):
		// Misses are the normal outcome of a negative lookup.
		status = "not_found"
	case err != nil:
		status = "error"
	}

	m.operationsTotal.WithLabelValues(m.storeType, operation, status).Inc()
	m.operationDuration.WithLabelValues(m.storeType, operation).Observe(duration.Seconds())
}

// InstrumentMetadataStore wraps store so that every call is recorded in m.
// A nil m returns store unchanged.
func InstrumentMetadataStore(store metadata.Store, m MetadataMetrics) metadata.Store {
	if m == nil {
		return store
	}
	return &instrumentedStore{next: store, m: m}
}

type instrumentedStore struct {
	next metadata.Store
	m    MetadataMetrics
}

func (s *instrumentedStore) observe(op string, start time.Time, err error) {
	s.m.RecordOperation(op, time.Since(start), err)
}

func (s *instrumentedStore) GetSuperBlock(ctx context.Context) (*metadata.SuperBlock, error) {
	start := time.Now()
	sb, err := s.next.GetSuperBlock(ctx)
	s.observe("GetSuperBlock", start, err)
	return sb, err
}

func (s *instrumentedStore) PutSuperBlock(ctx context.Context, sb *metadata.SuperBlock) error {
	start := time.Now()
	err := s.next.PutSuperBlock(ctx, sb)
	s.observe("PutSuperBlock", start, err)
	return err
}

func (s *instrumentedStore) GetInode(ctx context.Context, id uint64) (*metadata.Inode, error) {
	start := time.Now()
	inode, err := s.next.GetInode(ctx, id)
	s.observe("GetInode", start, err)
	return inode, err
}

func (s *instrumentedStore) PutInode(ctx context.Context, inode *metadata.Inode) error {
	start := time.Now()
	err := s.next.PutInode(ctx, inode)
	s.observe("PutInode", start, err)
	return err
}

func (s *instrumentedStore) DeleteInode(ctx context.Context, id uint64) error {
	start := time.Now()
	err := s.next.DeleteInode(ctx, id)
	s.observe("DeleteInode", start, err)
	return err
}

func (s *instrumentedStore) GetChild(ctx context.Context, parentID uint64, name string) (uint64, error) {
	start := time.Now()
	id, err := s.next.GetChild(ctx, parentID, name)
	s.observe("GetChild", start, err)
	return id, err
}

func (s *instrumentedStore) SetChild(ctx context.Context, parentID uint64, name string, childID uint64) error {
	start := time.Now()
	err := s.next.SetChild(ctx, parentID, name, childID)
	s.observe("SetChild", start, err)
	return err
}

func (s *instrumentedStore) RemoveChild(ctx context.Context, parentID uint64, name string) error {
	start := time.Now()
	err := s.next.RemoveChild(ctx, parentID, name)
	s.observe("RemoveChild", start, err)
	return err
}

func (s *instrumentedStore) CreateChild(ctx context.Context, inode *metadata.Inode, sb *metadata.SuperBlock) error {
	start := time.Now()
	err := s.next.CreateChild(ctx, inode, sb)
	s.observe("CreateChild", start, err)
	return err
}

func (s *instrumentedStore) Move(ctx context.Context, oldParentID uint64, oldName string, inode *metadata.Inode) error {
	start := time.Now()
	err := s.next.Move(ctx, oldParentID, oldName, inode)
	s.observe("Move", start, err)
	return err
}

func (s *instrumentedStore) ListChildren(ctx context.Context, parentID uint64) ([]metadata.DirEntry, error) {
	start := time.Now()
	entries, err := s.next.ListChildren(ctx, parentID)
	s.observe("ListChildren", start, err)
	return entries, err
}

func (s *instrumentedStore) Sync(ctx context.Context) error {
	start := time.Now()
	err := s.next.Sync(ctx)
	s.observe("Sync", start, err)
	return err
}

func (s *instrumentedStore) Close() error {
	return s.next.Close()
}
