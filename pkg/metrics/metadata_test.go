package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/marmos91/dittofuse/pkg/store/metadata"
	metadatamemory "github.com/marmos91/dittofuse/pkg/store/metadata/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedOp struct {
	op  string
	err error
}

type recordingMetadataMetrics struct {
	ops []recordedOp
}

func (r *recordingMetadataMetrics) RecordOperation(operation string, duration time.Duration, err error) {
	r.ops = append(r.ops, recordedOp{op: operation, err: err})
}

func TestInstrumentMetadataStore(t *testing.T) {
	ctx := context.Background()
	rec := &recordingMetadataMetrics{}
	store := InstrumentMetadataStore(metadatamemory.NewMemoryMetadataStore(), rec)

	require.NoError(t, store.PutInode(ctx, &metadata.Inode{ID: 7}))
	require.NoError(t, store.SetChild(ctx, 1, "a", 7))

	id, err := store.GetChild(ctx, 1, "a")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), id)

	_, err = store.GetChild(ctx, 1, "missing")
	assert.ErrorIs(t, err, metadata.ErrNotFound)

	require.NoError(t, store.Close())

	require.Len(t, rec.ops, 4)
	assert.Equal(t, "PutInode", rec.ops[0].op)
	assert.Equal(t, "SetChild", rec.ops[1].op)
	assert.Equal(t, "GetChild", rec.ops[2].op)
	assert.NoError(t, rec.ops[2].err)
	assert.ErrorIs(t, rec.ops[3].err, metadata.ErrNotFound)
}

func TestInstrumentMetadataStore_Transactions(t *testing.T) {
	ctx := context.Background()
	rec := &recordingMetadataMetrics{}
	store := InstrumentMetadataStore(metadatamemory.NewMemoryMetadataStore(), rec)

	inode := &metadata.Inode{ID: 2, ParentID: 1, Name: "a", Type: metadata.TypeRegular}
	require.NoError(t, store.CreateChild(ctx, inode, &metadata.SuperBlock{NextID: 3}))
	assert.ErrorIs(t, store.CreateChild(ctx, inode, &metadata.SuperBlock{NextID: 4}), metadata.ErrExists)

	moved := inode.Clone()
	moved.Name = "b"
	require.NoError(t, store.Move(ctx, 1, "a", moved))

	require.Len(t, rec.ops, 3)
	assert.Equal(t, "CreateChild", rec.ops[0].op)
	assert.ErrorIs(t, rec.ops[1].err, metadata.ErrExists)
	assert.Equal(t, "Move", rec.ops[2].op)
	assert.NoError(t, rec.ops[2].err)
}

func TestInstrumentMetadataStore_NilMetrics(t *testing.T) {
	store := metadatamemory.NewMemoryMetadataStore()
	assert.Same(t, metadata.Store(store), InstrumentMetadataStore(store, nil))
}
