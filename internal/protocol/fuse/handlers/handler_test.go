package handlers

import (
	"context"
	"fmt"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/marmos91/dittofuse/pkg/ctl"
	"github.com/marmos91/dittofuse/pkg/engine"
	contentmemory "github.com/marmos91/dittofuse/pkg/store/content/memory"
	metadatamemory "github.com/marmos91/dittofuse/pkg/store/metadata/memory"
	"github.com/marmos91/dittofuse/pkg/volume"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEngine records cursor lifecycle calls. Stat fails for failStat
// and reports the sizes in staleSize instead of the current ones.
type countingEngine struct {
	engine.Engine

	opened    int
	closed    int
	failStat  uint64
	staleSize map[uint64]uint64
}

func (e *countingEngine) Stat(nid uint64) (engine.Stat, error) {
	if e.failStat != 0 && nid == e.failStat {
		return engine.Stat{}, engine.NewError(engine.ErrIOError, nid, "injected stat failure")
	}
	st, err := e.Engine.Stat(nid)
	if size, ok := e.staleSize[nid]; ok && err == nil {
		st.Size = size
	}
	return st, err
}

func (e *countingEngine) OpendirCursor(dnid uint64) (*engine.Cursor, error) {
	c, err := e.Engine.OpendirCursor(dnid)
	if err == nil {
		e.opened++
	}
	return c, err
}

func (e *countingEngine) ClosedirCursor(c *engine.Cursor) {
	e.closed++
	e.Engine.ClosedirCursor(c)
}

// recordingMetrics captures prune results.
type recordingMetrics struct {
	requests  map[string]int
	pruned    uint64
	remaining uint64
	open      int64
}

func (m *recordingMetrics) RecordRequest(op string, _ time.Duration, _ int32) {
	m.requests[op]++
}
func (m *recordingMetrics) RecordBytesTransferred(string, int64) {}
func (m *recordingMetrics) SetOpenHandles(count int64)           { m.open = count }
func (m *recordingMetrics) RecordPrune(pruned, remaining uint64) {
	m.pruned, m.remaining = pruned, remaining
}

// sliceFiller accepts at most max entries; max <= 0 means unlimited.
type sliceFiller struct {
	entries []fuse.DirEntry
	max     int
}

func (f *sliceFiller) AddDirEntry(e fuse.DirEntry) bool {
	if f.max > 0 && len(f.entries) >= f.max {
		return false
	}
	f.entries = append(f.entries, e)
	return true
}

type fixture struct {
	h       *Handler
	vol     *volume.Volume
	eng     *countingEngine
	metrics *recordingMetrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithConfig(t, volume.Config{Name: "test"})
}

func newFixtureWithConfig(t *testing.T, cfg volume.Config) *fixture {
	t.Helper()
	vol, err := volume.Open(context.Background(),
		metadatamemory.NewMemoryMetadataStore(),
		contentmemory.NewMemoryContentStore(),
		cfg)
	require.NoError(t, err)

	eng := &countingEngine{Engine: vol}
	m := &recordingMetrics{requests: make(map[string]int)}
	return &fixture{h: New(eng, m), vol: vol, eng: eng, metrics: m}
}

func header(nid uint64) fuse.InHeader {
	return fuse.InHeader{NodeId: nid}
}

func (f *fixture) mknod(t *testing.T, parent uint64, name string) uint64 {
	t.Helper()
	var out fuse.EntryOut
	in := &fuse.MknodIn{InHeader: header(parent), Mode: syscall.S_IFREG | 0o644}
	require.Equal(t, fuse.OK, f.h.Mknod(in, name, &out))
	return out.NodeId
}

func (f *fixture) mkdir(t *testing.T, parent uint64, name string) uint64 {
	t.Helper()
	var out fuse.EntryOut
	in := &fuse.MkdirIn{InHeader: header(parent), Mode: 0o755}
	require.Equal(t, fuse.OK, f.h.Mkdir(in, name, &out))
	return out.NodeId
}

func (f *fixture) open(t *testing.T, nid uint64) {
	t.Helper()
	var out fuse.OpenOut
	require.Equal(t, fuse.OK, f.h.Open(&fuse.OpenIn{InHeader: header(nid)}, &out))
	require.Equal(t, nid, out.Fh)
}

func (f *fixture) opendir(t *testing.T, nid uint64) {
	t.Helper()
	var out fuse.OpenOut
	require.Equal(t, fuse.OK, f.h.OpenDir(&fuse.OpenIn{InHeader: header(nid)}, &out))
	require.Equal(t, nid, out.Fh)
}

func (f *fixture) refs(t *testing.T, nid uint64) int {
	t.Helper()
	n, ok := f.vol.Node(nid)
	require.True(t, ok)
	return n.Refs()
}

// readdirAll pages through a directory with a filler of the given capacity.
func (f *fixture) readdirAll(t *testing.T, dnid uint64, capacity int) []fuse.DirEntry {
	t.Helper()
	var all []fuse.DirEntry
	offset := uint64(0)
	for i := 0; i < 1000; i++ {
		filler := &sliceFiller{max: capacity}
		in := &fuse.ReadIn{InHeader: header(dnid), Fh: dnid, Offset: offset}
		require.Equal(t, fuse.OK, f.h.ReadDir(in, filler))
		if len(filler.entries) == 0 {
			return all
		}
		all = append(all, filler.entries...)
		offset = filler.entries[len(filler.entries)-1].Off
	}
	t.Fatal("readdir did not terminate")
	return nil
}

func TestLookup_DoesNotLeakReferences(t *testing.T) {
	f := newFixture(t)
	nid := f.mknod(t, engine.RootNid, "a")

	var out fuse.EntryOut
	require.Equal(t, fuse.OK, f.h.Lookup(ptr(header(engine.RootNid)), "a", &out))
	assert.Equal(t, nid, out.NodeId)
	assert.Zero(t, out.Generation)
	assert.True(t, out.Attr.IsRegular())
	assert.Equal(t, 0, f.refs(t, nid))

	assert.Equal(t, fuse.ENOENT, f.h.Lookup(ptr(header(engine.RootNid)), "missing", &out))
	assert.Equal(t, fuse.EINVAL, f.h.Lookup(ptr(header(engine.RootNid)), "bad\xff", &out))
	assert.Equal(t, 3, f.metrics.requests["LOOKUP"])
}

func TestOpenRelease_ReferenceSymmetry(t *testing.T) {
	f := newFixture(t)
	nid := f.mknod(t, engine.RootNid, "a")

	f.open(t, nid)
	f.open(t, nid)
	assert.Equal(t, 2, f.refs(t, nid))
	assert.Equal(t, int64(2), f.h.OpenHandles())
	assert.Equal(t, int64(2), f.metrics.open)

	for i := 0; i < 2; i++ {
		f.h.Release(&fuse.ReleaseIn{InHeader: header(nid), Fh: nid})
	}
	assert.Equal(t, 0, f.refs(t, nid))
	assert.Zero(t, f.h.OpenHandles())
}

func TestOpen_UnknownNode(t *testing.T) {
	f := newFixture(t)
	var out fuse.OpenOut
	assert.Equal(t, fuse.ENOENT, f.h.Open(&fuse.OpenIn{InHeader: header(999)}, &out))
	assert.Zero(t, f.h.OpenHandles())
}

func TestOpen_TruncateFailureDropsReference(t *testing.T) {
	f := newFixture(t)
	dir := f.mkdir(t, engine.RootNid, "d")

	var out fuse.OpenOut
	in := &fuse.OpenIn{InHeader: header(dir), Flags: syscall.O_TRUNC}
	assert.NotEqual(t, fuse.OK, f.h.Open(in, &out))
	assert.Equal(t, 0, f.refs(t, dir))
	assert.Zero(t, f.h.OpenHandles())
}

func TestCreateWriteRead(t *testing.T) {
	f := newFixture(t)

	var created fuse.CreateOut
	in := &fuse.CreateIn{InHeader: header(engine.RootNid), Mode: 0o644}
	require.Equal(t, fuse.OK, f.h.Create(in, "file", &created))
	nid := created.NodeId
	assert.Equal(t, nid, created.Fh)
	assert.Equal(t, 1, f.refs(t, nid))

	written, status := f.h.Write(&fuse.WriteIn{InHeader: header(nid), Fh: nid, Offset: 0}, []byte("hello world"))
	require.Equal(t, fuse.OK, status)
	assert.Equal(t, uint32(11), written)

	buf := make([]byte, 64)
	res, status := f.h.Read(&fuse.ReadIn{InHeader: header(nid), Fh: nid, Offset: 6, Size: 64}, buf)
	require.Equal(t, fuse.OK, status)
	data, _ := res.Bytes(nil)
	assert.Equal(t, "world", string(data))

	require.Equal(t, fuse.OK, f.h.Flush(&fuse.FlushIn{InHeader: header(nid), Fh: nid}))
	require.Equal(t, fuse.OK, f.h.Fsync(&fuse.FsyncIn{InHeader: header(nid), Fh: nid}))
	f.h.Release(&fuse.ReleaseIn{InHeader: header(nid), Fh: nid})
	assert.Equal(t, 0, f.refs(t, nid))

	var attr fuse.AttrOut
	require.Equal(t, fuse.OK, f.h.GetAttr(&fuse.GetAttrIn{InHeader: header(nid)}, &attr))
	assert.Equal(t, uint64(11), attr.Size)
}

func TestCreateWriteReleaseReopen(t *testing.T) {
	f := newFixture(t)
	payload := make([]byte, 100)
	for i := range payload {
		payload[i] = byte('a' + i%26)
	}

	var created fuse.CreateOut
	in := &fuse.CreateIn{InHeader: header(engine.RootNid), Mode: 0o644}
	require.Equal(t, fuse.OK, f.h.Create(in, "a", &created))
	nid := created.NodeId

	written, status := f.h.Write(&fuse.WriteIn{InHeader: header(nid), Fh: nid, Offset: 0}, payload)
	require.Equal(t, fuse.OK, status)
	assert.Equal(t, uint32(100), written)
	require.Equal(t, fuse.OK, f.h.Flush(&fuse.FlushIn{InHeader: header(nid), Fh: nid}))
	f.h.Release(&fuse.ReleaseIn{InHeader: header(nid), Fh: nid})
	assert.Equal(t, 0, f.refs(t, nid))
	assert.Zero(t, f.h.OpenHandles())

	f.open(t, nid)
	buf := make([]byte, 100)
	res, status := f.h.Read(&fuse.ReadIn{InHeader: header(nid), Fh: nid, Offset: 0, Size: 100}, buf)
	require.Equal(t, fuse.OK, status)
	data, _ := res.Bytes(nil)
	assert.Equal(t, payload, data)

	var attr fuse.AttrOut
	require.Equal(t, fuse.OK, f.h.GetAttr(&fuse.GetAttrIn{InHeader: header(nid)}, &attr))
	assert.Equal(t, uint64(100), attr.Size)
	f.h.Release(&fuse.ReleaseIn{InHeader: header(nid), Fh: nid})
}

func TestSetAttr_Size(t *testing.T) {
	f := newFixture(t)
	nid := f.mknod(t, engine.RootNid, "a")

	in := &fuse.SetAttrIn{}
	in.NodeId = nid
	in.Valid = fuse.FATTR_SIZE
	in.Size = 100

	var out fuse.AttrOut
	require.Equal(t, fuse.OK, f.h.SetAttr(in, &out))
	assert.Equal(t, uint64(100), out.Size)
	assert.Equal(t, 0, f.refs(t, nid))

	st, err := f.vol.Stat(nid)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), st.Size)
}

func TestSetAttr_SizeWithLaggingEngineSize(t *testing.T) {
	clock := time.Unix(1700000000, 0)
	f := newFixtureWithConfig(t, volume.Config{Name: "test", Clock: func() time.Time { return clock }})
	nid := f.mknod(t, engine.RootNid, "a")

	clock = clock.Add(time.Hour)
	f.eng.staleSize = map[uint64]uint64{nid: 0}

	in := &fuse.SetAttrIn{}
	in.NodeId = nid
	in.Valid = fuse.FATTR_SIZE
	in.Size = 100

	var out fuse.AttrOut
	require.Equal(t, fuse.OK, f.h.SetAttr(in, &out))
	assert.Equal(t, uint64(100), out.Size)
	assert.Equal(t, uint64(clock.Unix()), out.Mtime)
	assert.Equal(t, 0, f.refs(t, nid))

	lagging, err := f.eng.Stat(nid)
	require.NoError(t, err)
	assert.Zero(t, lagging.Size)
	st, err := f.vol.Stat(nid)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), st.Size)
}

func TestSetAttr_SizeBeyondCapacity(t *testing.T) {
	f := newFixture(t)
	nid := f.mknod(t, engine.RootNid, "a")

	in := &fuse.SetAttrIn{}
	in.NodeId = nid
	in.Valid = fuse.FATTR_SIZE
	in.Size = 1 << 50

	var out fuse.AttrOut
	assert.Equal(t, fuse.Status(syscall.ENOSPC), f.h.SetAttr(in, &out))
	assert.Equal(t, 0, f.refs(t, nid))

	st, err := f.vol.Stat(nid)
	require.NoError(t, err)
	assert.Zero(t, st.Size)

	written, status := f.h.Write(&fuse.WriteIn{InHeader: header(nid), Fh: nid, Offset: 1 << 50}, []byte("x"))
	assert.Equal(t, fuse.Status(syscall.ENOSPC), status)
	assert.Zero(t, written)
}

func TestSetAttr_RejectsUnsupportedChanges(t *testing.T) {
	f := newFixture(t)
	nid := f.mknod(t, engine.RootNid, "a")
	var out fuse.AttrOut

	in := &fuse.SetAttrIn{}
	in.NodeId = nid
	in.Valid = fuse.FATTR_MODE
	in.Mode = syscall.S_IFREG | syscall.S_ISUID | 0o644
	assert.Equal(t, fuse.EPERM, f.h.SetAttr(in, &out))

	in.Mode = syscall.S_IFREG | 0o600
	assert.Equal(t, fuse.OK, f.h.SetAttr(in, &out))

	in.Valid = fuse.FATTR_UID
	in.Owner.Uid = 4242
	assert.Equal(t, fuse.EPERM, f.h.SetAttr(in, &out))
}

func TestSetAttr_TimesAreEchoed(t *testing.T) {
	f := newFixture(t)
	nid := f.mknod(t, engine.RootNid, "a")

	in := &fuse.SetAttrIn{}
	in.NodeId = nid
	in.Valid = fuse.FATTR_MTIME
	in.Mtime = 12345

	var out fuse.AttrOut
	require.Equal(t, fuse.OK, f.h.SetAttr(in, &out))
	assert.Equal(t, uint64(12345), out.Mtime)
}

func TestUnlinkRmdir(t *testing.T) {
	f := newFixture(t)
	f.mknod(t, engine.RootNid, "a")
	dir := f.mkdir(t, engine.RootNid, "d")
	f.mknod(t, dir, "inner")

	h := header(engine.RootNid)
	assert.Equal(t, fuse.EISDIR, f.h.Unlink(&h, "d"))
	assert.Equal(t, 0, f.refs(t, dir))
	assert.Equal(t, fuse.Status(syscall.ENOTEMPTY), f.h.Rmdir(&h, "d"))
	assert.Equal(t, 0, f.refs(t, dir))

	assert.Equal(t, fuse.OK, f.h.Unlink(&h, "a"))
	dh := header(dir)
	assert.Equal(t, fuse.OK, f.h.Unlink(&dh, "inner"))
	assert.Equal(t, fuse.OK, f.h.Rmdir(&h, "d"))

	var out fuse.EntryOut
	assert.Equal(t, fuse.ENOENT, f.h.Lookup(&h, "d", &out))
}

func TestRename(t *testing.T) {
	f := newFixture(t)
	nid := f.mknod(t, engine.RootNid, "a")
	f.mknod(t, engine.RootNid, "b")

	in := &fuse.RenameIn{InHeader: header(engine.RootNid), Newdir: engine.RootNid, Flags: 1} // RENAME_NOREPLACE
	assert.Equal(t, fuse.Status(syscall.EEXIST), f.h.Rename(in, "a", "b"))

	in.Flags = 0
	require.Equal(t, fuse.OK, f.h.Rename(in, "a", "c"))

	var out fuse.EntryOut
	h := header(engine.RootNid)
	require.Equal(t, fuse.OK, f.h.Lookup(&h, "c", &out))
	assert.Equal(t, nid, out.NodeId)
}

func TestReadDir_PagingMatchesSingleCall(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 7; i++ {
		f.mknod(t, engine.RootNid, fmt.Sprintf("f%02d", i))
	}
	f.opendir(t, engine.RootNid)

	whole := f.readdirAll(t, engine.RootNid, 0)
	require.Len(t, whole, 9)
	assert.Equal(t, ".", whole[0].Name)
	assert.Equal(t, "..", whole[1].Name)
	assert.Equal(t, engine.RootNid, whole[1].Ino)
	for i, e := range whole {
		assert.Equal(t, uint64(i+1), e.Off)
	}

	for capacity := 1; capacity <= 4; capacity++ {
		assert.Equal(t, whole, f.readdirAll(t, engine.RootNid, capacity), "capacity %d", capacity)
	}

	assert.Equal(t, f.eng.opened, f.eng.closed)
	f.h.ReleaseDir(&fuse.ReleaseIn{InHeader: header(engine.RootNid), Fh: engine.RootNid})
	for _, e := range whole[2:] {
		assert.Equal(t, 0, f.refs(t, e.Ino))
	}
	assert.Equal(t, 0, f.refs(t, engine.RootNid))
}

func TestReadDir_EmptyDirectory(t *testing.T) {
	f := newFixture(t)
	dir := f.mkdir(t, engine.RootNid, "empty")
	f.opendir(t, dir)

	entries := f.readdirAll(t, dir, 1)
	require.Len(t, entries, 2)
	assert.Equal(t, dir, entries[0].Ino)
	assert.Equal(t, engine.RootNid, entries[1].Ino)
	assert.Equal(t, uint32(syscall.S_IFDIR), entries[1].Mode)

	f.h.ReleaseDir(&fuse.ReleaseIn{InHeader: header(dir), Fh: dir})
}

func TestReadDir_EngineErrorClosesCursor(t *testing.T) {
	f := newFixture(t)
	a := f.mknod(t, engine.RootNid, "a")
	b := f.mknod(t, engine.RootNid, "b")
	f.opendir(t, engine.RootNid)
	f.eng.failStat = b

	filler := &sliceFiller{}
	in := &fuse.ReadIn{InHeader: header(engine.RootNid), Fh: engine.RootNid}
	assert.Equal(t, fuse.EIO, f.h.ReadDir(in, filler))
	assert.Len(t, filler.entries, 3)
	assert.Equal(t, 1, f.eng.opened)
	assert.Equal(t, 1, f.eng.closed)

	f.h.ReleaseDir(&fuse.ReleaseIn{InHeader: header(engine.RootNid), Fh: engine.RootNid})
	assert.Equal(t, 0, f.refs(t, a))
	assert.Equal(t, 0, f.refs(t, b))
}

func TestReadDir_NotADirectory(t *testing.T) {
	f := newFixture(t)
	nid := f.mknod(t, engine.RootNid, "a")
	f.open(t, nid)

	in := &fuse.ReadIn{InHeader: header(nid), Fh: nid}
	assert.Equal(t, fuse.ENOTDIR, f.h.ReadDir(in, &sliceFiller{}))
	assert.Zero(t, f.eng.opened)

	f.h.Release(&fuse.ReleaseIn{InHeader: header(nid), Fh: nid})
}

func TestIoctl_Prune(t *testing.T) {
	f := newFixture(t)
	dir := f.mkdir(t, engine.RootNid, "d")
	f.mknod(t, dir, "x")
	f.mknod(t, dir, "y")

	f.opendir(t, dir)
	in := &fuse.IoctlIn{InHeader: header(dir), Fh: dir, Cmd: ctl.CmdNIDPrune, OutSize: ctl.PruneReplySize}
	outbuf := make([]byte, ctl.PruneReplySize)
	var out fuse.IoctlOut

	require.Equal(t, fuse.OK, f.h.Ioctl(in, nil, &out, outbuf))
	pruned, remaining, err := ctl.DecodePruneReply(outbuf)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), pruned)
	assert.Zero(t, remaining)
	assert.Equal(t, uint64(2), f.metrics.pruned)
	assert.Zero(t, out.Result)

	// Pruned nodes are reloaded on demand.
	var entry fuse.EntryOut
	h := header(dir)
	assert.Equal(t, fuse.OK, f.h.Lookup(&h, "x", &entry))

	f.h.ReleaseDir(&fuse.ReleaseIn{InHeader: header(dir), Fh: dir})
}

func TestIoctl_PruneRefusedWithOtherHandles(t *testing.T) {
	f := newFixture(t)
	dir := f.mkdir(t, engine.RootNid, "d")
	file := f.mknod(t, dir, "x")

	f.opendir(t, dir)
	f.open(t, file)

	in := &fuse.IoctlIn{InHeader: header(dir), Fh: dir, Cmd: ctl.CmdNIDPrune}
	var out fuse.IoctlOut
	assert.Equal(t, fuse.EBUSY, f.h.Ioctl(in, nil, &out, make([]byte, ctl.PruneReplySize)))
	assert.Equal(t, 1, f.refs(t, file))

	f.h.Release(&fuse.ReleaseIn{InHeader: header(file), Fh: file})
	f.h.ReleaseDir(&fuse.ReleaseIn{InHeader: header(dir), Fh: dir})
}

func TestIoctl_Rejects(t *testing.T) {
	f := newFixture(t)
	f.opendir(t, engine.RootNid)
	var out fuse.IoctlOut

	unknown := &fuse.IoctlIn{InHeader: header(engine.RootNid), Fh: engine.RootNid, Cmd: 0x1234}
	assert.Equal(t, fuse.EINVAL, f.h.Ioctl(unknown, nil, &out, make([]byte, 16)))

	short := &fuse.IoctlIn{InHeader: header(engine.RootNid), Fh: engine.RootNid, Cmd: ctl.CmdNIDPrune}
	assert.Equal(t, fuse.EINVAL, f.h.Ioctl(short, nil, &out, make([]byte, 8)))

	f.h.ReleaseDir(&fuse.ReleaseIn{InHeader: header(engine.RootNid), Fh: engine.RootNid})
}

func TestStatFs(t *testing.T) {
	f := newFixture(t)
	var out fuse.StatfsOut
	h := header(engine.RootNid)
	require.Equal(t, fuse.OK, f.h.StatFs(&h, &out))
	assert.Equal(t, uint32(255), out.NameLen)
	assert.NotZero(t, out.Blocks)
	assert.NotZero(t, out.Bsize)
}

func TestFatalConditions(t *testing.T) {
	f := newFixture(t)
	nid := f.mknod(t, engine.RootNid, "a")

	assert.Panics(t, func() {
		f.h.Access(&fuse.AccessIn{InHeader: header(nid)})
	})

	f.open(t, nid)
	assert.Panics(t, func() {
		f.h.Read(&fuse.ReadIn{InHeader: header(nid), Fh: nid + 1, Size: 1}, make([]byte, 1))
	})

	assert.Panics(t, func() {
		f.h.Destroy()
	})
}

func TestReleaseDir_WithoutOpenPanics(t *testing.T) {
	f := newFixture(t)
	assert.Panics(t, func() {
		f.h.ReleaseDir(&fuse.ReleaseIn{InHeader: header(engine.RootNid), Fh: engine.RootNid})
	})
}

func TestInitDestroy(t *testing.T) {
	f := newFixture(t)
	f.h.Init()
	f.mknod(t, engine.RootNid, "a")
	assert.NotPanics(t, f.h.Destroy)
}

func ptr[T any](v T) *T {
	return &v
}

func TestSetDebugLevel_DuringRequests(t *testing.T) {
	f := newFixture(t)
	nid := f.mknod(t, engine.RootNid, "a")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			f.h.SetDebugLevel(i % 3)
		}
	}()
	for i := 0; i < 200; i++ {
		var out fuse.AttrOut
		require.Equal(t, fuse.OK, f.h.GetAttr(&fuse.GetAttrIn{InHeader: header(nid)}, &out))
	}
	wg.Wait()

	f.h.SetDebugLevel(2)
	assert.Equal(t, int32(2), f.h.debug.Load())
}
