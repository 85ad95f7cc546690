// Package fuse adapts the request handlers to go-fuse's RawFileSystem.
//
// Each method forwards to the handler of the same name. The cancel channel
// is ignored: handlers run to completion under the global lock. Operations
// a volume cannot represent (links, symlinks, xattrs, locks, lseek,
// fallocate, copy_file_range, statx, readdirplus) fall through to the
// default implementation and return ENOSYS.
package fuse

import (
	gofuse "github.com/hanwen/go-fuse/v2/fuse"
	"github.com/marmos91/dittofuse/internal/protocol/fuse/handlers"
)

// Name is reported by String and used as the mount subtype.
const Name = "dittofuse"

// RawFS is the go-fuse entry point of a mounted volume.
type RawFS struct {
	gofuse.RawFileSystem

	h *handlers.Handler
}

// NewRawFS wraps h.
func NewRawFS(h *handlers.Handler) *RawFS {
	return &RawFS{
		RawFileSystem: gofuse.NewDefaultRawFileSystem(),
		h:             h,
	}
}

// Handler returns the wrapped handler.
func (fs *RawFS) Handler() *handlers.Handler {
	return fs.h
}

func (fs *RawFS) String() string {
	return Name
}

// Init runs once the kernel handshake completes.
func (fs *RawFS) Init(*gofuse.Server) {
	fs.h.Init()
}

// OnUnmount runs after the kernel connection is gone.
func (fs *RawFS) OnUnmount() {
	fs.h.Destroy()
}

// Forget is a no-op: lookup does not keep a reference for the kernel.
func (fs *RawFS) Forget(nodeid, nlookup uint64) {}

func (fs *RawFS) Lookup(_ <-chan struct{}, header *gofuse.InHeader, name string, out *gofuse.EntryOut) gofuse.Status {
	return fs.h.Lookup(header, name, out)
}

func (fs *RawFS) GetAttr(_ <-chan struct{}, in *gofuse.GetAttrIn, out *gofuse.AttrOut) gofuse.Status {
	return fs.h.GetAttr(in, out)
}

func (fs *RawFS) SetAttr(_ <-chan struct{}, in *gofuse.SetAttrIn, out *gofuse.AttrOut) gofuse.Status {
	return fs.h.SetAttr(in, out)
}

func (fs *RawFS) Mknod(_ <-chan struct{}, in *gofuse.MknodIn, name string, out *gofuse.EntryOut) gofuse.Status {
	return fs.h.Mknod(in, name, out)
}

func (fs *RawFS) Mkdir(_ <-chan struct{}, in *gofuse.MkdirIn, name string, out *gofuse.EntryOut) gofuse.Status {
	return fs.h.Mkdir(in, name, out)
}

func (fs *RawFS) Unlink(_ <-chan struct{}, header *gofuse.InHeader, name string) gofuse.Status {
	return fs.h.Unlink(header, name)
}

func (fs *RawFS) Rmdir(_ <-chan struct{}, header *gofuse.InHeader, name string) gofuse.Status {
	return fs.h.Rmdir(header, name)
}

func (fs *RawFS) Rename(_ <-chan struct{}, in *gofuse.RenameIn, oldName, newName string) gofuse.Status {
	return fs.h.Rename(in, oldName, newName)
}

func (fs *RawFS) Access(_ <-chan struct{}, in *gofuse.AccessIn) gofuse.Status {
	return fs.h.Access(in)
}

func (fs *RawFS) Create(_ <-chan struct{}, in *gofuse.CreateIn, name string, out *gofuse.CreateOut) gofuse.Status {
	return fs.h.Create(in, name, out)
}

func (fs *RawFS) Open(_ <-chan struct{}, in *gofuse.OpenIn, out *gofuse.OpenOut) gofuse.Status {
	return fs.h.Open(in, out)
}

func (fs *RawFS) Read(_ <-chan struct{}, in *gofuse.ReadIn, buf []byte) (gofuse.ReadResult, gofuse.Status) {
	return fs.h.Read(in, buf)
}

func (fs *RawFS) Write(_ <-chan struct{}, in *gofuse.WriteIn, data []byte) (uint32, gofuse.Status) {
	return fs.h.Write(in, data)
}

func (fs *RawFS) Flush(_ <-chan struct{}, in *gofuse.FlushIn) gofuse.Status {
	return fs.h.Flush(in)
}

func (fs *RawFS) Release(_ <-chan struct{}, in *gofuse.ReleaseIn) {
	fs.h.Release(in)
}

func (fs *RawFS) Fsync(_ <-chan struct{}, in *gofuse.FsyncIn) gofuse.Status {
	return fs.h.Fsync(in)
}

func (fs *RawFS) OpenDir(_ <-chan struct{}, in *gofuse.OpenIn, out *gofuse.OpenOut) gofuse.Status {
	return fs.h.OpenDir(in, out)
}

func (fs *RawFS) ReadDir(_ <-chan struct{}, in *gofuse.ReadIn, out *gofuse.DirEntryList) gofuse.Status {
	return fs.h.ReadDir(in, out)
}

func (fs *RawFS) ReleaseDir(in *gofuse.ReleaseIn) {
	fs.h.ReleaseDir(in)
}

func (fs *RawFS) FsyncDir(_ <-chan struct{}, in *gofuse.FsyncIn) gofuse.Status {
	return fs.h.FsyncDir(in)
}

func (fs *RawFS) StatFs(_ <-chan struct{}, header *gofuse.InHeader, out *gofuse.StatfsOut) gofuse.Status {
	return fs.h.StatFs(header, out)
}

func (fs *RawFS) Ioctl(_ <-chan struct{}, in *gofuse.IoctlIn, inbuf []byte, out *gofuse.IoctlOut, outbuf []byte) gofuse.Status {
	return fs.h.Ioctl(in, inbuf, out, outbuf)
}

var _ gofuse.RawFileSystem = (*RawFS)(nil)
