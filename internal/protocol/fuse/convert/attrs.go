// Package convert translates engine results into FUSE wire structures.
package convert

import (
	"fmt"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/marmos91/dittofuse/internal/logger"
	"github.com/marmos91/dittofuse/pkg/engine"
)

// FillAttr copies an engine stat record into out.
//
// Only directories and regular files exist on a volume; any other type is
// an engine bug and panics. ctime is reported equal to mtime.
func FillAttr(st engine.Stat, out *fuse.Attr) {
	typ := st.Mode & syscall.S_IFMT
	switch typ {
	case syscall.S_IFDIR, syscall.S_IFREG:
	default:
		msg := fmt.Sprintf("stat of nid %d returned unsupported file type %#o", st.Ino, typ)
		logger.Error("%s", msg)
		panic(msg)
	}

	out.Ino = st.Ino
	out.Size = st.Size
	out.Blocks = st.Blocks
	out.Atime = uint64(st.Atime)
	out.Mtime = uint64(st.Mtime)
	out.Ctime = uint64(st.Mtime)
	out.Atimensec = 0
	out.Mtimensec = 0
	out.Ctimensec = 0
	out.Mode = typ | (st.Mode & 0o777)
	out.Nlink = st.Nlink
	out.Uid = st.Uid
	out.Gid = st.Gid
	out.Rdev = st.Rdev
	out.Blksize = st.Blksize
}

// DirentMode returns the type bits reported for a directory entry.
func DirentMode(st engine.Stat) uint32 {
	return st.Mode & syscall.S_IFMT
}
