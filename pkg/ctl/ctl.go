// Package ctl implements the control channel of a mounted volume: ioctl
// commands issued against any file or directory inside the mount.
package ctl

import (
	"encoding/binary"
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// PruneReplySize is the size of the prune ioctl payload.
const PruneReplySize = 16

// Linux ioctl number layout.
const (
	iocNRBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14

	iocNRShift   = 0
	iocTypeShift = iocNRShift + iocNRBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits

	iocRead = 2
)

func ior(typ, nr, size uint32) uint32 {
	return iocRead<<iocDirShift | size<<iocSizeShift | typ<<iocTypeShift | nr<<iocNRShift
}

// CmdNIDPrune asks the volume to evict the cached, unreferenced
// descendants of the node the ioctl is issued on. It is
// _IOR('D', 1, [16]byte), 0x80104401.
var CmdNIDPrune = ior('D', 1, PruneReplySize)

// EncodePruneReply writes the prune counters big-endian into buf.
func EncodePruneReply(buf []byte, pruned, remaining uint64) error {
	if len(buf) < PruneReplySize {
		return fmt.Errorf("prune reply needs %d bytes, got %d", PruneReplySize, len(buf))
	}
	binary.BigEndian.PutUint64(buf[0:8], pruned)
	binary.BigEndian.PutUint64(buf[8:16], remaining)
	return nil
}

// DecodePruneReply reads the prune counters written by EncodePruneReply.
func DecodePruneReply(buf []byte) (pruned, remaining uint64, err error) {
	if len(buf) < PruneReplySize {
		return 0, 0, fmt.Errorf("prune reply needs %d bytes, got %d", PruneReplySize, len(buf))
	}
	return binary.BigEndian.Uint64(buf[0:8]), binary.BigEndian.Uint64(buf[8:16]), nil
}

// Prune issues the prune ioctl on path, which must live inside a mounted
// volume. The call fails with EBUSY while any other file on the volume is
// open.
func Prune(path string) (pruned, remaining uint64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer func() { _ = f.Close() }()

	var buf [PruneReplySize]byte
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), uintptr(CmdNIDPrune), uintptr(unsafe.Pointer(&buf[0])))
	if errno != 0 {
		return 0, 0, &os.PathError{Op: "ioctl", Path: path, Err: errno}
	}
	return DecodePruneReply(buf[:])
}
