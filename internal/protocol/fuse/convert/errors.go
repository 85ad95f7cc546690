package convert

import (
	"errors"
	"os"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/marmos91/dittofuse/internal/logger"
	"github.com/marmos91/dittofuse/pkg/engine"
)

// ============================================================================
// Error Mapping - Engine Errors → FUSE Status Codes
// ============================================================================

// MapEngineErrorToStatus maps an engine failure to the status replied to
// the kernel.
//
// Error Mapping:
//   - syscall.Errno anywhere in the wrap chain → passed through unchanged
//   - *engine.Error → errno by code (NotFound → ENOENT, ReadOnly → EROFS, ...)
//   - os.ErrNotExist / os.ErrExist / os.ErrPermission / os.ErrInvalid
//   - Unknown errors → EINVAL
//
// This function also handles audit logging at appropriate levels:
//   - ENOENT: logged at debug (negative lookups are routine)
//   - Client errors (EEXIST, ENOTEMPTY, EROFS, ...): logged as warnings
//   - Server errors (EIO, unmapped): logged as errors
func MapEngineErrorToStatus(err error, operation string) fuse.Status {
	if err == nil {
		return fuse.OK
	}

	status, known := classify(err)
	switch {
	case !known:
		logger.Error("%s failed: unmapped error: %v", operation, err)
	case status == fuse.ENOENT:
		logger.Debug("%s failed: %v", operation, err)
	case status == fuse.EIO:
		logger.Error("%s failed: %v", operation, err)
	default:
		logger.Warn("%s failed: %v", operation, err)
	}
	return status
}

func classify(err error) (fuse.Status, bool) {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return fuse.Status(errno), true
	}

	var engErr *engine.Error
	if errors.As(err, &engErr) {
		switch engErr.Code {
		case engine.ErrNotFound:
			return fuse.ENOENT, true
		case engine.ErrAlreadyExists:
			return fuse.Status(syscall.EEXIST), true
		case engine.ErrNotDirectory:
			return fuse.ENOTDIR, true
		case engine.ErrIsDirectory:
			return fuse.EISDIR, true
		case engine.ErrNotEmpty:
			return fuse.Status(syscall.ENOTEMPTY), true
		case engine.ErrReadOnly:
			return fuse.EROFS, true
		case engine.ErrNoSpace:
			return fuse.Status(syscall.ENOSPC), true
		case engine.ErrNameTooLong:
			return fuse.Status(syscall.ENAMETOOLONG), true
		case engine.ErrBusy:
			return fuse.EBUSY, true
		case engine.ErrIOError:
			return fuse.EIO, true
		case engine.ErrInvalidArgument:
			return fuse.EINVAL, true
		case engine.ErrNotSupported:
			return fuse.ENOTSUP, true
		case engine.ErrFileTooLarge:
			return fuse.Status(syscall.EFBIG), true
		}
		return fuse.EINVAL, false
	}

	switch {
	case errors.Is(err, os.ErrNotExist):
		return fuse.ENOENT, true
	case errors.Is(err, os.ErrExist):
		return fuse.Status(syscall.EEXIST), true
	case errors.Is(err, os.ErrPermission):
		return fuse.EPERM, true
	case errors.Is(err, os.ErrInvalid):
		return fuse.EINVAL, true
	}
	return fuse.EINVAL, false
}
