package engine

import "fmt"

// Error represents a domain error reported by an engine.
//
// Engines report failures in one of two shapes:
//   - a syscall.Errno (possibly wrapped) when the failure already has a
//     precise POSIX meaning, e.g. ENOENT at the end of a directory cursor
//   - an *Error carrying a generic ErrorCode that the protocol layer has to
//     translate on its own
//
// Protocol handlers translate both into their own status codes.
type Error struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Nid is the node the error relates to (0 if not applicable)
	Nid uint64
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Nid != 0 {
		return fmt.Sprintf("%s: nid %d", e.Message, e.Nid)
	}
	return e.Message
}

// NewError builds an *Error with a formatted message.
func NewError(code ErrorCode, nid uint64, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Nid:     nid,
	}
}

// ErrorCode represents the category of an engine error.
type ErrorCode int

const (
	// ErrNotFound indicates the requested node or name doesn't exist
	ErrNotFound ErrorCode = iota

	// ErrAlreadyExists indicates an entry with the name already exists
	ErrAlreadyExists

	// ErrNotDirectory indicates operation expected a directory but got a file
	ErrNotDirectory

	// ErrIsDirectory indicates operation expected a file but got a directory
	ErrIsDirectory

	// ErrNotEmpty indicates a directory still has children
	ErrNotEmpty

	// ErrReadOnly indicates the volume is mounted read-only
	ErrReadOnly

	// ErrNoSpace indicates capacity (bytes or files) is exhausted
	ErrNoSpace

	// ErrNameTooLong indicates a name exceeds the volume's name length limit
	ErrNameTooLong

	// ErrBusy indicates the node is in use and the operation cannot proceed
	ErrBusy

	// ErrIOError indicates the backing stores failed
	ErrIOError

	// ErrInvalidArgument indicates invalid parameters were provided
	ErrInvalidArgument

	// ErrNotSupported indicates the operation is not implemented by the engine
	ErrNotSupported

	// ErrFileTooLarge indicates a file would grow past what the content
	// store can hold
	ErrFileTooLarge
)

func (c ErrorCode) String() string {
	switch c {
	case ErrNotFound:
		return "NotFound"
	case ErrAlreadyExists:
		return "AlreadyExists"
	case ErrNotDirectory:
		return "NotDirectory"
	case ErrIsDirectory:
		return "IsDirectory"
	case ErrNotEmpty:
		return "NotEmpty"
	case ErrReadOnly:
		return "ReadOnly"
	case ErrNoSpace:
		return "NoSpace"
	case ErrNameTooLong:
		return "NameTooLong"
	case ErrBusy:
		return "Busy"
	case ErrIOError:
		return "IOError"
	case ErrInvalidArgument:
		return "InvalidArgument"
	case ErrNotSupported:
		return "NotSupported"
	case ErrFileTooLarge:
		return "FileTooLarge"
	default:
		return fmt.Sprintf("ErrorCode(%d)", int(c))
	}
}
