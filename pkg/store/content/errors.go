package content

import "errors"

// Backends wrap these sentinels with the content id:
//
//	fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
var (
	// ErrContentNotFound means no bytes were ever stored for the id. The
	// volume reads such a file as zeros up to its recorded size.
	ErrContentNotFound = errors.New("content not found")

	// ErrStoreClosed is returned by every operation after Close.
	ErrStoreClosed = errors.New("content store closed")

	// ErrTooLarge means a write or truncate would grow an object past what
	// the backend can hold.
	ErrTooLarge = errors.New("content too large")
)
