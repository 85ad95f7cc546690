package content

import "fmt"

// Buffer helpers shared by the backends that keep whole objects in memory.

// MaxBufferSize is the largest object an in-memory buffer can hold.
const MaxBufferSize = 1 << 32

// WriteAtBuffer writes data into buf at offset, growing buf (zero-filled)
// when the write extends past its end. It returns the updated slice, or
// ErrTooLarge with buf unchanged when the object would exceed
// MaxBufferSize.
func WriteAtBuffer(buf, data []byte, offset uint64) ([]byte, error) {
	end := offset + uint64(len(data))
	if end < offset {
		return buf, fmt.Errorf("write at %d: %w", offset, ErrTooLarge)
	}
	if end > uint64(len(buf)) {
		var err error
		if buf, err = ResizeBuffer(buf, end); err != nil {
			return buf, err
		}
	}
	copy(buf[offset:end], data)
	return buf, nil
}

// ResizeBuffer truncates or zero-extends buf to size. Sizes above
// MaxBufferSize fail with ErrTooLarge and leave buf unchanged.
func ResizeBuffer(buf []byte, size uint64) ([]byte, error) {
	if size <= uint64(len(buf)) {
		return buf[:size], nil
	}
	if size > MaxBufferSize {
		return buf, fmt.Errorf("buffer of %d bytes: %w", size, ErrTooLarge)
	}
	if size <= uint64(cap(buf)) {
		old := len(buf)
		buf = buf[:size]
		clear(buf[old:])
		return buf, nil
	}
	grown := make([]byte, size)
	copy(grown, buf)
	return grown, nil
}

// ReadAtBuffer copies from buf at offset into dst and returns the count.
func ReadAtBuffer(buf, dst []byte, offset uint64) int {
	if offset >= uint64(len(buf)) {
		return 0
	}
	return copy(dst, buf[offset:])
}
