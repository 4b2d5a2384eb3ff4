// Package zc (zero-copy) reinterprets decoded segment bytes as words.
//
// Aliasing is opt-in: by default Words copies. With UnsafePrimitives set, the
// returned slice points straight into the segment, which is only sound on a
// little-endian host and only while the message that owns the bytes is alive.
package zc

import (
	"errors"
	"unsafe"

	"github.com/rawbytedev/segwire/internal/common"
)

var (
	ErrNotWordSized = errors.New("zc: length is not a multiple of the word size")
	ErrUnaligned    = errors.New("zc: buffer is not 8-byte aligned")
)

// Options contains runtime flags controlling zero-copy behaviour.
type Options struct {
	// UnsafePrimitives allows aliasing the segment as []uint64 without copying.
	UnsafePrimitives bool

	// CheckAlignment makes an unaligned buffer fall back to a copy instead of
	// failing with ErrUnaligned.
	CheckAlignment bool
}

var littleEndianHost = func() bool {
	x := uint16(1)
	return *(*byte)(unsafe.Pointer(&x)) == 1
}()

// Aligned reports whether b starts on an 8-byte boundary.
func Aligned(b []byte) bool {
	if len(b) == 0 {
		return true
	}
	return uintptr(unsafe.Pointer(&b[0]))%common.BytesPerWord == 0
}

// CanAlias reports whether Words would return a view rather than a copy.
func CanAlias(b []byte, opts Options) bool {
	return opts.UnsafePrimitives && littleEndianHost && Aligned(b)
}

// Words returns the little-endian words of b.
func Words(b []byte, opts Options) ([]uint64, error) {
	if len(b)%common.BytesPerWord != 0 {
		return nil, ErrNotWordSized
	}
	n := len(b) / common.BytesPerWord
	if n == 0 {
		return []uint64{}, nil
	}
	if CanAlias(b, opts) {
		return unsafe.Slice((*uint64)(unsafe.Pointer(&b[0])), n), nil
	}
	if opts.UnsafePrimitives && littleEndianHost && !opts.CheckAlignment {
		return nil, ErrUnaligned
	}
	out := make([]uint64, n)
	for i := range out {
		out[i] = common.ReadU64(b, i*common.BytesPerWord)
	}
	return out, nil
}
