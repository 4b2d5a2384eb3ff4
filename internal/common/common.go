// Package common holds the fixed-width integer codec shared by the frame
// decoder and encoder.
package common

import (
	"encoding/binary"
)

const (
	// BytesPerWord is the framing unit; every segment size is counted in words.
	BytesPerWord = 8
	// BytesPerEntry is the width of one segment table entry.
	BytesPerEntry = 4
)

// ReadU32 decodes the little-endian uint32 at off.
// Callers must guarantee off+4 <= len(b); a violation panics like any
// out-of-range slice expression.
func ReadU32(b []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(b[off : off+BytesPerEntry])
}

// WriteU32 stores v little-endian at off. Same bounds contract as ReadU32.
func WriteU32(b []byte, off int, v uint32) {
	binary.LittleEndian.PutUint32(b[off:off+BytesPerEntry], v)
}

// ReadU64 decodes the little-endian uint64 at off.
func ReadU64(b []byte, off int) uint64 {
	return binary.LittleEndian.Uint64(b[off : off+BytesPerWord])
}

// WriteU64 stores v little-endian at off.
func WriteU64(b []byte, off int, v uint64) {
	binary.LittleEndian.PutUint64(b[off:off+BytesPerWord], v)
}

// RoundUpToWords returns the number of words needed to hold n bytes.
func RoundUpToWords(n int) int {
	return (n + BytesPerWord - 1) / BytesPerWord
}

// TableEntries is the number of u32 slots in a segment table for count
// segments: one count slot plus one size per segment, rounded up to even so
// the table ends on a word boundary.
func TableEntries(count int) int {
	return (count + 2) &^ 1
}
