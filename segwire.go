// Package segwire implements the stream framing of a segmented binary message
// format.
//
// A framed message is a segment table followed by the segment bodies:
//
//	u32      segment count - 1
//	u32 x N  size of each segment, in 8-byte words
//	u32      zero pad, present when N is even
//	...      segment bodies, in order
//
// All table integers are little-endian. ReadMessage decodes a stream into a
// Message whose segments are views over one owned buffer; WriteMessage frames
// a sequence of builder segments.
package segwire

import (
	"errors"
	"fmt"

	"github.com/rawbytedev/segwire/internal/common"
)

const (
	// BytesPerWord is the size of the framing unit.
	BytesPerWord = common.BytesPerWord
	// MaxSegments is the exclusive upper bound on the segment count of a message.
	MaxSegments = 512
	// DefaultTraversalLimitInWords bounds a decoded message to 64 MiB.
	DefaultTraversalLimitInWords = 8 * 1024 * 1024
	// DefaultNestingLimit is passed through to the message object model.
	DefaultNestingLimit = 64
)

var (
	ErrReadTruncated          = errors.New("segwire: stream ended before message was complete")
	ErrTooManySegments        = errors.New("segwire: too many segments")
	ErrTraversalLimitExceeded = errors.New("segwire: message exceeds traversal limit")
	ErrWriteFailed            = errors.New("segwire: write failed")
	ErrNoSegments             = errors.New("segwire: message has no segments")
	ErrSegmentOverflow        = errors.New("segwire: segment cursor past end of buffer")
	ErrInvalidOptions         = errors.New("segwire: invalid options")
)

// ReaderOptions bounds what a decoder is willing to accept.
type ReaderOptions struct {
	// TraversalLimitInWords caps the total body size of a message.
	TraversalLimitInWords uint64
	// NestingLimit is not enforced by the framing layer; it is carried for
	// readers built on top of the decoded segments.
	NestingLimit int
}

// DefaultReaderOptions returns the limits used when callers have no better
// figure for their peer.
func DefaultReaderOptions() ReaderOptions {
	return ReaderOptions{
		TraversalLimitInWords: DefaultTraversalLimitInWords,
		NestingLimit:          DefaultNestingLimit,
	}
}

func (o ReaderOptions) Validate() error {
	if o.TraversalLimitInWords == 0 {
		return fmt.Errorf("%w: traversal limit must be positive", ErrInvalidOptions)
	}
	if o.NestingLimit < 0 {
		return fmt.Errorf("%w: negative nesting limit %d", ErrInvalidOptions, o.NestingLimit)
	}
	return nil
}

// HeaderSizeInBytes is the length of the segment table for count segments.
func HeaderSizeInBytes(count int) int {
	return common.TableEntries(count) * common.BytesPerEntry
}

// TruncatedError reports a source that ran dry before a required read
// completed. It matches ErrReadTruncated and unwraps to the source's error,
// which is io.EOF when nothing at all was read.
type TruncatedError struct {
	Stage string
	Want  int
	Got   int
	Err   error
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("segwire: reading %s: got %d of %d bytes: %v", e.Stage, e.Got, e.Want, e.Err)
}

func (e *TruncatedError) Is(target error) bool { return target == ErrReadTruncated }
func (e *TruncatedError) Unwrap() error        { return e.Err }

// WriteError carries the sink's error untouched. It matches ErrWriteFailed.
type WriteError struct {
	Stage string
	Err   error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("segwire: writing %s: %v", e.Stage, e.Err)
}

func (e *WriteError) Is(target error) bool { return target == ErrWriteFailed }
func (e *WriteError) Unwrap() error        { return e.Err }
