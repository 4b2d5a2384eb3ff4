package segwire

import (
	"fmt"
	"io"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/rawbytedev/segwire/internal/common"
)

const (
	stageHeader = "segment table"
	stageSizes  = "segment sizes"
	stageBody   = "message body"
)

// segmentTable is a decoded framing header.
type segmentTable struct {
	sizes      []uint32
	totalWords uint64
}

// headerBytes is the table length on the wire.
func (t *segmentTable) headerBytes() int { return HeaderSizeInBytes(len(t.sizes)) }

// parseFirstWord decodes the segment count and the size of segment 0.
// The count is checked here, before any allocation depends on it.
func parseFirstWord(word []byte) (count int, seg0 uint32, err error) {
	raw := common.ReadU32(word, 0)
	// count = raw+1; compare on raw so a 0xFFFFFFFF field cannot wrap to 0.
	if raw >= MaxSegments-1 {
		logrus.Debugf("segwire: rejecting message declaring %d segments", uint64(raw)+1)
		return 0, 0, fmt.Errorf("%w: declared %d, limit %d", ErrTooManySegments, uint64(raw)+1, MaxSegments-1)
	}
	return int(raw) + 1, common.ReadU32(word, common.BytesPerEntry), nil
}

// extraSizeBytes is how many table bytes follow the first word: the sizes of
// segments 1..count-1 plus the pad entry when count is even.
func extraSizeBytes(count int) int {
	return common.BytesPerEntry * (count &^ 1)
}

// buildTable decodes the remaining sizes and enforces the traversal limit.
func buildTable(count int, seg0 uint32, extra []byte, opts ReaderOptions) (*segmentTable, error) {
	t := &segmentTable{sizes: make([]uint32, count)}
	t.sizes[0] = seg0
	t.totalWords = uint64(seg0)
	for i := 1; i < count; i++ {
		sz := common.ReadU32(extra, (i-1)*common.BytesPerEntry)
		t.sizes[i] = sz
		t.totalWords += uint64(sz)
	}
	// Checked before the body is allocated.
	if t.totalWords > opts.TraversalLimitInWords || t.totalWords > math.MaxInt/BytesPerWord {
		logrus.Debugf("segwire: rejecting message of %d words (limit %d)", t.totalWords, opts.TraversalLimitInWords)
		return nil, fmt.Errorf("%w: %d words declared, limit %d", ErrTraversalLimitExceeded, t.totalWords, opts.TraversalLimitInWords)
	}
	return t, nil
}

// readFull fills buf from r, retrying short reads until it is full.
func readFull(r io.Reader, buf []byte, stage string) error {
	n, err := io.ReadFull(r, buf)
	if err == nil {
		return nil
	}
	// A clean EOF is only clean before the first byte of a message.
	if err == io.EOF && stage != stageHeader {
		err = io.ErrUnexpectedEOF
	}
	return &TruncatedError{Stage: stage, Want: len(buf), Got: n, Err: err}
}

// ReadMessage reads exactly one framed message from r. The body is read
// eagerly into a single buffer which all returned segments share.
//
// Reads happen in a fixed order: first word, remaining sizes, body. Nothing is
// returned on failure; the stream position is then undefined.
func ReadMessage(r io.Reader, opts ReaderOptions) (*Message, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	var first [BytesPerWord]byte
	if err := readFull(r, first[:], stageHeader); err != nil {
		return nil, err
	}
	count, seg0, err := parseFirstWord(first[:])
	if err != nil {
		return nil, err
	}

	var extra []byte
	if n := extraSizeBytes(count); n > 0 {
		extra = make([]byte, n)
		if err := readFull(r, extra, stageSizes); err != nil {
			return nil, err
		}
	}
	table, err := buildTable(count, seg0, extra, opts)
	if err != nil {
		return nil, err
	}

	arena := make([]byte, table.totalWords*BytesPerWord)
	if err := readFull(r, arena, stageBody); err != nil {
		return nil, err
	}
	return newMessage(arena, table.sizes, opts), nil
}

// ReadMessageFromBytes decodes the message at the start of data without
// copying its body: the segments alias data. The bytes after the message are
// returned so concatenated messages can be walked.
func ReadMessageFromBytes(data []byte, opts ReaderOptions) (*Message, []byte, error) {
	if err := opts.Validate(); err != nil {
		return nil, nil, err
	}
	if len(data) < BytesPerWord {
		err := io.ErrUnexpectedEOF
		if len(data) == 0 {
			err = io.EOF
		}
		return nil, nil, &TruncatedError{Stage: stageHeader, Want: BytesPerWord, Got: len(data), Err: err}
	}
	count, seg0, err := parseFirstWord(data)
	if err != nil {
		return nil, nil, err
	}

	n := extraSizeBytes(count)
	rest := data[BytesPerWord:]
	if len(rest) < n {
		return nil, nil, &TruncatedError{Stage: stageSizes, Want: n, Got: len(rest), Err: io.ErrUnexpectedEOF}
	}
	table, err := buildTable(count, seg0, rest[:n], opts)
	if err != nil {
		return nil, nil, err
	}

	rest = data[table.headerBytes():]
	body := table.totalWords * BytesPerWord
	if uint64(len(rest)) < body {
		return nil, nil, &TruncatedError{Stage: stageBody, Want: int(body), Got: len(rest), Err: io.ErrUnexpectedEOF}
	}
	arena := rest[:body:body]
	return newMessage(arena, table.sizes, opts), rest[body:], nil
}
