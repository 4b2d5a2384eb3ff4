package segwire

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/rawbytedev/segwire/internal/common"
)

// OutSegment is a segment handed to the encoder by a message builder.
// Only the first Len() words of Bytes() are written; anything past the
// cursor is spare capacity.
type OutSegment interface {
	Bytes() []byte
	Len() int
}

// checkSegments validates segs before a single byte goes to the sink.
func checkSegments(segs []OutSegment) error {
	if len(segs) == 0 {
		return ErrNoSegments
	}
	if len(segs) >= MaxSegments {
		return fmt.Errorf("%w: %d segments, limit %d", ErrTooManySegments, len(segs), MaxSegments-1)
	}
	for i, s := range segs {
		pos := s.Len()
		if pos < 0 || uint64(pos) > math.MaxUint32 || pos*BytesPerWord > len(s.Bytes()) {
			return fmt.Errorf("%w: segment %d has %d words in a %d byte buffer", ErrSegmentOverflow, i, pos, len(s.Bytes()))
		}
	}
	return nil
}

// encodeTable builds the segment table. The trailing pad entry, present when
// the segment count is even, is left zero.
func encodeTable(segs []OutSegment) []byte {
	table := make([]byte, HeaderSizeInBytes(len(segs)))
	common.WriteU32(table, 0, uint32(len(segs)-1))
	for i, s := range segs {
		common.WriteU32(table, (i+1)*common.BytesPerEntry, uint32(s.Len()))
	}
	return table
}

// WriteMessage frames segs onto w: the table, then each segment's populated
// words in order. Sink errors come back as *WriteError wrapping the sink's
// error; nothing is retried.
func WriteMessage(w io.Writer, segs []OutSegment) error {
	if err := checkSegments(segs); err != nil {
		return err
	}
	if _, err := w.Write(encodeTable(segs)); err != nil {
		return &WriteError{Stage: "segment table", Err: err}
	}
	for i, s := range segs {
		n := s.Len() * BytesPerWord
		if n == 0 {
			continue
		}
		if _, err := w.Write(s.Bytes()[:n]); err != nil {
			return &WriteError{Stage: fmt.Sprintf("segment %d", i), Err: err}
		}
	}
	return nil
}

// Marshal returns the framed form of segs.
func Marshal(segs []OutSegment) ([]byte, error) {
	if err := checkSegments(segs); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.Grow(int(SerializedSizeInWords(segs)) * BytesPerWord)
	if err := WriteMessage(&buf, segs); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SerializedSizeInWords is the framed size of segs, table included.
func SerializedSizeInWords(segs []OutSegment) uint64 {
	total := uint64(HeaderSizeInBytes(len(segs)) / BytesPerWord)
	for _, s := range segs {
		total += uint64(s.Len())
	}
	return total
}
