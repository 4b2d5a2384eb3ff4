package segwire

import (
	"io"

	"github.com/rawbytedev/segwire/internal/common"
)

// Segment is a read-only view of one segment inside a Message's buffer.
// It never owns bytes; it stays valid as long as the Message does.
type Segment struct {
	index  int
	offset uint64 // words from the start of the arena
	data   []byte
}

// Index is the segment's position in its message. Segment 0 holds the root.
func (s Segment) Index() int { return s.index }

// Offset is the segment's start within the message body, in words.
func (s Segment) Offset() uint64 { return s.offset }

// Len returns the segment size in words.
func (s Segment) Len() int { return len(s.data) / BytesPerWord }

// Bytes returns the segment body. The slice aliases the message buffer and is
// capacity-clamped, so appending to it never spills into the next segment.
func (s Segment) Bytes() []byte { return s.data }

// Word returns word i of the segment. ok is false when i is out of range.
func (s Segment) Word(i int) (v uint64, ok bool) {
	if i < 0 || i >= s.Len() {
		return 0, false
	}
	return common.ReadU64(s.data, i*BytesPerWord), true
}

// Message is a decoded set of segments sharing one backing buffer.
type Message struct {
	arena    []byte
	segments []Segment
	opts     ReaderOptions
}

// newMessage partitions arena into consecutive segments of the given word sizes.
// The caller guarantees the sizes sum to len(arena)/8.
func newMessage(arena []byte, sizes []uint32, opts ReaderOptions) *Message {
	m := &Message{
		arena:    arena,
		segments: make([]Segment, len(sizes)),
		opts:     opts,
	}
	var off uint64
	for i, sz := range sizes {
		start := off * BytesPerWord
		end := start + uint64(sz)*BytesPerWord
		m.segments[i] = Segment{
			index:  i,
			offset: off,
			data:   arena[start:end:end],
		}
		off += uint64(sz)
	}
	return m
}

func (m *Message) NumSegments() int { return len(m.segments) }

// Segment returns segment i and whether it exists.
func (m *Message) Segment(i int) (Segment, bool) {
	if i < 0 || i >= len(m.segments) {
		return Segment{}, false
	}
	return m.segments[i], true
}

// Segments returns the segments in wire order. The slice is a copy; the
// segment views still alias the message buffer.
func (m *Message) Segments() []Segment {
	out := make([]Segment, len(m.segments))
	copy(out, m.segments)
	return out
}

// TotalWords is the summed size of all segment bodies.
func (m *Message) TotalWords() uint64 { return uint64(len(m.arena) / BytesPerWord) }

// SizeInWords is the framed size of the message, table included.
func (m *Message) SizeInWords() uint64 {
	return uint64(HeaderSizeInBytes(len(m.segments))/BytesPerWord) + m.TotalWords()
}

// Arena exposes the single buffer all segments point into.
func (m *Message) Arena() []byte { return m.arena }

// Options returns the limits the message was decoded under.
func (m *Message) Options() ReaderOptions { return m.opts }

// WriteTo re-frames the message onto w.
func (m *Message) WriteTo(w io.Writer) (int64, error) {
	segs := make([]OutSegment, len(m.segments))
	for i := range m.segments {
		segs[i] = m.segments[i]
	}
	cw := &countingWriter{w: w}
	err := WriteMessage(cw, segs)
	return cw.n, err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
