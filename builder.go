package segwire

import (
	"fmt"
	"io"

	"github.com/rawbytedev/segwire/internal/common"
)

// AllocationStrategy decides how large each new builder segment is.
type AllocationStrategy int

const (
	// GrowHeuristically makes each new segment at least as large as all
	// previous segments combined, keeping the segment count logarithmic.
	GrowHeuristically AllocationStrategy = iota
	// FixedSize makes every segment FirstSegmentWords long unless a single
	// allocation needs more.
	FixedSize
)

const DefaultFirstSegmentWords = 1024

type BuilderOptions struct {
	FirstSegmentWords int
	Allocation        AllocationStrategy
}

func DefaultBuilderOptions() BuilderOptions {
	return BuilderOptions{FirstSegmentWords: DefaultFirstSegmentWords, Allocation: GrowHeuristically}
}

// SegmentBuilder is a fixed-capacity segment with a cursor counting the words
// handed out so far.
type SegmentBuilder struct {
	buf []byte
	pos int
}

// NewSegmentBuilder returns an empty segment with room for capWords words.
func NewSegmentBuilder(capWords int) *SegmentBuilder {
	return &SegmentBuilder{buf: make([]byte, capWords*BytesPerWord)}
}

// Bytes returns the whole backing buffer, including unallocated capacity.
func (s *SegmentBuilder) Bytes() []byte { return s.buf }

// Len is the cursor: the number of words allocated.
func (s *SegmentBuilder) Len() int { return s.pos }

// Cap is the segment capacity in words.
func (s *SegmentBuilder) Cap() int { return len(s.buf) / BytesPerWord }

// Allocate reserves words at the cursor and returns their word offset.
// ok is false when the segment is too full.
func (s *SegmentBuilder) Allocate(words int) (offset int, ok bool) {
	if words < 0 || words > s.Cap()-s.pos {
		return 0, false
	}
	offset = s.pos
	s.pos += words
	return offset, true
}

// SetWord stores v at word i, which must already be allocated.
func (s *SegmentBuilder) SetWord(i int, v uint64) error {
	if i < 0 || i >= s.pos {
		return fmt.Errorf("segwire: word %d outside allocated range [0,%d)", i, s.pos)
	}
	common.WriteU64(s.buf, i*BytesPerWord, v)
	return nil
}

// Word returns allocated word i.
func (s *SegmentBuilder) Word(i int) (uint64, bool) {
	if i < 0 || i >= s.pos {
		return 0, false
	}
	return common.ReadU64(s.buf, i*BytesPerWord), true
}

// Builder hands out word-aligned space across as many segments as needed.
type Builder struct {
	opts     BuilderOptions
	segments []*SegmentBuilder
	total    int
}

func NewBuilder(opts BuilderOptions) *Builder {
	if opts.FirstSegmentWords <= 0 {
		opts.FirstSegmentWords = DefaultFirstSegmentWords
	}
	return &Builder{opts: opts}
}

// Allocate reserves words words in the last segment, opening a new one when
// it does not fit. It fails once a message would need MaxSegments segments.
func (b *Builder) Allocate(words int) (segment, offset int, err error) {
	if words < 0 {
		return 0, 0, fmt.Errorf("segwire: negative allocation %d", words)
	}
	if n := len(b.segments); n > 0 {
		if off, ok := b.segments[n-1].Allocate(words); ok {
			b.total += words
			return n - 1, off, nil
		}
	}
	if len(b.segments) >= MaxSegments-1 {
		return 0, 0, fmt.Errorf("%w: builder cannot open segment %d", ErrTooManySegments, len(b.segments))
	}
	size := b.nextSegmentWords()
	if size < words {
		size = words
	}
	seg := NewSegmentBuilder(size)
	off, _ := seg.Allocate(words)
	b.segments = append(b.segments, seg)
	b.total += words
	return len(b.segments) - 1, off, nil
}

func (b *Builder) nextSegmentWords() int {
	if len(b.segments) == 0 || b.opts.Allocation == FixedSize {
		return b.opts.FirstSegmentWords
	}
	capacity := 0
	for _, s := range b.segments {
		capacity += s.Cap()
	}
	return capacity
}

// Segment returns builder segment i.
func (b *Builder) Segment(i int) (*SegmentBuilder, bool) {
	if i < 0 || i >= len(b.segments) {
		return nil, false
	}
	return b.segments[i], true
}

func (b *Builder) NumSegments() int { return len(b.segments) }

// TotalWords is the number of words allocated across all segments.
func (b *Builder) TotalWords() int { return b.total }

// Segments returns the segments in allocation order, ready for WriteMessage.
// A builder that never allocated yields one empty segment, since a message
// always has a root segment.
func (b *Builder) Segments() []OutSegment {
	if len(b.segments) == 0 {
		b.segments = append(b.segments, NewSegmentBuilder(b.opts.FirstSegmentWords))
	}
	out := make([]OutSegment, len(b.segments))
	for i, s := range b.segments {
		out[i] = s
	}
	return out
}

// WriteTo frames the builder's segments onto w.
func (b *Builder) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	err := WriteMessage(cw, b.Segments())
	return cw.n, err
}
