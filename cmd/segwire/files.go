package main

import (
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/rawbytedev/segwire"
	"github.com/rawbytedev/segwire/pkg/zframe"
)

// segmentsFromFiles turns each file into one segment, zero-padded to a word
// boundary.
func segmentsFromFiles(paths []string) ([]segwire.OutSegment, error) {
	if len(paths) >= segwire.MaxSegments {
		return nil, errors.Errorf("%d files, at most %d segments fit in a message", len(paths), segwire.MaxSegments-1)
	}
	segs := make([]segwire.OutSegment, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", p)
		}
		words := (len(data) + segwire.BytesPerWord - 1) / segwire.BytesPerWord
		s := segwire.NewSegmentBuilder(words)
		s.Allocate(words)
		copy(s.Bytes(), data)
		segs = append(segs, s)
	}
	return segs, nil
}

// messageSource yields successive messages from a framed or zstd file.
type messageSource struct {
	next  func() (*segwire.Message, error)
	close func() error
}

func openMessages(path string, compressed bool) (*messageSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	opts := cfg.ReaderOptions()
	if !compressed {
		return &messageSource{
			next:  func() (*segwire.Message, error) { return segwire.ReadMessage(f, opts) },
			close: f.Close,
		}, nil
	}
	zr, err := zframe.NewReader(f, opts)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &messageSource{
		next: zr.ReadMessage,
		close: func() error {
			zr.Close()
			return f.Close()
		},
	}, nil
}

// each calls fn for every message until a clean end of input.
func (s *messageSource) each(fn func(i int, msg *segwire.Message) error) error {
	for i := 0; ; i++ {
		msg, err := s.next()
		if err != nil {
			if i > 0 && errors.Is(err, io.EOF) {
				return nil
			}
			return errors.Wrapf(err, "message %d", i)
		}
		if err := fn(i, msg); err != nil {
			return err
		}
	}
}
