// Package zframe carries framed messages inside a zstd stream.
//
// The frame format is unchanged; the whole byte stream (tables and bodies) is
// compressed. Each WriteMessage flushes a zstd block so a reader on the other
// end of a connection can decode the message without waiting for more.
package zframe

import (
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	"github.com/rawbytedev/segwire"
)

// Options configures the compressing side.
type Options struct {
	// Level is a zstd level (1-22). Zero picks the library default.
	Level int
}

// Writer compresses framed messages onto an underlying writer.
type Writer struct {
	enc *zstd.Encoder
}

func NewWriter(w io.Writer, opts Options) (*Writer, error) {
	var zopts []zstd.EOption
	if opts.Level != 0 {
		zopts = append(zopts, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(opts.Level)))
	}
	enc, err := zstd.NewWriter(w, zopts...)
	if err != nil {
		return nil, errors.Wrap(err, "zframe: creating encoder")
	}
	return &Writer{enc: enc}, nil
}

// WriteMessage frames segs into the compressed stream and flushes it.
func (w *Writer) WriteMessage(segs []segwire.OutSegment) error {
	if err := segwire.WriteMessage(w.enc, segs); err != nil {
		return err
	}
	if err := w.enc.Flush(); err != nil {
		return &segwire.WriteError{Stage: "zstd flush", Err: err}
	}
	return nil
}

// Close ends the zstd stream. It does not close the underlying writer.
func (w *Writer) Close() error {
	return w.enc.Close()
}

// Reader decompresses and decodes framed messages.
type Reader struct {
	dec  *zstd.Decoder
	opts segwire.ReaderOptions
}

func NewReader(r io.Reader, opts segwire.ReaderOptions) (*Reader, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, errors.Wrap(err, "zframe: creating decoder")
	}
	return &Reader{dec: dec, opts: opts}, nil
}

// ReadMessage decodes the next message. The traversal limit applies to the
// decompressed size, so a small compressed input cannot force a large
// allocation past it.
func (r *Reader) ReadMessage() (*segwire.Message, error) {
	return segwire.ReadMessage(r.dec, r.opts)
}

func (r *Reader) Close() {
	r.dec.Close()
}

// Compress returns the zstd form of an already framed message.
func Compress(framed []byte, opts Options) ([]byte, error) {
	var zopts []zstd.EOption
	if opts.Level != 0 {
		zopts = append(zopts, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(opts.Level)))
	}
	enc, err := zstd.NewWriter(nil, zopts...)
	if err != nil {
		return nil, errors.Wrap(err, "zframe: creating encoder")
	}
	defer enc.Close()
	return enc.EncodeAll(framed, nil), nil
}
