package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rawbytedev/segwire"
	"github.com/rawbytedev/segwire/pkg/zframe"
)

var (
	packCmd = &cobra.Command{
		Use:   "pack -o OUT FILE...",
		Short: "Frame FILEs as the segments of one message",
		Args:  cobra.MinimumNArgs(1),
		RunE:  pack,
	}
	packOut  string
	packZstd bool

	unpackCmd = &cobra.Command{
		Use:   "unpack FILE",
		Short: "Write every segment of every message in FILE to its own file",
		Args:  cobra.ExactArgs(1),
		RunE:  unpack,
	}
	unpackDir  string
	unpackZstd bool
)

func init() {
	flags := packCmd.Flags()
	flags.StringVarP(&packOut, "output", "o", "", "output file")
	flags.BoolVar(&packZstd, "zstd", false, "compress the output with zstd")
	_ = packCmd.MarkFlagRequired("output")

	flags = unpackCmd.Flags()
	flags.StringVarP(&unpackDir, "dir", "d", ".", "output directory")
	flags.BoolVar(&unpackZstd, "zstd", false, "FILE is zstd-compressed")
}

func pack(_ *cobra.Command, args []string) error {
	segs, err := segmentsFromFiles(args)
	if err != nil {
		return err
	}
	f, err := os.Create(packOut)
	if err != nil {
		return errors.Wrapf(err, "creating %s", packOut)
	}
	if err := writePacked(f, segs, packZstd || cfg.Compression.Enabled); err != nil {
		f.Close()
		return err
	}
	logrus.Infof("packed %d segments (%d words) into %s", len(segs), segwire.SerializedSizeInWords(segs), packOut)
	return f.Close()
}

func writePacked(w io.Writer, segs []segwire.OutSegment, compressed bool) error {
	if !compressed {
		return segwire.WriteMessage(w, segs)
	}
	zw, err := zframe.NewWriter(w, cfg.ZframeOptions())
	if err != nil {
		return err
	}
	if err := zw.WriteMessage(segs); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

// segmentFileName names the file unpack writes for one segment.
func segmentFileName(msg, seg int) string {
	return fmt.Sprintf("%d-%d.bin", msg, seg)
}

func unpack(_ *cobra.Command, args []string) error {
	if err := os.MkdirAll(unpackDir, 0o755); err != nil {
		return errors.Wrapf(err, "creating %s", unpackDir)
	}
	src, err := openMessages(args[0], unpackZstd || cfg.Compression.Enabled)
	if err != nil {
		return err
	}
	defer src.close()

	return src.each(func(i int, msg *segwire.Message) error {
		for _, s := range msg.Segments() {
			name := filepath.Join(unpackDir, segmentFileName(i, s.Index()))
			if err := os.WriteFile(name, s.Bytes(), 0o644); err != nil {
				return errors.Wrapf(err, "writing %s", name)
			}
			logrus.Debugf("wrote %s (%d words)", name, s.Len())
		}
		return nil
	})
}
