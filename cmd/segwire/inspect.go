package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rawbytedev/segwire"
	"github.com/rawbytedev/segwire/zc"
)

var (
	inspectCmd = &cobra.Command{
		Use:   "inspect FILE",
		Short: "Print the segment table of every message in FILE",
		Args:  cobra.ExactArgs(1),
		RunE:  inspect,
	}
	inspectZstd bool
	inspectDump bool
)

func init() {
	flags := inspectCmd.Flags()
	flags.BoolVar(&inspectZstd, "zstd", false, "FILE is zstd-compressed")
	flags.BoolVar(&inspectDump, "dump", false, "also print every word of every segment")
}

func inspect(cmd *cobra.Command, args []string) error {
	src, err := openMessages(args[0], inspectZstd || cfg.Compression.Enabled)
	if err != nil {
		return err
	}
	defer src.close()

	out := cmd.OutOrStdout()
	return src.each(func(i int, msg *segwire.Message) error {
		fmt.Fprintf(out, "message %d: %d segments, %d words (%d framed)\n",
			i, msg.NumSegments(), msg.TotalWords(), msg.SizeInWords())
		for _, s := range msg.Segments() {
			fmt.Fprintf(out, "  segment %d: offset %d, %d words\n", s.Index(), s.Offset(), s.Len())
			if !inspectDump {
				continue
			}
			words, err := zc.Words(s.Bytes(), zc.Options{UnsafePrimitives: true, CheckAlignment: true})
			if err != nil {
				return err
			}
			for j, w := range words {
				fmt.Fprintf(out, "    %6d: %016x\n", j, w)
			}
		}
		return nil
	})
}
