// Blockgen writes input files for blockrev.
//
// Examples:
//
//	go run ./cmd/blockgen --out .data/small.txt --blocks 8 --block-size 64
//	go run ./cmd/blockgen --out .data/large.bin --blocks 16 --block-size 64Mi --binary
//
// Every block starts with its index ("<3>") and is otherwise a letter run, so
// a rewritten file shows which block went where and whether it was reversed.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/calvinalkan/blockrev/internal/bytesize"
	"github.com/calvinalkan/blockrev/internal/gen"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		out       string
		blocks    int
		blockSize string
		binary    bool
		quiet     bool
	)

	cmd := &cobra.Command{
		Use:           "blockgen --out FILE --blocks N --block-size SIZE",
		Short:         "Generate a file of labelled blocks",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			size, err := bytesize.Parse(blockSize)
			if err != nil {
				return fmt.Errorf("invalid --block-size: %w", err)
			}

			spec := gen.Spec{Blocks: blocks, BlockSize: size.Int(), Binary: binary}

			start := time.Now()

			err = gen.WriteFile(out, spec)
			if err != nil {
				return err
			}

			if !quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s: blocks=%d block_size=%d size=%s duration=%v\n",
					out, spec.Blocks, spec.BlockSize, bytesize.ByteSize(spec.Size()), time.Since(start))
			}

			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&out, "out", "", "output file (required)")
	f.IntVar(&blocks, "blocks", 8, "number of blocks")
	f.StringVar(&blockSize, "block-size", "64", `block size, e.g. "4Ki" or "64Mi"`)
	f.BoolVar(&binary, "binary", false, "omit the trailing newline")
	f.BoolVarP(&quiet, "quiet", "q", false, "print nothing on success")

	_ = cmd.MarkFlagRequired("out")

	return cmd
}
