// Package commands implements the blockrev command line.
package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Execute runs the root command with the process arguments.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd builds the command tree. Every call returns fresh flag state.
func NewRootCmd() *cobra.Command {
	var flags rewriteFlags

	cmd := &cobra.Command{
		Use:   "blockrev FILE N K",
		Short: "Rewrite a file in random block order, reversing every block",
		Long: `blockrev splits FILE into N equal blocks and performs K rewrites. Each
rewrite reads a random block, reverses its bytes in memory and writes it
to another random block. Reads, writes and reversals of three rotating
buffers overlap, and every write is made durable before its buffer is
reused.

The last byte of FILE (the trailing newline of a text file) is left in
place unless --binary is given. Interrupting with Ctrl-C stops the run
at the next checkpoint without corrupting blocks.

Configuration is read from --config, or $XDG_CONFIG_HOME/blockrev/config.yaml
if present. Every key can be overridden with BLOCKREV_<SECTION>_<KEY>, for
example BLOCKREV_PIPELINE_MODE=sync. Flags override both.`,
		Example: `  # 8 blocks, 20 rewrites, reproducible
  blockrev data.txt 8 20 --seed 42

  # Compare with inline I/O
  blockrev data.bin 16 100 --binary --mode sync`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRewrite(cmd, args, &flags)
		},
	}

	cmd.PersistentFlags().StringVar(&flags.configFile, "config", "", "config file (default: $XDG_CONFIG_HOME/blockrev/config.yaml)")

	f := cmd.Flags()
	f.Uint64Var(&flags.seed, "seed", 0, "seed for block selection (default: random)")
	f.StringVar(&flags.mode, "mode", "", "I/O mode: async or sync")
	f.BoolVar(&flags.binary, "binary", false, "split the whole file, including the last byte")
	f.IntVar(&flags.workers, "workers", 0, "I/O goroutines in async mode")
	f.IntVar(&flags.queueDepth, "queue-depth", 0, "submission queue capacity")
	f.StringVar(&flags.maxBlockSize, "max-block-size", "", `maximum buffer size, e.g. "64Mi"`)
	f.StringVar(&flags.logLevel, "log-level", "", "log level: DEBUG, INFO, WARN, ERROR")
	f.StringVar(&flags.logFormat, "log-format", "", "log format: text or json")
	f.StringVar(&flags.metricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this file after the run")
	f.StringVarP(&flags.output, "output", "o", "auto", "summary format: auto, table, json, yaml")

	cmd.AddCommand(newConfigCmd(&flags.configFile))
	cmd.AddCommand(newVersionCmd())

	cmd.CompletionOptions.DisableDefaultCmd = true

	return cmd
}
