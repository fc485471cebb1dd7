package commands

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"syscall"
	"time"

	"github.com/calvinalkan/blockrev"
	"github.com/calvinalkan/blockrev/internal/bytesize"
	"github.com/calvinalkan/blockrev/internal/config"
	"github.com/calvinalkan/blockrev/internal/logger"
	"github.com/calvinalkan/blockrev/internal/metrics"
	"github.com/calvinalkan/blockrev/internal/output"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type rewriteFlags struct {
	configFile      string
	seed            uint64
	mode            string
	binary          bool
	workers         int
	queueDepth      int
	maxBlockSize    string
	logLevel        string
	logFormat       string
	metricsTextfile string
	output          string
}

func runRewrite(cmd *cobra.Command, args []string, flags *rewriteFlags) error {
	path := args[0]

	blocks, err := parseCount("N", args[1])
	if err != nil {
		return err
	}

	iterations, err := parseCount("K", args[2])
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(flags.output)
	if err != nil {
		return err
	}

	cfg, err := config.Load(flags.configFile)
	if err != nil {
		return err
	}

	err = applyFlags(cmd.Flags(), flags, cfg)
	if err != nil {
		return err
	}

	log, closeLog, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return err
	}

	defer func() { _ = closeLog() }()

	runID := uuid.NewString()
	log = log.With("run_id", runID)

	mode, _ := blockrev.ParseMode(cfg.Pipeline.Mode)

	cancel := blockrev.NewCancelFlag()

	stop := blockrev.NotifyOnInterrupt(cancel, os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []blockrev.Option{
		blockrev.WithMode(mode),
		blockrev.WithIOWorkers(cfg.Pipeline.Workers),
		blockrev.WithQueueDepth(cfg.Pipeline.QueueDepth),
		blockrev.WithMaxBlockSize(cfg.Pipeline.MaxBlockSize.Int()),
		blockrev.WithCancelFlag(cancel),
		blockrev.WithLogger(log),
	}

	if cfg.Pipeline.Binary {
		opts = append(opts, blockrev.WithBinary())
	}

	if cfg.Pipeline.Seed != nil {
		opts = append(opts, blockrev.WithSeed(*cfg.Pipeline.Seed))
	}

	var reg *prometheus.Registry
	if cfg.Metrics.Textfile != "" {
		reg = prometheus.NewRegistry()
		opts = append(opts, blockrev.WithMetrics(metrics.New(reg)))
	}

	start := time.Now()
	stats, runErr := blockrev.RewriteFile(cmd.Context(), path, blocks, iterations, opts...)
	elapsed := time.Since(start)

	if reg != nil {
		err = metrics.WriteTextfile(cfg.Metrics.Textfile, reg)
		if err != nil {
			log.Error("metrics export failed", "error", err)
		}
	}

	if runErr != nil {
		return runErr
	}

	return output.NewPrinter(cmd.OutOrStdout(), format).Print(newSummary(runID, path, mode, stats, elapsed))
}

// parseCount parses N or K. Values below the useful range are passed on;
// the run reports them as skipped.
func parseCount(name, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, s, err)
	}

	return n, nil
}

// applyFlags copies explicitly set flags over the loaded configuration.
func applyFlags(fs *pflag.FlagSet, flags *rewriteFlags, cfg *config.Config) error {
	if fs.Changed("seed") {
		seed := flags.seed
		cfg.Pipeline.Seed = &seed
	}

	if fs.Changed("mode") {
		cfg.Pipeline.Mode = flags.mode
	}

	if fs.Changed("binary") {
		cfg.Pipeline.Binary = flags.binary
	}

	if fs.Changed("workers") {
		cfg.Pipeline.Workers = flags.workers
	}

	if fs.Changed("queue-depth") {
		cfg.Pipeline.QueueDepth = flags.queueDepth
	}

	if fs.Changed("max-block-size") {
		size, err := bytesize.Parse(flags.maxBlockSize)
		if err != nil {
			return fmt.Errorf("invalid --max-block-size: %w", err)
		}

		cfg.Pipeline.MaxBlockSize = size
	}

	if fs.Changed("log-level") {
		cfg.Logging.Level = flags.logLevel
	}

	if fs.Changed("log-format") {
		cfg.Logging.Format = flags.logFormat
	}

	if fs.Changed("metrics-textfile") {
		cfg.Metrics.Textfile = flags.metricsTextfile
	}

	config.ApplyDefaults(cfg)

	err := config.Validate(cfg)
	if err != nil {
		return errors.Join(errors.New("invalid flags"), err)
	}

	return nil
}

// summary is the printed result of one run.
type summary struct {
	RunID              string `json:"run_id" yaml:"run_id"`
	File               string `json:"file" yaml:"file"`
	Mode               string `json:"mode" yaml:"mode"`
	BlockSize          int    `json:"block_size" yaml:"block_size"`
	Blocks             int    `json:"blocks" yaml:"blocks"`
	Iterations         int    `json:"iterations" yaml:"iterations"`
	Reads              int    `json:"reads" yaml:"reads"`
	Writes             int    `json:"writes" yaml:"writes"`
	Syncs              int    `json:"syncs" yaml:"syncs"`
	Reversals          int    `json:"reversals" yaml:"reversals"`
	IntermediateReads  int    `json:"intermediate_reads" yaml:"intermediate_reads"`
	IntermediateWrites int    `json:"intermediate_writes" yaml:"intermediate_writes"`
	Skipped            bool   `json:"skipped" yaml:"skipped"`
	Cancelled          bool   `json:"cancelled" yaml:"cancelled"`
	CancelResult       string `json:"cancel_result,omitempty" yaml:"cancel_result,omitempty"`
	ElapsedMS          int64  `json:"elapsed_ms" yaml:"elapsed_ms"`
}

func newSummary(runID, path string, mode blockrev.Mode, s blockrev.Stats, elapsed time.Duration) summary {
	out := summary{
		RunID:              runID,
		File:               path,
		Mode:               mode.String(),
		BlockSize:          s.BlockSize,
		Blocks:             s.BlockCount,
		Iterations:         s.Iterations,
		Reads:              s.Reads,
		Writes:             s.Writes,
		Syncs:              s.Syncs,
		Reversals:          s.Reversals,
		IntermediateReads:  s.IntermediateReads,
		IntermediateWrites: s.IntermediateWrites,
		Skipped:            s.Skipped,
		Cancelled:          s.Cancelled,
		ElapsedMS:          elapsed.Milliseconds(),
	}

	if s.Cancel != blockrev.CancelNone {
		out.CancelResult = s.Cancel.String()
	}

	return out
}

// Pairs implements output.Pairer.
func (s summary) Pairs() [][2]string {
	pairs := [][2]string{
		{"run", s.RunID},
		{"file", s.File},
		{"mode", s.Mode},
		{"block size", bytesize.ByteSize(s.BlockSize).String()},
		{"blocks", strconv.Itoa(s.Blocks)},
		{"iterations", strconv.Itoa(s.Iterations)},
		{"reads", strconv.Itoa(s.Reads)},
		{"writes", strconv.Itoa(s.Writes)},
		{"syncs", strconv.Itoa(s.Syncs)},
		{"reversals", strconv.Itoa(s.Reversals)},
		{"elapsed", (time.Duration(s.ElapsedMS) * time.Millisecond).String()},
	}

	switch {
	case s.Skipped:
		pairs = append(pairs, [2]string{"status", "skipped"})
	case s.Cancelled:
		pairs = append(pairs, [2]string{"status", "cancelled (" + s.CancelResult + ")"})
	default:
		pairs = append(pairs, [2]string{"status", "completed"})
	}

	return pairs
}
