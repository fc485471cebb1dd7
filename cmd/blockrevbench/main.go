// Blockrevbench compares the overlapped and the inline I/O modes of blockrev.
//
// Examples:
//
//	go run ./cmd/blockrevbench --blocks 16 --block-size 64Mi --iterations 64
//	go run ./cmd/blockrevbench --file .data/large.bin --binary --blocks 16 --iterations 64 --out bench.jsonl
//
// Every run starts from a fresh copy of the input, so all modes and repeats
// rewrite identical content. Copying is not part of the measured duration.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/calvinalkan/blockrev"
	"github.com/calvinalkan/blockrev/internal/bytesize"
	"github.com/calvinalkan/blockrev/internal/gen"
	"github.com/calvinalkan/blockrev/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"
)

type benchResult struct {
	Timestamp time.Time `json:"ts"`

	Case  string `json:"case,omitempty"`
	Notes string `json:"notes,omitempty"`

	File       string `json:"file"`
	Mode       string `json:"mode"`
	Blocks     int    `json:"blocks"`
	BlockSize  int    `json:"block_size"`
	Iterations int    `json:"iterations"`
	Workers    int    `json:"workers"`
	Repeat     int    `json:"repeat"`
	Binary     bool   `json:"binary"`

	Duration     time.Duration `json:"duration"`
	MinDuration  time.Duration `json:"min_duration"`
	MeanDuration time.Duration `json:"mean_duration"`
	StdDev       time.Duration `json:"stddev"`
	BytesTotal   uint64        `json:"bytes_total"`
	BytesPerSec  float64       `json:"bytes_per_sec"`
	RewritesPerS float64       `json:"rewrites_per_sec"`

	GoVersion   string `json:"go"`
	GOOS        string `json:"goos"`
	GOARCH      string `json:"goarch"`
	GOMAXPROCS  int    `json:"gomaxprocs"`
	NumCPU      int    `json:"numcpu"`
	VCSRevision string `json:"vcs_revision,omitempty"`
	VCSModified bool   `json:"vcs_modified,omitempty"`
}

type benchFlags struct {
	file            string
	blocks          int
	blockSize       string
	iterations      int
	modes           string
	repeat          int
	seed            uint64
	workers         int
	binary          bool
	quiet           bool
	caseName        string
	notes           string
	out             string
	cpuProfile      string
	metricsTextfile string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &benchFlags{}

	cmd := &cobra.Command{
		Use:           "blockrevbench",
		Short:         "Benchmark blockrev I/O modes",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), flags)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.file, "file", "", "input file (default: generate one from --blocks and --block-size)")
	f.IntVar(&flags.blocks, "blocks", 16, "number of blocks")
	f.StringVar(&flags.blockSize, "block-size", "4Mi", "block size of the generated input")
	f.IntVar(&flags.iterations, "iterations", 64, "block rewrites per run")
	f.StringVar(&flags.modes, "modes", "async,sync", "comma separated I/O modes to compare")
	f.IntVar(&flags.repeat, "repeat", 3, "runs per mode")
	f.Uint64Var(&flags.seed, "seed", 1, "seed for block selection")
	f.IntVar(&flags.workers, "workers", 0, "I/O goroutines in async mode (0=default)")
	f.BoolVar(&flags.binary, "binary", false, "split the whole file")
	f.BoolVarP(&flags.quiet, "quiet", "q", false, "quiet: print only bytes/sec per mode")
	f.StringVar(&flags.caseName, "case", "", "optional short case name to store in JSON output")
	f.StringVar(&flags.notes, "notes", "", "optional freeform notes to store in JSON output")
	f.StringVar(&flags.out, "out", "", "optional JSONL output file to append one result per mode")
	f.StringVar(&flags.cpuProfile, "cpuprofile", "", "write CPU profile to file")
	f.StringVar(&flags.metricsTextfile, "metrics-textfile", "", "write Prometheus metrics of all runs to this file")

	return cmd
}

func run(ctx context.Context, stdout io.Writer, flags *benchFlags) error {
	if flags.repeat <= 0 {
		return fmt.Errorf("--repeat must be >= 1")
	}

	modes, err := parseModes(flags.modes)
	if err != nil {
		return err
	}

	dir, err := os.MkdirTemp("", "blockrevbench-")
	if err != nil {
		return err
	}

	defer func() { _ = os.RemoveAll(dir) }()

	src := flags.file
	if src == "" {
		size, parseErr := bytesize.Parse(flags.blockSize)
		if parseErr != nil {
			return fmt.Errorf("invalid --block-size: %w", parseErr)
		}

		src = filepath.Join(dir, "input")

		err = gen.WriteFile(src, gen.Spec{Blocks: flags.blocks, BlockSize: size.Int(), Binary: flags.binary})
		if err != nil {
			return fmt.Errorf("generate input: %w", err)
		}
	}

	if flags.cpuProfile != "" {
		cpuFile, createErr := os.Create(flags.cpuProfile)
		if createErr != nil {
			return fmt.Errorf("create cpuprofile: %w", createErr)
		}

		err = pprof.StartCPUProfile(cpuFile)
		if err != nil {
			_ = cpuFile.Close()

			return fmt.Errorf("start cpuprofile: %w", err)
		}

		defer func() {
			pprof.StopCPUProfile()

			_ = cpuFile.Close()
		}()
	}

	reg := prometheus.NewRegistry()
	collector := metrics.New(reg)

	work := filepath.Join(dir, "work")

	perMode := make(map[blockrev.Mode]*benchResult, len(modes))

	for _, mode := range modes {
		res, runErr := benchMode(ctx, src, work, mode, flags, collector)
		if runErr != nil {
			return runErr
		}

		perMode[mode] = res

		if flags.out != "" {
			err = appendJSONL(flags.out, res)
			if err != nil {
				return fmt.Errorf("write --out: %w", err)
			}
		}

		if flags.quiet {
			fmt.Fprintf(stdout, "%s %.0f\n", res.Mode, res.BytesPerSec)

			continue
		}

		fmt.Fprintf(stdout, "mode=%s blocks=%d block_size=%d iterations=%d repeat=%d duration=%v min=%v mean=%v stddev=%v MB/s=%.1f rewrites/sec=%.0f\n",
			res.Mode, res.Blocks, res.BlockSize, res.Iterations, res.Repeat,
			res.Duration, res.MinDuration, res.MeanDuration, res.StdDev, res.BytesPerSec/1_000_000, res.RewritesPerS)
	}

	asyncRes, syncRes := perMode[blockrev.ModeAsync], perMode[blockrev.ModeSync]
	if !flags.quiet && asyncRes != nil && syncRes != nil && asyncRes.Duration > 0 {
		fmt.Fprintf(stdout, "speedup async/sync=%.2fx\n", float64(syncRes.Duration)/float64(asyncRes.Duration))
	}

	if flags.metricsTextfile != "" {
		return metrics.WriteTextfile(flags.metricsTextfile, reg)
	}

	return nil
}

func benchMode(ctx context.Context, src, work string, mode blockrev.Mode, flags *benchFlags, m blockrev.Metrics) (*benchResult, error) {
	opts := []blockrev.Option{
		blockrev.WithMode(mode),
		blockrev.WithSeed(flags.seed),
		blockrev.WithMetrics(m),
	}

	if flags.workers > 0 {
		opts = append(opts, blockrev.WithIOWorkers(flags.workers))
	}

	if flags.binary {
		opts = append(opts, blockrev.WithBinary())
	}

	var (
		total   time.Duration
		fastest time.Duration
		stats   blockrev.Stats
		samples = make([]float64, 0, flags.repeat)
	)

	for range flags.repeat {
		err := copyFile(src, work)
		if err != nil {
			return nil, fmt.Errorf("prepare work file: %w", err)
		}

		start := time.Now()

		stats, err = blockrev.RewriteFile(ctx, work, flags.blocks, flags.iterations, opts...)
		if err != nil {
			return nil, fmt.Errorf("%s run: %w", mode, err)
		}

		d := time.Since(start)
		total += d
		samples = append(samples, d.Seconds())

		if fastest == 0 || d < fastest {
			fastest = d
		}

		if stats.Skipped || stats.Cancelled {
			return nil, fmt.Errorf("%s run did not complete (skipped=%v cancelled=%v)", mode, stats.Skipped, stats.Cancelled)
		}
	}

	mean, stddev := stat.MeanStdDev(samples, nil)
	if len(samples) < 2 {
		stddev = 0
	}

	// Each run reads and writes every rewritten block once.
	bytesTotal := uint64(flags.repeat) * uint64(stats.Reads+stats.Writes) * uint64(stats.BlockSize)

	res := &benchResult{
		Timestamp:    time.Now(),
		Case:         flags.caseName,
		Notes:        flags.notes,
		File:         flags.file,
		Mode:         mode.String(),
		Blocks:       flags.blocks,
		BlockSize:    stats.BlockSize,
		Iterations:   flags.iterations,
		Workers:      flags.workers,
		Repeat:       flags.repeat,
		Binary:       flags.binary,
		Duration:     total,
		MinDuration:  fastest,
		MeanDuration: secondsToDuration(mean),
		StdDev:       secondsToDuration(stddev),
		BytesTotal:   bytesTotal,
		BytesPerSec:  float64(bytesTotal) / total.Seconds(),
		RewritesPerS: float64(flags.repeat*flags.iterations) / total.Seconds(),
		GOOS:         runtime.GOOS,
		GOARCH:       runtime.GOARCH,
		GOMAXPROCS:   runtime.GOMAXPROCS(0),
		NumCPU:       runtime.NumCPU(),
	}

	if bi, ok := debug.ReadBuildInfo(); ok && bi != nil {
		res.GoVersion = bi.GoVersion

		for _, setting := range bi.Settings {
			switch setting.Key {
			case "vcs.revision":
				res.VCSRevision = setting.Value
			case "vcs.modified":
				res.VCSModified = setting.Value == "true"
			}
		}
	}

	return res, nil
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func parseModes(s string) ([]blockrev.Mode, error) {
	var modes []blockrev.Mode

	for name := range strings.SplitSeq(s, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}

		mode, ok := blockrev.ParseMode(name)
		if !ok {
			return nil, fmt.Errorf("invalid mode %q (expected: async | sync)", name)
		}

		modes = append(modes, mode)
	}

	if len(modes) == 0 {
		return nil, fmt.Errorf("--modes is empty")
	}

	return modes, nil
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}

	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}

	defer func() {
		closeErr := out.Close()
		if err == nil {
			err = closeErr
		}
	}()

	_, err = io.Copy(out, in)

	return err
}

func appendJSONL(path string, res *benchResult) error {
	outFile, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}

	defer func() { _ = outFile.Close() }()

	writer := bufio.NewWriter(outFile)
	enc := json.NewEncoder(writer)
	enc.SetEscapeHTML(false)

	err = enc.Encode(res)
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}

	err = writer.Flush()
	if err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	return nil
}
