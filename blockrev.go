// Package blockrev rewrites a file's content in randomized block order,
// reversing every block it moves.
//
// The file is treated as an array of fixed-size blocks. A run reads a random
// block, reverses it in memory and writes it back to another random block
// position, k times. Reads, writes and the CPU-bound reversal overlap: one read
// and one write are always in flight while a third, independent buffer is
// being reversed.
//
// # Architecture
//
// Three buffers rotate through three roles. At the start of each step with
// position p:
//
//	slot p        block read and reversed in the previous step ("ready to write")
//	slot p+1      block read in the previous step ("ready to reverse")
//	slot p+2      destination of the read issued in this step
//
// Awaits are deferred to the end of the step in which the operation was
// issued, so the write of slot p and the read into slot p+2 run while slot
// p+1 is reversed. Three buffers are the minimum that keeps "being written",
// "being reversed" and "being read into" distinct.
//
//	┌──────────────────────────────────────────────────────────────┐
//	│ step   slot 0      slot 1      slot 2           (k = 4)       │
//	├──────────────────────────────────────────────────────────────┤
//	│  0       -         reverse     read                          │
//	│  1     read        write       reverse                       │
//	│  2     reverse     read        write                         │
//	│  3     write       reverse       -                           │
//	└──────────────────────────────────────────────────────────────┘
//
// The warm-up read before step 0 and the drain write after the last step are
// awaited immediately; there is nothing to overlap them with.
//
// # I/O
//
// Asynchronous operations are executed by a small pool of I/O goroutines
// blocked in pread/pwrite/fdatasync (see io_linux.go). The calling flow only
// suspends in explicit completion waits. [WithMode] selects [ModeSync], which
// performs every operation inline for comparison.
//
// # Cancellation
//
// A [CancelFlag] is observed at every issuance and every wait. Once set, new
// operations are skipped, waits return early and nothing more is written.
// Before buffers are released, outstanding operations are cancelled and any
// operation that could not be cancelled is waited for.
//
// Cancellation is not an error: [Rewrite] returns the statistics of the work
// already done with [Stats.Cancelled] set.
package blockrev

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"time"
)

// Stats describes a completed (or cancelled) run.
type Stats struct {
	// BlockSize is the size of one block in bytes.
	BlockSize int
	// BlockCount is the number of blocks the file is split into.
	BlockCount int
	// Iterations is the requested number of block rewrites.
	Iterations int

	// Reads, Writes and Syncs count operations actually issued.
	Reads  int
	Writes int
	Syncs  int
	// Reversals counts buffers fully reversed.
	Reversals int

	// IntermediateReads and IntermediateWrites count the operations issued
	// inside the overlapped loop, excluding warm-up read and drain write.
	IntermediateReads  int
	IntermediateWrites int

	// FirstBlock is the block index of the warm-up read.
	FirstBlock int
	// LastBlock is the block index of the drain write, or -1 if it was skipped.
	LastBlock int

	// Skipped reports that the input was degenerate and the file was not touched.
	Skipped bool
	// Cancelled reports that the run stopped early because of a cancellation request.
	Cancelled bool
	// Cancel is the outcome of cancelling outstanding operations at teardown.
	Cancel CancelResult
}

// Sentinel errors.
var (
	// ErrSlotBusy is returned when an operation is issued on a buffer whose
	// previous operation has not reached a terminal state.
	ErrSlotBusy = errors.New("slot has an outstanding operation")
	// ErrQueueFull is returned when the submission queue cannot accept a request.
	ErrQueueFull = errors.New("submission queue full")
	// ErrEngineClosed is returned when issuing after the engine was shut down.
	ErrEngineClosed = errors.New("engine closed")
	// ErrBlockTooLarge is returned when the computed block size exceeds the
	// configured maximum buffer size.
	ErrBlockTooLarge = errors.New("block size exceeds limit")
)

// IOError is returned when an I/O operation completes with an error, or when
// opening, stating or closing the target file fails.
type IOError struct {
	// Op is the operation that failed: "read", "write", "sync", "open",
	// "stat" or "close".
	Op string
	// Slot is the buffer slot the operation was bound to, or -1.
	Slot int
	// Offset is the file offset of the operation.
	Offset int64
	// Err is the underlying error.
	Err error
}

func (e *IOError) Error() string {
	if e.Slot < 0 {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}

	return fmt.Sprintf("%s slot=%d offset=%d: %v", e.Op, e.Slot, e.Offset, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// SubmitError is returned when an asynchronous operation cannot be submitted.
// Submission failures are unrecoverable.
type SubmitError struct {
	// Op is the operation kind that could not be submitted.
	Op OpKind
	// Slot is the buffer slot the operation targeted.
	Slot int
	// Err is the underlying error.
	Err error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("submit %s slot=%d: %v", e.Op, e.Slot, e.Err)
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

// BlockSize returns the block size for a file of fileLength bytes split into
// blockCount blocks.
//
// Text files keep their trailing newline in place, so one byte is excluded
// unless binary is set. Results <= 0 mean the file is too small to split.
func BlockSize(fileLength int64, blockCount int, binary bool) int64 {
	if blockCount <= 0 {
		return 0
	}

	if !binary {
		fileLength--
	}

	return fileLength / int64(blockCount)
}

// Rewrite runs the pipeline over f, split into blockCount blocks, performing
// iterations block rewrites.
//
// f must be open for reading and writing; it is neither closed nor truncated.
// If blockCount < 2, iterations < 1 or the computed block size is not
// positive, the file is left untouched and Stats.Skipped is set.
//
// Cancelling ctx (or setting the flag passed via [WithCancelFlag]) stops the
// run cooperatively; this is reported through Stats.Cancelled, not as an
// error.
func Rewrite(ctx context.Context, f *os.File, blockCount, iterations int, opts ...Option) (Stats, error) {
	cfg := applyOptions(opts)

	stats := Stats{BlockCount: blockCount, Iterations: iterations, LastBlock: -1}

	if blockCount < 2 || iterations < 1 {
		cfg.Logger.Debug("degenerate input, skipping", "blocks", blockCount, "iterations", iterations)

		stats.Skipped = true

		return stats, nil
	}

	fh := newFileHandle(f)

	size, err := fh.size()
	if err != nil {
		return stats, &IOError{Op: "stat", Slot: -1, Err: err}
	}

	blockSize := BlockSize(size, blockCount, cfg.Binary)
	if blockSize <= 0 {
		cfg.Logger.Debug("file too small, skipping", "size", size, "blocks", blockCount)

		stats.Skipped = true

		return stats, nil
	}

	// Checked before narrowing to int so an oversized block cannot wrap on
	// 32-bit platforms.
	if blockSize > int64(cfg.MaxBlockSize) {
		err = &AllocationError{Size: int(min(blockSize, math.MaxInt)), Max: cfg.MaxBlockSize, Err: ErrBlockTooLarge}
		observeRun(cfg.Metrics, stats, 0, err)

		return stats, err
	}

	flag := cfg.Cancel
	if flag == nil {
		flag = NewCancelFlag()
	}

	stop := flag.bindContext(ctx)
	defer stop()

	start := time.Now()

	p, err := newPipeline(fh, flag, int(blockSize), blockCount, iterations, &cfg)
	if err != nil {
		observeRun(cfg.Metrics, stats, time.Since(start), err)

		return stats, err
	}

	cfg.Logger.Info("rewrite started",
		"file", f.Name(), "size", size, "block_size", blockSize,
		"blocks", blockCount, "iterations", iterations, "mode", cfg.Mode)

	err = p.run()
	stats = p.stats

	observeRun(cfg.Metrics, stats, time.Since(start), err)

	if err != nil {
		cfg.Logger.Error("rewrite failed", "error", err)

		return stats, err
	}

	cfg.Logger.Info("rewrite finished",
		"reads", stats.Reads, "writes", stats.Writes, "reversals", stats.Reversals,
		"cancelled", stats.Cancelled, "elapsed", time.Since(start))

	return stats, nil
}

// RewriteFile opens path for reading and writing and calls [Rewrite].
func RewriteFile(ctx context.Context, path string, blockCount, iterations int, opts ...Option) (Stats, error) {
	if blockCount < 2 || iterations < 1 {
		return Stats{BlockCount: blockCount, Iterations: iterations, LastBlock: -1, Skipped: true}, nil
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return Stats{}, &IOError{Op: "open", Slot: -1, Err: err}
	}

	stats, err := Rewrite(ctx, f, blockCount, iterations, opts...)

	closeErr := f.Close()
	if err == nil && closeErr != nil {
		err = &IOError{Op: "close", Slot: -1, Err: closeErr}
	}

	return stats, err
}
