package blockrev

import (
	"log/slog"
)

// Mode selects how I/O operations are executed.
type Mode int

const (
	// ModeAsync submits operations to I/O workers and overlaps them with the
	// reversal of another buffer.
	ModeAsync Mode = iota
	// ModeSync performs every operation inline in the calling flow.
	ModeSync
)

func (m Mode) String() string {
	switch m {
	case ModeAsync:
		return "async"
	case ModeSync:
		return "sync"
	default:
		return "unknown"
	}
}

// ParseMode parses "async" or "sync".
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "async":
		return ModeAsync, true
	case "sync":
		return ModeSync, true
	default:
		return ModeAsync, false
	}
}

// Option configures [Rewrite] and [RewriteFile].
// Options are applied in order.
type Option func(*options)

// WithMode sets the I/O mode.
//
// # Default
//
// [ModeAsync].
//
// [ModeSync] exists for comparison. With small blocks both modes perform
// about the same; with large blocks (megabytes) the overlapped mode is
// typically more than twice as fast because reversal and I/O run in parallel.
func WithMode(m Mode) Option {
	return func(o *options) {
		o.Mode = m
	}
}

// WithIOWorkers sets the number of I/O goroutines used in [ModeAsync].
//
// At most one read and one write (or sync) are in flight at any time, so more
// than two workers never helps.
//
// Values <= 0 use the default (2).
func WithIOWorkers(n int) Option {
	return func(o *options) {
		o.Workers = n
	}
}

// WithQueueDepth sets the capacity of the submission queue.
//
// Submitting into a full queue is an unrecoverable error. The pipeline never
// has more than one operation per buffer outstanding, so the minimum (and
// default) is one entry per buffer.
//
// Values below the minimum use the minimum.
func WithQueueDepth(n int) Option {
	return func(o *options) {
		o.QueueDepth = n
	}
}

// WithMaxBlockSize limits the size of each of the three buffers.
//
// Runs whose computed block size exceeds the limit fail with an
// [AllocationError] before touching the file.
//
// Values <= 0 use the default (256 MiB).
func WithMaxBlockSize(n int) Option {
	return func(o *options) {
		o.MaxBlockSize = n
	}
}

// WithBinary computes the block size from the full file length.
//
// By default the last byte of the file is excluded so that the trailing
// newline of a text file stays in place.
func WithBinary() Option {
	return func(o *options) {
		o.Binary = true
	}
}

// WithSeed makes block selection deterministic.
//
// Without a seed every run picks different blocks.
func WithSeed(seed uint64) Option {
	return func(o *options) {
		o.Seed = seed
		o.SeedSet = true
	}
}

// WithCancelFlag uses flag as the cancellation signal.
//
// The flag is set when the context passed to [Rewrite] is cancelled. Setting
// it from elsewhere (e.g. a signal handler, see [NotifyOnInterrupt]) stops
// the run the same way.
func WithCancelFlag(flag *CancelFlag) Option {
	return func(o *options) {
		o.Cancel = flag
	}
}

// WithLogger sets the structured logger. If nil, logs are discarded.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.Logger = l
	}
}

// WithMetrics registers a metrics sink. If nil, no metrics are recorded.
func WithMetrics(m Metrics) Option {
	return func(o *options) {
		o.Metrics = m
	}
}

// withStepObserver installs a callback invoked at fixed points of every
// pipeline step. Test-only; exported via export_test.go.
func withStepObserver(fn func(StepEvent)) Option {
	return func(o *options) {
		o.OnStep = fn
	}
}

const (
	defaultIOWorkers    = 2
	maxIOWorkers        = 64
	defaultMaxBlockSize = 256 << 20
)

type options struct {
	// Mode selects async or inline I/O.
	Mode Mode
	// Workers is the I/O goroutine count.
	Workers int
	// QueueDepth is the submission queue capacity.
	QueueDepth int
	// MaxBlockSize limits each buffer.
	MaxBlockSize int
	// Binary disables the trailing byte adjustment.
	Binary bool
	// Seed seeds block selection when SeedSet is true.
	Seed    uint64
	SeedSet bool
	// Cancel is the cancellation signal.
	Cancel *CancelFlag
	// Logger receives structured logs.
	Logger *slog.Logger
	// Metrics receives operation metrics.
	Metrics Metrics
	// OnStep observes pipeline steps.
	OnStep func(StepEvent)
}

// applyOptions merges option values and applies defaults.
func applyOptions(opts []Option) options {
	cfg := options{}

	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	if cfg.Workers <= 0 {
		cfg.Workers = defaultIOWorkers
	}

	if cfg.Workers > maxIOWorkers {
		cfg.Workers = maxIOWorkers
	}

	if cfg.QueueDepth < slotCount {
		cfg.QueueDepth = slotCount
	}

	if cfg.MaxBlockSize <= 0 {
		cfg.MaxBlockSize = defaultMaxBlockSize
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	return cfg
}
