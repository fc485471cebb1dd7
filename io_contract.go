package blockrev

import "os"

// ============================================================================
// Internal I/O backend contract
// ============================================================================
//
// The engine (engine.go) is written against a small set of unexported,
// platform-dependent functions and types.
//
// Those symbols form an internal *backend contract* that each supported OS
// group must provide via build-tagged files.
//
// This file contains no runtime dispatch. It uses compile-time assignments to:
//   - document the required surface area
//   - ensure each build provides the expected functions/methods
//
// Implementations live in build-tagged backend files:
//   - Linux fast path:                 io_linux.go
//   - Mainstream non-Linux Unix:       io_unix.go
//   - "Other" platforms (windows/etc): io_other.go
//
// Semantics expected by the engine:
//
//   - preadFull/pwriteFull transfer exactly len(buf) bytes at the given offset
//     or return an error. Partial transfers are continued internally; EINTR is
//     retried without an upper bound (an unrelated signal delivery is not a
//     failure). A read that hits end of file before len(buf) bytes returns
//     io.ErrUnexpectedEOF.
//
//   - Offsets are absolute; backends never use or move the shared file
//     position, so concurrent operations on distinct buffers are safe.
//
//   - syncData is the per-write durability barrier (fdatasync where
//     available). syncFile flushes data and metadata of the whole file.
//
//   - Handles do not own the file: the caller opens and closes it.

// Function signatures required by the engine.
var (
	_ func(*os.File) fileHandle = newFileHandle
)

// Method sets required by the engine.
// This interface is only used for compile-time checking.
type ioFileHandle interface {
	size() (int64, error)
	preadFull(buf []byte, off int64) (int, error)
	pwriteFull(buf []byte, off int64) (int, error)
	syncData() error
	syncFile() error
}

var _ ioFileHandle = fileHandle{}
