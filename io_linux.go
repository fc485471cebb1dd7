//go:build linux

package blockrev

// io_linux.go implements the internal I/O backend contract (see io_contract.go)
// for Linux.
//
// Linux is the performance-critical backend:
//   - Block transfers use pread64/pwrite64 on the raw fd, so operations on
//     different buffers never contend on the file position.
//   - The per-write durability barrier is fdatasync(2), which skips the
//     metadata flush when only file content changed.

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"syscall"

	"golang.org/x/sys/unix"
)

// fileHandle wraps the fd of an externally owned file.
//
// f is kept so the *os.File (and its finalizer-managed fd) stays alive while
// the raw fd is in use.
//
// Part of the internal I/O backend contract (see io_contract.go).
type fileHandle struct {
	fd int
	f  *os.File
}

func newFileHandle(f *os.File) fileHandle {
	return fileHandle{fd: int(f.Fd()), f: f}
}

func (h fileHandle) size() (int64, error) {
	var st unix.Stat_t

	for {
		err := unix.Fstat(h.fd, &st)
		if errors.Is(err, syscall.EINTR) {
			continue
		}

		runtime.KeepAlive(h.f)

		if err != nil {
			return 0, fmt.Errorf("fstat: %w", err)
		}

		return st.Size, nil
	}
}

// preadFull reads len(buf) bytes at off.
func (h fileHandle) preadFull(buf []byte, off int64) (int, error) {
	defer runtime.KeepAlive(h.f)

	done := 0
	for done < len(buf) {
		n, err := unix.Pread(h.fd, buf[done:], off+int64(done))
		if errors.Is(err, syscall.EINTR) {
			continue
		}

		if err != nil {
			return done, fmt.Errorf("pread: %w", err)
		}

		if n == 0 {
			return done, io.ErrUnexpectedEOF
		}

		done += n
	}

	return done, nil
}

// pwriteFull writes len(buf) bytes at off.
func (h fileHandle) pwriteFull(buf []byte, off int64) (int, error) {
	defer runtime.KeepAlive(h.f)

	done := 0
	for done < len(buf) {
		n, err := unix.Pwrite(h.fd, buf[done:], off+int64(done))
		if errors.Is(err, syscall.EINTR) {
			continue
		}

		if err != nil {
			return done, fmt.Errorf("pwrite: %w", err)
		}

		if n == 0 {
			return done, io.ErrShortWrite
		}

		done += n
	}

	return done, nil
}

func (h fileHandle) syncData() error {
	defer runtime.KeepAlive(h.f)

	for {
		err := unix.Fdatasync(h.fd)
		if errors.Is(err, syscall.EINTR) {
			continue
		}

		if err != nil {
			return fmt.Errorf("fdatasync: %w", err)
		}

		return nil
	}
}

func (h fileHandle) syncFile() error {
	defer runtime.KeepAlive(h.f)

	for {
		err := unix.Fsync(h.fd)
		if errors.Is(err, syscall.EINTR) {
			continue
		}

		if err != nil {
			return fmt.Errorf("fsync: %w", err)
		}

		return nil
	}
}
