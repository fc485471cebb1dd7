//go:build (darwin && !ios) || freebsd || openbsd || netbsd || dragonfly

// io_unix.go implements the internal I/O backend contract (see io_contract.go)
// for "mainstream" non-Linux Unix platforms:
//   - macOS (darwin, excluding iOS)
//   - the BSD family (FreeBSD/OpenBSD/NetBSD/DragonFly)
//
// These platforms have pread/pwrite but no portable fdatasync, so the
// per-write barrier is a full fsync.
package blockrev

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
	return h.syncFile()
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
