//go:build !linux && !((darwin && !ios) || freebsd || openbsd || netbsd || dragonfly)

// io_other.go implements the internal I/O backend contract (see io_contract.go)
// for platforms where we don't maintain a syscall-level path (windows,
// ios, solaris/illumos, aix, ...).
//
// This backend uses only portable stdlib APIs ((*os.File).ReadAt/WriteAt/Sync).
// The pipeline is the same on all platforms; only the I/O primitives differ.
package blockrev

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// fileHandle wraps an externally owned file.
//
// Part of the internal I/O backend contract (see io_contract.go).
type fileHandle struct {
	f *os.File
}

func newFileHandle(f *os.File) fileHandle {
	return fileHandle{f: f}
}

func (h fileHandle) size() (int64, error) {
	info, err := h.f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat: %w", err)
	}

	return info.Size(), nil
}

func (h fileHandle) preadFull(buf []byte, off int64) (int, error) {
	n, err := h.f.ReadAt(buf, off)
	if errors.Is(err, io.EOF) {
		return n, io.ErrUnexpectedEOF
	}

	if err != nil {
		return n, fmt.Errorf("read: %w", err)
	}

	return n, nil
}

func (h fileHandle) pwriteFull(buf []byte, off int64) (int, error) {
	n, err := h.f.WriteAt(buf, off)
	if err != nil {
		return n, fmt.Errorf("write: %w", err)
	}

	return n, nil
}

func (h fileHandle) syncData() error {
	return h.syncFile()
}

func (h fileHandle) syncFile() error {
	err := h.f.Sync()
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}

	return nil
}
