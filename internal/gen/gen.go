// Package gen writes input files for blockrev: a sequence of labelled blocks,
// each distinct from the others and none of them a palindrome, so that every
// move and every reversal is visible in the output.
//
// Blocks must be at least [MinBlockSize] bytes so the label fits.
package gen

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
)

// Spec describes a generated file.
type Spec struct {
	Blocks    int
	BlockSize int
	// Binary omits the trailing newline, so the file splits evenly with
	// blockrev's --binary.
	Binary bool
}

// Size returns the total file size in bytes.
func (s Spec) Size() int64 {
	size := int64(s.Blocks) * int64(s.BlockSize)
	if !s.Binary {
		size++
	}

	return size
}

func (s Spec) validate() error {
	if s.Blocks <= 0 {
		return errors.New("blocks must be > 0")
	}

	if s.BlockSize <= 0 {
		return errors.New("block size must be > 0")
	}

	if minSize := MinBlockSize(s.Blocks); s.BlockSize < minSize {
		return fmt.Errorf("block size %d is shorter than the label of block %d (need >= %d)", s.BlockSize, s.Blocks-1, minSize)
	}

	return nil
}

// MinBlockSize returns the smallest block size that holds the label of the
// last of n blocks.
func MinBlockSize(n int) int {
	return len(label(max(n-1, 0)))
}

func label(i int) string {
	return "<" + strconv.Itoa(i) + ">"
}

// Block fills buf with the content of block i. The block starts with the
// label "<i>" followed by a letter run whose phase depends on i.
func Block(buf []byte, i int) {
	for j := range buf {
		buf[j] = 'a' + byte((i*7+j)%26)
	}

	copy(buf, label(i))
}

// Write writes the file described by s to w.
func Write(w io.Writer, s Spec) error {
	err := s.validate()
	if err != nil {
		return err
	}

	bw := bufio.NewWriterSize(w, 1<<20)
	buf := make([]byte, s.BlockSize)

	for i := range s.Blocks {
		Block(buf, i)

		_, err = bw.Write(buf)
		if err != nil {
			return fmt.Errorf("write block %d: %w", i, err)
		}
	}

	if !s.Binary {
		err = bw.WriteByte('\n')
		if err != nil {
			return fmt.Errorf("write trailer: %w", err)
		}
	}

	return bw.Flush()
}

// WriteFile creates (or truncates) path and writes the file described by s.
func WriteFile(path string, s Spec) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	defer func() {
		closeErr := f.Close()
		if err == nil {
			err = closeErr
		}
	}()

	return Write(f, s)
}
