package blockrev

import (
	"fmt"
)

// slotCount is the number of rotating buffers. Fewer would serialize I/O
// with the reversal; more would sit idle.
const slotCount = 3

// AllocationError is returned when the three block buffers cannot be
// allocated. The pipeline cannot run with fewer than three buffers.
type AllocationError struct {
	// Size is the requested size of one buffer.
	Size int
	// Max is the configured limit for one buffer.
	Max int
	// Err is the underlying error.
	Err error
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("allocate %d×%d bytes (limit %d): %v", slotCount, e.Size, e.Max, e.Err)
}

func (e *AllocationError) Unwrap() error {
	return e.Err
}

// blockRing owns the three block buffers and indexes them cyclically.
//
// Buffers are only touched by the pipeline flow and by the I/O operation
// currently bound to them; the schedule guarantees the two never overlap.
type blockRing struct {
	bufs      [slotCount][]byte
	blockSize int
}

// newBlockRing allocates three zeroed buffers of blockSize bytes.
func newBlockRing(blockSize, maxBlockSize int) (ring *blockRing, err error) {
	if blockSize <= 0 {
		return nil, &AllocationError{Size: blockSize, Max: maxBlockSize, Err: fmt.Errorf("invalid block size")}
	}

	if maxBlockSize > 0 && blockSize > maxBlockSize {
		return nil, &AllocationError{Size: blockSize, Max: maxBlockSize, Err: ErrBlockTooLarge}
	}

	// make panics with "len out of range" for sizes beyond the address
	// space; surface that as an allocation failure. Running out of memory is
	// fatal and not recoverable.
	defer func() {
		if r := recover(); r != nil {
			ring = nil
			err = &AllocationError{Size: blockSize, Max: maxBlockSize, Err: fmt.Errorf("%v", r)}
		}
	}()

	ring = &blockRing{blockSize: blockSize}
	for i := range ring.bufs {
		ring.bufs[i] = make([]byte, blockSize)
	}

	return ring, nil
}

// shift returns the slot k positions after i, wrapping around.
func shift(i, k int) int {
	return (i + k) % slotCount
}

// bufferAt returns the buffer of slot i.
func (r *blockRing) bufferAt(i int) []byte {
	return r.bufs[i]
}

// release drops all buffers. Callers must have reclaimed every operation bound
// to a buffer first.
func (r *blockRing) release() {
	for i := range r.bufs {
		r.bufs[i] = nil
	}
}
