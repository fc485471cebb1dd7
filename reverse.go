package blockrev

// reverseCheckEvery is the number of swapped byte pairs between two
// cancellation checks.
const reverseCheckEvery = 64 << 10

// reverseBlock reverses the first n bytes of buf in place.
//
// The flag is checked between chunks of swapped pairs. It returns false if it
// stopped early; the buffer is then partially reversed and must not be written.
func reverseBlock(buf []byte, n int, flag *CancelFlag) bool {
	buf = buf[:n]

	for lo, hi := 0, n-1; lo < hi; {
		if flag != nil && flag.IsSet() {
			return false
		}

		end := min(lo+reverseCheckEvery, n/2)
		for ; lo < end; lo, hi = lo+1, hi-1 {
			buf[lo], buf[hi] = buf[hi], buf[lo]
		}
	}

	return true
}
