package blockrev

import "fmt"

// runOpImpl executes one operation against the backend. It is the only place
// where an operation kind is mapped to a backend call.
func runOpImpl(h fileHandle, kind OpKind, buf []byte, off int64) (int, error) {
	switch kind {
	case OpRead:
		return h.preadFull(buf, off)
	case OpWrite:
		return h.pwriteFull(buf, off)
	case OpSync:
		return 0, h.syncData()
	default:
		return 0, fmt.Errorf("unknown operation kind %d", kind)
	}
}
