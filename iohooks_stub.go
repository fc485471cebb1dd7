//go:build !blockrev_testhooks

package blockrev

func runOp(h fileHandle, kind OpKind, buf []byte, off int64) (int, error) {
	return runOpImpl(h, kind, buf, off)
}

// Compile-time guard: wrapper signature must match the backend dispatch.
var _ func(fileHandle, OpKind, []byte, int64) (int, error) = runOp
