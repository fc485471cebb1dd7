//go:build blockrev_testhooks

package blockrev

import "sync/atomic"

// This file provides test-only I/O hooks for the internal backend contract.
//
// Build tag:
//   - Enabled only when tests are run with: go test -tags blockrev_testhooks ./...
//   - Normal builds use iohooks_stub.go, which forwards directly to the backend
//     implementation with zero hook overhead.
//
// How it is called:
//   - Rewrite -> pipeline -> engine.execute -> runOp(...)
//   - The wrapper below intercepts runOp and (optionally) routes it through a
//     test hook before the real syscall. This allows deterministic injection
//     of completion errors and of operations that stay "in flight" until the
//     test releases them.
//
// Scope and safety:
//   - The hook is global to the test binary. Tests that install it MUST NOT be
//     run in parallel with other hook users.
//   - An atomic pointer is used to avoid data races with non-hooked tests.

// ioHookFn runs before the backend call. A non-nil error fails the operation
// without touching the file.
type ioHookFn func(kind OpKind, off int64, buf []byte) error

var ioHook atomic.Pointer[ioHookFn]

// setIOHook installs a hook and returns a restore function.
//
// Usage:
//
//	restore := setIOHook(func(kind OpKind, off int64, buf []byte) error { ... })
//	defer restore()
//
// Passing nil removes any previously-installed hook.
func setIOHook(hook ioHookFn) func() {
	if hook == nil {
		ioHook.Store(nil)

		return func() {}
	}

	ptr := new(ioHookFn)
	*ptr = hook
	ioHook.Store(ptr)

	return func() {
		ioHook.Store(nil)
	}
}

// runOp wraps the backend implementation and optionally diverts to the test
// hook. The call signature matches runOpImpl exactly.
func runOp(h fileHandle, kind OpKind, buf []byte, off int64) (int, error) {
	if hook := ioHook.Load(); hook != nil {
		err := (*hook)(kind, off, buf)
		if err != nil {
			return 0, err
		}
	}

	return runOpImpl(h, kind, buf, off)
}

// Compile-time guard: wrapper signature must match the backend dispatch.
var _ func(fileHandle, OpKind, []byte, int64) (int, error) = runOp
