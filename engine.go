package blockrev

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// OpKind identifies an I/O operation.
type OpKind uint8

const (
	// OpRead reads one block into a buffer.
	OpRead OpKind = iota
	// OpWrite writes one buffer to a block.
	OpWrite
	// OpSync is the durability barrier for a preceding write.
	OpSync
)

func (k OpKind) String() string {
	switch k {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpSync:
		return "sync"
	default:
		return "unknown"
	}
}

// OpStatus is the lifecycle state of an operation.
type OpStatus int32

const (
	// StatusPending: submitted, not yet picked up by an I/O worker.
	StatusPending OpStatus = iota
	// StatusRunning: executing in the kernel; can no longer be cancelled.
	StatusRunning
	// StatusDone: completed successfully.
	StatusDone
	// StatusFailed: completed with an error.
	StatusFailed
	// StatusCancelled: cancelled before it started.
	StatusCancelled
)

func (s OpStatus) terminal() bool {
	return s >= StatusDone
}

func (s OpStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusDone:
		return "done"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// CancelResult is the outcome of cancelling outstanding operations.
type CancelResult int

const (
	// CancelNone: no cancellation was attempted.
	CancelNone CancelResult = iota
	// CancelAllDone: every operation had already completed.
	CancelAllDone
	// CancelCanceled: every outstanding operation was cancelled.
	CancelCanceled
	// CancelNotCanceled: at least one operation was already running and had
	// to be waited for.
	CancelNotCanceled
)

func (r CancelResult) String() string {
	switch r {
	case CancelNone:
		return "none"
	case CancelAllDone:
		return "all_done"
	case CancelCanceled:
		return "canceled"
	case CancelNotCanceled:
		return "not_canceled"
	default:
		return "unknown"
	}
}

// operation is the control record of one submitted request.
//
// status transitions: Pending -> Running -> Done|Failed, or Pending ->
// Cancelled. Whoever performs the transition into a terminal state closes
// done; n and err are written before that and read only after it.
type operation struct {
	kind   OpKind
	slot   int
	off    int64
	buf    []byte
	status atomic.Int32
	done   chan struct{}
	n      int
	err    error
}

func (op *operation) state() OpStatus {
	return OpStatus(op.status.Load())
}

func (op *operation) finish(s OpStatus) {
	op.status.Store(int32(s))
	close(op.done)
}

// engine issues block operations against one file and waits for them.
//
// The engine is driven by a single flow (the pipeline). ops and the counters
// are only accessed by that flow; I/O workers only touch the operation they
// execute.
type engine struct {
	fh      fileHandle
	flag    *CancelFlag
	mode    Mode
	metrics Metrics
	log     *slog.Logger

	// ops holds the most recent operation per slot. At most one of them is
	// non-terminal at any time.
	ops [slotCount]*operation

	queue  chan *operation
	wg     sync.WaitGroup
	closed bool

	reads  int
	writes int
	syncs  int
}

func newEngine(fh fileHandle, flag *CancelFlag, cfg *options) *engine {
	e := &engine{
		fh:      fh,
		flag:    flag,
		mode:    cfg.Mode,
		metrics: cfg.Metrics,
		log:     cfg.Logger,
	}

	if e.mode == ModeAsync {
		e.queue = make(chan *operation, cfg.QueueDepth)

		for range cfg.Workers {
			e.wg.Add(1)

			go e.worker()
		}
	}

	return e
}

func (e *engine) worker() {
	defer e.wg.Done()

	for op := range e.queue {
		e.execute(op)
	}
}

// execute runs op unless it was cancelled while queued.
func (e *engine) execute(op *operation) {
	if !op.status.CompareAndSwap(int32(StatusPending), int32(StatusRunning)) {
		return
	}

	start := time.Now()
	n, err := runOp(e.fh, op.kind, op.buf, op.off)
	observeOperation(e.metrics, op.kind, n, time.Since(start), err)

	op.n, op.err = n, err
	if err != nil {
		op.finish(StatusFailed)

		return
	}

	op.finish(StatusDone)
}

func (e *engine) issueRead(slot int, buf []byte, off int64) (bool, error) {
	return e.submit(slot, OpRead, buf, off)
}

func (e *engine) issueWrite(slot int, buf []byte, off int64) (bool, error) {
	return e.submit(slot, OpWrite, buf, off)
}

// submit issues an operation on slot without waiting for it.
//
// It reports false (and no error) when cancellation was requested. A
// submission error is unrecoverable.
func (e *engine) submit(slot int, kind OpKind, buf []byte, off int64) (bool, error) {
	if e.flag.IsSet() {
		return false, nil
	}

	if e.closed {
		return false, &SubmitError{Op: kind, Slot: slot, Err: ErrEngineClosed}
	}

	if prev := e.ops[slot]; prev != nil && !prev.state().terminal() {
		return false, &SubmitError{Op: kind, Slot: slot, Err: ErrSlotBusy}
	}

	op := &operation{kind: kind, slot: slot, off: off, buf: buf, done: make(chan struct{})}

	if e.mode == ModeSync {
		e.ops[slot] = op
		e.count(kind)
		e.execute(op)

		return true, nil
	}

	select {
	case e.queue <- op:
	default:
		return false, &SubmitError{Op: kind, Slot: slot, Err: ErrQueueFull}
	}

	e.ops[slot] = op
	e.count(kind)

	e.log.Debug("submitted", "op", kind, "slot", slot, "offset", off)

	return true, nil
}

func (e *engine) count(kind OpKind) {
	switch kind {
	case OpRead:
		e.reads++
	case OpWrite:
		e.writes++
	case OpSync:
		e.syncs++
	}
}

// awaitCompletion blocks until the operation on slot is terminal.
//
// If cancellation is requested before or while waiting it returns nil
// immediately; the buffer content is then undefined. A completion error is
// returned as *IOError.
func (e *engine) awaitCompletion(slot int) error {
	op := e.ops[slot]
	if op == nil {
		return nil
	}

	for {
		if e.flag.IsSet() {
			return nil
		}

		select {
		case <-op.done:
			return completionErr(op)
		case <-e.flag.Done():
		}
	}
}

func completionErr(op *operation) error {
	if op.state() != StatusFailed {
		return nil
	}

	return &IOError{Op: op.kind.String(), Slot: op.slot, Offset: op.off, Err: op.err}
}

// sync makes the write on slot durable: it waits for the write, submits the
// barrier on the same slot and waits for the barrier. Skipped on cancellation.
func (e *engine) sync(slot int) error {
	if e.flag.IsSet() {
		return nil
	}

	err := e.awaitCompletion(slot)
	if err != nil {
		return err
	}

	_, err = e.submit(slot, OpSync, nil, 0)
	if err != nil {
		return err
	}

	return e.awaitCompletion(slot)
}

// cancelOutstanding cancels every operation that has not started yet.
//
// Operations already running cannot be cancelled; they are reported as
// CancelNotCanceled and must be waited for (see reclaim) before their buffer
// is released.
func (e *engine) cancelOutstanding() (CancelResult, [slotCount]CancelResult) {
	var perSlot [slotCount]CancelResult

	anyCanceled, anyRunning := false, false

	for slot, op := range e.ops {
		if op == nil {
			perSlot[slot] = CancelAllDone

			continue
		}

		switch {
		case op.status.CompareAndSwap(int32(StatusPending), int32(StatusCancelled)):
			close(op.done)

			perSlot[slot] = CancelCanceled
			anyCanceled = true
		case op.state().terminal():
			perSlot[slot] = CancelAllDone
		default:
			perSlot[slot] = CancelNotCanceled
			anyRunning = true
		}
	}

	res := CancelAllDone
	if anyCanceled {
		res = CancelCanceled
	}

	if anyRunning {
		res = CancelNotCanceled
	}

	observeCancel(e.metrics, res)

	return res, perSlot
}

// reclaim waits for every operation to reach a terminal state, regardless of
// the cancellation flag, and stops the I/O workers. Buffers bound to the
// engine's operations may be released only afterwards.
func (e *engine) reclaim() {
	for _, op := range e.ops {
		if op != nil {
			<-op.done
		}
	}

	if e.closed {
		return
	}

	e.closed = true

	if e.queue != nil {
		close(e.queue)
		e.wg.Wait()
	}
}
