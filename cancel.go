package blockrev

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
)

// CancelFlag is a cooperative cancellation signal.
//
// It has a single writer (a signal handler, a context watcher, a test) and is
// observed by the pipeline at every issuance point and every completion wait.
// It is never preemptive: work between two checkpoints always runs to the
// next checkpoint.
//
// The zero value is not usable; use [NewCancelFlag].
type CancelFlag struct {
	set  atomic.Bool
	once sync.Once
	done chan struct{}
}

// NewCancelFlag returns an unset flag.
func NewCancelFlag() *CancelFlag {
	return &CancelFlag{done: make(chan struct{})}
}

// Set requests cancellation. It is idempotent and safe to call from any
// goroutine.
func (c *CancelFlag) Set() {
	c.set.Store(true)
	c.once.Do(func() { close(c.done) })
}

// IsSet reports whether cancellation was requested.
func (c *CancelFlag) IsSet() bool {
	return c.set.Load()
}

// Done returns a channel that is closed once the flag is set.
func (c *CancelFlag) Done() <-chan struct{} {
	return c.done
}

// bindContext sets the flag when ctx is done. The returned func detaches the
// watcher.
func (c *CancelFlag) bindContext(ctx context.Context) func() {
	if ctx == nil {
		return func() {}
	}

	if ctx.Err() != nil {
		c.Set()

		return func() {}
	}

	stop := context.AfterFunc(ctx, c.Set)

	return func() { stop() }
}

// NotifyOnInterrupt sets flag when one of the given signals is delivered
// (os.Interrupt if none are given). The handler does nothing besides setting
// the flag. The returned func stops signal delivery.
func NotifyOnInterrupt(flag *CancelFlag, sigs ...os.Signal) func() {
	if len(sigs) == 0 {
		sigs = []os.Signal{os.Interrupt}
	}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)

	quit := make(chan struct{})

	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()

		select {
		case <-ch:
			flag.Set()
		case <-quit:
		}
	}()

	return func() {
		signal.Stop(ch)
		close(quit)
		wg.Wait()
	}
}
