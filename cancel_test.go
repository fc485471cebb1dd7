package blockrev

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_CancelFlag_Closes_Done_Once_When_Set_Concurrently(t *testing.T) {
	t.Parallel()

	flag := NewCancelFlag()
	require.False(t, flag.IsSet())

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()
			flag.Set()
		}()
	}

	wg.Wait()

	assert.True(t, flag.IsSet())

	select {
	case <-flag.Done():
	default:
		t.Fatal("Done not closed after Set")
	}
}

func Test_CancelFlag_Is_Set_When_Bound_Context_Is_Cancelled(t *testing.T) {
	t.Parallel()

	flag := NewCancelFlag()

	ctx, cancel := context.WithCancel(t.Context())
	stop := flag.bindContext(ctx)
	defer stop()

	cancel()

	select {
	case <-flag.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("flag not set after context cancellation")
	}
}

func Test_CancelFlag_Is_Set_Immediately_When_Context_Already_Done(t *testing.T) {
	t.Parallel()

	flag := NewCancelFlag()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	stop := flag.bindContext(ctx)
	defer stop()

	assert.True(t, flag.IsSet())
}

func Test_CancelFlag_Stays_Unset_When_Binding_Is_Stopped(t *testing.T) {
	t.Parallel()

	flag := NewCancelFlag()

	ctx, cancel := context.WithCancel(t.Context())
	stop := flag.bindContext(ctx)
	stop()
	cancel()

	time.Sleep(20 * time.Millisecond)
	assert.False(t, flag.IsSet())
}
