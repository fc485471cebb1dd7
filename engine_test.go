package blockrev

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, data []byte, opts ...Option) (*engine, *os.File) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "engine.bin")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	require.NoError(t, err)

	t.Cleanup(func() { _ = f.Close() })

	cfg := applyOptions(opts)
	eng := newEngine(newFileHandle(f), NewCancelFlag(), &cfg)

	t.Cleanup(eng.reclaim)

	return eng, f
}

func Test_Engine_Reads_And_Writes_Blocks_When_Operations_Are_Awaited(t *testing.T) {
	t.Parallel()

	for _, mode := range []Mode{ModeAsync, ModeSync} {
		t.Run(mode.String(), func(t *testing.T) {
			t.Parallel()

			eng, f := newTestEngine(t, []byte("0123456789abcdef"), WithMode(mode))

			buf := make([]byte, 4)

			issued, err := eng.issueRead(0, buf, 4)
			require.NoError(t, err)
			require.True(t, issued)
			require.NoError(t, eng.awaitCompletion(0))
			assert.Equal(t, "4567", string(buf))

			issued, err = eng.issueWrite(1, []byte("WXYZ"), 12)
			require.NoError(t, err)
			require.True(t, issued)
			require.NoError(t, eng.sync(1))

			eng.reclaim()

			got, err := os.ReadFile(f.Name())
			require.NoError(t, err)
			assert.Equal(t, "0123456789abWXYZ", string(got))

			assert.Equal(t, 1, eng.reads)
			assert.Equal(t, 1, eng.writes)
			assert.Equal(t, 1, eng.syncs)
		})
	}
}

func Test_Engine_Returns_IOError_When_Read_Passes_End_Of_File(t *testing.T) {
	t.Parallel()

	eng, _ := newTestEngine(t, []byte("short"))

	_, err := eng.issueRead(2, make([]byte, 8), 0)
	require.NoError(t, err)

	err = eng.awaitCompletion(2)

	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "read", ioErr.Op)
	assert.Equal(t, 2, ioErr.Slot)
}

func Test_Engine_Skips_Submission_When_Cancellation_Is_Requested(t *testing.T) {
	t.Parallel()

	eng, _ := newTestEngine(t, []byte("data"))
	eng.flag.Set()

	issued, err := eng.issueWrite(0, []byte("x"), 0)
	require.NoError(t, err)
	assert.False(t, issued)
	assert.Zero(t, eng.writes)

	require.NoError(t, eng.sync(0))
	require.NoError(t, eng.awaitCompletion(0))
}

func Test_Engine_Rejects_Submission_When_Closed(t *testing.T) {
	t.Parallel()

	eng, _ := newTestEngine(t, []byte("data"))
	eng.reclaim()

	_, err := eng.issueRead(0, make([]byte, 1), 0)

	var subErr *SubmitError
	require.ErrorAs(t, err, &subErr)
	require.ErrorIs(t, err, ErrEngineClosed)
	assert.Equal(t, OpRead, subErr.Op)
}

func Test_CancelOutstanding_Reports_AllDone_When_Nothing_Is_In_Flight(t *testing.T) {
	t.Parallel()

	eng, _ := newTestEngine(t, []byte("abcd"))

	res, perSlot := eng.cancelOutstanding()
	assert.Equal(t, CancelAllDone, res)
	assert.Equal(t, [slotCount]CancelResult{CancelAllDone, CancelAllDone, CancelAllDone}, perSlot)

	_, err := eng.issueRead(0, make([]byte, 2), 0)
	require.NoError(t, err)
	require.NoError(t, eng.awaitCompletion(0))

	res, _ = eng.cancelOutstanding()
	assert.Equal(t, CancelAllDone, res)
}

func Test_ApplyOptions_Sets_Defaults_When_Values_Are_Missing(t *testing.T) {
	t.Parallel()

	cfg := applyOptions(nil)
	assert.Equal(t, ModeAsync, cfg.Mode)
	assert.Equal(t, defaultIOWorkers, cfg.Workers)
	assert.Equal(t, slotCount, cfg.QueueDepth)
	assert.Equal(t, defaultMaxBlockSize, cfg.MaxBlockSize)
	assert.NotNil(t, cfg.Logger)
	assert.False(t, cfg.SeedSet)

	cfg = applyOptions([]Option{
		WithIOWorkers(1000),
		WithQueueDepth(16),
		WithMaxBlockSize(1 << 10),
		WithSeed(0),
		nil,
	})
	assert.Equal(t, maxIOWorkers, cfg.Workers)
	assert.Equal(t, 16, cfg.QueueDepth)
	assert.Equal(t, 1<<10, cfg.MaxBlockSize)
	assert.True(t, cfg.SeedSet)
}

func Test_ParseMode_Accepts_Known_Names_Only(t *testing.T) {
	t.Parallel()

	m, ok := ParseMode("sync")
	assert.True(t, ok)
	assert.Equal(t, ModeSync, m)

	m, ok = ParseMode("async")
	assert.True(t, ok)
	assert.Equal(t, ModeAsync, m)

	_, ok = ParseMode("uring")
	assert.False(t, ok)
}

func Test_PickBlocks_Returns_Distinct_Indices_In_Range(t *testing.T) {
	t.Parallel()

	for n := 2; n <= 5; n++ {
		cfg := applyOptions([]Option{WithSeed(uint64(n))})
		p := &pipeline{blockCount: n}
		p.rng = newRand(&cfg)

		for range 200 {
			a, b := p.pickBlocks()
			require.NotEqual(t, a, b)
			require.GreaterOrEqual(t, a, 0)
			require.Less(t, a, n)
			require.GreaterOrEqual(t, b, 0)
			require.Less(t, b, n)
		}
	}
}
