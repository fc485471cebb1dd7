package blockrev_test

import (
	"bytes"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/calvinalkan/blockrev/internal/gen"
	"github.com/stretchr/testify/require"
)

// writeBlockFile creates a file of n labelled blocks of blockSize bytes,
// followed by a trailing newline unless binary is set. With blockSize of at
// least gen.MinBlockSize(n), every block is distinct and not a palindrome, so
// a reversed block is always detectable.
func writeBlockFile(t *testing.T, n, blockSize int, binary bool) (string, []byte) {
	t.Helper()

	data := make([]byte, 0, n*blockSize+1)

	for i := range n {
		block := make([]byte, blockSize)
		gen.Block(block, i)

		data = append(data, block...)
	}

	if !binary {
		data = append(data, '\n')
	}

	path := filepath.Join(t.TempDir(), "work.txt")

	err := os.WriteFile(path, data, 0o600)
	require.NoError(t, err)

	return path, data
}

func openRW(t *testing.T, path string) *os.File {
	t.Helper()

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	require.NoError(t, err)

	t.Cleanup(func() { _ = f.Close() })

	return f
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	return data
}

func reversed(b []byte) []byte {
	out := slices.Clone(b)
	slices.Reverse(out)

	return out
}

func blockAt(data []byte, blockSize, i int) []byte {
	return data[i*blockSize : (i+1)*blockSize]
}

// changedBlocks returns the indices of blocks that differ between a and b.
func changedBlocks(a, b []byte, n, blockSize int) []int {
	var out []int

	for i := range n {
		if !bytes.Equal(blockAt(a, blockSize, i), blockAt(b, blockSize, i)) {
			out = append(out, i)
		}
	}

	return out
}

// modelRewrite replays a seeded run sequentially in memory and returns the
// expected file content.
//
// Within one step the write and the read target distinct blocks, so applying
// them in sequence yields the same bytes as the overlapped pipeline.
func modelRewrite(orig []byte, n, k, blockSize int, seed uint64) []byte {
	file := slices.Clone(orig)
	rng := rand.New(rand.NewPCG(seed, seed))

	read := func(block int) []byte {
		return slices.Clone(blockAt(file, blockSize, block))
	}

	write := func(buf []byte, block int) {
		copy(file[block*blockSize:], buf)
	}

	var slots [3][]byte

	slots[1] = read(rng.IntN(n))

	pos := 1

	if k > 1 {
		pos = 0

		for j := range k {
			a := rng.IntN(n)

			b := rng.IntN(n - 1)
			if b >= a {
				b++
			}

			if j > 0 {
				write(slots[pos], a)
			}

			if j < k-1 {
				slots[(pos+2)%3] = read(b)
			}

			slices.Reverse(slots[(pos+1)%3])

			pos = (pos + 1) % 3
		}
	} else {
		slices.Reverse(slots[1])
	}

	write(slots[pos], rng.IntN(n))

	return file
}

func writeFileBytes(path string, data []byte) error {
	return os.WriteFile(path, data, 0o600)
}
