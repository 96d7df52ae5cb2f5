package blockrange

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// collect returns every block number visited by the planner, checking chunk sizes on the way
func collect(t *testing.T, r Range, size uint64) []uint64 {
	t.Helper()
	var numbers []uint64
	p := r.Chunks(size)
	for c, ok := p.Next(); ok; c, ok = p.Next() {
		require.LessOrEqual(t, uint64(c.Len()), size)
		require.LessOrEqual(t, c.Start, c.End)
		numbers = append(numbers, c.Numbers()...)
	}
	return numbers
}

func TestPlanner_ChunkBoundaries(t *testing.T) {
	const size = 10
	for _, length := range []uint64{1, size - 1, size, size + 1, 3*size + 7} {
		r := New(100, 100+length-1)
		numbers := collect(t, r, size)
		require.Len(t, numbers, int(length))
		for i, n := range numbers {
			require.Equal(t, r.Start+uint64(i), n)
		}
		require.EqualValues(t, length, r.Len())
	}
}

func TestPlanner_LastChunkSmaller(t *testing.T) {
	chunks := New(1, 2501).Chunks(0).All()
	require.Equal(t, []Chunk{{1, 1000}, {1001, 2000}, {2001, 2501}}, chunks)
}

func TestPlanner_Empty(t *testing.T) {
	r := New(10, 9)
	require.True(t, r.Empty())
	require.Zero(t, r.Len())
	_, ok := r.Chunks(5).Next()
	require.False(t, ok)
}

func TestPlanner_SingleBlock(t *testing.T) {
	require.Equal(t, []Chunk{{42, 42}}, New(42, 42).Chunks(1000).All())
}

func TestPlanner_Restartable(t *testing.T) {
	p := New(0, 24).Chunks(10)
	first := p.All()
	second := p.All()
	require.Equal(t, first, second)
	require.Len(t, first, 3)

	c, ok := p.Next()
	require.True(t, ok)
	require.Equal(t, Chunk{0, 9}, c)
	p.Reset()
	c, _ = p.Next()
	require.Equal(t, Chunk{0, 9}, c)
}

func TestPlanner_TopOfRange(t *testing.T) {
	r := New(math.MaxUint64-4, math.MaxUint64)
	chunks := r.Chunks(2).All()
	require.Equal(t, []Chunk{
		{math.MaxUint64 - 4, math.MaxUint64 - 3},
		{math.MaxUint64 - 2, math.MaxUint64 - 1},
		{math.MaxUint64, math.MaxUint64},
	}, chunks)
	require.EqualValues(t, 5, r.Len())
}

func TestPlanner_ChunkSizeCapped(t *testing.T) {
	p := New(0, math.MaxUint64).Chunks(math.MaxUint64)
	c, ok := p.Next()
	require.True(t, ok)
	require.Equal(t, Chunk{Start: 0, End: MaxChunkSize - 1}, c)
	require.Equal(t, MaxChunkSize, c.Len())
	require.Len(t, c.Numbers(), MaxChunkSize)

	c, ok = p.Next()
	require.True(t, ok)
	require.Equal(t, uint64(MaxChunkSize), c.Start)
}
