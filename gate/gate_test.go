package gate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fdymylja/blockexport/status"
)

func TestGate_Bounded(t *testing.T) {
	const size = 4
	g := New(size)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		permit, err := g.Acquire(context.Background())
		require.NoError(t, err)
		require.LessOrEqual(t, g.InFlight(), int64(size))
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer permit.Release()
			time.Sleep(time.Millisecond)
		}()
	}
	wg.Wait()
	require.Zero(t, g.InFlight())
	require.LessOrEqual(t, g.Peak(), int64(size))
	require.Positive(t, g.Peak())
}

func TestGate_DoubleReleaseIsNoop(t *testing.T) {
	g := New(1)
	p, err := g.Acquire(context.Background())
	require.NoError(t, err)
	p.Release()
	p.Release()
	require.Zero(t, g.InFlight())

	// exactly one slot must be free again
	p1, err := g.Acquire(context.Background())
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = g.Acquire(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	p1.Release()
}

func TestGate_Close(t *testing.T) {
	g := New(2)
	p, err := g.Acquire(context.Background())
	require.NoError(t, err)
	g.Close()
	g.Close()
	_, err = g.Acquire(context.Background())
	require.ErrorIs(t, err, status.ErrClosed)
	// permits handed out before Close stay releasable
	p.Release()
	require.Zero(t, g.InFlight())
}

func TestGate_DefaultSize(t *testing.T) {
	require.Equal(t, DefaultConcurrency, New(0).Size())
}

func TestGate_OnChange(t *testing.T) {
	g := New(3)
	var seen []int64
	g.OnChange(func(n int64) { seen = append(seen, n) })
	p1, _ := g.Acquire(context.Background())
	p2, _ := g.Acquire(context.Background())
	p2.Release()
	p1.Release()
	require.Equal(t, []int64{1, 2, 1, 0}, seen)
}
