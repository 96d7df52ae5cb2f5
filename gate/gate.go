// Package gate bounds the number of concurrent node requests with a counting semaphore
package gate

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/fdymylja/blockexport/status"
)

// DefaultConcurrency is the default number of permits of a Gate
const DefaultConcurrency = 100

// Gate hands out at most Size permits at a time. It is safe for concurrent use.
type Gate struct {
	sem  *semaphore.Weighted
	size int64

	closed   chan struct{}
	closeOne sync.Once

	inFlight atomic.Int64
	peak     atomic.Int64
	notifyMu sync.Mutex
	onChange func(inFlight int64)
}

// New builds a Gate with n permits, n <= 0 means DefaultConcurrency
func New(n int) *Gate {
	if n <= 0 {
		n = DefaultConcurrency
	}
	return &Gate{
		sem:    semaphore.NewWeighted(int64(n)),
		size:   int64(n),
		closed: make(chan struct{}),
	}
}

// OnChange registers f to be called with the number of held permits every time it changes, it must be set before use
func (g *Gate) OnChange(f func(inFlight int64)) {
	g.onChange = f
}

// Acquire waits for a free slot. It fails with status.ErrClosed once the gate is closed or with the context error.
func (g *Gate) Acquire(ctx context.Context) (*Permit, error) {
	select {
	case <-g.closed:
		return nil, status.ErrClosed
	default:
	}
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	// the gate may have been closed while waiting
	select {
	case <-g.closed:
		g.sem.Release(1)
		return nil, status.ErrClosed
	default:
	}
	g.track(1)
	return &Permit{gate: g}, nil
}

// Size returns the number of permits of the gate
func (g *Gate) Size() int {
	return int(g.size)
}

// InFlight returns the number of permits currently held
func (g *Gate) InFlight() int64 {
	return g.inFlight.Load()
}

// Peak returns the highest number of permits held at once since the gate was built
func (g *Gate) Peak() int64 {
	return g.peak.Load()
}

// Close makes future Acquire calls fail, permits already handed out stay valid
func (g *Gate) Close() {
	g.closeOne.Do(func() {
		close(g.closed)
	})
}

func (g *Gate) release() {
	g.track(-1)
	g.sem.Release(1)
}

func (g *Gate) track(delta int64) {
	n := g.inFlight.Add(delta)
	for {
		peak := g.peak.Load()
		if n <= peak || g.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	if g.onChange != nil {
		// report the current value rather than n so the last call always sees the final count
		g.notifyMu.Lock()
		g.onChange(g.inFlight.Load())
		g.notifyMu.Unlock()
	}
}

// Permit is one occupied slot of a Gate
type Permit struct {
	gate *Gate
	once sync.Once
}

// Release gives the slot back to the gate, calls after the first one are no-ops
func (p *Permit) Release() {
	p.once.Do(p.gate.release)
}
