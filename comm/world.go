/*package comm provides the communication layer of the coupling code: a
fixed-size group of ranks with blocking collective reductions, and the
registry of named ghost-fill, coarsen, and prolongation schedules used
during a coupling step and during regridding.

Ranks are in-process: each rank is a goroutine driven by World.Run, and the
collectives are rendezvous points every rank must reach. This mirrors how
the production code synchronizes across distributed ranks; nothing in the
callers depends on ranks sharing an address space.
*/
package comm

import (
	"math"
	"sync"

	"golang.org/x/sync/errgroup"
)

// World is a fixed-size group of ranks. All collectives block until every
// rank in the world has joined, then deliver the reduced result to every
// caller.
type World struct {
	size int

	mu    sync.Mutex
	round *reduceRound
}

type reduceRound struct {
	joined int
	val    float64
	ival   int
	done   chan struct{}
	result float64
	iresult int
}

// NewWorld returns a world with the given number of ranks.
func NewWorld(size int) *World {
	if size < 1 {
		panic("comm: world size must be positive")
	}
	return &World{size: size}
}

// Serial returns the single-rank world. Its collectives return their
// arguments immediately.
func Serial() *World { return NewWorld(1) }

// Size returns the number of ranks in the world.
func (w *World) Size() int { return w.size }

// Run executes fn once per rank, each on its own goroutine, and waits for
// all of them. The first error encountered is returned.
func (w *World) Run(fn func(rank int) error) error {
	g := new(errgroup.Group)
	for r := 0; r < w.size; r++ {
		r := r
		g.Go(func() error { return fn(r) })
	}
	return g.Wait()
}

// join enters the current collective round, applying combine to fold this
// rank's contribution in, and blocks until all ranks have joined.
func (w *World) join(x float64, ix int, combine func(r *reduceRound, x float64, ix int)) *reduceRound {
	w.mu.Lock()
	if w.round == nil {
		w.round = &reduceRound{
			val:  math.Inf(-1),
			done: make(chan struct{}),
		}
	}
	r := w.round
	combine(r, x, ix)
	r.joined++
	if r.joined == w.size {
		r.result = r.val
		r.iresult = r.ival
		w.round = nil
		close(r.done)
	}
	w.mu.Unlock()
	<-r.done
	return r
}

// MaxReduce returns the global maximum of x over all ranks. The reduction
// is a true global maximum, not a per-rank estimate.
func (w *World) MaxReduce(x float64) float64 {
	r := w.join(x, 0, func(r *reduceRound, x float64, _ int) {
		if x > r.val {
			r.val = x
		}
	})
	return r.result
}

// SumReduce returns the global sum of x over all ranks.
func (w *World) SumReduce(x float64) float64 {
	r := w.join(x, 0, func(r *reduceRound, x float64, _ int) {
		if math.IsInf(r.val, -1) {
			r.val = 0
		}
		r.val += x
	})
	return r.result
}

// SumReduceInt returns the global sum of n over all ranks.
func (w *World) SumReduceInt(n int) int {
	r := w.join(0, n, func(r *reduceRound, _ float64, n int) {
		r.ival += n
	})
	return r.iresult
}

// Barrier blocks until every rank has reached it.
func (w *World) Barrier() {
	w.join(0, 0, func(*reduceRound, float64, int) {})
}
