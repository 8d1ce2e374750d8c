package comm

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSerialWorld(t *testing.T) {
	w := Serial()
	assert.Equal(t, 1, w.Size())
	assert.Equal(t, 3.5, w.MaxReduce(3.5), "serial max is identity")
	assert.Equal(t, -2.0, w.SumReduce(-2.0), "serial sum is identity")
	assert.Equal(t, 7, w.SumReduceInt(7), "serial int sum is identity")
}

func TestReductionsAcrossRanks(t *testing.T) {
	w := NewWorld(4)
	maxes := make([]float64, 4)
	sums := make([]float64, 4)
	counts := make([]int, 4)

	err := w.Run(func(rank int) error {
		x := float64(rank + 1)
		maxes[rank] = w.MaxReduce(x)
		sums[rank] = w.SumReduce(x)
		counts[rank] = w.SumReduceInt(rank + 1)
		return nil
	})
	assert.NoError(t, err)

	for rank := 0; rank < 4; rank++ {
		assert.Equal(t, 4.0, maxes[rank], "every rank sees the global max")
		assert.Equal(t, 10.0, sums[rank], "every rank sees the global sum")
		assert.Equal(t, 10, counts[rank], "every rank sees the global count")
	}
}

func TestNegativeSumReduce(t *testing.T) {
	w := NewWorld(2)
	var got atomic.Value
	err := w.Run(func(rank int) error {
		got.Store(w.SumReduce(-1.0))
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, -2.0, got.Load(), "sums of negatives work")
}

func TestBarrierAndRounds(t *testing.T) {
	w := NewWorld(3)
	var after int32
	err := w.Run(func(rank int) error {
		w.Barrier()
		atomic.AddInt32(&after, 1)
		// consecutive collectives use separate rounds
		if got := w.SumReduceInt(1); got != 3 {
			t.Errorf("second round sum = %d", got)
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, int32(3), after, "all ranks passed the barrier")
}

func TestWorldRunPropagatesError(t *testing.T) {
	w := NewWorld(2)
	err := w.Run(func(rank int) error {
		if rank == 1 {
			return assert.AnError
		}
		return nil
	})
	assert.Error(t, err, "rank errors surface")
}

func TestNewWorldPanicsOnBadSize(t *testing.T) {
	assert.Panics(t, func() { NewWorld(0) })
}
