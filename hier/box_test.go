package hier

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cartfluid/ibmesh/geom"
)

func TestBoxContainsVolume(t *testing.T) {
	b := NewBox(geom.IntVec{0, 0, 0}, geom.IntVec{4, 2, 2})
	assert.Equal(t, 16, b.Volume(), "volume")
	assert.True(t, b.Contains(geom.IntVec{0, 0, 0}), "lower corner inside")
	assert.True(t, b.Contains(geom.IntVec{3, 1, 1}), "last cell inside")
	assert.False(t, b.Contains(geom.IntVec{4, 1, 1}), "upper bound exclusive")
	assert.False(t, b.Contains(geom.IntVec{-1, 0, 0}), "below")
}

func TestBoxRefineCoarsen(t *testing.T) {
	b := NewBox(geom.IntVec{1, 2, 3}, geom.IntVec{3, 4, 5})
	r := b.Refine(2)
	assert.Equal(t, NewBox(geom.IntVec{2, 4, 6}, geom.IntVec{6, 8, 10}), r, "refine")
	assert.Equal(t, b, r.Coarsen(2), "coarsen undoes refine")

	// coarsening rounds outward
	c := NewBox(geom.IntVec{1, 1, 1}, geom.IntVec{3, 3, 3}).Coarsen(2)
	assert.Equal(t, NewBox(geom.IntVec{0, 0, 0}, geom.IntVec{2, 2, 2}), c, "outward rounding")

	// negative bounds still round toward -inf / +inf
	n := NewBox(geom.IntVec{-3, -3, -3}, geom.IntVec{-1, -1, -1}).Coarsen(2)
	assert.Equal(t, NewBox(geom.IntVec{-2, -2, -2}, geom.IntVec{0, 0, 0}), n, "negative bounds")
}

func TestBoxIntersect(t *testing.T) {
	a := NewBox(geom.IntVec{0, 0, 0}, geom.IntVec{4, 4, 4})
	b := NewBox(geom.IntVec{2, 2, 2}, geom.IntVec{6, 6, 6})
	got, ok := a.Intersect(b)
	assert.True(t, ok, "overlapping boxes intersect")
	assert.Equal(t, NewBox(geom.IntVec{2, 2, 2}, geom.IntVec{4, 4, 4}), got, "overlap")

	_, ok = a.Intersect(NewBox(geom.IntVec{4, 0, 0}, geom.IntVec{6, 4, 4}))
	assert.False(t, ok, "touching boxes do not intersect")
}

func TestBoxOffset(t *testing.T) {
	b := NewBox(geom.IntVec{1, 1, 1}, geom.IntVec{4, 3, 3})
	assert.Equal(t, 0, b.Offset(geom.IntVec{1, 1, 1}), "first cell")
	assert.Equal(t, 1, b.Offset(geom.IntVec{2, 1, 1}), "x-major")
	assert.Equal(t, 3, b.Offset(geom.IntVec{1, 2, 1}), "y stride")
	assert.Equal(t, b.Volume()-1, b.Offset(geom.IntVec{3, 2, 2}), "last cell")
}
