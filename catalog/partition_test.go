package catalog

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cartfluid/ibmesh/comm"
	"github.com/cartfluid/ibmesh/geom"
	"github.com/cartfluid/ibmesh/hier"
)

func partitionGeometry(periodic bool) *hier.GridGeometry {
	return &hier.GridGeometry{
		XLo: geom.Vec{0, 0, 0}, XUp: geom.Vec{1, 1, 1},
		DomainCells: geom.IntVec{8, 8, 8},
		Periodic:    [3]bool{periodic, periodic, periodic},
	}
}

// ringInitializer registers one 32-vertex circle on level 0.
func ringInitializer(t *testing.T) *Initializer {
	init := NewInitializer("TestInitializer", 1)
	init.SetStructureNamesOnLevel(0, []string{"ring"})
	init.RegisterInitStructureFunc(func(strct, level int) ([]geom.Vec, error) {
		posns := make([]geom.Vec, 32)
		for v := range posns {
			th := 2 * math.Pi * float64(v) / 32
			posns[v] = geom.Vec{0.5 + 0.3*math.Cos(th), 0.5 + 0.3*math.Sin(th), 0.5}
		}
		return posns, nil
	})
	assert.NoError(t, init.Init())
	return init
}

// splitHierarchy decomposes level 0 into nx patches along x, one per rank.
func splitHierarchy(g *hier.GridGeometry, nx int) *hier.Hierarchy {
	h := hier.NewHierarchy(g)
	lvl := &hier.Level{Num: 0, Ratio: 1}
	for r := 0; r < nx; r++ {
		lo := geom.IntVec{r * g.DomainCells[0] / nx, 0, 0}
		hi := geom.IntVec{(r + 1) * g.DomainCells[0] / nx, g.DomainCells[1], g.DomainCells[2]}
		lvl.Patches = append(lvl.Patches, hier.NewPatch(r, r, hier.NewBox(lo, hi)))
	}
	h.SetLevels([]*hier.Level{lvl})
	return h
}

func TestPatchVerticesPartition(t *testing.T) {
	init := ringInitializer(t)
	h := splitHierarchy(partitionGeometry(true), 4)

	seen := make(map[PointIndex]int)
	total := 0
	for _, p := range h.Level(0).Patches {
		owned := init.PatchVertices(h, 0, p)
		total += len(owned)
		for _, pi := range owned {
			seen[pi]++
		}
	}
	assert.Equal(t, 32, total, "no vertex counted twice or omitted")
	for pi, n := range seen {
		assert.Equal(t, 1, n, "vertex %v owned exactly once", pi)
	}
}

func TestPatchVerticesCanonicalOrder(t *testing.T) {
	init := ringInitializer(t)
	h := splitHierarchy(partitionGeometry(true), 2)

	for _, p := range h.Level(0).Patches {
		owned := init.PatchVertices(h, 0, p)
		last := -1
		for _, pi := range owned {
			idx, err := init.CanonicalIndex(0, pi)
			assert.NoError(t, err)
			assert.Greater(t, idx, last, "strictly increasing canonical order")
			last = idx
		}
	}
}

func TestGlobalEqualsSumOfLocalCounts(t *testing.T) {
	init := ringInitializer(t)
	g := partitionGeometry(true)

	w := comm.NewWorld(4)
	got := make([]int, 4)
	err := w.Run(func(rank int) error {
		h := splitHierarchy(g, 4)
		got[rank] = init.GlobalNodeCountParallel(w, h, 0, rank)
		return nil
	})
	assert.NoError(t, err)
	for rank := 0; rank < 4; rank++ {
		assert.Equal(t, init.GlobalNodeCount(0), got[rank],
			"global count equals the sum of local counts")
	}
}

func TestCanonicalIndexInvariantUnderRegrid(t *testing.T) {
	init := ringInitializer(t)
	g := partitionGeometry(true)

	before := make(map[PointIndex]int)
	h := splitHierarchy(g, 2)
	for _, p := range h.Level(0).Patches {
		for _, pi := range init.PatchVertices(h, 0, p) {
			idx, _ := init.CanonicalIndex(0, pi)
			before[pi] = idx
		}
	}

	// a different decomposition changes ownership but not indices
	h2 := splitHierarchy(g, 4)
	for _, p := range h2.Level(0).Patches {
		for _, pi := range init.PatchVertices(h2, 0, p) {
			idx, _ := init.CanonicalIndex(0, pi)
			assert.Equal(t, before[pi], idx, "canonical index survives regrid")
		}
	}
}

func TestBoundaryVertexOwnedByLowestPatch(t *testing.T) {
	init := NewInitializer("TestInitializer", 1)
	init.SetStructureNamesOnLevel(0, []string{"edge"})
	init.RegisterInitStructureFunc(func(strct, level int) ([]geom.Vec, error) {
		// exactly on the boundary between patches 0 and 1 (x = 0.5 maps
		// to cell 4, the first cell of patch 1)
		return []geom.Vec{{0.5, 0.5, 0.5}}, nil
	})
	assert.NoError(t, init.Init())

	h := splitHierarchy(partitionGeometry(true), 2)
	assert.Equal(t, 0, len(init.PatchVertices(h, 0, h.Level(0).Patches[0])))
	assert.Equal(t, 1, len(init.PatchVertices(h, 0, h.Level(0).Patches[1])),
		"half-open cells give a deterministic owner")
}

func TestPeriodicOwnershipConsistency(t *testing.T) {
	init := NewInitializer("TestInitializer", 1)
	init.SetStructureNamesOnLevel(0, []string{"outside"})
	init.RegisterInitStructureFunc(func(strct, level int) ([]geom.Vec, error) {
		// on the upper domain boundary: wraps to x = 0
		return []geom.Vec{{1.0, 0.5, 0.5}}, nil
	})
	assert.NoError(t, init.Init())

	g := partitionGeometry(true)
	h := splitHierarchy(g, 2)
	owned := init.PatchVertices(h, 0, h.Level(0).Patches[0])
	assert.Equal(t, 1, len(owned), "wrapped vertex owned by the lower patch")

	x, err := init.ShiftedVertexPosn(0, PointIndex{0, 0}, g)
	assert.NoError(t, err)
	cell := g.CellAt(x, g.Dx())
	assert.True(t, h.Level(0).Patches[0].Box.Contains(cell),
		"shifted position and ownership agree")
}

func TestUpperDomainBoundaryVertexOwned(t *testing.T) {
	init := NewInitializer("TestInitializer", 1)
	init.SetStructureNamesOnLevel(0, []string{"wall"})
	init.RegisterInitStructureFunc(func(strct, level int) ([]geom.Vec, error) {
		// exactly on the non-periodic upper domain boundary, which
		// AllDataInDomain admits
		return []geom.Vec{{1.0, 0.5, 0.5}}, nil
	})
	assert.NoError(t, init.Init())

	g := partitionGeometry(false)
	h := splitHierarchy(g, 2)
	assert.NoError(t, init.AllDataInDomain(g))

	total := 0
	for _, p := range h.Level(0).Patches {
		total += len(init.PatchVertices(h, 0, p))
	}
	assert.Equal(t, 1, total, "boundary vertex owned by exactly one patch")
	assert.Equal(t, 1, len(init.PatchVertices(h, 0, h.Level(0).Patches[1])),
		"owned by the patch holding the last cell")
	assert.Equal(t, 1, init.LocalNodeCount(h, 0, 1), "counted once")
}

func TestSetCurrentPositionsRebuckets(t *testing.T) {
	init := NewInitializer("TestInitializer", 1)
	init.SetStructureNamesOnLevel(0, []string{"mover"})
	init.RegisterInitStructureFunc(func(strct, level int) ([]geom.Vec, error) {
		return []geom.Vec{{0.25, 0.5, 0.5}}, nil
	})
	assert.NoError(t, init.Init())

	h := splitHierarchy(partitionGeometry(true), 2)
	left, right := h.Level(0).Patches[0], h.Level(0).Patches[1]
	assert.Equal(t, 1, len(init.PatchVertices(h, 0, left)), "starts on the left")

	assert.NoError(t, init.SetCurrentPositions(0, 0, []geom.Vec{{0.75, 0.5, 0.5}}))
	assert.Equal(t, 0, len(init.PatchVertices(h, 0, left)))
	assert.Equal(t, 1, len(init.PatchVertices(h, 0, right)), "moves to the right")

	// the initial position is unchanged
	x, err := init.VertexPosn(0, PointIndex{0, 0})
	assert.NoError(t, err)
	assert.Equal(t, geom.Vec{0.25, 0.5, 0.5}, x)

	err = init.SetCurrentPositions(0, 0, []geom.Vec{{0, 0, 0}, {1, 1, 1}})
	assert.Error(t, err, "wrong position count")
}

func TestAllDataInDomain(t *testing.T) {
	init := NewInitializer("TestInitializer", 1)
	init.SetStructureNamesOnLevel(0, []string{"stray"})
	init.RegisterInitStructureFunc(func(strct, level int) ([]geom.Vec, error) {
		return []geom.Vec{{1.5, 0.5, 0.5}}, nil
	})
	assert.NoError(t, init.Init())

	assert.NoError(t, init.AllDataInDomain(partitionGeometry(true)),
		"periodic domains accept any position")
	err := init.AllDataInDomain(partitionGeometry(false))
	assert.Error(t, err, "non-periodic out-of-domain vertex")
	assert.Contains(t, err.Error(), "stray", "error names the structure")
}

func TestInitializeLevelData(t *testing.T) {
	init := ringInitializer(t)
	h := splitHierarchy(partitionGeometry(true), 2)

	nodes0, err := init.InitializeLevelData(h, 0, 0)
	assert.NoError(t, err)
	nodes1, err := init.InitializeLevelData(h, 0, 1)
	assert.NoError(t, err)

	total := 0
	for _, ns := range nodes0.Nodes {
		total += len(ns)
	}
	for _, ns := range nodes1.Nodes {
		total += len(ns)
	}
	assert.Equal(t, 32, total, "ranks partition the level")
	assert.Equal(t, [2]int{0, 32}, nodes0.Range["ring"], "index range bookkeeping")

	for _, ns := range nodes0.Nodes {
		for _, n := range ns {
			idx, err := init.CanonicalIndex(0, n.Point)
			assert.NoError(t, err)
			assert.Equal(t, idx, n.Canonical, "node carries its canonical index")
		}
	}
}

func TestLevelHasLagrangianData(t *testing.T) {
	init := NewInitializer("TestInitializer", 2)
	init.SetStructureNamesOnLevel(1, []string{"fine"})
	init.RegisterInitStructureFunc(func(strct, level int) ([]geom.Vec, error) {
		return []geom.Vec{{0.5, 0.5, 0.5}}, nil
	})
	assert.NoError(t, init.Init())
	assert.False(t, init.LevelHasLagrangianData(0))
	assert.True(t, init.LevelHasLagrangianData(1))
}

func TestTagCellsForInitialRefinement(t *testing.T) {
	init := NewInitializer("TestInitializer", 2)
	init.SetStructureNamesOnLevel(1, []string{"fine"})
	init.RegisterInitStructureFunc(func(strct, level int) ([]geom.Vec, error) {
		return []geom.Vec{{0.3, 0.3, 0.3}}, nil
	})
	assert.NoError(t, init.Init())

	g := partitionGeometry(true)
	h := splitHierarchy(g, 1)
	tagVar := &hier.Variable{Name: "tags", Centering: hier.CellCentered, Depth: 1}
	tagIdx := h.Vars.RegisterVariableAndContext(tagVar, &hier.Context{Name: "TAG"}, geom.IntVec{})
	h.AllocatePatchData(tagIdx, 0)

	init.TagCellsForInitialRefinement(h, 0, tagIdx)

	p := h.Level(0).Patches[0]
	d, _ := p.Data(tagIdx)
	cell := g.CellAt(geom.Vec{0.3, 0.3, 0.3}, g.Dx())
	assert.Equal(t, 1.0, d.Vals[p.Box.Offset(cell)], "cell under the structure tagged")

	tagged := 0
	for _, v := range d.Vals {
		if v != 0 {
			tagged++
		}
	}
	assert.Equal(t, 1, tagged, "only the occupied cell tagged")
}
