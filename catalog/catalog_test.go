package catalog

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cartfluid/ibmesh/geom"
	"github.com/cartfluid/ibmesh/hier"
)

// twoLevelInitializer registers "fiber" (3 vertices) on level 0 and
// "shell" (2 vertices) plus "ring" (4 vertices) on level 1.
func twoLevelInitializer() *Initializer {
	init := NewInitializer("TestInitializer", 2)
	init.SetStructureNamesOnLevel(0, []string{"fiber"})
	init.SetStructureNamesOnLevel(1, []string{"shell", "ring"})

	counts := map[string]int{"fiber": 3, "shell": 2, "ring": 4}
	init.RegisterInitStructureFunc(func(strct, level int) ([]geom.Vec, error) {
		name := init.StructureNames(level)[strct]
		posns := make([]geom.Vec, counts[name])
		for v := range posns {
			posns[v] = geom.Vec{float64(v) * 0.1, float64(level) * 0.1, 0.5}
		}
		return posns, nil
	})
	return init
}

func TestCanonicalIndexBijection(t *testing.T) {
	init := twoLevelInitializer()
	assert.NoError(t, init.Init())

	total := init.TotalNodeCount()
	assert.Equal(t, 9, total, "3 + 2 + 4 vertices")

	seen := make(map[int]bool)
	for _, lvl := range []struct {
		level, strct, n int
	}{{0, 0, 3}, {1, 0, 2}, {1, 1, 4}} {
		for v := 0; v < lvl.n; v++ {
			idx, err := init.CanonicalIndex(lvl.level, PointIndex{lvl.strct, v})
			assert.NoError(t, err)
			assert.False(t, seen[idx], "no index assigned twice")
			assert.True(t, idx >= 0 && idx < total, "index in range")
			seen[idx] = true
		}
	}
	assert.Equal(t, total, len(seen), "bijection onto [0, total)")

	// contiguous per structure, in registration order
	first, last, err := init.StructureIndexRange(1, 0)
	assert.NoError(t, err)
	assert.Equal(t, 3, first, "shell starts after fiber")
	assert.Equal(t, 5, last)

	_, err = init.CanonicalIndex(0, PointIndex{0, 3})
	assert.Error(t, err, "out-of-range vertex")
	_, err = init.CanonicalIndex(2, PointIndex{0, 0})
	assert.Error(t, err, "out-of-range level")
}

func TestInitIdempotent(t *testing.T) {
	init := twoLevelInitializer()
	calls := 0
	inner := init.structureFn
	init.structureFn = func(strct, level int) ([]geom.Vec, error) {
		calls++
		return inner(strct, level)
	}
	assert.NoError(t, init.Init())
	n := calls
	assert.NoError(t, init.Init(), "second Init is a no-op")
	assert.Equal(t, n, calls, "callbacks not re-invoked")
}

func TestInitRequiresStructureFunc(t *testing.T) {
	init := NewInitializer("TestInitializer", 1)
	init.SetStructureNamesOnLevel(0, []string{"x"})
	err := init.Init()
	assert.Error(t, err, "no structure callback configured")
}

func TestShiftScaleRoundTrip(t *testing.T) {
	init := NewInitializer("TestInitializer", 1)
	init.SetStructureNamesOnLevel(0, []string{"point"})
	init.RegisterInitStructureFunc(func(strct, level int) ([]geom.Vec, error) {
		return []geom.Vec{{0, 0, 0}}, nil
	})
	init.RegisterInitSpringFunc(func(strct, level int) (map[Edge]SpringSpec, error) {
		return nil, nil
	})
	init.SetLengthScaleFactor(2)
	init.SetPosnShift(geom.Vec{1, 0, 0})
	assert.NoError(t, init.Init())

	x, err := init.VertexPosn(0, PointIndex{0, 0})
	assert.NoError(t, err)
	assert.Equal(t, geom.Vec{2, 0, 0}, x, "X = s*(X_input + shift) exactly")
}

func TestSpringRestLengthScaled(t *testing.T) {
	init := NewInitializer("TestInitializer", 1)
	init.SetStructureNamesOnLevel(0, []string{"pair"})
	init.RegisterInitStructureFunc(func(strct, level int) ([]geom.Vec, error) {
		return []geom.Vec{{0, 0, 0}, {1, 0, 0}}, nil
	})
	init.RegisterInitSpringFunc(func(strct, level int) (map[Edge]SpringSpec, error) {
		return map[Edge]SpringSpec{
			{0, 1}: {Parameters: []float64{10, 1}},
		}, nil
	})
	init.SetLengthScaleFactor(3)
	assert.NoError(t, init.Init())

	spec := init.SpringSpecs(0, 0)[Edge{0, 1}]
	assert.Equal(t, 10.0, spec.Parameters[0], "stiffness unscaled")
	assert.Equal(t, 3.0, spec.Parameters[1], "rest length scaled")
	assert.Equal(t, 0, spec.ForceFcnIdx, "force function defaults to the primary law")
}

func TestEdgeOrdering(t *testing.T) {
	assert.True(t, Edge{0, 1}.Less(Edge{0, 2}), "tie broken by second")
	assert.True(t, Edge{0, 9}.Less(Edge{1, 0}), "first index dominates")
	assert.False(t, Edge{1, 1}.Less(Edge{1, 1}), "irreflexive")

	m := map[Edge]SpringSpec{
		{2, 3}: {}, {0, 1}: {}, {0, 2}: {}, {1, 0}: {},
	}
	got := SortedEdges(m)
	want := []Edge{{0, 1}, {0, 2}, {1, 0}, {2, 3}}
	assert.Equal(t, want, got, "strict lexicographic iteration order")
}

func TestConnectivityValidation(t *testing.T) {
	init := NewInitializer("TestInitializer", 1)
	init.SetStructureNamesOnLevel(0, []string{"fiber"})
	init.RegisterInitStructureFunc(func(strct, level int) ([]geom.Vec, error) {
		return []geom.Vec{{0, 0, 0}, {0.1, 0, 0}}, nil
	})
	init.RegisterInitSpringFunc(func(strct, level int) (map[Edge]SpringSpec, error) {
		return map[Edge]SpringSpec{{0, 5}: {Parameters: []float64{1, 0.1}}}, nil
	})
	err := init.Init()
	assert.Error(t, err, "edge references a missing vertex")
	assert.Contains(t, err.Error(), "fiber", "error names the structure")
	assert.Contains(t, err.Error(), "5", "error names the bad index")
}

func TestPerVertexSpecQueries(t *testing.T) {
	init := NewInitializer("TestInitializer", 1)
	init.SetStructureNamesOnLevel(0, []string{"fiber"})
	init.RegisterInitStructureFunc(func(strct, level int) ([]geom.Vec, error) {
		return []geom.Vec{{0, 0, 0}, {0.1, 0, 0}}, nil
	})
	init.RegisterInitTargetFunc(func(strct, level int) (map[int]TargetSpec, error) {
		return map[int]TargetSpec{0: {Stiffness: 5, Damping: 1}}, nil
	})
	init.RegisterInitAnchorFunc(func(strct, level int) (map[int]AnchorSpec, error) {
		return map[int]AnchorSpec{1: {IsAnchorPoint: true}}, nil
	})
	init.RegisterInitInstrumentationFunc(
		func(strct, level int) ([]string, map[int]InstrumentIdx, error) {
			return []string{"meter0"}, map[int]InstrumentIdx{1: {Meter: 0, Node: 0}}, nil
		})
	init.RegisterInitSourceFunc(
		func(strct, level int) ([]string, []float64, map[int]int, error) {
			return []string{"inflow"}, []float64{0.05}, map[int]int{0: 0}, nil
		})
	assert.NoError(t, init.Init())

	spec, ok := init.VertexTargetSpec(0, PointIndex{0, 0})
	assert.True(t, ok)
	assert.Equal(t, 5.0, spec.Stiffness)
	_, ok = init.VertexTargetSpec(0, PointIndex{0, 1})
	assert.False(t, ok, "absence means no constraint, not zeroes")

	_, ok = init.VertexAnchorSpec(0, PointIndex{0, 0})
	assert.False(t, ok)
	anchor, ok := init.VertexAnchorSpec(0, PointIndex{0, 1})
	assert.True(t, ok)
	assert.True(t, anchor.IsAnchorPoint)

	inst := init.VertexInstrumentationIndices(0, PointIndex{0, 1})
	assert.Equal(t, InstrumentIdx{0, 0}, inst)
	miss := init.VertexInstrumentationIndices(0, PointIndex{0, 0})
	assert.Equal(t, InstrumentIdx{InvalidIndex, InvalidIndex}, miss, "(-1,-1) miss")

	assert.Equal(t, 0, init.VertexSourceIndex(0, PointIndex{0, 0}))
	assert.Equal(t, InvalidIndex, init.VertexSourceIndex(0, PointIndex{0, 1}), "-1 miss")

	assert.Equal(t, []string{"meter0"}, init.InstrumentNames())
	assert.Equal(t, []string{"inflow"}, init.SourceNames())
	assert.Equal(t, []float64{0.05}, init.SourceRadii())
}

func TestQueryBeforeInitPanics(t *testing.T) {
	init := twoLevelInitializer()
	assert.Panics(t, func() { init.TotalNodeCount() })
	assert.Panics(t, func() { init.VertexPosn(0, PointIndex{0, 0}) })
	assert.Panics(t, func() { init.VertexTargetSpec(0, PointIndex{0, 0}) })
}

func TestRegisterAfterInitPanics(t *testing.T) {
	init := twoLevelInitializer()
	assert.NoError(t, init.Init())
	assert.Panics(t, func() {
		init.RegisterInitSpringFunc(func(strct, level int) (map[Edge]SpringSpec, error) {
			return nil, nil
		})
	})
}

func TestShiftedVertexPosnWraps(t *testing.T) {
	init := NewInitializer("TestInitializer", 1)
	init.SetStructureNamesOnLevel(0, []string{"runaway"})
	init.RegisterInitStructureFunc(func(strct, level int) ([]geom.Vec, error) {
		return []geom.Vec{{1.25, -0.5, 0.5}}, nil
	})
	assert.NoError(t, init.Init())

	g := &hier.GridGeometry{
		XLo: geom.Vec{0, 0, 0}, XUp: geom.Vec{1, 1, 1},
		DomainCells: geom.IntVec{8, 8, 8},
		Periodic:    [3]bool{true, true, false},
	}
	x, err := init.ShiftedVertexPosn(0, PointIndex{0, 0}, g)
	assert.NoError(t, err)
	assert.Equal(t, geom.Vec{0.25, 0.5, 0.5}, x, "periodic dims wrap, others do not")
}

func TestRodDirectorsRoundTrip(t *testing.T) {
	init := NewInitializer("TestInitializer", 1)
	init.SetStructureNamesOnLevel(0, []string{"rod"})
	init.RegisterInitStructureFunc(func(strct, level int) ([]geom.Vec, error) {
		return []geom.Vec{{0, 0, 0}, {0.1, 0, 0}}, nil
	})
	frame := Frame{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	var rod RodSpec
	for i := range rod.Properties {
		rod.Properties[i] = float64(i)
	}
	init.RegisterInitRodFunc(
		func(strct, level int) (map[int]Frame, map[Edge]RodSpec, error) {
			return map[int]Frame{0: frame, 1: frame},
				map[Edge]RodSpec{{0, 1}: rod}, nil
		})
	assert.NoError(t, init.Init())

	got, ok := init.VertexDirectors(0, PointIndex{0, 0})
	assert.True(t, ok)
	assert.Equal(t, frame, got)
	assert.Equal(t, rod, init.RodSpecs(0, 0)[Edge{0, 1}])
	_, ok = init.VertexDirectors(0, PointIndex{0, 1})
	assert.True(t, ok)
}

func TestBeamValidation(t *testing.T) {
	for _, bad := range []BeamSpec{
		{Neighbors: [2]int{-1, 1}},
		{Neighbors: [2]int{0, 7}},
	} {
		init := NewInitializer("TestInitializer", 1)
		init.SetStructureNamesOnLevel(0, []string{"beam"})
		init.RegisterInitStructureFunc(func(strct, level int) ([]geom.Vec, error) {
			return []geom.Vec{{0, 0, 0}, {0.1, 0, 0}, {0.2, 0, 0}}, nil
		})
		bad := bad
		init.RegisterInitBeamFunc(func(strct, level int) (map[int][]BeamSpec, error) {
			return map[int][]BeamSpec{1: {bad}}, nil
		})
		err := init.Init()
		assert.Error(t, err, fmt.Sprintf("neighbors %v out of range", bad.Neighbors))
	}
}
