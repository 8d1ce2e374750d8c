package catalog

import (
	"fmt"
	"sort"

	"github.com/cartfluid/ibmesh/comm"
	"github.com/cartfluid/ibmesh/geom"
	"github.com/cartfluid/ibmesh/hier"
)

// levelBuckets indexes one level's vertices by the coarse cell their
// current position falls in, so patch-ownership queries only examine
// candidates near the patch.
type levelBuckets struct {
	grid  *geom.Grid
	cells [][]PointIndex
}

func (init *Initializer) bucketsFor(level int, g *hier.GridGeometry) *levelBuckets {
	init.bucketsMu.Lock()
	defer init.bucketsMu.Unlock()
	if b := init.buckets[level]; b != nil {
		return b
	}

	b := &levelBuckets{
		grid: geom.NewGrid([3]int{}, [3]int(g.DomainCells)),
	}
	b.cells = make([][]PointIndex, b.grid.Volume)
	dx := g.Dx()

	ld := init.levels[level]
	for s := range ld.names {
		for v, x := range ld.cur[s] {
			c := g.CellAt(g.Wrap(x), dx)
			if idx, ok := b.grid.IdxCheck(c[0], c[1], c[2]); ok {
				b.cells[idx] = append(b.cells[idx], PointIndex{s, v})
			}
		}
	}

	init.buckets[level] = b
	return b
}

// SetCurrentPositions replaces the current positions of one structure, so
// that ownership queries after a regrid track the displaced mesh. The
// positions must already be in physical (scaled) units.
func (init *Initializer) SetCurrentPositions(level, strct int, posns []geom.Vec) error {
	init.mustBeInitialized("SetCurrentPositions")
	if err := init.checkPoint("SetCurrentPositions", level, PointIndex{strct, 0}); err != nil {
		return err
	}
	ld := init.levels[level]
	if len(posns) != ld.numVertex[strct] {
		return fmt.Errorf(
			"%s::SetCurrentPositions(): got %d positions for structure '%s' "+
				"on level %d, want %d",
			init.name, len(posns), ld.names[strct], level, ld.numVertex[strct],
		)
	}
	copy(ld.cur[strct], posns)
	init.bucketsMu.Lock()
	init.buckets[level] = nil
	init.bucketsMu.Unlock()
	return nil
}

// ownerNum returns the number of the patch owning a cell: the
// lowest-numbered patch of the level whose box contains it. -1 if no
// patch does.
func ownerNum(lvl *hier.Level, cell geom.IntVec) int {
	owner := -1
	for _, p := range lvl.Patches {
		if p.Box.Contains(cell) && (owner == -1 || p.Num < owner) {
			owner = p.Num
		}
	}
	return owner
}

// PatchVertices returns, in canonical order, the vertices owned by one
// patch: those whose wrapped current position falls in a cell of the
// patch's box, with ties on patch boundaries broken toward the
// lowest-numbered patch. Every vertex on the level is owned by exactly
// one patch, so the union over the level's patches partitions the level's
// vertices.
func (init *Initializer) PatchVertices(h *hier.Hierarchy, level int, patch *hier.Patch) []PointIndex {
	init.mustBeInitialized("PatchVertices")

	lvl := h.Level(level)
	g := h.Geometry
	b := init.bucketsFor(level, g)
	dx := h.DxAtLevel(level)
	ld := init.levels[level]

	// Only buckets under the patch's coarse footprint can contribute.
	footprint := patch.Box.Coarsen(lvl.Ratio)
	var owned []PointIndex
	for z := footprint.Lo[2]; z < footprint.Hi[2]; z++ {
		for y := footprint.Lo[1]; y < footprint.Hi[1]; y++ {
			for x := footprint.Lo[0]; x < footprint.Hi[0]; x++ {
				idx, ok := b.grid.IdxCheck(x, y, z)
				if !ok {
					continue
				}
				for _, p := range b.cells[idx] {
					cell := g.CellAt(g.Wrap(ld.cur[p.Strct][p.Vertex]), dx)
					if !patch.Box.Contains(cell) {
						continue
					}
					if ownerNum(lvl, cell) != patch.Num {
						continue
					}
					owned = append(owned, p)
				}
			}
		}
	}

	sort.Slice(owned, func(i, j int) bool {
		pi, pj := owned[i], owned[j]
		return ld.offset[pi.Strct]+pi.Vertex < ld.offset[pj.Strct]+pj.Vertex
	})
	return owned
}

// LocalNodeCount returns the number of vertices on the level owned by the
// given rank's patches.
func (init *Initializer) LocalNodeCount(h *hier.Hierarchy, level, rank int) int {
	init.mustBeInitialized("LocalNodeCount")
	n := 0
	for _, p := range h.Level(level).Patches {
		if p.Rank != rank {
			continue
		}
		n += len(init.PatchVertices(h, level, p))
	}
	return n
}

// GlobalNodeCount returns the number of vertices registered on the level.
func (init *Initializer) GlobalNodeCount(level int) int {
	init.mustBeInitialized("GlobalNodeCount")
	n := 0
	for _, nv := range init.levels[level].numVertex {
		n += nv
	}
	return n
}

// GlobalNodeCountParallel computes the level's node count as the sum of
// the per-rank local counts. It is a collective call; the result equals
// GlobalNodeCount when every vertex lies inside the domain.
func (init *Initializer) GlobalNodeCountParallel(w *comm.World, h *hier.Hierarchy, level, rank int) int {
	return w.SumReduceInt(init.LocalNodeCount(h, level, rank))
}

// LevelHasLagrangianData reports whether any structure with at least one
// vertex is registered on the level.
func (init *Initializer) LevelHasLagrangianData(level int) bool {
	init.mustBeInitialized("LevelHasLagrangianData")
	return init.GlobalNodeCount(level) > 0
}

// AllDataInDomain checks that every vertex position lies inside the
// physical domain along every non-periodic dimension. It returns an error
// naming the first offending vertex.
func (init *Initializer) AllDataInDomain(g *hier.GridGeometry) error {
	init.mustBeInitialized("AllDataInDomain")
	for ln, ld := range init.levels {
		for s := range ld.names {
			for v, x := range ld.cur[s] {
				for i := 0; i < 3; i++ {
					if g.Periodic[i] {
						continue
					}
					if x[i] < g.XLo[i] || x[i] > g.XUp[i] {
						return fmt.Errorf(
							"%s::AllDataInDomain(): vertex %d of structure '%s' "+
								"on level %d lies at %v, outside the domain "+
								"[%v, %v] along dimension %d",
							init.name, v, ld.names[s], ln, x, g.XLo, g.XUp, i,
						)
					}
				}
			}
		}
	}
	return nil
}

// LNode is one local Lagrangian node: its canonical index, its
// (structure, vertex) identity, and its position.
type LNode struct {
	Canonical int
	Point     PointIndex
	X         geom.Vec
}

// LevelNodes is the Lagrangian data of one level as seen by one rank:
// per-patch node lists plus the name and canonical-range bookkeeping of
// the level's structures.
type LevelNodes struct {
	Level int

	// Nodes maps patch number to the patch's nodes, in canonical order.
	Nodes map[int][]LNode

	// Range maps structure name to its half-open canonical index range.
	Range map[string][2]int
}

// InitializeLevelData slices the global catalog into the given rank's
// local data on one level. Every rank holds the full catalog, so no
// communication is needed; each rank simply keeps the vertices its
// patches own.
func (init *Initializer) InitializeLevelData(h *hier.Hierarchy, level, rank int) (*LevelNodes, error) {
	init.mustBeInitialized("InitializeLevelData")
	if level < 0 || level >= init.maxLevels {
		return nil, fmt.Errorf(
			"%s::InitializeLevelData(): level %d out of range [0, %d)",
			init.name, level, init.maxLevels,
		)
	}

	ld := init.levels[level]
	nodes := &LevelNodes{
		Level: level,
		Nodes: make(map[int][]LNode),
		Range: make(map[string][2]int),
	}
	for s, name := range ld.names {
		nodes.Range[name] = [2]int{ld.offset[s], ld.offset[s] + ld.numVertex[s]}
	}

	for _, patch := range h.Level(level).Patches {
		if patch.Rank != rank {
			continue
		}
		owned := init.PatchVertices(h, level, patch)
		if len(owned) == 0 {
			continue
		}
		ns := make([]LNode, len(owned))
		for i, p := range owned {
			ns[i] = LNode{
				Canonical: ld.offset[p.Strct] + p.Vertex,
				Point:     p,
				X:         h.Geometry.Wrap(ld.cur[p.Strct][p.Vertex]),
			}
		}
		nodes.Nodes[patch.Num] = ns
	}
	return nodes, nil
}

// TagCellsForInitialRefinement tags, on the given level, every cell
// containing a vertex registered on a finer level, so that the initial
// regrid builds the levels the structures were registered for.
func (init *Initializer) TagCellsForInitialRefinement(h *hier.Hierarchy, level, tagIdx int) {
	init.mustBeInitialized("TagCellsForInitialRefinement")

	lvl := h.Level(level)
	g := h.Geometry
	dx := h.DxAtLevel(level)

	for ln := level + 1; ln < init.maxLevels; ln++ {
		ld := init.levels[ln]
		for s := range ld.names {
			for _, x := range ld.cur[s] {
				cell := g.CellAt(g.Wrap(x), dx)
				for _, patch := range lvl.Patches {
					if !patch.Box.Contains(cell) {
						continue
					}
					if d, ok := patch.Data(tagIdx); ok {
						d.Vals[patch.Box.Offset(cell)*d.Depth] = 1.0
					}
				}
			}
		}
	}
}
