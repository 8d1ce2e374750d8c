package hier

import (
	"fmt"
	"math"

	"github.com/cartfluid/ibmesh/geom"
)

// PatchData is one allocated field on one patch, stored as a flat slice in
// x-major order over the patch box (plus ghost halo).
type PatchData struct {
	Vals   []float64
	Depth  int
	Ghosts geom.IntVec
	Time   float64
}

// Patch is a rectangular block of the structured grid owned by one rank at
// one refinement level.
type Patch struct {
	Num  int
	Rank int
	Box  Box

	data    map[int]*PatchData
	markers map[int][]geom.Vec
}

// NewPatch returns an empty patch over the given box.
func NewPatch(num, rank int, box Box) *Patch {
	return &Patch{
		Num: num, Rank: rank, Box: box,
		data:    make(map[int]*PatchData),
		markers: make(map[int][]geom.Vec),
	}
}

// AllocateData allocates patch data for the given registered index.
// Allocating an index twice is a programmer error.
func (p *Patch) AllocateData(idx int, desc VarDesc, time float64) {
	if _, ok := p.data[idx]; ok {
		panic(fmt.Sprintf("Patch %d: data index %d is already allocated", p.Num, idx))
	}
	n := p.Box.Volume() * desc.Var.Depth
	p.data[idx] = &PatchData{
		Vals:   make([]float64, n),
		Depth:  desc.Var.Depth,
		Ghosts: desc.Ghosts,
		Time:   time,
	}
}

// DeallocateData releases patch data for the given index. Missing data is
// ignored so the per-step deallocation sweep can be unconditional.
func (p *Patch) DeallocateData(idx int) {
	delete(p.data, idx)
}

// Data returns the patch data for the given index.
func (p *Patch) Data(idx int) (*PatchData, bool) {
	d, ok := p.data[idx]
	return d, ok
}

// MaxNorm returns the max norm of the patch data at the given index, or 0
// if the index is not allocated on this patch.
func (p *Patch) MaxNorm(idx int) float64 {
	d, ok := p.data[idx]
	if !ok {
		return 0
	}
	m := 0.0
	for _, v := range d.Vals {
		if a := math.Abs(v); a > m {
			m = a
		}
	}
	return m
}

// Level is one refinement level of the hierarchy.
type Level struct {
	Num int
	// Ratio is the cumulative refinement ratio relative to the coarsest
	// level; the coarsest level has Ratio 1.
	Ratio   int
	Patches []*Patch
}

// AllocatePatchData allocates the index on every patch of the level.
func (lvl *Level) AllocatePatchData(db *VarDB, idx int, time float64) {
	desc := db.Desc(idx)
	for _, p := range lvl.Patches {
		p.AllocateData(idx, desc, time)
	}
}

// DeallocatePatchData releases the index on every patch of the level.
func (lvl *Level) DeallocatePatchData(idx int) {
	for _, p := range lvl.Patches {
		p.DeallocateData(idx)
	}
}

// Hierarchy is the full set of refinement levels and their patches. It is
// mutated only by regridding; between regrids all components treat it as
// immutable.
type Hierarchy struct {
	Geometry *GridGeometry
	Vars     *VarDB

	levels []*Level
}

// NewHierarchy returns a hierarchy over the given geometry with no levels.
func NewHierarchy(geometry *GridGeometry) *Hierarchy {
	return &Hierarchy{Geometry: geometry, Vars: NewVarDB()}
}

// SetLevels replaces the hierarchy's levels. This is the regrid mutation;
// it is globally serialized by the collective regrid call.
func (h *Hierarchy) SetLevels(levels []*Level) {
	h.levels = levels
}

// Level returns the given level.
func (h *Hierarchy) Level(ln int) *Level {
	if ln < 0 || ln >= len(h.levels) {
		panic(fmt.Sprintf("Hierarchy: no level %d (have %d levels)", ln, len(h.levels)))
	}
	return h.levels[ln]
}

// NumLevels returns the number of levels currently in the hierarchy.
func (h *Hierarchy) NumLevels() int { return len(h.levels) }

// FinestLevelNumber returns the number of the finest level.
func (h *Hierarchy) FinestLevelNumber() int { return len(h.levels) - 1 }

// DxAtLevel returns the cell spacing on the given level.
func (h *Hierarchy) DxAtLevel(ln int) geom.Vec {
	return h.Geometry.DxAt(h.Level(ln).Ratio)
}

// AllocatePatchData allocates the index on every level of the hierarchy.
func (h *Hierarchy) AllocatePatchData(idx int, time float64) {
	for _, lvl := range h.levels {
		lvl.AllocatePatchData(h.Vars, idx, time)
	}
}

// DeallocatePatchData releases the index on every level of the hierarchy.
func (h *Hierarchy) DeallocatePatchData(idx int) {
	for _, lvl := range h.levels {
		lvl.DeallocatePatchData(idx)
	}
}
