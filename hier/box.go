/*package hier describes the Eulerian side of the coupling layer: the
hierarchy of refinement levels, the patches that make them up, and the
patch-data bookkeeping the time integrator brackets around each coupling
step. The PDE discretization living on top of this data is out of scope;
only the contracts the orchestrator and the structure catalog consume are
implemented here.
*/
package hier

import (
	"fmt"

	"github.com/cartfluid/ibmesh/geom"
)

// Box is a hyper-rectangular index-space region with inclusive lower and
// exclusive upper cell bounds.
type Box struct {
	Lo, Hi geom.IntVec
}

// NewBox returns the box spanning [lo, hi).
func NewBox(lo, hi geom.IntVec) Box {
	return Box{lo, hi}
}

// Contains returns true if the given cell lies inside the box.
func (b Box) Contains(cell geom.IntVec) bool {
	for i := 0; i < 3; i++ {
		if cell[i] < b.Lo[i] || cell[i] >= b.Hi[i] {
			return false
		}
	}
	return true
}

// Volume returns the number of cells in the box.
func (b Box) Volume() int {
	v := 1
	for i := 0; i < 3; i++ {
		w := b.Hi[i] - b.Lo[i]
		if w <= 0 {
			return 0
		}
		v *= w
	}
	return v
}

// Refine returns the box's image on a grid refined by the given ratio.
func (b Box) Refine(ratio int) Box {
	r := Box{}
	for i := 0; i < 3; i++ {
		r.Lo[i] = b.Lo[i] * ratio
		r.Hi[i] = b.Hi[i] * ratio
	}
	return r
}

// Coarsen returns the box's image on a grid coarsened by the given ratio.
// Bounds are rounded outward so the coarse box covers the fine one.
func (b Box) Coarsen(ratio int) Box {
	r := Box{}
	for i := 0; i < 3; i++ {
		r.Lo[i] = floorDiv(b.Lo[i], ratio)
		r.Hi[i] = ceilDiv(b.Hi[i], ratio)
	}
	return r
}

// Intersect returns the overlap of b and o and whether it is nonempty.
func (b Box) Intersect(o Box) (Box, bool) {
	r := Box{b.Lo.Max(o.Lo), b.Hi.Min(o.Hi)}
	for i := 0; i < 3; i++ {
		if r.Lo[i] >= r.Hi[i] {
			return Box{}, false
		}
	}
	return r, true
}

// Offset returns the x-major flat index of a cell within the box. The
// cell must lie inside the box.
func (b Box) Offset(cell geom.IntVec) int {
	nx := b.Hi[0] - b.Lo[0]
	ny := b.Hi[1] - b.Lo[1]
	return (cell[0] - b.Lo[0]) +
		(cell[1]-b.Lo[1])*nx +
		(cell[2]-b.Lo[2])*nx*ny
}

func (b Box) String() string {
	return fmt.Sprintf("[%v, %v)", b.Lo, b.Hi)
}

func floorDiv(x, y int) int {
	q := x / y
	if x%y != 0 && (x < 0) != (y < 0) {
		q--
	}
	return q
}

func ceilDiv(x, y int) int {
	return -floorDiv(-x, y)
}
