package hier

import (
	"github.com/cartfluid/ibmesh/geom"
)

// Markers returns the marker particles stored on the patch under the given
// marker data index.
func (p *Patch) Markers(idx int) []geom.Vec {
	return p.markers[idx]
}

// SetMarkers replaces the marker particles stored on the patch.
func (p *Patch) SetMarkers(idx int, xs []geom.Vec) {
	p.markers[idx] = xs
}

// InitializeMarkersOnLevel places the given marker positions on the
// patches of the level that own them. At the initial time markers are
// seeded on the coarsest level only; afterwards they move with the
// redistribution utilities below.
func InitializeMarkersOnLevel(
	h *Hierarchy, ln, idx int, posns []geom.Vec, initialTime bool,
) {
	if !initialTime || ln != 0 {
		return
	}
	lvl := h.Level(ln)
	dx := h.DxAtLevel(ln)
	for _, x := range posns {
		w := h.Geometry.Wrap(x)
		cell := h.Geometry.CellAt(w, dx)
		for _, p := range lvl.Patches {
			if p.Box.Contains(cell) {
				p.markers[idx] = append(p.markers[idx], w)
				break
			}
		}
	}
}

// CollectMarkersOnHierarchy removes every marker from the hierarchy and
// returns their positions. Called before a regrid: the patch objects the
// markers live on are about to be discarded, so the positions must be
// carried across the decomposition change and redistributed afterwards
// with RedistributeMarkersOnLevel.
func CollectMarkersOnHierarchy(idx int, h *Hierarchy) []geom.Vec {
	all := []geom.Vec{}
	for ln := 0; ln <= h.FinestLevelNumber(); ln++ {
		for _, p := range h.Level(ln).Patches {
			all = append(all, p.markers[idx]...)
			delete(p.markers, idx)
		}
	}
	return all
}

// RedistributeMarkersOnLevel places the given marker positions on the
// patches of one level that own them. Called for every level of a freshly
// regridded hierarchy; the coarse copies under finer levels are removed
// by PruneInvalidMarkers once every level is seeded, leaving each marker
// on its finest owning level.
func RedistributeMarkersOnLevel(h *Hierarchy, ln, idx int, posns []geom.Vec) {
	lvl := h.Level(ln)
	dx := h.DxAtLevel(ln)
	for _, x := range posns {
		w := h.Geometry.Wrap(x)
		cell := h.Geometry.CellAt(w, dx)
		for _, p := range lvl.Patches {
			if p.Box.Contains(cell) {
				p.markers[idx] = append(p.markers[idx], w)
				break
			}
		}
	}
}

// PruneInvalidMarkers removes markers stored on coarse patches in regions
// covered by a finer level. Called after a regrid, once markers have been
// redistributed to the finest available patches.
func PruneInvalidMarkers(idx int, h *Hierarchy) {
	for ln := 0; ln < h.FinestLevelNumber(); ln++ {
		fine := h.Level(ln + 1)
		ratio := fine.Ratio / h.Level(ln).Ratio
		dx := h.DxAtLevel(ln)
		for _, p := range h.Level(ln).Patches {
			ms := p.markers[idx]
			if len(ms) == 0 {
				continue
			}
			kept := ms[:0]
			for _, x := range ms {
				cell := h.Geometry.CellAt(x, dx)
				covered := false
				var fineCell geom.IntVec
				for i := 0; i < 3; i++ {
					fineCell[i] = cell[i] * ratio
				}
				for _, fp := range fine.Patches {
					if fp.Box.Contains(fineCell) {
						covered = true
						break
					}
				}
				if !covered {
					kept = append(kept, x)
				}
			}
			p.markers[idx] = kept
		}
	}
}

// CountMarkers returns the total number of markers stored in the hierarchy
// under the given index.
func CountMarkers(idx int, h *Hierarchy) int {
	n := 0
	for ln := 0; ln <= h.FinestLevelNumber(); ln++ {
		for _, p := range h.Level(ln).Patches {
			n += len(p.markers[idx])
		}
	}
	return n
}
