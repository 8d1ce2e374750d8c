package hier

import (
	"fmt"
	"math"

	"github.com/cartfluid/ibmesh/geom"
)

// Names of the interpolation operators the coupling layer requests when it
// builds its communication schedules.
const (
	ConservativeCoarsenOp      = "CONSERVATIVE_COARSEN"
	ConservativeLinearRefineOp = "CONSERVATIVE_LINEAR_REFINE"
	LinearRefineOp             = "LINEAR_REFINE"
)

// GridGeometry describes the physical extent of the coarsest level and the
// domain's periodicity. All finer-level spacings derive from it.
type GridGeometry struct {
	XLo, XUp geom.Vec
	// Number of cells along each dimension on the coarsest level.
	DomainCells geom.IntVec
	Periodic    [3]bool
}

// Dx returns the cell spacing of the coarsest level.
func (g *GridGeometry) Dx() geom.Vec {
	var dx geom.Vec
	for i := 0; i < 3; i++ {
		dx[i] = (g.XUp[i] - g.XLo[i]) / float64(g.DomainCells[i])
	}
	return dx
}

// DxAt returns the cell spacing for a grid refined from the coarsest level
// by the cumulative ratio.
func (g *GridGeometry) DxAt(cumulativeRatio int) geom.Vec {
	dx := g.Dx()
	return dx.Scale(1.0 / float64(cumulativeRatio))
}

// DomainBox returns the coarsest-level index-space box of the domain.
func (g *GridGeometry) DomainBox() Box {
	return Box{geom.IntVec{}, g.DomainCells}
}

// CellAt maps a physical position to a cell index on a grid with the given
// spacing. Positions in periodic dimensions should be wrapped into the
// canonical domain first (geom.Vec.Wrap with this geometry's bounds); the
// ownership tie-break in the catalog relies on both using the same
// convention.
func (g *GridGeometry) CellAt(x geom.Vec, dx geom.Vec) geom.IntVec {
	var c geom.IntVec
	for i := 0; i < 3; i++ {
		c[i] = int(math.Floor((x[i] - g.XLo[i]) / dx[i]))
		// a point exactly on the non-periodic upper boundary belongs to
		// the last cell, per the half-open cell convention
		if !g.Periodic[i] && x[i] == g.XUp[i] {
			c[i] = int(math.Round((g.XUp[i]-g.XLo[i])/dx[i])) - 1
		}
	}
	return c
}

// Wrap maps x into the canonical domain along periodic dimensions.
func (g *GridGeometry) Wrap(x geom.Vec) geom.Vec {
	return x.Wrap(g.XLo, g.XUp, g.Periodic)
}

// LookupRefineOperator returns the named prolongation operator for the
// variable, or an error if the variable's centering does not support it.
// Only cell- and side-centered data have conservative operators here; any
// other centering is a fatal configuration error for the caller.
func (g *GridGeometry) LookupRefineOperator(v *Variable, name string) (string, error) {
	switch v.Centering {
	case CellCentered, SideCentered:
		return name + "." + v.Centering.String(), nil
	}
	return "", fmt.Errorf(
		"GridGeometry: unsupported data centering %s for variable '%s' (operator %s)",
		v.Centering, v.Name, name,
	)
}

// LookupCoarsenOperator returns the named restriction operator for the
// variable, with the same centering restrictions as LookupRefineOperator.
func (g *GridGeometry) LookupCoarsenOperator(v *Variable, name string) (string, error) {
	switch v.Centering {
	case CellCentered, SideCentered:
		return name + "." + v.Centering.String(), nil
	}
	return "", fmt.Errorf(
		"GridGeometry: unsupported data centering %s for variable '%s' (operator %s)",
		v.Centering, v.Name, name,
	)
}
