/*package geom contains small geometric primitives shared by the Eulerian
and Lagrangian halves of the coupling layer: position vectors, integer
index vectors, and a flat-slice view of 3D cell blocks.
*/
package geom

import (
	"math"
)

// Vec is a three dimensional position or displacement vector.
type Vec [3]float64

// IntVec is a three dimensional integer vector, used for cell indices and
// ghost widths.
type IntVec [3]int

// Add returns u + v.
func (u Vec) Add(v Vec) Vec {
	return Vec{u[0] + v[0], u[1] + v[1], u[2] + v[2]}
}

// Sub returns u - v.
func (u Vec) Sub(v Vec) Vec {
	return Vec{u[0] - v[0], u[1] - v[1], u[2] - v[2]}
}

// Scale returns s * u.
func (u Vec) Scale(s float64) Vec {
	return Vec{s * u[0], s * u[1], s * u[2]}
}

// Norm returns the Euclidean norm of u.
func (u Vec) Norm() float64 {
	return math.Sqrt(u[0]*u[0] + u[1]*u[1] + u[2]*u[2])
}

// Wrap maps u into the canonical domain [lo, up) along every dimension
// for which periodic is set. Non-periodic dimensions are left untouched.
// The convention matches the cell lookup in the hier package: a point
// exactly on the upper domain boundary of a periodic dimension wraps to
// the lower boundary.
func (u Vec) Wrap(lo, up Vec, periodic [3]bool) Vec {
	w := u
	for i := 0; i < 3; i++ {
		if !periodic[i] {
			continue
		}
		width := up[i] - lo[i]
		w[i] = lo[i] + fMod(w[i]-lo[i], width)
	}
	return w
}

// fMod computes the positive modulo x % y for floats.
func fMod(x, y float64) float64 {
	m := math.Mod(x, y)
	if m < 0 {
		m += y
	}
	return m
}

// Min returns the component-wise minimum of u and v.
func (u IntVec) Min(v IntVec) IntVec {
	w := u
	for i := 0; i < 3; i++ {
		if v[i] < w[i] {
			w[i] = v[i]
		}
	}
	return w
}

// Max returns the component-wise maximum of u and v.
func (u IntVec) Max(v IntVec) IntVec {
	w := u
	for i := 0; i < 3; i++ {
		if v[i] > w[i] {
			w[i] = v[i]
		}
	}
	return w
}

// MinComp returns the smallest component of u.
func (u Vec) MinComp() float64 {
	m := u[0]
	if u[1] < m {
		m = u[1]
	}
	if u[2] < m {
		m = u[2]
	}
	return m
}
