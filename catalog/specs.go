/*package catalog builds, redundantly on every rank, the complete initial
configuration of one or more Lagrangian structures immersed in the
Cartesian grid hierarchy: vertex positions, connectivity (springs,
crosslink springs, beams, rods and their director frames), and the
per-vertex auxiliary specifications (target points, anchors, boundary
mass, instrumentation, sources). It also owns the patch-ownership
partitioner that slices this global data into per-rank, per-level local
data against an adaptively changing mesh.
*/
package catalog

import (
	"sort"

	"github.com/cartfluid/ibmesh/geom"
)

// NumRodParams is the number of material parameters carried by a rod:
// ds, a1, a2, a3, b1, b2, b3, kappa1, kappa2, tau.
const NumRodParams = 10

// PointIndex identifies one vertex as a (local structure index, local
// vertex index) pair within a registration level.
type PointIndex struct {
	Strct, Vertex int
}

// Edge is an ordered pair of local vertex indices within one structure.
type Edge struct {
	First, Second int
}

// Less reports whether e orders strictly before o: first index ascending,
// ties broken by the second index. Connectivity maps iterate in this
// order.
func (e Edge) Less(o Edge) bool {
	return e.First < o.First || (e.First == o.First && e.Second < o.Second)
}

// SortedEdges returns the keys of an edge-keyed map in strict edge order.
func SortedEdges[T any](m map[Edge]T) []Edge {
	es := make([]Edge, 0, len(m))
	for e := range m {
		es = append(es, e)
	}
	sort.Slice(es, func(i, j int) bool { return es[i].Less(es[j]) })
	return es
}

// SortedVertices returns the keys of a vertex-keyed map in ascending
// order.
func SortedVertices[T any](m map[int]T) []int {
	vs := make([]int, 0, len(m))
	for v := range m {
		vs = append(vs, v)
	}
	sort.Ints(vs)
	return vs
}

// SpringSpec holds the material parameters of one spring: Parameters[0]
// is the spring constant and Parameters[1] the resting length.
// ForceFcnIdx selects the force law; 0 is the primary law.
type SpringSpec struct {
	Parameters  []float64
	ForceFcnIdx int
}

// XSpringSpec holds the material parameters of one crosslink spring,
// structured like SpringSpec.
type XSpringSpec struct {
	Parameters  []float64
	ForceFcnIdx int
}

// BeamSpec describes one beam attached to a master vertex: the two
// neighboring vertex indices, the bending rigidity, and the preferred
// curvature.
type BeamSpec struct {
	Neighbors    [2]int
	BendRigidity float64
	Curvature    geom.Vec
}

// RodSpec holds the material parameter array of one rod.
type RodSpec struct {
	Properties [NumRodParams]float64
}

// TargetSpec describes a target-point penalty constraint: stiffness and
// damping coefficients.
type TargetSpec struct {
	Stiffness, Damping float64
}

// AnchorSpec marks a vertex as an anchor point.
type AnchorSpec struct {
	IsAnchorPoint bool
}

// BdryMassSpec describes a massive boundary point: its mass and the
// penalty spring stiffness tying it to the flow.
type BdryMassSpec struct {
	BdryMass, Stiffness float64
}

// Frame is the orthonormal director triad attached to a rod vertex.
type Frame [3]geom.Vec

// InstrumentIdx ties a vertex to a flow meter or pressure gauge: the
// instrument number and the node index within that instrument. Names and
// numbers are global over all levels and structures.
type InstrumentIdx struct {
	Meter, Node int
}
