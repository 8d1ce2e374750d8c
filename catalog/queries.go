package catalog

import (
	"fmt"

	"github.com/cartfluid/ibmesh/geom"
	"github.com/cartfluid/ibmesh/hier"
)

// checkPoint validates a (level, structure, vertex) triple against the
// built catalog.
func (init *Initializer) checkPoint(op string, level int, p PointIndex) error {
	if level < 0 || level >= init.maxLevels {
		return fmt.Errorf(
			"%s::%s(): level %d out of range [0, %d)",
			init.name, op, level, init.maxLevels,
		)
	}
	ld := init.levels[level]
	if p.Strct < 0 || p.Strct >= len(ld.names) {
		return fmt.Errorf(
			"%s::%s(): structure %d out of range [0, %d) on level %d",
			init.name, op, p.Strct, len(ld.names), level,
		)
	}
	if p.Vertex < 0 || p.Vertex >= ld.numVertex[p.Strct] {
		return fmt.Errorf(
			"%s::%s(): vertex %d out of range [0, %d) for structure '%s' on level %d",
			init.name, op, p.Vertex, ld.numVertex[p.Strct], ld.names[p.Strct], level,
		)
	}
	return nil
}

// CanonicalIndex maps a (level, structure, vertex) triple to its global
// canonical index. Indices are contiguous per structure and ordered by
// (level, structure registration order, vertex), so the mapping is a
// bijection onto [0, TotalNodeCount) that is independent of the mesh
// decomposition.
func (init *Initializer) CanonicalIndex(level int, p PointIndex) (int, error) {
	init.mustBeInitialized("CanonicalIndex")
	if err := init.checkPoint("CanonicalIndex", level, p); err != nil {
		return InvalidIndex, err
	}
	return init.levels[level].offset[p.Strct] + p.Vertex, nil
}

// InvalidIndex is returned by index queries that miss.
const InvalidIndex = -1

// StructureIndexRange returns the half-open canonical index range
// [first, last) of one structure.
func (init *Initializer) StructureIndexRange(level, strct int) (first, last int, err error) {
	init.mustBeInitialized("StructureIndexRange")
	if err := init.checkPoint("StructureIndexRange", level, PointIndex{strct, 0}); err != nil {
		return InvalidIndex, InvalidIndex, err
	}
	ld := init.levels[level]
	return ld.offset[strct], ld.offset[strct] + ld.numVertex[strct], nil
}

// VertexPosn returns the initial position of a vertex, after the length
// scale and shift have been applied.
func (init *Initializer) VertexPosn(level int, p PointIndex) (geom.Vec, error) {
	init.mustBeInitialized("VertexPosn")
	if err := init.checkPoint("VertexPosn", level, p); err != nil {
		return geom.Vec{}, err
	}
	return init.levels[level].posn[p.Strct][p.Vertex], nil
}

// ShiftedVertexPosn returns the initial position of a vertex wrapped into
// the canonical domain along periodic dimensions, which is the position
// ownership decisions are made against.
func (init *Initializer) ShiftedVertexPosn(level int, p PointIndex, g *hier.GridGeometry) (geom.Vec, error) {
	x, err := init.VertexPosn(level, p)
	if err != nil {
		return geom.Vec{}, err
	}
	return g.Wrap(x), nil
}

// NumVertices returns the vertex count of one structure.
func (init *Initializer) NumVertices(level, strct int) (int, error) {
	init.mustBeInitialized("NumVertices")
	if err := init.checkPoint("NumVertices", level, PointIndex{strct, 0}); err != nil {
		return 0, err
	}
	return init.levels[level].numVertex[strct], nil
}

// Connectivity accessors. The returned maps are the catalog's own and must
// not be mutated.

// SpringSpecs returns the spring connectivity of one structure, or nil if
// no springs were registered.
func (init *Initializer) SpringSpecs(level, strct int) map[Edge]SpringSpec {
	init.mustBeInitialized("SpringSpecs")
	return init.levels[level].springSpec[strct]
}

// XSpringSpecs returns the crosslink-spring connectivity of one structure.
func (init *Initializer) XSpringSpecs(level, strct int) map[Edge]XSpringSpec {
	init.mustBeInitialized("XSpringSpecs")
	return init.levels[level].xspringSpec[strct]
}

// BeamSpecs returns the beams of one structure, keyed by master vertex.
func (init *Initializer) BeamSpecs(level, strct int) map[int][]BeamSpec {
	init.mustBeInitialized("BeamSpecs")
	return init.levels[level].beamSpec[strct]
}

// RodSpecs returns the rod connectivity of one structure.
func (init *Initializer) RodSpecs(level, strct int) map[Edge]RodSpec {
	init.mustBeInitialized("RodSpecs")
	return init.levels[level].rodSpec[strct]
}

// Per-vertex auxiliary specs. The second return is false when the vertex
// carries no spec of the kind.

// VertexTargetSpec returns the target-point spec attached to a vertex.
func (init *Initializer) VertexTargetSpec(level int, p PointIndex) (TargetSpec, bool) {
	init.mustBeInitialized("VertexTargetSpec")
	m := init.levels[level].targetSpec[p.Strct]
	spec, ok := m[p.Vertex]
	return spec, ok
}

// VertexAnchorSpec returns the anchor-point spec attached to a vertex.
func (init *Initializer) VertexAnchorSpec(level int, p PointIndex) (AnchorSpec, bool) {
	init.mustBeInitialized("VertexAnchorSpec")
	m := init.levels[level].anchorSpec[p.Strct]
	spec, ok := m[p.Vertex]
	return spec, ok
}

// VertexBdryMassSpec returns the massive-point spec attached to a vertex.
func (init *Initializer) VertexBdryMassSpec(level int, p PointIndex) (BdryMassSpec, bool) {
	init.mustBeInitialized("VertexBdryMassSpec")
	m := init.levels[level].bdryMassSpec[p.Strct]
	spec, ok := m[p.Vertex]
	return spec, ok
}

// VertexDirectors returns the director frame attached to a rod vertex.
func (init *Initializer) VertexDirectors(level int, p PointIndex) (Frame, bool) {
	init.mustBeInitialized("VertexDirectors")
	m := init.levels[level].directors[p.Strct]
	f, ok := m[p.Vertex]
	return f, ok
}

// VertexInstrumentationIndices returns the (meter, node) indices of an
// instrumented vertex, or (-1, -1) if the vertex carries no instrument.
func (init *Initializer) VertexInstrumentationIndices(level int, p PointIndex) InstrumentIdx {
	init.mustBeInitialized("VertexInstrumentationIndices")
	m := init.levels[level].instrumentIdx[p.Strct]
	if idx, ok := m[p.Vertex]; ok {
		return idx
	}
	return InstrumentIdx{Meter: InvalidIndex, Node: InvalidIndex}
}

// VertexSourceIndex returns the source/sink index of a vertex, or -1 if
// the vertex is not a source.
func (init *Initializer) VertexSourceIndex(level int, p PointIndex) int {
	init.mustBeInitialized("VertexSourceIndex")
	m := init.levels[level].sourceIdx[p.Strct]
	if idx, ok := m[p.Vertex]; ok {
		return idx
	}
	return InvalidIndex
}
