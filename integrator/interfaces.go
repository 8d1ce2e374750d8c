package integrator

import (
	"log"

	"github.com/cartfluid/ibmesh/comm"
	"github.com/cartfluid/ibmesh/geom"
	"github.com/cartfluid/ibmesh/hier"
)

// ForceFunc evaluates a body force (or fluid source strength, through
// SourceFunc) at a point and time.
type ForceFunc func(x geom.Vec, t float64) geom.Vec

// SourceFunc evaluates a fluid source/sink strength at a point and time.
type SourceFunc func(x geom.Vec, t float64) float64

// FluidIntegrator is the external fluid solver as the orchestrator sees
// it: cycle bookkeeping, pre/post hooks, and the handles to its velocity
// and pressure fields.
type FluidIntegrator interface {
	Name() string

	// NumberOfCycles is the fixed-point cycle count the fluid solver
	// demands per coupling step.
	NumberOfCycles() int

	PreprocessIntegrateHierarchy(h *hier.Hierarchy, currentTime, newTime float64, numCycles int) error
	PostprocessIntegrateHierarchy(h *hier.Hierarchy, currentTime, newTime float64) error

	VelocityVariable() *hier.Variable
	PressureVariable() *hier.Variable

	CurrentContext() *hier.Context
	NewContext() *hier.Context
	ScratchContext() *hier.Context

	// SetBodyForceFunction hands the solver the (possibly composed) body
	// force the orchestrator accumulated.
	SetBodyForceFunction(fn ForceFunc)

	// SetFluidSourceFunction is only called when the structure subsystem
	// declares fluid sources.
	SetFluidSourceFunction(fn SourceFunc)
}

// StructureOps is the external structure/force subsystem: everything the
// orchestrator needs to drive Lagrangian data through a coupling step and
// across regrids.
type StructureOps interface {
	Name() string

	MinimumGhostCellWidth() geom.IntVec
	HasFluidSources() bool

	PreprocessIntegrateData(currentTime, newTime float64, numCycles int) error
	PostprocessIntegrateData(currentTime, newTime float64, numCycles int) error

	RegisterEulerianVariables(db *hier.VarDB)
	RegisterEulerianCommunicationAlgorithms(reg *comm.Registry) error

	// Redistribution brackets every ownership change: vertices may move
	// between patches between Begin and End.
	BeginDataRedistribution(h *hier.Hierarchy) error
	EndDataRedistribution(h *hier.Hierarchy) error

	InitializeLevelData(h *hier.Hierarchy, level int, initTime float64, initialTime bool) error
	InitializePatchHierarchy(
		h *hier.Hierarchy, ghostfill, coarsen []*comm.Schedule,
		initTime float64, initialTime bool,
	) error
	ResetHierarchyConfiguration(h *hier.Hierarchy, coarsest, finest int) error
	ApplyGradientDetector(h *hier.Hierarchy, level int, time float64, tagIdx int, initialTime bool) error
	AddWorkloadEstimate(h *hier.Hierarchy, workloadIdx int) error
	SetupTagBuffer(tagBuffer []int)
}

// PointDisplacementEstimator is implemented by structure subsystems that
// can report the largest point displacement over the last step, in units
// of the finest cell width. Subsystems without it simply disable
// structure-CFL regrid tracking.
type PointDisplacementEstimator interface {
	MaxPointDisplacement() float64
}

// ForceFuncSet composes registered body-force functions by summation, in
// registration order.
type ForceFuncSet struct {
	fns []ForceFunc
}

// Add appends a function to the set. Registering a second function logs a
// warning; the set keeps evaluating all of them and summing.
func (set *ForceFuncSet) Add(name string, fn ForceFunc) {
	if len(set.fns) == 1 {
		log.Printf(
			"%s::registerBodyForceFunction(): WARNING: a body force function "+
				"is already registered; composing the functions by summation "+
				"in registration order", name,
		)
	}
	set.fns = append(set.fns, fn)
}

// Len returns the number of registered functions.
func (set *ForceFuncSet) Len() int { return len(set.fns) }

// Eval returns the sum of every registered function at (x, t).
func (set *ForceFuncSet) Eval(x geom.Vec, t float64) geom.Vec {
	var f geom.Vec
	for _, fn := range set.fns {
		f = f.Add(fn(x, t))
	}
	return f
}
