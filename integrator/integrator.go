/*package integrator contains the hierarchy time-integration orchestrator:
the state machine that drives one fluid-structure coupling step
(preprocess, cycle loop, postprocess), decides when the mesh must be
regridded, and brackets every regrid with the Lagrangian redistribution
and marker bookkeeping the structure subsystem needs.
*/
package integrator

import (
	"fmt"
	"log"

	"github.com/cartfluid/ibmesh/comm"
	"github.com/cartfluid/ibmesh/geom"
	"github.com/cartfluid/ibmesh/hier"
	"github.com/cartfluid/ibmesh/io"
)

// Integrator coordinates the fluid solver and the structure subsystem over
// a shared patch hierarchy. It owns the regrid triggers, the CFL
// accumulators, and the communication-schedule registry; the numerical
// work happens in the collaborators.
type Integrator struct {
	name  string
	world *comm.World
	rank  int

	fluid FluidIntegrator
	ops   StructureOps

	timeStepping TimeSteppingType
	numCycles    int

	regridFluidCFLInterval     float64
	regridStructureCFLInterval float64
	regridInterval             int

	errorOnDtChange bool
	warnOnDtChange  bool

	markerFileName string
	markerPosns    []geom.Vec

	bodyForce ForceFuncSet

	registry *comm.Registry
	gridder  *hier.Gridder

	ibCtx *hier.Context

	uCurrentIdx, uNewIdx, uScratchIdx int
	fIdx, fCurrentIdx                 int
	pIdx, qIdx                        int
	workloadIdx                       int
	markerIdx                         int

	uGhostfillName, uCoarsenName, fProlongName string

	regridFluidCFLEstimate     float64
	regridStructureCFLEstimate float64

	step        int
	dtPrevious  float64
	firstStep   bool
	fromRestart bool

	integratorInitialized bool
	hierarchyInitialized  bool
}

// New builds an orchestrator from a normalized configuration and the two
// external collaborators. Configuration errors (a bad time-stepping token,
// a bad tag buffer) are fatal here, before any hierarchy exists.
func New(
	name string, cfg *io.SimulationConfig,
	ops StructureOps, fluid FluidIntegrator,
	world *comm.World, rank int,
) (*Integrator, error) {
	ts, err := ParseTimeSteppingType(cfg.TimeSteppingType)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", name, err)
	}

	i := &Integrator{
		name:  name,
		world: world,
		rank:  rank,
		fluid: fluid,
		ops:   ops,

		timeStepping: ts,
		numCycles:    1,

		regridFluidCFLInterval:     cfg.RegridFluidCFLInterval,
		regridStructureCFLInterval: cfg.RegridStructureCFLInterval,
		regridInterval:             cfg.RegridInterval,

		errorOnDtChange: cfg.ErrorOnDtChange,
		warnOnDtChange:  cfg.WarnOnDtChange,
		markerFileName:  cfg.MarkerFileName,

		registry: comm.NewRegistry(name),

		uCurrentIdx: hier.InvalidIndex, uNewIdx: hier.InvalidIndex,
		uScratchIdx: hier.InvalidIndex, fIdx: hier.InvalidIndex,
		fCurrentIdx: hier.InvalidIndex, pIdx: hier.InvalidIndex,
		qIdx: hier.InvalidIndex, workloadIdx: hier.InvalidIndex,
		markerIdx: hier.InvalidIndex,

		firstStep: true,
	}

	// RegridCFLInterval is shorthand for setting both thresholds at once;
	// the specific keys win when both are given.
	if i.regridFluidCFLInterval < 0 {
		i.regridFluidCFLInterval = cfg.RegridCFLInterval
	}
	if i.regridStructureCFLInterval < 0 {
		i.regridStructureCFLInterval = cfg.RegridCFLInterval
	}

	return i, nil
}

// Accessors used by the collaborators and the driver.

func (i *Integrator) Name() string                   { return i.name }
func (i *Integrator) TimeStepping() TimeSteppingType { return i.timeStepping }
func (i *Integrator) NumberOfCycles() int            { return i.numCycles }
func (i *Integrator) SetNumberOfCycles(n int)        { i.numCycles = n }
func (i *Integrator) StepCount() int                 { return i.step }
func (i *Integrator) FluidCFLEstimate() float64      { return i.regridFluidCFLEstimate }
func (i *Integrator) StructureCFLEstimate() float64  { return i.regridStructureCFLEstimate }
func (i *Integrator) Registry() *comm.Registry       { return i.registry }
func (i *Integrator) VelocityCurrentIndex() int      { return i.uCurrentIdx }
func (i *Integrator) VelocityNewIndex() int          { return i.uNewIdx }
func (i *Integrator) ForceIndex() int                { return i.fIdx }
func (i *Integrator) ForceCurrentIndex() int         { return i.fCurrentIdx }
func (i *Integrator) MarkerIndex() int               { return i.markerIdx }

// RegisterBodyForceFunction adds a body-force function. A second
// registration logs a warning and composes by summation rather than
// overwriting; the fluid solver always sees the composed function.
func (i *Integrator) RegisterBodyForceFunction(fn ForceFunc) {
	i.bodyForce.Add(i.name, fn)
	i.fluid.SetBodyForceFunction(i.bodyForce.Eval)
}

// BodyForce evaluates the composed body force.
func (i *Integrator) BodyForce(x geom.Vec, t float64) geom.Vec {
	return i.bodyForce.Eval(x, t)
}

// InitializeHierarchyIntegrator binds variables and contexts, registers
// the persistent patch-data indices, builds the communication algorithms,
// reads the marker file, and prepares the gridder's tag buffer. A second
// call is a no-op.
func (i *Integrator) InitializeHierarchyIntegrator(h *hier.Hierarchy, g *hier.Gridder) error {
	if i.integratorInitialized {
		return nil
	}
	i.gridder = g
	db := h.Vars

	i.ibCtx = &hier.Context{Name: i.name + "::ib"}
	ghosts := i.ops.MinimumGhostCellWidth()

	uVar := i.fluid.VelocityVariable()
	i.uCurrentIdx = db.RegisterVariableAndContext(uVar, i.fluid.CurrentContext(), ghosts)
	i.uNewIdx = db.RegisterVariableAndContext(uVar, i.fluid.NewContext(), ghosts)
	i.uScratchIdx = db.RegisterVariableAndContext(uVar, i.fluid.ScratchContext(), ghosts)

	fVar := &hier.Variable{
		Name: i.name + "::f", Centering: uVar.Centering, Depth: uVar.Depth,
	}
	i.fIdx = db.RegisterVariableAndContext(fVar, i.ibCtx, ghosts)

	// Forward-Euler and trapezoidal stepping evaluate the force at the
	// start-of-step configuration, so they carry a time-lagged copy.
	if i.timeStepping.NeedsCurrentForce() {
		fCurrentVar := &hier.Variable{
			Name: i.name + "::f_current", Centering: fVar.Centering, Depth: fVar.Depth,
		}
		i.fCurrentIdx = db.RegisterClonedIndex(fCurrentVar, i.fIdx)
	}

	var pVar, qVar *hier.Variable
	if i.ops.HasFluidSources() {
		pVar = i.fluid.PressureVariable()
		i.pIdx = db.RegisterVariableAndContext(pVar, i.ibCtx, ghosts)
		qVar = &hier.Variable{
			Name: i.name + "::q", Centering: hier.CellCentered, Depth: 1,
		}
		i.qIdx = db.RegisterVariableAndContext(qVar, i.ibCtx, ghosts)
	}

	i.ops.RegisterEulerianVariables(db)

	if err := i.registerCommunicationAlgorithms(h, uVar, fVar, pVar, qVar); err != nil {
		return err
	}
	if err := i.ops.RegisterEulerianCommunicationAlgorithms(i.registry); err != nil {
		return err
	}

	if i.markerFileName != "" {
		posns, err := io.ReadMarkerPositions(i.markerFileName)
		if err != nil {
			return fmt.Errorf("%s::initializeHierarchyIntegrator(): %v", i.name, err)
		}
		i.markerPosns = posns
		markerVar := &hier.Variable{
			Name: i.name + "::markers", Centering: hier.CellCentered, Depth: 1,
		}
		i.markerIdx = db.RegisterVariableAndContext(markerVar, i.ibCtx, geom.IntVec{})
	}

	workloadVar := &hier.Variable{
		Name: i.name + "::workload", Centering: hier.CellCentered, Depth: 1,
	}
	i.workloadIdx = db.RegisterVariableAndContext(workloadVar, i.ibCtx, geom.IntVec{})

	g.TagBuffer = ExtendTagBuffer(g.TagBuffer, g.MaxLevels)
	i.ops.SetupTagBuffer(g.TagBuffer)

	i.integratorInitialized = true
	return nil
}

// ExtendTagBuffer pads a partial per-level tag buffer out to maxLevels by
// repeating its last value. An empty buffer extends with zeros.
func ExtendTagBuffer(buf []int, maxLevels int) []int {
	out := make([]int, maxLevels)
	last := 0
	for ln := 0; ln < maxLevels; ln++ {
		if ln < len(buf) {
			last = buf[ln]
		}
		out[ln] = last
	}
	return out
}

func (i *Integrator) registerCommunicationAlgorithms(
	h *hier.Hierarchy, uVar, fVar, pVar, qVar *hier.Variable,
) error {
	uRefine, err := h.Geometry.LookupRefineOperator(uVar, hier.ConservativeLinearRefineOp)
	if err != nil {
		return fmt.Errorf("%s::initializeHierarchyIntegrator(): %v", i.name, err)
	}
	uCoarsen, err := h.Geometry.LookupCoarsenOperator(uVar, hier.ConservativeCoarsenOp)
	if err != nil {
		return fmt.Errorf("%s::initializeHierarchyIntegrator(): %v", i.name, err)
	}
	fRefine, err := h.Geometry.LookupRefineOperator(fVar, hier.ConservativeLinearRefineOp)
	if err != nil {
		return fmt.Errorf("%s::initializeHierarchyIntegrator(): %v", i.name, err)
	}

	i.uGhostfillName = uVar.Name + "::GHOSTFILL"
	uGhost := comm.NewAlgorithm(i.uGhostfillName)
	uGhost.RegisterOp(i.uCurrentIdx, i.uScratchIdx, i.uScratchIdx, uRefine)
	if err := i.registry.RegisterGhostfill(i.uGhostfillName, uGhost); err != nil {
		return err
	}

	i.uCoarsenName = uVar.Name + "::COARSEN"
	uCrs := comm.NewAlgorithm(i.uCoarsenName)
	uCrs.RegisterOp(i.uNewIdx, i.uNewIdx, i.uScratchIdx, uCoarsen)
	if err := i.registry.RegisterCoarsen(i.uCoarsenName, uCrs); err != nil {
		return err
	}

	i.fProlongName = fVar.Name + "::PROLONG"
	fPro := comm.NewAlgorithm(i.fProlongName)
	fPro.RegisterOp(i.fIdx, i.fIdx, i.fIdx, fRefine)
	if err := i.registry.RegisterProlong(i.fProlongName, fPro); err != nil {
		return err
	}

	if pVar == nil {
		return nil
	}
	pRefine, err := h.Geometry.LookupRefineOperator(pVar, hier.LinearRefineOp)
	if err != nil {
		return fmt.Errorf("%s::initializeHierarchyIntegrator(): %v", i.name, err)
	}
	pGhost := comm.NewAlgorithm(pVar.Name + "::GHOSTFILL")
	pGhost.RegisterOp(i.pIdx, i.pIdx, i.pIdx, pRefine)
	if err := i.registry.RegisterGhostfill(pVar.Name+"::GHOSTFILL", pGhost); err != nil {
		return err
	}

	qRefine, err := h.Geometry.LookupRefineOperator(qVar, hier.ConservativeLinearRefineOp)
	if err != nil {
		return fmt.Errorf("%s::initializeHierarchyIntegrator(): %v", i.name, err)
	}
	qPro := comm.NewAlgorithm(qVar.Name + "::PROLONG")
	qPro.RegisterOp(i.qIdx, i.qIdx, i.qIdx, qRefine)
	return i.registry.RegisterProlong(qVar.Name+"::PROLONG", qPro)
}

// InitializePatchHierarchy prepares a freshly built (or freshly restored)
// hierarchy: builds the schedules, runs a redistribution round-trip on
// restart so stale ownership assignments are recomputed, allocates the
// persistent velocity data, seeds markers, and hands the structure
// subsystem its hierarchy initializer. A second call is a no-op.
func (i *Integrator) InitializePatchHierarchy(h *hier.Hierarchy, initTime float64, fromRestart bool) error {
	if i.hierarchyInitialized {
		return nil
	}

	i.registry.BuildSchedules(h)

	if fromRestart {
		if err := i.ops.BeginDataRedistribution(h); err != nil {
			return err
		}
		if err := i.ops.EndDataRedistribution(h); err != nil {
			return err
		}
	}

	h.AllocatePatchData(i.uCurrentIdx, initTime)

	// Seed the scratch velocity from the current context so the structure
	// subsystem's initializer sees ghost-consistent data.
	h.AllocatePatchData(i.uScratchIdx, initTime)
	ghostfill := i.registry.GhostfillSchedules(i.uGhostfillName)
	for _, s := range ghostfill {
		s.Fill(initTime)
	}

	if i.markerIdx != hier.InvalidIndex {
		hier.InitializeMarkersOnLevel(h, 0, i.markerIdx, i.markerPosns, !fromRestart)
	}

	coarsen := i.registry.CoarsenSchedules(i.uCoarsenName)
	if err := i.ops.InitializePatchHierarchy(h, ghostfill, coarsen, initTime, !fromRestart); err != nil {
		return err
	}
	h.DeallocatePatchData(i.uScratchIdx)

	i.firstStep = true
	i.hierarchyInitialized = true
	return nil
}

// PreprocessIntegrateHierarchy begins one coupling step: collaborator
// preprocessing, the cycle-count compatibility check, per-step data
// allocation, and the timestep-change check.
func (i *Integrator) PreprocessIntegrateHierarchy(h *hier.Hierarchy, currentTime, newTime float64) error {
	if err := i.fluid.PreprocessIntegrateHierarchy(h, currentTime, newTime, i.numCycles); err != nil {
		return err
	}
	if err := i.ops.PreprocessIntegrateData(currentTime, newTime, i.numCycles); err != nil {
		return err
	}

	// Single-cycle configurations are cycle-count-agnostic; any other
	// mismatch with the fluid solver is unrecoverable.
	insCycles := i.fluid.NumberOfCycles()
	if insCycles != i.numCycles && i.numCycles != 1 {
		return fmt.Errorf(
			"%s::preprocessIntegrateHierarchy(): fluid solver '%s' requires "+
				"%d cycles but %d are configured",
			i.name, i.fluid.Name(), insCycles, i.numCycles,
		)
	}

	for _, idx := range i.perStepIndices() {
		h.AllocatePatchData(idx, currentTime)
	}

	dt := newTime - currentTime
	if !i.firstStep && dt != i.dtPrevious {
		if i.errorOnDtChange {
			return fmt.Errorf(
				"%s::preprocessIntegrateHierarchy(): time step size changed "+
					"from %g to %g", i.name, i.dtPrevious, dt,
			)
		}
		if i.warnOnDtChange {
			log.Printf(
				"%s::preprocessIntegrateHierarchy(): WARNING: time step size "+
					"changed from %g to %g", i.name, i.dtPrevious, dt,
			)
		}
	}
	i.dtPrevious = dt
	i.firstStep = false
	return nil
}

func (i *Integrator) perStepIndices() []int {
	idxs := []int{i.uNewIdx, i.uScratchIdx, i.fIdx}
	if i.fCurrentIdx != hier.InvalidIndex {
		idxs = append(idxs, i.fCurrentIdx)
	}
	if i.pIdx != hier.InvalidIndex {
		idxs = append(idxs, i.pIdx, i.qIdx)
	}
	return idxs
}

// PostprocessIntegrateHierarchy completes one coupling step: collaborator
// postprocessing, the global CFL estimate, accumulator updates, and the
// per-step data sweep. It is a collective call through the CFL reduction.
func (i *Integrator) PostprocessIntegrateHierarchy(h *hier.Hierarchy, currentTime, newTime float64) error {
	if err := i.ops.PostprocessIntegrateData(currentTime, newTime, i.numCycles); err != nil {
		return err
	}
	if err := i.fluid.PostprocessIntegrateHierarchy(h, currentTime, newTime); err != nil {
		return err
	}

	dt := newTime - currentTime
	cfl := 0.0
	for ln := 0; ln < h.NumLevels(); ln++ {
		dxMin := h.DxAtLevel(ln).MinComp()
		for _, p := range h.Level(ln).Patches {
			if p.Rank != i.rank {
				continue
			}
			if c := p.MaxNorm(i.uNewIdx) * dt / dxMin; c > cfl {
				cfl = c
			}
		}
	}
	cfl = i.world.MaxReduce(cfl)
	i.regridFluidCFLEstimate += cfl

	if i.regridStructureCFLInterval > 0 {
		if est, ok := i.ops.(PointDisplacementEstimator); ok {
			i.regridStructureCFLEstimate += i.world.MaxReduce(est.MaxPointDisplacement())
		}
	}

	for _, idx := range i.perStepIndices() {
		h.DeallocatePatchData(idx)
	}

	i.step++
	if i.rank == 0 {
		log.Printf(
			"%s: step %d done, t = %g, CFL estimates: fluid %g, structure %g",
			i.name, i.step, newTime,
			i.regridFluidCFLEstimate, i.regridStructureCFLEstimate,
		)
	}
	return nil
}

// AtRegridPoint decides whether the mesh must be regridded before the next
// step: always at the initial step; otherwise by the accumulated CFL
// estimates when a positive CFL interval is configured; otherwise by the
// fixed step interval. A configured CFL interval takes precedence over the
// fixed interval.
func (i *Integrator) AtRegridPoint() bool {
	if i.step == 0 && !i.fromRestart {
		return true
	}
	if i.regridFluidCFLInterval > 0 || i.regridStructureCFLInterval > 0 {
		return (i.regridFluidCFLInterval > 0 &&
			i.regridFluidCFLEstimate >= i.regridFluidCFLInterval) ||
			(i.regridStructureCFLInterval > 0 &&
				i.regridStructureCFLEstimate >= i.regridStructureCFLInterval)
	}
	if i.regridInterval != 0 {
		return i.step%i.regridInterval == 0
	}
	return false
}

// RegridHierarchy runs one full regrid: the begin hooks, the mesh
// rebuild, and the end hooks. Both CFL accumulators are exactly zero when
// it returns.
func (i *Integrator) RegridHierarchy(h *hier.Hierarchy) error {
	if err := i.AddWorkloadEstimate(h); err != nil {
		return err
	}
	var markers []geom.Vec
	if i.markerIdx != hier.InvalidIndex {
		markers = hier.CollectMarkersOnHierarchy(i.markerIdx, h)
	}
	if err := i.ops.BeginDataRedistribution(h); err != nil {
		return err
	}

	if err := i.gridder.RegridHierarchy(h); err != nil {
		return fmt.Errorf("%s::regridHierarchy(): %v", i.name, err)
	}

	if err := i.ops.EndDataRedistribution(h); err != nil {
		return err
	}
	i.registry.BuildSchedules(h)
	if i.markerIdx != hier.InvalidIndex {
		for ln := 0; ln < h.NumLevels(); ln++ {
			hier.RedistributeMarkersOnLevel(h, ln, i.markerIdx, markers)
		}
		hier.PruneInvalidMarkers(i.markerIdx, h)
	}

	i.regridFluidCFLEstimate = 0.0
	i.regridStructureCFLEstimate = 0.0
	if i.rank == 0 {
		log.Printf("%s: regridded at step %d (%d levels)", i.name, i.step, h.NumLevels())
	}
	return nil
}

// InitializeLevelData seeds one level of a new or regridded hierarchy:
// markers on the coarsest level at the initial time, then the structure
// subsystem's own level data.
func (i *Integrator) InitializeLevelData(h *hier.Hierarchy, level int, initTime float64, initialTime bool) error {
	if i.markerIdx != hier.InvalidIndex {
		hier.InitializeMarkersOnLevel(h, level, i.markerIdx, i.markerPosns, initialTime)
	}
	return i.ops.InitializeLevelData(h, level, initTime, initialTime)
}

// ResetHierarchyConfiguration rebinds everything that depends on the level
// decomposition after it changes.
func (i *Integrator) ResetHierarchyConfiguration(h *hier.Hierarchy, coarsest, finest int) error {
	i.registry.BuildSchedules(h)
	return i.ops.ResetHierarchyConfiguration(h, coarsest, finest)
}

// ApplyGradientDetector forwards cell tagging to the structure subsystem.
func (i *Integrator) ApplyGradientDetector(
	h *hier.Hierarchy, level int, time float64, tagIdx int, initialTime bool,
) error {
	return i.ops.ApplyGradientDetector(h, level, time, tagIdx, initialTime)
}

// AddWorkloadEstimate charges one unit of work per cell, then lets the
// structure subsystem add the Lagrangian contribution. Patches without
// allocated workload data are skipped.
func (i *Integrator) AddWorkloadEstimate(h *hier.Hierarchy) error {
	for ln := 0; ln < h.NumLevels(); ln++ {
		for _, p := range h.Level(ln).Patches {
			d, ok := p.Data(i.workloadIdx)
			if !ok {
				continue
			}
			for c := range d.Vals {
				d.Vals[c] += 1.0
			}
		}
	}
	return i.ops.AddWorkloadEstimate(h, i.workloadIdx)
}
