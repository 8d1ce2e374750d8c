package catalog

import (
	"fmt"
	"log"
	"sync"

	"github.com/cartfluid/ibmesh/geom"
	"gonum.org/v1/gonum/mat"
)

// Init callbacks supply structure data programmatically, one call per
// (structure, level) pair. Each closure carries its own captured state.
type (
	// InitStructureFunc returns the initial vertex positions of a
	// structure. Registering one (or configuring file-based loading) is
	// mandatory.
	InitStructureFunc func(strct, level int) ([]geom.Vec, error)

	// InitSpringFunc returns the spring connectivity of a structure.
	InitSpringFunc func(strct, level int) (map[Edge]SpringSpec, error)

	// InitXSpringFunc returns the crosslink-spring connectivity.
	InitXSpringFunc func(strct, level int) (map[Edge]XSpringSpec, error)

	// InitBeamFunc returns the beams keyed by master vertex.
	InitBeamFunc func(strct, level int) (map[int][]BeamSpec, error)

	// InitRodFunc returns the per-vertex director frames and the rod
	// connectivity.
	InitRodFunc func(strct, level int) (map[int]Frame, map[Edge]RodSpec, error)

	// InitTargetFunc returns the target-point specs keyed by vertex.
	InitTargetFunc func(strct, level int) (map[int]TargetSpec, error)

	// InitAnchorFunc returns the anchor-point specs keyed by vertex.
	InitAnchorFunc func(strct, level int) (map[int]AnchorSpec, error)

	// InitBdryMassFunc returns the massive-point specs keyed by vertex.
	InitBdryMassFunc func(strct, level int) (map[int]BdryMassSpec, error)

	// InitInstrumentationFunc returns instrument names (global) and the
	// per-vertex instrument indices.
	InitInstrumentationFunc func(strct, level int) ([]string, map[int]InstrumentIdx, error)

	// InitSourceFunc returns source/sink names and radii (global) and the
	// per-vertex source indices.
	InitSourceFunc func(strct, level int) ([]string, []float64, map[int]int, error)
)

// levelData is the fully built catalog of one registration level.
type levelData struct {
	names     []string
	numVertex []int
	// Canonical-index offset of each structure's first vertex.
	offset []int

	posn [][]geom.Vec
	// Current positions, updated between regrids so ownership queries
	// track the moving structures. Initially equal to posn.
	cur [][]geom.Vec

	springSpec  []map[Edge]SpringSpec
	xspringSpec []map[Edge]XSpringSpec
	beamSpec    []map[int][]BeamSpec
	rodSpec     []map[Edge]RodSpec
	directors   []map[int]Frame

	targetSpec   []map[int]TargetSpec
	anchorSpec   []map[int]AnchorSpec
	bdryMassSpec []map[int]BdryMassSpec

	instrumentIdx []map[int]InstrumentIdx
	sourceIdx     []map[int]int

	initialized bool
}

// Initializer builds the full structure catalog on every rank and answers
// vertex queries against it. All registration happens before Init; the
// catalog's connectivity is immutable afterwards (only current positions
// may be updated, for post-regrid ownership queries).
type Initializer struct {
	name      string
	maxLevels int

	lengthScale float64
	posnShift   geom.Vec

	levels []*levelData

	totalNodes  int
	initialized bool

	instrumentNames []string
	sourceNames     []string
	sourceRadii     []float64

	structureFn       InitStructureFunc
	springFn          InitSpringFunc
	xspringFn         InitXSpringFunc
	beamFn            InitBeamFunc
	rodFn             InitRodFunc
	targetFn          InitTargetFunc
	anchorFn          InitAnchorFunc
	bdryMassFn        InitBdryMassFunc
	instrumentationFn InitInstrumentationFunc
	sourceFn          InitSourceFunc

	// Guards buckets: the catalog is shared read-only across ranks after
	// Init, but the ownership buckets are built lazily.
	bucketsMu sync.Mutex
	buckets   []*levelBuckets
}

// NewInitializer returns a catalog initializer for a hierarchy with the
// given maximum number of levels.
func NewInitializer(name string, maxLevels int) *Initializer {
	init := &Initializer{
		name:        name,
		maxLevels:   maxLevels,
		lengthScale: 1.0,
		levels:      make([]*levelData, maxLevels),
		buckets:     make([]*levelBuckets, maxLevels),
	}
	for ln := range init.levels {
		init.levels[ln] = &levelData{}
	}
	return init
}

// SetLengthScaleFactor sets the uniform scale applied to all positions
// (and spring rest lengths) read by this initializer.
func (init *Initializer) SetLengthScaleFactor(s float64) { init.lengthScale = s }

// SetPosnShift sets the uniform translation applied to all input
// positions, in input units: X_final = scale * (X_input + shift).
func (init *Initializer) SetPosnShift(v geom.Vec) { init.posnShift = v }

// SetStructureNamesOnLevel declares the structures registered on a level.
// Structures are initialized, and canonical indices assigned, in the
// order of the supplied slice.
func (init *Initializer) SetStructureNamesOnLevel(level int, names []string) {
	init.mustValidLevel(level)
	init.levels[level].names = append([]string{}, names...)
}

// Registration of init callbacks. All must happen before Init.

func (init *Initializer) RegisterInitStructureFunc(fn InitStructureFunc) {
	init.mustNotBeInitialized("RegisterInitStructureFunc")
	init.structureFn = fn
}

func (init *Initializer) RegisterInitSpringFunc(fn InitSpringFunc) {
	init.mustNotBeInitialized("RegisterInitSpringFunc")
	init.springFn = fn
}

func (init *Initializer) RegisterInitXSpringFunc(fn InitXSpringFunc) {
	init.mustNotBeInitialized("RegisterInitXSpringFunc")
	init.xspringFn = fn
}

func (init *Initializer) RegisterInitBeamFunc(fn InitBeamFunc) {
	init.mustNotBeInitialized("RegisterInitBeamFunc")
	init.beamFn = fn
}

func (init *Initializer) RegisterInitRodFunc(fn InitRodFunc) {
	init.mustNotBeInitialized("RegisterInitRodFunc")
	init.rodFn = fn
}

func (init *Initializer) RegisterInitTargetFunc(fn InitTargetFunc) {
	init.mustNotBeInitialized("RegisterInitTargetFunc")
	init.targetFn = fn
}

func (init *Initializer) RegisterInitAnchorFunc(fn InitAnchorFunc) {
	init.mustNotBeInitialized("RegisterInitAnchorFunc")
	init.anchorFn = fn
}

func (init *Initializer) RegisterInitBdryMassFunc(fn InitBdryMassFunc) {
	init.mustNotBeInitialized("RegisterInitBdryMassFunc")
	init.bdryMassFn = fn
}

func (init *Initializer) RegisterInitInstrumentationFunc(fn InitInstrumentationFunc) {
	init.mustNotBeInitialized("RegisterInitInstrumentationFunc")
	init.instrumentationFn = fn
}

func (init *Initializer) RegisterInitSourceFunc(fn InitSourceFunc) {
	init.mustNotBeInitialized("RegisterInitSourceFunc")
	init.sourceFn = fn
}

// Init builds the catalog: positions, connectivity, auxiliary specs, and
// the canonical index offsets. It must be called after all callbacks are
// registered; a second call is a no-op, and each level's data is built at
// most once.
func (init *Initializer) Init() error {
	if init.initialized {
		return nil
	}
	if init.structureFn == nil {
		return fmt.Errorf(
			"%s::Init(): no structure initialization function is registered "+
				"and no structure files are configured", init.name,
		)
	}

	for ln := 0; ln < init.maxLevels; ln++ {
		if err := init.initLevel(ln); err != nil {
			return err
		}
	}

	// Canonical indices are a prefix sum over (level, structure) in
	// registration order, so index ranges never overlap.
	offset := 0
	for _, ld := range init.levels {
		ld.offset = make([]int, len(ld.names))
		for s := range ld.names {
			ld.offset[s] = offset
			offset += ld.numVertex[s]
		}
	}
	init.totalNodes = offset
	init.initialized = true
	return nil
}

// initLevel builds one level's data. No-op if the level was already
// initialized.
func (init *Initializer) initLevel(ln int) error {
	ld := init.levels[ln]
	if ld.initialized {
		return nil
	}

	n := len(ld.names)
	ld.numVertex = make([]int, n)
	ld.posn = make([][]geom.Vec, n)
	ld.cur = make([][]geom.Vec, n)
	ld.springSpec = make([]map[Edge]SpringSpec, n)
	ld.xspringSpec = make([]map[Edge]XSpringSpec, n)
	ld.beamSpec = make([]map[int][]BeamSpec, n)
	ld.rodSpec = make([]map[Edge]RodSpec, n)
	ld.directors = make([]map[int]Frame, n)
	ld.targetSpec = make([]map[int]TargetSpec, n)
	ld.anchorSpec = make([]map[int]AnchorSpec, n)
	ld.bdryMassSpec = make([]map[int]BdryMassSpec, n)
	ld.instrumentIdx = make([]map[int]InstrumentIdx, n)
	ld.sourceIdx = make([]map[int]int, n)

	for s := range ld.names {
		if err := init.initStructure(ld, ln, s); err != nil {
			return err
		}
	}

	ld.initialized = true
	return nil
}

func (init *Initializer) initStructure(ld *levelData, ln, s int) error {
	posns, err := init.structureFn(s, ln)
	if err != nil {
		return fmt.Errorf(
			"%s::Init(): initializing structure '%s' on level %d: %v",
			init.name, ld.names[s], ln, err,
		)
	}
	ld.numVertex[s] = len(posns)
	ld.posn[s] = make([]geom.Vec, len(posns))
	for i, x := range posns {
		ld.posn[s][i] = x.Add(init.posnShift).Scale(init.lengthScale)
	}
	ld.cur[s] = append([]geom.Vec{}, ld.posn[s]...)

	check := func(vertex int, what string) error {
		if vertex < 0 || vertex >= ld.numVertex[s] {
			return fmt.Errorf(
				"%s::Init(): %s of structure '%s' on level %d references "+
					"vertex %d, but the structure has %d vertices",
				init.name, what, ld.names[s], ln, vertex, ld.numVertex[s],
			)
		}
		return nil
	}
	checkEdge := func(e Edge, what string) error {
		if err := check(e.First, what); err != nil {
			return err
		}
		return check(e.Second, what)
	}

	if init.springFn != nil {
		specs, err := init.springFn(s, ln)
		if err != nil {
			return err
		}
		for _, e := range SortedEdges(specs) {
			if err := checkEdge(e, "a spring"); err != nil {
				return err
			}
			// The length scale applies to rest lengths as well as to
			// positions.
			spec := specs[e]
			if len(spec.Parameters) > 1 {
				ps := append([]float64{}, spec.Parameters...)
				ps[1] *= init.lengthScale
				spec.Parameters = ps
				specs[e] = spec
			}
		}
		ld.springSpec[s] = specs
	}

	if init.xspringFn != nil {
		specs, err := init.xspringFn(s, ln)
		if err != nil {
			return err
		}
		for _, e := range SortedEdges(specs) {
			if err := checkEdge(e, "a crosslink spring"); err != nil {
				return err
			}
			spec := specs[e]
			if len(spec.Parameters) > 1 {
				ps := append([]float64{}, spec.Parameters...)
				ps[1] *= init.lengthScale
				spec.Parameters = ps
				specs[e] = spec
			}
		}
		ld.xspringSpec[s] = specs
	}

	if init.beamFn != nil {
		specs, err := init.beamFn(s, ln)
		if err != nil {
			return err
		}
		for _, master := range SortedVertices(specs) {
			if err := check(master, "a beam"); err != nil {
				return err
			}
			for _, b := range specs[master] {
				if err := check(b.Neighbors[0], "a beam"); err != nil {
					return err
				}
				if err := check(b.Neighbors[1], "a beam"); err != nil {
					return err
				}
			}
		}
		ld.beamSpec[s] = specs
	}

	if init.rodFn != nil {
		frames, rods, err := init.rodFn(s, ln)
		if err != nil {
			return err
		}
		for _, v := range SortedVertices(frames) {
			if err := check(v, "a director frame"); err != nil {
				return err
			}
			init.checkFrame(ld.names[s], ln, v, frames[v])
		}
		for _, e := range SortedEdges(rods) {
			if err := checkEdge(e, "a rod"); err != nil {
				return err
			}
		}
		ld.directors[s] = frames
		ld.rodSpec[s] = rods
	}

	if init.targetFn != nil {
		specs, err := init.targetFn(s, ln)
		if err != nil {
			return err
		}
		for _, v := range SortedVertices(specs) {
			if err := check(v, "a target point"); err != nil {
				return err
			}
		}
		ld.targetSpec[s] = specs
	}

	if init.anchorFn != nil {
		specs, err := init.anchorFn(s, ln)
		if err != nil {
			return err
		}
		for _, v := range SortedVertices(specs) {
			if err := check(v, "an anchor point"); err != nil {
				return err
			}
		}
		ld.anchorSpec[s] = specs
	}

	if init.bdryMassFn != nil {
		specs, err := init.bdryMassFn(s, ln)
		if err != nil {
			return err
		}
		for _, v := range SortedVertices(specs) {
			if err := check(v, "a massive point"); err != nil {
				return err
			}
		}
		ld.bdryMassSpec[s] = specs
	}

	if init.instrumentationFn != nil {
		names, specs, err := init.instrumentationFn(s, ln)
		if err != nil {
			return err
		}
		for _, v := range SortedVertices(specs) {
			if err := check(v, "an instrument"); err != nil {
				return err
			}
		}
		init.instrumentNames = append(init.instrumentNames, names...)
		ld.instrumentIdx[s] = specs
	}

	if init.sourceFn != nil {
		names, radii, specs, err := init.sourceFn(s, ln)
		if err != nil {
			return err
		}
		for _, v := range SortedVertices(specs) {
			if err := check(v, "a source"); err != nil {
				return err
			}
		}
		init.sourceNames = append(init.sourceNames, names...)
		init.sourceRadii = append(init.sourceRadii, radii...)
		ld.sourceIdx[s] = specs
	}

	return nil
}

// checkFrame warns about director triads that are measurably far from
// orthonormal. The force models downstream assume D D^T = I.
func (init *Initializer) checkFrame(strct string, ln, vertex int, f Frame) {
	d := mat.NewDense(3, 3, []float64{
		f[0][0], f[0][1], f[0][2],
		f[1][0], f[1][1], f[1][2],
		f[2][0], f[2][1], f[2][2],
	})
	var g mat.Dense
	g.Mul(d, d.T())
	eye := mat.NewDiagDense(3, []float64{1, 1, 1})
	var diff mat.Dense
	diff.Sub(&g, eye)
	if mat.Norm(&diff, 2) > 1e-6 {
		log.Printf(
			"%s::Init(): WARNING: director frame of vertex %d of structure "+
				"'%s' on level %d is not orthonormal (|DD^T - I| = %g)",
			init.name, vertex, strct, ln, mat.Norm(&diff, 2),
		)
	}
}

func (init *Initializer) mustValidLevel(level int) {
	if level < 0 || level >= init.maxLevels {
		panic(fmt.Sprintf(
			"%s: level %d out of range [0, %d)", init.name, level, init.maxLevels,
		))
	}
}

func (init *Initializer) mustNotBeInitialized(op string) {
	if init.initialized {
		panic(fmt.Sprintf("%s::%s(): called after Init()", init.name, op))
	}
}

func (init *Initializer) mustBeInitialized(op string) {
	if !init.initialized {
		panic(fmt.Sprintf("%s::%s(): called before Init()", init.name, op))
	}
}

// TotalNodeCount returns the number of vertices across all structures and
// levels. Canonical indices form a bijection onto [0, TotalNodeCount).
func (init *Initializer) TotalNodeCount() int {
	init.mustBeInitialized("TotalNodeCount")
	return init.totalNodes
}

// StructureNames returns the structure names registered on a level.
func (init *Initializer) StructureNames(level int) []string {
	init.mustValidLevel(level)
	return init.levels[level].names
}

// InstrumentNames returns the global instrument names.
func (init *Initializer) InstrumentNames() []string { return init.instrumentNames }

// SourceNames returns the global source/sink names.
func (init *Initializer) SourceNames() []string { return init.sourceNames }

// SourceRadii returns the global source/sink radii.
func (init *Initializer) SourceRadii() []float64 { return init.sourceRadii }
