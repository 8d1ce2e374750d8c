package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"strings"

	"github.com/cartfluid/ibmesh/catalog"
	"github.com/cartfluid/ibmesh/comm"
	"github.com/cartfluid/ibmesh/geom"
	"github.com/cartfluid/ibmesh/hier"
	"github.com/cartfluid/ibmesh/integrator"
	"github.com/cartfluid/ibmesh/io"
)

func main() {
	// The main function manages input sanitization and hands the validated
	// configuration to the run loop. Most of the code here exists to fail
	// with a descriptive message instead of a confusing one later.

	var runStr, exampleConfig string
	flag.StringVar(
		&runStr, "Run", "",
		"Configuration file holding the [Simulation] section and, "+
			"optionally, a [Structures] section.",
	)
	flag.StringVar(
		&exampleConfig, "ExampleConfig", "",
		"Prints an example configuration file of the specified type to "+
			"stdout. Accepted arguments are 'Simulation' and 'Structures'.",
	)
	flag.Parse()

	switch {
	case exampleConfig != "":
		switch exampleConfig {
		case "Simulation":
			fmt.Println(io.ExampleSimulationFile)
		case "Structures":
			fmt.Println(io.ExampleStructuresFile)
		default:
			log.Fatalf(
				"Unrecognized 'ExampleConfig' argument '%s'. Accepted "+
					"arguments are 'Simulation' and 'Structures'.", exampleConfig,
			)
		}
	case runStr != "":
		wrap, err := io.ReadConfig(runStr)
		if err != nil {
			log.Fatal(err.Error())
		}
		con := &wrap.Simulation

		if !con.ValidDomainLo() || !con.ValidDomainUp() {
			log.Fatal("Invalid/non-existent 'DomainLo'/'DomainUp' values.")
		} else if !con.ValidCells() {
			log.Fatal("Invalid/non-existent 'Cells' value.")
		} else if !con.ValidMaxLevels() {
			log.Fatal("Invalid/non-existent 'MaxLevels' value.")
		} else if !con.ValidRefineRatio() {
			log.Fatal("Invalid/non-existent 'RefineRatio' value.")
		} else if !con.ValidSteps() {
			log.Fatal("Invalid/non-existent 'Steps' value.")
		} else if !con.ValidDt() {
			log.Fatal("Invalid/non-existent 'Dt' value.")
		} else if !con.ValidRanks() {
			log.Fatal("Invalid 'Ranks' value.")
		} else if !con.ValidPeriodic() {
			log.Fatal("Invalid 'Periodic' value.")
		} else if !con.ValidTagBuffer() {
			log.Fatal("Invalid 'TagBuffer' value.")
		}

		st := &wrap.Structures
		if st.Dir != "" || st.Names != "" {
			if !st.ValidDir() {
				log.Fatal("Invalid/non-existent 'Dir' value in [Structures].")
			} else if !st.ValidNames() {
				log.Fatal("Invalid/non-existent 'Names' value in [Structures].")
			} else if !st.ValidLengthScaleFactor() {
				log.Fatal("Invalid 'LengthScaleFactor' value.")
			} else if !st.ValidPosnShift() {
				log.Fatal("Invalid 'PosnShift' value.")
			}
		}

		if con.ValidLogFile() {
			f, err := os.Create(con.LogFile)
			if err != nil {
				log.Fatal(err.Error())
			}
			defer f.Close()
			log.SetOutput(f)
		}

		cflConfigured := con.RegridCFLInterval > 0 ||
			con.RegridFluidCFLInterval > 0 || con.RegridStructureCFLInterval > 0
		if cflConfigured && con.RegridInterval != 0 {
			log.Printf(
				"Both a CFL regrid interval and a fixed 'RegridInterval' are "+
					"configured; the CFL trigger takes precedence and "+
					"'RegridInterval = %d' is ignored.", con.RegridInterval,
			)
		}

		runMain(wrap)
	default:
		log.Fatal("Either the '-Run' or the '-ExampleConfig' flag must be given.")
	}
}

func runMain(wrap *io.ConfigWrapper) {
	con := &wrap.Simulation
	st := &wrap.Structures

	xLo, _ := io.ParseVec(con.DomainLo)
	xUp, _ := io.ParseVec(con.DomainUp)
	cells, _ := io.ParseIntVec(con.Cells)
	periodic := [3]bool{}
	if con.Periodic != "" {
		periodic, _ = io.ParseBools(con.Periodic)
	}
	tagBuffer := []int{}
	if con.TagBuffer != "" {
		tagBuffer, _ = io.ParseInts(con.TagBuffer)
	}

	geometry := &hier.GridGeometry{
		XLo: xLo, XUp: xUp, DomainCells: cells, Periodic: periodic,
	}

	init := catalog.NewInitializer("IBInitializer", con.MaxLevels)
	if st.Names != "" {
		names := [][]string{}
		for ln := 0; ln < con.MaxLevels-1; ln++ {
			names = append(names, nil)
		}
		names = append(names, strings.Fields(st.Names))
		init.ConfigureFromFiles(st.Dir, names)
	} else {
		configureDemoStructure(init, geometry, con.MaxLevels)
	}
	if st.LengthScaleFactor > 0 {
		init.SetLengthScaleFactor(st.LengthScaleFactor)
	}
	if st.PosnShift != "" {
		shift, _ := io.ParseVec(st.PosnShift)
		init.SetPosnShift(shift)
	}
	if err := init.Init(); err != nil {
		log.Fatal(err.Error())
	}
	if err := init.AllDataInDomain(geometry); err != nil {
		log.Fatal(err.Error())
	}
	log.Printf("Initialized structure catalog: %d vertices.", init.TotalNodeCount())

	world := comm.NewWorld(con.Ranks)
	err := world.Run(func(rank int) error {
		return runRank(wrap, geometry, init, world, rank, tagBuffer)
	})
	if err != nil {
		log.Fatal(err.Error())
	}
}

// runRank drives one rank's copy of the hierarchy through the step loop.
// Every rank holds the full catalog and its own hierarchy objects; the
// collectives in the world keep the CFL decisions globally consistent.
func runRank(
	wrap *io.ConfigWrapper, geometry *hier.GridGeometry,
	init *catalog.Initializer, world *comm.World, rank int, tagBuffer []int,
) error {
	con := &wrap.Simulation

	h := hier.NewHierarchy(geometry)
	h.SetLevels([]*hier.Level{coarsestLevel(geometry, world.Size())})

	fluid := &demoFluid{}
	ops := &demoOps{init: init, world: world, rank: rank}

	integ, err := integrator.New("IBHierarchyIntegrator", con, ops, fluid, world, rank)
	if err != nil {
		return err
	}
	gridder := &hier.Gridder{
		MaxLevels: con.MaxLevels,
		TagBuffer: append([]int{}, tagBuffer...),
		Regrid:    regridAroundStructures(init, con.MaxLevels, con.RefineRatio, world.Size()),
	}
	if err := integ.InitializeHierarchyIntegrator(h, gridder); err != nil {
		return err
	}
	if err := integ.InitializePatchHierarchy(h, 0.0, false); err != nil {
		return err
	}

	time := 0.0
	for step := 0; step < con.Steps; step++ {
		if integ.AtRegridPoint() {
			if err := integ.RegridHierarchy(h); err != nil {
				return err
			}
			for ln := 0; ln < h.NumLevels(); ln++ {
				if err := integ.InitializeLevelData(h, ln, time, step == 0); err != nil {
					return err
				}
			}
			if err := integ.ResetHierarchyConfiguration(h, 0, h.FinestLevelNumber()); err != nil {
				return err
			}
		}

		newTime := time + con.Dt
		if err := integ.PreprocessIntegrateHierarchy(h, time, newTime); err != nil {
			return err
		}
		fluid.solve(h, integ.VelocityNewIndex(), newTime)
		if err := integ.PostprocessIntegrateHierarchy(h, time, newTime); err != nil {
			return err
		}
		time = newTime
	}
	return nil
}

// coarsestLevel splits the domain into one patch per rank along x.
func coarsestLevel(g *hier.GridGeometry, ranks int) *hier.Level {
	lvl := &hier.Level{Num: 0, Ratio: 1}
	nx := g.DomainCells[0]
	for r := 0; r < ranks; r++ {
		lo := geom.IntVec{r * nx / ranks, 0, 0}
		hi := geom.IntVec{(r + 1) * nx / ranks, g.DomainCells[1], g.DomainCells[2]}
		lvl.Patches = append(lvl.Patches, hier.NewPatch(r, r, hier.NewBox(lo, hi)))
	}
	return lvl
}

// regridAroundStructures rebuilds the finer levels as single patches over
// the padded bounding boxes of the registered structures.
func regridAroundStructures(init *catalog.Initializer, maxLevels, ratio, ranks int) hier.RegridFunc {
	return func(h *hier.Hierarchy, tagBuffer []int) error {
		g := h.Geometry
		levels := []*hier.Level{coarsestLevel(g, ranks)}
		for ln := 1; ln < maxLevels; ln++ {
			cum := levels[ln-1].Ratio * ratio
			box, ok := structureBounds(init, maxLevels, g, g.DxAt(cum))
			if !ok {
				break
			}
			buf := ratio
			if ln-1 < len(tagBuffer) {
				buf = tagBuffer[ln-1] * ratio
			}
			for i := 0; i < 3; i++ {
				box.Lo[i] -= buf
				box.Hi[i] += buf
			}
			domain, ok := box.Intersect(g.DomainBox().Refine(cum))
			if !ok {
				break
			}
			lvl := &hier.Level{Num: ln, Ratio: cum}
			lvl.Patches = append(lvl.Patches, hier.NewPatch(0, 0, domain))
			levels = append(levels, lvl)
		}
		h.SetLevels(levels)
		return nil
	}
}

// structureBounds returns the index-space bounding box of every registered
// vertex at the given spacing.
func structureBounds(
	init *catalog.Initializer, maxLevels int, g *hier.GridGeometry, dx geom.Vec,
) (hier.Box, bool) {
	lo := geom.IntVec{math.MaxInt32, math.MaxInt32, math.MaxInt32}
	hi := geom.IntVec{math.MinInt32, math.MinInt32, math.MinInt32}
	found := false
	for level := 0; level < maxLevels; level++ {
		for s := range init.StructureNames(level) {
			n, err := init.NumVertices(level, s)
			if err != nil {
				continue
			}
			for v := 0; v < n; v++ {
				x, err := init.ShiftedVertexPosn(level, catalog.PointIndex{Strct: s, Vertex: v}, g)
				if err != nil {
					continue
				}
				cell := g.CellAt(x, dx)
				lo = lo.Min(cell)
				hi = hi.Max(geom.IntVec{cell[0] + 1, cell[1] + 1, cell[2] + 1})
				found = true
			}
		}
	}
	return hier.NewBox(lo, hi), found
}

func configureDemoStructure(init *catalog.Initializer, g *hier.GridGeometry, maxLevels int) {
	init.SetStructureNamesOnLevel(maxLevels-1, []string{"ring"})
	center := g.XLo.Add(g.XUp).Scale(0.5)
	radius := 0.25 * (g.XUp.Sub(g.XLo)).MinComp()
	const n = 64
	init.RegisterInitStructureFunc(func(strct, level int) ([]geom.Vec, error) {
		posns := make([]geom.Vec, n)
		for k := range posns {
			th := 2 * math.Pi * float64(k) / n
			posns[k] = center.Add(geom.Vec{radius * math.Cos(th), radius * math.Sin(th), 0})
		}
		return posns, nil
	})
	init.RegisterInitSpringFunc(func(strct, level int) (map[catalog.Edge]catalog.SpringSpec, error) {
		specs := make(map[catalog.Edge]catalog.SpringSpec, n)
		rest := 2 * radius * math.Sin(math.Pi/n)
		for k := 0; k < n; k++ {
			specs[catalog.Edge{First: k, Second: (k + 1) % n}] = catalog.SpringSpec{
				Parameters: []float64{1.0, rest},
			}
		}
		return specs, nil
	})
}

// demoFluid is a stand-in fluid solver: single-cycle, with an analytic
// swirl velocity written during the "solve" phase so the CFL machinery has
// real data to reduce.
type demoFluid struct {
	bodyForce integrator.ForceFunc
	source    integrator.SourceFunc
}

func (f *demoFluid) Name() string        { return "DemoFluidSolver" }
func (f *demoFluid) NumberOfCycles() int { return 1 }

func (f *demoFluid) PreprocessIntegrateHierarchy(
	h *hier.Hierarchy, currentTime, newTime float64, numCycles int,
) error {
	return nil
}

func (f *demoFluid) PostprocessIntegrateHierarchy(
	h *hier.Hierarchy, currentTime, newTime float64,
) error {
	return nil
}

func (f *demoFluid) VelocityVariable() *hier.Variable {
	return &hier.Variable{Name: "u", Centering: hier.SideCentered, Depth: 3}
}

func (f *demoFluid) PressureVariable() *hier.Variable {
	return &hier.Variable{Name: "p", Centering: hier.CellCentered, Depth: 1}
}

func (f *demoFluid) CurrentContext() *hier.Context { return &hier.Context{Name: "CURRENT"} }
func (f *demoFluid) NewContext() *hier.Context     { return &hier.Context{Name: "NEW"} }
func (f *demoFluid) ScratchContext() *hier.Context { return &hier.Context{Name: "SCRATCH"} }

func (f *demoFluid) SetBodyForceFunction(fn integrator.ForceFunc)    { f.bodyForce = fn }
func (f *demoFluid) SetFluidSourceFunction(fn integrator.SourceFunc) { f.source = fn }

func (f *demoFluid) solve(h *hier.Hierarchy, uNewIdx int, t float64) {
	for ln := 0; ln < h.NumLevels(); ln++ {
		for _, p := range h.Level(ln).Patches {
			d, ok := p.Data(uNewIdx)
			if !ok {
				continue
			}
			for c := range d.Vals {
				d.Vals[c] = math.Sin(t + float64(c%7))
			}
		}
	}
}

// demoOps is a stand-in structure subsystem backed by the catalog: its
// level data, tagging, and workload all come from the partitioner.
type demoOps struct {
	init  *catalog.Initializer
	world *comm.World
	rank  int

	nodes []*catalog.LevelNodes
}

func (o *demoOps) Name() string { return "DemoStructureOps" }

func (o *demoOps) MinimumGhostCellWidth() geom.IntVec { return geom.IntVec{1, 1, 1} }

func (o *demoOps) HasFluidSources() bool { return false }

func (o *demoOps) PreprocessIntegrateData(currentTime, newTime float64, numCycles int) error {
	return nil
}

func (o *demoOps) PostprocessIntegrateData(currentTime, newTime float64, numCycles int) error {
	return nil
}

func (o *demoOps) RegisterEulerianVariables(db *hier.VarDB) {}

func (o *demoOps) RegisterEulerianCommunicationAlgorithms(reg *comm.Registry) error {
	return nil
}

func (o *demoOps) BeginDataRedistribution(h *hier.Hierarchy) error {
	o.nodes = nil
	return nil
}

func (o *demoOps) EndDataRedistribution(h *hier.Hierarchy) error {
	for ln := 0; ln < h.NumLevels(); ln++ {
		nodes, err := o.init.InitializeLevelData(h, ln, o.rank)
		if err != nil {
			return err
		}
		o.nodes = append(o.nodes, nodes)
	}
	return nil
}

func (o *demoOps) InitializeLevelData(
	h *hier.Hierarchy, level int, initTime float64, initialTime bool,
) error {
	_, err := o.init.InitializeLevelData(h, level, o.rank)
	return err
}

func (o *demoOps) InitializePatchHierarchy(
	h *hier.Hierarchy, ghostfill, coarsen []*comm.Schedule,
	initTime float64, initialTime bool,
) error {
	return o.EndDataRedistribution(h)
}

func (o *demoOps) ResetHierarchyConfiguration(h *hier.Hierarchy, coarsest, finest int) error {
	return nil
}

func (o *demoOps) ApplyGradientDetector(
	h *hier.Hierarchy, level int, time float64, tagIdx int, initialTime bool,
) error {
	o.init.TagCellsForInitialRefinement(h, level, tagIdx)
	return nil
}

func (o *demoOps) AddWorkloadEstimate(h *hier.Hierarchy, workloadIdx int) error {
	return nil
}

func (o *demoOps) SetupTagBuffer(tagBuffer []int) {}
