/*package io handles the run configuration, the restart database, and the
on-disk structure and marker files of the coupling layer.
*/
package io

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/gcfg.v1"

	"github.com/cartfluid/ibmesh/geom"
)

const (
	ExampleSimulationFile = `[Simulation]

#######################
# Required Parameters #
#######################

# Physical bounds of the coarsest level, given as three numbers each.
DomainLo = 0 0 0
DomainUp = 1 1 1

# Number of cells along each dimension on the coarsest level.
Cells = 16 16 16

# Maximum number of refinement levels and the refinement ratio between
# adjacent levels.
MaxLevels = 3
RefineRatio = 2

# Number of coupling steps to advance and the (uniform) step size.
Steps = 10
Dt = 1e-3

#######################
# Optional Parameters #
#######################

# Periodic = true true true

# Number of ranks to run. Default is 1.
# Ranks = 4

# Time stepping scheme. One of
# [ MIDPOINT_RULE | BACKWARD_EULER | FORWARD_EULER | TRAPEZOIDAL_RULE ].
# Default is MIDPOINT_RULE. TimesteppingType is accepted as a legacy
# spelling.
# TimeSteppingType = MIDPOINT_RULE

# Regridding triggers. A fixed interval regrids every k steps (0 disables);
# the CFL intervals regrid once the accumulated CFL displacement exceeds
# the value, in cell widths (values of 0 or below disable). RegridCFLInterval
# sets both the fluid and the structure threshold at once.
# RegridInterval = 0
# RegridCFLInterval = -1.0
# RegridFluidCFLInterval = -1.0
# RegridStructureCFLInterval = -1.0

# Whether a change in the step size between consecutive steps aborts the
# run or only logs a warning. The ErrorOnTimestepChange and
# WarnOnTimestepChange spellings are accepted for old input files.
# ErrorOnDtChange = true
# WarnOnDtChange = false

# File of marker-point positions to track passively through the flow.
# MarkerFileName = path/to/markers.txt

# Cells of tagging buffer around refined regions, one value per level.
# A partial list is extended with its last value.
# TagBuffer = 2 2

# Redirects the log stream to a file instead of stderr.
# LogFile = log.out`

	ExampleStructuresFile = `[Structures]

# Directory holding the structure files. For each name below, a
# name.vertex file is required and name.spring, name.beam, name.target,
# name.anchor, and name.mass are optional.
Dir = path/to/structures

# Structure base names, assigned to the finest level.
Names = shell membrane

#######################
# Optional Parameters #
#######################

# Uniform scaling and translation applied to every input position:
# X = LengthScaleFactor * (X_input + PosnShift). The scale also applies
# to spring resting lengths.
# LengthScaleFactor = 1.0
# PosnShift = 0 0 0`
)

// SimulationConfig is the [Simulation] section of a run file.
type SimulationConfig struct {
	// Required
	DomainLo, DomainUp string
	Cells              string
	MaxLevels          int
	RefineRatio        int
	Steps              int
	Dt                 float64

	// Optional
	Periodic string
	Ranks    int

	// Key matching is case-insensitive, so the legacy 'TimesteppingType'
	// spelling binds here too.
	TimeSteppingType string

	RegridInterval             int
	RegridCFLInterval          float64
	RegridFluidCFLInterval     float64
	RegridStructureCFLInterval float64

	ErrorOnDtChange bool
	WarnOnDtChange  bool
	// Legacy spellings.
	ErrorOnTimestepChange bool
	WarnOnTimestepChange  bool

	MarkerFileName string
	TagBuffer      string
	LogFile        string
}

// StructuresConfig is the [Structures] section of a run file.
type StructuresConfig struct {
	Dir   string
	Names string

	LengthScaleFactor float64
	PosnShift         string
}

// ConfigWrapper is the top-level layout gcfg parses a run file into.
type ConfigWrapper struct {
	Simulation SimulationConfig
	Structures StructuresConfig
}

// DefaultConfigWrapper returns a wrapper carrying the documented defaults.
func DefaultConfigWrapper() *ConfigWrapper {
	con := SimulationConfig{}
	con.Ranks = 1
	con.RegridCFLInterval = -1.0
	con.RegridFluidCFLInterval = -1.0
	con.RegridStructureCFLInterval = -1.0
	st := StructuresConfig{}
	st.LengthScaleFactor = 1.0
	return &ConfigWrapper{con, st}
}

// ReadConfig parses a run file over the defaults and normalizes legacy
// key spellings.
func ReadConfig(fname string) (*ConfigWrapper, error) {
	wrap := DefaultConfigWrapper()
	if err := gcfg.ReadFileInto(wrap, fname); err != nil {
		return nil, err
	}
	wrap.Simulation.normalize()
	return wrap, nil
}

// normalize folds the legacy key spellings into the canonical fields.
func (con *SimulationConfig) normalize() {
	con.ErrorOnDtChange = con.ErrorOnDtChange || con.ErrorOnTimestepChange
	con.WarnOnDtChange = con.WarnOnDtChange || con.WarnOnTimestepChange
}

func (con *SimulationConfig) ValidDomainLo() bool {
	_, err := ParseVec(con.DomainLo)
	return err == nil
}
func (con *SimulationConfig) ValidDomainUp() bool {
	_, err := ParseVec(con.DomainUp)
	return err == nil
}
func (con *SimulationConfig) ValidCells() bool {
	c, err := ParseIntVec(con.Cells)
	if err != nil {
		return false
	}
	return c[0] > 0 && c[1] > 0 && c[2] > 0
}
func (con *SimulationConfig) ValidMaxLevels() bool {
	return con.MaxLevels > 0
}
func (con *SimulationConfig) ValidRefineRatio() bool {
	return con.RefineRatio > 1
}
func (con *SimulationConfig) ValidSteps() bool {
	return con.Steps > 0
}
func (con *SimulationConfig) ValidDt() bool {
	return con.Dt > 0
}
func (con *SimulationConfig) ValidRanks() bool {
	return con.Ranks > 0
}
func (con *SimulationConfig) ValidPeriodic() bool {
	if con.Periodic == "" {
		return true
	}
	_, err := ParseBools(con.Periodic)
	return err == nil
}
func (con *SimulationConfig) ValidTagBuffer() bool {
	if con.TagBuffer == "" {
		return true
	}
	_, err := ParseInts(con.TagBuffer)
	return err == nil
}
func (con *SimulationConfig) ValidLogFile() bool {
	return con.LogFile != ""
}
func (con *SimulationConfig) ValidMarkerFileName() bool {
	return con.MarkerFileName != ""
}

func (con *StructuresConfig) ValidDir() bool {
	return con.Dir != ""
}
func (con *StructuresConfig) ValidNames() bool {
	return len(strings.Fields(con.Names)) > 0
}
func (con *StructuresConfig) ValidLengthScaleFactor() bool {
	return con.LengthScaleFactor > 0
}
func (con *StructuresConfig) ValidPosnShift() bool {
	if con.PosnShift == "" {
		return true
	}
	_, err := ParseVec(con.PosnShift)
	return err == nil
}

// ParseVec parses three whitespace-separated floats.
func ParseVec(s string) (geom.Vec, error) {
	fields := strings.Fields(s)
	if len(fields) != 3 {
		return geom.Vec{}, fmt.Errorf("'%s': want 3 values, got %d", s, len(fields))
	}
	var v geom.Vec
	for i, f := range fields {
		x, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return geom.Vec{}, fmt.Errorf("'%s': %v", s, err)
		}
		v[i] = x
	}
	return v, nil
}

// ParseIntVec parses three whitespace-separated ints.
func ParseIntVec(s string) (geom.IntVec, error) {
	ns, err := ParseInts(s)
	if err != nil {
		return geom.IntVec{}, err
	}
	if len(ns) != 3 {
		return geom.IntVec{}, fmt.Errorf("'%s': want 3 values, got %d", s, len(ns))
	}
	return geom.IntVec{ns[0], ns[1], ns[2]}, nil
}

// ParseInts parses whitespace-separated ints.
func ParseInts(s string) ([]int, error) {
	fields := strings.Fields(s)
	ns := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("'%s': %v", s, err)
		}
		ns[i] = n
	}
	return ns, nil
}

// ParseBools parses three whitespace-separated bools.
func ParseBools(s string) ([3]bool, error) {
	fields := strings.Fields(s)
	if len(fields) != 3 {
		return [3]bool{}, fmt.Errorf("'%s': want 3 values, got %d", s, len(fields))
	}
	var bs [3]bool
	for i, f := range fields {
		b, err := strconv.ParseBool(f)
		if err != nil {
			return [3]bool{}, fmt.Errorf("'%s': %v", s, err)
		}
		bs[i] = b
	}
	return bs, nil
}
