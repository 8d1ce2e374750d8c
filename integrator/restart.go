package integrator

import (
	"fmt"

	"github.com/cartfluid/ibmesh/io"
)

// Version tag of the orchestrator's restart payload. A restart file
// written by a different version fails to load rather than being
// reinterpreted.
const ibHierarchyIntegratorVersion = 2

// PutToDatabase writes the orchestrator's persistent state: the version
// tag, the time-stepping token, and both CFL accumulators.
func (i *Integrator) PutToDatabase(db *io.Database) {
	db.PutInt("IB_HIERARCHY_INTEGRATOR_VERSION", ibHierarchyIntegratorVersion)
	db.PutString("d_time_stepping_type", i.timeStepping.String())
	db.PutDouble("d_regrid_fluid_cfl_estimate", i.regridFluidCFLEstimate)
	db.PutDouble("d_regrid_structure_cfl_estimate", i.regridStructureCFLEstimate)
}

// FromDatabase restores the persistent state. The version must match
// exactly; any missing entry is an error naming the object and the key.
func (i *Integrator) FromDatabase(db *io.Database) error {
	ver, err := db.GetInt("IB_HIERARCHY_INTEGRATOR_VERSION")
	if err != nil {
		return fmt.Errorf("%s::getFromDatabase(): %v", i.name, err)
	}
	if ver != ibHierarchyIntegratorVersion {
		return fmt.Errorf(
			"%s::getFromDatabase(): restart file version %d does not match "+
				"class version %d", i.name, ver, ibHierarchyIntegratorVersion,
		)
	}

	tok, err := db.GetString("d_time_stepping_type")
	if err != nil {
		return fmt.Errorf("%s::getFromDatabase(): %v", i.name, err)
	}
	ts, err := ParseTimeSteppingType(tok)
	if err != nil {
		return fmt.Errorf("%s::getFromDatabase(): %v", i.name, err)
	}
	i.timeStepping = ts

	fluidCFL, err := db.GetDouble("d_regrid_fluid_cfl_estimate")
	if err != nil {
		return fmt.Errorf("%s::getFromDatabase(): %v", i.name, err)
	}
	structCFL, err := db.GetDouble("d_regrid_structure_cfl_estimate")
	if err != nil {
		return fmt.Errorf("%s::getFromDatabase(): %v", i.name, err)
	}
	i.regridFluidCFLEstimate = fluidCFL
	i.regridStructureCFLEstimate = structCFL

	i.fromRestart = true
	i.firstStep = true
	return nil
}
