package catalog

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/phil-mansfield/table"

	"github.com/cartfluid/ibmesh/geom"
)

// File-based catalog loading. Each structure is described by a family of
// whitespace-delimited column files sharing a base name:
//
//	base.vertex  x y z                             (required)
//	base.spring  first second stiffness restlen    (optional)
//	base.beam    prev master next rigidity         (optional)
//	base.target  vertex stiffness damping          (optional)
//	base.anchor  vertex                            (optional)
//	base.mass    vertex mass stiffness             (optional)
//
// One row per vertex or link; counts are implied by the row count.

// ConfigureFromFiles points the initializer at file-backed structures:
// baseNames[ln] lists the base names registered on level ln, resolved
// relative to dirname. It registers the structure, spring, beam, target,
// anchor, and mass callbacks; optional files that do not exist simply
// contribute nothing.
func (init *Initializer) ConfigureFromFiles(dirname string, baseNames [][]string) {
	init.mustNotBeInitialized("ConfigureFromFiles")
	for ln, names := range baseNames {
		init.SetStructureNamesOnLevel(ln, names)
	}

	base := func(strct, level int) string {
		return filepath.Join(dirname, init.levels[level].names[strct])
	}

	init.RegisterInitStructureFunc(func(strct, level int) ([]geom.Vec, error) {
		return readVertexFile(base(strct, level) + ".vertex")
	})
	init.RegisterInitSpringFunc(func(strct, level int) (map[Edge]SpringSpec, error) {
		return readSpringFile(base(strct, level) + ".spring")
	})
	init.RegisterInitBeamFunc(func(strct, level int) (map[int][]BeamSpec, error) {
		return readBeamFile(base(strct, level) + ".beam")
	})
	init.RegisterInitTargetFunc(func(strct, level int) (map[int]TargetSpec, error) {
		return readTargetFile(base(strct, level) + ".target")
	})
	init.RegisterInitAnchorFunc(func(strct, level int) (map[int]AnchorSpec, error) {
		return readAnchorFile(base(strct, level) + ".anchor")
	})
	init.RegisterInitBdryMassFunc(func(strct, level int) (map[int]BdryMassSpec, error) {
		return readMassFile(base(strct, level) + ".mass")
	})
}

func fileExists(file string) bool {
	_, err := os.Stat(file)
	return err == nil
}

func readColumns(file string, n int) ([][]float64, error) {
	colIdxs := make([]int, n)
	for i := range colIdxs {
		colIdxs[i] = i
	}
	cols, err := table.ReadTable(file, colIdxs, nil)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %v", file, err)
	}
	return cols, nil
}

func readVertexFile(file string) ([]geom.Vec, error) {
	cols, err := readColumns(file, 3)
	if err != nil {
		return nil, err
	}
	posns := make([]geom.Vec, len(cols[0]))
	for i := range posns {
		posns[i] = geom.Vec{cols[0][i], cols[1][i], cols[2][i]}
	}
	return posns, nil
}

func readSpringFile(file string) (map[Edge]SpringSpec, error) {
	if !fileExists(file) {
		return nil, nil
	}
	cols, err := readColumns(file, 4)
	if err != nil {
		return nil, err
	}
	specs := make(map[Edge]SpringSpec, len(cols[0]))
	for i := range cols[0] {
		e := Edge{int(cols[0][i]), int(cols[1][i])}
		specs[e] = SpringSpec{Parameters: []float64{cols[2][i], cols[3][i]}}
	}
	return specs, nil
}

func readBeamFile(file string) (map[int][]BeamSpec, error) {
	if !fileExists(file) {
		return nil, nil
	}
	cols, err := readColumns(file, 4)
	if err != nil {
		return nil, err
	}
	specs := make(map[int][]BeamSpec)
	for i := range cols[0] {
		master := int(cols[1][i])
		specs[master] = append(specs[master], BeamSpec{
			Neighbors:    [2]int{int(cols[0][i]), int(cols[2][i])},
			BendRigidity: cols[3][i],
		})
	}
	return specs, nil
}

func readTargetFile(file string) (map[int]TargetSpec, error) {
	if !fileExists(file) {
		return nil, nil
	}
	cols, err := readColumns(file, 3)
	if err != nil {
		return nil, err
	}
	specs := make(map[int]TargetSpec, len(cols[0]))
	for i := range cols[0] {
		specs[int(cols[0][i])] = TargetSpec{
			Stiffness: cols[1][i], Damping: cols[2][i],
		}
	}
	return specs, nil
}

func readAnchorFile(file string) (map[int]AnchorSpec, error) {
	if !fileExists(file) {
		return nil, nil
	}
	cols, err := readColumns(file, 1)
	if err != nil {
		return nil, err
	}
	specs := make(map[int]AnchorSpec, len(cols[0]))
	for i := range cols[0] {
		specs[int(cols[0][i])] = AnchorSpec{IsAnchorPoint: true}
	}
	return specs, nil
}

func readMassFile(file string) (map[int]BdryMassSpec, error) {
	if !fileExists(file) {
		return nil, nil
	}
	cols, err := readColumns(file, 3)
	if err != nil {
		return nil, err
	}
	specs := make(map[int]BdryMassSpec, len(cols[0]))
	for i := range cols[0] {
		specs[int(cols[0][i])] = BdryMassSpec{
			BdryMass: cols[1][i], Stiffness: cols[2][i],
		}
	}
	return specs, nil
}
