package io

import (
	"fmt"

	"github.com/phil-mansfield/table"

	"github.com/cartfluid/ibmesh/geom"
)

// ReadMarkerPositions reads the marker file named by the MarkerFileName
// key: one x y z position per line.
func ReadMarkerPositions(fname string) ([]geom.Vec, error) {
	cols, err := table.ReadTable(fname, []int{0, 1, 2}, nil)
	if err != nil {
		return nil, fmt.Errorf("reading marker file %s: %v", fname, err)
	}
	posns := make([]geom.Vec, len(cols[0]))
	for i := range posns {
		posns[i] = geom.Vec{cols[0][i], cols[1][i], cols[2][i]}
	}
	return posns, nil
}
