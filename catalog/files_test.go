package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cartfluid/ibmesh/geom"
)

func writeFile(t *testing.T, dir, name, body string) {
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0644); err != nil {
		t.Fatal(err.Error())
	}
}

func TestConfigureFromFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "fiber.vertex",
		"0.1 0.5 0.5\n0.2 0.5 0.5\n0.3 0.5 0.5\n")
	writeFile(t, dir, "fiber.spring",
		"0 1 10 0.1\n1 2 10 0.1\n")
	writeFile(t, dir, "fiber.target",
		"0 100 1\n")
	writeFile(t, dir, "fiber.anchor",
		"2\n")
	writeFile(t, dir, "fiber.mass",
		"1 0.5 50\n")

	init := NewInitializer("TestInitializer", 1)
	init.ConfigureFromFiles(dir, [][]string{{"fiber"}})
	assert.NoError(t, init.Init())

	n, err := init.NumVertices(0, 0)
	assert.NoError(t, err)
	assert.Equal(t, 3, n, "vertex count implied by row count")

	x, err := init.VertexPosn(0, PointIndex{0, 1})
	assert.NoError(t, err)
	assert.Equal(t, geom.Vec{0.2, 0.5, 0.5}, x)

	springs := init.SpringSpecs(0, 0)
	assert.Equal(t, 2, len(springs))
	assert.Equal(t, []float64{10, 0.1}, springs[Edge{0, 1}].Parameters)

	target, ok := init.VertexTargetSpec(0, PointIndex{0, 0})
	assert.True(t, ok)
	assert.Equal(t, TargetSpec{Stiffness: 100, Damping: 1}, target)

	anchor, ok := init.VertexAnchorSpec(0, PointIndex{0, 2})
	assert.True(t, ok)
	assert.True(t, anchor.IsAnchorPoint)

	mass, ok := init.VertexBdryMassSpec(0, PointIndex{0, 1})
	assert.True(t, ok)
	assert.Equal(t, BdryMassSpec{BdryMass: 0.5, Stiffness: 50}, mass)
}

func TestFromFilesOptionalFilesMissing(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lone.vertex", "0.5 0.5 0.5\n")

	init := NewInitializer("TestInitializer", 1)
	init.ConfigureFromFiles(dir, [][]string{{"lone"}})
	assert.NoError(t, init.Init(), "missing optional files contribute nothing")
	assert.Equal(t, 0, len(init.SpringSpecs(0, 0)))
}

func TestFromFilesMissingVertexFile(t *testing.T) {
	init := NewInitializer("TestInitializer", 1)
	init.ConfigureFromFiles(t.TempDir(), [][]string{{"ghost"}})
	assert.Error(t, init.Init(), "the vertex file is required")
}

func TestFromFilesBadSpringIndex(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.vertex", "0.1 0.5 0.5\n0.2 0.5 0.5\n")
	writeFile(t, dir, "bad.spring", "0 9 10 0.1\n")

	init := NewInitializer("TestInitializer", 1)
	init.ConfigureFromFiles(dir, [][]string{{"bad"}})
	err := init.Init()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "bad", "error names the structure")
}
