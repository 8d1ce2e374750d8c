package hier

import (
	"fmt"

	"github.com/cartfluid/ibmesh/geom"
)

// InvalidIndex marks an unassigned patch-data index.
const InvalidIndex = -1

// Centering describes where on the grid a variable's degrees of freedom
// live.
type Centering int

const (
	CellCentered Centering = iota
	SideCentered
	NodeCentered
)

func (c Centering) String() string {
	switch c {
	case CellCentered:
		return "CELL"
	case SideCentered:
		return "SIDE"
	case NodeCentered:
		return "NODE"
	}
	return fmt.Sprintf("Centering(%d)", int(c))
}

// Variable identifies one Eulerian field.
type Variable struct {
	Name      string
	Centering Centering
	Depth     int
}

// Context distinguishes the current, new, and scratch copies of a
// variable, plus any integrator-private contexts.
type Context struct {
	Name string
}

// VarDB assigns patch-data indices to (variable, context) pairs. Each
// Hierarchy owns exactly one VarDB; there is no process-global database.
type VarDB struct {
	descs []VarDesc
	byKey map[varKey]int
}

// VarDesc records the metadata needed to allocate patch data for one
// registered index.
type VarDesc struct {
	Var    *Variable
	Ctx    *Context
	Ghosts geom.IntVec
}

type varKey struct {
	varName, ctxName string
}

// NewVarDB returns an empty variable database.
func NewVarDB() *VarDB {
	return &VarDB{byKey: make(map[varKey]int)}
}

// RegisterVariableAndContext assigns a patch-data index to the pair
// (v, ctx), or returns the existing index if the pair was registered
// before.
func (db *VarDB) RegisterVariableAndContext(
	v *Variable, ctx *Context, ghosts geom.IntVec,
) int {
	key := varKey{v.Name, ctx.Name}
	if idx, ok := db.byKey[key]; ok {
		return idx
	}
	idx := len(db.descs)
	db.descs = append(db.descs, VarDesc{v, ctx, ghosts})
	db.byKey[key] = idx
	return idx
}

// RegisterClonedIndex assigns a fresh patch-data index sharing the
// descriptor of srcIdx. Used for time-lagged copies of a field.
func (db *VarDB) RegisterClonedIndex(v *Variable, srcIdx int) int {
	if srcIdx < 0 || srcIdx >= len(db.descs) {
		panic(fmt.Sprintf("VarDB: cannot clone unregistered index %d", srcIdx))
	}
	idx := len(db.descs)
	desc := db.descs[srcIdx]
	desc.Var = v
	db.descs = append(db.descs, desc)
	return idx
}

// MapToIndex returns the patch-data index registered for (v, ctx), or an
// error if the pair was never registered.
func (db *VarDB) MapToIndex(v *Variable, ctx *Context) (int, error) {
	idx, ok := db.byKey[varKey{v.Name, ctx.Name}]
	if !ok {
		return InvalidIndex, fmt.Errorf(
			"VarDB: no index registered for variable '%s', context '%s'",
			v.Name, ctx.Name,
		)
	}
	return idx, nil
}

// Desc returns the descriptor for a registered index.
func (db *VarDB) Desc(idx int) VarDesc {
	if idx < 0 || idx >= len(db.descs) {
		panic(fmt.Sprintf("VarDB: index %d is not registered", idx))
	}
	return db.descs[idx]
}

// Len returns the number of registered indices.
func (db *VarDB) Len() int { return len(db.descs) }
