package hier

// RegridFunc rebuilds the hierarchy's level decomposition. The generic AMR
// box-generation algorithm is an external collaborator; the coupling layer
// only drives it through this handle.
type RegridFunc func(h *Hierarchy, tagBuffer []int) error

// Gridder holds the mesh-generation configuration the orchestrator needs:
// the maximum level count, the per-level tag buffer, and the regrid
// callback.
type Gridder struct {
	MaxLevels int
	TagBuffer []int

	Regrid RegridFunc
}

// RegridHierarchy invokes the regrid callback, if one is configured.
// Hierarchies without a callback keep their current decomposition, which
// is the degenerate single-grid configuration.
func (g *Gridder) RegridHierarchy(h *Hierarchy) error {
	if g.Regrid == nil {
		return nil
	}
	return g.Regrid(h, g.TagBuffer)
}
