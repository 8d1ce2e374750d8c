package comm

import (
	"fmt"

	"github.com/cartfluid/ibmesh/geom"
	"github.com/cartfluid/ibmesh/hier"
)

// OpRegistration is one (source, destination, scratch, operator) entry in
// a communication algorithm.
type OpRegistration struct {
	Src, Dst, Scratch int
	Op                string
}

// Algorithm is a reusable description of a data-communication pass: which
// patch-data indices move, and with which interpolation operator. It is
// instantiated into per-level Schedules once the hierarchy is known.
type Algorithm struct {
	Name string
	Regs []OpRegistration
}

// NewAlgorithm returns an empty algorithm.
func NewAlgorithm(name string) *Algorithm {
	return &Algorithm{Name: name}
}

// RegisterOp appends a registration to the algorithm.
func (a *Algorithm) RegisterOp(src, dst, scratch int, op string) {
	a.Regs = append(a.Regs, OpRegistration{src, dst, scratch, op})
}

// ScheduleKind distinguishes the three schedule families the integrator
// registers.
type ScheduleKind int

const (
	GhostfillKind ScheduleKind = iota
	CoarsenKind
	ProlongKind
)

func (k ScheduleKind) String() string {
	switch k {
	case GhostfillKind:
		return "ghostfill"
	case CoarsenKind:
		return "coarsen"
	case ProlongKind:
		return "prolong"
	}
	return fmt.Sprintf("ScheduleKind(%d)", int(k))
}

// Schedule is an algorithm bound to one level of a concrete hierarchy.
type Schedule struct {
	Alg   *Algorithm
	Kind  ScheduleKind
	Level int

	h *hier.Hierarchy
}

// Fill executes the schedule's data motion at the given time.
//
// Ghost-fill schedules copy each registration's source index into its
// destination index on every patch of the level; coarsen schedules
// conservatively average fine data onto the next coarser level; prolong
// schedules inject coarse data onto this level. Patches missing either
// allocation are skipped, matching the per-step allocate/deallocate
// bracketing.
func (s *Schedule) Fill(time float64) {
	switch s.Kind {
	case GhostfillKind:
		s.fillSameLevel()
	case CoarsenKind:
		s.coarsenToCoarser()
	case ProlongKind:
		s.prolongFromCoarser()
	}
}

func (s *Schedule) fillSameLevel() {
	lvl := s.h.Level(s.Level)
	for _, reg := range s.Alg.Regs {
		if reg.Src == reg.Dst {
			continue
		}
		for _, p := range lvl.Patches {
			src, okSrc := p.Data(reg.Src)
			dst, okDst := p.Data(reg.Dst)
			if !okSrc || !okDst {
				continue
			}
			n := len(src.Vals)
			if len(dst.Vals) < n {
				n = len(dst.Vals)
			}
			copy(dst.Vals[:n], src.Vals[:n])
		}
	}
}

func (s *Schedule) coarsenToCoarser() {
	if s.Level == 0 {
		return
	}
	fine := s.h.Level(s.Level)
	coarse := s.h.Level(s.Level - 1)
	ratio := fine.Ratio / coarse.Ratio
	vol := float64(ratio * ratio * ratio)

	for _, reg := range s.Alg.Regs {
		for _, cp := range coarse.Patches {
			cd, ok := cp.Data(reg.Dst)
			if !ok {
				continue
			}
			for _, fp := range fine.Patches {
				fd, ok := fp.Data(reg.Src)
				if !ok {
					continue
				}
				overlap, ok := cp.Box.Intersect(fp.Box.Coarsen(ratio))
				if !ok {
					continue
				}
				forEachCell(overlap, func(cc geom.IntVec) {
					for d := 0; d < cd.Depth; d++ {
						sum := 0.0
						forEachCell(refineCell(cc, ratio), func(fc geom.IntVec) {
							if fp.Box.Contains(fc) {
								sum += fd.Vals[fp.Box.Offset(fc)*fd.Depth+d]
							}
						})
						cd.Vals[cp.Box.Offset(cc)*cd.Depth+d] = sum / vol
					}
				})
			}
		}
	}
}

func (s *Schedule) prolongFromCoarser() {
	if s.Level == 0 {
		return
	}
	fine := s.h.Level(s.Level)
	coarse := s.h.Level(s.Level - 1)
	ratio := fine.Ratio / coarse.Ratio

	for _, reg := range s.Alg.Regs {
		for _, fp := range fine.Patches {
			fd, ok := fp.Data(reg.Dst)
			if !ok {
				continue
			}
			for _, cp := range coarse.Patches {
				cd, ok := cp.Data(reg.Src)
				if !ok {
					continue
				}
				overlap, ok := fp.Box.Intersect(cp.Box.Refine(ratio))
				if !ok {
					continue
				}
				forEachCell(overlap, func(fc geom.IntVec) {
					var cc geom.IntVec
					for i := 0; i < 3; i++ {
						cc[i] = floorDivInt(fc[i], ratio)
					}
					for d := 0; d < fd.Depth; d++ {
						fd.Vals[fp.Box.Offset(fc)*fd.Depth+d] =
							cd.Vals[cp.Box.Offset(cc)*cd.Depth+d]
					}
				})
			}
		}
	}
}

// refineCell returns the box of fine cells covering one coarse cell.
func refineCell(cc geom.IntVec, ratio int) hier.Box {
	var lo, hi geom.IntVec
	for i := 0; i < 3; i++ {
		lo[i] = cc[i] * ratio
		hi[i] = (cc[i] + 1) * ratio
	}
	return hier.NewBox(lo, hi)
}

func forEachCell(b hier.Box, fn func(geom.IntVec)) {
	for z := b.Lo[2]; z < b.Hi[2]; z++ {
		for y := b.Lo[1]; y < b.Hi[1]; y++ {
			for x := b.Lo[0]; x < b.Hi[0]; x++ {
				fn(geom.IntVec{x, y, z})
			}
		}
	}
}

func floorDivInt(x, y int) int {
	q := x / y
	if x%y != 0 && (x < 0) != (y < 0) {
		q--
	}
	return q
}
