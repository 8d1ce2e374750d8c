package integrator

import (
	"fmt"
	"strings"
)

// TimeSteppingType selects the scheme the coupling step uses to advance
// the structure alongside the fluid.
type TimeSteppingType int

const (
	MidpointRule TimeSteppingType = iota
	BackwardEuler
	ForwardEuler
	TrapezoidalRule
)

func (t TimeSteppingType) String() string {
	switch t {
	case MidpointRule:
		return "MIDPOINT_RULE"
	case BackwardEuler:
		return "BACKWARD_EULER"
	case ForwardEuler:
		return "FORWARD_EULER"
	case TrapezoidalRule:
		return "TRAPEZOIDAL_RULE"
	}
	return fmt.Sprintf("TimeSteppingType(%d)", int(t))
}

// ParseTimeSteppingType maps a configuration token to its scheme. The
// empty token selects the default, MIDPOINT_RULE.
func ParseTimeSteppingType(tok string) (TimeSteppingType, error) {
	switch strings.ToUpper(strings.TrimSpace(tok)) {
	case "", "MIDPOINT_RULE":
		return MidpointRule, nil
	case "BACKWARD_EULER":
		return BackwardEuler, nil
	case "FORWARD_EULER":
		return ForwardEuler, nil
	case "TRAPEZOIDAL_RULE":
		return TrapezoidalRule, nil
	}
	return MidpointRule, fmt.Errorf(
		"unrecognized time stepping type '%s'; must be one of "+
			"[ MIDPOINT_RULE | BACKWARD_EULER | FORWARD_EULER | TRAPEZOIDAL_RULE ]",
		tok,
	)
}

// NeedsCurrentForce reports whether the scheme evaluates the Lagrangian
// force at the start-of-step configuration, which requires a time-lagged
// copy of the force field.
func (t TimeSteppingType) NeedsCurrentForce() bool {
	return t == ForwardEuler || t == TrapezoidalRule
}
