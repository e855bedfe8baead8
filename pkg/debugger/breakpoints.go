package debugger

import (
	"fmt"
	"path"
	"strings"

	"github.com/willibrandon/ChronoJS/pkg/recorder"
	"github.com/willibrandon/ChronoJS/pkg/timeline"
)

// BreakpointType defines the type of breakpoint
type BreakpointType int

const (
	// FunctionBreakpoint stops at any snapshot of a function
	FunctionBreakpoint BreakpointType = iota
	// KindBreakpoint stops at a specific snapshot kind
	KindBreakpoint
	// VariableBreakpoint stops where a variable was captured
	VariableBreakpoint
)

func (t BreakpointType) String() string {
	switch t {
	case FunctionBreakpoint:
		return "func"
	case KindBreakpoint:
		return "kind"
	case VariableBreakpoint:
		return "var"
	}
	return fmt.Sprintf("BreakpointType(%d)", int(t))
}

// Breakpoint represents a condition to stop at while navigating
type Breakpoint struct {
	ID       int
	Type     BreakpointType
	Function string        // For FunctionBreakpoint, a name or glob
	Kind     recorder.Kind // For KindBreakpoint
	Variable string        // For VariableBreakpoint
	Enabled  bool
}

// Location returns the breakpoint in the form AddBreakpoint accepts.
func (bp *Breakpoint) Location() string {
	switch bp.Type {
	case FunctionBreakpoint:
		return "func:" + bp.Function
	case KindBreakpoint:
		return "kind:" + bp.Kind.String()
	}
	return "var:" + bp.Variable
}

// Matches reports whether s satisfies the breakpoint. Disabled breakpoints
// never match.
func (bp *Breakpoint) Matches(s recorder.Snapshot) bool {
	if !bp.Enabled {
		return false
	}
	switch bp.Type {
	case FunctionBreakpoint:
		if s.Function == bp.Function {
			return true
		}
		ok, _ := path.Match(bp.Function, s.Function)
		return ok
	case KindBreakpoint:
		return s.Kind == bp.Kind
	case VariableBreakpoint:
		_, ok := s.Lookup(bp.Variable)
		return ok
	}
	return false
}

// BreakpointManager manages breakpoints for the debugger
type BreakpointManager struct {
	breakpoints []*Breakpoint
	nextID      int
}

// NewBreakpointManager creates a new breakpoint manager
func NewBreakpointManager() *BreakpointManager {
	return &BreakpointManager{
		breakpoints: make([]*Breakpoint, 0),
		nextID:      1,
	}
}

// AddBreakpoint parses location and adds a breakpoint. Accepted forms are
// "func:<name or glob>", "kind:<kind>", "var:<name>" and a bare snapshot
// kind such as "function-exit" or "exit".
func (bm *BreakpointManager) AddBreakpoint(location string) (*Breakpoint, error) {
	bp := &Breakpoint{Enabled: true}

	prefix, rest, found := strings.Cut(location, ":")
	if found && rest == "" {
		return nil, fmt.Errorf("invalid breakpoint location: %s", location)
	}
	switch {
	case found && prefix == "func":
		bp.Type = FunctionBreakpoint
		bp.Function = rest
		if _, err := path.Match(rest, ""); err != nil {
			return nil, fmt.Errorf("invalid function pattern %q: %v", rest, err)
		}
	case found && prefix == "var":
		bp.Type = VariableBreakpoint
		bp.Variable = rest
	case found && prefix == "kind":
		k, err := recorder.ParseKind(rest)
		if err != nil {
			return nil, err
		}
		bp.Type = KindBreakpoint
		bp.Kind = k
	case found:
		return nil, fmt.Errorf("invalid breakpoint location: %s", location)
	default:
		k, err := recorder.ParseKind(location)
		if err != nil {
			return nil, fmt.Errorf("invalid breakpoint location: %s", location)
		}
		bp.Type = KindBreakpoint
		bp.Kind = k
	}

	bp.ID = bm.nextID
	bm.nextID++
	bm.breakpoints = append(bm.breakpoints, bp)
	return bp, nil
}

// GetBreakpoints returns all breakpoints
func (bm *BreakpointManager) GetBreakpoints() []*Breakpoint {
	return bm.breakpoints
}

func (bm *BreakpointManager) find(id int) (*Breakpoint, error) {
	for _, bp := range bm.breakpoints {
		if bp.ID == id {
			return bp, nil
		}
	}
	return nil, fmt.Errorf("breakpoint %d not found", id)
}

// RemoveBreakpoint removes a breakpoint by ID
func (bm *BreakpointManager) RemoveBreakpoint(id int) error {
	for i, bp := range bm.breakpoints {
		if bp.ID == id {
			bm.breakpoints = append(bm.breakpoints[:i], bm.breakpoints[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("breakpoint %d not found", id)
}

// EnableBreakpoint enables a breakpoint by ID
func (bm *BreakpointManager) EnableBreakpoint(id int) error {
	bp, err := bm.find(id)
	if err != nil {
		return err
	}
	bp.Enabled = true
	return nil
}

// DisableBreakpoint disables a breakpoint by ID
func (bm *BreakpointManager) DisableBreakpoint(id int) error {
	bp, err := bm.find(id)
	if err != nil {
		return err
	}
	bp.Enabled = false
	return nil
}

// CheckBreakpoint returns the first enabled breakpoint matching s.
func (bm *BreakpointManager) CheckBreakpoint(s recorder.Snapshot) (*Breakpoint, bool) {
	for _, bp := range bm.breakpoints {
		if bp.Matches(s) {
			return bp, true
		}
	}
	return nil, false
}

// Predicate adapts the breakpoint set for timeline searches.
func (bm *BreakpointManager) Predicate() timeline.Predicate {
	return func(s recorder.Snapshot) bool {
		_, hit := bm.CheckBreakpoint(s)
		return hit
	}
}
