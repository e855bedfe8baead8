package recorder

import (
	"fmt"
	"time"

	"github.com/willibrandon/ChronoJS/pkg/value"
)

// ID identifies a snapshot within one debugging session. Ids start at 1 and
// are never reused, even after eviction.
type ID uint64

// NoID is returned when a capture was filtered out and produced no snapshot.
const NoID ID = 0

// Variable is one captured binding.
type Variable struct {
	Name  string      `json:"name"`
	Value value.Value `json:"value"`
}

// Snapshot is one immutable record of guest state. Callers must not modify
// the Variables slice or the values inside it.
type Snapshot struct {
	ID        ID            `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Kind      Kind          `json:"kind"`
	Function  string        `json:"function"`
	Depth     int           `json:"depth"`
	Variables []Variable    `json:"variables"`
	Duration  time.Duration `json:"duration,omitempty"`
}

// Lookup returns the captured value for name.
func (s Snapshot) Lookup(name string) (value.Value, bool) {
	for _, v := range s.Variables {
		if v.Name == name {
			return v.Value, true
		}
	}
	return value.Value{}, false
}

// Names returns the captured variable names in capture order.
func (s Snapshot) Names() []string {
	names := make([]string, len(s.Variables))
	for i, v := range s.Variables {
		names[i] = v.Name
	}
	return names
}

// Summary is the compact listing form of a snapshot.
type Summary struct {
	ID            ID     `json:"id"`
	Function      string `json:"function"`
	Kind          Kind   `json:"kind"`
	VariableCount int    `json:"variable_count"`
}

func (s Snapshot) Summary() Summary {
	return Summary{ID: s.ID, Function: s.Function, Kind: s.Kind, VariableCount: len(s.Variables)}
}

// String returns a human-readable representation of the snapshot
func (s Snapshot) String() string {
	out := fmt.Sprintf("Snapshot{ID: %d, Kind: %s, Function: %s, Depth: %d, Vars: %d, Time: %s",
		s.ID, s.Kind, s.Function, s.Depth, len(s.Variables), s.Timestamp.Format(time.RFC3339Nano))
	if s.Kind == FunctionExit {
		out += fmt.Sprintf(", Duration: %s", s.Duration)
	}
	return out + "}"
}
