package recorder

import (
	"fmt"
	"time"

	"github.com/willibrandon/ChronoJS/pkg/guest"
	"github.com/willibrandon/ChronoJS/pkg/value"
)

// Names of the sole variable in a function-exit snapshot.
const (
	ReturnVariable = "return"
	ErrorVariable  = "error"
)

// CaptureError reports a capture call that could not produce a snapshot.
// Guest execution is expected to continue.
type CaptureError struct {
	Op       string
	Function string
	Reason   string
}

func (e *CaptureError) Error() string {
	if e.Function == "" {
		return fmt.Sprintf("capture %s: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("capture %s in %s: %s", e.Op, e.Function, e.Reason)
}

// IDSource hands out snapshot ids. The owning timeline implements it so ids
// stay scoped to one session.
type IDSource interface {
	NextID() ID
}

// Input is one variable to capture: either a live guest handle or a value
// that was already serialized.
type Input struct {
	Name   string
	Handle guest.Handle
	Value  *value.Value
}

// Live captures a guest handle under name.
func Live(name string, h guest.Handle) Input {
	return Input{Name: name, Handle: h}
}

// Captured passes an already-serialized value through.
func Captured(name string, v value.Value) Input {
	return Input{Name: name, Value: &v}
}

// Builder assembles snapshots from capture events.
type Builder struct {
	ids        IDSource
	serializer *value.Serializer
	redactor   *Redactor
}

// BuilderOption configures a Builder
type BuilderOption func(*Builder)

// WithRedactor scrubs sensitive variables before they are stored.
func WithRedactor(r *Redactor) BuilderOption {
	return func(b *Builder) {
		b.redactor = r
	}
}

// NewBuilder creates a builder drawing ids from ids.
func NewBuilder(ids IDSource, serializer *value.Serializer, opts ...BuilderOption) *Builder {
	b := &Builder{ids: ids, serializer: serializer}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Serializer returns the serializer used for live inputs.
func (b *Builder) Serializer() *value.Serializer {
	return b.serializer
}

// Build creates a snapshot. Every input is serialized in its own pass so one
// unserializable entry leaves the rest of the scope intact. An id is only
// consumed when the arguments are valid.
func (b *Builder) Build(kind Kind, function string, inputs []Input, depth int, ts time.Time) (Snapshot, error) {
	if err := validate(kind, function, inputs, depth); err != nil {
		return Snapshot{}, err
	}

	vars := make([]Variable, len(inputs))
	for i, in := range inputs {
		vars[i] = Variable{Name: in.Name, Value: b.capture(in)}
	}

	return Snapshot{
		ID:        b.ids.NextID(),
		Timestamp: ts,
		Kind:      kind,
		Function:  function,
		Depth:     depth,
		Variables: vars,
	}, nil
}

// BuildExit creates a function-exit snapshot holding the return value, or
// the thrown error when threw is set.
func (b *Builder) BuildExit(function string, result Input, threw bool, depth int, ts time.Time, duration time.Duration) (Snapshot, error) {
	result.Name = ReturnVariable
	if threw {
		result.Name = ErrorVariable
	}
	if duration < 0 {
		return Snapshot{}, &CaptureError{Op: FunctionExit.String(), Function: function, Reason: fmt.Sprintf("negative duration %s", duration)}
	}
	s, err := b.Build(FunctionExit, function, []Input{result}, depth, ts)
	if err != nil {
		return Snapshot{}, err
	}
	s.Duration = duration
	return s, nil
}

func (b *Builder) capture(in Input) value.Value {
	var v value.Value
	switch {
	case in.Value != nil:
		v = *in.Value
	case in.Handle != nil:
		v = b.serializer.Serialize(in.Handle)
	default:
		v = value.Undefined()
	}
	if b.redactor != nil {
		v = b.redactor.Redact(in.Name, v)
	}
	return v
}

func validate(kind Kind, function string, inputs []Input, depth int) error {
	op := kind.String()
	if !kind.Valid() {
		return &CaptureError{Op: "snapshot", Function: function, Reason: fmt.Sprintf("unknown kind %d", uint8(kind))}
	}
	if function == "" {
		return &CaptureError{Op: op, Reason: "function name is empty"}
	}
	if depth < 0 {
		return &CaptureError{Op: op, Function: function, Reason: fmt.Sprintf("negative call depth %d", depth)}
	}

	seen := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		if in.Name == "" {
			return &CaptureError{Op: op, Function: function, Reason: "variable name is empty"}
		}
		if seen[in.Name] {
			return &CaptureError{Op: op, Function: function, Reason: fmt.Sprintf("variable %q captured twice", in.Name)}
		}
		seen[in.Name] = true
	}

	if kind == FunctionExit {
		if len(inputs) != 1 || (inputs[0].Name != ReturnVariable && inputs[0].Name != ErrorVariable) {
			return &CaptureError{Op: op, Function: function, Reason: `exit snapshot must hold exactly one of "return" or "error"`}
		}
	}
	return nil
}
