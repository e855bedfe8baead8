// Package restore writes captured snapshot state back into a live guest
// scope.
package restore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/willibrandon/ChronoJS/pkg/guest"
	"github.com/willibrandon/ChronoJS/pkg/metrics"
	"github.com/willibrandon/ChronoJS/pkg/recorder"
	"github.com/willibrandon/ChronoJS/pkg/value"
)

var (
	ErrUnbound  = errors.New("variable is not bound in scope")
	ErrMismatch = errors.New("restored value differs from snapshot")
)

// ReasonDanglingRef is the sentinel reason for a circular reference whose
// target is not an ancestor.
const ReasonDanglingRef = "dangling circular reference"

// Failure is one variable or nested value that could not be restored.
type Failure struct {
	Name string
	Err  error
}

func (f Failure) String() string {
	return fmt.Sprintf("%s: %v", f.Name, f.Err)
}

// Report describes the outcome of a restore.
type Report struct {
	Snapshot recorder.ID
	// Bound lists variables that were bound, in snapshot order.
	Bound []string
	// Sentinels counts unserializable values restored as sentinels.
	Sentinels int
	// Degraded lists nested values whose construction failed and were
	// replaced by a sentinel. Names are paths like "user.tags[2]".
	Degraded []Failure
	// Failures lists bind failures. The first one aborts the restore.
	Failures []Failure
	// Skipped lists variables never attempted.
	Skipped []string
	// Partial is set when the context was cancelled mid-restore.
	Partial bool
}

// Complete reports whether every variable was bound.
func (r Report) Complete() bool {
	return len(r.Failures) == 0 && !r.Partial && len(r.Skipped) == 0
}

// Outcome classifies the report for metrics.
func (r Report) Outcome() string {
	switch {
	case r.Partial:
		return metrics.OutcomePartial
	case len(r.Failures) > 0:
		return metrics.OutcomeFailed
	case r.Sentinels > 0 || len(r.Degraded) > 0:
		return metrics.OutcomeDegraded
	}
	return metrics.OutcomeOK
}

// Restorer rebuilds snapshot variables as guest values.
type Restorer struct {
	logger     *slog.Logger
	metrics    *metrics.Collector
	serializer *value.Serializer
}

// Option configures a Restorer
type Option func(*Restorer)

func WithLogger(l *slog.Logger) Option {
	return func(r *Restorer) {
		if l != nil {
			r.logger = l
		}
	}
}

func WithMetrics(c *metrics.Collector) Option {
	return func(r *Restorer) {
		r.metrics = c
	}
}

// WithSerializer sets the serializer VerifyConsistency uses. It should have
// the limits the snapshot was captured with.
func WithSerializer(s *value.Serializer) Option {
	return func(r *Restorer) {
		r.serializer = s
	}
}

func New(opts ...Option) *Restorer {
	r := &Restorer{
		logger:     slog.Default(),
		serializer: value.NewSerializer(value.DefaultConfig()),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Restore binds every variable of snap into scope. Variables are bound in
// snapshot order; a bind failure stops the restore and variables already
// bound stay bound.
func (r *Restorer) Restore(ctx context.Context, snap recorder.Snapshot, scope guest.Scope) Report {
	rep := Report{Snapshot: snap.ID}

	for i, v := range snap.Variables {
		if err := ctx.Err(); err != nil {
			rep.Partial = true
			rep.Skipped = append(rep.Skipped, snap.Names()[i:]...)
			r.logger.Warn("restore cancelled", "snapshot", snap.ID, "bound", len(rep.Bound), "error", err)
			break
		}

		b := &builder{scope: scope, rep: &rep}
		ref := b.restore(v.Name, v.Value)
		if err := scope.Bind(v.Name, ref); err != nil {
			rep.Failures = append(rep.Failures, Failure{Name: v.Name, Err: err})
			rep.Skipped = append(rep.Skipped, snap.Names()[i+1:]...)
			r.logger.Error("restore aborted", "snapshot", snap.ID, "variable", v.Name, "error", err)
			break
		}
		rep.Bound = append(rep.Bound, v.Name)
	}

	r.metrics.Restored(rep.Outcome())
	r.logger.Debug("restore finished", "snapshot", snap.ID, "bound", len(rep.Bound),
		"sentinels", rep.Sentinels, "degraded", len(rep.Degraded))
	return rep
}

// MismatchError names the first variable whose restored value differs.
type MismatchError struct {
	Name      string
	Want, Got value.Value
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("variable %s: want %s, got %s", e.Name, e.Want, e.Got)
}

func (e *MismatchError) Unwrap() error { return ErrMismatch }

// VerifyConsistency re-serializes every variable of snap from scope and
// compares it with the captured value. Captured unserializable values match
// anything.
func (r *Restorer) VerifyConsistency(snap recorder.Snapshot, scope guest.Scope) (bool, error) {
	for _, v := range snap.Variables {
		h, ok := scope.Lookup(v.Name)
		if !ok {
			return false, fmt.Errorf("%w: %s", ErrUnbound, v.Name)
		}
		got := r.serializer.Serialize(h)
		if !value.Matches(v.Value, got) {
			return false, &MismatchError{Name: v.Name, Want: v.Value, Got: got}
		}
	}
	return true, nil
}

// builder reconstructs one variable. Containers are allocated first so a
// CircularRef can point at a container that is still being populated.
type builder struct {
	scope guest.Factory
	rep   *Report

	placeholders map[*value.Value]guest.Ref
	refs         map[int]guest.Ref
}

func (b *builder) restore(name string, v value.Value) guest.Ref {
	b.placeholders = make(map[*value.Value]guest.Ref)
	b.refs = make(map[int]guest.Ref)

	v.Walk(func(x *value.Value) bool {
		if !x.Kind.IsContainer() {
			return true
		}
		ref, err := b.allocate(x)
		if err != nil {
			b.degrade(name, err)
			return false
		}
		b.placeholders[x] = ref
		if x.Ref != 0 {
			b.refs[x.Ref] = ref
		}
		return true
	})

	return b.build(name, &v)
}

func (b *builder) allocate(v *value.Value) (guest.Ref, error) {
	switch v.Kind {
	case value.KindObject:
		return b.scope.NewObject()
	case value.KindArray:
		return b.scope.NewArray(len(v.Elems))
	case value.KindMap:
		return b.scope.NewMap()
	case value.KindSet:
		return b.scope.NewSet()
	}
	return nil, fmt.Errorf("%s is not a container", v.Kind)
}

func (b *builder) degrade(path string, err error) guest.Ref {
	b.rep.Degraded = append(b.rep.Degraded, Failure{Name: path, Err: err})
	return b.scope.Sentinel(err.Error())
}

func (b *builder) leaf(path string, ref guest.Ref, err error) guest.Ref {
	if err != nil {
		return b.degrade(path, err)
	}
	return ref
}

func (b *builder) build(path string, v *value.Value) guest.Ref {
	f := b.scope
	switch v.Kind {
	case value.KindUndefined:
		return f.Undefined()
	case value.KindNull:
		return f.Null()
	case value.KindBoolean:
		return f.Bool(v.Bool)
	case value.KindNumber:
		return f.Number(v.Num)
	case value.KindString:
		return f.String(v.Str)
	case value.KindBigInt:
		ref, err := f.BigInt(v.Str)
		return b.leaf(path, ref, err)
	case value.KindSymbol:
		ref, err := f.Symbol(v.Str, v.Has)
		return b.leaf(path, ref, err)
	case value.KindDate:
		ref, err := f.Date(v.Num)
		return b.leaf(path, ref, err)
	case value.KindFunction:
		ref, err := f.Function(guest.FunctionInfo{Name: v.Name, Arity: v.Arity, Source: v.Source})
		return b.leaf(path, ref, err)
	case value.KindRegExp:
		ref, err := f.RegExp(v.Source, v.Flags)
		return b.leaf(path, ref, err)
	case value.KindError:
		ref, err := f.Error(v.Name, v.Str)
		return b.leaf(path, ref, err)
	case value.KindUnserializable:
		b.rep.Sentinels++
		return f.Sentinel(v.Str)
	case value.KindCircularRef:
		if ref, ok := b.refs[v.Ref]; ok {
			return ref
		}
		return b.degrade(path, errors.New(ReasonDanglingRef))
	case value.KindObject, value.KindArray, value.KindMap, value.KindSet:
		ref, ok := b.placeholders[v]
		if !ok {
			// Allocation failed in the first pass and was already reported.
			return f.Sentinel("container allocation failed")
		}
		b.populate(path, v, ref)
		return ref
	}
	return b.degrade(path, fmt.Errorf("unknown value kind %s", v.Kind))
}

func (b *builder) populate(path string, v *value.Value, ref guest.Ref) {
	f := b.scope
	switch v.Kind {
	case value.KindObject:
		for i := range v.Fields {
			field := &v.Fields[i]
			p := path + "." + field.Key
			if err := f.SetField(ref, field.Key, b.build(p, &field.Value)); err != nil {
				b.degrade(p, err)
			}
		}
	case value.KindArray:
		for i := range v.Elems {
			p := path + "[" + strconv.Itoa(i) + "]"
			if err := f.SetIndex(ref, i, b.build(p, &v.Elems[i])); err != nil {
				b.degrade(p, err)
			}
		}
	case value.KindMap:
		for i := range v.Entries {
			e := &v.Entries[i]
			p := path + ".<entry " + strconv.Itoa(i) + ">"
			if err := f.MapSet(ref, b.build(p+".key", &e.Key), b.build(p+".value", &e.Value)); err != nil {
				b.degrade(p, err)
			}
		}
	case value.KindSet:
		for i := range v.Elems {
			p := path + ".<member " + strconv.Itoa(i) + ">"
			if err := f.SetAdd(ref, b.build(p, &v.Elems[i])); err != nil {
				b.degrade(p, err)
			}
		}
	}
}
