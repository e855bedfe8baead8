package gojs

import (
	"fmt"
	"strconv"

	"github.com/dop251/goja"

	"github.com/willibrandon/ChronoJS/pkg/guest"
)

// SentinelKey is the single property of the object an unserializable value
// restores as.
const SentinelKey = "[unserializable]"

// Scope writes restored values as properties of a target object.
type Scope struct {
	rt     *Runtime
	target *goja.Object
}

var _ guest.Scope = (*Scope)(nil)

// Scope returns a scope over target, or over the global object when target
// is nil.
func (r *Runtime) Scope(target *goja.Object) *Scope {
	if target == nil {
		target = r.vm.GlobalObject()
	}
	return &Scope{rt: r, target: target}
}

func (s *Scope) Bind(name string, v guest.Ref) error {
	return s.target.Set(name, v)
}

func (s *Scope) Lookup(name string) (guest.Handle, bool) {
	var v goja.Value
	if err := try(func() error {
		v = s.target.Get(name)
		return nil
	}); err != nil || v == nil {
		return nil, false
	}
	return s.rt.Handle(v), true
}

func (s *Scope) make(fn goja.Callable, args ...any) (guest.Ref, error) {
	vals := make([]goja.Value, len(args))
	for i, a := range args {
		vals[i] = s.rt.vm.ToValue(a)
	}
	return s.rt.call(fn, vals...)
}

func (s *Scope) Undefined() guest.Ref        { return goja.Undefined() }
func (s *Scope) Null() guest.Ref             { return goja.Null() }
func (s *Scope) Bool(b bool) guest.Ref       { return s.rt.vm.ToValue(b) }
func (s *Scope) Number(f float64) guest.Ref  { return s.rt.vm.ToValue(f) }
func (s *Scope) String(str string) guest.Ref { return s.rt.vm.ToValue(str) }

func (s *Scope) BigInt(digits string) (guest.Ref, error) {
	return s.make(s.rt.h.makeBigInt, digits)
}

func (s *Scope) Symbol(description string, hasDescription bool) (guest.Ref, error) {
	return s.make(s.rt.h.makeSymbol, hasDescription, description)
}

func (s *Scope) Date(millis float64) (guest.Ref, error) {
	return s.make(s.rt.h.makeDate, millis)
}

// Function restores a function as a stub that keeps its name, arity and
// source text but throws when called.
func (s *Scope) Function(info guest.FunctionInfo) (guest.Ref, error) {
	return s.make(s.rt.h.makeFunction, info.Name, info.Arity, info.Source)
}

func (s *Scope) RegExp(source, flags string) (guest.Ref, error) {
	return s.make(s.rt.h.makeRegExp, source, flags)
}

func (s *Scope) Error(name, message string) (guest.Ref, error) {
	return s.make(s.rt.h.makeError, name, message)
}

func (s *Scope) Sentinel(reason string) guest.Ref {
	obj := s.rt.vm.NewObject()
	obj.Set(SentinelKey, reason)
	return obj
}

func (s *Scope) NewObject() (guest.Ref, error) { return s.rt.vm.NewObject(), nil }

func (s *Scope) NewArray(length int) (guest.Ref, error) {
	arr := s.rt.vm.NewArray()
	if err := arr.Set("length", length); err != nil {
		return nil, err
	}
	return arr, nil
}

func (s *Scope) NewMap() (guest.Ref, error) { return s.make(s.rt.h.makeMap) }
func (s *Scope) NewSet() (guest.Ref, error) { return s.make(s.rt.h.makeSet) }

func (s *Scope) asObject(ref guest.Ref) (*goja.Object, error) {
	obj, ok := ref.(*goja.Object)
	if !ok {
		return nil, fmt.Errorf("%T is not a guest object", ref)
	}
	return obj, nil
}

func (s *Scope) SetField(obj guest.Ref, key string, v guest.Ref) error {
	o, err := s.asObject(obj)
	if err != nil {
		return err
	}
	return o.Set(key, v)
}

func (s *Scope) SetIndex(arr guest.Ref, i int, v guest.Ref) error {
	o, err := s.asObject(arr)
	if err != nil {
		return err
	}
	return o.Set(strconv.Itoa(i), v)
}

func (s *Scope) MapSet(m guest.Ref, key, v guest.Ref) error {
	_, err := s.make(s.rt.h.mapSet, m, key, v)
	return err
}

func (s *Scope) SetAdd(set guest.Ref, v guest.Ref) error {
	_, err := s.make(s.rt.h.setAdd, set, v)
	return err
}
