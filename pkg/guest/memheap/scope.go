package memheap

import (
	"fmt"
	"math/big"

	"github.com/willibrandon/ChronoJS/pkg/guest"
)

// Scope is an ordered set of name bindings. It implements guest.Scope.
type Scope struct {
	names []string
	vars  map[string]any

	// BindErrors makes Bind fail for the named variables.
	BindErrors map[string]error
}

var _ guest.Scope = (*Scope)(nil)

func NewScope() *Scope {
	return &Scope{vars: make(map[string]any)}
}

func (s *Scope) Bind(name string, v guest.Ref) error {
	if err, ok := s.BindErrors[name]; ok {
		return err
	}
	if _, ok := s.vars[name]; !ok {
		s.names = append(s.names, name)
	}
	s.vars[name] = v
	return nil
}

func (s *Scope) Lookup(name string) (guest.Handle, bool) {
	v, ok := s.vars[name]
	if !ok {
		return nil, false
	}
	return Handle(v), true
}

// Value returns the raw Go value bound to name.
func (s *Scope) Value(name string) (any, bool) {
	v, ok := s.vars[name]
	return v, ok
}

// Names returns bound names in binding order.
func (s *Scope) Names() []string {
	return append([]string(nil), s.names...)
}

func (s *Scope) Undefined() guest.Ref        { return Undefined{} }
func (s *Scope) Null() guest.Ref             { return Null{} }
func (s *Scope) Bool(b bool) guest.Ref       { return b }
func (s *Scope) Number(f float64) guest.Ref  { return f }
func (s *Scope) String(str string) guest.Ref { return str }

func (s *Scope) BigInt(digits string) (guest.Ref, error) {
	n, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("malformed bigint %q", digits)
	}
	return BigInt{V: n}, nil
}

func (s *Scope) Symbol(description string, hasDescription bool) (guest.Ref, error) {
	return &Symbol{Description: description, HasDescription: hasDescription}, nil
}

func (s *Scope) Date(millis float64) (guest.Ref, error) { return Date{Millis: millis}, nil }

func (s *Scope) Function(info guest.FunctionInfo) (guest.Ref, error) {
	return &Function{Name: info.Name, Arity: info.Arity, Source: info.Source}, nil
}

func (s *Scope) RegExp(source, flags string) (guest.Ref, error) {
	return RegExp{Source: source, Flags: flags}, nil
}

func (s *Scope) Error(name, message string) (guest.Ref, error) {
	return &Error{Name: name, Message: message}, nil
}

func (s *Scope) Sentinel(reason string) guest.Ref { return Opaque{Reason: reason} }

func (s *Scope) NewObject() (guest.Ref, error) { return NewObject(), nil }

func (s *Scope) NewArray(length int) (guest.Ref, error) {
	return &Array{Elems: make([]any, length)}, nil
}

func (s *Scope) NewMap() (guest.Ref, error) { return NewMap(), nil }
func (s *Scope) NewSet() (guest.Ref, error) { return NewSet(), nil }

func (s *Scope) SetField(obj guest.Ref, key string, v guest.Ref) error {
	o, ok := obj.(*Object)
	if !ok {
		return fmt.Errorf("set field %q on %T", key, obj)
	}
	o.Set(key, v)
	return nil
}

func (s *Scope) SetIndex(arr guest.Ref, i int, v guest.Ref) error {
	a, ok := arr.(*Array)
	if !ok {
		return fmt.Errorf("set index %d on %T", i, arr)
	}
	for len(a.Elems) <= i {
		a.Elems = append(a.Elems, Undefined{})
	}
	a.Elems[i] = v
	return nil
}

func (s *Scope) MapSet(m guest.Ref, key, v guest.Ref) error {
	mm, ok := m.(*Map)
	if !ok {
		return fmt.Errorf("map set on %T", m)
	}
	mm.Set(key, v)
	return nil
}

func (s *Scope) SetAdd(set guest.Ref, v guest.Ref) error {
	ss, ok := set.(*Set)
	if !ok {
		return fmt.Errorf("set add on %T", set)
	}
	ss.Add(v)
	return nil
}
