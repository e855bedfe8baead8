// Package memheap is a small guest object model in plain Go. It implements
// guest.Handle and guest.Scope so the capture and restore engine can be
// driven without an embedded VM.
//
// Primitives are represented by Go values: nil and Undefined{} are
// undefined, Null{} is null, bool, float64 (ints are widened), string.
// Reference kinds are pointers so they carry heap identity.
package memheap

import (
	"fmt"
	"math/big"
)

type (
	Undefined struct{}
	Null      struct{}
)

// BigInt is an arbitrary-precision integer.
type BigInt struct{ V *big.Int }

// ParseBigInt parses decimal digits. It panics on malformed input and is
// meant for fixtures.
func ParseBigInt(digits string) BigInt {
	n, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		panic(fmt.Sprintf("memheap: malformed bigint %q", digits))
	}
	return BigInt{V: n}
}

// Symbol is a unique symbol; two Symbols with the same description are still
// different values.
type Symbol struct {
	Description    string
	HasDescription bool
}

// Object keeps its properties in insertion order.
type Object struct {
	keys  []string
	props map[string]any
}

// Getter is a property whose read runs code and can fail.
type Getter func() (any, error)

// NewObject builds an object from alternating key, value arguments.
func NewObject(kv ...any) *Object {
	o := &Object{props: make(map[string]any)}
	for i := 0; i+1 < len(kv); i += 2 {
		o.Set(kv[i].(string), kv[i+1])
	}
	return o
}

// Set adds or replaces a property, keeping the original position of an
// existing key.
func (o *Object) Set(key string, v any) {
	if o.props == nil {
		o.props = make(map[string]any)
	}
	if _, ok := o.props[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.props[key] = v
}

// Get returns a property value without running getters.
func (o *Object) Get(key string) (any, bool) {
	v, ok := o.props[key]
	return v, ok
}

// Keys returns the property names in insertion order.
func (o *Object) Keys() []string {
	return append([]string(nil), o.keys...)
}

type Array struct{ Elems []any }

func NewArray(elems ...any) *Array {
	return &Array{Elems: elems}
}

// Map keeps entries in insertion order; keys compare with ==.
type Map struct {
	keys []any
	vals []any
}

func NewMap() *Map { return &Map{} }

func (m *Map) Set(k, v any) {
	for i, existing := range m.keys {
		if existing == k {
			m.vals[i] = v
			return
		}
	}
	m.keys = append(m.keys, k)
	m.vals = append(m.vals, v)
}

func (m *Map) Len() int { return len(m.keys) }

// Entry returns the i-th key and value.
func (m *Map) Entry(i int) (any, any) { return m.keys[i], m.vals[i] }

type Set struct{ members []any }

func NewSet(members ...any) *Set {
	s := &Set{}
	for _, m := range members {
		s.Add(m)
	}
	return s
}

func (s *Set) Add(v any) {
	for _, m := range s.members {
		if m == v {
			return
		}
	}
	s.members = append(s.members, v)
}

func (s *Set) Members() []any { return append([]any(nil), s.members...) }

type Function struct {
	Name   string
	Arity  int
	Source string
}

type Date struct{ Millis float64 }

type RegExp struct{ Source, Flags string }

type Error struct{ Name, Message string }

// Opaque stands for a host-only resource the debugger cannot look into.
type Opaque struct{ Reason string }
