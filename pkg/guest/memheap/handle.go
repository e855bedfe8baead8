package memheap

import (
	"fmt"
	"math"
	"strconv"

	"github.com/willibrandon/ChronoJS/pkg/guest"
)

// Handle wraps a memheap value for reading.
func Handle(v any) guest.Handle {
	return handle{v: normalize(v)}
}

func normalize(v any) any {
	switch x := v.(type) {
	case nil:
		return Undefined{}
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case float32:
		return float64(x)
	}
	return v
}

type handle struct{ v any }

func (h handle) Kind() guest.Kind {
	switch x := h.v.(type) {
	case Undefined:
		return guest.KindUndefined
	case Null:
		return guest.KindNull
	case bool:
		return guest.KindBoolean
	case float64:
		return guest.KindNumber
	case string:
		return guest.KindString
	case BigInt:
		if x.V == nil {
			return guest.KindOpaque
		}
		return guest.KindBigInt
	case *Symbol:
		return guest.KindSymbol
	case *Object:
		return guest.KindObject
	case *Array:
		return guest.KindArray
	case *Function:
		return guest.KindFunction
	case Date:
		return guest.KindDate
	case RegExp:
		return guest.KindRegExp
	case *Map:
		return guest.KindMap
	case *Set:
		return guest.KindSet
	case *Error:
		return guest.KindError
	}
	return guest.KindOpaque
}

func (h handle) Identity() any {
	switch h.v.(type) {
	case *Object, *Array, *Map, *Set, *Function, *Symbol, *Error:
		return h.v
	}
	return nil
}

func (h handle) Bool() bool {
	b, _ := h.v.(bool)
	return b
}

func (h handle) Float() float64 {
	if f, ok := h.v.(float64); ok {
		return f
	}
	return math.NaN()
}

func (h handle) Text() string {
	switch x := h.v.(type) {
	case string:
		return x
	case BigInt:
		if x.V != nil {
			return x.V.String()
		}
	}
	return ""
}

func (h handle) SymbolDescription() (string, bool) {
	if s, ok := h.v.(*Symbol); ok {
		return s.Description, s.HasDescription
	}
	return "", false
}

func (h handle) Keys() ([]string, error) {
	o, ok := h.v.(*Object)
	if !ok {
		return nil, fmt.Errorf("%T has no properties", h.v)
	}
	return o.Keys(), nil
}

func (h handle) Get(key string) (guest.Handle, error) {
	o, ok := h.v.(*Object)
	if !ok {
		return nil, fmt.Errorf("%T has no properties", h.v)
	}
	v, ok := o.Get(key)
	if !ok {
		return Handle(Undefined{}), nil
	}
	if g, ok := v.(Getter); ok {
		got, err := g()
		if err != nil {
			return nil, err
		}
		v = got
	}
	return Handle(v), nil
}

func (h handle) Len() int {
	if a, ok := h.v.(*Array); ok {
		return len(a.Elems)
	}
	return 0
}

func (h handle) Index(i int) (guest.Handle, error) {
	a, ok := h.v.(*Array)
	if !ok {
		return nil, fmt.Errorf("%T is not an array", h.v)
	}
	if i < 0 || i >= len(a.Elems) {
		return nil, fmt.Errorf("index %s out of range", strconv.Itoa(i))
	}
	return Handle(a.Elems[i]), nil
}

func (h handle) MapEntries() ([][2]guest.Handle, error) {
	m, ok := h.v.(*Map)
	if !ok {
		return nil, fmt.Errorf("%T is not a map", h.v)
	}
	out := make([][2]guest.Handle, m.Len())
	for i := range out {
		k, v := m.Entry(i)
		out[i] = [2]guest.Handle{Handle(k), Handle(v)}
	}
	return out, nil
}

func (h handle) SetMembers() ([]guest.Handle, error) {
	s, ok := h.v.(*Set)
	if !ok {
		return nil, fmt.Errorf("%T is not a set", h.v)
	}
	out := make([]guest.Handle, 0, len(s.members))
	for _, m := range s.members {
		out = append(out, Handle(m))
	}
	return out, nil
}

func (h handle) Function() (guest.FunctionInfo, error) {
	f, ok := h.v.(*Function)
	if !ok {
		return guest.FunctionInfo{}, fmt.Errorf("%T is not a function", h.v)
	}
	return guest.FunctionInfo{Name: f.Name, Arity: f.Arity, Source: f.Source}, nil
}

func (h handle) DateMillis() float64 {
	if d, ok := h.v.(Date); ok {
		return d.Millis
	}
	return math.NaN()
}

func (h handle) RegExp() (string, string) {
	r, _ := h.v.(RegExp)
	return r.Source, r.Flags
}

func (h handle) ErrorInfo() (string, string) {
	if e, ok := h.v.(*Error); ok {
		return e.Name, e.Message
	}
	return "", ""
}

func (h handle) Describe() string {
	if o, ok := h.v.(Opaque); ok {
		return o.Reason
	}
	return fmt.Sprintf("host value of type %T", h.v)
}
