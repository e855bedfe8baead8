package gojs

import (
	"fmt"
	"math"
	"strconv"

	"github.com/dop251/goja"

	"github.com/willibrandon/ChronoJS/pkg/guest"
	"github.com/willibrandon/ChronoJS/pkg/value"
)

// Handle is read access to a goja value.
type Handle struct {
	rt    *Runtime
	v     goja.Value
	kind  guest.Kind
	known bool
}

var _ guest.Handle = (*Handle)(nil)

// Handle wraps v. A nil v reads as undefined.
func (r *Runtime) Handle(v goja.Value) *Handle {
	return &Handle{rt: r, v: v}
}

// Raw returns the wrapped goja value.
func (h *Handle) Raw() goja.Value {
	return h.v
}

func (h *Handle) Kind() guest.Kind {
	if !h.known {
		h.kind = h.classify()
		h.known = true
	}
	return h.kind
}

func (h *Handle) classify() guest.Kind {
	if h.v == nil || goja.IsUndefined(h.v) {
		return guest.KindUndefined
	}
	if goja.IsNull(h.v) {
		return guest.KindNull
	}
	t, err := h.rt.call(h.rt.h.typeOf, h.v)
	if err != nil {
		return guest.KindOpaque
	}
	switch t.String() {
	case "boolean":
		return guest.KindBoolean
	case "number":
		return guest.KindNumber
	case "string":
		return guest.KindString
	case "bigint":
		return guest.KindBigInt
	case "symbol":
		return guest.KindSymbol
	case "function":
		return guest.KindFunction
	case "object":
		tag, err := h.rt.call(h.rt.h.tag, h.v)
		if err != nil {
			return guest.KindOpaque
		}
		switch tag.String() {
		case "[object Object]":
			return guest.KindObject
		case "[object Array]", "[object Arguments]":
			return guest.KindArray
		case "[object Date]":
			return guest.KindDate
		case "[object RegExp]":
			return guest.KindRegExp
		case "[object Map]":
			return guest.KindMap
		case "[object Set]":
			return guest.KindSet
		case "[object Error]":
			return guest.KindError
		}
	}
	return guest.KindOpaque
}

func (h *Handle) Identity() any {
	if obj, ok := h.v.(*goja.Object); ok {
		return obj
	}
	return nil
}

func (h *Handle) Bool() bool {
	return h.v != nil && h.v.ToBoolean()
}

func (h *Handle) Float() float64 {
	if h.v == nil {
		return 0
	}
	return h.v.ToFloat()
}

func (h *Handle) Text() string {
	switch h.Kind() {
	case guest.KindString:
		return h.v.String()
	case guest.KindBigInt:
		s, err := h.rt.call(h.rt.h.text, h.v)
		if err != nil {
			return ""
		}
		return s.String()
	}
	return ""
}

func (h *Handle) SymbolDescription() (string, bool) {
	info, err := h.rt.call(h.rt.h.symbolInfo, h.v)
	if err != nil {
		return "", false
	}
	pair := info.ToObject(h.rt.vm)
	return pair.Get("1").String(), pair.Get("0").ToBoolean()
}

func (h *Handle) object() (*goja.Object, error) {
	obj, ok := h.v.(*goja.Object)
	if !ok {
		return nil, fmt.Errorf("%s is not an object", h.Kind())
	}
	return obj, nil
}

func (h *Handle) Keys() (keys []string, err error) {
	obj, err := h.object()
	if err != nil {
		return nil, err
	}
	err = try(func() error {
		keys = obj.Keys()
		return nil
	})
	return keys, err
}

func (h *Handle) Get(key string) (guest.Handle, error) {
	return h.prop(h.rt.vm.ToValue(key))
}

func (h *Handle) prop(key goja.Value) (*Handle, error) {
	obj, err := h.object()
	if err != nil {
		return nil, err
	}
	v, err := h.rt.call(h.rt.h.get, obj, key)
	if err != nil {
		return nil, err
	}
	return h.rt.Handle(v), nil
}

func (h *Handle) Len() int {
	n, err := h.prop(h.rt.vm.ToValue("length"))
	if err != nil {
		return 0
	}
	return int(n.v.ToInteger())
}

func (h *Handle) Index(i int) (guest.Handle, error) {
	return h.prop(h.rt.vm.ToValue(i))
}

// list reads a plain array produced by a helper.
func (h *Handle) list(fn goja.Callable) ([]goja.Value, error) {
	v, err := h.rt.call(fn, h.v)
	if err != nil {
		return nil, err
	}
	arr := v.ToObject(h.rt.vm)
	n := int(arr.Get("length").ToInteger())
	out := make([]goja.Value, n)
	for i := range out {
		out[i] = arr.Get(strconv.Itoa(i))
	}
	return out, nil
}

func (h *Handle) MapEntries() ([][2]guest.Handle, error) {
	flat, err := h.list(h.rt.h.mapEntries)
	if err != nil {
		return nil, err
	}
	out := make([][2]guest.Handle, 0, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		out = append(out, [2]guest.Handle{h.rt.Handle(flat[i]), h.rt.Handle(flat[i+1])})
	}
	return out, nil
}

func (h *Handle) SetMembers() ([]guest.Handle, error) {
	members, err := h.list(h.rt.h.setMembers)
	if err != nil {
		return nil, err
	}
	out := make([]guest.Handle, len(members))
	for i, m := range members {
		out[i] = h.rt.Handle(m)
	}
	return out, nil
}

func (h *Handle) Function() (guest.FunctionInfo, error) {
	name, err := h.prop(h.rt.vm.ToValue("name"))
	if err != nil {
		return guest.FunctionInfo{}, err
	}
	arity, err := h.prop(h.rt.vm.ToValue("length"))
	if err != nil {
		return guest.FunctionInfo{}, err
	}
	info := guest.FunctionInfo{Arity: int(arity.v.ToInteger())}
	if !goja.IsUndefined(name.v) {
		info.Name = name.v.String()
	}
	if src, err := h.rt.call(h.rt.h.source, h.v); err == nil {
		info.Source = src.String()
	}
	return info, nil
}

func (h *Handle) DateMillis() float64 {
	ms, err := h.rt.call(h.rt.h.dateMillis, h.v)
	if err != nil {
		return math.NaN()
	}
	return ms.ToFloat()
}

func (h *Handle) RegExp() (source, flags string) {
	if s, err := h.prop(h.rt.vm.ToValue("source")); err == nil {
		source = s.v.String()
	}
	if f, err := h.prop(h.rt.vm.ToValue("flags")); err == nil {
		flags = f.v.String()
	}
	return source, flags
}

func (h *Handle) ErrorInfo() (name, message string) {
	if n, err := h.prop(h.rt.vm.ToValue("name")); err == nil && !goja.IsUndefined(n.v) {
		name = n.v.String()
	}
	if m, err := h.prop(h.rt.vm.ToValue("message")); err == nil && !goja.IsUndefined(m.v) {
		message = m.v.String()
	}
	return name, message
}

func (h *Handle) Describe() string {
	if _, ok := h.v.(*goja.Object); ok {
		if tag, err := h.rt.call(h.rt.h.tag, h.v); err == nil {
			return tag.String()
		}
		return "guest object"
	}
	if t, err := h.rt.call(h.rt.h.typeOf, h.v); err == nil {
		return "guest " + t.String()
	}
	return "guest value"
}

// Display renders the value the way console.log prints it.
func (h *Handle) Display() string {
	if h.Kind() == guest.KindString {
		return h.v.String()
	}
	return value.NewSerializer(value.DefaultConfig()).Serialize(h).String()
}

// try runs f, turning a panic raised by the runtime into an error.
func try(f func() error) (err error) {
	defer func() {
		if x := recover(); x != nil {
			if e, ok := x.(error); ok {
				err = e
				return
			}
			err = fmt.Errorf("%v", x)
		}
	}()
	return f()
}
