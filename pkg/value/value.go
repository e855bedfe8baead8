// Package value holds the host-side representation of captured guest values
// and the serializer that produces it from a live guest heap.
package value

import (
	"fmt"
	"math"
	"time"
)

// Kind tags the variant a Value holds.
type Kind uint8

const (
	KindUndefined Kind = iota
	KindNull
	KindBoolean
	KindNumber
	KindString
	KindBigInt
	KindSymbol
	KindObject
	KindArray
	KindFunction
	KindDate
	KindRegExp
	KindMap
	KindSet
	KindError
	KindCircularRef
	KindUnserializable
)

var kindNames = [...]string{
	KindUndefined:      "undefined",
	KindNull:           "null",
	KindBoolean:        "boolean",
	KindNumber:         "number",
	KindString:         "string",
	KindBigInt:         "bigint",
	KindSymbol:         "symbol",
	KindObject:         "object",
	KindArray:          "array",
	KindFunction:       "function",
	KindDate:           "date",
	KindRegExp:         "regexp",
	KindMap:            "map",
	KindSet:            "set",
	KindError:          "error",
	KindCircularRef:    "circular",
	KindUnserializable: "unserializable",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), true
		}
	}
	return 0, false
}

// IsContainer reports whether values of this kind carry a ref id and
// children.
func (k Kind) IsContainer() bool {
	switch k {
	case KindObject, KindArray, KindMap, KindSet:
		return true
	}
	return false
}

// Field is one property of an Object.
type Field struct {
	Key   string
	Value Value
}

// Entry is one key/value pair of a Map.
type Entry struct {
	Key   Value
	Value Value
}

// Value is a captured guest value. Which fields are meaningful depends on
// Kind:
//
//	Boolean         Bool
//	Number          Num
//	String          Str, Truncated (omitted runes)
//	BigInt          Str (canonical decimal digits)
//	Symbol          Str (description), Has (description present)
//	Object          Fields, Ref, Truncated
//	Array, Set      Elems, Ref, Truncated
//	Map             Entries, Ref, Truncated
//	Function        Name, Arity, Source, Has (source captured)
//	Date            Num (epoch milliseconds, NaN when invalid)
//	RegExp          Source, Flags
//	Error           Name, Str (message)
//	CircularRef     Ref (ref id of an ancestor container)
//	Unserializable  Str (reason)
type Value struct {
	Kind Kind

	Bool   bool
	Num    float64
	Str    string
	Has    bool
	Name   string
	Arity  int
	Source string
	Flags  string

	Fields  []Field
	Elems   []Value
	Entries []Entry

	Ref       int
	Truncated int
}

func Undefined() Value           { return Value{Kind: KindUndefined} }
func Null() Value                { return Value{Kind: KindNull} }
func Boolean(b bool) Value       { return Value{Kind: KindBoolean, Bool: b} }
func Number(f float64) Value     { return Value{Kind: KindNumber, Num: f} }
func String(s string) Value      { return Value{Kind: KindString, Str: s} }
func BigInt(digits string) Value { return Value{Kind: KindBigInt, Str: digits} }
func Date(millis float64) Value  { return Value{Kind: KindDate, Num: millis} }
func CircularRef(ref int) Value  { return Value{Kind: KindCircularRef, Ref: ref} }

func Symbol(description string, hasDescription bool) Value {
	return Value{Kind: KindSymbol, Str: description, Has: hasDescription}
}

func Object(fields ...Field) Value { return Value{Kind: KindObject, Fields: fields} }
func Array(elems ...Value) Value   { return Value{Kind: KindArray, Elems: elems} }
func Set(elems ...Value) Value     { return Value{Kind: KindSet, Elems: elems} }
func Map(entries ...Entry) Value   { return Value{Kind: KindMap, Entries: entries} }

// Function builds a function value. An empty source means the source was not
// captured.
func Function(name string, arity int, source string) Value {
	return Value{Kind: KindFunction, Name: name, Arity: arity, Source: source, Has: source != ""}
}

func RegExp(source, flags string) Value {
	return Value{Kind: KindRegExp, Source: source, Flags: flags}
}

func Error(name, message string) Value {
	return Value{Kind: KindError, Name: name, Str: message}
}

func Unserializable(reason string) Value {
	return Value{Kind: KindUnserializable, Str: reason}
}

// F is shorthand for building object fields.
func F(key string, v Value) Field { return Field{Key: key, Value: v} }

// Lookup returns the value of an object property.
func (v Value) Lookup(key string) (Value, bool) {
	for _, f := range v.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Keys returns the property names of an object in order.
func (v Value) Keys() []string {
	keys := make([]string, len(v.Fields))
	for i, f := range v.Fields {
		keys[i] = f.Key
	}
	return keys
}

// Len is the number of direct children of a container.
func (v Value) Len() int {
	switch v.Kind {
	case KindObject:
		return len(v.Fields)
	case KindArray, KindSet:
		return len(v.Elems)
	case KindMap:
		return len(v.Entries)
	}
	return 0
}

// Time converts a Date value to a time.Time. ok is false for invalid dates.
func (v Value) Time() (t time.Time, ok bool) {
	if v.Kind != KindDate || math.IsNaN(v.Num) || math.IsInf(v.Num, 0) {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(v.Num)).UTC(), true
}

// ISO renders a Date value as an ISO-8601 string.
func (v Value) ISO() string {
	t, ok := v.Time()
	if !ok {
		return "Invalid Date"
	}
	return t.Format("2006-01-02T15:04:05.000Z")
}

// Walk calls fn for v and every nested value in traversal order. Returning
// false skips the children of that value.
func (v *Value) Walk(fn func(*Value) bool) {
	if !fn(v) {
		return
	}
	switch v.Kind {
	case KindObject:
		for i := range v.Fields {
			v.Fields[i].Value.Walk(fn)
		}
	case KindArray, KindSet:
		for i := range v.Elems {
			v.Elems[i].Walk(fn)
		}
	case KindMap:
		for i := range v.Entries {
			v.Entries[i].Key.Walk(fn)
			v.Entries[i].Value.Walk(fn)
		}
	}
}

// CountDegraded returns the number of Unserializable nodes in v.
func (v Value) CountDegraded() int {
	n := 0
	v.Walk(func(x *Value) bool {
		if x.Kind == KindUnserializable {
			n++
		}
		return true
	})
	return n
}

// Clone returns a deep copy of v that shares no slices with it.
func (v Value) Clone() Value {
	out := v
	if v.Fields != nil {
		out.Fields = make([]Field, len(v.Fields))
		for i, f := range v.Fields {
			out.Fields[i] = Field{Key: f.Key, Value: f.Value.Clone()}
		}
	}
	if v.Elems != nil {
		out.Elems = make([]Value, len(v.Elems))
		for i, e := range v.Elems {
			out.Elems[i] = e.Clone()
		}
	}
	if v.Entries != nil {
		out.Entries = make([]Entry, len(v.Entries))
		for i, e := range v.Entries {
			out.Entries[i] = Entry{Key: e.Key.Clone(), Value: e.Value.Clone()}
		}
	}
	return out
}
