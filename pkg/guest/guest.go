// Package guest defines how the debugger core reads values out of a live
// guest heap and writes reconstructed values back into a guest scope.
//
// Adapters for concrete engines live in subpackages: memheap is a plain Go
// object model, gojs wraps a goja runtime.
package guest

import "fmt"

// Kind is the primitive tag of a guest value.
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
	// KindOpaque covers host-only objects and resource handles the core
	// cannot look into.
	KindOpaque
)

var kindNames = [...]string{
	KindUndefined: "undefined",
	KindNull:      "null",
	KindBoolean:   "boolean",
	KindNumber:    "number",
	KindString:    "string",
	KindBigInt:    "bigint",
	KindSymbol:    "symbol",
	KindObject:    "object",
	KindArray:     "array",
	KindFunction:  "function",
	KindDate:      "date",
	KindRegExp:    "regexp",
	KindMap:       "map",
	KindSet:       "set",
	KindError:     "error",
	KindOpaque:    "opaque",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// IsContainer reports whether values of this kind own child values and take
// part in cycle detection.
func (k Kind) IsContainer() bool {
	switch k {
	case KindObject, KindArray, KindMap, KindSet:
		return true
	}
	return false
}

// FunctionInfo describes a guest function without its body semantics.
type FunctionInfo struct {
	Name   string
	Arity  int
	Source string
}

// Handle is read access to one guest value.
//
// Accessors that do not apply to the handle's Kind return zero values.
// Accessors that can run guest code (getters, proxies) return an error
// instead of panicking.
type Handle interface {
	Kind() Kind

	// Identity returns a comparable heap identity for reference kinds and nil
	// for primitives.
	Identity() any

	Bool() bool
	Float() float64
	// Text returns string contents for strings and the decimal digits for
	// big integers.
	Text() string
	SymbolDescription() (string, bool)

	// Keys returns own enumerable string keys in insertion order.
	Keys() ([]string, error)
	Get(key string) (Handle, error)

	Len() int
	Index(i int) (Handle, error)

	// MapEntries returns key/value pairs of a Map in insertion order.
	MapEntries() ([][2]Handle, error)
	// SetMembers returns the members of a Set in insertion order.
	SetMembers() ([]Handle, error)

	Function() (FunctionInfo, error)
	// DateMillis returns the epoch milliseconds of a Date; NaN for an invalid
	// date.
	DateMillis() float64
	RegExp() (source, flags string)
	ErrorInfo() (name, message string)

	// Describe explains what an opaque value is.
	Describe() string
}

// Ref is a live guest value produced by a Scope. Its concrete type belongs to
// the adapter.
type Ref interface{}

// Factory constructs guest values.
type Factory interface {
	Undefined() Ref
	Null() Ref
	Bool(b bool) Ref
	Number(f float64) Ref
	String(s string) Ref
	BigInt(digits string) (Ref, error)
	Symbol(description string, hasDescription bool) (Ref, error)
	Date(millis float64) (Ref, error)
	Function(info FunctionInfo) (Ref, error)
	RegExp(source, flags string) (Ref, error)
	Error(name, message string) (Ref, error)
	// Sentinel is what an unserializable value restores as.
	Sentinel(reason string) Ref

	NewObject() (Ref, error)
	NewArray(length int) (Ref, error)
	NewMap() (Ref, error)
	NewSet() (Ref, error)

	SetField(obj Ref, key string, v Ref) error
	SetIndex(arr Ref, i int, v Ref) error
	MapSet(m Ref, key, v Ref) error
	SetAdd(s Ref, v Ref) error
}

// Scope is a writable guest scope, e.g. a function's locals or the global
// object.
type Scope interface {
	Factory

	// Bind makes v visible in the scope under name.
	Bind(name string, v Ref) error
	// Lookup returns a read handle for the value currently bound to name.
	Lookup(name string) (Handle, bool)
}
