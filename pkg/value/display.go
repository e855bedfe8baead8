package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// previewItems is how many children String shows before eliding.
const previewItems = 3

// FormatNumber renders a float64 the way the guest language prints numbers.
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0 && math.Signbit(f):
		return "-0"
	case f == math.Trunc(f) && math.Abs(f) < 1e21:
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// String returns a short, human-readable rendering of v.
func (v Value) String() string {
	switch v.Kind {
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "null"
	case KindBoolean:
		return strconv.FormatBool(v.Bool)
	case KindNumber:
		return FormatNumber(v.Num)
	case KindString:
		s := strconv.Quote(v.Str)
		if v.Truncated > 0 {
			s += fmt.Sprintf("... (+%d chars)", v.Truncated)
		}
		return s
	case KindBigInt:
		return v.Str + "n"
	case KindSymbol:
		return "Symbol(" + v.Str + ")"
	case KindObject:
		if len(v.Fields) == 0 {
			return "{}"
		}
		parts := make([]string, 0, previewItems)
		for _, f := range v.Fields[:min(len(v.Fields), previewItems)] {
			parts = append(parts, f.Key+": "+f.Value.String())
		}
		if len(v.Fields) > previewItems {
			return "{ " + strings.Join(parts, ", ") + ", ... }"
		}
		return "{ " + strings.Join(parts, ", ") + " }"
	case KindArray:
		if len(v.Elems) == 0 {
			return "[]"
		}
		parts := make([]string, 0, previewItems)
		for _, e := range v.Elems[:min(len(v.Elems), previewItems)] {
			parts = append(parts, e.String())
		}
		if len(v.Elems) > previewItems {
			return "[" + strings.Join(parts, ", ") + ", ...]"
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindFunction:
		name := v.Name
		if name == "" {
			name = "anonymous"
		}
		return "function " + name + "()"
	case KindDate:
		return "Date(" + v.ISO() + ")"
	case KindRegExp:
		return "/" + v.Source + "/" + v.Flags
	case KindMap:
		return fmt.Sprintf("Map(%d entries)", len(v.Entries))
	case KindSet:
		return fmt.Sprintf("Set(%d values)", len(v.Elems))
	case KindError:
		if v.Str == "" {
			return v.Name
		}
		return v.Name + ": " + v.Str
	case KindCircularRef:
		return fmt.Sprintf("[Circular *%d]", v.Ref)
	case KindUnserializable:
		return "[Unserializable: " + v.Str + "]"
	}
	return fmt.Sprintf("<%s>", v.Kind)
}
