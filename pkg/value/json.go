package value

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// wireValue is the tagged JSON form of a Value. Numbers that JSON cannot
// carry (NaN, ±Infinity, -0) travel as a label plus their raw bits.
type wireValue struct {
	Type      string      `json:"type"`
	Bool      bool        `json:"bool,omitempty"`
	Number    *float64    `json:"number,omitempty"`
	Special   string      `json:"special,omitempty"`
	Bits      string      `json:"bits,omitempty"`
	Text      string      `json:"text,omitempty"`
	Has       bool        `json:"has,omitempty"`
	Name      string      `json:"name,omitempty"`
	Arity     int         `json:"arity,omitempty"`
	Source    string      `json:"source,omitempty"`
	Flags     string      `json:"flags,omitempty"`
	ISO       string      `json:"iso,omitempty"`
	Ref       int         `json:"ref,omitempty"`
	Truncated int         `json:"truncated,omitempty"`
	Fields    []wireField `json:"fields,omitempty"`
	Items     []Value     `json:"items,omitempty"`
	Entries   []wireEntry `json:"entries,omitempty"`
}

type wireField struct {
	Key   string `json:"key"`
	Value Value  `json:"value"`
}

type wireEntry struct {
	Key   Value `json:"key"`
	Value Value `json:"value"`
}

func isSpecial(f float64) bool {
	return math.IsNaN(f) || math.IsInf(f, 0) || (f == 0 && math.Signbit(f))
}

func (w *wireValue) setNumber(f float64) {
	if isSpecial(f) {
		w.Special = FormatNumber(f)
		w.Bits = strconv.FormatUint(math.Float64bits(f), 16)
		return
	}
	w.Number = &f
}

func (w *wireValue) number() (float64, error) {
	if w.Bits != "" {
		bits, err := strconv.ParseUint(w.Bits, 16, 64)
		if err != nil {
			return 0, fmt.Errorf("number bits %q: %w", w.Bits, err)
		}
		return math.Float64frombits(bits), nil
	}
	switch w.Special {
	case "NaN":
		return math.NaN(), nil
	case "Infinity":
		return math.Inf(1), nil
	case "-Infinity":
		return math.Inf(-1), nil
	case "-0":
		return math.Copysign(0, -1), nil
	}
	if w.Number == nil {
		return 0, nil
	}
	return *w.Number, nil
}

// MarshalJSON encodes v in its tagged wire form.
func (v Value) MarshalJSON() ([]byte, error) {
	w := wireValue{Type: v.Kind.String(), Ref: v.Ref, Truncated: v.Truncated}
	switch v.Kind {
	case KindBoolean:
		w.Bool = v.Bool
	case KindNumber:
		w.setNumber(v.Num)
	case KindDate:
		w.setNumber(v.Num)
		w.ISO = v.ISO()
	case KindString, KindBigInt, KindUnserializable:
		w.Text = v.Str
	case KindSymbol:
		w.Text, w.Has = v.Str, v.Has
	case KindFunction:
		w.Name, w.Arity, w.Source, w.Has = v.Name, v.Arity, v.Source, v.Has
	case KindRegExp:
		w.Source, w.Flags = v.Source, v.Flags
	case KindError:
		w.Name, w.Text = v.Name, v.Str
	case KindObject:
		w.Fields = make([]wireField, len(v.Fields))
		for i, f := range v.Fields {
			w.Fields[i] = wireField(f)
		}
	case KindArray, KindSet:
		w.Items = v.Elems
	case KindMap:
		w.Entries = make([]wireEntry, len(v.Entries))
		for i, e := range v.Entries {
			w.Entries[i] = wireEntry(e)
		}
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the tagged wire form.
func (v *Value) UnmarshalJSON(data []byte) error {
	var w wireValue
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	kind, ok := ParseKind(w.Type)
	if !ok {
		return fmt.Errorf("unknown value type %q", w.Type)
	}

	out := Value{Kind: kind, Ref: w.Ref, Truncated: w.Truncated}
	switch kind {
	case KindBoolean:
		out.Bool = w.Bool
	case KindNumber, KindDate:
		n, err := w.number()
		if err != nil {
			return err
		}
		out.Num = n
	case KindString, KindBigInt, KindUnserializable:
		out.Str = w.Text
	case KindSymbol:
		out.Str, out.Has = w.Text, w.Has
	case KindFunction:
		out.Name, out.Arity, out.Source, out.Has = w.Name, w.Arity, w.Source, w.Has
	case KindRegExp:
		out.Source, out.Flags = w.Source, w.Flags
	case KindError:
		out.Name, out.Str = w.Name, w.Text
	case KindObject:
		out.Fields = make([]Field, len(w.Fields))
		for i, f := range w.Fields {
			out.Fields[i] = Field(f)
		}
	case KindArray, KindSet:
		out.Elems = w.Items
	case KindMap:
		out.Entries = make([]Entry, len(w.Entries))
		for i, e := range w.Entries {
			out.Entries[i] = Entry(e)
		}
	}
	*v = out
	return nil
}
