package value

import "math"

// Equal reports whether a and b are structurally the same. Ref ids are
// compared by position, so two passes over the same graph are equal even if
// they numbered containers differently. Numbers and dates compare bitwise,
// functions by name and arity (and source when both sides captured it).
//
// Symbols compare by description. A guest symbol is only equal to itself,
// and a restored symbol is always a fresh one, so this is looser than guest
// identity: two distinct symbols with the same description are Equal here.
// Verification of restored state depends on that.
func Equal(a, b Value) bool {
	m := matcher{refs: make(map[int]int)}
	return m.equal(a, b)
}

// Matches is Equal with Unserializable nodes in want treated as wildcards
// and truncation counts ignored. It is used to check restored state, where
// degraded nodes were restored as placeholders and omitted entries are gone.
func Matches(want, got Value) bool {
	m := matcher{refs: make(map[int]int), lenient: true}
	return m.equal(want, got)
}

type matcher struct {
	refs    map[int]int
	lenient bool
}

func (m *matcher) equal(a, b Value) bool {
	if m.lenient && a.Kind == KindUnserializable {
		return true
	}
	if a.Kind != b.Kind || (!m.lenient && a.Truncated != b.Truncated) {
		return false
	}

	switch a.Kind {
	case KindUndefined, KindNull:
		return true
	case KindBoolean:
		return a.Bool == b.Bool
	case KindNumber, KindDate:
		return math.Float64bits(a.Num) == math.Float64bits(b.Num)
	case KindString, KindBigInt, KindUnserializable:
		return a.Str == b.Str
	case KindSymbol:
		return a.Has == b.Has && a.Str == b.Str
	case KindFunction:
		if a.Name != b.Name || a.Arity != b.Arity {
			return false
		}
		return !a.Has || !b.Has || a.Source == b.Source
	case KindRegExp:
		return a.Source == b.Source && a.Flags == b.Flags
	case KindError:
		return a.Name == b.Name && a.Str == b.Str
	case KindCircularRef:
		got, ok := m.refs[a.Ref]
		return ok && got == b.Ref
	case KindObject:
		if len(a.Fields) != len(b.Fields) {
			return false
		}
		m.refs[a.Ref] = b.Ref
		for i := range a.Fields {
			if a.Fields[i].Key != b.Fields[i].Key || !m.equal(a.Fields[i].Value, b.Fields[i].Value) {
				return false
			}
		}
		return true
	case KindArray, KindSet:
		if len(a.Elems) != len(b.Elems) {
			return false
		}
		m.refs[a.Ref] = b.Ref
		for i := range a.Elems {
			if !m.equal(a.Elems[i], b.Elems[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(a.Entries) != len(b.Entries) {
			return false
		}
		m.refs[a.Ref] = b.Ref
		for i := range a.Entries {
			if !m.equal(a.Entries[i].Key, b.Entries[i].Key) || !m.equal(a.Entries[i].Value, b.Entries[i].Value) {
				return false
			}
		}
		return true
	}
	return false
}
