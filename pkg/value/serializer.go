package value

import (
	"fmt"
	"math/big"
	"unicode/utf8"

	"github.com/willibrandon/ChronoJS/pkg/guest"
)

// Reasons carried by Unserializable nodes the serializer produces itself.
const (
	ReasonMaxDepth = "max depth exceeded"
	ReasonNilValue = "no value"
)

// Config bounds a serialization pass.
type Config struct {
	// MaxDepth is the deepest level at which a container is still expanded.
	// The root is at depth 0.
	MaxDepth int `yaml:"max_depth" mapstructure:"max_depth"`
	// MaxCollectionSize caps the children kept per container; 0 disables.
	MaxCollectionSize int `yaml:"max_collection_size" mapstructure:"max_collection_size"`
	// MaxStringLength caps string length in runes; 0 disables.
	MaxStringLength int `yaml:"max_string_length" mapstructure:"max_string_length"`
	// CaptureFunctionSource keeps function source text.
	CaptureFunctionSource bool `yaml:"capture_function_source" mapstructure:"capture_function_source"`
}

// DefaultConfig returns the stock limits.
func DefaultConfig() Config {
	return Config{
		MaxDepth:              10,
		MaxCollectionSize:     100,
		MaxStringLength:       1000,
		CaptureFunctionSource: true,
	}
}

// Serializer converts live guest values into Values.
type Serializer struct {
	cfg Config
}

// NewSerializer creates a serializer with the given limits.
func NewSerializer(cfg Config) *Serializer {
	return &Serializer{cfg: cfg}
}

// Config returns the serializer's limits.
func (s *Serializer) Config() Config {
	return s.cfg
}

// Serialize runs one pass over h. It never fails: anything that cannot be
// represented comes back as an Unserializable node. Ref ids are only
// meaningful within the returned tree.
func (s *Serializer) Serialize(h guest.Handle) (v Value) {
	defer func() {
		if r := recover(); r != nil {
			v = Unserializable(fmt.Sprintf("serialization aborted: %v", r))
		}
	}()
	p := &pass{cfg: s.cfg, ancestors: make(map[any]int)}
	return p.walk(h, 0)
}

type pass struct {
	cfg     Config
	nextRef int
	// ancestors maps heap identities on the current path to their ref ids.
	ancestors map[any]int
}

func (p *pass) walk(h guest.Handle, depth int) Value {
	if h == nil {
		return Unserializable(ReasonNilValue)
	}

	switch k := h.Kind(); k {
	case guest.KindUndefined:
		return Undefined()
	case guest.KindNull:
		return Null()
	case guest.KindBoolean:
		return Boolean(h.Bool())
	case guest.KindNumber:
		return Number(h.Float())
	case guest.KindString:
		return p.str(h.Text())
	case guest.KindBigInt:
		n, ok := new(big.Int).SetString(h.Text(), 10)
		if !ok {
			return Unserializable(fmt.Sprintf("malformed bigint %q", h.Text()))
		}
		return BigInt(n.String())
	case guest.KindSymbol:
		desc, has := h.SymbolDescription()
		return Symbol(desc, has)
	case guest.KindFunction:
		info, err := h.Function()
		if err != nil {
			return Unserializable(fmt.Sprintf("function: %v", err))
		}
		if !p.cfg.CaptureFunctionSource {
			info.Source = ""
		}
		return Function(info.Name, info.Arity, info.Source)
	case guest.KindDate:
		return Date(h.DateMillis())
	case guest.KindRegExp:
		return RegExp(h.RegExp())
	case guest.KindError:
		return Error(h.ErrorInfo())
	case guest.KindObject, guest.KindArray, guest.KindMap, guest.KindSet:
		return p.container(h, k, depth)
	case guest.KindOpaque:
		reason := h.Describe()
		if reason == "" {
			reason = "unsupported host value"
		}
		return Unserializable(reason)
	default:
		return Unserializable(fmt.Sprintf("unsupported value kind %s", k))
	}
}

func (p *pass) str(s string) Value {
	v := String(s)
	if max := p.cfg.MaxStringLength; max > 0 {
		if n := utf8.RuneCountInString(s); n > max {
			runes := []rune(s)
			v.Str = string(runes[:max])
			v.Truncated = n - max
		}
	}
	return v
}

func (p *pass) container(h guest.Handle, k guest.Kind, depth int) Value {
	id := h.Identity()
	if id != nil {
		if ref, ok := p.ancestors[id]; ok {
			return CircularRef(ref)
		}
	}
	if depth > p.cfg.MaxDepth {
		return Unserializable(ReasonMaxDepth)
	}

	p.nextRef++
	ref := p.nextRef
	if id != nil {
		p.ancestors[id] = ref
		defer delete(p.ancestors, id)
	}

	var v Value
	switch k {
	case guest.KindObject:
		v = p.object(h, depth)
	case guest.KindArray:
		v = p.array(h, depth)
	case guest.KindMap:
		v = p.mapValue(h, depth)
	case guest.KindSet:
		v = p.set(h, depth)
	}
	v.Ref = ref
	return v
}

// limit returns how many of n children to keep and how many are dropped.
func (p *pass) limit(n int) (keep, omitted int) {
	if max := p.cfg.MaxCollectionSize; max > 0 && n > max {
		return max, n - max
	}
	return n, 0
}

func omittedMarker(n int) Value {
	return Unserializable(fmt.Sprintf("%d more entries omitted", n))
}

func (p *pass) object(h guest.Handle, depth int) Value {
	keys, err := h.Keys()
	if err != nil {
		return Unserializable(fmt.Sprintf("cannot enumerate properties: %v", err))
	}
	keep, omitted := p.limit(len(keys))
	v := Object()
	v.Fields = make([]Field, 0, keep+1)
	for _, key := range keys[:keep] {
		child, err := h.Get(key)
		if err != nil {
			v.Fields = append(v.Fields, F(key, Unserializable(fmt.Sprintf("property %q: %v", key, err))))
			continue
		}
		v.Fields = append(v.Fields, F(key, p.walk(child, depth+1)))
	}
	if omitted > 0 {
		v.Fields = append(v.Fields, F("...", omittedMarker(omitted)))
		v.Truncated = omitted
	}
	return v
}

func (p *pass) array(h guest.Handle, depth int) Value {
	keep, omitted := p.limit(h.Len())
	v := Array()
	v.Elems = make([]Value, 0, keep+1)
	for i := 0; i < keep; i++ {
		child, err := h.Index(i)
		if err != nil {
			v.Elems = append(v.Elems, Unserializable(fmt.Sprintf("element %d: %v", i, err)))
			continue
		}
		v.Elems = append(v.Elems, p.walk(child, depth+1))
	}
	if omitted > 0 {
		v.Elems = append(v.Elems, omittedMarker(omitted))
		v.Truncated = omitted
	}
	return v
}

func (p *pass) mapValue(h guest.Handle, depth int) Value {
	entries, err := h.MapEntries()
	if err != nil {
		return Unserializable(fmt.Sprintf("cannot read map entries: %v", err))
	}
	keep, omitted := p.limit(len(entries))
	v := Map()
	v.Entries = make([]Entry, 0, keep+1)
	for _, e := range entries[:keep] {
		v.Entries = append(v.Entries, Entry{
			Key:   p.walk(e[0], depth+1),
			Value: p.walk(e[1], depth+1),
		})
	}
	if omitted > 0 {
		v.Entries = append(v.Entries, Entry{Key: String("..."), Value: omittedMarker(omitted)})
		v.Truncated = omitted
	}
	return v
}

func (p *pass) set(h guest.Handle, depth int) Value {
	members, err := h.SetMembers()
	if err != nil {
		return Unserializable(fmt.Sprintf("cannot read set members: %v", err))
	}
	keep, omitted := p.limit(len(members))
	v := Set()
	v.Elems = make([]Value, 0, keep+1)
	for _, m := range members[:keep] {
		v.Elems = append(v.Elems, p.walk(m, depth+1))
	}
	if omitted > 0 {
		v.Elems = append(v.Elems, omittedMarker(omitted))
		v.Truncated = omitted
	}
	return v
}
