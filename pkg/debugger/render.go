package debugger

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/willibrandon/ChronoJS/pkg/recorder"
	"github.com/willibrandon/ChronoJS/pkg/value"
)

// writeVariables renders vars as a YAML document, one top-level key per
// variable.
func writeVariables(w io.Writer, vars []recorder.Variable) error {
	doc := &yaml.Node{Kind: yaml.MappingNode}
	for _, v := range vars {
		doc.Content = append(doc.Content, str(v.Name), valueNode(v.Value))
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

func str(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

func valueNode(v value.Value) *yaml.Node {
	switch v.Kind {
	case value.KindString:
		if v.Truncated > 0 {
			return str(v.String())
		}
		return str(v.Str)
	case value.KindNull:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	case value.KindBoolean, value.KindNumber:
		return &yaml.Node{Kind: yaml.ScalarNode, Value: v.String()}
	case value.KindObject:
		n := &yaml.Node{Kind: yaml.MappingNode}
		for _, f := range v.Fields {
			n.Content = append(n.Content, str(f.Key), valueNode(f.Value))
		}
		return n
	case value.KindArray, value.KindSet:
		n := &yaml.Node{Kind: yaml.SequenceNode}
		for _, e := range v.Elems {
			n.Content = append(n.Content, valueNode(e))
		}
		return n
	case value.KindMap:
		n := &yaml.Node{Kind: yaml.SequenceNode}
		for _, e := range v.Entries {
			n.Content = append(n.Content, &yaml.Node{
				Kind:    yaml.MappingNode,
				Content: []*yaml.Node{str("key"), valueNode(e.Key), str("value"), valueNode(e.Value)},
			})
		}
		return n
	}
	return str(v.String())
}
