package tree

import (
	"gopkg.in/yaml.v3"
)

// FromValue builds a tree from a plain Go value (maps, slices, scalars or
// structs with yaml tags). Go maps have no order, so their keys come out
// sorted. A *Node is returned as a deep copy.
func FromValue(v any) (*Node, error) {
	switch t := v.(type) {
	case nil:
		return NewNull(), nil
	case *Node:
		return t.Clone(), nil
	case Node:
		return t.Clone(), nil
	}

	var yn yaml.Node
	if err := yn.Encode(v); err != nil {
		return nil, err
	}
	return FromYAMLNode(&yn)
}

// Interface converts n into plain Go values: map[string]any for mappings
// (map[any]any when a key is not a string), []any for sequences and the
// natural Go type for scalars.
func (n *Node) Interface() (any, error) {
	if n.IsNull() {
		return nil, nil
	}
	var v any
	if err := n.YAMLNode().Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
