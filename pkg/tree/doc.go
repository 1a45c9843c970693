// Package tree implements the in-memory representation of a parsed YAML
// document: a tagged union of mappings, sequences, scalars and nulls where
// mappings keep the insertion order of their keys. Conversion to and from
// gopkg.in/yaml.v3 nodes lives here too, so higher-level packages only deal
// with *Node values.
package tree
