package tree

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

var (
	ErrComplexKey        = errors.New("mapping keys must be scalars")
	ErrDuplicateKey      = errors.New("duplicate mapping key")
	ErrRecursiveAlias    = errors.New("recursive alias")
	ErrAliasExpansion    = errors.New("document contains excessive aliasing")
	ErrMultipleDocuments = errors.New("expected a single document")
)

// DefaultIndent is the number of spaces used per nesting level on output.
const DefaultIndent = 2

// Parse decodes every document of a YAML (or JSON) stream, in order. Empty
// input, or a stream holding only comments, yields no documents.
func Parse(data []byte) ([]*Node, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))

	var docs []*Node
	for {
		var yn yaml.Node
		err := dec.Decode(&yn)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if yn.Kind == yaml.DocumentNode && len(yn.Content) == 0 {
			continue
		}
		n, err := FromYAMLNode(&yn)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", len(docs), err)
		}
		docs = append(docs, n)
	}
	return docs, nil
}

// ParseOne decodes a stream expected to hold at most one document. It
// returns nil (and no error) when the stream is empty.
func ParseOne(data []byte) (*Node, error) {
	docs, err := Parse(data)
	if err != nil {
		return nil, err
	}
	switch len(docs) {
	case 0:
		return nil, nil
	case 1:
		return docs[0], nil
	default:
		return nil, fmt.Errorf("%w: found %d", ErrMultipleDocuments, len(docs))
	}
}

// MustParse is ParseOne for literals known to be valid. An empty document
// becomes Null.
func MustParse(s string) *Node {
	n, err := ParseOne([]byte(s))
	if err != nil {
		panic(err)
	}
	return orNull(n)
}

// FromYAMLNode converts a yaml.v3 node into a tree. Aliases are expanded to
// copies of the anchored node; comments, styles and anchors are dropped.
// Documents where alias expansion dominates the result fail with
// ErrAliasExpansion, with the same ratio limits yaml.v3 applies when
// decoding into Go values.
func FromYAMLNode(yn *yaml.Node) (*Node, error) {
	c := converter{visiting: map[*yaml.Node]bool{}}
	return c.convert(yn)
}

type converter struct {
	visiting map[*yaml.Node]bool

	aliasDepth int
	// converted counts every node produced, aliased those produced while
	// expanding an alias
	converted int
	aliased   int
}

const (
	aliasRatioRangeLow  = 400000
	aliasRatioRangeHigh = 4000000
	aliasRatioRange     = float64(aliasRatioRangeHigh - aliasRatioRangeLow)
)

// allowedAliasRatio returns the share of aliased nodes tolerated after
// converting n nodes: almost all of them for small documents, down to 10%
// for very large ones.
func allowedAliasRatio(n int) float64 {
	switch {
	case n <= aliasRatioRangeLow:
		return 0.99
	case n >= aliasRatioRangeHigh:
		return 0.10
	default:
		return 0.99 - 0.89*(float64(n-aliasRatioRangeLow)/aliasRatioRange)
	}
}

func (c *converter) count(yn *yaml.Node) error {
	c.converted++
	if c.aliasDepth > 0 {
		c.aliased++
	}
	if c.aliased > 100 && c.converted > 1000 &&
		float64(c.aliased)/float64(c.converted) > allowedAliasRatio(c.converted) {
		return fmt.Errorf("%w: line %d", ErrAliasExpansion, yn.Line)
	}
	return nil
}

func (c *converter) convert(yn *yaml.Node) (*Node, error) {
	if yn == nil {
		return NewNull(), nil
	}
	if err := c.count(yn); err != nil {
		return nil, err
	}

	switch yn.Kind {
	case yaml.DocumentNode:
		if len(yn.Content) == 0 {
			return NewNull(), nil
		}
		return c.convert(yn.Content[0])

	case yaml.AliasNode:
		if c.visiting[yn.Alias] {
			return nil, fmt.Errorf("%w: *%s at line %d", ErrRecursiveAlias, yn.Value, yn.Line)
		}
		c.aliasDepth++
		defer func() { c.aliasDepth-- }()
		return c.convert(yn.Alias)

	case yaml.ScalarNode:
		tag := yn.ShortTag()
		if tag == NullTag {
			return NewNull(), nil
		}
		return NewScalar(tag, yn.Value), nil

	case yaml.SequenceNode:
		c.visiting[yn] = true
		defer delete(c.visiting, yn)

		seq := &Node{kind: SequenceKind, items: make([]*Node, 0, len(yn.Content))}
		for _, item := range yn.Content {
			n, err := c.convert(item)
			if err != nil {
				return nil, err
			}
			seq.items = append(seq.items, n)
		}
		return seq, nil

	case yaml.MappingNode:
		c.visiting[yn] = true
		defer delete(c.visiting, yn)

		m := NewMapping()
		for i := 0; i+1 < len(yn.Content); i += 2 {
			kn := yn.Content[i]
			for kn.Kind == yaml.AliasNode && kn.Alias != nil {
				kn = kn.Alias
			}
			if kn.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("%w: line %d", ErrComplexKey, kn.Line)
			}
			keyTag := kn.ShortTag()
			if m.HasEntry(keyTag, kn.Value) {
				return nil, fmt.Errorf("%w: %q at line %d", ErrDuplicateKey, kn.Value, kn.Line)
			}
			v, err := c.convert(yn.Content[i+1])
			if err != nil {
				return nil, err
			}
			m.SetEntry(Entry{Key: kn.Value, KeyTag: keyTag, Value: v})
		}
		return m, nil
	}

	return nil, fmt.Errorf("unsupported YAML node kind %d at line %d", yn.Kind, yn.Line)
}

// YAMLNode converts n back into a yaml.v3 node with implicit tags wherever
// the plain value resolves to the same tag.
func (n *Node) YAMLNode() *yaml.Node {
	switch n.Kind() {
	case NullKind:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: NullTag, Value: "null"}
	case ScalarKind:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: n.tag, Value: n.value}
	case SequenceKind:
		yn := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, it := range n.items {
			yn.Content = append(yn.Content, it.YAMLNode())
		}
		return yn
	default:
		yn := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, e := range n.entries {
			yn.Content = append(yn.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: e.tag(), Value: e.Key},
				e.Value.YAMLNode(),
			)
		}
		return yn
	}
}

// MarshalYAML lets a *Node be embedded in values encoded by yaml.v3.
func (n *Node) MarshalYAML() (interface{}, error) {
	return n.YAMLNode(), nil
}

// UnmarshalYAML lets a *Node be the target of yaml.v3 decoding.
func (n *Node) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := FromYAMLNode(value)
	if err != nil {
		return err
	}
	*n = *parsed
	return nil
}

////////////////////////////////////////////////////////////////////////////
// encoding
////////////////////////////////////////////////////////////////////////////

// EncodeOptions controls how trees are rendered.
type EncodeOptions struct {
	Indent int
}

// EncodeOption is a functional option for Encode and Marshal.
type EncodeOption func(*EncodeOptions)

// WithIndent sets the number of spaces per nesting level.
func WithIndent(spaces int) EncodeOption {
	return func(o *EncodeOptions) { o.Indent = spaces }
}

func defaultEncodeOptions() EncodeOptions {
	return EncodeOptions{Indent: DefaultIndent}
}

// Encode writes n to w as a single YAML document. Mapping keys keep the tree
// order and the output always ends with a newline.
func Encode(w io.Writer, n *Node, opts ...EncodeOption) error {
	options := defaultEncodeOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if options.Indent <= 0 {
		options.Indent = DefaultIndent
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(options.Indent)
	if err := enc.Encode(orNull(n).YAMLNode()); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

// Marshal returns the YAML rendering of n.
func Marshal(n *Node, opts ...EncodeOption) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, n, opts...); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
