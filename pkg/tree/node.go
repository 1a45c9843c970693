package tree

import (
	"fmt"
	"strconv"
)

// Kind identifies the variant held by a Node.
type Kind int

const (
	NullKind Kind = iota
	ScalarKind
	SequenceKind
	MappingKind
)

func (k Kind) String() string {
	switch k {
	case NullKind:
		return "null"
	case ScalarKind:
		return "scalar"
	case SequenceKind:
		return "sequence"
	case MappingKind:
		return "mapping"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Short YAML tags for the scalar types produced by the parser.
const (
	StrTag       = "!!str"
	IntTag       = "!!int"
	FloatTag     = "!!float"
	BoolTag      = "!!bool"
	NullTag      = "!!null"
	TimestampTag = "!!timestamp"
	BinaryTag    = "!!binary"
)

// Entry is one key/value pair of a mapping. KeyTag is the short tag of the
// key scalar; an empty KeyTag means !!str.
type Entry struct {
	Key    string
	KeyTag string
	Value  *Node
}

func (e Entry) tag() string {
	if e.KeyTag == "" {
		return StrTag
	}
	return e.KeyTag
}

// mapKey identifies a mapping key: 1 (!!int) and "1" (!!str) are different
// keys.
type mapKey struct {
	tag, text string
}

func keyOf(tag, text string) mapKey {
	if tag == "" {
		tag = StrTag
	}
	return mapKey{tag: tag, text: text}
}

// Node is a document tree node. Only the fields matching its Kind are
// meaningful. The zero value and the nil pointer are both Null.
type Node struct {
	kind Kind

	// scalars
	tag   string
	value string

	// sequences
	items []*Node

	// mappings: entries hold the order, index maps keys to positions.
	// typedKeys counts the keys that are not !!str.
	entries   []Entry
	index     map[mapKey]int
	typedKeys int
}

// NewNull returns a Null node.
func NewNull() *Node {
	return &Node{kind: NullKind}
}

// NewScalar returns a scalar with the given short tag and literal value.
// An empty tag defaults to !!str.
func NewScalar(tag, value string) *Node {
	if tag == "" {
		tag = StrTag
	}
	return &Node{kind: ScalarKind, tag: tag, value: value}
}

func NewString(s string) *Node { return NewScalar(StrTag, s) }

func NewInt(i int64) *Node { return NewScalar(IntTag, strconv.FormatInt(i, 10)) }

func NewFloat(f float64) *Node {
	return NewScalar(FloatTag, strconv.FormatFloat(f, 'g', -1, 64))
}

func NewBool(b bool) *Node { return NewScalar(BoolTag, strconv.FormatBool(b)) }

// NewSequence returns a sequence holding the given items, in order.
func NewSequence(items ...*Node) *Node {
	n := &Node{kind: SequenceKind, items: make([]*Node, 0, len(items))}
	for _, it := range items {
		n.items = append(n.items, orNull(it))
	}
	return n
}

// NewMapping returns an empty mapping.
func NewMapping() *Node {
	return &Node{kind: MappingKind, index: map[mapKey]int{}}
}

// NewMappingFrom builds a mapping from entries, in order. Later duplicates
// replace earlier values in place.
func NewMappingFrom(entries ...Entry) *Node {
	n := NewMapping()
	for _, e := range entries {
		n.SetEntry(e)
	}
	return n
}

func orNull(n *Node) *Node {
	if n == nil {
		return NewNull()
	}
	return n
}

// Kind never fails: a nil node is Null.
func (n *Node) Kind() Kind {
	if n == nil {
		return NullKind
	}
	return n.kind
}

func (n *Node) IsNull() bool     { return n.Kind() == NullKind }
func (n *Node) IsScalar() bool   { return n.Kind() == ScalarKind }
func (n *Node) IsSequence() bool { return n.Kind() == SequenceKind }
func (n *Node) IsMapping() bool  { return n.Kind() == MappingKind }

// Tag returns the short tag of a scalar, NullTag for nulls and "" otherwise.
func (n *Node) Tag() string {
	switch n.Kind() {
	case ScalarKind:
		return n.tag
	case NullKind:
		return NullTag
	default:
		return ""
	}
}

// Value returns the literal text of a scalar, or "" for other kinds.
func (n *Node) Value() string {
	if n.Kind() != ScalarKind {
		return ""
	}
	return n.value
}

// Len returns the number of entries of a mapping or items of a sequence.
func (n *Node) Len() int {
	switch n.Kind() {
	case MappingKind:
		return len(n.entries)
	case SequenceKind:
		return len(n.items)
	default:
		return 0
	}
}

////////////////////////////////////////////////////////////////////////////
// mappings
////////////////////////////////////////////////////////////////////////////

// Get returns the value stored at key. A !!str key wins; otherwise the first
// key of another type whose text is key (such as the int key 200 for "200")
// is used. It reports false when the key is absent or n is not a mapping.
func (n *Node) Get(key string) (*Node, bool) {
	i, ok := n.find(key)
	if !ok {
		return nil, false
	}
	return n.entries[i].Value, true
}

// GetEntry returns the value stored at the key with the given tag and text.
func (n *Node) GetEntry(keyTag, key string) (*Node, bool) {
	if n.Kind() != MappingKind {
		return nil, false
	}
	i, ok := n.index[keyOf(keyTag, key)]
	if !ok {
		return nil, false
	}
	return n.entries[i].Value, true
}

// Has reports whether the mapping holds key, resolved as in Get.
func (n *Node) Has(key string) bool {
	_, ok := n.find(key)
	return ok
}

// HasEntry reports whether the mapping holds the key with the given tag.
func (n *Node) HasEntry(keyTag, key string) bool {
	_, ok := n.GetEntry(keyTag, key)
	return ok
}

func (n *Node) find(key string) (int, bool) {
	if n.Kind() != MappingKind {
		return 0, false
	}
	if i, ok := n.index[keyOf(StrTag, key)]; ok {
		return i, true
	}
	if n.typedKeys == 0 {
		return 0, false
	}
	for i, e := range n.entries {
		if e.Key == key {
			return i, true
		}
	}
	return 0, false
}

// Set stores value at key, resolved as in Get. An existing key keeps its
// position and its tag; a new key is appended as a !!str key. Set panics
// when n is not a mapping.
func (n *Node) Set(key string, value *Node) {
	n.mustBe(MappingKind, "Set")
	if i, ok := n.find(key); ok {
		n.entries[i].Value = orNull(value)
		return
	}
	n.SetEntry(Entry{Key: key, Value: value})
}

// SetEntry stores e.Value at the key identified by e.KeyTag and e.Key. An
// existing key keeps its position; a new key is appended after all present
// keys. SetEntry panics when n is not a mapping.
func (n *Node) SetEntry(e Entry) {
	n.mustBe(MappingKind, "SetEntry")
	e.Value = orNull(e.Value)
	e.KeyTag = e.tag()
	k := keyOf(e.KeyTag, e.Key)
	if i, ok := n.index[k]; ok {
		n.entries[i].Value = e.Value
		return
	}
	if n.index == nil {
		n.index = map[mapKey]int{}
	}
	n.index[k] = len(n.entries)
	n.entries = append(n.entries, e)
	if e.KeyTag != StrTag {
		n.typedKeys++
	}
}

// Delete removes key, resolved as in Get, keeping the relative order of the
// remaining keys. It reports whether the key was present.
func (n *Node) Delete(key string) bool {
	i, ok := n.find(key)
	if !ok {
		return false
	}
	removed := n.entries[i]
	n.entries = append(n.entries[:i], n.entries[i+1:]...)
	delete(n.index, keyOf(removed.KeyTag, removed.Key))
	if removed.tag() != StrTag {
		n.typedKeys--
	}
	for j := i; j < len(n.entries); j++ {
		n.index[keyOf(n.entries[j].KeyTag, n.entries[j].Key)] = j
	}
	return true
}

// Keys returns the text of the mapping keys in order.
func (n *Node) Keys() []string {
	if n.Kind() != MappingKind {
		return nil
	}
	keys := make([]string, len(n.entries))
	for i, e := range n.entries {
		keys[i] = e.Key
	}
	return keys
}

// Entries returns a copy of the mapping entries in order.
func (n *Node) Entries() []Entry {
	if n.Kind() != MappingKind {
		return nil
	}
	return append([]Entry(nil), n.entries...)
}

// Range calls fn for each mapping entry in order until fn returns false.
func (n *Node) Range(fn func(key string, value *Node) bool) {
	n.RangeEntries(func(e Entry) bool { return fn(e.Key, e.Value) })
}

// RangeEntries is Range with the key tags.
func (n *Node) RangeEntries(fn func(e Entry) bool) {
	if n.Kind() != MappingKind {
		return
	}
	for _, e := range n.entries {
		if !fn(e) {
			return
		}
	}
}

////////////////////////////////////////////////////////////////////////////
// sequences
////////////////////////////////////////////////////////////////////////////

// Items returns a copy of the sequence items.
func (n *Node) Items() []*Node {
	if n.Kind() != SequenceKind {
		return nil
	}
	return append([]*Node(nil), n.items...)
}

// Index returns the item at i, or false when out of range.
func (n *Node) Index(i int) (*Node, bool) {
	if n.Kind() != SequenceKind || i < 0 || i >= len(n.items) {
		return nil, false
	}
	return n.items[i], true
}

// Append adds value at the end of a sequence. It panics when n is not a
// sequence.
func (n *Node) Append(value *Node) {
	n.mustBe(SequenceKind, "Append")
	n.items = append(n.items, orNull(value))
}

func (n *Node) setIndex(i int, value *Node) {
	for len(n.items) <= i {
		n.items = append(n.items, NewNull())
	}
	n.items[i] = orNull(value)
}

func (n *Node) mustBe(k Kind, op string) {
	if n.Kind() != k {
		panic(fmt.Sprintf("tree: %s on %s node", op, n.Kind()))
	}
}

////////////////////////////////////////////////////////////////////////////
// comparison and copies
////////////////////////////////////////////////////////////////////////////

// Equal reports whether two trees are structurally identical: same kinds,
// same scalar tags and values, same mapping keys in the same order and same
// sequence items.
func (n *Node) Equal(other *Node) bool {
	if n.Kind() != other.Kind() {
		return false
	}
	switch n.Kind() {
	case NullKind:
		return true
	case ScalarKind:
		return n.tag == other.tag && n.value == other.value
	case SequenceKind:
		if len(n.items) != len(other.items) {
			return false
		}
		for i := range n.items {
			if !n.items[i].Equal(other.items[i]) {
				return false
			}
		}
		return true
	case MappingKind:
		if len(n.entries) != len(other.entries) {
			return false
		}
		for i, e := range n.entries {
			o := other.entries[i]
			if e.Key != o.Key || e.tag() != o.tag() || !e.Value.Equal(o.Value) {
				return false
			}
		}
		return true
	}
	return false
}

// Clone returns a deep copy of n.
func (n *Node) Clone() *Node {
	switch n.Kind() {
	case NullKind:
		return NewNull()
	case ScalarKind:
		return NewScalar(n.tag, n.value)
	case SequenceKind:
		c := &Node{kind: SequenceKind, items: make([]*Node, len(n.items))}
		for i, it := range n.items {
			c.items[i] = it.Clone()
		}
		return c
	default:
		c := &Node{
			kind:      MappingKind,
			entries:   make([]Entry, len(n.entries)),
			index:     make(map[mapKey]int, len(n.entries)),
			typedKeys: n.typedKeys,
		}
		for i, e := range n.entries {
			c.entries[i] = Entry{Key: e.Key, KeyTag: e.KeyTag, Value: e.Value.Clone()}
			c.index[keyOf(e.KeyTag, e.Key)] = i
		}
		return c
	}
}

func (n *Node) String() string {
	b, err := Marshal(n)
	if err != nil {
		return fmt.Sprintf("<%s: %v>", n.Kind(), err)
	}
	return string(b)
}
