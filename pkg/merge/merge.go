package merge

import (
	"fmt"
	"strings"

	"github.com/inercia/go-yaml-merger/pkg/tree"
)

// KeyOrder decides where overridden keys end up in a merged mapping.
type KeyOrder int

const (
	// KeepPosition leaves keys where the earliest document put them; only
	// keys new to the accumulator are appended. This is the default.
	KeepPosition KeyOrder = iota
	// MoveToEnd re-inserts every key of the incoming mapping at the end, in
	// incoming order, the way insertion-ordered hash maps do when a key is
	// written again.
	MoveToEnd
)

func (o KeyOrder) String() string {
	switch o {
	case KeepPosition:
		return "keep"
	case MoveToEnd:
		return "move"
	default:
		return fmt.Sprintf("KeyOrder(%d)", int(o))
	}
}

// ParseKeyOrder parses "keep" or "move".
func ParseKeyOrder(s string) (KeyOrder, error) {
	switch strings.ToLower(s) {
	case "keep", "":
		return KeepPosition, nil
	case "move":
		return MoveToEnd, nil
	default:
		return KeepPosition, fmt.Errorf("unknown key order %q: expected keep or move", s)
	}
}

// Merge returns incoming merged over base.
//
// When both nodes are mappings the result is a new mapping: base keys keep
// their position (values merged recursively when incoming also has the key)
// and keys only present in incoming are appended in incoming's order. For
// any other combination of kinds incoming wins verbatim, so sequences are
// replaced rather than concatenated and an explicit null overwrites.
//
// Merge takes ownership of both arguments: the result may share subtrees
// with either of them.
func Merge(base, incoming *tree.Node) *tree.Node {
	return MergeWithOrder(base, incoming, KeepPosition)
}

// MergeWithOrder is Merge with a choice of KeyOrder.
func MergeWithOrder(base, incoming *tree.Node, order KeyOrder) *tree.Node {
	if base.Kind() != tree.MappingKind || incoming.Kind() != tree.MappingKind {
		if incoming == nil {
			return tree.NewNull()
		}
		return incoming
	}

	out := tree.NewMapping()
	base.RangeEntries(func(be tree.Entry) bool {
		if iv, ok := incoming.GetEntry(be.KeyTag, be.Key); ok {
			if order == MoveToEnd {
				return true
			}
			be.Value = MergeWithOrder(be.Value, iv, order)
		}
		out.SetEntry(be)
		return true
	})
	incoming.RangeEntries(func(ie tree.Entry) bool {
		bv, inBase := base.GetEntry(ie.KeyTag, ie.Key)
		switch {
		case !inBase:
			out.SetEntry(ie)
		case order == MoveToEnd:
			ie.Value = MergeWithOrder(bv, ie.Value, order)
			out.SetEntry(ie)
		}
		return true
	})
	return out
}

// Fold merges docs left to right, later documents taking precedence. With no
// documents the result is an empty mapping; with one it is that document.
func Fold(docs ...*tree.Node) *tree.Node {
	return FoldWithOrder(KeepPosition, docs...)
}

// FoldWithOrder is Fold with a choice of KeyOrder.
func FoldWithOrder(order KeyOrder, docs ...*tree.Node) *tree.Node {
	if len(docs) == 0 {
		return tree.NewMapping()
	}
	acc := docs[0]
	if acc == nil {
		acc = tree.NewNull()
	}
	for _, doc := range docs[1:] {
		acc = MergeWithOrder(acc, doc, order)
	}
	return acc
}
