package yaml

import (
	"errors"

	"github.com/inercia/go-yaml-merger/pkg/merge"
	"github.com/inercia/go-yaml-merger/pkg/tree"
)

// ErrNotEnoughDocuments is returned by ExtractCommonN with fewer than two
// documents.
var ErrNotEnoughDocuments = errors.New("need at least 2 documents")

// Options controls how common structures are extracted.
//
// IncludeEqualListsInCommon controls whether lists (YAML sequences) that are
// exactly equal in both inputs are considered part of the common structure.
// If false, even equal lists will remain in the updated outputs instead of in
// the common output. Default is true.
type Options struct {
	IncludeEqualListsInCommon bool
}

// Option is a functional option for ExtractCommon.
type Option func(*Options)

// WithIncludeEqualListsInCommon sets whether equal lists should be considered common.
func WithIncludeEqualListsInCommon(include bool) Option {
	return func(o *Options) { o.IncludeEqualListsInCommon = include }
}

func defaultOptions() Options {
	return Options{IncludeEqualListsInCommon: true}
}

// ExtractCommon computes the common structure between two document trees and
// returns three trees:
//  1. the common structure
//  2. the first document with the common structure removed
//  3. the second document with the common structure removed
//
// Key order follows the first document. The operation satisfies the merge
// property: merge.Merge(common, remainder) has the same content as the
// original (keys that were interleaved with common ones may come out later).
// Documents whose roots are not both mappings have nothing in common.
// The inputs are not modified.
func ExtractCommon(a, b *tree.Node, opts ...Option) (common, ra, rb *tree.Node) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	if !a.IsMapping() || !b.IsMapping() {
		return tree.NewMapping(), cloneOrNull(a), cloneOrNull(b)
	}

	c, r1, r2 := extractCommonValue(a.Clone(), b.Clone(), options)
	return docRoot(c), docRoot(r1), docRoot(r2)
}

// ExtractCommonN is ExtractCommon for several documents: the common part is
// what all of them share, and one remainder is returned per document.
func ExtractCommonN(docs []*tree.Node, opts ...Option) (*tree.Node, []*tree.Node, error) {
	if len(docs) < 2 {
		return nil, nil, ErrNotEnoughDocuments
	}

	common := docs[0]
	for _, d := range docs[1:] {
		common, _, _ = ExtractCommon(common, d, opts...)
	}

	remainders := make([]*tree.Node, len(docs))
	for i, d := range docs {
		_, _, remainders[i] = ExtractCommon(common, d, opts...)
	}
	return common, remainders, nil
}

// ExtractCommonYAML is ExtractCommon over raw YAML, returning rendered YAML.
func ExtractCommonYAML(yaml1, yaml2 []byte, opts ...Option) ([]byte, []byte, []byte, error) {
	a, err := parseDoc(yaml1)
	if err != nil {
		return nil, nil, nil, err
	}
	b, err := parseDoc(yaml2)
	if err != nil {
		return nil, nil, nil, err
	}

	common, r1, r2 := ExtractCommon(a, b, opts...)

	commonY, err := tree.Marshal(common)
	if err != nil {
		return nil, nil, nil, err
	}
	r1Y, err := tree.Marshal(r1)
	if err != nil {
		return nil, nil, nil, err
	}
	r2Y, err := tree.Marshal(r2)
	if err != nil {
		return nil, nil, nil, err
	}
	return commonY, r1Y, r2Y, nil
}

func parseDoc(b []byte) (*tree.Node, error) {
	n, err := tree.ParseOne(b)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return tree.NewMapping(), nil
	}
	return n, nil
}

// extractCommonValue returns the common part between a and b, and the remainders
// of a and b after removing the common part. A nil result means "nothing
// here" and is different from a Null node.
func extractCommonValue(a, b *tree.Node, options Options) (common, ra, rb *tree.Node) {
	if a.IsMapping() && b.IsMapping() {
		return extractCommonMapping(a, b, options)
	}

	if a.IsSequence() && b.IsSequence() && !options.IncludeEqualListsInCommon {
		// No partial extraction from lists; treat as entirely different
		return nil, a, b
	}

	if a.Equal(b) {
		return a, nil, nil
	}
	return nil, a, b
}

func extractCommonMapping(a, b *tree.Node, options Options) (common, ra, rb *tree.Node) {
	cMap := tree.NewMapping()
	raMap := tree.NewMapping()
	rbMap := tree.NewMapping()

	a.RangeEntries(func(ae tree.Entry) bool {
		bv, ok := b.GetEntry(ae.KeyTag, ae.Key)
		if !ok {
			raMap.SetEntry(ae)
			return true
		}
		cc, rra, rrb := extractCommonValue(ae.Value, bv, options)
		if cc != nil {
			cMap.SetEntry(tree.Entry{Key: ae.Key, KeyTag: ae.KeyTag, Value: cc})
		}
		if rra != nil {
			raMap.SetEntry(tree.Entry{Key: ae.Key, KeyTag: ae.KeyTag, Value: rra})
		}
		if rrb != nil {
			rbMap.SetEntry(tree.Entry{Key: ae.Key, KeyTag: ae.KeyTag, Value: rrb})
		}
		return true
	})
	b.RangeEntries(func(be tree.Entry) bool {
		if !a.HasEntry(be.KeyTag, be.Key) {
			rbMap.SetEntry(be)
		}
		return true
	})

	if cMap.Len() == 0 {
		if a.Len() == 0 && b.Len() == 0 {
			return cMap, nil, nil
		}
		// nothing shared: keep both sides, even when one of them is {}, so
		// the key survives a merge of the remainder
		return nil, raMap, rbMap
	}
	return cMap, mapOrNil(raMap), mapOrNil(rbMap)
}

func mapOrNil(m *tree.Node) *tree.Node {
	if m.Len() == 0 {
		return nil
	}
	return m
}

func cloneOrNull(n *tree.Node) *tree.Node {
	if n == nil {
		return tree.NewNull()
	}
	return n.Clone()
}

// docRoot represents absent documents as {} rather than null.
func docRoot(n *tree.Node) *tree.Node {
	if n == nil {
		return tree.NewMapping()
	}
	return n
}

// MergeYAML merges two YAML documents in-memory with the same engine used for
// merging files: overlay wins on conflicts. It is mostly useful to check that
// merge(common, remainder) reconstructs an original.
func MergeYAML(baseYAML, overlayYAML []byte) ([]byte, error) {
	return merge.MergeYAML(baseYAML, overlayYAML)
}
