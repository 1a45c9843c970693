package yaml

import (
	"reflect"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/pmezard/go-difflib/difflib"
	syaml "sigs.k8s.io/yaml"

	"github.com/inercia/go-yaml-merger/pkg/tree"
)

// EqualYAMLs compares two YAML documents by unmarshalling them and comparing the resulting objects.
// Note well that this function does not take into account spaces, comments or
// the order of mapping keys: it only compares the contents.
func EqualYAMLs(a []byte, b []byte) (bool, error) {
	na, err := normalizeUnordered(a)
	if err != nil {
		return false, err
	}
	nb, err := normalizeUnordered(b)
	if err != nil {
		return false, err
	}
	return string(na) == string(nb), nil
}

// normalizeUnordered round-trips a document through sigs.k8s.io/yaml, which
// sorts mapping keys. Empty input normalizes to nothing.
func normalizeUnordered(b []byte) ([]byte, error) {
	if len(strings.TrimSpace(string(b))) == 0 {
		return nil, nil
	}
	var v any
	if err := syaml.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	return syaml.Marshal(v)
}

// EqualOrdered compares two YAML documents as trees: same structure, same
// scalar types and values and same key order. Formatting and comments are
// ignored.
func EqualOrdered(a []byte, b []byte) (bool, error) {
	ta, err := tree.ParseOne(a)
	if err != nil {
		return false, err
	}
	tb, err := tree.ParseOne(b)
	if err != nil {
		return false, err
	}
	return ta.Equal(tb), nil
}

// DiffOptions controls DiffYAML.
type DiffOptions struct {
	// IgnoreOrder compares documents with mapping keys sorted.
	IgnoreOrder bool
	// FromLabel and ToLabel name both sides in the diff header.
	FromLabel string
	ToLabel   string
	// Context is the number of unchanged lines shown around each change.
	Context int
}

// DiffOption is a functional option for DiffYAML.
type DiffOption func(*DiffOptions)

// WithIgnoreOrder makes DiffYAML insensitive to mapping key order.
func WithIgnoreOrder(ignore bool) DiffOption {
	return func(o *DiffOptions) { o.IgnoreOrder = ignore }
}

// WithLabels names the two documents in the diff header.
func WithLabels(from, to string) DiffOption {
	return func(o *DiffOptions) { o.FromLabel, o.ToLabel = from, to }
}

// WithContext sets the number of context lines.
func WithContext(lines int) DiffOption {
	return func(o *DiffOptions) { o.Context = lines }
}

func defaultDiffOptions() DiffOptions {
	return DiffOptions{FromLabel: "Expected", ToLabel: "Actual", Context: 3}
}

// DiffYAML returns a unified diff between two YAML documents, or "" when they
// are equal. By default both sides are rendered as canonical YAML trees; with
// IgnoreOrder they are decoded into Go values and dumped with sorted keys, so
// the diff also shows the decoded types. Documents that cannot be parsed are
// diffed as raw text.
func DiffYAML(a []byte, b []byte, opts ...DiffOption) string {
	options := defaultDiffOptions()
	for _, opt := range opts {
		opt(&options)
	}

	decode := decodeOrdered
	if options.IgnoreOrder {
		decode = decodeUnordered
	}
	va, errA := decode(a)
	vb, errB := decode(b)
	if errA != nil || errB != nil {
		va, vb = string(a), string(b)
	}

	ra, rb := render(va), render(vb)
	if ra == rb {
		return ""
	}
	return unifiedDiff(ra, options.FromLabel, rb, options.ToLabel, options.Context)
}

func decodeOrdered(b []byte) (any, error) {
	return tree.ParseOne(b)
}

func decodeUnordered(b []byte) (any, error) {
	if len(strings.TrimSpace(string(b))) == 0 {
		return nil, nil
	}
	var v any
	if err := syaml.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	return v, nil
}

/////////////////////////////////////////////////////////////////////////////////////

var spewConfig = spew.ConfigState{
	Indent:                  " ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
	DisableMethods:          true,
	MaxDepth:                10,
}

var spewConfigStringerEnabled = spew.ConfigState{
	Indent:                  " ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
	MaxDepth:                10,
}

func typeAndKind(v interface{}) (reflect.Type, reflect.Kind) {
	t := reflect.TypeOf(v)
	k := t.Kind()

	if k == reflect.Ptr {
		t = t.Elem()
		k = t.Kind()
	}
	return t, k
}

// Diff returns a diff between two values of the same type, for test and
// log messages.
func Diff(previous interface{}, actual interface{}) string {
	return DiffWithDescription(previous, "Previous", actual, "Actual")
}

// DiffWithDescription is Diff with custom labels. Trees are compared through
// their YAML rendering; other values are dumped with spew.
func DiffWithDescription(previous interface{}, previousStr string, actual interface{}, actualStr string) string {
	if previous == nil || actual == nil {
		return ""
	}

	et, ek := typeAndKind(previous)
	at, _ := typeAndKind(actual)

	if et != at {
		return ""
	}

	if ek != reflect.Struct && ek != reflect.Map && ek != reflect.Slice && ek != reflect.Array && ek != reflect.String {
		return ""
	}

	return unifiedDiff(render(previous), previousStr, render(actual), actualStr, 1)
}

// render turns a value into the text being diffed: strings as they are, trees
// as YAML and anything else as a spew dump.
func render(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case *tree.Node, tree.Node:
		n := asNode(t)
		if n == nil {
			return ""
		}
		return n.String()
	case time.Time, *time.Time:
		return spewConfigStringerEnabled.Sdump(t)
	default:
		return spewConfig.Sdump(t)
	}
}

func asNode(v interface{}) *tree.Node {
	switch n := v.(type) {
	case *tree.Node:
		return n
	case tree.Node:
		return &n
	}
	return nil
}

func unifiedDiff(a, aLabel, b, bLabel string, context int) string {
	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(a),
		B:        difflib.SplitLines(b),
		FromFile: aLabel,
		FromDate: "",
		ToFile:   bLabel,
		ToDate:   "",
		Context:  context,
	})
	return diff
}
