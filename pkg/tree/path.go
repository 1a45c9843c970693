package tree

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	SplitToken     = "."
	IndexOpenChar  = "["
	IndexCloseChar = "]"
)

var (
	ErrMalformedIndex   = errors.New("malformed index key")
	ErrKeyNotFound      = errors.New("unable to find the key")
	ErrIndexOutOfBounds = errors.New("index out of bounds")
	ErrInvalidType      = errors.New("invalid type for path")
	ErrEmptyPath        = errors.New("empty path")
)

// segment is one step of a path: either a mapping key or a sequence index.
type segment struct {
	key     string
	index   int
	isIndex bool
}

func (s segment) String() string {
	if s.isIndex {
		return IndexOpenChar + strconv.Itoa(s.index) + IndexCloseChar
	}
	return s.key
}

// parsePath splits "foo.bar[1].baz" into its segments.
func parsePath(path string) ([]segment, error) {
	var segs []segment
	for _, part := range strings.Split(path, SplitToken) {
		key, indices, err := parseIndex(part)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", err, part)
		}
		if key != "" {
			segs = append(segs, segment{key: key})
		} else if len(indices) == 0 {
			return nil, fmt.Errorf("%w: empty component in %q", ErrMalformedIndex, path)
		}
		for _, i := range indices {
			segs = append(segs, segment{index: i, isIndex: true})
		}
	}
	return segs, nil
}

// parseIndex splits "foo[0][2]" into "foo" and [0, 2].
func parseIndex(s string) (string, []int, error) {
	start := strings.Index(s, IndexOpenChar)
	if start == -1 {
		if strings.Contains(s, IndexCloseChar) {
			return "", nil, ErrMalformedIndex
		}
		return s, nil, nil
	}

	key := s[:start]
	var indices []int
	rest := s[start:]
	for rest != "" {
		if !strings.HasPrefix(rest, IndexOpenChar) {
			return "", nil, ErrMalformedIndex
		}
		end := strings.Index(rest, IndexCloseChar)
		if end == -1 {
			return "", nil, ErrMalformedIndex
		}
		i, err := strconv.Atoi(rest[1:end])
		if err != nil || i < 0 {
			return "", nil, ErrMalformedIndex
		}
		indices = append(indices, i)
		rest = rest[end+1:]
	}
	return key, indices, nil
}

// Lookup returns the node found at path. Keys are separated by "." and
// sequence items are addressed with "[<index>]", as in "spec.ports[0].name".
// An empty path returns n itself.
func (n *Node) Lookup(path string) (*Node, error) {
	if path == "" {
		return n, nil
	}
	segs, err := parsePath(path)
	if err != nil {
		return nil, err
	}

	cur := n
	for i, s := range segs {
		at := joinSegments(segs[:i+1])
		if s.isIndex {
			if !cur.IsSequence() {
				return nil, fmt.Errorf("%w: cannot index into %s at %s", ErrInvalidType, cur.Kind(), at)
			}
			next, ok := cur.Index(s.index)
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrIndexOutOfBounds, at)
			}
			cur = next
			continue
		}
		if !cur.IsMapping() {
			return nil, fmt.Errorf("%w: cannot lookup %q in %s", ErrKeyNotFound, s.key, cur.Kind())
		}
		next, ok := cur.Get(s.key)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, at)
		}
		cur = next
	}
	return cur, nil
}

// LookupFirst is the same as Lookup but tries several paths until one of
// them is found. It returns the node and the path where it was found.
func (n *Node) LookupFirst(paths []string) (*Node, string, error) {
	for _, p := range paths {
		if v, err := n.Lookup(p); err == nil {
			return v, p, nil
		}
	}
	return nil, "", fmt.Errorf("%w: one of %+v", ErrKeyNotFound, paths)
}

// SetPath stores value at path, creating intermediate mappings as needed and
// padding sequences with nulls. Intermediate values of the wrong kind are
// replaced. Keys keep their position when they already exist; new keys are
// appended. n must be a mapping (or a sequence when path starts with an
// index).
func (n *Node) SetPath(path string, value *Node) error {
	if path == "" {
		return ErrEmptyPath
	}
	segs, err := parsePath(path)
	if err != nil {
		return err
	}
	if segs[0].isIndex && !n.IsSequence() || !segs[0].isIndex && !n.IsMapping() {
		return fmt.Errorf("%w: cannot set %q on a %s root", ErrInvalidType, path, n.Kind())
	}

	if err := checkIndexGaps(n, segs); err != nil {
		return err
	}

	cur := n
	for i, s := range segs {
		last := i == len(segs)-1
		var child *Node
		if !last {
			child = containerFor(segs[i+1])
			if existing, ok := get(cur, s); ok && existing.Kind() == child.Kind() {
				child = existing
			}
		} else {
			child = value
		}
		if s.isIndex {
			cur.setIndex(s.index, child)
		} else {
			cur.Set(s.key, child)
		}
		cur = child
	}
	return nil
}

// MaxIndexGap is how far past the end of a sequence SetPath may write. The
// items in between are filled with nulls.
const MaxIndexGap = 1024

// checkIndexGaps walks the existing part of the tree along segs and fails
// before anything is modified when an index would pad a sequence by more
// than MaxIndexGap nulls.
func checkIndexGaps(n *Node, segs []segment) error {
	cur := n
	for i, s := range segs {
		if s.isIndex {
			length := 0
			if cur != nil && cur.IsSequence() {
				length = cur.Len()
			}
			if s.index > length+MaxIndexGap {
				return fmt.Errorf("%w: %s needs %d new items, at most %d are allowed",
					ErrIndexOutOfBounds, joinSegments(segs[:i+1]), s.index-length+1, MaxIndexGap+1)
			}
		}
		var next *Node
		if cur != nil && (s.isIndex && cur.IsSequence() || !s.isIndex && cur.IsMapping()) {
			next, _ = get(cur, s)
		}
		cur = next
	}
	return nil
}

func get(n *Node, s segment) (*Node, bool) {
	if s.isIndex {
		return n.Index(s.index)
	}
	return n.Get(s.key)
}

func containerFor(next segment) *Node {
	if next.isIndex {
		return NewSequence()
	}
	return NewMapping()
}

func joinSegments(segs []segment) string {
	var b strings.Builder
	for i, s := range segs {
		if i > 0 && !s.isIndex {
			b.WriteString(SplitToken)
		}
		b.WriteString(s.String())
	}
	return b.String()
}
