package tree

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pathDoc = `
image:
  repository: nginx
  tag: "1.25"
ports:
  - name: http
    port: 80
  - name: https
    port: 443
matrix:
  - [1, 2]
  - [3, 4]
`

func TestParseIndex(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		key     string
		indices []int
		wantErr bool
	}{
		{in: "foo", key: "foo"},
		{in: "foo[0]", key: "foo", indices: []int{0}},
		{in: "foo[1][2]", key: "foo", indices: []int{1, 2}},
		{in: "[3]", key: "", indices: []int{3}},
		{in: "foo[", wantErr: true},
		{in: "foo]", wantErr: true},
		{in: "foo[a]", wantErr: true},
		{in: "foo[-1]", wantErr: true},
		{in: "foo[1]x", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			key, indices, err := parseIndex(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedIndex)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.key, key)
			assert.Equal(t, tt.indices, indices)
		})
	}
}

func TestNode_Lookup(t *testing.T) {
	t.Parallel()

	doc := MustParse(pathDoc)

	tests := []struct {
		name    string
		path    string
		want    string
		wantErr error
	}{
		{name: "nested key", path: "image.repository", want: "nginx"},
		{name: "quoted string", path: "image.tag", want: "1.25"},
		{name: "sequence item", path: "ports[1].port", want: "443"},
		{name: "nested sequences", path: "matrix[1][0]", want: "3"},
		{name: "missing key", path: "image.digest", wantErr: ErrKeyNotFound},
		{name: "out of bounds", path: "ports[5]", wantErr: ErrIndexOutOfBounds},
		{name: "index into mapping", path: "image[0]", wantErr: ErrInvalidType},
		{name: "key into scalar", path: "image.tag.major", wantErr: ErrKeyNotFound},
		{name: "malformed", path: "ports[x]", wantErr: ErrMalformedIndex},
		{name: "empty component", path: "image..tag", wantErr: ErrMalformedIndex},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := doc.Lookup(tt.path)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Value())
		})
	}

	self, err := doc.Lookup("")
	require.NoError(t, err)
	assert.Same(t, doc, self)
}

func TestNode_LookupFirst(t *testing.T) {
	t.Parallel()

	doc := MustParse(pathDoc)

	v, found, err := doc.LookupFirst([]string{"image.name", "image.repository"})
	require.NoError(t, err)
	assert.Equal(t, "image.repository", found)
	assert.Equal(t, "nginx", v.Value())

	_, _, err = doc.LookupFirst([]string{"a", "b"})
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestNode_SetPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		doc   string
		path  string
		value *Node
		want  string
	}{
		{
			name:  "replace keeps position",
			doc:   "a: 1\nb: 2\n",
			path:  "a",
			value: NewInt(3),
			want:  "a: 3\nb: 2\n",
		},
		{
			name:  "new key is appended",
			doc:   "a: 1\n",
			path:  "c",
			value: NewString("x"),
			want:  "a: 1\nc: x\n",
		},
		{
			name:  "creates intermediate mappings",
			doc:   "a: 1\n",
			path:  "b.c.d",
			value: NewBool(true),
			want:  "a: 1\nb:\n  c:\n    d: true\n",
		},
		{
			name:  "reuses existing mappings",
			doc:   "b:\n  x: 1\n",
			path:  "b.w",
			value: NewInt(2),
			want:  "b:\n  x: 1\n  w: 2\n",
		},
		{
			name:  "replaces scalars on the way",
			doc:   "b: scalar\n",
			path:  "b.w",
			value: NewInt(2),
			want:  "b:\n  w: 2\n",
		},
		{
			name:  "sets a sequence item",
			doc:   "l: [a, b]\n",
			path:  "l[1]",
			value: NewString("c"),
			want:  "l:\n  - a\n  - c\n",
		},
		{
			name:  "pads sequences with nulls",
			doc:   "{}",
			path:  "l[2].name",
			value: NewString("x"),
			want:  "l:\n  - null\n  - null\n  - name: x\n",
		},
		{
			name:  "sets null",
			doc:   "a: 1\n",
			path:  "a",
			value: NewNull(),
			want:  "a: null\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := MustParse(tt.doc)
			require.NoError(t, doc.SetPath(tt.path, tt.value))
			assert.Equal(t, tt.want, doc.String())
		})
	}
}

func TestNode_SetPath_Errors(t *testing.T) {
	t.Parallel()

	assert.ErrorIs(t, MustParse("a: 1").SetPath("", NewNull()), ErrEmptyPath)
	assert.ErrorIs(t, MustParse("a: 1").SetPath("a[x]", NewNull()), ErrMalformedIndex)
	assert.ErrorIs(t, MustParse("- 1").SetPath("a", NewNull()), ErrInvalidType)
	assert.ErrorIs(t, MustParse("a: 1").SetPath("[0]", NewNull()), ErrInvalidType)
	assert.ErrorIs(t, NewNull().SetPath("a", NewNull()), ErrInvalidType)

	seq := MustParse("- 1\n- 2\n")
	require.NoError(t, seq.SetPath("[0]", NewInt(9)))
	assert.Equal(t, "- 9\n- 2\n", seq.String())
}

func TestNode_SetPath_IndexGap(t *testing.T) {
	t.Parallel()

	doc := MustParse("list:\n  - a\nname: x\n")
	before := doc.String()

	err := doc.SetPath("list[1000000000]", NewString("x"))
	require.ErrorIs(t, err, ErrIndexOutOfBounds)
	assert.Equal(t, before, doc.String(), "a failed set leaves the tree untouched")

	err = doc.SetPath("other.items[5000].name", NewString("x"))
	require.ErrorIs(t, err, ErrIndexOutOfBounds)
	assert.Equal(t, before, doc.String(), "no intermediate containers are created")

	// the gap is measured from the current end of the sequence
	require.NoError(t, doc.SetPath(fmt.Sprintf("list[%d]", 1+MaxIndexGap), NewString("z")))
	list, err := doc.Lookup("list")
	require.NoError(t, err)
	assert.Equal(t, 2+MaxIndexGap, list.Len())

	require.NoError(t, doc.SetPath("fresh[3]", NewString("y")))
	fresh, err := doc.Lookup("fresh")
	require.NoError(t, err)
	assert.Equal(t, 4, fresh.Len())
}
