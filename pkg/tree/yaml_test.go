package tree

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		wantDocs int
		wantErr  error
	}{
		{name: "empty", input: "", wantDocs: 0},
		{name: "whitespace", input: "\n\n  \n", wantDocs: 0},
		{name: "comments only", input: "# nothing here\n", wantDocs: 0},
		{name: "single document", input: "a: 1\n", wantDocs: 1},
		{name: "explicit start", input: "---\na: 1\n", wantDocs: 1},
		{name: "two documents", input: "a: 1\n---\nb: 2\n", wantDocs: 2},
		{name: "json", input: `{"a": [1, 2], "b": null}`, wantDocs: 1},
		{name: "scalar document", input: "hello\n", wantDocs: 1},
		{name: "duplicate key", input: "a: 1\na: 2\n", wantErr: ErrDuplicateKey},
		{name: "duplicate typed key", input: "1: a\n1: b\n", wantErr: ErrDuplicateKey},
		{name: "same text different key types", input: "1: int-key\n\"1\": str-key\n", wantDocs: 1},
		{name: "complex key", input: "? [a, b]\n: v\n", wantErr: ErrComplexKey},
		{name: "recursive alias", input: "a: &x [1, *x]\n", wantErr: ErrRecursiveAlias},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := Parse([]byte(tt.input))
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, docs, tt.wantDocs)
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	t.Parallel()

	for _, input := range []string{
		"a: [1, 2\n",
		"a: b: c\n",
		"{unterminated",
	} {
		_, err := Parse([]byte(input))
		assert.Error(t, err, "input %q", input)
	}
}

func TestParse_PreservesKeyOrder(t *testing.T) {
	t.Parallel()

	n := MustParse("zeta: 1\nalpha: 2\nmid: 3\n")
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, n.Keys())

	j := MustParse(`{"b": 1, "a": [true, null]}`)
	assert.Equal(t, []string{"b", "a"}, j.Keys())
	second, err := j.Lookup("a[1]")
	require.NoError(t, err)
	assert.True(t, second.IsNull())
}

func TestParse_ScalarTags(t *testing.T) {
	t.Parallel()

	n := MustParse(`
s: hello
q: "1"
i: 1
f: 1.5
b: true
n: null
t: 2001-12-14
`)
	tests := []struct {
		key string
		tag string
	}{
		{"s", StrTag},
		{"q", StrTag},
		{"i", IntTag},
		{"f", FloatTag},
		{"b", BoolTag},
		{"n", NullTag},
		{"t", TimestampTag},
	}
	for _, tt := range tests {
		v, ok := n.Get(tt.key)
		require.True(t, ok, tt.key)
		assert.Equal(t, tt.tag, v.Tag(), tt.key)
	}
}

func TestParse_Aliases(t *testing.T) {
	t.Parallel()

	n := MustParse(`
base: &base
  image: nginx
  port: 80
copy: *base
merged:
  <<: *base
  port: 8080
`)
	base, _ := n.Get("base")
	cp, _ := n.Get("copy")
	assert.True(t, base.Equal(cp))

	// expanded copies, not shared nodes
	base.Set("image", NewString("httpd"))
	image, err := n.Lookup("copy.image")
	require.NoError(t, err)
	assert.Equal(t, "nginx", image.Value())

	// merge keys stay ordinary keys
	merged, _ := n.Get("merged")
	assert.Equal(t, []string{"<<", "port"}, merged.Keys())
}

func TestParse_TypedKeys(t *testing.T) {
	t.Parallel()

	n := MustParse("200: ok\ntrue: flag\n1.5: half\nname: x\n")
	entries := n.Entries()
	require.Len(t, entries, 4)
	assert.Equal(t, IntTag, entries[0].KeyTag)
	assert.Equal(t, BoolTag, entries[1].KeyTag)
	assert.Equal(t, FloatTag, entries[2].KeyTag)
	assert.Equal(t, StrTag, entries[3].KeyTag)

	out, err := Marshal(n)
	require.NoError(t, err)
	assert.Equal(t, "200: ok\ntrue: flag\n1.5: half\nname: x\n", string(out))

	// plain lookups fall back to keys of other types with the same text
	v, ok := n.Get("200")
	require.True(t, ok)
	assert.Equal(t, "ok", v.Value())
	_, ok = n.GetEntry(StrTag, "200")
	assert.False(t, ok)
}

func TestParse_SameTextDifferentKeyTypes(t *testing.T) {
	t.Parallel()

	n := MustParse("1: int-key\n\"1\": str-key\n")
	assert.Equal(t, []string{"1", "1"}, n.Keys())

	v, ok := n.Get("1")
	require.True(t, ok)
	assert.Equal(t, "str-key", v.Value(), "the string key wins plain lookups")

	v, ok = n.GetEntry(IntTag, "1")
	require.True(t, ok)
	assert.Equal(t, "int-key", v.Value())

	out, err := Marshal(n)
	require.NoError(t, err)
	assert.Equal(t, "1: int-key\n\"1\": str-key\n", string(out))
	assert.True(t, n.Equal(MustParse(string(out))))
}

// aliasChain returns a document where each level holds width aliases of the
// previous one.
func aliasChain(levels, width int) string {
	var b strings.Builder
	b.WriteString("l0: &l0 [")
	for i := 0; i < width; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("x")
	}
	b.WriteString("]\n")
	for l := 1; l <= levels; l++ {
		fmt.Fprintf(&b, "l%d: &l%d [", l, l)
		for i := 0; i < width; i++ {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "*l%d", l-1)
		}
		b.WriteString("]\n")
	}
	return b.String()
}

func TestParse_AliasExpansionLimit(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte(aliasChain(4, 10)))
	assert.ErrorIs(t, err, ErrAliasExpansion)

	_, err = Parse([]byte(aliasChain(8, 10)))
	assert.ErrorIs(t, err, ErrAliasExpansion)

	// moderate reuse of anchors is fine
	docs, err := Parse([]byte(aliasChain(2, 5)))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	l2, err := docs[0].Lookup("l2[4][4][4]")
	require.NoError(t, err)
	assert.Equal(t, "x", l2.Value())

	var b strings.Builder
	b.WriteString("base: &base {image: app, port: 80}\n")
	for i := 0; i < 200; i++ {
		fmt.Fprintf(&b, "svc%d: *base\n", i)
	}
	docs, err = Parse([]byte(b.String()))
	require.NoError(t, err)
	assert.Equal(t, 201, docs[0].Len())
}

func TestParseOne(t *testing.T) {
	t.Parallel()

	n, err := ParseOne(nil)
	require.NoError(t, err)
	assert.Nil(t, n)

	n, err = ParseOne([]byte("a: 1"))
	require.NoError(t, err)
	assert.True(t, n.IsMapping())

	_, err = ParseOne([]byte("a: 1\n---\nb: 2\n"))
	assert.ErrorIs(t, err, ErrMultipleDocuments)

	assert.True(t, MustParse("").IsNull())
	assert.Panics(t, func() { MustParse("a: [") })
}

func TestMarshal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		n    *Node
		want string
	}{
		{name: "null root", n: NewNull(), want: "null\n"},
		{name: "nil root", n: nil, want: "null\n"},
		{name: "empty mapping", n: NewMapping(), want: "{}\n"},
		{name: "empty sequence", n: NewSequence(), want: "[]\n"},
		{name: "scalar root", n: NewString("hello"), want: "hello\n"},
		{
			name: "string that looks like an int is quoted",
			n:    NewMappingFrom(Entry{Key: "a", Value: NewString("1")}, Entry{Key: "b", Value: NewInt(1)}),
			want: "a: \"1\"\nb: 1\n",
		},
		{
			name: "null value",
			n:    NewMappingFrom(Entry{Key: "a", Value: NewNull()}),
			want: "a: null\n",
		},
		{
			name: "nested",
			n:    MustParse("bar:\n  foo: test\n  list: [foo, bar]\n"),
			want: "bar:\n  foo: test\n  list:\n    - foo\n    - bar\n",
		},
		{
			name: "keys in tree order",
			n:    MustParse("z: 1\na: 2\n"),
			want: "z: 1\na: 2\n",
		},
		{
			name: "empty collections inside",
			n:    MustParse("a: {}\nb: []\n"),
			want: "a: {}\nb: []\n",
		},
		{
			name: "timestamp",
			n:    MustParse("t: 2001-12-14\n"),
			want: "t: 2001-12-14\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Marshal(tt.n)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(out))
		})
	}
}

func TestMarshal_Indent(t *testing.T) {
	t.Parallel()

	n := MustParse("a:\n  b: 1\n")

	out, err := Marshal(n, WithIndent(4))
	require.NoError(t, err)
	assert.Equal(t, "a:\n    b: 1\n", string(out))

	out, err = Marshal(n, WithIndent(0))
	require.NoError(t, err)
	assert.Equal(t, "a:\n  b: 1\n", string(out))
}

func TestMarshal_RoundTrip(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"a: 1\nb:\n  c: [x, 'y', \"3\"]\n  d: ~\n",
		"- 1\n- two\n- {three: 3}\n",
		"key with spaces: value\n'123': numeric key\n",
		"f: 1.0e+3\nneg: -7\n",
	}
	for _, in := range inputs {
		n := MustParse(in)
		out, err := Marshal(n)
		require.NoError(t, err)

		back := MustParse(string(out))
		assert.True(t, n.Equal(back), "round trip of %q gave %q", in, out)

		// deterministic
		again, err := Marshal(back)
		require.NoError(t, err)
		assert.Equal(t, string(out), string(again))
	}
}

func TestEncode(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, MustParse("a: 1")))
	assert.Equal(t, "a: 1\n", buf.String())
}

func TestNode_YAMLInterop(t *testing.T) {
	t.Parallel()

	type wrapper struct {
		Name  string `yaml:"name"`
		Value *Node  `yaml:"value"`
	}

	out, err := yaml.Marshal(wrapper{Name: "x", Value: MustParse("b: 1\na: 2\n")})
	require.NoError(t, err)
	assert.Equal(t, "name: x\nvalue:\n    b: 1\n    a: 2\n", string(out))

	var back wrapper
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.Equal(t, []string{"b", "a"}, back.Value.Keys())
}
