package yaml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Values files layered the way Helm layers -f flags: maps merge, everything
// else is replaced.
func TestMergeYAML_ValuesLayering(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		base   string
		over   string
		expect string
	}{
		{
			name: "scalar override and deep map merge",
			base: `
service:
  port: 80
  type: ClusterIP
feature: true
image: app:v1
`,
			over: `
service:
  type: NodePort
feature: false
image: app:v2
`,
			expect: "service:\n  port: 80\n  type: NodePort\nfeature: false\nimage: app:v2\n",
		},
		{
			name: "list replacement, not merge",
			base: `
arr: [1, 2]
nested:
  arr: [a, b]
`,
			over: `
arr: [9]
nested:
  arr: [x]
`,
			expect: "arr:\n  - 9\nnested:\n  arr:\n    - x\n",
		},
		{
			name:   "null keeps the key",
			base:   "route53:\n  zone: example.com\nconfig: 1234\n",
			over:   "route53: null\n",
			expect: "route53: null\nconfig: 1234\n",
		},
		{
			name:   "new keys are appended",
			base:   "a: 1\n",
			over:   "c: 3\nb: 2\n",
			expect: "a: 1\nc: 3\nb: 2\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MergeYAML([]byte(tt.base), []byte(tt.over))
			require.NoError(t, err)
			assert.Equal(t, tt.expect, string(got))
		})
	}
}

func TestMergeYAML_MultiFileChain(t *testing.T) {
	t.Parallel()

	m1, err := MergeYAML([]byte("a: 1\nb:\n  c: 1\n"), []byte("a: 2\nb:\n  d: 2\n"))
	require.NoError(t, err)
	got, err := MergeYAML(m1, []byte("b:\n  c: 3\n"))
	require.NoError(t, err)
	assert.Equal(t, "a: 2\nb:\n  c: 3\n  d: 2\n", string(got))
}
