package source

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/psanford/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeMemFile(t *testing.T, mfs *memfs.FS, path string, data []byte) {
	t.Helper()
	if dir := filepath.Dir(path); dir != "." {
		require.NoError(t, mfs.MkdirAll(dir, 0o755))
	}
	require.NoError(t, mfs.WriteFile(path, data, 0o644))
}

func TestReader_Read_MemFS(t *testing.T) {
	t.Parallel()

	mfs := memfs.New()
	writeMemFile(t, mfs, "a.yaml", []byte("a: 1\n"))
	writeMemFile(t, mfs, "envs/prod/b.yaml", []byte("b: 2\n"))
	writeMemFile(t, mfs, "empty.yaml", nil)

	r := NewReader(WithFS(mfs), WithConcurrency(2))
	docs, err := r.Read(context.Background(), "envs/prod/b.yaml", "a.yaml", "empty.yaml")
	require.NoError(t, err)
	require.Len(t, docs, 3)

	assert.Equal(t, "envs/prod/b.yaml", docs[0].Name)
	assert.Equal(t, "b: 2\n", string(docs[0].Data))
	assert.Equal(t, "a.yaml", docs[1].Name)
	assert.Equal(t, "a: 1\n", string(docs[1].Data))
	assert.Empty(t, docs[2].Data)
}

func TestReader_Read_Errors(t *testing.T) {
	t.Parallel()

	mfs := memfs.New()
	writeMemFile(t, mfs, "a.yaml", []byte("a: 1\n"))
	require.NoError(t, mfs.MkdirAll("dir", 0o755))

	tests := []struct {
		name string
		file string
	}{
		{name: "missing", file: "missing.yaml"},
		{name: "directory", file: "dir"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(WithFS(mfs))
			_, err := r.Read(context.Background(), "a.yaml", tt.file)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInputUnreadable)

			var readErr *ReadError
			require.True(t, errors.As(err, &readErr))
			assert.Equal(t, tt.file, readErr.Name)
			assert.Contains(t, err.Error(), tt.file)
		})
	}
}

func TestReader_Stdin(t *testing.T) {
	t.Parallel()

	r := NewReader(WithStdin(strings.NewReader("a: 1\n")), WithFS(memfs.New()))

	docs, err := r.Read(context.Background(), Stdin)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, Stdin, docs[0].Name)
	assert.Equal(t, "a: 1\n", string(docs[0].Data))

	// a second read returns the same bytes
	again, err := r.ReadOne(Stdin)
	require.NoError(t, err)
	assert.Equal(t, "a: 1\n", string(again))
}

func TestReader_StdinUnavailable(t *testing.T) {
	t.Parallel()

	r := NewReader(WithStdin(nil))
	_, err := r.ReadOne(Stdin)
	assert.ErrorIs(t, err, ErrInputUnreadable)
	assert.Contains(t, err.Error(), "<stdin>")
}

func TestReader_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mfs := memfs.New()
	writeMemFile(t, mfs, "a.yaml", []byte("a: 1\n"))

	_, err := NewReader(WithFS(mfs)).Read(ctx, "a.yaml")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, ErrInputUnreadable)
}

func TestReader_Write_FSIsReadOnly(t *testing.T) {
	t.Parallel()

	r := NewReader(WithFS(memfs.New()))
	err := r.Write("out.yaml", []byte("a: 1\n"))
	assert.ErrorIs(t, err, errors.ErrUnsupported)
}

// memfsOps adapts a memfs.FS to FileOps so that writes land in memory too.
type memfsOps struct {
	fsys *memfs.FS
}

func (m memfsOps) Stat(name string) (fs.FileInfo, error) { return fs.Stat(m.fsys, name) }
func (m memfsOps) ReadFile(name string) ([]byte, error)  { return fs.ReadFile(m.fsys, name) }
func (m memfsOps) WriteFileAtomic(path string, data []byte, perm fs.FileMode) error {
	return m.fsys.WriteFile(path, data, perm)
}

func TestReader_WithFileOps(t *testing.T) {
	t.Parallel()

	mfs := memfs.New()
	r := NewReader(WithFileOps(memfsOps{fsys: mfs}))

	require.NoError(t, r.Write("merged.yaml", []byte("a: 1\n")))
	data, err := r.ReadOne("merged.yaml")
	require.NoError(t, err)
	assert.Equal(t, "a: 1\n", string(data))
}

func TestWriteFileAtomic(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "out.yaml")

	require.NoError(t, WriteFileAtomic(path, []byte("first\n"), 0o644))
	require.NoError(t, WriteFileAtomic(path, []byte("second\n"), 0o600))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second\n", string(data))

	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0o600), st.Mode().Perm())

	// no temp files left behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestReader_OS(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "values.yaml")

	r := NewReader()
	require.NoError(t, r.Write(path, []byte("a: 1\n")))

	docs, err := r.Read(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "a: 1\n", string(docs[0].Data))

	_, err = r.Read(context.Background(), filepath.Join(dir, "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
