package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/inercia/go-yaml-merger/pkg/logging"
)

// Stdin is the document name that reads from standard input.
const Stdin = "-"

// ErrInputUnreadable is matched by every error returned when the bytes of a
// document could not be obtained.
var ErrInputUnreadable = errors.New("input unreadable")

// Document is the raw text of one input, with the name it was read from.
type Document struct {
	Name string
	Data []byte
}

// ReadError reports which input could not be read.
type ReadError struct {
	Name string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("cannot read %s: %v", displayName(e.Name), e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

func (e *ReadError) Is(target error) bool { return target == ErrInputUnreadable }

func displayName(name string) string {
	if name == Stdin {
		return "<stdin>"
	}
	return fmt.Sprintf("%q", name)
}

///////////////////////////////////////////////////////////////////////////////
// file operations
///////////////////////////////////////////////////////////////////////////////

// FileOps abstracts the filesystem so callers (and tests) can run on top of
// in-memory filesystems.
type FileOps interface {
	Stat(name string) (fs.FileInfo, error)
	ReadFile(name string) ([]byte, error)
	WriteFileAtomic(path string, data []byte, perm fs.FileMode) error
}

// OSFileOps is the FileOps implementation backed by the os package.
type OSFileOps struct{}

func (OSFileOps) Stat(name string) (fs.FileInfo, error) { return os.Stat(name) }
func (OSFileOps) ReadFile(name string) ([]byte, error)  { return os.ReadFile(filepath.Clean(name)) }
func (OSFileOps) WriteFileAtomic(path string, data []byte, perm fs.FileMode) error {
	return WriteFileAtomic(path, data, perm)
}

// FSFileOps reads from an fs.FS. Writes are not supported.
type FSFileOps struct{ FS fs.FS }

func (f FSFileOps) Stat(name string) (fs.FileInfo, error) { return fs.Stat(f.FS, name) }
func (f FSFileOps) ReadFile(name string) ([]byte, error)  { return fs.ReadFile(f.FS, name) }
func (f FSFileOps) WriteFileAtomic(path string, _ []byte, _ fs.FileMode) error {
	return &fs.PathError{Op: "write", Path: path, Err: errors.ErrUnsupported}
}

///////////////////////////////////////////////////////////////////////////////
// reader
///////////////////////////////////////////////////////////////////////////////

type options struct {
	ops         FileOps
	stdin       io.Reader
	logger      *slog.Logger
	concurrency int
}

// Option is a functional option for NewReader.
type Option func(*options)

// WithFileOps replaces the filesystem used for reading and writing.
func WithFileOps(ops FileOps) Option {
	return func(o *options) { o.ops = ops }
}

// WithFS reads documents from fsys.
func WithFS(fsys fs.FS) Option {
	return func(o *options) { o.ops = FSFileOps{FS: fsys} }
}

// WithStdin sets the stream used for the "-" document.
func WithStdin(r io.Reader) Option {
	return func(o *options) { o.stdin = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithConcurrency bounds the number of files read at the same time.
func WithConcurrency(n int) Option {
	return func(o *options) { o.concurrency = n }
}

// Reader loads documents by name.
type Reader struct {
	ops         FileOps
	stdin       io.Reader
	logger      *slog.Logger
	concurrency int

	stdinOnce sync.Once
	stdinData []byte
	stdinErr  error
}

// NewReader creates a Reader, by default on the OS filesystem and os.Stdin.
func NewReader(opts ...Option) *Reader {
	o := options{
		ops:         OSFileOps{},
		stdin:       os.Stdin,
		logger:      logging.Discard(),
		concurrency: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.concurrency <= 0 {
		o.concurrency = 1
	}
	return &Reader{
		ops:         o.ops,
		stdin:       o.stdin,
		logger:      o.logger,
		concurrency: o.concurrency,
	}
}

// Read loads every named document. Files are read concurrently but the
// result keeps the order of names. The first failure cancels the rest and is
// returned as a *ReadError.
func (r *Reader) Read(ctx context.Context, names ...string) ([]Document, error) {
	docs := make([]Document, len(names))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, name := range names {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return &ReadError{Name: name, Err: err}
			}
			data, err := r.ReadOne(name)
			if err != nil {
				return err
			}
			docs[i] = Document{Name: name, Data: data}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}

// ReadOne loads a single document. "-" reads standard input; reading it more
// than once returns the same bytes.
func (r *Reader) ReadOne(name string) ([]byte, error) {
	if name == Stdin {
		r.stdinOnce.Do(func() {
			if r.stdin == nil {
				r.stdinErr = errors.New("no standard input available")
				return
			}
			r.stdinData, r.stdinErr = io.ReadAll(r.stdin)
		})
		if r.stdinErr != nil {
			return nil, &ReadError{Name: name, Err: r.stdinErr}
		}
		r.logger.Debug("read document", "name", name, "bytes", len(r.stdinData))
		return r.stdinData, nil
	}

	st, err := r.ops.Stat(name)
	if err != nil {
		return nil, &ReadError{Name: name, Err: err}
	}
	if st.IsDir() {
		return nil, &ReadError{Name: name, Err: fmt.Errorf("path is a directory, expected file")}
	}
	data, err := r.ops.ReadFile(name)
	if err != nil {
		return nil, &ReadError{Name: name, Err: err}
	}
	r.logger.Debug("read document", "name", name, "bytes", len(data))
	return data, nil
}

// Write stores data at path through the reader's FileOps.
func (r *Reader) Write(path string, data []byte) error {
	if err := r.ops.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	r.logger.Debug("wrote document", "name", path, "bytes", len(data))
	return nil
}

// WriteFileAtomic writes data to a temp file in the same directory and renames it in place.
func WriteFileAtomic(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".merger-*.tmp")
	if err != nil {
		return err
	}
	name := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(name)
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}

	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(name, path)
}
