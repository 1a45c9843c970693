package merge

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/inercia/go-yaml-merger/pkg/logging"
	"github.com/inercia/go-yaml-merger/pkg/source"
	"github.com/inercia/go-yaml-merger/pkg/tree"
)

// Override sets Value at Path once every document has been merged.
type Override struct {
	Path  string
	Value *tree.Node
}

// ParseOverride parses "path=value". The value is read as a YAML scalar or
// flow collection ("3" is an int, "[a, b]" a sequence); an empty value is the
// empty string.
func ParseOverride(s string) (Override, error) {
	path, raw, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(path) == "" {
		return Override{}, fmt.Errorf("%w: expected path=value, got %q", ErrInvalidOverride, s)
	}
	path = strings.TrimSpace(path)
	if raw == "" {
		return Override{Path: path, Value: tree.NewString("")}, nil
	}
	v, err := tree.ParseOne([]byte(raw))
	if err != nil {
		return Override{}, fmt.Errorf("%w: value of %s: %v", ErrInvalidOverride, path, err)
	}
	if v == nil {
		v = tree.NewNull()
	}
	return Override{Path: path, Value: v}, nil
}

// mergerConfig holds the settings gathered from Option values.
type mergerConfig struct {
	logger      *slog.Logger
	indent      int
	overrides   []Override
	concurrency int
	keyOrder    KeyOrder
}

// Option is a functional option for New.
type Option func(*mergerConfig)

func WithLogger(l *slog.Logger) Option {
	return func(c *mergerConfig) { c.logger = l }
}

// WithIndent sets the number of spaces per nesting level of the output.
func WithIndent(spaces int) Option {
	return func(c *mergerConfig) { c.indent = spaces }
}

// WithOverrides applies the given overrides, in order, after all documents.
func WithOverrides(overrides ...Override) Option {
	return func(c *mergerConfig) { c.overrides = append(c.overrides, overrides...) }
}

// WithConcurrency bounds how many documents are parsed at the same time.
// Merging itself is always sequential.
func WithConcurrency(n int) Option {
	return func(c *mergerConfig) { c.concurrency = n }
}

// WithKeyOrder selects where overridden keys end up. See KeyOrder.
func WithKeyOrder(order KeyOrder) Option {
	return func(c *mergerConfig) { c.keyOrder = order }
}

// Merger runs the parse, fold and serialize pipeline.
type Merger struct {
	cfg mergerConfig
}

// New creates a Merger.
func New(opts ...Option) *Merger {
	cfg := mergerConfig{
		logger:      logging.Discard(),
		indent:      tree.DefaultIndent,
		concurrency: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.concurrency <= 0 {
		cfg.concurrency = 1
	}
	return &Merger{cfg: cfg}
}

// Parse converts every input into trees. Inputs are parsed concurrently; the
// result keeps their order. An input may hold zero documents (empty text) or
// several ("---" separated), which are merged in stream order.
func (m *Merger) Parse(ctx context.Context, docs []source.Document) ([][]*tree.Node, error) {
	parsed := make([][]*tree.Node, len(docs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.concurrency)
	for i, doc := range docs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			nodes, err := tree.Parse(doc.Data)
			if err != nil {
				return &DocumentError{Index: i, Name: doc.Name, Err: err}
			}
			parsed[i] = nodes
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return parsed, nil
}

// MergeTree parses and merges docs, returning the merged tree.
func (m *Merger) MergeTree(ctx context.Context, docs []source.Document) (*tree.Node, error) {
	parsed, err := m.Parse(ctx, docs)
	if err != nil {
		return nil, err
	}

	var acc *tree.Node
	for i, nodes := range parsed {
		if len(nodes) == 0 {
			m.cfg.logger.Debug("skipping document without content", "index", i, "name", docs[i].Name)
			continue
		}
		for _, n := range nodes {
			if acc == nil {
				acc = n
				continue
			}
			acc = MergeWithOrder(acc, n, m.cfg.keyOrder)
		}
		m.cfg.logger.Debug("merged document",
			"index", i,
			"name", docs[i].Name,
			"documents", len(nodes),
			"kind", acc.Kind().String(),
		)
	}
	if acc == nil {
		acc = Fold()
	}

	for _, o := range m.cfg.overrides {
		if err := acc.SetPath(o.Path, o.Value.Clone()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidOverride, o.Path, err)
		}
		m.cfg.logger.Debug("applied override", "path", o.Path)
	}
	return acc, nil
}

// MergeDocuments parses, merges and serializes docs. Any malformed document
// aborts the merge with a *DocumentError.
func (m *Merger) MergeDocuments(ctx context.Context, docs []source.Document) ([]byte, error) {
	merged, err := m.MergeTree(ctx, docs)
	if err != nil {
		return nil, err
	}
	out, err := tree.Marshal(merged, tree.WithIndent(m.cfg.indent))
	if err != nil {
		return nil, fmt.Errorf("serializing merged document: %w", err)
	}
	m.cfg.logger.Info("merged documents", "count", len(docs), "bytes", len(out))
	return out, nil
}

// MergeFiles reads the named inputs with r and merges them.
func (m *Merger) MergeFiles(ctx context.Context, r *source.Reader, names ...string) ([]byte, error) {
	docs, err := r.Read(ctx, names...)
	if err != nil {
		return nil, err
	}
	return m.MergeDocuments(ctx, docs)
}

// MergeYAML merges raw YAML documents with the default settings.
func MergeYAML(docs ...[]byte) ([]byte, error) {
	in := make([]source.Document, len(docs))
	for i, d := range docs {
		in[i] = source.Document{Data: d}
	}
	return New().MergeDocuments(context.Background(), in)
}
