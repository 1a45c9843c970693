package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/inercia/go-yaml-merger/pkg/config"
	"github.com/inercia/go-yaml-merger/pkg/logging"
	"github.com/inercia/go-yaml-merger/pkg/merge"
	"github.com/inercia/go-yaml-merger/pkg/source"
	"github.com/inercia/go-yaml-merger/pkg/watch"
)

// app holds the global flags and the state built from them.
type app struct {
	cfgFile     string
	logLevel    string
	logFormat   string
	set         []string
	indent      int
	concurrency int
	keyOrder    string

	// merge command only
	output string
	watch  bool

	cfg    *config.Config
	logger *slog.Logger

	// fileOps replaces the OS filesystem in tests
	fileOps source.FileOps
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "merger [flags] FILE...",
		Short: "Merge YAML files recursively and print the result",
		Long: `Merger merges YAML files recursively and prints the result back to the
terminal; it's useful for CI pipelines.

Files are merged left to right: later files override earlier ones. Mappings are
merged key by key, sequences and scalars are replaced. Use "-" to read a
document from standard input.`,
		Example: `  merger file-1.yml file-2.yaml file-n.yaml
  merger base.yaml prod.yaml --set image.tag=v2 -o merged.yaml`,
		Version:       Version,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return a.runMerge(cmd, args)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&a.cfgFile, "config", "c", "", "config file path (default "+config.DefaultFile+" when present)")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&a.logFormat, "log-format", "", "log format: text, json")
	pf.StringArrayVar(&a.set, "set", nil, "override a value after merging (path=value, can be repeated)")
	pf.IntVar(&a.indent, "indent", 0, "spaces per indentation level of the output")
	pf.StringVar(&a.keyOrder, "key-order", "", `where overridden keys go: "keep" their first position or "move" to the end`)
	pf.IntVar(&a.concurrency, "concurrency", 0, "maximum number of files read and parsed in parallel")

	rootCmd.Flags().StringVarP(&a.output, "output", "o", "", "write the merged document to this file instead of stdout")
	rootCmd.Flags().BoolVarP(&a.watch, "watch", "w", false, "merge again whenever an input file changes")

	rootCmd.AddCommand(
		newGetCmd(a),
		newVerifyCmd(a),
		newExtractCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the root command.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// setup loads the configuration, lets flags override it and builds the logger.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level = a.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = a.logFormat
	}
	if flags.Changed("indent") {
		cfg.Indent = a.indent
	}
	if flags.Changed("key-order") {
		cfg.KeyOrder = a.keyOrder
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency = a.concurrency
	}
	if flags.Changed("set") {
		cfg.Set = append(cfg.Set, a.set...)
	}
	if flags.Lookup("output") != nil && flags.Changed("output") {
		cfg.Output = a.output
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Writer: cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger
	return nil
}

func (a *app) newReader(cmd *cobra.Command) *source.Reader {
	opts := []source.Option{
		source.WithStdin(cmd.InOrStdin()),
		source.WithLogger(a.logger),
	}
	if a.cfg.Concurrency > 0 {
		opts = append(opts, source.WithConcurrency(a.cfg.Concurrency))
	}
	if a.fileOps != nil {
		opts = append(opts, source.WithFileOps(a.fileOps))
	}
	return source.NewReader(opts...)
}

func (a *app) newMerger() (*merge.Merger, error) {
	overrides := make([]merge.Override, 0, len(a.cfg.Set))
	for _, s := range a.cfg.Set {
		o, err := merge.ParseOverride(s)
		if err != nil {
			return nil, err
		}
		overrides = append(overrides, o)
	}

	order, err := merge.ParseKeyOrder(a.cfg.KeyOrder)
	if err != nil {
		return nil, err
	}

	opts := []merge.Option{
		merge.WithLogger(a.logger),
		merge.WithKeyOrder(order),
		merge.WithIndent(a.cfg.Indent),
		merge.WithOverrides(overrides...),
	}
	if a.cfg.Concurrency > 0 {
		opts = append(opts, merge.WithConcurrency(a.cfg.Concurrency))
	}
	return merge.New(opts...), nil
}

func (a *app) runMerge(cmd *cobra.Command, files []string) error {
	m, err := a.newMerger()
	if err != nil {
		return err
	}
	r := a.newReader(cmd)

	once := func(ctx context.Context) error {
		out, err := m.MergeFiles(ctx, r, files...)
		if err != nil {
			return err
		}
		return a.emit(cmd.OutOrStdout(), r, out)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := once(ctx); err != nil {
		return err
	}
	if !a.watch {
		return nil
	}
	return a.watchAndMerge(ctx, files, func() error {
		// stdin cannot be read twice: only files are watched and re-read
		return once(ctx)
	})
}

// emit writes the merged document to the configured output file, or to out.
func (a *app) emit(out io.Writer, r *source.Reader, data []byte) error {
	if a.cfg.Output == "" || a.cfg.Output == source.Stdin {
		_, err := out.Write(data)
		return err
	}
	return r.Write(a.cfg.Output, data)
}

func (a *app) watchAndMerge(ctx context.Context, files []string, onChange func() error) error {
	var watched []string
	for _, f := range files {
		if f != source.Stdin {
			watched = append(watched, f)
		}
	}
	if len(watched) == 0 {
		return fmt.Errorf("--watch needs at least one file argument")
	}

	w, err := watch.New(watched, time.Duration(a.cfg.Watch.Debounce), a.logger)
	if err != nil {
		return err
	}
	defer w.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return w.Watch(ctx, onChange)
}
