package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/inercia/go-yaml-merger/pkg/config"
	yamllib "github.com/inercia/go-yaml-merger/pkg/yaml"
)

var errMismatch = errors.New("merged result differs from the expected document")

func newVerifyCmd(a *app) *cobra.Command {
	var ignoreOrder bool

	cmd := &cobra.Command{
		Use:   "verify EXPECTED FILE...",
		Short: "Merge files and compare the result with an expected document",
		Long: `Merge files and compare the result with an expected document.

The comparison ignores formatting and comments but, unless --ignore-order is
given, not the order of keys. On mismatch a unified diff is printed and the
command fails. With --ignore-order the diff shows the decoded values, with
their types, in sorted key order.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.newMerger()
			if err != nil {
				return err
			}
			r := a.newReader(cmd)

			expected, err := r.ReadOne(args[0])
			if err != nil {
				return err
			}
			actual, err := m.MergeFiles(cmd.Context(), r, args[1:]...)
			if err != nil {
				return err
			}

			var equal bool
			if ignoreOrder {
				equal, err = yamllib.EqualYAMLs(expected, actual)
			} else {
				equal, err = yamllib.EqualOrdered(expected, actual)
			}
			if err != nil {
				return fmt.Errorf("comparing with %s: %w", args[0], err)
			}
			if equal {
				a.logger.Info("merged result matches", "expected", args[0])
				return nil
			}

			diff := yamllib.DiffYAML(expected, actual,
				yamllib.WithIgnoreOrder(ignoreOrder),
				yamllib.WithLabels(args[0], "merged"),
				yamllib.WithContext(a.cfg.Diff.ContextLines()),
			)
			out := cmd.OutOrStdout()
			writeDiff(out, diff, useColor(a.cfg.Diff.Color, out))
			return errMismatch
		},
	}
	cmd.Flags().BoolVar(&ignoreOrder, "ignore-order", false, "ignore the order of mapping keys")
	return cmd
}

// useColor resolves the color mode: "auto" colors only terminals.
func useColor(mode string, out io.Writer) bool {
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	}
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// writeDiff prints a unified diff, coloring additions, removals and hunk
// headers when enabled.
func writeDiff(out io.Writer, diff string, colored bool) {
	added := color.New(color.FgGreen)
	removed := color.New(color.FgRed)
	hunk := color.New(color.FgCyan)
	for _, c := range []*color.Color{added, removed, hunk} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	for _, line := range strings.SplitAfter(diff, "\n") {
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			fmt.Fprint(out, line)
		case strings.HasPrefix(line, "+"):
			added.Fprint(out, line)
		case strings.HasPrefix(line, "-"):
			removed.Fprint(out, line)
		case strings.HasPrefix(line, "@@"):
			hunk.Fprint(out, line)
		default:
			fmt.Fprint(out, line)
		}
	}
}
