package main

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inercia/go-yaml-merger/pkg/merge"
	"github.com/inercia/go-yaml-merger/pkg/source"
	"github.com/inercia/go-yaml-merger/pkg/tree"
	yamllib "github.com/inercia/go-yaml-merger/pkg/yaml"
)

// ErrNoCommon is returned when the files have no common structure.
var ErrNoCommon = errors.New("no common values found")

func newExtractCmd(a *app) *cobra.Command {
	var (
		commonPath   string
		inPlace      bool
		noEqualLists bool
	)

	cmd := &cobra.Command{
		Use:   "extract FILE1 FILE2 [FILE...]",
		Short: "Factor out the structure shared by several files",
		Long: `Factor out the structure shared by several files.

This is the inverse of merging: the common part and one remainder per file are
computed so that merging the common part with a remainder gives back the
content of the original file.

By default the common part and the remainders are printed as a multi-document
stream. With --in-place the common part is written to --common and every file
is rewritten with its remainder.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if inPlace && commonPath == "" {
				return fmt.Errorf("--in-place requires --common")
			}
			for _, f := range args {
				if f == source.Stdin && inPlace {
					return fmt.Errorf("cannot rewrite standard input in place")
				}
			}

			r := a.newReader(cmd)
			docs, err := r.Read(cmd.Context(), args...)
			if err != nil {
				return err
			}
			parsed, err := merge.New(merge.WithLogger(a.logger)).Parse(cmd.Context(), docs)
			if err != nil {
				return err
			}
			trees := make([]*tree.Node, len(parsed))
			for i, nodes := range parsed {
				if len(nodes) > 1 {
					return &merge.DocumentError{Index: i, Name: args[i], Err: tree.ErrMultipleDocuments}
				}
				trees[i] = merge.Fold(nodes...)
			}

			common, remainders, err := yamllib.ExtractCommonN(trees,
				yamllib.WithIncludeEqualListsInCommon(!noEqualLists))
			if err != nil {
				return err
			}
			if common.Len() == 0 {
				return ErrNoCommon
			}
			a.logger.Info("extracted common structure", "files", len(args), "keys", common.Len())

			indent := tree.WithIndent(a.cfg.Indent)
			if !inPlace {
				var buf bytes.Buffer
				fmt.Fprintln(&buf, "# common")
				if err := tree.Encode(&buf, common, indent); err != nil {
					return err
				}
				for i, rem := range remainders {
					fmt.Fprintf(&buf, "---\n# %s\n", args[i])
					if err := tree.Encode(&buf, rem, indent); err != nil {
						return err
					}
				}
				_, err := cmd.OutOrStdout().Write(buf.Bytes())
				return err
			}

			commonY, err := tree.Marshal(common, indent)
			if err != nil {
				return err
			}
			if err := r.Write(commonPath, commonY); err != nil {
				return err
			}
			for i, rem := range remainders {
				remY, err := tree.Marshal(rem, indent)
				if err != nil {
					return err
				}
				if err := r.Write(args[i], remY); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), commonPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&commonPath, "common", "", "file receiving the common structure")
	cmd.Flags().BoolVar(&inPlace, "in-place", false, "write --common and rewrite every file with its remainder")
	cmd.Flags().BoolVar(&noEqualLists, "no-equal-lists", false, "keep lists in the remainders even when equal in every file")
	return cmd
}
