package main

import (
	"github.com/spf13/cobra"

	"github.com/inercia/go-yaml-merger/pkg/tree"
)

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get PATH FILE...",
		Short: "Merge files and print the value found at PATH",
		Long: `Merge files and print the value found at PATH.

PATH uses "." between keys and "[n]" for sequence items, as in
"spec.containers[0].image". An empty PATH prints the whole document.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.newMerger()
			if err != nil {
				return err
			}
			docs, err := a.newReader(cmd).Read(cmd.Context(), args[1:]...)
			if err != nil {
				return err
			}
			merged, err := m.MergeTree(cmd.Context(), docs)
			if err != nil {
				return err
			}
			value, err := merged.Lookup(args[0])
			if err != nil {
				return err
			}
			return tree.Encode(cmd.OutOrStdout(), value, tree.WithIndent(a.cfg.Indent))
		},
	}
}
