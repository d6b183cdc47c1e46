package main

import (
	"fmt"
	"strings"

	"github.com/Cyclone1070/buildforme/internal/archetype"
	"github.com/spf13/cobra"
)

func newClassifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <prompt>",
		Short: "Print the project template the prompt maps to",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.deps.ProviderFactory(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			c := archetype.NewClassifier(p, a.cfg.Provider.ClassifyMaxTokens, a.log)
			arch, err := c.Classify(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), arch)
			return nil
		},
	}
}
