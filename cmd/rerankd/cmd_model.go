package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rushteam/tunerank/model"
)

func newModelCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Sequential model utilities",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "inspect <artifact>",
		Short: "Load a model artifact and print its name and vocabulary size",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := model.LoadSequential(args[0])
			if err != nil {
				return err
			}
			if !c.Loaded() {
				return fmt.Errorf("%s: %w", args[0], model.ErrArtifactNotFound)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "model: %s\nvocabulary: %d\n", c.Name(), c.Vocab().Len())
			return nil
		},
	})
	return cmd
}
