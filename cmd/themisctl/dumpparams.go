package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"themis/internal/paramreg"
)

func newDumpParamsCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "dump-params [config.yaml | -KEY value ...]",
		Short: "Resolve the node's parameter set and write it out as flat YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := buildLogger(cmd)
			registry, err := paramreg.ParseCommandLine(logger, args)
			if err != nil {
				return fmt.Errorf("parse parameters: %w", err)
			}
			if err := registry.Dump(out); err != nil {
				return fmt.Errorf("dump parameters: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "params.yaml", "path to write the resolved parameter set to")
	return cmd
}
