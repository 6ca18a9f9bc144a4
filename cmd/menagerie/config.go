package main

import (
	"github.com/spf13/cobra"
)

func newConfigCommand() *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := f.load(cmd)
			if err != nil {
				return err
			}
			return cfg.Encode(cmd.OutOrStdout())
		},
	}
	f.register(cmd)
	return cmd
}
