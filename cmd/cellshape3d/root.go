package main

import (
	"github.com/spf13/cobra"

	"cellshape3d/pkg/config"
)

func newRootCommand() *cobra.Command {
	var configFlag string

	rootCmd := &cobra.Command{
		Use:           "cellshape3d",
		Short:         "Shape-space discretization and 3D mesh reconstruction for cell-shape analysis",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "cellshape3d.yaml", "Configuration file path")

	rootCmd.AddCommand(newRunCommand(&configFlag))
	rootCmd.AddCommand(newInitConfigCommand(&configFlag))

	return rootCmd
}

func newInitConfigCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "init-config",
		Short: "Write a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.CreateDefaultConfigFile(*configFlag)
		},
	}
}
