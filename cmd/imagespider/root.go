package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "imagespider",
		Short:         "Find visually similar images",
		Long:          `Index a folder of images into an embedding catalog and rank images by visual similarity.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
				color.NoColor = true
			}
		},
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	addPersistentFlags(rootCmd)
	rootCmd.AddCommand(
		NewIndexCmd(),
		NewSimilarCmd(),
		NewWatchCmd(),
		NewExportCmd(),
		NewVersionCmd(version),
	)
	return rootCmd
}

func addPersistentFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringP("config", "c", "", "Config file (default ./imagespider.yaml when present)")
	cmd.PersistentFlags().String("catalog", "", "Embedding catalog (SQLite), overrides config")
	cmd.PersistentFlags().String("log-level", "", "Log level (debug|info|warn|error), overrides config")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	cmd.PersistentFlags().Bool("no-color", false, "Disable coloured output")
}
