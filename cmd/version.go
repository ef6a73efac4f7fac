package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is overridden at build time via -ldflags.
//
//nolint:gochecknoglobals
var Version = "0.1.0"

//nolint:gochecknoglobals // Cobra boilerplate
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the polyhedge version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("polyhedge %s\n", Version)
	},
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(versionCmd)
}
