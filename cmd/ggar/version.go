package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gogpu/ggar"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of ggar",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "ggar version %s\n", ggar.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
