package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the diligence-engine version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("diligence-engine %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
