package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set by the build.
var Version = "0.1.0-dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the runtime version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("prose", Version)
	},
}
