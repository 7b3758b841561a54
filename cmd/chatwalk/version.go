package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chatwalk/chatwalk"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of chatwalk",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("chatwalk version %s\n", strings.TrimSpace(chatwalk.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
