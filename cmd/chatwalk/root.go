package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "chatwalk",
	Short: "Chatwalk is a conversational flow engine",
	Long:  `Chatwalk interprets bot graphs (groups of bubbles, inputs and logic blocks) and runs them as resumable chat sessions over HTTP or on the terminal.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
}
