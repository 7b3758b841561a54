package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chatwalk/chatwalk/internal/compiler"
)

var validateCmd = &cobra.Command{
	Use:   "validate <bot-file>...",
	Short: "Check bot graphs for consistency",
	Long:  `Parses the given graph files and reports structural defects: dangling edges, duplicate identifiers, conflicting edge labels and unknown block types.`,
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runValidate(args); err != nil {
			fmt.Printf("Validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("All graphs are valid! ✅")
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(paths []string) error {
	for _, path := range paths {
		graph, err := parseGraphFile(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := compiler.Validate(graph); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}
