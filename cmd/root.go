// Package cmd implements the sakha command line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "sakha",
	Short: "Sakha - Krishna as your companion in the terminal",
	Long: `Sakha is a conversational companion that speaks in the voice of
Krishna, grounded in the Bhagavad Gita and related scriptures.

Running sakha without arguments starts an interactive conversation.`,
	RunE: runChat,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
