package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Re-embed the scripture corpus",
	Long: `Reindex re-embeds every corpus chunk and persists the result, so the
next start reuses it. Run after changing the corpus or the embedder
model.`,
	RunE: runReindex,
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}

func runReindex(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.RebuildIndex(ctx); err != nil {
		return err
	}
	fmt.Printf("Reindexed %d chunks.\n", len(a.Chunks()))
	return nil
}
