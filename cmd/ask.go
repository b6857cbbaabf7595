package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var askSessionID string

var askCmd = &cobra.Command{
	Use:   "ask [message]",
	Short: "Send one message and print the reply",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askSessionID, "session", "", "continue an existing session")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	reply, err := a.Agent.HandleMessage(ctx, askSessionID, strings.Join(args, " "))
	if err != nil {
		return err
	}

	fmt.Println(reply.Text)
	if len(reply.Sources) > 0 {
		fmt.Printf("\n(drawing on: %s)\n", strings.Join(reply.Sources, "; "))
	}
	fmt.Printf("\nSession: %s\n", reply.SessionID)
	if reply.Warning != "" {
		fmt.Printf("Warning: %s\n", reply.Warning)
	}
	return nil
}
