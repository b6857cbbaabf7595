package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var resetStrict bool

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage conversation sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known sessions",
	RunE:  runSessionsList,
}

var sessionsResetCmd = &cobra.Command{
	Use:   "reset <session-id>",
	Short: "Discard a session and start fresh",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsReset,
}

func init() {
	sessionsResetCmd.Flags().BoolVar(&resetStrict, "strict", false, "fail if the session does not exist")
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsResetCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func runSessionsList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sessions, err := a.Agent.ListSessions(ctx)
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions yet.")
		return nil
	}

	for _, s := range sessions {
		first := s.FirstMessage
		if first == "" {
			first = "(empty)"
		}
		fmt.Printf("%s  %-40.40s  %d turns  %s\n",
			s.ID, first, s.TurnCount, formatTime(s.UpdatedAt))
	}
	return nil
}

func runSessionsReset(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	fresh, err := a.Agent.ResetSession(ctx, args[0], resetStrict)
	if err != nil {
		return fmt.Errorf("resetting session: %w", err)
	}
	fmt.Printf("Session reset. New session: %s\n", fresh)
	return nil
}

// formatTime renders timestamps relative to now for recent activity.
func formatTime(t time.Time) string {
	diff := time.Since(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%d minutes ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%d hours ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%d days ago", int(diff.Hours()/24))
	default:
		return t.Format("2006-01-02 15:04")
	}
}
