package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sakha-labs/sakha/internal/app"
	"github.com/sakha-labs/sakha/internal/session"
)

var chatSessionID string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation",
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatSessionID, "session", "", "continue an existing session")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sessionID := chatSessionID

	fmt.Println("Sakha is here. Speak freely; /help lists commands.")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("you> ")
		if !scanner.Scan() {
			fmt.Println("\nGo gently, friend.")
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			exit, newID := handleChatCommand(ctx, a, input, sessionID)
			if exit {
				break
			}
			if newID != "" {
				sessionID = newID
			}
			continue
		}

		reply, err := a.Agent.HandleMessage(ctx, sessionID, input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		sessionID = reply.SessionID

		fmt.Printf("\nsakha> %s\n", reply.Text)
		if len(reply.Sources) > 0 {
			fmt.Printf("       (drawing on: %s)\n", strings.Join(reply.Sources, "; "))
		}
		if reply.Warning != "" {
			fmt.Fprintf(os.Stderr, "warning: %s\n", reply.Warning)
		}
		fmt.Println()
	}

	if err := scanner.Err(); err != nil && err != io.EOF {
		return fmt.Errorf("reading input: %w", err)
	}

	if sessionID != "" {
		fmt.Printf("Session saved (%s)\n", sessionID)
	}
	return nil
}

// formatMoodHistory renders the most recent persisted check-ins, at
// most five, oldest first. Empty history renders empty.
func formatMoodHistory(history []session.MoodCheckin) string {
	if len(history) == 0 {
		return ""
	}
	if len(history) > 5 {
		history = history[len(history)-5:]
	}
	moods := make([]string, len(history))
	for i, m := range history {
		moods[i] = m.Mood
	}
	return "Recently: " + strings.Join(moods, ", ") + "."
}

// handleChatCommand processes slash commands. It returns whether to
// exit and, for /new, the fresh session id.
func handleChatCommand(ctx context.Context, a *app.App, input, sessionID string) (exit bool, newID string) {
	switch strings.Fields(input)[0] {
	case "/help":
		fmt.Println("Commands:")
		fmt.Println("  /new   - start a fresh session")
		fmt.Println("  /mood  - show the mood estimate and recent check-ins")
		fmt.Println("  /help  - show this help")
		fmt.Println("  /exit  - leave (Ctrl+D works too)")
		fmt.Println()

	case "/new":
		fresh, err := a.Agent.ResetSession(ctx, sessionID, false)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return false, ""
		}
		fmt.Printf("A fresh start (%s).\n\n", fresh)
		return false, fresh

	case "/mood":
		if sessionID == "" {
			fmt.Println("Nothing said yet.")
			fmt.Println()
			return false, ""
		}
		h, err := a.Registry.Resolve(ctx, sessionID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return false, ""
		}
		h.Lock()
		mood := h.State.Mood()
		h.Unlock()
		fmt.Printf("The friend seems %s.\n", mood)

		history, err := a.Registry.Store().MoodHistory(ctx, sessionID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		} else if line := formatMoodHistory(history); line != "" {
			fmt.Println(line)
		}
		fmt.Println()

	case "/exit", "/quit":
		fmt.Println("Go gently, friend.")
		return true, ""

	default:
		fmt.Printf("Unknown command: %s\n", input)
		fmt.Println("Type /help to see available commands")
		fmt.Println()
	}
	return false, ""
}
