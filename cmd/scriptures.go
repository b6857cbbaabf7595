package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var scripturesCmd = &cobra.Command{
	Use:   "scriptures",
	Short: "Browse the loaded scripture corpus",
}

var scripturesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List loaded scriptures",
	RunE:  runScripturesList,
}

var scripturesPageCmd = &cobra.Command{
	Use:   "page <scripture-id> <page>",
	Short: "Show one page of a scripture",
	Args:  cobra.ExactArgs(2),
	RunE:  runScripturesPage,
}

func init() {
	scripturesCmd.AddCommand(scripturesListCmd)
	scripturesCmd.AddCommand(scripturesPageCmd)
	rootCmd.AddCommand(scripturesCmd)
}

func runScripturesList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	for _, s := range a.Agent.ListScriptures() {
		fmt.Printf("%-16s  %s  (%d pages, %d verses)\n", s.ID, s.Name, s.PageCount, s.VerseCount)
	}
	return nil
}

func runScripturesPage(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	page, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid page number: %s", args[1])
	}

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.Agent.GetScripturePage(args[0], page)
	if err != nil {
		return err
	}

	for _, v := range p.Verses {
		fmt.Printf("%d. %s\n", v.Num, v.Text)
	}
	return nil
}
