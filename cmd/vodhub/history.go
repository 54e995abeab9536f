package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/justchokingaround/vodhub/internal/history"
	"github.com/justchokingaround/vodhub/internal/media"
	"github.com/justchokingaround/vodhub/internal/ui"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show and manage the watch history",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List watched titles",
	RunE: func(cmd *cobra.Command, args []string) error {
		sortBy, _ := cmd.Flags().GetString("sort")
		origin, _ := cmd.Flags().GetString("origin")
		limit, _ := cmd.Flags().GetInt("limit")

		entries, err := app.history.List(history.FilterOptions{
			Origin: media.Origin(origin),
			Limit:  limit,
			SortBy: history.SortOrder(sortBy),
		})
		if err != nil {
			return err
		}
		return printHistory(cmd, entries)
	},
}

var historySearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Fuzzy-search the watch history",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := app.history.Search(strings.Join(args, " "))
		if err != nil {
			return err
		}
		return printHistory(cmd, entries)
	},
}

var historyRemoveCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"remove"},
	Short:   "Remove one title from the history",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.history.Remove(args[0]); err != nil {
			return err
		}
		fmt.Printf("Removed %s\n", args[0])
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the watch history",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.history.Clear(); err != nil {
			return err
		}
		fmt.Println("History cleared")
		return nil
	},
}

func printHistory(cmd *cobra.Command, entries []history.Entry) error {
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return printJSON(entries)
	}
	fmt.Print(ui.History(entries, time.Now()))
	return nil
}

func init() {
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historySearchCmd)
	historyCmd.AddCommand(historyRemoveCmd)
	historyCmd.AddCommand(historyClearCmd)

	historyListCmd.Flags().String("sort", string(history.SortRecentFirst), "recent_first, oldest_first, title_asc or title_desc")
	historyListCmd.Flags().String("origin", "", "only metadata-service or backend-index entries")
	historyListCmd.Flags().IntP("limit", "n", 0, "maximum number of entries")
	historyListCmd.Flags().Bool("json", false, "print as JSON")
	historySearchCmd.Flags().Bool("json", false, "print as JSON")
}
