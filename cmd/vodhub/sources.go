package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/justchokingaround/vodhub/internal/ui"
)

var sourcesCmd = &cobra.Command{
	Use:     "sources",
	Aliases: []string{"src"},
	Short:   "Manage backend index APIs",
}

var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured backends",
	RunE: func(cmd *cobra.Command, args []string) error {
		list := app.sources.List()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(list)
		}
		fmt.Print(ui.Backends(list))
		return nil
	},
}

var sourcesAddCmd = &cobra.Command{
	Use:   "add <name> <api-url>",
	Short: "Register a backend index API",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := app.sources.Add(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Added %s (%s)\n", b.Name, b.ID)
		return nil
	},
}

var sourcesRemoveCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"remove", "delete"},
	Short:   "Remove a backend",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.sources.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Removed %s\n", args[0])
		return nil
	},
}

var sourcesToggleCmd = &cobra.Command{
	Use:   "toggle <id>",
	Short: "Enable or disable a backend",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := app.sources.Toggle(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		state := "disabled"
		if b.Active {
			state = "enabled"
		}
		fmt.Printf("%s is now %s\n", b.Name, state)
		return nil
	},
}

var sourcesSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull backends from the remote store",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.RemoteStore.Path == "" {
			return fmt.Errorf("no remote store configured (set remote_store.path)")
		}
		app.sources.Sync(cmd.Context())
		fmt.Print(ui.Backends(app.sources.List()))
		return nil
	},
}

var sourcesResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Drop every backend except the built-in one",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.sources.Reset(); err != nil {
			return err
		}
		fmt.Print(ui.Backends(app.sources.List()))
		return nil
	},
}

var sourcesCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Ping every backend and report its health",
	RunE: func(cmd *cobra.Command, args []string) error {
		timeout, _ := cmd.Flags().GetDuration("timeout")
		results := app.sources.CheckAll(cmd.Context(), app.cms, timeout)

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(results)
		}
		fmt.Print(ui.Health(results))
		return nil
	},
}

func init() {
	sourcesCmd.AddCommand(sourcesListCmd)
	sourcesCmd.AddCommand(sourcesAddCmd)
	sourcesCmd.AddCommand(sourcesRemoveCmd)
	sourcesCmd.AddCommand(sourcesToggleCmd)
	sourcesCmd.AddCommand(sourcesSyncCmd)
	sourcesCmd.AddCommand(sourcesResetCmd)
	sourcesCmd.AddCommand(sourcesCheckCmd)

	sourcesListCmd.Flags().Bool("json", false, "print as JSON")
	sourcesCheckCmd.Flags().Bool("json", false, "print as JSON")
	sourcesCheckCmd.Flags().Duration("timeout", 8*time.Second, "per-backend timeout")
}

// backendName labels an API URL for output
func backendName(apiURL string) string {
	if name := app.sources.NameFor(apiURL); name != "" {
		return name
	}
	return apiURL
}
