package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"aicoder/config/models"
	configsync "aicoder/config/sync"
)

var syncDryRun bool

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().BoolVarP(&syncDryRun, "dry-run", "n", false, "validate the updates without writing any file")
}

var syncCmd = &cobra.Command{
	Use:   "sync [tool]",
	Short: "Write the current models into the tool settings",
	Long: `Write the current model of every tool, or of one tool, into that tool's own
settings files:

  Claude Code  ~/.claude/settings.json and ~/.claude.json
  Codex        ~/.codex/config.toml and ~/.codex/auth.json
  Gemini CLI   ~/.gemini/.env

Changes made from the panel, the agent or 'aicoder switch' are synced
automatically; this command repairs settings edited by hand.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kinds := models.ToolKinds
		if len(args) == 1 {
			kind, err := models.ParseToolKind(args[0])
			if err != nil {
				return err
			}
			kinds = []models.ToolKind{kind}
		}

		log := newLogger()
		store, err := openStore(log)
		if err != nil {
			return err
		}
		home, err := homeDir()
		if err != nil {
			return err
		}
		syncer := configsync.NewSyncer(home, log, configsync.SyncOptions{DryRun: syncDryRun, CreateBackup: true})
		snap := store.Load()
		out := cmd.OutOrStdout()

		var failed int
		for _, kind := range kinds {
			changed, err := syncer.SyncTool(kind, snap.Tool(kind))
			switch {
			case err != nil:
				failed++
				fmt.Fprintf(out, "%-12s failed: %v\n", kind.DisplayName(), err)
			case changed && syncDryRun:
				fmt.Fprintf(out, "%-12s would update\n", kind.DisplayName())
			case changed:
				fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("%-12s updated", kind.DisplayName())))
			default:
				fmt.Fprintf(out, "%-12s up to date\n", kind.DisplayName())
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d tool(s) failed to sync", failed)
		}
		return nil
	},
}
