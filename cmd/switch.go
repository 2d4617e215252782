package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"aicoder/config/models"
)

func init() {
	rootCmd.AddCommand(switchCmd)
	rootCmd.AddCommand(toolCmd)
}

var switchCmd = &cobra.Command{
	Use:   "switch <tool> <model>",
	Short: "Switch the current model of a tool",
	Long: `Switch the current model of a tool and make that tool active.

The configuration is re-read before the change, so edits made by an open panel
or the background agent are kept. A model without an API key is refused.

  aicoder switch claude GLM
  aicoder switch codex Kimi`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := models.ParseToolKind(args[0])
		if err != nil {
			return err
		}

		store, detach, err := openSyncedStore(newLogger())
		if err != nil {
			return err
		}
		defer detach()

		if _, err := store.SwitchModel(kind, args[1]); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("Switched %s to %s", kind.DisplayName(), args[1])))
		return nil
	},
}

var toolCmd = &cobra.Command{
	Use:       "tool <tool>",
	Short:     "Make a tool active",
	Long:      "Make claude, gemini or codex the active tool",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"claude", "gemini", "codex"},
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := models.ParseToolKind(args[0])
		if err != nil {
			return err
		}

		store, err := openStore(newLogger())
		if err != nil {
			return err
		}
		if _, err := store.SetActiveTool(kind); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Active tool: "+kind.DisplayName()))
		return nil
	},
}
