package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"aicoder/config/models"
	"aicoder/internal/utils"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the active tool, model and project",
	Long:  "Show the active tool, the current model of every tool and the current project",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(newLogger())
		if err != nil {
			return err
		}
		snap := store.Load()
		out := cmd.OutOrStdout()

		fmt.Fprintf(out, "Active tool: %s\n", snap.ActiveTool.DisplayName())
		for _, kind := range models.ToolKinds {
			cfg := snap.Tool(kind)
			marker := " "
			if kind == snap.ActiveTool {
				marker = "*"
			}
			key := "no key"
			if m, ok := cfg.Model(cfg.CurrentModel); ok && m.Credentialed() {
				key = utils.MaskAPIKey(m.APIKey)
			}
			fmt.Fprintf(out, "%s %-12s %-10s (%s)\n", marker, kind.DisplayName(), cfg.CurrentModel, key)
		}

		if p, ok := snap.ResolvedProject(); ok {
			yolo := "off"
			if p.YoloMode {
				yolo = "on"
			}
			fmt.Fprintf(out, "\nProject: %s\n  Path: %s\n  Yolo: %s\n", p.Name, p.Path, yolo)
		}
		return nil
	},
}
