package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"aicoder/config/models"
	"aicoder/internal/utils"
)

func init() {
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list [tool]",
	Short: "List the models of every tool",
	Long:  "List the models of every tool, or of one tool, with their masked keys and endpoints",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kinds := models.ToolKinds
		if len(args) == 1 {
			kind, err := models.ParseToolKind(args[0])
			if err != nil {
				return err
			}
			kinds = []models.ToolKind{kind}
		}

		store, err := openStore(newLogger())
		if err != nil {
			return err
		}
		snap := store.Load()
		out := cmd.OutOrStdout()

		for i, kind := range kinds {
			if i > 0 {
				fmt.Fprintln(out)
			}
			cfg := snap.Tool(kind)
			fmt.Fprintf(out, "%s:\n", kind.DisplayName())
			for _, m := range cfg.Models {
				marker := " "
				if m.ModelName == cfg.CurrentModel {
					marker = "*"
				}
				key := "no key"
				if m.Credentialed() {
					key = "API Key: " + utils.MaskAPIKey(m.APIKey)
				}
				url := m.ModelURL
				if url == "" {
					url = "-"
				}
				fmt.Fprintf(out, "%s %-10s %s (URL: %s)\n", marker, m.ModelName, key, url)
			}
		}
		fmt.Fprintf(out, "\n* indicates the current model\n")
		return nil
	},
}
