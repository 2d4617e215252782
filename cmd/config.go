package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"aicoder/config/models"
	"aicoder/config/storage"
	"aicoder/internal/utils"
)

var showFormat string

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configPathCmd, configRestoreCmd)
	configShowCmd.Flags().StringVarP(&showFormat, "format", "f", "json", "output format (json or yaml)")
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the configuration file",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the configuration with masked API keys",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(newLogger())
		if err != nil {
			return err
		}
		data, err := renderSnapshot(maskKeys(store.Load()), showFormat)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(newLogger())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), store.Path())
		return nil
	},
}

var configRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore the configuration from its latest backup",
	Long: `Restore the configuration from the most recent backup taken before a save.
A running panel or agent picks the restored file up on its own.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(newLogger())
		if err != nil {
			return err
		}
		bm := storage.NewBackupManager(storage.DefaultBackupRetention)
		if err := bm.RestoreFromLatestBackup(store.Path()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Restored "+store.Path()))
		return nil
	},
}

// maskKeys returns a copy of snap with every API key masked
func maskKeys(snap models.Snapshot) models.Snapshot {
	out := snap.Clone()
	for _, kind := range models.ToolKinds {
		cfg := out.Tool(kind)
		for i := range cfg.Models {
			if cfg.Models[i].Credentialed() {
				cfg.Models[i].APIKey = utils.MaskAPIKey(cfg.Models[i].APIKey)
			}
		}
		out = out.WithTool(kind, cfg)
	}
	return out
}

// renderSnapshot encodes snap in the persisted JSON layout, or the same
// tree as YAML.
func renderSnapshot(snap models.Snapshot, format string) ([]byte, error) {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, err
	}
	switch format {
	case "json":
		return append(data, '\n'), nil
	case "yaml", "yml":
		var tree map[string]any
		if err := json.Unmarshal(data, &tree); err != nil {
			return nil, err
		}
		return yaml.Marshal(tree)
	}
	return nil, fmt.Errorf("unsupported format %q (use json or yaml)", format)
}
