package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"aicoder/config/session"
	"aicoder/config/storage"
)

var keepBackups int

func init() {
	rootCmd.AddCommand(cleanupCmd)
	cleanupCmd.Flags().IntVar(&keepBackups, "keep", storage.DefaultBackupRetention, "number of config backups to keep")
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove stale session markers and old backups",
	Long: `Remove the markers left behind by panels or agents that did not exit cleanly,
and prune configuration backups beyond the retention count.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(newLogger())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		// LiveInstances drops the markers of dead processes as it goes.
		for _, role := range []session.Role{session.RolePanel, session.RoleAgent} {
			live, err := session.LiveInstances(store.SessionDir(), role, os.Getpid())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s: %d running\n", role, len(live))
		}

		bm := storage.NewBackupManager(keepBackups)
		if err := bm.CleanupOldBackups(store.Path()); err != nil {
			return fmt.Errorf("failed to prune backups: %w", err)
		}
		backups, err := bm.ListBackups(store.Path())
		if err != nil {
			return err
		}
		fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("Cleanup done, %d backup(s) kept", len(backups))))
		return nil
	},
}
