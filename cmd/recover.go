package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"aicoder/config/models"
	"aicoder/internal/recovery"
)

var assumeYes bool

func init() {
	rootCmd.AddCommand(recoverCmd)
	recoverCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "do not ask for confirmation")
}

var recoverCmd = &cobra.Command{
	Use:   "recover <tool>",
	Short: "Reset a tool to a clean state",
	Long: `Reset a tool to a clean state by removing its configuration directory and
clearing its environment variables for this process.

  claude  ~/.claude and ~/.claude.json
  gemini  ~/.gemini and ~/.geminirc
  codex   ~/.codex`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"claude", "gemini", "codex"},
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := models.ParseToolKind(args[0])
		if err != nil {
			return err
		}
		home, err := homeDir()
		if err != nil {
			return err
		}
		r := recovery.New(home)
		out := cmd.OutOrStdout()

		if !assumeYes {
			fmt.Fprintf(out, "This removes:\n")
			for _, target := range r.Targets(kind) {
				fmt.Fprintf(out, "  %s\n", target)
			}
			fmt.Fprintf(out, "Continue? [y/N] ")
			answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
				fmt.Fprintln(out, "Aborted")
				return nil
			}
		}

		return recovery.Run(cmd.Context(), r, kind, func(line string) {
			if line == recovery.DoneLine {
				fmt.Fprintln(out, successStyle.Render(line))
				return
			}
			fmt.Fprintln(out, line)
		})
	},
}
