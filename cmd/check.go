package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"aicoder/internal/readiness"
	"aicoder/internal/toolcheck"
)

func init() {
	rootCmd.AddCommand(checkCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check which tools are installed",
	Long:  "Run the environment check the panel shows at startup and print its log",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCheck(cmd, toolcheck.New())
	},
}

func runCheck(cmd *cobra.Command, checker *toolcheck.Checker) error {
	out := cmd.OutOrStdout()

	// Run drives the probe on this goroutine, so printed needs no lock.
	var seq *readiness.Sequencer
	printed := 0
	seq = readiness.New(readiness.OnChange(func() {
		lines := seq.Lines()
		for _, line := range lines[printed:] {
			fmt.Fprintln(out, line)
		}
		printed = len(lines)
	}))
	if err := seq.Run(cmd.Context(), checker); err != nil {
		return err
	}
	if seq.State() != readiness.Ready {
		return fmt.Errorf("environment check did not finish")
	}

	fmt.Fprintln(out)
	var installed int
	for _, st := range checker.Results() {
		if !st.Installed {
			fmt.Fprintf(out, "  %-12s not installed\n", st.Tool.DisplayName())
			continue
		}
		installed++
		fmt.Fprintf(out, "  %-12s %s\n", st.Tool.DisplayName(), st.Version)
	}
	fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("%d of %d tools installed", installed, len(checker.Results()))))
	return nil
}
