package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"aicoder/internal/daemon"
	"aicoder/internal/logging"
)

var foreground bool

func init() {
	rootCmd.AddCommand(agentCmd)
	agentCmd.AddCommand(agentStartCmd, agentStopCmd, agentStatusCmd, agentSendCmd)
	agentStartCmd.Flags().BoolVar(&foreground, "foreground", false, "run in the foreground instead of detaching")
}

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Manage the background agent",
	Long: `The background agent follows the configuration file and answers quick
queries and model switches on a unix socket, for tray menus and status bars.`,
}

var agentStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the background agent",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runtimeDir := daemon.RuntimeDir()
		if pid, ok := daemon.Running(runtimeDir); ok {
			fmt.Fprintf(cmd.OutOrStdout(), "Agent is already running (PID: %d)\n", pid)
			return nil
		}
		if foreground {
			return runAgent(runtimeDir, newLogger())
		}
		return spawnAgent(cmd, runtimeDir)
	},
}

// spawnAgent re-executes this binary detached from the terminal, logging
// to agent.log in the runtime directory.
func spawnAgent(cmd *cobra.Command, runtimeDir string) error {
	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}
	if err := os.MkdirAll(runtimeDir, 0700); err != nil {
		return err
	}
	logFile, err := os.OpenFile(filepath.Join(runtimeDir, "agent.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("failed to open agent log: %w", err)
	}
	defer logFile.Close()

	argv := []string{executable, "agent", "start", "--foreground", "--verbose"}
	if configPath != "" {
		argv = append(argv, "--config", configPath)
	}
	process, err := os.StartProcess(executable, argv, &os.ProcAttr{
		Dir:   "/",
		Env:   os.Environ(),
		Files: []*os.File{nil, logFile, logFile},
		Sys:   detachedProcAttr(),
	})
	if err != nil {
		return fmt.Errorf("failed to start agent: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Agent started (PID: %d)\n", process.Pid)
	return process.Release()
}

func runAgent(runtimeDir string, log logging.Logger) error {
	store, detach, err := openSyncedStore(log)
	if err != nil {
		return err
	}
	defer detach()

	d := daemon.New(store, runtimeDir, log)
	if err := d.Start(); err != nil {
		return err
	}
	d.HandleSignals()
	d.Wait()
	return nil
}

var agentStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background agent",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runtimeDir := daemon.RuntimeDir()
		pid, ok := daemon.Running(runtimeDir)
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "Agent is not running")
			return nil
		}
		process, err := os.FindProcess(pid)
		if err != nil {
			return err
		}
		if err := process.Signal(syscall.SIGTERM); err != nil {
			return fmt.Errorf("failed to stop agent (PID: %d): %w", pid, err)
		}
		for i := 0; i < 20; i++ {
			if _, alive := daemon.Running(runtimeDir); !alive {
				break
			}
			time.Sleep(100 * time.Millisecond)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Agent stopped (PID: %d)\n", pid)
		return nil
	},
}

var agentStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the agent is running and what it sees",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runtimeDir := daemon.RuntimeDir()
		out := cmd.OutOrStdout()
		pid, ok := daemon.Running(runtimeDir)
		if !ok {
			fmt.Fprintln(out, "Agent is not running")
			return nil
		}
		socketPath := filepath.Join(runtimeDir, daemon.SocketName)
		fmt.Fprintf(out, "Agent is running (PID: %d)\nSocket: %s\n", pid, socketPath)

		reply, err := daemon.Send(socketPath, "GET")
		if err != nil {
			return err
		}
		var st daemon.Status
		if err := json.Unmarshal([]byte(reply), &st); err != nil {
			return fmt.Errorf("unexpected agent reply: %w", err)
		}
		fmt.Fprintf(out, "Tool: %s\nModel: %s\nProject: %s (%s)\n", st.ActiveTool, st.Model, st.Project, st.ProjectPath)
		return nil
	},
}

var agentSendCmd = &cobra.Command{
	Use:   "send <command> [args...]",
	Short: "Send a raw command to the agent",
	Long: `Send one command to the agent and print the reply.

Commands: PING, VERSION, GET, LIST, RELOAD, SWITCH <tool> <model>`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runtimeDir := daemon.RuntimeDir()
		if _, ok := daemon.Running(runtimeDir); !ok {
			return errors.New("agent is not running")
		}
		reply, err := daemon.Send(filepath.Join(runtimeDir, daemon.SocketName), strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), reply)
		return nil
	},
}
