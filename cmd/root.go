package cmd

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"aicoder/config"
	"aicoder/config/session"
	configsync "aicoder/config/sync"
	"aicoder/internal/logging"
	"aicoder/internal/toolcheck"
	"aicoder/internal/tui"
)

// Version information
var (
	version string
	commit  string
	date    string
)

// Global flags
var (
	configPath   string
	verbose      bool
	debug        bool
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

// SetVersionInfo sets the version information
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}

var rootCmd = &cobra.Command{
	Use:   "aicoder",
	Short: "Control panel for AI coding assistants",
	Long: `aicoder manages the models and projects used by Claude Code, Gemini CLI and Codex.

Run without arguments to open the control panel. The subcommands work on the
same configuration file and are safe to use while the panel is open.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runPanel,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $XDG_CONFIG_HOME/aicoder/config.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print informational messages")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "print debug messages")
}

// Execute executes the root command
func Execute() error {
	rootCmd.Version = version
	rootCmd.SetVersionTemplate(`aicoder {{.Version}}
Commit: ` + commit + `
Date: ` + date + `
`)
	return rootCmd.Execute()
}

func newLogger() logging.Logger {
	return logging.New(verbose, debug)
}

func homeDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return home, nil
}

// openStore opens the config store with the global flags applied
func openStore(log logging.Logger) (*config.Store, error) {
	home, err := homeDir()
	if err != nil {
		return nil, err
	}
	store, err := config.Open(configPath, config.WithLogger(log), config.WithHomeDir(home))
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	return store, nil
}

// openSyncedStore opens the store and syncs every save into the tool
// settings. The returned function detaches the syncer.
func openSyncedStore(log logging.Logger) (*config.Store, func(), error) {
	store, err := openStore(log)
	if err != nil {
		return nil, nil, err
	}
	home, err := homeDir()
	if err != nil {
		return nil, nil, err
	}
	syncer := configsync.NewSyncer(home, log, configsync.SyncOptions{CreateBackup: true})
	return store, syncer.Attach(store), nil
}

func runPanel(cmd *cobra.Command, args []string) error {
	// The alternate screen owns the terminal; log to a file or nowhere.
	log := logging.Nop()
	if debug {
		f, err := tea.LogToFile("aicoder-debug.log", "aicoder")
		if err != nil {
			return fmt.Errorf("failed to open debug log: %w", err)
		}
		defer f.Close()
		log = logging.Logger{Verbose: true, Debug: true, Out: f, Err: f}
	}

	store, err := openStore(log)
	if err != nil {
		return err
	}
	home, err := homeDir()
	if err != nil {
		return err
	}

	release, err := session.Acquire(store.SessionDir(), session.RolePanel, os.Getpid())
	if err != nil {
		return fmt.Errorf("cannot open the panel: %w", err)
	}
	defer release()

	return tui.Run(cmd.Context(), tui.Options{
		Store:   store,
		Syncer:  configsync.NewSyncer(home, log, configsync.SyncOptions{CreateBackup: true}),
		Probe:   toolcheck.New(),
		Log:     log,
		HomeDir: home,
	})
}
