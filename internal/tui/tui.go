package tui

import (
	"context"
	"errors"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"aicoder/config"
	configsync "aicoder/config/sync"
	"aicoder/internal/logging"
	"aicoder/internal/panel"
	"aicoder/internal/readiness"
)

// ErrNotTerminal is returned when stdin is not a terminal
var ErrNotTerminal = errors.New("aicoder panel requires a terminal. Use subcommands for non-interactive mode")

// Options wires the panel to its collaborators
type Options struct {
	Store   *config.Store
	Syncer  *configsync.Syncer
	Probe   readiness.Probe
	Log     logging.Logger
	HomeDir string
}

// Run starts the control panel and blocks until it quits
func Run(ctx context.Context, opts Options) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return ErrNotTerminal
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var prog *tea.Program
	send := func(msg tea.Msg) {
		if prog != nil {
			prog.Send(msg)
		}
	}

	p := panel.New(opts.Store,
		panel.WithLogger(opts.Log),
		panel.WithHomeDir(opts.HomeDir),
		panel.WithNotify(func() { send(RefreshMsg{}) }),
	)
	seq := readiness.New(
		readiness.OnChange(func() { send(ReadinessMsg{}) }),
		readiness.OnResize(func(w, h int) { send(ResizeMsg{Width: w, Height: h}) }),
	)

	prog = tea.NewProgram(NewModel(ctx, p, seq, opts.Probe),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	detachPanel := p.Attach(opts.Store)
	defer detachPanel()
	if opts.Syncer != nil {
		detachSync := opts.Syncer.Attach(opts.Store)
		defer detachSync()
	}

	go func() {
		if err := opts.Store.Watch(ctx); err != nil {
			opts.Log.Warnf("Config watch stopped: %v", err)
		}
	}()

	_, err := prog.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
