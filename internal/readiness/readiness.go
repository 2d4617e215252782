// Package readiness buffers the environment probe's log stream and flips the
// panel from initializing to ready on the probe's done signal.
package readiness

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"aicoder/internal/utils"
)

// Window size requested once the environment is ready
const (
	ReadyWidth  = 760
	ReadyHeight = 520
)

// InitialLine is the first log line of every sequencer
const InitialLine = "Initializing..."

var ErrAlreadyStarted = errors.New("readiness sequencer already started")

// failureTokens switch the log to verbose display when seen in a line
var failureTokens = []string{"failed", "error"}

type State int

const (
	Initializing State = iota
	Ready
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	}
	return "unknown"
}

// Sink receives probe events
type Sink interface {
	Log(line string)
	Done()
}

// Probe checks the environment, reporting through sink. It calls Done once
// when finished.
type Probe interface {
	Run(ctx context.Context, sink Sink) error
}

// Sequencer implements Sink. It becomes Ready only through Done; log
// content never changes the state.
type Sequencer struct {
	mu      sync.Mutex
	state   State
	lines   []string
	verbose bool

	started    atomic.Bool
	resizeOnce sync.Once
	onResize   func(width, height int)
	onChange   func()
}

// Option configures a Sequencer
type Option func(*Sequencer)

// OnResize sets the hook fired once with the ready window size
func OnResize(fn func(width, height int)) Option {
	return func(s *Sequencer) { s.onResize = fn }
}

// OnChange sets a hook fired after every log line and state change
func OnChange(fn func()) Option {
	return func(s *Sequencer) { s.onChange = fn }
}

// New creates a sequencer in Initializing with the initial log line
func New(opts ...Option) *Sequencer {
	s := &Sequencer{
		lines:    []string{InitialLine},
		onResize: func(int, int) {},
		onChange: func() {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Log appends line. A line containing a failure token turns verbose on for
// good.
func (s *Sequencer) Log(line string) {
	s.mu.Lock()
	s.lines = append(s.lines, line)
	if utils.ContainsAnyFold(line, failureTokens...) {
		s.verbose = true
	}
	s.mu.Unlock()
	s.onChange()
}

// Done moves to Ready and requests the resize. Later calls do nothing.
func (s *Sequencer) Done() {
	s.mu.Lock()
	if s.state == Ready {
		s.mu.Unlock()
		return
	}
	s.state = Ready
	s.mu.Unlock()

	s.resizeOnce.Do(func() { s.onResize(ReadyWidth, ReadyHeight) })
	s.onChange()
}

// Run drives probe against this sequencer. A sequencer runs one probe in
// its lifetime; later calls return ErrAlreadyStarted. A probe error is
// logged as a line and returned; it does not make the sequencer Ready.
func (s *Sequencer) Run(ctx context.Context, probe Probe) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	if err := probe.Run(ctx, s); err != nil {
		s.Log("Environment check failed: " + err.Error())
		return err
	}
	return nil
}

// State returns the current state
func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Lines returns a copy of the log
func (s *Sequencer) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.lines))
	copy(out, s.lines)
	return out
}

// Verbose reports whether a failure token has been seen
func (s *Sequencer) Verbose() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.verbose
}
