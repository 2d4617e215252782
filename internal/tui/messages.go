package tui

// Operation names a panel operation run inside a command
type Operation int

const (
	OpSwitchTool Operation = iota
	OpSwitchModel
	OpSaveSettings
	OpCommitProjects
	OpSwitchProject
	OpSetPath
	OpSetYolo
)

// OpResultMsg is sent when a panel operation completes
type OpResultMsg struct {
	Op  Operation
	Err error
}

// RefreshMsg is sent when panel state changed outside of Update: an
// external config change or a status message clearing.
type RefreshMsg struct{}

// ReadinessMsg is sent for every readiness log line and state change
type ReadinessMsg struct{}

// ResizeMsg is sent once when the environment check finishes
type ResizeMsg struct {
	Width  int
	Height int
}

// ProbeFinishedMsg is sent when the environment check returns
type ProbeFinishedMsg struct {
	Err error
}
