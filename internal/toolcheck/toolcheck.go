// Package toolcheck is the environment probe: it looks for each tool's
// binary on PATH and asks it for its version.
package toolcheck

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"aicoder/config/models"
	"aicoder/internal/readiness"
)

const versionTimeout = 10 * time.Second

// Status is the result of checking one tool
type Status struct {
	Tool      models.ToolKind
	Installed bool
	Path      string
	Version   string
}

// Checker implements readiness.Probe
type Checker struct {
	Tools    []models.ToolKind
	LookPath func(file string) (string, error)
	Version  func(ctx context.Context, path string) (string, error)

	results []Status
}

// New returns a checker for every tool kind using the real PATH
func New() *Checker {
	return &Checker{
		Tools:    models.ToolKinds,
		LookPath: exec.LookPath,
		Version:  runVersion,
	}
}

func runVersion(ctx context.Context, path string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, path, "--version").Output()
	if err != nil {
		return "", err
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	return strings.TrimSpace(line), nil
}

// Run checks every tool, logging progress to sink, and signals done. A
// missing tool is reported, not treated as a probe error.
func (c *Checker) Run(ctx context.Context, sink readiness.Sink) error {
	c.results = c.results[:0]
	for _, kind := range c.Tools {
		if err := ctx.Err(); err != nil {
			return err
		}
		sink.Log(fmt.Sprintf("Checking %s...", kind.DisplayName()))
		c.results = append(c.results, c.check(ctx, kind, sink))
	}
	sink.Log("Environment check complete.")
	sink.Done()
	return nil
}

func (c *Checker) check(ctx context.Context, kind models.ToolKind, sink readiness.Sink) Status {
	st := Status{Tool: kind}
	path, err := c.LookPath(kind.Binary())
	if err != nil {
		sink.Log(fmt.Sprintf("%s is not installed (%s not in PATH)", kind.DisplayName(), kind.Binary()))
		return st
	}
	st.Installed = true
	st.Path = path

	version, err := c.Version(ctx, path)
	if err != nil {
		sink.Log(fmt.Sprintf("%s --version failed: %v", kind.Binary(), err))
		return st
	}
	st.Version = version
	sink.Log(fmt.Sprintf("%s %s (%s)", kind.DisplayName(), version, path))
	return st
}

// Results returns the statuses of the last run
func (c *Checker) Results() []Status {
	out := make([]Status, len(c.results))
	copy(out, c.results)
	return out
}
